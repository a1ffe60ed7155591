// Package textclean проверяет и чистит текст из буфера обмена перед переводом.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// минимальная длина удвоенного фрагмента, который считается повтором
const minRepeat = 10

var (
	lineSplitRe = regexp.MustCompile(`\r?\n`)
	paraSplitRe = regexp.MustCompile(`\n\s*\n`)
)

// IsValid сообщает, стоит ли переводить текст: не пустой, не короче двух символов без краевых пробелов, не голый UUID.
func IsValid(text string) bool {
	if text == "" {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 2 {
		return false
	}
	return !isBareUUID(text)
}

// isBareUUID только каноническая форма xxxxxxxx-xxxx-..., без скобок и urn:
func isBareUUID(text string) bool {
	return len(text) == 36 && uuid.Validate(text) == nil
}

// RemoveDuplicates убирает повторы, которые появляются при многократном копировании:
// текст, склеенный сам с собой, подряд идущие одинаковые строки и повторяющиеся абзацы.
// Для невалидного текста возвращает пустую строку.
func RemoveDuplicates(text string) string {
	if !IsValid(text) {
		return ""
	}
	trimmed := strings.TrimSpace(text)

	if half, ok := doubledPrefix(trimmed); ok {
		return half
	}

	lines := lineSplitRe.Split(trimmed, -1)
	if len(lines) > 1 {
		unique := make([]string, 0, len(lines))
		prev := ""
		for _, line := range lines {
			t := strings.TrimSpace(line)
			if t != "" && t != prev {
				unique = append(unique, line)
				prev = t
			}
		}
		if len(unique) < len(lines) {
			return strings.Join(unique, "\n")
		}
	}

	paragraphs := paraSplitRe.Split(trimmed, -1)
	if len(paragraphs) <= 1 {
		return trimmed
	}
	unique := make([]string, 0, len(paragraphs))
	seen := make(map[string]struct{}, len(paragraphs))
	for _, p := range paragraphs {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, p)
	}
	if len(unique) < len(paragraphs) {
		return strings.Join(unique, "\n\n")
	}
	return trimmed
}

// doubledPrefix ищет самый длинный префикс длины i (от половины до minRepeat рун),
// за которым сразу идёт он же.
func doubledPrefix(s string) (string, bool) {
	r := []rune(s)
	for i := len(r) / 2; i >= minRepeat; i-- {
		if string(r[:i]) == string(r[i:2*i]) {
			return string(r[:i]), true
		}
	}
	return "", false
}
