// Package settings хранит пользовательские настройки переводчика в TOML-файле.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

const (
	DefaultTripleCopyDelayMs = 1200
	DefaultPreferredModel    = "gpt-3.5-turbo"
	DefaultSourceLanguage    = "zh"
	DefaultTargetLanguage    = "en"
	DefaultOverrideHotkey    = "ctrl+shift+q"

	// AutoLanguage язык источника определяется моделью.
	AutoLanguage = "auto"
)

type Settings struct {
	TripleCopyEnabled bool   `toml:"triple_copy_enabled" json:"tripleCopyEnabled"`
	TripleCopyDelayMs int    `toml:"triple_copy_delay_ms" json:"tripleCopyDelay"`
	OpenAIAPIKey      string `toml:"openai_api_key" json:"-"`
	GeminiAPIKey      string `toml:"gemini_api_key" json:"-"`
	PreferredModel    string `toml:"preferred_model" json:"preferredModel"`
	SourceLanguage    string `toml:"source_language" json:"sourceLanguage"`
	TargetLanguage    string `toml:"target_language" json:"targetLanguage"`
	DarkMode          bool   `toml:"dark_mode" json:"darkMode"`
	OverrideHotkey    string `toml:"override_hotkey" json:"overrideHotkey"`
}

// Defaults значения при первом запуске.
func Defaults() Settings {
	return Settings{
		TripleCopyEnabled: true,
		TripleCopyDelayMs: DefaultTripleCopyDelayMs,
		PreferredModel:    DefaultPreferredModel,
		SourceLanguage:    DefaultSourceLanguage,
		TargetLanguage:    DefaultTargetLanguage,
		OverrideHotkey:    DefaultOverrideHotkey,
	}
}

func (s *Settings) normalize() {
	if s.TripleCopyDelayMs <= 0 {
		s.TripleCopyDelayMs = DefaultTripleCopyDelayMs
	}
	s.OpenAIAPIKey = strings.TrimSpace(s.OpenAIAPIKey)
	s.GeminiAPIKey = strings.TrimSpace(s.GeminiAPIKey)
	if strings.TrimSpace(s.PreferredModel) == "" {
		s.PreferredModel = DefaultPreferredModel
	}
	if strings.TrimSpace(s.SourceLanguage) == "" {
		s.SourceLanguage = DefaultSourceLanguage
	}
	if strings.TrimSpace(s.TargetLanguage) == "" {
		s.TargetLanguage = DefaultTargetLanguage
	}
	if strings.TrimSpace(s.OverrideHotkey) == "" {
		s.OverrideHotkey = DefaultOverrideHotkey
	}
}

// Store настройки в памяти, синхронизированные с файлом.
type Store struct {
	path string

	mu        sync.RWMutex
	current   Settings
	listeners []func(Settings)
}

// Open читает файл настроек. Если файла нет, создаёт его со значениями по умолчанию.
func Open(path string) (*Store, error) {
	s := &Store{path: path, current: Defaults()}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(s.current); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
		return s, nil
	}

	// недостающие в файле ключи остаются дефолтными
	if _, err := toml.DecodeFile(path, &s.current); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	s.current.normalize()
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update применяет fn к копии настроек, сохраняет файл и оповещает подписчиков.
// При ошибке записи состояние в памяти не меняется.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	next := s.current
	fn(&next)
	next.normalize()
	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return nil
}

// Subscribe регистрирует колбэк на изменения. Вызывается после успешного Update.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// save пишет во временный файл и переименовывает, чтобы не оставить обрезанный TOML.
func (s *Store) save(v Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
