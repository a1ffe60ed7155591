// Package platform даёт доступ к системному буферу обмена и клавиатуре:
// чтение текста, наблюдение за Ctrl+C и глобальный хоткей ручного вызова.
package platform

import (
	"context"
	"errors"
)

// ErrUnsupported слушатель клавиатуры не реализован для этой ОС.
// Приложение в этом случае работает только на опросе буфера.
var ErrUnsupported = errors.New("platform: keyboard listener is not supported on this OS")

// Handlers колбэки слушателя. Вызываются из системного потока, не должны блокировать.
type Handlers struct {
	OnCopyCombo func() // пользователь нажал Ctrl+C (Ctrl+Insert)
	OnOverride  func() // нажат хоткей ручного вызова
}

// Listener наблюдает за клавиатурой до отмены контекста.
type Listener interface {
	Run(ctx context.Context, h Handlers) error
}

// ClipboardReader читает текущий текст буфера обмена.
type ClipboardReader interface {
	ReadText() (string, error)
}
