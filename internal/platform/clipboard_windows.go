//go:build windows

package platform

import (
	"errors"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
)

type winClipboard struct{}

// NewClipboardReader чтение CF_UNICODETEXT через WinAPI.
func NewClipboardReader() ClipboardReader { return winClipboard{} }

func (winClipboard) ReadText() (string, error) {
	if !win.IsClipboardFormatAvailable(win.CF_UNICODETEXT) {
		// в буфере не текст: для детектора это пустая строка
		return "", nil
	}
	if err := openClipboard(); err != nil {
		return "", err
	}
	defer win.CloseClipboard()

	h := win.HGLOBAL(win.GetClipboardData(win.CF_UNICODETEXT))
	if h == 0 {
		return "", errors.New("GetClipboardData failed")
	}
	p := win.GlobalLock(h)
	if p == nil {
		return "", errors.New("GlobalLock failed")
	}
	defer win.GlobalUnlock(h)

	// нуль-терминированная UTF-16 строка
	n := 0
	for *(*uint16)(unsafe.Add(p, n*2)) != 0 {
		n++
	}
	return syscall.UTF16ToString(unsafe.Slice((*uint16)(p), n)), nil
}

// openClipboard буфер может быть кратко занят другим процессом.
func openClipboard() error {
	for i := 0; i < 10; i++ {
		if win.OpenClipboard(0) {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return errors.New("failed to open clipboard after retries")
}
