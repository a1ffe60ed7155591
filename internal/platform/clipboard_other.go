//go:build !windows

package platform

import (
	"fmt"

	"github.com/atotto/clipboard"
)

type sysClipboard struct{}

// NewClipboardReader pbpaste на macOS, xclip/xsel/wl-paste на Linux.
func NewClipboardReader() ClipboardReader { return sysClipboard{} }

func (sysClipboard) ReadText() (string, error) {
	if clipboard.Unsupported {
		return "", fmt.Errorf("clipboard: no clipboard utility found")
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: %w", err)
	}
	return text, nil
}
