package notify

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/huhai586/translator/internal/service/player"
	"go.uber.org/zap"
)

// SoundNotifier проигрывает короткий звук при срабатывании жеста.
type SoundNotifier struct {
	logger *zap.SugaredLogger
	path   string
	ply    player.Player
}

// NewSoundNotifier создаёт нотификатор. Пустой путь: звук выключен.
// Относительный путь сначала ищется рядом с бинарём, затем от рабочей директории.
func NewSoundNotifier(logger *zap.SugaredLogger, path string, ply player.Player) *SoundNotifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if ply == nil {
		ply = player.New()
	}
	return &SoundNotifier{logger: logger, path: resolve(path), ply: ply}
}

func resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if exe, err := os.Executable(); err == nil {
		cand := filepath.Join(filepath.Dir(exe), path)
		if _, statErr := os.Stat(cand); statErr == nil {
			return cand
		}
	}
	return filepath.FromSlash(path)
}

func (n *SoundNotifier) Enabled() bool { return n.path != "" }

// PlayActivation проигрывает звук уведомления. Ошибки логируются и возвращаются,
// вызывающий обычно их игнорирует.
func (n *SoundNotifier) PlayActivation(ctx context.Context) error {
	if !n.Enabled() {
		return nil
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	default:
	}

	f, err := os.Open(n.path)
	if err != nil {
		n.logger.Warnw("Failed to open notification sound", "path", n.path, "error", err)
		return err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(n.path), "."))
	if ext == "" {
		ext = "mp3" // по умолчанию
	}
	// Play закрывает файл сам
	if err := n.ply.Play(ctx, ext, f); err != nil {
		n.logger.Warnw("Failed to play notification sound", "path", n.path, "error", err)
		return err
	}
	return nil
}
