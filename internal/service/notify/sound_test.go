package notify

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

type recordingPlayer struct {
	formats []string
	data    []string
	err     error
}

func (p *recordingPlayer) Play(_ context.Context, format string, r io.ReadCloser) error {
	defer r.Close()
	b, _ := io.ReadAll(r)
	p.formats = append(p.formats, format)
	p.data = append(p.data, string(b))
	return p.err
}

func TestDisabledWithoutPath(t *testing.T) {
	ply := &recordingPlayer{}
	n := NewSoundNotifier(zaptest.NewLogger(t).Sugar(), "  ", ply)
	if n.Enabled() {
		t.Fatal("notifier should be disabled")
	}
	if err := n.PlayActivation(context.Background()); err != nil {
		t.Fatalf("PlayActivation: %v", err)
	}
	if len(ply.formats) != 0 {
		t.Fatal("nothing should be played")
	}
}

func TestPlaysFileByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ding.WAV")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}
	ply := &recordingPlayer{}
	n := NewSoundNotifier(zaptest.NewLogger(t).Sugar(), path, ply)

	if err := n.PlayActivation(context.Background()); err != nil {
		t.Fatalf("PlayActivation: %v", err)
	}
	if len(ply.formats) != 1 || ply.formats[0] != "wav" || ply.data[0] != "RIFF" {
		t.Fatalf("played %v %v", ply.formats, ply.data)
	}
}

func TestMissingFileIsReported(t *testing.T) {
	ply := &recordingPlayer{}
	n := NewSoundNotifier(zaptest.NewLogger(t).Sugar(), filepath.Join(t.TempDir(), "missing.mp3"), ply)
	if err := n.PlayActivation(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}

func TestCancelledContextSkipsPlayback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ding.mp3")
	if err := os.WriteFile(path, []byte("ID3"), 0o600); err != nil {
		t.Fatal(err)
	}
	ply := &recordingPlayer{}
	n := NewSoundNotifier(nil, path, ply)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.PlayActivation(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(ply.formats) != 0 {
		t.Fatal("nothing should be played")
	}
}
