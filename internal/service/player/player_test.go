package player

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestPlayRejectsUnknownFormat(t *testing.T) {
	err := New().Play(context.Background(), "ogg", io.NopCloser(bytes.NewReader(nil)))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestPlayReportsDecodeError(t *testing.T) {
	for _, format := range []string{"wav", "MP3"} {
		err := New().Play(context.Background(), format, io.NopCloser(bytes.NewReader([]byte("not audio"))))
		if err == nil {
			t.Fatalf("%s: expected decode error", format)
		}
		if errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("%s: format should be supported", format)
		}
	}
}
