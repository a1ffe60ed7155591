//go:build !windows

package platform

import (
	"context"

	"go.uber.org/zap"
)

type stubListener struct{}

// NewListener на этой ОС не наблюдает клавиатуру, Run сразу возвращает ErrUnsupported.
func NewListener(_ KeyCombo, _ *zap.SugaredLogger) Listener { return stubListener{} }

func (stubListener) Run(context.Context, Handlers) error { return ErrUnsupported }
