// Package web отдаёт локальный HTTP API и websocket для интерфейса переводчика.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/app/translator"
	"github.com/huhai586/translator/internal/config"
	"github.com/huhai586/translator/internal/gesture"
	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/translate"
)

type App interface {
	Translate(ctx context.Context, text string) (translate.Result, error)
	SwapLanguages(ctx context.Context) (settings.Settings, error)
	Speak(ctx context.Context, text string) error
	Last() *translator.Last
}

type Detector interface {
	Snapshot() gesture.State
	Trigger()
}

type SettingsStore interface {
	Get() settings.Settings
	Update(fn func(*settings.Settings)) error
}

type History interface {
	Translations(limit, offset int) ([]storage.Translation, error)
	TranslationCount() (int, error)
	DeleteTranslation(id int64) error
	ProviderStats(days int) ([]storage.ProviderStats, error)
}

type Providers interface {
	AvailableProviders() []string
	AverageLatencies() map[string]time.Duration
}

// Deps всё, что обслуживает API. History может быть nil, если история выключена.
// Если Hub nil, сервер создаёт свой.
type Deps struct {
	App       App
	Detector  Detector
	Settings  SettingsStore
	History   History
	Providers Providers
	Hub       *Hub
}

type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	hub     *Hub
	srv     *http.Server
	logger  *zap.SugaredLogger
	running atomic.Bool

	mu      sync.Mutex
	addr    string
	stopHub context.CancelFunc
}

func NewServer(cfg config.ServerConfig, deps Deps, logger *zap.SugaredLogger) *Server {
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:3002"
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger, hub: hub, addr: cfg.BindAddr}

	s.srv = &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// перевод с переключением провайдера может занять два таймаута
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Hub получатель событий приложения.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start начинает слушать адрес и сразу возвращается. Останавливается по отмене ctx или через Stop,
// повторный запуск после остановки не поддерживается.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.stopHub = stopHub
	s.mu.Unlock()
	go s.hub.Run(hubCtx)

	go func() {
		s.logger.Infow("Web server listening", "addr", s.Addr())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("Web server stopped with error", "error", err)
		} else {
			s.logger.Infow("Web server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.mu.Lock()
	stopHub := s.stopHub
	s.mu.Unlock()
	// websocket-соединения Shutdown не ждёт, их закрывает хаб
	defer stopHub()

	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("web server shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

// Addr фактический адрес после Start (важно для порта 0).
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	mux.HandleFunc("POST /api/translate", s.handleTranslate)
	mux.HandleFunc("POST /api/swap", s.handleSwap)
	mux.HandleFunc("POST /api/activate", s.handleActivate)
	mux.HandleFunc("POST /api/speak", s.handleSpeak)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.hub.serve)
	return mux
}
