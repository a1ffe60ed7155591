// Package translate переводит текст через OpenAI или Gemini, выбирая провайдера
// по времени ответа и переключаясь на другой при ошибке.
package translate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/settings"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	LatencyWindowSize = 5
	DefaultTimeout    = 30 * time.Second

	// доля запросов к более быстрому провайдеру, остальные обновляют замеры медленного
	fasterShare = 0.8
)

// ErrNoProviders не задан ни один ключ API.
var ErrNoProviders = errors.New("translate: no translation providers available, add API keys in settings")

// Request что и с какого языка на какой переводить.
type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	PreferredModel string
}

// Result перевод вместе с провайдером и временем ответа.
type Result struct {
	Text         string        `json:"translatedText"`
	Provider     string        `json:"provider"`
	ResponseTime time.Duration `json:"responseTime"`
}

// Provider один сервис перевода.
type Provider interface {
	Name() string
	Translate(ctx context.Context, req Request) (string, error)
}

// Options параметры, которые не хранятся в пользовательских настройках.
type Options struct {
	OpenAIBaseURL  string
	GeminiEndpoint string
	GeminiUseADC   bool
	Timeout        time.Duration
	HTTPClient     *http.Client // для Gemini с ключом; nil: http.DefaultClient
}

type Service struct {
	opts   Options
	logger *zap.SugaredLogger
	now    func() time.Time
	chance func() float64

	mu        sync.Mutex
	providers []Provider // порядок: openai, gemini
	latency   map[string]*latencyWindow
	last      string // провайдер последней попытки
	current   settings.Settings
}

func NewService(opts Options, logger *zap.SugaredLogger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		opts:    opts,
		logger:  logger,
		now:     time.Now,
		chance:  rand.Float64,
		latency: make(map[string]*latencyWindow),
		current: settings.Defaults(),
	}
}

// Configure пересобирает провайдеров из настроек. Замеры времени сохраняются.
func (s *Service) Configure(cfg settings.Settings) {
	var providers []Provider
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, NewOpenAI(cfg.OpenAIAPIKey, s.opts.OpenAIBaseURL, s.opts.Timeout))
	}
	if cfg.GeminiAPIKey != "" || s.opts.GeminiUseADC {
		providers = append(providers, NewGemini(GeminiOptions{
			Endpoint:   s.opts.GeminiEndpoint,
			APIKey:     cfg.GeminiAPIKey,
			Timeout:    s.opts.Timeout,
			HTTPClient: s.opts.HTTPClient,
		}))
	}

	s.mu.Lock()
	s.providers = providers
	s.current = cfg
	s.mu.Unlock()

	s.logger.Infow("Translation service configured",
		"hasOpenAI", cfg.OpenAIAPIKey != "",
		"hasGemini", cfg.GeminiAPIKey != "",
		"geminiADC", cfg.GeminiAPIKey == "" && s.opts.GeminiUseADC,
		"preferredModel", cfg.PreferredModel,
	)
}

func (s *Service) CanTranslate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.providers) > 0
}

// AvailableProviders возвращает имена настроенных провайдеров.
func (s *Service) AvailableProviders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Seed заполняет окно замеров, например историей из базы при старте.
func (s *Service) Seed(provider string, latencies []time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.window(provider)
	for _, d := range latencies {
		w.Add(d)
	}
}

// AverageLatencies среднее время ответа по провайдерам, у которых есть замеры.
func (s *Service) AverageLatencies() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.latency))
	for name, w := range s.latency {
		if w.Len() > 0 {
			out[name] = w.Average()
		}
	}
	return out
}

// Translate переводит text выбранным провайдером. При ошибке один раз пробует другой.
func (s *Service) Translate(ctx context.Context, text string) (Result, error) {
	s.mu.Lock()
	req := Request{
		Text:           text,
		SourceLanguage: s.current.SourceLanguage,
		TargetLanguage: s.current.TargetLanguage,
		PreferredModel: s.current.PreferredModel,
	}
	primary, err := s.selectLocked()
	s.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	res, err := s.attempt(ctx, primary, req)
	if err == nil {
		return res, nil
	}
	s.logger.Warnw("Translation failed, trying fallback", "provider", primary.Name(), "error", err)

	fallback := s.other(primary)
	if fallback == nil {
		return Result{}, fmt.Errorf("translation failed: %w", err)
	}
	res, fbErr := s.attempt(ctx, fallback, req)
	if fbErr != nil {
		s.logger.Errorw("Translation failed with all providers", "error", fbErr)
		return Result{}, fmt.Errorf("translation failed with all providers: %w (fallback %s: %v)", err, fallback.Name(), fbErr)
	}
	return res, nil
}

func (s *Service) attempt(ctx context.Context, p Provider, req Request) (Result, error) {
	s.mu.Lock()
	s.last = p.Name()
	s.mu.Unlock()

	started := s.now()
	out, err := p.Translate(ctx, req)
	if err != nil {
		return Result{}, err
	}
	took := s.now().Sub(started)

	s.mu.Lock()
	s.window(p.Name()).Add(took)
	s.mu.Unlock()

	s.logger.Infow("Translation completed", "provider", p.Name(), "took", took.String())
	return Result{Text: strings.TrimSpace(out), Provider: p.Name(), ResponseTime: took}, nil
}

// selectLocked выбирает провайдера для очередного запроса.
func (s *Service) selectLocked() (Provider, error) {
	switch len(s.providers) {
	case 0:
		return nil, ErrNoProviders
	case 1:
		return s.providers[0], nil
	}
	a, b := s.providers[0], s.providers[1]

	wa, wb := s.window(a.Name()), s.window(b.Name())
	if wa.Len() > 0 && wb.Len() > 0 {
		faster, slower := b, a
		if wa.Average() < wb.Average() {
			faster, slower = a, b
		}
		if s.chance() < fasterShare {
			return faster, nil
		}
		return slower, nil
	}

	switch s.last {
	case a.Name():
		return b, nil
	case b.Name():
		return a, nil
	}

	model := s.current.PreferredModel
	for _, p := range s.providers {
		if p.Name() == ProviderOpenAI && strings.HasPrefix(model, "gpt") {
			return p, nil
		}
		if p.Name() == ProviderGemini && strings.HasPrefix(model, "gemini") {
			return p, nil
		}
	}

	i := int(s.chance() * float64(len(s.providers)))
	if i >= len(s.providers) {
		i = len(s.providers) - 1
	}
	return s.providers[i], nil
}

func (s *Service) other(p Provider) Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.providers {
		if c.Name() != p.Name() {
			return c
		}
	}
	return nil
}

func (s *Service) window(provider string) *latencyWindow {
	w, ok := s.latency[provider]
	if !ok {
		w = newLatencyWindow(LatencyWindowSize)
		s.latency[provider] = w
	}
	return w
}

// languageName "auto" превращается в описание для модели.
func languageName(code string) string {
	if code == "" || code == settings.AutoLanguage {
		return "the detected language"
	}
	return code
}
