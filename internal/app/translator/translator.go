// Package translator связывает жест с переводом: берёт текст, чистит его,
// переводит, сохраняет в историю и рассылает события интерфейсу.
package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/gesture"
	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/textclean"
	"github.com/huhai586/translator/internal/translate"
)

// Типы событий для интерфейса.
const (
	EventSource      = "source"
	EventTranslating = "translating"
	EventTranslation = "translation"
	EventWarning     = "warning"
	EventError       = "error"
	EventLanguages   = "languages"
)

// Происхождение текста в истории.
const (
	OriginGesture = "gesture"
	OriginManual  = "manual"
	OriginSwap    = "swap"
)

var (
	ErrInvalidText    = errors.New("translator: no valid text to translate")
	ErrSpeechDisabled = errors.New("translator: speech is disabled")
	ErrNothingToSpeak = errors.New("translator: nothing to speak")
)

// Event сообщение интерфейсу.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Broadcaster interface {
	Broadcast(Event)
}

type Translator interface {
	CanTranslate() bool
	Translate(ctx context.Context, text string) (translate.Result, error)
}

type SettingsStore interface {
	Get() settings.Settings
	Update(fn func(*settings.Settings)) error
}

type History interface {
	SaveTranslation(t *storage.Translation) error
}

type ClipboardReader interface {
	ReadText() (string, error)
}

type Notifier interface {
	PlayActivation(ctx context.Context) error
}

type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// Deps зависимости App. History, Notifier и Speaker необязательны.
type Deps struct {
	Translator Translator
	Settings   SettingsStore
	Clipboard  ClipboardReader
	Events     Broadcaster
	History    History
	Notifier   Notifier
	Speaker    Speaker
}

// Last последний удачный перевод.
type Last struct {
	SourceText     string    `json:"sourceText"`
	TranslatedText string    `json:"translatedText"`
	Provider       string    `json:"provider"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	At             time.Time `json:"at"`
}

type App struct {
	deps   Deps
	logger *zap.SugaredLogger

	mu   sync.Mutex
	last *Last
}

func New(deps Deps, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{deps: deps, logger: logger}
}

// Sink обработчик срабатывания жеста. ctx ограничивает фоновую работу по переводу.
func (a *App) Sink(ctx context.Context) gesture.ActivationSink {
	return gesture.ActivationFunc(func(text string) {
		if _, err := a.Activate(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warnw("Activation handling failed", "error", err)
		}
	})
}

// Activate сценарий после тройного копирования.
func (a *App) Activate(ctx context.Context, text string) (translate.Result, error) {
	if a.deps.Notifier != nil {
		go func() { _ = a.deps.Notifier.PlayActivation(ctx) }()
	}

	if !textclean.IsValid(text) && a.deps.Clipboard != nil {
		// буфер мог успеть обновиться после снимка
		a.logger.Infow("Activation text invalid, re-reading clipboard", "chars", len([]rune(text)))
		if fresh, err := a.deps.Clipboard.ReadText(); err != nil {
			a.logger.Warnw("Clipboard re-read failed", "error", err)
		} else {
			text = fresh
		}
	}
	if !textclean.IsValid(text) {
		a.emit(EventError, map[string]string{
			"code":    "invalid_text",
			"message": "could not get valid clipboard text, copy it again",
		})
		return translate.Result{}, ErrInvalidText
	}

	clean := textclean.RemoveDuplicates(text)
	if clean != strings.TrimSpace(text) {
		a.logger.Infow("Text cleaned", "from", len([]rune(text)), "to", len([]rune(clean)))
	}
	return a.run(ctx, clean, OriginGesture)
}

// Translate переводит текст, присланный интерфейсом.
func (a *App) Translate(ctx context.Context, text string) (translate.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return translate.Result{}, ErrInvalidText
	}
	return a.run(ctx, text, OriginManual)
}

// SwapLanguages меняет языки местами и переводит последний перевод обратно.
// При автоопределении языка ничего не делает.
func (a *App) SwapLanguages(ctx context.Context) (settings.Settings, error) {
	cur := a.deps.Settings.Get()
	if cur.SourceLanguage == settings.AutoLanguage {
		return cur, nil
	}
	err := a.deps.Settings.Update(func(s *settings.Settings) {
		s.SourceLanguage, s.TargetLanguage = s.TargetLanguage, s.SourceLanguage
	})
	if err != nil {
		return cur, fmt.Errorf("failed to swap languages: %w", err)
	}
	next := a.deps.Settings.Get()
	a.emit(EventLanguages, map[string]string{
		"sourceLanguage": next.SourceLanguage,
		"targetLanguage": next.TargetLanguage,
	})

	if last := a.Last(); last != nil && last.TranslatedText != "" {
		if _, err := a.run(ctx, last.TranslatedText, OriginSwap); err != nil {
			return next, err
		}
	}
	return next, nil
}

// Speak озвучивает text, а при пустом text последний перевод.
func (a *App) Speak(ctx context.Context, text string) error {
	if a.deps.Speaker == nil {
		return ErrSpeechDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		if last := a.Last(); last != nil {
			text = last.TranslatedText
		}
	}
	if text == "" {
		return ErrNothingToSpeak
	}
	return a.deps.Speaker.Speak(ctx, text, a.deps.Settings.Get().TargetLanguage)
}

func (a *App) Last() *Last {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return nil
	}
	l := *a.last
	return &l
}

func (a *App) run(ctx context.Context, text, origin string) (translate.Result, error) {
	a.emit(EventSource, map[string]string{"text": text, "origin": origin})

	if !a.deps.Translator.CanTranslate() {
		a.emit(EventWarning, map[string]string{
			"code":    "no_api_keys",
			"message": "Please add OpenAI or Gemini API key in settings to use translation.",
		})
		return translate.Result{}, translate.ErrNoProviders
	}

	a.emit(EventTranslating, nil)
	res, err := a.deps.Translator.Translate(ctx, text)
	if err != nil {
		a.logger.Errorw("Translation failed", "origin", origin, "error", err)
		a.emit(EventError, map[string]string{
			"code":    "translation_failed",
			"message": "Translation failed. Please check your API keys and connection.",
		})
		return translate.Result{}, err
	}

	cfg := a.deps.Settings.Get()
	last := &Last{
		SourceText:     text,
		TranslatedText: res.Text,
		Provider:       res.Provider,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
		At:             time.Now(),
	}
	a.mu.Lock()
	a.last = last
	a.mu.Unlock()

	a.emit(EventTranslation, last)

	if a.deps.History != nil {
		rec := &storage.Translation{
			CreatedAt:      last.At,
			SourceText:     text,
			TranslatedText: res.Text,
			SourceLanguage: cfg.SourceLanguage,
			TargetLanguage: cfg.TargetLanguage,
			Origin:         origin,
			Provider:       res.Provider,
			ResponseTimeMs: last.ResponseTimeMs,
		}
		if err := a.deps.History.SaveTranslation(rec); err != nil {
			a.logger.Warnw("Failed to save translation", "error", err)
		}
	}
	return res, nil
}

func (a *App) emit(typ string, data any) {
	if a.deps.Events == nil {
		return
	}
	a.deps.Events.Broadcast(Event{Type: typ, Data: data})
}
