package gesture

import (
	"time"
)

// Threshold сколько сигналов копирования подряд составляют жест.
const Threshold = 3

const (
	// DefaultWindow максимальный интервал между соседними сигналами одного жеста
	DefaultWindow = 1200 * time.Millisecond
	// DefaultPollInterval период опроса буфера обмена (не настраивается пользователем)
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultKeyComboDelay задержка перепроверки буфера после Ctrl+C, чтобы ОС успела записать данные
	DefaultKeyComboDelay = 50 * time.Millisecond
)

// WindowPresets значения окна, которые предлагает UI. Допустимо любое положительное.
var WindowPresets = []time.Duration{
	800 * time.Millisecond,
	1000 * time.Millisecond,
	1200 * time.Millisecond,
	1500 * time.Millisecond,
}

// ClipboardReader читает текущий текст буфера обмена. Ошибка трактуется как «без изменений».
type ClipboardReader interface {
	ReadText() (string, error)
}

// ActivationSink получает текст буфера при срабатывании жеста.
type ActivationSink interface {
	OnActivate(text string)
}

// ActivationFunc адаптирует функцию к ActivationSink.
type ActivationFunc func(text string)

func (f ActivationFunc) OnActivate(text string) { f(text) }

// Config параметры детектора.
type Config struct {
	Enabled       bool
	Window        time.Duration
	PollInterval  time.Duration
	KeyComboDelay time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Window:        DefaultWindow,
		PollInterval:  DefaultPollInterval,
		KeyComboDelay: DefaultKeyComboDelay,
	}
}

// State снимок состояния детектора.
type State struct {
	Count      int           `json:"count"`
	LastCopyAt time.Time     `json:"lastCopyAt"`
	Window     time.Duration `json:"window"`
	LastText   string        `json:"-"`
	Enabled    bool          `json:"enabled"`
}
