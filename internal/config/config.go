package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	DebugMode      bool          `env:"DEBUG_MODE"`              // Режим дебага: development-логгер и уровень debug
	SettingsPath   string        `env:"SETTINGS_PATH"`           // Путь к TOML с пользовательскими настройками
	DataDir        string        `env:"DATA_DIR"`                // Папка для истории переводов (sqlite)
	HistoryEnabled bool          `env:"HISTORY_ENABLED"`         // Сохранять ли переводы в историю
	PollInterval   time.Duration `env:"CLIPBOARD_POLL_INTERVAL"` // Период опроса буфера обмена
	KeyComboDelay  time.Duration `env:"KEY_COMBO_DELAY"`         // Задержка перепроверки буфера после Ctrl+C

	// Звук при срабатывании жеста (mp3|wav). Пусто: без звука
	NotificationSoundPath string `env:"NOTIFICATION_SOUND_PATH"`

	Server      ServerConfig
	Translation TranslationConfig
	Speech      SpeechConfig
}

// ServerConfig локальный HTTP/WebSocket интерфейс для UI.
type ServerConfig struct {
	Enabled  bool   `env:"SERVER_ENABLED"`
	BindAddr string `env:"SERVER_BIND_ADDR"` // напр. 127.0.0.1:3002
}

// TranslationConfig параметры доступа к провайдерам, не хранящиеся в пользовательских настройках.
type TranslationConfig struct {
	OpenAIBaseURL  string        `env:"OPENAI_BASE_URL"` // Пусто: официальный API
	GeminiEndpoint string        `env:"GEMINI_ENDPOINT"` // Базовый URL generativelanguage API
	GeminiUseADC   bool          `env:"GEMINI_USE_ADC"`  // Без API-ключа использовать Application Default Credentials
	Timeout        time.Duration `env:"TRANSLATION_TIMEOUT"`
}

// SpeechConfig озвучка перевода через Google Cloud Text-to-Speech.
type SpeechConfig struct {
	Enabled      bool    `env:"SPEECH_ENABLED"`
	Voice        string  `env:"SPEECH_VOICE"` // Пусто: голос по умолчанию для языка
	SpeakingRate float64 `env:"SPEECH_SPEAKING_RATE"`
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	dir := defaultDir()
	return &Config{
		DebugMode:      false,
		SettingsPath:   filepath.Join(dir, "settings.toml"),
		DataDir:        dir,
		HistoryEnabled: true,
		PollInterval:   100 * time.Millisecond,
		KeyComboDelay:  50 * time.Millisecond,
		Server: ServerConfig{
			Enabled:  true,
			BindAddr: "127.0.0.1:3002",
		},
		Translation: TranslationConfig{
			GeminiEndpoint: "https://generativelanguage.googleapis.com/v1",
			Timeout:        30 * time.Second,
		},
		Speech: SpeechConfig{
			SpeakingRate: 1.0,
		},
	}
}

// NewConfig загружает конфигурацию приложения из .env, окружения и аргументов командной строки.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.Args[1:])
}

// Load стартует с дефолтов, затем перекрывает окружением и флагами из args.
func Load(args []string) (*Config, error) {
	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	fs := flag.NewFlagSet("translator", flag.ContinueOnError)
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	fs.StringVar(&cfg.SettingsPath, "settings-path", cfg.SettingsPath, "путь к файлу пользовательских настроек (TOML)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "папка для истории переводов")
	fs.BoolVar(&cfg.HistoryEnabled, "history-enabled", cfg.HistoryEnabled, "сохранять переводы в историю")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "период опроса буфера обмена, напр. 100ms")
	fs.DurationVar(&cfg.KeyComboDelay, "key-combo-delay", cfg.KeyComboDelay, "задержка проверки буфера после Ctrl+C, напр. 50ms")
	fs.StringVar(&cfg.NotificationSoundPath, "notification-sound-path", cfg.NotificationSoundPath, "звук при срабатывании жеста (mp3 или wav)")
	// Сервер
	fs.BoolVar(&cfg.Server.Enabled, "server-enabled", cfg.Server.Enabled, "включить локальный HTTP/WebSocket интерфейс")
	fs.StringVar(&cfg.Server.BindAddr, "server-bind-addr", cfg.Server.BindAddr, "адрес локального интерфейса")
	// Перевод
	fs.StringVar(&cfg.Translation.OpenAIBaseURL, "openai-base-url", cfg.Translation.OpenAIBaseURL, "базовый URL OpenAI API")
	fs.StringVar(&cfg.Translation.GeminiEndpoint, "gemini-endpoint", cfg.Translation.GeminiEndpoint, "базовый URL Gemini API")
	fs.BoolVar(&cfg.Translation.GeminiUseADC, "gemini-use-adc", cfg.Translation.GeminiUseADC, "Gemini через Application Default Credentials, если нет ключа")
	fs.DurationVar(&cfg.Translation.Timeout, "translation-timeout", cfg.Translation.Timeout, "таймаут одного запроса перевода")
	// Озвучка
	fs.BoolVar(&cfg.Speech.Enabled, "speech-enabled", cfg.Speech.Enabled, "включить озвучку перевода (Google TTS)")
	fs.StringVar(&cfg.Speech.Voice, "speech-voice", cfg.Speech.Voice, "имя голоса Google TTS")
	fs.Float64Var(&cfg.Speech.SpeakingRate, "speech-speaking-rate", cfg.Speech.SpeakingRate, "скорость речи (1.0 по умолчанию)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.KeyComboDelay < 0 {
		errs = append(errs, fmt.Errorf("key combo delay must not be negative, got %s", c.KeyComboDelay))
	}
	if c.Translation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("translation timeout must be positive, got %s", c.Translation.Timeout))
	}
	if strings.TrimSpace(c.SettingsPath) == "" {
		errs = append(errs, errors.New("settings path is empty"))
	}
	if c.HistoryEnabled && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data dir is empty while history is enabled"))
	}
	if c.Server.Enabled && strings.TrimSpace(c.Server.BindAddr) == "" {
		errs = append(errs, errors.New("server bind addr is empty"))
	}
	return errors.Join(errs...)
}

// defaultDir папка приложения в пользовательском каталоге конфигурации.
func defaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = "."
	}
	return filepath.Join(base, "clip-translator")
}
