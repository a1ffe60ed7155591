package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/app/translator"
	"github.com/huhai586/translator/internal/config"
	"github.com/huhai586/translator/internal/gesture"
	"github.com/huhai586/translator/internal/platform"
	"github.com/huhai586/translator/internal/service/notify"
	"github.com/huhai586/translator/internal/service/player"
	"github.com/huhai586/translator/internal/service/speech"
	"github.com/huhai586/translator/internal/settings"
	"github.com/huhai586/translator/internal/storage"
	"github.com/huhai586/translator/internal/translate"
	"github.com/huhai586/translator/internal/web"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			sugar.Errorw("Failed to sync logger", "error", err)
		}
	}()

	if err := run(cfg, sugar); err != nil {
		sugar.Errorw("Translator stopped with error", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, sugar *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sugar.Infow("Starting translator",
		"DebugMode", cfg.DebugMode,
		"settings", cfg.SettingsPath,
		"history", cfg.HistoryEnabled,
	)

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return err
	}
	current := store.Get()

	// Перевод
	svc := translate.NewService(translate.Options{
		OpenAIBaseURL:  cfg.Translation.OpenAIBaseURL,
		GeminiEndpoint: cfg.Translation.GeminiEndpoint,
		GeminiUseADC:   cfg.Translation.GeminiUseADC,
		Timeout:        cfg.Translation.Timeout,
	}, sugar.Named("translate"))
	svc.Configure(current)

	// История
	var db *storage.DB
	if cfg.HistoryEnabled {
		db, err = storage.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer db.Close()
		for _, name := range []string{translate.ProviderOpenAI, translate.ProviderGemini} {
			samples, err := db.RecentLatencies(name, translate.LatencyWindowSize)
			if err != nil {
				sugar.Warnw("Failed to load provider latencies", "provider", name, "error", err)
				continue
			}
			svc.Seed(name, samples)
		}
	}

	// Звук и озвучка
	ply := player.New()
	notifier := notify.NewSoundNotifier(sugar.Named("notify"), cfg.NotificationSoundPath, ply)

	deps := translator.Deps{
		Translator: svc,
		Settings:   store,
		Clipboard:  platform.NewClipboardReader(),
	}
	if db != nil {
		deps.History = db
	}
	if notifier.Enabled() {
		deps.Notifier = notifier
	}
	if cfg.Speech.Enabled {
		spk := speech.New(speech.Config{Voice: cfg.Speech.Voice, SpeakingRate: cfg.Speech.SpeakingRate}, ply, sugar.Named("speech"))
		defer spk.Close()
		deps.Speaker = spk
	}

	var hub *web.Hub
	if cfg.Server.Enabled {
		hub = web.NewHub(sugar.Named("ws"))
		deps.Events = hub
	}
	app := translator.New(deps, sugar.Named("app"))

	detector := gesture.New(gesture.Config{
		Enabled:       current.TripleCopyEnabled,
		Window:        time.Duration(current.TripleCopyDelayMs) * time.Millisecond,
		PollInterval:  cfg.PollInterval,
		KeyComboDelay: cfg.KeyComboDelay,
	}, deps.Clipboard, nil, app.Sink(ctx), sugar.Named("gesture"))

	if cfg.Server.Enabled {
		webDeps := web.Deps{
			App:       app,
			Detector:  detector,
			Settings:  store,
			Providers: svc,
			Hub:       hub,
		}
		if db != nil {
			webDeps.History = db
		}
		server := web.NewServer(cfg.Server, webDeps, sugar.Named("web"))
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("failed to start web server: %w", err)
		}
		defer func() { _ = server.Stop(context.Background()) }()
	}

	// Настройки применяются на лету, кроме горячей клавиши
	store.Subscribe(func(s settings.Settings) {
		detector.SetEnabled(s.TripleCopyEnabled)
		if err := detector.SetWindow(time.Duration(s.TripleCopyDelayMs) * time.Millisecond); err != nil {
			sugar.Warnw("Invalid gesture window", "error", err)
		}
		svc.Configure(s)
	})

	startListener(ctx, current.OverrideHotkey, detector, sugar)

	if !svc.CanTranslate() {
		sugar.Warnw("No API keys configured, translation is unavailable until keys are added")
	}

	err = detector.Run(ctx)
	if errors.Is(err, context.Canceled) {
		sugar.Infow("Translator stopped")
		return nil
	}
	return err
}

// startListener подключает системный Ctrl+C и горячую клавишу ручного перевода.
// Без хука детектор работает только на опросе буфера.
func startListener(ctx context.Context, hotkey string, d *gesture.Detector, sugar *zap.SugaredLogger) {
	combo, err := platform.ParseHotkey(hotkey)
	if err != nil {
		sugar.Warnw("Invalid override hotkey, using default", "hotkey", hotkey, "error", err)
		combo, _ = platform.ParseHotkey(settings.DefaultOverrideHotkey)
	}
	listener := platform.NewListener(combo, sugar.Named("platform"))
	go func() {
		err := listener.Run(ctx, platform.Handlers{
			OnCopyCombo: d.OnKeyCombo,
			OnOverride:  d.Trigger,
		})
		switch {
		case errors.Is(err, platform.ErrUnsupported):
			sugar.Infow("Keyboard hook is not supported on this platform, clipboard polling only")
		case err != nil && !errors.Is(err, context.Canceled):
			sugar.Warnw("Keyboard listener stopped", "error", err)
		}
	}()
}
