package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/huhai586/translator/internal/gesture"
	"github.com/huhai586/translator/internal/platform"
	"github.com/huhai586/translator/internal/textclean"
)

func main() {
	// Отладка жеста без перевода: печатаем срабатывания в консоль
	window := flag.Duration("window", gesture.DefaultWindow, "максимальный интервал между копированиями (например, 1200ms)")
	poll := flag.Duration("poll", gesture.DefaultPollInterval, "период опроса буфера обмена")
	delay := flag.Duration("key-combo-delay", gesture.DefaultKeyComboDelay, "задержка проверки буфера после Ctrl+C")
	hotkey := flag.String("hotkey", "ctrl+shift+q", "горячая клавиша ручной активации")
	verbose := flag.Bool("v", false, "печатать каждый сигнал копирования")
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	sugar := logger.Sugar()
	defer func() { _ = logger.Sync() }()

	fmt.Println("Программа запущена")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := gesture.New(gesture.Config{
		Enabled:       true,
		Window:        *window,
		PollInterval:  *poll,
		KeyComboDelay: *delay,
	}, platform.NewClipboardReader(), nil, gesture.ActivationFunc(func(text string) {
		ts := time.Now().Format("15:04:05.000")
		if !textclean.IsValid(text) {
			fmt.Printf("[GESTURE %s] текст не подходит для перевода\n", ts)
			return
		}
		fmt.Printf("[GESTURE %s] %s\n", ts, preview(textclean.RemoveDuplicates(text), 500))
	}), sugar)

	combo, err := platform.ParseHotkey(*hotkey)
	if err != nil {
		fmt.Printf("Неверная горячая клавиша: %v\n", err)
		os.Exit(2)
	}
	go func() {
		err := platform.NewListener(combo, sugar).Run(ctx, platform.Handlers{
			OnCopyCombo: d.OnKeyCombo,
			OnOverride:  d.Trigger,
		})
		if errors.Is(err, platform.ErrUnsupported) {
			fmt.Println("Хук клавиатуры недоступен, только опрос буфера")
		}
	}()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("Детектор завершился с ошибкой: %v\n", err)
	}
}

func preview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
