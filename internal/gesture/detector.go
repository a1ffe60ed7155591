package gesture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type cmdKind int

const (
	cmdTick cmdKind = iota + 1
	cmdKeyCombo
	cmdCheck
	cmdOverride
	cmdEnable
	cmdDisable
	cmdWindow
	cmdSnapshot
)

type command struct {
	kind   cmdKind
	at     time.Time
	epoch  uint64
	id     uint64
	window time.Duration
	reply  chan State
}

// Detector объединяет опрос буфера обмена и наблюдение за Ctrl+C в один жест «тройное копирование».
// Всё состояние принадлежит горутине Run; остальные методы только ставят команды в очередь.
type Detector struct {
	clip   ClipboardReader
	timers TimerSource
	sink   ActivationSink
	logger *zap.SugaredLogger

	pollInterval  time.Duration
	keyComboDelay time.Duration
	startEnabled  bool

	inbox   chan command
	done    chan struct{}
	running atomic.Bool

	// состояние, изменяется только в Run
	count    int
	lastAt   time.Time
	window   time.Duration
	lastText string
	enabled  bool
	epoch    uint64 // растёт при каждом выключении, устаревшие команды отбрасываются
	stopPoll CancelFunc
	checks   map[uint64]CancelFunc
	nextID   uint64
}

// New создаёт детектор. timers и logger могут быть nil.
func New(cfg Config, clip ClipboardReader, timers TimerSource, sink ActivationSink, logger *zap.SugaredLogger) *Detector {
	if timers == nil {
		timers = SystemTimers{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.KeyComboDelay < 0 {
		cfg.KeyComboDelay = 0
	}
	return &Detector{
		clip:          clip,
		timers:        timers,
		sink:          sink,
		logger:        logger,
		pollInterval:  cfg.PollInterval,
		keyComboDelay: cfg.KeyComboDelay,
		startEnabled:  cfg.Enabled,
		inbox:         make(chan command, 64),
		done:          make(chan struct{}),
		window:        cfg.Window,
		checks:        make(map[uint64]CancelFunc),
	}
}

// Run обрабатывает сигналы до отмены контекста. Повторный запуск не поддерживается.
func (d *Detector) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("gesture: detector already running")
	}
	defer close(d.done)
	defer d.teardown()

	if d.startEnabled {
		d.enable()
	}
	d.logger.Infow("Gesture detector started",
		"enabled", d.enabled,
		"window", d.window.String(),
		"poll", d.pollInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Infow("Gesture detector stopped")
			return context.Cause(ctx)
		case c := <-d.inbox:
			d.handle(c)
		}
	}
}

// OnKeyCombo сообщает, что пользователь нажал Ctrl+C / Cmd+C.
// Не блокирует: вызывается из системного хука клавиатуры.
func (d *Detector) OnKeyCombo() {
	select {
	case d.inbox <- command{kind: cmdKeyCombo}:
	default:
		// очередь переполнена: опрос всё равно заметит изменение
	}
}

// Trigger ручная активация в обход счётчика.
func (d *Detector) Trigger() {
	d.post(command{kind: cmdOverride})
}

// SetEnabled включает или выключает распознавание жеста.
func (d *Detector) SetEnabled(on bool) {
	if on {
		d.post(command{kind: cmdEnable})
		return
	}
	d.post(command{kind: cmdDisable})
}

// SetWindow меняет окно жеста. Применяется со следующего сигнала.
func (d *Detector) SetWindow(window time.Duration) error {
	if window <= 0 {
		return fmt.Errorf("gesture: window must be positive, got %s", window)
	}
	d.post(command{kind: cmdWindow, window: window})
	return nil
}

// Snapshot возвращает текущее состояние. Блокирует, пока Run не обработает запрос.
func (d *Detector) Snapshot() State {
	reply := make(chan State, 1)
	if !d.post(command{kind: cmdSnapshot, reply: reply}) {
		return State{}
	}
	select {
	case s := <-reply:
		return s
	case <-d.done:
		select {
		case s := <-reply:
			return s
		default:
			return State{}
		}
	}
}

func (d *Detector) post(c command) bool {
	select {
	case d.inbox <- c:
		return true
	case <-d.done:
		return false
	}
}

func (d *Detector) postTick(epoch uint64) {
	select {
	case d.inbox <- command{kind: cmdTick, at: d.timers.Now(), epoch: epoch}:
	default:
		// следующий тик догонит
	}
}

func (d *Detector) handle(c command) {
	switch c.kind {
	case cmdTick:
		if !d.enabled || c.epoch != d.epoch {
			return
		}
		d.checkClipboard(c.at, "poll")
	case cmdKeyCombo:
		if !d.enabled {
			return
		}
		d.scheduleCheck()
	case cmdCheck:
		if _, ok := d.checks[c.id]; !ok {
			return
		}
		delete(d.checks, c.id)
		if !d.enabled || c.epoch != d.epoch {
			return
		}
		d.checkClipboard(c.at, "key-combo")
	case cmdOverride:
		d.fire(d.lastText, "override")
	case cmdEnable:
		if !d.enabled {
			d.enable()
			d.logger.Infow("Gesture detection enabled")
		}
	case cmdDisable:
		if d.enabled {
			d.disable()
			d.logger.Infow("Gesture detection disabled")
		}
	case cmdWindow:
		if c.window != d.window {
			d.logger.Infow("Gesture window changed", "from", d.window.String(), "to", c.window.String())
			d.window = c.window
		}
	case cmdSnapshot:
		c.reply <- d.snapshot(d.timers.Now())
	}
}

func (d *Detector) scheduleCheck() {
	d.nextID++
	id, epoch := d.nextID, d.epoch
	d.checks[id] = d.timers.ScheduleOnce(d.keyComboDelay, func() {
		d.post(command{kind: cmdCheck, at: d.timers.Now(), epoch: epoch, id: id})
	})
}

// checkClipboard сравнивает буфер с последним известным значением и обновляет его.
// Опрос и проверка после Ctrl+C проходят через эту функцию в одной горутине,
// поэтому одно изменение буфера не может быть посчитано дважды.
func (d *Detector) checkClipboard(at time.Time, source string) {
	text, err := d.read()
	if err != nil {
		d.logger.Warnw("Clipboard read failed", "source", source, "error", err)
		return
	}
	if text == d.lastText {
		return
	}
	d.lastText = text
	d.recordSignal(at, source)
}

func (d *Detector) recordSignal(at time.Time, source string) {
	if d.count == 0 || at.Sub(d.lastAt) > d.window {
		d.count = 1
	} else {
		d.count++
	}
	d.lastAt = at
	d.logger.Debugw("Copy signal", "count", d.count, "source", source)

	if d.count >= Threshold {
		// сброс до вызова колбэка: ошибки потребителя не влияют на счётчик
		d.count = 0
		d.fire(d.lastText, source)
	}
}

func (d *Detector) fire(text, source string) {
	d.logger.Infow("Gesture activated", "source", source, "chars", len([]rune(text)))
	if d.sink == nil {
		return
	}
	sink := d.sink
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Errorw("Activation callback panicked", "panic", r)
			}
		}()
		sink.OnActivate(text)
	}()
}

func (d *Detector) read() (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("clipboard reader panic: %v", r)
		}
	}()
	return d.clip.ReadText()
}

func (d *Detector) enable() {
	// свежая база, иначе старое содержимое буфера сработает как сигнал
	if text, err := d.read(); err != nil {
		d.logger.Warnw("Failed to read clipboard baseline", "error", err)
	} else {
		d.lastText = text
	}
	d.enabled = true
	epoch := d.epoch
	d.stopPoll = d.timers.SchedulePeriodic(d.pollInterval, func() { d.postTick(epoch) })
}

func (d *Detector) disable() {
	d.enabled = false
	d.epoch++
	if d.stopPoll != nil {
		d.stopPoll()
		d.stopPoll = nil
	}
	for id, cancel := range d.checks {
		cancel()
		delete(d.checks, id)
	}
	d.count = 0
}

func (d *Detector) teardown() {
	if d.enabled {
		d.disable()
	}
}

func (d *Detector) snapshot(now time.Time) State {
	count := d.count
	if count > 0 && now.Sub(d.lastAt) > d.window {
		// жест истёк, новый сигнал начнёт отсчёт заново
		count = 0
	}
	return State{
		Count:      count,
		LastCopyAt: d.lastAt,
		Window:     d.window,
		LastText:   d.lastText,
		Enabled:    d.enabled,
	}
}
