package gesture

import (
	"sync"
	"time"
)

// CancelFunc отменяет запланированный вызов. Повторный вызов безопасен.
type CancelFunc func()

// TimerSource источник времени и таймеров. Колбэки вызываются в произвольной горутине.
type TimerSource interface {
	Now() time.Time
	SchedulePeriodic(interval time.Duration, fn func()) CancelFunc
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
}

// SystemTimers реализация TimerSource на пакете time.
type SystemTimers struct{}

func (SystemTimers) Now() time.Time { return time.Now() }

func (SystemTimers) SchedulePeriodic(interval time.Duration, fn func()) CancelFunc {
	t := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

func (SystemTimers) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}
