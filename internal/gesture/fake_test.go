package gesture

import (
	"sync"
	"time"
)

// fakeTimers управляемое вручную время. Advance вызывает созревшие колбэки по порядку.
type fakeTimers struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*fakeTask
}

type fakeTask struct {
	due       time.Time
	every     time.Duration
	fn        func()
	cancelled bool
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeTimers) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTimers) SchedulePeriodic(interval time.Duration, fn func()) CancelFunc {
	return f.add(&fakeTask{every: interval, fn: fn}, interval)
}

func (f *fakeTimers) ScheduleOnce(delay time.Duration, fn func()) CancelFunc {
	return f.add(&fakeTask{fn: fn}, delay)
}

func (f *fakeTimers) add(task *fakeTask, after time.Duration) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	task.due = f.now.Add(after)
	f.tasks = append(f.tasks, task)
	return func() {
		f.mu.Lock()
		task.cancelled = true
		f.mu.Unlock()
	}
}

func (f *fakeTimers) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	for {
		f.mu.Lock()
		var next *fakeTask
		for _, task := range f.tasks {
			if task.cancelled || task.due.After(target) {
				continue
			}
			if next == nil || task.due.Before(next.due) {
				next = task
			}
		}
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.due
		if next.every > 0 {
			next.due = next.due.Add(next.every)
		} else {
			next.cancelled = true
		}
		fn := next.fn
		f.mu.Unlock()
		fn()
	}
}

// active возвращает число неотменённых задач.
func (f *fakeTimers) active() (periodic, once int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range f.tasks {
		if task.cancelled {
			continue
		}
		if task.every > 0 {
			periodic++
		} else {
			once++
		}
	}
	return periodic, once
}

type fakeClipboard struct {
	mu    sync.Mutex
	text  string
	err   error
	reads int
}

func (c *fakeClipboard) ReadText() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func (c *fakeClipboard) Set(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *fakeClipboard) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
