package translate

import "time"

// latencyWindow последние N успешных времён ответа провайдера.
// Не потокобезопасен, защищается мьютексом Service.
type latencyWindow struct {
	cap     int
	samples []time.Duration
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = LatencyWindowSize
	}
	return &latencyWindow{cap: capacity, samples: make([]time.Duration, 0, capacity)}
}

// Add добавляет замер, при переполнении удаляет самый старый.
func (w *latencyWindow) Add(d time.Duration) {
	if len(w.samples) == w.cap {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:w.cap-1]
	}
	w.samples = append(w.samples, d)
}

func (w *latencyWindow) Len() int { return len(w.samples) }

// Average среднее по окну, 0 для пустого окна.
func (w *latencyWindow) Average() time.Duration {
	if len(w.samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range w.samples {
		sum += s
	}
	return sum / time.Duration(len(w.samples))
}
