package illum

import "fmt"

type sample struct {
	idx  int
	prob float64
}

// History is a fixed size ring of (illuminant, probability) samples.
// Once full, each push evicts the oldest sample.
type History struct {
	ring []sample
	head int // oldest sample
	size int
}

func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{ring: make([]sample, capacity)}
}

func (h *History) Push(idx int, prob float64) {
	if len(h.ring) == 0 {
		return
	}
	if h.size < len(h.ring) {
		h.ring[(h.head+h.size)%len(h.ring)] = sample{idx, prob}
		h.size++
		return
	}
	h.ring[h.head] = sample{idx, prob}
	h.head = (h.head + 1) % len(h.ring)
}

func (h *History) Len() int   { return h.size }
func (h *History) Cap() int   { return len(h.ring) }
func (h *History) Full() bool { return len(h.ring) > 0 && h.size == len(h.ring) }
func (h *History) Reset()     { h.head, h.size = 0, 0 }

// Mean sums the probability recorded for each of the n illuminants, and
// divides by the number of frames the samples span.
func (h *History) Mean(n, frames int) []float64 {
	out := make([]float64, n)
	if frames <= 0 {
		return out
	}
	for i := 0; i < h.size; i++ {
		s := h.ring[(h.head+i)%len(h.ring)]
		if s.idx >= 0 && s.idx < n {
			out[s.idx] += s.prob
		}
	}
	for i := range out {
		out[i] /= float64(frames)
	}
	return out
}

func (h *History) String() string {
	return fmt.Sprintf("history[%d/%d]", h.size, len(h.ring))
}
