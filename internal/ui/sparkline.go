package ui

import "strings"

// Sparkline renders recent throughput samples as Unicode block bars.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding width samples.
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add appends a sample, overwriting the oldest once full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++
}

// Clear resets the sparkline.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
}

// Count returns the number of samples added.
func (s *Sparkline) Count() int { return s.count }

// recent returns up to n stored samples, oldest first.
func (s *Sparkline) recent(n int) []float64 {
	stored := min(s.count, s.width)
	n = min(n, stored)
	out := make([]float64, 0, n)
	// Index of the oldest stored sample.
	start := 0
	if s.count >= s.width {
		start = s.head
	}
	for i := stored - n; i < stored; i++ {
		out = append(out, s.samples[(start+i)%s.width])
	}
	return out
}

// Render draws all stored samples at full width.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.width)
}

// RenderWithWidth draws the most recent width samples, left-padded with
// the lowest bar when fewer samples exist. Bars scale to the visible max.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > s.width {
		width = s.width
	}
	vals := s.recent(width)

	peak := 1.0
	for _, v := range vals {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	for range width - len(vals) {
		sb.WriteRune(SparklineChars[0])
	}
	top := len(SparklineChars) - 1
	for _, v := range vals {
		idx := int(v / peak * float64(top))
		idx = max(0, min(idx, top))
		sb.WriteRune(SparklineChars[idx])
	}
	return sb.String()
}
