package ui

import "strings"

// SparklineChars are the block characters used for sparklines, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps the most recent samples of a rate and renders them as a
// row of block characters scaled to the largest retained sample.
type Sparkline struct {
	samples []float64
	head    int // next write position
	count   int
}

// NewSparkline creates a sparkline holding up to size samples.
func NewSparkline(size int) *Sparkline {
	if size <= 0 {
		size = 60
	}
	return &Sparkline{samples: make([]float64, size)}
}

// Add records a sample, evicting the oldest when full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % len(s.samples)
	s.count++
}

// Count returns the number of samples added since the last Clear.
func (s *Sparkline) Count() int {
	return s.count
}

// Max returns the largest retained sample, at least 1.
func (s *Sparkline) Max() float64 {
	m := 1.0
	for _, v := range s.recent(len(s.samples)) {
		m = max(m, v)
	}
	return m
}

// Clear drops all samples.
func (s *Sparkline) Clear() {
	clear(s.samples)
	s.head = 0
	s.count = 0
}

// Render returns the sparkline at its full size.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(len(s.samples))
}

// RenderWithWidth renders the newest width samples, oldest on the left.
// Missing samples are padded with spaces on the right.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 || width > len(s.samples) {
		width = len(s.samples)
	}
	if s.count == 0 {
		return strings.Repeat(string(SparklineChars[0]), width)
	}

	top := s.Max()
	levels := len(SparklineChars) - 1

	var sb strings.Builder
	sb.Grow(width * 3)
	values := s.recent(width)
	for _, v := range values {
		idx := min(max(int(v/top*float64(levels)), 0), levels)
		sb.WriteRune(SparklineChars[idx])
	}
	sb.WriteString(strings.Repeat(" ", width-len(values)))
	return sb.String()
}

// recent returns up to n of the newest samples in insertion order.
func (s *Sparkline) recent(n int) []float64 {
	size := len(s.samples)
	have := min(s.count, size)
	n = min(n, have)

	out := make([]float64, n)
	first := (s.head - n + size) % size
	for i := range n {
		out[i] = s.samples[(first+i)%size]
	}
	return out
}
