package pipeline

import (
	"sync"
	"time"
)

const historySize = 100

// Metrics is a copy of the collector's counters, safe to serialise.
type Metrics struct {
	Frames         uint64 `json:"frames"`
	Faces          uint64 `json:"faces"`
	CaptureErrors  uint64 `json:"capture_errors"`
	AgeFailures    uint64 `json:"age_failures"`
	GenderFailures uint64 `json:"gender_failures"`

	Last    Timings `json:"last"`
	Average Timings `json:"average"`

	FPS    float64       `json:"fps"`
	Uptime time.Duration `json:"uptime_ns"`
}

// MetricsCollector tracks counters and stage latencies across ticks.
// It is goroutine-safe; the loop writes and the web view reads.
type MetricsCollector struct {
	mu       sync.Mutex
	current  Metrics
	history  []Timings   // Recent ticks for averaging
	ticks    []time.Time // Recent tick times for FPS
	started  time.Time
	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Timings, 0, historySize),
		ticks:   make([]time.Time, 0, historySize),
		started: time.Now(),
	}
}

// OnUpdate sets a callback that fires after every recorded tick.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Reset clears everything; called at the start of a run.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{}
	m.history = m.history[:0]
	m.ticks = m.ticks[:0]
	m.started = time.Now()
}

// Record adds one completed tick.
func (m *MetricsCollector) Record(res TickResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.Frames++
	m.current.Faces += uint64(len(res.Faces))
	for _, f := range res.Faces {
		if f.AgeErr != nil {
			m.current.AgeFailures++
		}
		if f.GenderErr != nil {
			m.current.GenderFailures++
		}
	}
	m.current.Last = res.Timings

	m.history = append(m.history, res.Timings)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}

	at := res.At
	if at.IsZero() {
		at = time.Now()
	}
	m.ticks = append(m.ticks, at)
	if len(m.ticks) > historySize {
		m.ticks = m.ticks[1:]
	}

	m.notify()
}

// CaptureError counts a read that produced no frame.
func (m *MetricsCollector) CaptureError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.CaptureErrors++
}

// Snapshot returns the current counters with averages filled in.
func (m *MetricsCollector) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// snapshot must be called with mutex held.
func (m *MetricsCollector) snapshot() Metrics {
	s := m.current
	s.Average = average(m.history)
	s.Uptime = time.Since(m.started)

	if n := len(m.ticks); n > 1 {
		span := m.ticks[n-1].Sub(m.ticks[0])
		if span > 0 {
			s.FPS = float64(n-1) / span.Seconds()
		}
	}
	return s
}

func average(history []Timings) Timings {
	if len(history) == 0 {
		return Timings{}
	}

	var avg Timings
	for _, h := range history {
		avg.Capture += h.Capture
		avg.Detect += h.Detect
		avg.Classify += h.Classify
		avg.Annotate += h.Annotate
		avg.Total += h.Total
	}

	n := time.Duration(len(history))
	avg.Capture /= n
	avg.Detect /= n
	avg.Classify /= n
	avg.Annotate /= n
	avg.Total /= n

	return avg
}

// notify calls the update callback if set.
// Must be called with mutex held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		go m.onUpdate(m.snapshot())
	}
}

// FormatLatency returns the last tick's stage latencies on one line.
func (t Timings) FormatLatency() string {
	return formatDuration(t.Capture) + " capture | " +
		formatDuration(t.Detect) + " detect | " +
		formatDuration(t.Classify) + " classify | " +
		formatDuration(t.Annotate) + " annotate | " +
		formatDuration(t.Total) + " total"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
