package metrics

import (
	"container/ring"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names
const (
	ItemsTotal       = "items_total"
	ItemDurationMs   = "item_duration_ms"
	InvocationsTotal = "invocations_total"
	CatalogFallbacks = "catalog_fallbacks_total"
)

const defaultMaxSamples = 1000

// Label represents a metric label
type Label struct {
	Name  string
	Value string
}

// Collector keeps in-process counters and duration histograms.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*atomic.Int64
	histograms map[string]*Histogram
	maxSamples int
	startedAt  time.Time
}

// NewCollector creates a collector keeping up to maxSamples per histogram.
func NewCollector(maxSamples int) *Collector {
	if maxSamples <= 0 {
		maxSamples = defaultMaxSamples
	}
	return &Collector{
		counters:   make(map[string]*atomic.Int64),
		histograms: make(map[string]*Histogram),
		maxSamples: maxSamples,
		startedAt:  time.Now(),
	}
}

// WithLabels renders a metric name with labels, e.g. items_total{operation=status}
func WithLabels(name string, labels ...Label) string {
	if len(labels) == 0 {
		return name
	}
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i, label := range labels {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(label.Name)
		sb.WriteByte('=')
		sb.WriteString(label.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}

// AddCounter adds delta to a counter, creating it on first use.
func (c *Collector) AddCounter(name string, delta int64, labels ...Label) {
	if c == nil {
		return
	}
	key := WithLabels(name, labels...)

	c.mu.RLock()
	ctr, ok := c.counters[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if ctr, ok = c.counters[key]; !ok {
			ctr = &atomic.Int64{}
			c.counters[key] = ctr
		}
		c.mu.Unlock()
	}
	ctr.Add(delta)
}

// GetCounter returns a counter value, zero when unknown.
func (c *Collector) GetCounter(name string, labels ...Label) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ctr, ok := c.counters[WithLabels(name, labels...)]; ok {
		return ctr.Load()
	}
	return 0
}

// RecordDuration adds a duration in milliseconds to a histogram.
func (c *Collector) RecordDuration(name string, d time.Duration, labels ...Label) {
	if c == nil {
		return
	}
	key := WithLabels(name, labels...)

	c.mu.RLock()
	h, ok := c.histograms[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if h, ok = c.histograms[key]; !ok {
			h = NewHistogram(c.maxSamples)
			c.histograms[key] = h
		}
		c.mu.Unlock()
	}
	h.Add(float64(d) / float64(time.Millisecond))
}

// GetHistogram returns histogram statistics, empty when unknown.
func (c *Collector) GetHistogram(name string, labels ...Label) HistogramStats {
	c.mu.RLock()
	h, ok := c.histograms[WithLabels(name, labels...)]
	c.mu.RUnlock()
	if !ok {
		return HistogramStats{}
	}
	return h.GetStats()
}

// RecordItem counts one processed work item and its duration.
func (c *Collector) RecordItem(operation string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.AddCounter(ItemsTotal, 1, Label{"operation", operation}, Label{"outcome", outcome})
	c.RecordDuration(ItemDurationMs, d, Label{"operation", operation})
}

// RecordInvocation counts one coordinator run.
func (c *Collector) RecordInvocation() {
	c.AddCounter(InvocationsTotal, 1)
}

// GetMetrics returns a snapshot of every metric.
func (c *Collector) GetMetrics() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counters := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		counters[k] = v.Load()
	}
	histograms := make(map[string]HistogramStats, len(c.histograms))
	for k, h := range c.histograms {
		histograms[k] = h.GetStats()
	}
	return map[string]any{
		"counters":       counters,
		"histograms":     histograms,
		"uptime_seconds": int64(time.Since(c.startedAt).Seconds()),
	}
}

// Histogram keeps the most recent samples in a ring.
type Histogram struct {
	mu         sync.RWMutex
	samples    *ring.Ring
	maxSamples int
	count      int64
	sum        float64
	min        float64
	max        float64
	buckets    []float64
}

// NewHistogram creates a new histogram
func NewHistogram(maxSamples int, buckets ...float64) *Histogram {
	if len(buckets) == 0 {
		buckets = []float64{50, 90, 95, 99}
	}

	return &Histogram{
		samples:    ring.New(maxSamples),
		maxSamples: maxSamples,
		min:        math.Inf(1),
		max:        math.Inf(-1),
		buckets:    buckets,
	}
}

// Add adds a value to the histogram
func (h *Histogram) Add(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += v
	h.min = math.Min(h.min, v)
	h.max = math.Max(h.max, v)
	h.samples.Value = v
	h.samples = h.samples.Next()
}

// Reset resets the histogram
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = ring.New(h.maxSamples)
	h.count, h.sum = 0, 0
	h.min, h.max = math.Inf(1), math.Inf(-1)
}

// HistogramStats returns histogram statistics
type HistogramStats struct {
	Count       int64              `json:"count"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Mean        float64            `json:"mean"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// GetStats returns current histogram statistics. Percentiles cover the
// retained samples only.
func (h *Histogram) GetStats() HistogramStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return HistogramStats{}
	}

	var samples []float64
	h.samples.Do(func(v any) {
		if v != nil {
			samples = append(samples, v.(float64))
		}
	})
	sort.Float64s(samples)

	stats := HistogramStats{
		Count:       h.count,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Percentiles: make(map[string]float64, len(h.buckets)),
	}
	for _, p := range h.buckets {
		idx := int(float64(len(samples)) * p / 100)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		stats.Percentiles["p"+strconv.FormatFloat(p, 'f', -1, 64)] = samples[idx]
	}
	return stats
}
