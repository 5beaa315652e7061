// Package usage aggregates assistant token and cost samples into
// time-bucketed series.
package usage

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/d1childress/ccmanager/internal/observability"
	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// Range is a trailing time window ending now
type Range string

const (
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
	Range3mo Range = "3mo"
)

// Ranges lists every supported range, shortest first
var Ranges = []Range{Range24h, Range7d, Range30d, Range3mo}

// Duration returns the window length
func (r Range) Duration() time.Duration {
	switch r {
	case Range24h:
		return 86400 * time.Second
	case Range7d:
		return 604800 * time.Second
	case Range30d:
		return 2592000 * time.Second
	case Range3mo:
		return 7776000 * time.Second
	default:
		return 0
	}
}

// ParseRange validates a range name
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToLower(strings.TrimSpace(s)))
	if r.Duration() == 0 {
		return "", apperrors.ConfigError(fmt.Sprintf("unknown range %q (expected 24h, 7d, 30d or 3mo)", s), "range")
	}
	return r, nil
}

// Metric selects the value a query maps each sample to
type Metric string

const (
	MetricClaudeTokens Metric = "claude_tokens"
	MetricCodexTokens  Metric = "codex_tokens"
	MetricTokens       Metric = "tokens"
	MetricCalls        Metric = "calls"
	MetricCost         Metric = "cost"
)

// Metrics lists every supported metric
var Metrics = []Metric{MetricTokens, MetricClaudeTokens, MetricCodexTokens, MetricCalls, MetricCost}

// ParseMetric validates a metric name
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Metrics {
		if m == known {
			return m, nil
		}
	}
	return "", apperrors.ConfigError(fmt.Sprintf("unknown metric %q", s), "metric")
}

// Value maps a sample to the metric
func (m Metric) Value(s models.UsageSample) float64 {
	switch m {
	case MetricClaudeTokens:
		return float64(s.TokensFor(models.ProviderClaude))
	case MetricCodexTokens:
		return float64(s.TokensFor(models.ProviderCodex))
	case MetricTokens:
		return float64(s.TotalTokens())
	case MetricCalls:
		return float64(s.APICalls)
	case MetricCost:
		return s.Cost
	default:
		return 0
	}
}

// Point is one metric value at a sample date
type Point struct {
	Date  time.Time
	Value float64
}

// Totals sums samples over a range
type Totals struct {
	ClaudeTokens int
	CodexTokens  int
	APICalls     int
	Cost         float64
}

// Store persists samples across runs
type Store interface {
	Append(ctx context.Context, sample models.UsageSample) error
	LoadAll(ctx context.Context) ([]models.UsageSample, error)
	Close() error
}

// Ledger is an append-only, chronologically ordered series of samples
type Ledger struct {
	mu      sync.RWMutex
	samples []models.UsageSample
	store   Store
	now     func() time.Time
	logger  *observability.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source used for range queries
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates an empty ledger; store may be nil for an in-memory series
func NewLedger(store Store, logger *observability.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: observability.OrNop(logger).WithField("component", "usage"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory series with the persisted one
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	samples, err := l.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})

	l.mu.Lock()
	l.samples = samples
	l.mu.Unlock()

	l.logger.WithField("samples", len(samples)).Debug("usage loaded")
	return nil
}

// Record appends a sample. Samples arriving in order append in O(1); an
// older sample is inserted at its chronological position. A persistence
// failure is returned but the sample stays in memory.
func (l *Ledger) Record(ctx context.Context, sample models.UsageSample) error {
	if sample.Date.IsZero() {
		sample.Date = l.now()
	}

	l.mu.Lock()
	n := len(l.samples)
	if n == 0 || !sample.Date.Before(l.samples[n-1].Date) {
		l.samples = append(l.samples, sample)
	} else {
		i := sort.Search(n, func(i int) bool { return sample.Date.Before(l.samples[i].Date) })
		l.samples = append(l.samples, models.UsageSample{})
		copy(l.samples[i+1:], l.samples[i:])
		l.samples[i] = sample
	}
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	if err := l.store.Append(ctx, sample); err != nil {
		l.logger.WithError(err).Warn("failed to persist usage sample")
		return err
	}
	return nil
}

// Query yields the metric for every sample dated within [now-range, now],
// in chronological order. Each iteration rescans the stored series.
func (l *Ledger) Query(r Range, m Metric) iter.Seq[Point] {
	return func(yield func(Point) bool) {
		for _, s := range l.window(r) {
			if !yield(Point{Date: s.Date, Value: m.Value(s)}) {
				return
			}
		}
	}
}

// Totals sums every sample within the range
func (l *Ledger) Totals(r Range) Totals {
	var t Totals
	for _, s := range l.window(r) {
		t.ClaudeTokens += s.TokensFor(models.ProviderClaude)
		t.CodexTokens += s.TokensFor(models.ProviderCodex)
		t.APICalls += s.APICalls
		t.Cost += s.Cost
	}
	return t
}

// Len returns the number of stored samples
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.samples)
}

func (l *Ledger) window(r Range) []models.UsageSample {
	now := l.now()
	from := now.Add(-r.Duration())

	l.mu.RLock()
	defer l.mu.RUnlock()

	start := sort.Search(len(l.samples), func(i int) bool { return !l.samples[i].Date.Before(from) })
	var out []models.UsageSample
	for _, s := range l.samples[start:] {
		if s.Date.After(now) {
			break
		}
		out = append(out, s)
	}
	return out
}

// Close releases the backing store
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
