package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type fakeStore struct {
	appended  []models.UsageSample
	stored    []models.UsageSample
	appendErr error
	loadErr   error
	closed    bool
}

func (f *fakeStore) Append(_ context.Context, s models.UsageSample) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, s)
	return nil
}

func (f *fakeStore) LoadAll(context.Context) ([]models.UsageSample, error) {
	return f.stored, f.loadErr
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

func collect(l *Ledger, r Range, m Metric) []Point {
	var out []Point
	for p := range l.Query(r, m) {
		out = append(out, p)
	}
	return out
}

func TestRangeDurations(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"24h", 86400 * time.Second},
		{"7d", 604800 * time.Second},
		{"30D", 2592000 * time.Second},
		{" 3mo ", 7776000 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseRange(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Duration())
		})
	}

	_, err := ParseRange("1y")
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigInvalid))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Cost")
	require.NoError(t, err)
	assert.Equal(t, MetricCost, m)

	_, err = ParseMetric("latency")
	assert.Error(t, err)
}

func TestQueryFiltersWindow(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	ctx := context.Background()

	samples := []models.UsageSample{
		{Date: fixedNow.Add(-48 * time.Hour), ClaudeTokens: 1},
		{Date: fixedNow.Add(-24 * time.Hour), ClaudeTokens: 2},
		{Date: fixedNow.Add(-time.Hour), ClaudeTokens: 3, CodexTokens: 4},
		{Date: fixedNow, CodexTokens: 5},
		{Date: fixedNow.Add(time.Minute), ClaudeTokens: 100},
	}
	for _, s := range samples {
		require.NoError(t, l.Record(ctx, s))
	}

	points := collect(l, Range24h, MetricClaudeTokens)
	require.Len(t, points, 3)
	assert.Equal(t, []float64{2, 3, 0}, []float64{points[0].Value, points[1].Value, points[2].Value})
	assert.Equal(t, fixedNow.Add(-24*time.Hour), points[0].Date)

	tokens := collect(l, Range7d, MetricTokens)
	require.Len(t, tokens, 4)
	assert.Equal(t, float64(7), tokens[2].Value)
}

func TestQueryIsRestartable(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(context.Background(), models.UsageSample{
			Date:     fixedNow.Add(-time.Duration(3-i) * time.Hour),
			APICalls: 1,
		}))
	}

	seq := l.Query(Range24h, MetricCalls)
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 3, first)
	assert.Equal(t, 3, second)
}

func TestQueryStopsEarly(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(context.Background(), models.UsageSample{Date: fixedNow.Add(-time.Duration(i+1) * time.Minute)}))
	}

	seen := 0
	for range l.Query(Range24h, MetricCost) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestRecordKeepsChronologicalOrder(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-time.Hour), APICalls: 1}))
	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-3 * time.Hour), APICalls: 2}))
	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-2 * time.Hour), APICalls: 3}))

	var values []float64
	for p := range l.Query(Range24h, MetricCalls) {
		values = append(values, p.Value)
	}
	assert.Equal(t, []float64{2, 3, 1}, values)
}

func TestRecordStampsMissingDate(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	require.NoError(t, l.Record(context.Background(), models.UsageSample{APICalls: 1}))

	points := collect(l, Range24h, MetricCalls)
	require.Len(t, points, 1)
	assert.Equal(t, fixedNow, points[0].Date)
}

func TestTotals(t *testing.T) {
	l := NewLedger(nil, nil, WithClock(fixedClock))
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-40 * 24 * time.Hour), ClaudeTokens: 1000, APICalls: 1, Cost: 1}))
	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-2 * time.Hour), ClaudeTokens: 100, APICalls: 1, Cost: 0.003}))
	require.NoError(t, l.Record(ctx, models.UsageSample{Date: fixedNow.Add(-time.Hour), CodexTokens: 50, APICalls: 1, Cost: 0.0005}))

	day := l.Totals(Range24h)
	assert.Equal(t, 100, day.ClaudeTokens)
	assert.Equal(t, 50, day.CodexTokens)
	assert.Equal(t, 2, day.APICalls)
	assert.InDelta(t, 0.0035, day.Cost, 1e-12)

	quarter := l.Totals(Range3mo)
	assert.Equal(t, 1100, quarter.ClaudeTokens)
	assert.Equal(t, 3, quarter.APICalls)
}

func TestLedgerPersistsThroughStore(t *testing.T) {
	store := &fakeStore{}
	l := NewLedger(store, nil, WithClock(fixedClock))

	require.NoError(t, l.Record(context.Background(), models.UsageSample{Date: fixedNow, APICalls: 1}))
	assert.Len(t, store.appended, 1)

	require.NoError(t, l.Close())
	assert.True(t, store.closed)
}

func TestLedgerKeepsSampleWhenPersistFails(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("disk full")}
	l := NewLedger(store, nil, WithClock(fixedClock))

	err := l.Record(context.Background(), models.UsageSample{Date: fixedNow, APICalls: 1})
	assert.Error(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestLoadSortsStoredSamples(t *testing.T) {
	store := &fakeStore{stored: []models.UsageSample{
		{Date: fixedNow.Add(-time.Minute), APICalls: 2},
		{Date: fixedNow.Add(-time.Hour), APICalls: 1},
	}}
	l := NewLedger(store, nil, WithClock(fixedClock))

	require.NoError(t, l.Load(context.Background()))

	var values []float64
	for p := range l.Query(Range24h, MetricCalls) {
		values = append(values, p.Value)
	}
	assert.Equal(t, []float64{1, 2}, values)
}

func TestLoadFailureKeepsSeries(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("locked")}
	l := NewLedger(store, nil, WithClock(fixedClock))
	require.NoError(t, l.Record(context.Background(), models.UsageSample{Date: fixedNow}))

	assert.Error(t, l.Load(context.Background()))
	assert.Equal(t, 1, l.Len())
}
