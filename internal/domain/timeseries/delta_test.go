package timeseries_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brightstay/property-ops-analytics/internal/domain/timeseries"
)

func TestComputeDelta(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		prior   float64
		invert  bool
		want    timeseries.Delta
	}{
		{
			name:    "increase on regular metric improves",
			current: 120,
			prior:   100,
			want: timeseries.Delta{
				Current: 120, Prior: 100, ValueDelta: 20, PercentDelta: 20,
				Direction: timeseries.DirectionImproving,
			},
		},
		{
			name:    "decrease on regular metric declines",
			current: 80,
			prior:   100,
			want: timeseries.Delta{
				Current: 80, Prior: 100, ValueDelta: -20, PercentDelta: -20,
				Direction: timeseries.DirectionDeclining,
			},
		},
		{
			name:    "decrease on inverted metric improves",
			current: 80,
			prior:   100,
			invert:  true,
			want: timeseries.Delta{
				Current: 80, Prior: 100, ValueDelta: -20, PercentDelta: -20,
				Direction: timeseries.DirectionImproving,
			},
		},
		{
			name:    "increase on inverted metric declines",
			current: 120,
			prior:   100,
			invert:  true,
			want: timeseries.Delta{
				Current: 120, Prior: 100, ValueDelta: 20, PercentDelta: 20,
				Direction: timeseries.DirectionDeclining,
			},
		},
		{
			name:    "small change is flat",
			current: 102,
			prior:   100,
			want: timeseries.Delta{
				Current: 102, Prior: 100, ValueDelta: 2, PercentDelta: 2,
				Direction: timeseries.DirectionFlat,
			},
		},
		{
			name:    "zero prior marks insufficient baseline",
			current: 42,
			prior:   0,
			want: timeseries.Delta{
				Current: 42, Prior: 0, ValueDelta: 42,
				InsufficientBaseline: true,
				Direction:            timeseries.DirectionFlat,
			},
		},
		{
			name: "zero on zero",
			want: timeseries.Delta{
				InsufficientBaseline: true,
				Direction:            timeseries.DirectionFlat,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := timeseries.ComputeDelta(tt.current, tt.prior, tt.invert)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Identical values always read flat with a zero delta, whatever the value.
func TestComputeDeltaIdenticalIsFlat(t *testing.T) {
	for _, x := range []float64{-5, 0.001, 1, 99, 1e6} {
		d := timeseries.ComputeDelta(x, x, false)
		assert.Equal(t, timeseries.DirectionFlat, d.Direction, "x=%v", x)
		assert.Equal(t, 0.0, d.ValueDelta, "x=%v", x)
		assert.False(t, d.InsufficientBaseline, "x=%v", x)
	}
}

func TestPriorWindow(t *testing.T) {
	from := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)

	prior := timeseries.PriorWindow(timeseries.Window{From: from, To: to})

	assert.Equal(t, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC), prior.To)
	assert.Equal(t, time.Date(2026, 2, 21, 0, 0, 0, 0, time.UTC), prior.From)
	assert.Equal(t, to.Sub(from), prior.Duration())
}
