package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
	"github.com/brightstay/property-ops-analytics/internal/domain/scoring"
)

func defaultWeights() map[string]float64 {
	return map[string]float64{
		scoring.SignalOpenCount:      2,
		scoring.SignalOverdueCount:   3,
		scoring.SignalDuplicateCount: 1,
		scoring.SignalGhostCount:     1,
		scoring.SignalAvgCycleDays:   0.5,
	}
}

func signals(open, overdue, dup, ghost, cycle float64) map[string]float64 {
	return map[string]float64{
		scoring.SignalOpenCount:      open,
		scoring.SignalOverdueCount:   overdue,
		scoring.SignalDuplicateCount: dup,
		scoring.SignalGhostCount:     ghost,
		scoring.SignalAvgCycleDays:   cycle,
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		signals map[string]float64
		want    int
	}{
		{"clean entity scores baseline", signals(0, 0, 0, 0, 0), 100},
		{"penalties subtract weighted", signals(5, 2, 1, 0, 4), 100 - 10 - 6 - 1 - 2},
		{"heavy backlog clamps at zero", signals(40, 20, 5, 5, 30), 0},
		{"fractional totals round", signals(0, 0, 0, 0, 0.5), 100}, // 99.75 rounds to 100
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scoring.Score("villa-1", tt.signals, defaultWeights())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Score)
			assert.Equal(t, "villa-1", got.EntityKey)
			assert.Equal(t, tt.signals, got.Signals)
		})
	}
}

func TestScoreBounds(t *testing.T) {
	for open := 0.0; open <= 100; open += 7 {
		got, err := scoring.Score("e", signals(open, open, open, open, open), defaultWeights())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Score, 0)
		assert.LessOrEqual(t, got.Score, 100)
	}
}

// Raising any single penalty signal can never raise the score.
func TestScoreMonotonicInEachSignal(t *testing.T) {
	base := signals(3, 1, 1, 0, 2)
	prev, err := scoring.Score("e", base, defaultWeights())
	require.NoError(t, err)

	for name := range base {
		bumped := signals(3, 1, 1, 0, 2)
		bumped[name] += 5
		got, err := scoring.Score("e", bumped, defaultWeights())
		require.NoError(t, err)
		assert.LessOrEqual(t, got.Score, prev.Score, "signal %s", name)
	}
}

func TestScoreShapeMismatchFailsLoudly(t *testing.T) {
	weights := defaultWeights()
	delete(weights, scoring.SignalGhostCount)
	_, err := scoring.Score("e", signals(1, 1, 1, 1, 1), weights)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	partial := signals(1, 1, 1, 1, 1)
	delete(partial, scoring.SignalOpenCount)
	_, err = scoring.Score("e", partial, defaultWeights())
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestScoreDeterministic(t *testing.T) {
	in := signals(4, 2, 1, 1, 3)
	first, err := scoring.Score("e", in, defaultWeights())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := scoring.Score("e", in, defaultWeights())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score int
		want  scoring.Band
	}{
		{100, scoring.BandGood},
		{80, scoring.BandGood},
		{79, scoring.BandWatch},
		{40, scoring.BandWatch},
		{39, scoring.BandCritical},
		{0, scoring.BandCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.BandFor(tt.score), "score %d", tt.score)
	}
}

func TestRank(t *testing.T) {
	scores := []scoring.CompositeScore{
		{EntityKey: "c", Score: 70},
		{EntityKey: "a", Score: 90},
		{EntityKey: "b", Score: 70},
	}
	ranked := scoring.Rank(scores)

	require.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].EntityKey)
	// ties break on entity key ascending
	assert.Equal(t, "b", ranked[1].EntityKey)
	assert.Equal(t, "c", ranked[2].EntityKey)

	// input order untouched
	assert.Equal(t, "c", scores[0].EntityKey)
}
