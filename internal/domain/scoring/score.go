package scoring

import (
	"math"
	"sort"

	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
)

// Signal names the service layer feeds the scorer.
const (
	SignalOpenCount      = "open_count"
	SignalOverdueCount   = "overdue_count"
	SignalDuplicateCount = "duplicate_count"
	SignalGhostCount     = "ghost_count"
	SignalAvgCycleDays   = "avg_cycle_days"
)

// baseline is the score of an entity with zero penalty signals.
const baseline = 100.0

// CompositeScore is a bounded single number synthesizing several weighted
// signals for one entity. It is a pure function of its inputs.
type CompositeScore struct {
	EntityKey string             `json:"entity_key"`
	Score     int                `json:"score"`
	Signals   map[string]float64 `json:"contributing_signals"`
}

// Band is the rendering tier of a score. The thresholds are a contract
// shared by every surface that colors or sorts scores, not a local choice.
type Band string

const (
	BandGood     Band = "good"     // score >= 80
	BandWatch    Band = "watch"    // 40 <= score < 80
	BandCritical Band = "critical" // score < 40
)

// BandFor maps a score to its band.
func BandFor(score int) Band {
	switch {
	case score >= 80:
		return BandGood
	case score >= 40:
		return BandWatch
	default:
		return BandCritical
	}
}

// Score computes the composite score for one entity: baseline 100 minus
// each signal multiplied by its penalty weight, clamped to [0, 100].
//
// The signal and weight tables must cover the same keys. A mismatch is a
// programmer error at the call site and fails loudly rather than being
// silently defaulted to zero.
func Score(entityKey string, signals, weights map[string]float64) (CompositeScore, error) {
	for name := range signals {
		if _, ok := weights[name]; !ok {
			return CompositeScore{}, errors.NewValidationError("MISSING_WEIGHT", "no weight configured for signal "+name)
		}
	}
	for name := range weights {
		if _, ok := signals[name]; !ok {
			return CompositeScore{}, errors.NewValidationError("MISSING_SIGNAL", "no value supplied for weighted signal "+name)
		}
	}

	total := baseline
	contributing := make(map[string]float64, len(signals))
	for name, value := range signals {
		contributing[name] = value
		total -= value * weights[name]
	}

	score := int(math.Round(total))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return CompositeScore{
		EntityKey: entityKey,
		Score:     score,
		Signals:   contributing,
	}, nil
}

// Rank orders scores descending; ties break on entity key ascending so
// equal scores render in a stable order everywhere.
func Rank(scores []CompositeScore) []CompositeScore {
	ranked := make([]CompositeScore, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].EntityKey < ranked[j].EntityKey
	})
	return ranked
}
