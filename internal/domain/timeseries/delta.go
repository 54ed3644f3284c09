package timeseries

import (
	"math"
)

// Direction is the trend reading of a period-over-period comparison.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionFlat      Direction = "flat"
)

// flatThresholdPercent is the band inside which a change is reported as
// flat rather than a trend.
const flatThresholdPercent = 3.0

// Delta compares a current-window value against the value of the
// immediately preceding window of equal length.
//
// When Prior is zero a percentage is meaningless; PercentDelta is left
// zero and InsufficientBaseline is set so callers render "n/a" instead of
// an infinite percentage.
type Delta struct {
	Current              float64   `json:"current"`
	Prior                float64   `json:"prior"`
	ValueDelta           float64   `json:"value_delta"`
	PercentDelta         float64   `json:"percent_delta"`
	InsufficientBaseline bool      `json:"insufficient_baseline"`
	Direction            Direction `json:"direction"`
}

// ComputeDelta derives a Delta for two same-meaning values. invert marks
// lower-is-better metrics (overdue count, resolution time): a decrease is
// then reported as improving.
func ComputeDelta(current, prior float64, invert bool) Delta {
	d := Delta{
		Current:    current,
		Prior:      prior,
		ValueDelta: current - prior,
	}

	if prior == 0 {
		d.InsufficientBaseline = true
		d.Direction = DirectionFlat
		return d
	}

	d.PercentDelta = (current - prior) / prior * 100

	switch {
	case math.Abs(d.PercentDelta) < flatThresholdPercent:
		d.Direction = DirectionFlat
	case (d.PercentDelta > 0) != invert:
		d.Direction = DirectionImproving
	default:
		d.Direction = DirectionDeclining
	}
	return d
}

// PriorWindow returns the window of identical duration immediately
// preceding w: prior ends one day before w starts.
func PriorWindow(w Window) Window {
	priorTo := w.From.AddDate(0, 0, -1)
	return Window{
		From: priorTo.Add(-w.Duration()),
		To:   priorTo,
	}
}
