// Package forecast projects a short trailing metric series forward with a
// least-squares linear trend.
//
// The confidence band is a fixed ±20% ratio around the projected value,
// not a statistical prediction interval. That is a deliberate
// simplification: the dashboard renders it as a rough envelope, and the
// monthly series are too short for a defensible interval anyway.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
)

const (
	// DefaultWindow is the trailing period count the fit runs over.
	DefaultWindow = 6
	// DefaultHorizon is the number of future periods projected.
	DefaultHorizon = 3

	upperBandRatio = 1.2
	lowerBandRatio = 0.8

	// minPoints is the series length below which no forecast is produced.
	minPoints = 3
)

// SeriesPoint is one observed period of the input series, oldest first.
type SeriesPoint struct {
	Label string
	Value float64
}

// Point is one period of forecast output. Historical points carry both the
// observed value and the fitted value so fit quality is inspectable;
// future points carry only the projection.
type Point struct {
	PeriodLabel string   `json:"period_label"`
	Actual      *float64 `json:"actual,omitempty"`
	Forecast    float64  `json:"forecast"`
	UpperBound  float64  `json:"upper_bound"`
	LowerBound  float64  `json:"lower_bound"`
}

// Forecast fits a linear trend over the trailing DefaultWindow points and
// projects horizon future periods. Fewer than 3 input points yields an
// empty result, not an error; a negative horizon is a contract violation.
func Forecast(series []SeriesPoint, horizon int) ([]Point, error) {
	return ForecastWindow(series, horizon, DefaultWindow)
}

// ForecastWindow is Forecast with an explicit trailing-window size.
func ForecastWindow(series []SeriesPoint, horizon, window int) ([]Point, error) {
	if horizon < 0 {
		return nil, errors.NewValidationError("INVALID_HORIZON", "forecast horizon cannot be negative")
	}
	if window < minPoints {
		return nil, errors.NewValidationError("INVALID_WINDOW", fmt.Sprintf("fit window must be at least %d periods", minPoints))
	}
	if len(series) < minPoints {
		return []Point{}, nil
	}

	trailing := series
	if len(trailing) > window {
		trailing = trailing[len(trailing)-window:]
	}

	slope, intercept := fitLine(trailing)
	n := len(trailing)

	points := make([]Point, 0, n+horizon)
	for i, sp := range trailing {
		actual := sp.Value
		fitted := slope*float64(i) + intercept
		points = append(points, banded(sp.Label, &actual, fitted))
	}
	labels := futureLabels(trailing[n-1].Label, horizon)
	for h := 0; h < horizon; h++ {
		projected := slope*float64(n+h) + intercept
		points = append(points, banded(labels[h], nil, projected))
	}
	return points, nil
}

// fitLine computes the ordinary least-squares slope and intercept of
// value over index. A degenerate denominator (single distinct index)
// falls back to a flat line at the mean.
func fitLine(series []SeriesPoint) (slope, intercept float64) {
	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, sp := range series {
		x := float64(i)
		sumX += x
		sumY += sp.Value
		sumXY += x * sp.Value
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// banded floors the projection at zero (counts and costs cannot go
// negative) and wraps it in the fixed-ratio band.
func banded(label string, actual *float64, forecast float64) Point {
	forecast = math.Max(0, forecast)
	return Point{
		PeriodLabel: label,
		Actual:      actual,
		Forecast:    forecast,
		UpperBound:  forecast * upperBandRatio,
		LowerBound:  math.Max(0, forecast*lowerBandRatio),
	}
}

// monthLayouts are the period-label formats the bucketer and the source
// reports emit for monthly series.
var monthLayouts = []string{"Jan 2006", "2006-01", "January 2006"}

// futureLabels continues the label sequence past the last observed period.
// Month-shaped labels advance by calendar month; anything else falls back
// to a relative +N suffix.
func futureLabels(last string, horizon int) []string {
	labels := make([]string, horizon)
	for _, layout := range monthLayouts {
		t, err := time.Parse(layout, last)
		if err != nil {
			continue
		}
		for h := 0; h < horizon; h++ {
			labels[h] = t.AddDate(0, h+1, 0).Format(layout)
		}
		return labels
	}
	for h := 0; h < horizon; h++ {
		labels[h] = fmt.Sprintf("%s +%d", last, h+1)
	}
	return labels
}
