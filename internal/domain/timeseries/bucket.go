package timeseries

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
	"github.com/brightstay/property-ops-analytics/internal/domain/event"
)

// Granularity is the calendar alignment of a bucket series.
type Granularity int

const (
	GranularityDay Granularity = iota
	GranularityWeek
	GranularityMonth
)

func (g Granularity) String() string {
	switch g {
	case GranularityDay:
		return "day"
	case GranularityWeek:
		return "week"
	case GranularityMonth:
		return "month"
	default:
		return "unknown"
	}
}

// ParseGranularity maps a string to a Granularity. An unknown value is a
// contract violation, not a data problem, and fails loudly.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return GranularityDay, nil
	case "week", "weekly":
		return GranularityWeek, nil
	case "month", "monthly":
		return GranularityMonth, nil
	default:
		return 0, errors.NewValidationError("INVALID_GRANULARITY", "granularity must be day, week, or month")
	}
}

// TimestampField selects which record timestamp drives bucketing.
type TimestampField int

const (
	FieldOccurred TimestampField = iota
	FieldResolved
)

// Window is a closed query interval. Bucketing treats it as [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Metric keys present in every bucket.
const (
	MetricCount             = "count"
	MetricResolved          = "resolved"
	MetricValueTotal        = "value_total"
	MetricValueAvg          = "value_avg"
	MetricAvgResolutionDays = "avg_resolution_days"
)

// Bucket is one calendar-aligned aggregation interval [Start, End).
type Bucket struct {
	Label     string             `json:"label"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
	IsPartial bool               `json:"is_partial"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Count is shorthand for the membership count metric.
func (b Bucket) Count() float64 {
	return b.Metrics[MetricCount]
}

// Bucketer groups records into calendar buckets. The zero value is not
// usable; construct with NewBucketer.
type Bucketer struct {
	WeekStart time.Weekday
}

func NewBucketer() Bucketer {
	return Bucketer{WeekStart: time.Monday}
}

// Bucketize produces an ordered, contiguous bucket sequence covering the
// window at the requested granularity. Records whose selected timestamp is
// missing or falls outside [window.From, window.To) are excluded. The
// newest bucket is flagged partial when its end lies beyond now.
func (b Bucketer) Bucketize(records []event.Record, g Granularity, window Window, field TimestampField, now time.Time) ([]Bucket, error) {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth:
	default:
		return nil, errors.NewValidationError("INVALID_GRANULARITY", "granularity must be day, week, or month")
	}
	if window.To.Before(window.From) {
		return nil, errors.NewValidationError("INVALID_WINDOW", "window end must not precede window start")
	}

	buckets := b.emptyBuckets(g, window, now)
	for i := range buckets {
		members := make([]event.Record, 0)
		for _, rec := range records {
			ts, ok := selectTimestamp(rec, field)
			if !ok {
				continue
			}
			if ts.Before(window.From) || !ts.Before(window.To) {
				continue
			}
			if ts.Before(buckets[i].Start) || !ts.Before(buckets[i].End) {
				continue
			}
			members = append(members, rec)
		}
		buckets[i].Metrics = aggregate(members)
	}
	return buckets, nil
}

func (b Bucketer) emptyBuckets(g Granularity, window Window, now time.Time) []Bucket {
	var buckets []Bucket
	start := b.truncate(window.From, g)
	for start.Before(window.To) {
		end := b.next(start, g)
		buckets = append(buckets, Bucket{
			Label:     label(start, g),
			Start:     start,
			End:       end,
			IsPartial: end.After(now),
		})
		start = end
	}
	return buckets
}

func (b Bucketer) truncate(t time.Time, g Granularity) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch g {
	case GranularityWeek:
		offset := (int(day.Weekday()) - int(b.WeekStart) + 7) % 7
		return day.AddDate(0, 0, -offset)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	default:
		return day
	}
}

func (b Bucketer) next(start time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

func label(start time.Time, g Granularity) string {
	switch g {
	case GranularityWeek:
		return "Week of " + start.Format("2006-01-02")
	case GranularityMonth:
		return start.Format("Jan 2006")
	default:
		return start.Format("2006-01-02")
	}
}

func selectTimestamp(rec event.Record, field TimestampField) (time.Time, bool) {
	switch field {
	case FieldResolved:
		if rec.ResolvedAt == nil {
			return time.Time{}, false
		}
		return *rec.ResolvedAt, true
	default:
		if !rec.HasOccurred() {
			return time.Time{}, false
		}
		return rec.OccurredAt, true
	}
}

// aggregate computes the standard metric set over one bucket's members.
// Records missing a field are skipped for the aggregates that need it only;
// a task with no resolved_at still counts toward count.
func aggregate(members []event.Record) map[string]float64 {
	metrics := map[string]float64{
		MetricCount:             float64(len(members)),
		MetricResolved:          0,
		MetricValueTotal:        0,
		MetricValueAvg:          0,
		MetricAvgResolutionDays: 0,
	}

	valueTotal := decimal.Zero
	valueCount := 0
	resolutionDays := 0.0
	resolutionCount := 0

	for _, rec := range members {
		if rec.ResolvedAt != nil {
			metrics[MetricResolved]++
		}
		if rec.Value != nil {
			valueTotal = valueTotal.Add(decimal.NewFromFloat(*rec.Value))
			valueCount++
		}
		if cycle, ok := rec.CycleTime(); ok {
			resolutionDays += cycle.Hours() / 24
			resolutionCount++
		}
	}

	if valueCount > 0 {
		total, _ := valueTotal.Float64()
		metrics[MetricValueTotal] = total
		metrics[MetricValueAvg] = total / float64(valueCount)
	}
	if resolutionCount > 0 {
		metrics[MetricAvgResolutionDays] = resolutionDays / float64(resolutionCount)
	}
	return metrics
}
