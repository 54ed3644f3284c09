package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brightstay/property-ops-analytics/internal/domain/event"
	"github.com/brightstay/property-ops-analytics/internal/domain/timeseries"
)

// Detector scans bucketed series and open records for rule-defined
// outliers. Rules run in a fixed order: entity volume spike, system volume
// spike, completion-rate drop, aging backlog, cost spike. Output is
// ordered high before medium before low; within a tier detection order is
// preserved; the list is truncated to MaxAnomalies dropping the
// lowest-severity, latest-detected findings first.
type Detector struct {
	cfg Config
}

// NewDetector builds a detector, filling zero config fields from
// DefaultConfig.
func NewDetector(cfg Config) Detector {
	def := DefaultConfig()
	if cfg.SpikeMultiplier == 0 {
		cfg.SpikeMultiplier = def.SpikeMultiplier
	}
	if cfg.SystemSpikeMultiplier == 0 {
		cfg.SystemSpikeMultiplier = def.SystemSpikeMultiplier
	}
	if cfg.MinVolumeBaseline == 0 {
		cfg.MinVolumeBaseline = def.MinVolumeBaseline
	}
	if cfg.MinCostBaseline == 0 {
		cfg.MinCostBaseline = def.MinCostBaseline
	}
	if cfg.CompletionDropRatio == 0 {
		cfg.CompletionDropRatio = def.CompletionDropRatio
	}
	if cfg.MinCompletionBaseline == 0 {
		cfg.MinCompletionBaseline = def.MinCompletionBaseline
	}
	if cfg.BacklogDays == 0 {
		cfg.BacklogDays = def.BacklogDays
	}
	if cfg.MaxAnomalies == 0 {
		cfg.MaxAnomalies = def.MaxAnomalies
	}
	return Detector{cfg: cfg}
}

// Detect runs every rule against the supplied series and open-record
// snapshot. system holds the whole-portfolio bucket series; perEntity holds
// one series per property keyed by entity key; open holds the current
// unresolved records for the aging rule.
func (d Detector) Detect(system []timeseries.Bucket, perEntity map[string][]timeseries.Bucket, open []event.Record, now time.Time) []Anomaly {
	var found []Anomaly
	found = append(found, d.entityVolumeSpikes(perEntity)...)
	found = append(found, d.systemVolumeSpike(system)...)
	found = append(found, d.completionDrop(system)...)
	found = append(found, d.agingBacklog(open, now)...)
	found = append(found, d.costSpike(system)...)

	sort.SliceStable(found, func(i, j int) bool {
		return severityRank(found[i].Severity) < severityRank(found[j].Severity)
	})
	if len(found) > d.cfg.MaxAnomalies {
		found = found[:d.cfg.MaxAnomalies]
	}
	return found
}

func (d Detector) entityVolumeSpikes(perEntity map[string][]timeseries.Bucket) []Anomaly {
	keys := make([]string, 0, len(perEntity))
	for k := range perEntity {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Anomaly
	for _, key := range keys {
		recent, trailing, ok := recentWithTrailing(perEntity[key])
		if !ok {
			continue
		}
		baseline := meanMetric(trailing, timeseries.MetricCount)
		if baseline < d.cfg.MinVolumeBaseline {
			continue
		}
		if recent.Count() > d.cfg.SpikeMultiplier*baseline {
			out = append(out, Anomaly{
				Title:          "Task volume spike",
				Description:    fmt.Sprintf("%s logged %.0f tasks in %s, against a trailing average of %.1f", key, recent.Count(), recent.Label, baseline),
				Severity:       SeverityHigh,
				EntityKey:      key,
				NavigationHint: "/maintenance?property=" + key,
			})
		}
	}
	return out
}

func (d Detector) systemVolumeSpike(system []timeseries.Bucket) []Anomaly {
	recent, trailing, ok := recentWithTrailing(system)
	if !ok {
		return nil
	}
	baseline := meanMetric(trailing, timeseries.MetricCount)
	if baseline < d.cfg.MinVolumeBaseline {
		return nil
	}
	if recent.Count() > d.cfg.SystemSpikeMultiplier*baseline {
		return []Anomaly{{
			Title:          "Portfolio task volume spike",
			Description:    fmt.Sprintf("%.0f tasks logged in %s, against a trailing average of %.1f", recent.Count(), recent.Label, baseline),
			Severity:       SeverityMedium,
			NavigationHint: "/maintenance",
		}}
	}
	return nil
}

func (d Detector) completionDrop(system []timeseries.Bucket) []Anomaly {
	recent, trailing, ok := recentWithTrailing(system)
	if !ok || recent.Count() == 0 {
		return nil
	}
	recentRatio := recent.Metrics[timeseries.MetricResolved] / recent.Count()

	sum, n := 0.0, 0
	for _, b := range trailing {
		if b.Count() == 0 {
			continue
		}
		sum += b.Metrics[timeseries.MetricResolved] / b.Count()
		n++
	}
	if n == 0 {
		return nil
	}
	priorMean := sum / float64(n)
	if priorMean <= d.cfg.MinCompletionBaseline {
		return nil
	}
	if recentRatio < d.cfg.CompletionDropRatio*priorMean {
		return []Anomaly{{
			Title:          "Completion rate drop",
			Description:    fmt.Sprintf("completion rate fell to %.0f%% in %s from a trailing average of %.0f%%", recentRatio*100, recent.Label, priorMean*100),
			Severity:       SeverityHigh,
			NavigationHint: "/maintenance?status=open",
		}}
	}
	return nil
}

func (d Detector) agingBacklog(open []event.Record, now time.Time) []Anomaly {
	threshold := time.Duration(d.cfg.BacklogDays) * 24 * time.Hour
	count := 0
	var examples []string
	seen := map[string]bool{}

	for _, rec := range open {
		if !rec.IsOpen() || rec.Priority < event.PriorityHigh {
			continue
		}
		age, ok := rec.Age(now)
		if !ok || age <= threshold {
			continue
		}
		count++
		if len(examples) < 3 && rec.EntityKey != "" && !seen[rec.EntityKey] {
			examples = append(examples, rec.EntityKey)
			seen[rec.EntityKey] = true
		}
	}
	if count == 0 {
		return nil
	}

	desc := fmt.Sprintf("%d high-priority tasks open for more than %d days", count, d.cfg.BacklogDays)
	if len(examples) > 0 {
		desc += " at " + strings.Join(examples, ", ")
	}
	return []Anomaly{{
		Title:          "Aging backlog",
		Description:    desc,
		Severity:       SeverityHigh,
		NavigationHint: "/maintenance?age=stale",
	}}
}

func (d Detector) costSpike(system []timeseries.Bucket) []Anomaly {
	recent, trailing, ok := recentWithTrailing(system)
	if !ok {
		return nil
	}
	baseline := meanMetric(trailing, timeseries.MetricValueTotal)
	// Near-zero baselines make every invoice look like a spike.
	if baseline < d.cfg.MinCostBaseline {
		return nil
	}
	recentTotal := recent.Metrics[timeseries.MetricValueTotal]
	if recentTotal > d.cfg.SpikeMultiplier*baseline {
		return []Anomaly{{
			Title:          "Spend spike",
			Description:    fmt.Sprintf("spend reached %.2f in %s, against a trailing average of %.2f", recentTotal, recent.Label, baseline),
			Severity:       SeverityMedium,
			NavigationHint: "/costs",
		}}
	}
	return nil
}

// recentWithTrailing returns the newest complete bucket and the three
// complete buckets preceding it. ok is false when the series is too short
// for a baseline.
func recentWithTrailing(buckets []timeseries.Bucket) (timeseries.Bucket, []timeseries.Bucket, bool) {
	i := len(buckets) - 1
	for i >= 0 && buckets[i].IsPartial {
		i--
	}
	if i < 3 {
		return timeseries.Bucket{}, nil, false
	}
	return buckets[i], buckets[i-3 : i], true
}

func meanMetric(buckets []timeseries.Bucket, metric string) float64 {
	if len(buckets) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range buckets {
		sum += b.Metrics[metric]
	}
	return sum / float64(len(buckets))
}
