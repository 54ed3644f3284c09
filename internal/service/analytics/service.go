package analytics

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/brightstay/property-ops-analytics/internal/domain/anomaly"
	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
	"github.com/brightstay/property-ops-analytics/internal/domain/event"
	"github.com/brightstay/property-ops-analytics/internal/domain/forecast"
	"github.com/brightstay/property-ops-analytics/internal/domain/identity"
	"github.com/brightstay/property-ops-analytics/internal/domain/scoring"
	"github.com/brightstay/property-ops-analytics/internal/domain/timeseries"
	"github.com/brightstay/property-ops-analytics/internal/infrastructure/config"
)

// overdueAfterDays is the open-task age after which a task counts as
// overdue for scoring. Distinct from the anomaly backlog threshold, which
// flags much older work.
const overdueAfterDays = 30

// service implements the Service interface. It holds no caches and no
// mutable state: every call recomputes from a fresh snapshot, so the
// operations are safe to invoke concurrently.
type service struct {
	tasks       TaskRepository
	costs       CostRepository
	reviews     ReviewRepository
	assignments AssignmentRepository

	cfg      *config.Config
	logger   *zap.Logger
	bucketer timeseries.Bucketer
	detector anomaly.Detector

	now func() time.Time
}

// NewService creates the analytics service facade.
func NewService(
	tasks TaskRepository,
	costs CostRepository,
	reviews ReviewRepository,
	assignments AssignmentRepository,
	cfg *config.Config,
	logger *zap.Logger,
) Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		tasks:       tasks,
		costs:       costs,
		reviews:     reviews,
		assignments: assignments,
		cfg:         cfg,
		logger:      logger,
		bucketer:    timeseries.Bucketer{WeekStart: cfg.Bucketing.WeekStartDay()},
		detector:    anomaly.NewDetector(cfg.Anomaly.DetectorConfig()),
		now:         time.Now,
	}
}

// GetOperationsOverview implements Service.
func (s *service) GetOperationsOverview(ctx context.Context, req *OverviewRequest) (*OperationsOverview, error) {
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request cannot be nil")
	}
	if err := validateTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	granularity := timeseries.GranularityWeek
	if req.Granularity != "" {
		var err error
		granularity, err = timeseries.ParseGranularity(req.Granularity)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	window := timeseries.Window{From: req.StartTime, To: req.EndTime}
	prior := timeseries.PriorWindow(window)

	curTasks, err := s.fetchTasks(ctx, window)
	if err != nil {
		return nil, err
	}
	priorTasks, err := s.fetchTasks(ctx, prior)
	if err != nil {
		return nil, err
	}
	curCosts, err := s.fetchCosts(ctx, window)
	if err != nil {
		return nil, err
	}
	priorCosts, err := s.fetchCosts(ctx, prior)
	if err != nil {
		return nil, err
	}
	curReviews, err := s.fetchReviews(ctx, window)
	if err != nil {
		return nil, err
	}
	priorReviews, err := s.fetchReviews(ctx, prior)
	if err != nil {
		return nil, err
	}

	taskBuckets, err := s.bucketer.Bucketize(curTasks, granularity, window, timeseries.FieldOccurred, now)
	if err != nil {
		return nil, err
	}

	overview := &OperationsOverview{
		Window:      window,
		TaskBuckets: taskBuckets,
		GeneratedAt: now,

		CreatedDelta:    timeseries.ComputeDelta(countOccurred(curTasks, window), countOccurred(priorTasks, prior), false),
		ResolvedDelta:   timeseries.ComputeDelta(countResolved(curTasks, window), countResolved(priorTasks, prior), false),
		ResolutionDelta: timeseries.ComputeDelta(avgCycleDays(curTasks, window), avgCycleDays(priorTasks, prior), true),
		SpendDelta:      timeseries.ComputeDelta(sumValues(curCosts, window), sumValues(priorCosts, prior), true),
		RatingDelta:     timeseries.ComputeDelta(avgValue(curReviews, window), avgValue(priorReviews, prior), false),
	}

	anomalies, err := s.detectAnomalies(ctx, curTasks, window, now)
	if err != nil {
		return nil, err
	}
	overview.Anomalies = anomalies

	spendForecast, err := s.forecastSpend(ctx, req.EndTime, now)
	if err != nil {
		return nil, err
	}
	overview.SpendForecast = spendForecast

	s.logger.Debug("computed operations overview",
		zap.Time("from", window.From),
		zap.Time("to", window.To),
		zap.Int("task_buckets", len(taskBuckets)),
		zap.Int("anomalies", len(anomalies)),
	)

	return overview, nil
}

// GetPropertyHealth implements Service.
func (s *service) GetPropertyHealth(ctx context.Context, req *TimeRangeRequest) (*PropertyHealthReport, error) {
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request cannot be nil")
	}
	if err := validateTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	now := s.now()
	window := timeseries.Window{From: req.StartTime, To: req.EndTime}

	windowTasks, err := s.fetchTasks(ctx, window)
	if err != nil {
		return nil, err
	}
	openTasks, err := s.fetchOpenTasks(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]scoring.CompositeScore, 0)
	for _, key := range propertyKeys(windowTasks, openTasks) {
		signals := propertySignals(key, windowTasks, openTasks, window, now, s.cfg.Anomaly.BacklogDays)
		score, err := scoring.Score(key, signals, s.cfg.Scoring.Weights)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	ranked := scoring.Rank(scores)
	properties := make([]PropertyHealth, len(ranked))
	for i, sc := range ranked {
		properties[i] = PropertyHealth{Score: sc, Band: scoring.BandFor(sc.Score)}
	}

	s.logger.Debug("scored property health", zap.Int("properties", len(properties)))

	return &PropertyHealthReport{Properties: properties, GeneratedAt: now}, nil
}

// GetTechnicianLeaderboard implements Service.
func (s *service) GetTechnicianLeaderboard(ctx context.Context, req *TimeRangeRequest) (*TechnicianLeaderboard, error) {
	if req == nil {
		return nil, errors.NewValidationError("INVALID_REQUEST", "request cannot be nil")
	}
	if err := validateTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	now := s.now()
	window := timeseries.Window{From: req.StartTime, To: req.EndTime}

	ticketingNames, err := s.tasks.ListAssigneeNames(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list ticketing assignee names").WithCause(err)
	}
	rosterNames, err := s.assignments.ListTechnicianNames(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list roster technician names").WithCause(err)
	}
	mapping := identity.Reconcile(ticketingNames, rosterNames)

	raws, err := s.assignments.ListAssignments(ctx, window.From, window.To)
	if err != nil {
		return nil, errors.NewInternalError("failed to list assignments").WithCause(err)
	}
	records := event.Normalize(raws)

	// Roster name -> ticketing spelling, for display alongside the standing.
	ticketingFor := make(map[string]string, len(mapping))
	for ticketing, roster := range mapping {
		ticketingFor[roster] = ticketing
	}

	weights, err := pickWeights(s.cfg.Scoring.Weights,
		scoring.SignalOpenCount, scoring.SignalOverdueCount, scoring.SignalAvgCycleDays)
	if err != nil {
		return nil, err
	}

	byTech := groupByEntity(records)
	scores := make([]scoring.CompositeScore, 0, len(byTech))
	for _, name := range sortedKeys(byTech) {
		recs := byTech[name]
		signals := map[string]float64{
			scoring.SignalOpenCount:    countOpen(recs),
			scoring.SignalOverdueCount: countOverdue(recs, now),
			scoring.SignalAvgCycleDays: avgCycleDays(recs, window),
		}
		score, err := scoring.Score(name, signals, weights)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}

	ranked := scoring.Rank(scores)
	standings := make([]TechnicianStanding, len(ranked))
	for i, sc := range ranked {
		standings[i] = TechnicianStanding{
			Name:          sc.EntityKey,
			TicketingName: ticketingFor[sc.EntityKey],
			Score:         sc,
			Band:          scoring.BandFor(sc.Score),
		}
	}

	s.logger.Debug("ranked technician leaderboard",
		zap.Int("standings", len(standings)),
		zap.Int("reconciled", len(mapping)),
	)

	return &TechnicianLeaderboard{Standings: standings, GeneratedAt: now}, nil
}

// Fetch helpers

func (s *service) fetchTasks(ctx context.Context, w timeseries.Window) ([]event.Record, error) {
	raws, err := s.tasks.ListTasks(ctx, w.From, w.To)
	if err != nil {
		return nil, errors.NewInternalError("failed to list tasks").WithCause(err)
	}
	return event.Normalize(raws), nil
}

func (s *service) fetchOpenTasks(ctx context.Context) ([]event.Record, error) {
	raws, err := s.tasks.ListOpenTasks(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to list open tasks").WithCause(err)
	}
	return event.Normalize(raws), nil
}

func (s *service) fetchCosts(ctx context.Context, w timeseries.Window) ([]event.Record, error) {
	raws, err := s.costs.ListCostEntries(ctx, w.From, w.To)
	if err != nil {
		return nil, errors.NewInternalError("failed to list cost entries").WithCause(err)
	}
	return event.Normalize(raws), nil
}

func (s *service) fetchReviews(ctx context.Context, w timeseries.Window) ([]event.Record, error) {
	raws, err := s.reviews.ListReviews(ctx, w.From, w.To)
	if err != nil {
		return nil, errors.NewInternalError("failed to list reviews").WithCause(err)
	}
	return event.Normalize(raws), nil
}

// detectAnomalies runs the rule pipeline over weekly series built from the
// window's tasks plus the open-task snapshot.
func (s *service) detectAnomalies(ctx context.Context, tasks []event.Record, window timeseries.Window, now time.Time) ([]anomaly.Anomaly, error) {
	system, err := s.bucketer.Bucketize(tasks, timeseries.GranularityWeek, window, timeseries.FieldOccurred, now)
	if err != nil {
		return nil, err
	}

	perEntity := make(map[string][]timeseries.Bucket)
	for key, recs := range groupByEntity(tasks) {
		buckets, err := s.bucketer.Bucketize(recs, timeseries.GranularityWeek, window, timeseries.FieldOccurred, now)
		if err != nil {
			return nil, err
		}
		perEntity[key] = buckets
	}

	open, err := s.fetchOpenTasks(ctx)
	if err != nil {
		return nil, err
	}

	return s.detector.Detect(system, perEntity, open, now), nil
}

// forecastSpend projects monthly spend from the trailing fit window. The
// current month is usually partial and is excluded from the series so the
// fit is not dragged down by an incomplete period.
func (s *service) forecastSpend(ctx context.Context, end time.Time, now time.Time) ([]forecast.Point, error) {
	window := timeseries.Window{
		From: end.AddDate(0, -s.cfg.Forecast.WindowPeriods, 0),
		To:   end,
	}
	records, err := s.fetchCosts(ctx, window)
	if err != nil {
		return nil, err
	}

	buckets, err := s.bucketer.Bucketize(records, timeseries.GranularityMonth, window, timeseries.FieldOccurred, now)
	if err != nil {
		return nil, err
	}

	series := make([]forecast.SeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		if b.IsPartial {
			continue
		}
		series = append(series, forecast.SeriesPoint{
			Label: b.Label,
			Value: b.Metrics[timeseries.MetricValueTotal],
		})
	}

	return forecast.ForecastWindow(series, s.cfg.Forecast.HorizonPeriods, s.cfg.Forecast.WindowPeriods)
}

// Record aggregation helpers. Each skips records missing the field it
// needs rather than failing the batch.

func countOccurred(records []event.Record, w timeseries.Window) float64 {
	n := 0.0
	for _, r := range records {
		if inWindow(r.OccurredAt, w) {
			n++
		}
	}
	return n
}

func countResolved(records []event.Record, w timeseries.Window) float64 {
	n := 0.0
	for _, r := range records {
		if r.ResolvedAt != nil && inWindow(*r.ResolvedAt, w) {
			n++
		}
	}
	return n
}

func avgCycleDays(records []event.Record, w timeseries.Window) float64 {
	sum, n := 0.0, 0
	for _, r := range records {
		if !inWindow(r.OccurredAt, w) {
			continue
		}
		if cycle, ok := r.CycleTime(); ok {
			sum += cycle.Hours() / 24
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sumValues(records []event.Record, w timeseries.Window) float64 {
	sum := 0.0
	for _, r := range records {
		if r.Value != nil && inWindow(r.OccurredAt, w) {
			sum += *r.Value
		}
	}
	return sum
}

func avgValue(records []event.Record, w timeseries.Window) float64 {
	sum, n := 0.0, 0
	for _, r := range records {
		if r.Value != nil && inWindow(r.OccurredAt, w) {
			sum += *r.Value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func countOpen(records []event.Record) float64 {
	n := 0.0
	for _, r := range records {
		if r.IsOpen() {
			n++
		}
	}
	return n
}

func countOverdue(records []event.Record, now time.Time) float64 {
	n := 0.0
	for _, r := range records {
		if !r.IsOpen() {
			continue
		}
		if age, ok := r.Age(now); ok && age > overdueAfterDays*24*time.Hour {
			n++
		}
	}
	return n
}

func inWindow(t time.Time, w timeseries.Window) bool {
	return !t.IsZero() && !t.Before(w.From) && t.Before(w.To)
}

func groupByEntity(records []event.Record) map[string][]event.Record {
	grouped := make(map[string][]event.Record)
	for _, r := range records {
		if r.EntityKey == "" {
			continue
		}
		grouped[r.EntityKey] = append(grouped[r.EntityKey], r)
	}
	return grouped
}

func sortedKeys(m map[string][]event.Record) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// propertyKeys unions entity keys across the window and open snapshots,
// sorted for deterministic output.
func propertyKeys(windowTasks, openTasks []event.Record) []string {
	seen := make(map[string]bool)
	for _, r := range windowTasks {
		if r.EntityKey != "" {
			seen[r.EntityKey] = true
		}
	}
	for _, r := range openTasks {
		if r.EntityKey != "" {
			seen[r.EntityKey] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// propertySignals derives the scorer inputs for one property.
//
// Duplicates are open tasks beyond the first in the same category at the
// same property. Ghosts are tasks still sitting in the open status (never
// picked up) for more than twice the backlog threshold.
func propertySignals(key string, windowTasks, openTasks []event.Record, w timeseries.Window, now time.Time, backlogDays int) map[string]float64 {
	open := make([]event.Record, 0)
	for _, r := range openTasks {
		if r.EntityKey == key {
			open = append(open, r)
		}
	}

	perCategory := make(map[string]int)
	duplicates := 0.0
	ghosts := 0.0
	ghostAge := time.Duration(2*backlogDays) * 24 * time.Hour
	for _, r := range open {
		perCategory[r.Category]++
		if perCategory[r.Category] > 1 {
			duplicates++
		}
		if r.Status == event.StatusOpen {
			if age, ok := r.Age(now); ok && age > ghostAge {
				ghosts++
			}
		}
	}

	mine := make([]event.Record, 0)
	for _, r := range windowTasks {
		if r.EntityKey == key {
			mine = append(mine, r)
		}
	}

	return map[string]float64{
		scoring.SignalOpenCount:      countOpen(open),
		scoring.SignalOverdueCount:   countOverdue(open, now),
		scoring.SignalDuplicateCount: duplicates,
		scoring.SignalGhostCount:     ghosts,
		scoring.SignalAvgCycleDays:   avgCycleDays(mine, w),
	}
}

// pickWeights extracts the weight entries the caller's signal set needs.
// A missing entry is a configuration contract violation.
func pickWeights(weights map[string]float64, names ...string) (map[string]float64, error) {
	picked := make(map[string]float64, len(names))
	for _, name := range names {
		w, ok := weights[name]
		if !ok {
			return nil, errors.NewValidationError("MISSING_WEIGHT", "no weight configured for signal "+name)
		}
		picked[name] = w
	}
	return picked, nil
}

// validateTimeRange rejects the ranges that would make every downstream
// derivation meaningless.
func validateTimeRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.NewValidationError("INVALID_TIME_RANGE", "start and end times are required")
	}
	if start.After(end) {
		return errors.NewValidationError("INVALID_TIME_RANGE", "start time must be before end time")
	}
	if end.Sub(start) > 366*24*time.Hour {
		return errors.NewValidationError("INVALID_TIME_RANGE", "time range cannot exceed 366 days")
	}
	return nil
}
