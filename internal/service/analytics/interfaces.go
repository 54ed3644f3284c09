package analytics

import (
	"context"
	"time"

	"github.com/brightstay/property-ops-analytics/internal/domain/anomaly"
	"github.com/brightstay/property-ops-analytics/internal/domain/event"
	"github.com/brightstay/property-ops-analytics/internal/domain/forecast"
	"github.com/brightstay/property-ops-analytics/internal/domain/scoring"
	"github.com/brightstay/property-ops-analytics/internal/domain/timeseries"
)

// Service is the engine's boundary with the presentation layer. Every
// operation consumes and returns plain derivation results; nothing here
// references a data store, a renderer, or interaction state.
type Service interface {
	// GetOperationsOverview buckets the window's task and cost activity,
	// compares it against the immediately preceding window, runs anomaly
	// detection, and projects monthly spend forward.
	GetOperationsOverview(ctx context.Context, req *OverviewRequest) (*OperationsOverview, error)

	// GetPropertyHealth scores every property seen in the window and
	// ranks the results.
	GetPropertyHealth(ctx context.Context, req *TimeRangeRequest) (*PropertyHealthReport, error)

	// GetTechnicianLeaderboard reconciles technician names between the
	// ticketing system and the dispatch roster, scores each technician
	// from their assignment records, and ranks the results.
	GetTechnicianLeaderboard(ctx context.Context, req *TimeRangeRequest) (*TechnicianLeaderboard, error)
}

// Repository interfaces for data access. Implementations live with the
// caller; the engine only sees materialized rows.

type TaskRepository interface {
	ListTasks(ctx context.Context, start, end time.Time) ([]event.RawRecord, error)
	ListOpenTasks(ctx context.Context) ([]event.RawRecord, error)
	ListAssigneeNames(ctx context.Context) ([]string, error)
}

type CostRepository interface {
	ListCostEntries(ctx context.Context, start, end time.Time) ([]event.RawRecord, error)
}

type ReviewRepository interface {
	ListReviews(ctx context.Context, start, end time.Time) ([]event.RawRecord, error)
}

type AssignmentRepository interface {
	ListAssignments(ctx context.Context, start, end time.Time) ([]event.RawRecord, error)
	ListTechnicianNames(ctx context.Context) ([]string, error)
}

// Request types

type TimeRangeRequest struct {
	StartTime time.Time
	EndTime   time.Time
}

type OverviewRequest struct {
	TimeRangeRequest
	Granularity string // day, week, month; empty defaults to week
}

// Result types

type OperationsOverview struct {
	Window      timeseries.Window   `json:"window"`
	TaskBuckets []timeseries.Bucket `json:"task_buckets"`

	CreatedDelta    timeseries.Delta `json:"created_delta"`
	ResolvedDelta   timeseries.Delta `json:"resolved_delta"`
	ResolutionDelta timeseries.Delta `json:"resolution_delta"` // avg days, lower is better
	SpendDelta      timeseries.Delta `json:"spend_delta"`
	RatingDelta     timeseries.Delta `json:"rating_delta"`

	Anomalies     []anomaly.Anomaly `json:"anomalies"`
	SpendForecast []forecast.Point  `json:"spend_forecast"`

	GeneratedAt time.Time `json:"generated_at"`
}

type PropertyHealth struct {
	Score scoring.CompositeScore `json:"score"`
	Band  scoring.Band           `json:"band"`
}

type PropertyHealthReport struct {
	Properties  []PropertyHealth `json:"properties"`
	GeneratedAt time.Time        `json:"generated_at"`
}

type TechnicianStanding struct {
	Name          string                 `json:"name"`                     // dispatch roster spelling
	TicketingName string                 `json:"ticketing_name,omitempty"` // as the ticketing system records it, when reconciled
	Score         scoring.CompositeScore `json:"score"`
	Band          scoring.Band           `json:"band"`
}

type TechnicianLeaderboard struct {
	Standings   []TechnicianStanding `json:"standings"`
	GeneratedAt time.Time            `json:"generated_at"`
}
