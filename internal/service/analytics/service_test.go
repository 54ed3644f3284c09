package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightstay/property-ops-analytics/internal/domain/errors"
	"github.com/brightstay/property-ops-analytics/internal/domain/event"
	"github.com/brightstay/property-ops-analytics/internal/domain/scoring"
	"github.com/brightstay/property-ops-analytics/internal/domain/timeseries"
	"github.com/brightstay/property-ops-analytics/internal/testutil/fixtures"
)

// Mock implementations

type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) ListTasks(ctx context.Context, start, end time.Time) ([]event.RawRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.RawRecord), args.Error(1)
}

func (m *MockTaskRepository) ListOpenTasks(ctx context.Context) ([]event.RawRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.RawRecord), args.Error(1)
}

func (m *MockTaskRepository) ListAssigneeNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockCostRepository struct {
	mock.Mock
}

func (m *MockCostRepository) ListCostEntries(ctx context.Context, start, end time.Time) ([]event.RawRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.RawRecord), args.Error(1)
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) ListReviews(ctx context.Context, start, end time.Time) ([]event.RawRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.RawRecord), args.Error(1)
}

type MockAssignmentRepository struct {
	mock.Mock
}

func (m *MockAssignmentRepository) ListAssignments(ctx context.Context, start, end time.Time) ([]event.RawRecord, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.RawRecord), args.Error(1)
}

func (m *MockAssignmentRepository) ListTechnicianNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// Helpers

type testDeps struct {
	tasks       *MockTaskRepository
	costs       *MockCostRepository
	reviews     *MockReviewRepository
	assignments *MockAssignmentRepository
	svc         *service
}

func newTestService(t *testing.T, now time.Time) testDeps {
	t.Helper()
	deps := testDeps{
		tasks:       &MockTaskRepository{},
		costs:       &MockCostRepository{},
		reviews:     &MockReviewRepository{},
		assignments: &MockAssignmentRepository{},
	}
	svc := NewService(deps.tasks, deps.costs, deps.reviews, deps.assignments, nil, nil)
	deps.svc = svc.(*service)
	deps.svc.now = func() time.Time { return now }
	return deps
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// taskRaw builds one task row occurred at occurred, optionally resolved
// cycleDays later.
func taskRaw(entity string, occurred time.Time, cycleDays int) event.RawRecord {
	b := fixtures.NewRecordBuilder().
		WithEntity(entity).
		WithCategory("maintenance").
		WithOccurredAt(occurred)
	if cycleDays >= 0 {
		b = b.WithResolvedAt(occurred.AddDate(0, 0, cycleDays)).WithStatus("resolved")
	}
	return b.BuildRaw()
}

func costRaw(entity string, occurred time.Time, amount string) event.RawRecord {
	return fixtures.NewRecordBuilder().
		WithEntity(entity).
		WithCategory("cost").
		WithOccurredAt(occurred).
		WithAmount(amount).
		BuildRaw()
}

func reviewRaw(entity string, occurred time.Time, rating string) event.RawRecord {
	return fixtures.NewRecordBuilder().
		WithEntity(entity).
		WithCategory("review").
		WithOccurredAt(occurred).
		WithAmount(rating).
		BuildRaw()
}

func TestGetOperationsOverview(t *testing.T) {
	now := day(2026, 7, 15)
	deps := newTestService(t, now)

	start, end := day(2026, 6, 1), day(2026, 6, 29)
	req := &OverviewRequest{
		TimeRangeRequest: TimeRangeRequest{StartTime: start, EndTime: end},
		Granularity:      "week",
	}
	prior := timeseries.PriorWindow(timeseries.Window{From: start, To: end})

	// two tasks a week, half resolved in two days
	var curTasks, priorTasks []event.RawRecord
	for week := 0; week < 4; week++ {
		curTasks = append(curTasks,
			taskRaw("villa-1", start.AddDate(0, 0, 7*week), 2),
			taskRaw("villa-1", start.AddDate(0, 0, 7*week+2), -1),
		)
	}
	for week := 0; week < 2; week++ {
		priorTasks = append(priorTasks,
			taskRaw("villa-1", prior.From.AddDate(0, 0, 7*week), 4),
			taskRaw("villa-1", prior.From.AddDate(0, 0, 7*week+2), -1),
		)
	}

	curCosts := []event.RawRecord{costRaw("villa-1", start.AddDate(0, 0, 3), "500.00")}
	priorCosts := []event.RawRecord{costRaw("villa-1", prior.From.AddDate(0, 0, 3), "400.00")}

	curReviews := []event.RawRecord{reviewRaw("villa-1", start.AddDate(0, 0, 5), "4.5")}
	priorReviews := []event.RawRecord{reviewRaw("villa-1", prior.From.AddDate(0, 0, 5), "4.0")}

	// trailing spend history for the forecast fit
	var history []event.RawRecord
	for i := 0; i < 6; i++ {
		monthStart := day(2026, time.Month(1+i), 15)
		history = append(history, costRaw("villa-1", monthStart, "1000"))
	}

	deps.tasks.On("ListTasks", mock.Anything, start, end).Return(curTasks, nil)
	deps.tasks.On("ListTasks", mock.Anything, prior.From, prior.To).Return(priorTasks, nil)
	deps.tasks.On("ListOpenTasks", mock.Anything).Return([]event.RawRecord{}, nil)
	deps.costs.On("ListCostEntries", mock.Anything, start, end).Return(curCosts, nil)
	deps.costs.On("ListCostEntries", mock.Anything, prior.From, prior.To).Return(priorCosts, nil)
	deps.costs.On("ListCostEntries", mock.Anything, mock.Anything, mock.Anything).Return(history, nil)
	deps.reviews.On("ListReviews", mock.Anything, start, end).Return(curReviews, nil)
	deps.reviews.On("ListReviews", mock.Anything, prior.From, prior.To).Return(priorReviews, nil)

	overview, err := deps.svc.GetOperationsOverview(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, now, overview.GeneratedAt)
	require.Len(t, overview.TaskBuckets, 4)
	for _, b := range overview.TaskBuckets {
		assert.Equal(t, 2.0, b.Count())
		assert.False(t, b.IsPartial)
	}

	assert.Equal(t, 8.0, overview.CreatedDelta.Current)
	assert.Equal(t, 4.0, overview.CreatedDelta.Prior)
	assert.Equal(t, timeseries.DirectionImproving, overview.CreatedDelta.Direction)

	assert.Equal(t, 4.0, overview.ResolvedDelta.Current)
	assert.Equal(t, 2.0, overview.ResolvedDelta.Prior)

	// resolution time halved; inverted metric reads as improving
	assert.InDelta(t, 2.0, overview.ResolutionDelta.Current, 1e-9)
	assert.InDelta(t, 4.0, overview.ResolutionDelta.Prior, 1e-9)
	assert.Equal(t, timeseries.DirectionImproving, overview.ResolutionDelta.Direction)

	// spend rose; inverted metric reads as declining
	assert.InDelta(t, 500, overview.SpendDelta.Current, 1e-9)
	assert.Equal(t, timeseries.DirectionDeclining, overview.SpendDelta.Direction)

	assert.Equal(t, timeseries.DirectionImproving, overview.RatingDelta.Direction)

	// steady volume, nothing to flag
	assert.Empty(t, overview.Anomalies)

	// flat spend history projects flat
	require.NotEmpty(t, overview.SpendForecast)
	projected := overview.SpendForecast[len(overview.SpendForecast)-1]
	assert.Nil(t, projected.Actual)
	assert.InDelta(t, 1000, projected.Forecast, 1e-6)
}

func TestGetOperationsOverviewValidation(t *testing.T) {
	now := day(2026, 7, 15)

	tests := []struct {
		name string
		req  *OverviewRequest
	}{
		{"nil request", nil},
		{"missing times", &OverviewRequest{}},
		{
			"start after end",
			&OverviewRequest{TimeRangeRequest: TimeRangeRequest{StartTime: day(2026, 7, 1), EndTime: day(2026, 6, 1)}},
		},
		{
			"range too wide",
			&OverviewRequest{TimeRangeRequest: TimeRangeRequest{StartTime: day(2024, 1, 1), EndTime: day(2026, 1, 1)}},
		},
		{
			"bad granularity",
			&OverviewRequest{
				TimeRangeRequest: TimeRangeRequest{StartTime: day(2026, 6, 1), EndTime: day(2026, 6, 29)},
				Granularity:      "quarterly",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestService(t, now)
			_, err := deps.svc.GetOperationsOverview(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestGetPropertyHealth(t *testing.T) {
	now := day(2026, 7, 15)
	deps := newTestService(t, now)

	start, end := day(2026, 6, 1), day(2026, 6, 29)

	windowTasks := []event.RawRecord{
		taskRaw("villa-clean", day(2026, 6, 3), 2),
	}
	aged := now.AddDate(0, 0, -40)
	openTasks := []event.RawRecord{
		taskRaw("villa-bad", aged, -1),
		taskRaw("villa-bad", aged, -1),
		taskRaw("villa-bad", aged, -1),
		taskRaw("villa-bad", aged, -1),
	}

	deps.tasks.On("ListTasks", mock.Anything, start, end).Return(windowTasks, nil)
	deps.tasks.On("ListOpenTasks", mock.Anything).Return(openTasks, nil)

	report, err := deps.svc.GetPropertyHealth(context.Background(), &TimeRangeRequest{StartTime: start, EndTime: end})
	require.NoError(t, err)
	require.Len(t, report.Properties, 2)

	first, second := report.Properties[0], report.Properties[1]
	assert.Equal(t, "villa-clean", first.Score.EntityKey)
	// 100 - 0.5 * 2 cycle days
	assert.Equal(t, 99, first.Score.Score)
	assert.Equal(t, scoring.BandGood, first.Band)

	assert.Equal(t, "villa-bad", second.Score.EntityKey)
	// four open (x2), four overdue (x3), three same-category duplicates (x1)
	assert.Equal(t, 77, second.Score.Score)
	assert.Equal(t, scoring.BandWatch, second.Band)
	assert.Equal(t, 4.0, second.Score.Signals[scoring.SignalOpenCount])
	assert.Equal(t, 4.0, second.Score.Signals[scoring.SignalOverdueCount])
	assert.Equal(t, 3.0, second.Score.Signals[scoring.SignalDuplicateCount])
}

func TestGetTechnicianLeaderboard(t *testing.T) {
	now := day(2026, 7, 15)
	deps := newTestService(t, now)

	start, end := day(2026, 6, 1), day(2026, 6, 29)

	deps.tasks.On("ListAssigneeNames", mock.Anything).Return([]string{"Jane Smith", "Jon Doe"}, nil)
	deps.assignments.On("ListTechnicianNames", mock.Anything).Return([]string{"Smith, Jane", "John Doe", "Maria Cruz"}, nil)

	aged := now.AddDate(0, 0, -40)
	assignments := []event.RawRecord{
		taskRaw("Smith, Jane", day(2026, 6, 2), 2),
		taskRaw("Smith, Jane", day(2026, 6, 10), 2),
		taskRaw("John Doe", aged, -1),
		taskRaw("John Doe", aged, -1),
		taskRaw("John Doe", aged, -1),
		taskRaw("Maria Cruz", day(2026, 6, 20), -1),
	}
	deps.assignments.On("ListAssignments", mock.Anything, start, end).Return(assignments, nil)

	board, err := deps.svc.GetTechnicianLeaderboard(context.Background(), &TimeRangeRequest{StartTime: start, EndTime: end})
	require.NoError(t, err)
	require.Len(t, board.Standings, 3)

	assert.Equal(t, "Smith, Jane", board.Standings[0].Name)
	assert.Equal(t, "Jane Smith", board.Standings[0].TicketingName)
	assert.Equal(t, 99, board.Standings[0].Score.Score)
	assert.Equal(t, scoring.BandGood, board.Standings[0].Band)

	assert.Equal(t, "Maria Cruz", board.Standings[1].Name)
	assert.Empty(t, board.Standings[1].TicketingName)
	assert.Equal(t, 98, board.Standings[1].Score.Score)

	assert.Equal(t, "John Doe", board.Standings[2].Name)
	assert.Equal(t, "Jon Doe", board.Standings[2].TicketingName)
	// three open (x2), three overdue (x3)
	assert.Equal(t, 85, board.Standings[2].Score.Score)
}

func TestRepositoryFailuresSurfaceAsInternalErrors(t *testing.T) {
	now := day(2026, 7, 15)
	deps := newTestService(t, now)

	start, end := day(2026, 6, 1), day(2026, 6, 29)
	deps.tasks.On("ListTasks", mock.Anything, mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := deps.svc.GetOperationsOverview(context.Background(), &OverviewRequest{
		TimeRangeRequest: TimeRangeRequest{StartTime: start, EndTime: end},
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeInternal, appErr.Type)
	assert.ErrorIs(t, err, assert.AnError)
}
