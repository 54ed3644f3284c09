// Package fixtures provides builders for engine test data.
package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/brightstay/property-ops-analytics/internal/domain/event"
)

// RecordBuilder builds raw task/cost/review rows for tests.
type RecordBuilder struct {
	raw event.RawRecord
}

// NewRecordBuilder starts a builder with sane defaults: a fresh ID, an
// open status, and no timestamps.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		raw: event.RawRecord{
			ID:     uuid.NewString(),
			Status: "open",
		},
	}
}

func (b *RecordBuilder) WithID(id string) *RecordBuilder {
	b.raw.ID = id
	return b
}

func (b *RecordBuilder) WithEntity(key string) *RecordBuilder {
	b.raw.EntityKey = key
	return b
}

func (b *RecordBuilder) WithCategory(category string) *RecordBuilder {
	b.raw.Category = category
	return b
}

func (b *RecordBuilder) WithStatus(status string) *RecordBuilder {
	b.raw.Status = status
	return b
}

func (b *RecordBuilder) WithOccurredAt(t time.Time) *RecordBuilder {
	b.raw.OccurredAt = &t
	return b
}

func (b *RecordBuilder) WithResolvedAt(t time.Time) *RecordBuilder {
	b.raw.ResolvedAt = &t
	return b
}

func (b *RecordBuilder) WithAmount(amount string) *RecordBuilder {
	b.raw.Amount = amount
	return b
}

func (b *RecordBuilder) WithTags(blob string) *RecordBuilder {
	b.raw.Tags = &blob
	return b
}

// BuildRaw returns the raw row as fetched from the store.
func (b *RecordBuilder) BuildRaw() event.RawRecord {
	return b.raw
}

// Build returns the normalized record.
func (b *RecordBuilder) Build() event.Record {
	return event.Normalize([]event.RawRecord{b.raw})[0]
}

// TaskSeries generates count raw tasks for one property, spaced interval
// apart starting at start. Useful for building bucketing scenarios.
func TaskSeries(entity string, start time.Time, interval time.Duration, count int) []event.RawRecord {
	raws := make([]event.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		t := start.Add(time.Duration(i) * interval)
		raws = append(raws, NewRecordBuilder().
			WithEntity(entity).
			WithCategory("maintenance").
			WithOccurredAt(t).
			BuildRaw())
	}
	return raws
}
