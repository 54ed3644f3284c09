package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRecord is a row as fetched from the remote tabular store: nullable
// timestamps, a stringly numeric field, and a free-form tag blob that is
// sometimes JSON-shaped and sometimes a bare comma list.
type RawRecord struct {
	ID         string
	EntityKey  string
	Category   string
	OccurredAt *time.Time
	ResolvedAt *time.Time
	Amount     string
	Status     string
	Tags       *string
}

// Normalize coerces raw rows into canonical Records. It never fails a
// whole batch: a field that cannot be parsed is simply absent from the
// resulting record, and downstream aggregates skip records missing the
// field they need.
//
// Two invariants are enforced here so the rest of the engine can rely on
// them: resolved_at earlier than occurred_at is treated as garbage and
// cleared, and tags are lowercase trimmed tokens.
func Normalize(raws []RawRecord) []Record {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, normalizeOne(raw))
	}
	return records
}

func normalizeOne(raw RawRecord) Record {
	rec := Record{
		EntityKey: strings.TrimSpace(raw.EntityKey),
		Category:  strings.ToLower(strings.TrimSpace(raw.Category)),
		Status:    ParseStatus(raw.Status),
		Tags:      parseTags(raw.Tags),
	}

	if id, err := uuid.Parse(strings.TrimSpace(raw.ID)); err == nil {
		rec.ID = id
	}

	if raw.OccurredAt != nil {
		rec.OccurredAt = *raw.OccurredAt
	}
	if raw.ResolvedAt != nil && rec.HasOccurred() && !raw.ResolvedAt.Before(rec.OccurredAt) {
		t := *raw.ResolvedAt
		rec.ResolvedAt = &t
	}

	if amount := strings.TrimSpace(raw.Amount); amount != "" {
		// Money-ish strings arrive with currency prefixes and thousands
		// separators; decimal parsing keeps cents exact.
		cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(amount)
		if dec, err := decimal.NewFromString(cleaned); err == nil {
			v, _ := dec.Float64()
			rec.Value = &v
		}
	}

	rec.Priority = priorityFromTags(rec.Tags)

	return rec
}

// parseTags accepts both `["a","b"]`-shaped blobs and bare `a, b` lists.
func parseTags(blob *string) []string {
	if blob == nil {
		return nil
	}
	s := strings.TrimSpace(*blob)
	s = strings.Trim(s, "[]{}")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p == "" {
			continue
		}
		tags = append(tags, strings.ToLower(p))
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// priorityFromTags reads the `priority:<level>` convention used by the
// ticketing system. Absent or unrecognized levels default to low.
func priorityFromTags(tags []string) Priority {
	for _, t := range tags {
		if level, ok := strings.CutPrefix(t, "priority:"); ok {
			return ParsePriority(level)
		}
	}
	return PriorityLow
}
