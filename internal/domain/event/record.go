package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one operational occurrence: a maintenance task, a cost ledger
// line, or a guest review. The engine only ever reads a snapshot; records
// are created and mutated upstream.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	EntityKey  string     `json:"entity_key"`
	Category   string     `json:"category"`
	OccurredAt time.Time  `json:"occurred_at"` // zero when the source row had no creation timestamp
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Value      *float64   `json:"value,omitempty"` // cost, duration, or rating depending on category
	Status     Status     `json:"status"`
	Priority   Priority   `json:"priority"`
	Tags       []string   `json:"tags,omitempty"`
}

type Status int

const (
	StatusOpen Status = iota
	StatusInProgress
	StatusResolved
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusInProgress:
		return "in_progress"
	case StatusResolved:
		return "resolved"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ParseStatus maps a source-system status string to a Status. Unknown
// values fall back to StatusOpen so a mistyped status never hides a task.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "resolved", "done", "complete", "completed":
		return StatusResolved
	case "closed", "cancelled", "canceled":
		return StatusClosed
	case "in_progress", "in-progress", "in progress", "assigned", "working":
		return StatusInProgress
	default:
		return StatusOpen
	}
}

// IsTerminal reports whether the status means no further work is expected.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "urgent", "emergency":
		return PriorityCritical
	case "high":
		return PriorityHigh
	case "medium", "normal":
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// HasOccurred reports whether the record carries a usable creation timestamp.
func (r Record) HasOccurred() bool {
	return !r.OccurredAt.IsZero()
}

// IsOpen reports whether the record still needs work.
func (r Record) IsOpen() bool {
	return !r.Status.IsTerminal()
}

// CycleTime returns the open-to-resolved duration. The second return is
// false when either timestamp is missing.
func (r Record) CycleTime() (time.Duration, bool) {
	if !r.HasOccurred() || r.ResolvedAt == nil {
		return 0, false
	}
	return r.ResolvedAt.Sub(r.OccurredAt), true
}

// Age returns how long the record has been open as of now. The second
// return is false when the creation timestamp is missing.
func (r Record) Age(now time.Time) (time.Duration, bool) {
	if !r.HasOccurred() {
		return 0, false
	}
	return now.Sub(r.OccurredAt), true
}

// HasTag reports whether tag is present (tags are normalized lowercase).
func (r Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
