package anomaly

// Severity ranks how urgently an anomaly needs attention.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Anomaly is one rule-triggered finding. Anomalies are produced fresh on
// every evaluation and never persisted.
type Anomaly struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Severity       Severity `json:"severity"`
	EntityKey      string   `json:"entity_key,omitempty"`
	NavigationHint string   `json:"navigation_hint,omitempty"`
}

// Config holds the rule thresholds. Zero fields are filled from defaults
// by NewDetector so partial configs stay safe.
type Config struct {
	SpikeMultiplier       float64 // entity-level volume/cost spike factor
	SystemSpikeMultiplier float64 // system-level spike factor
	MinVolumeBaseline     float64 // trailing mean floor before a volume spike can fire
	MinCostBaseline       float64 // trailing mean floor before a cost spike can fire
	CompletionDropRatio   float64 // recent/prior completion ratio that counts as a drop
	MinCompletionBaseline float64 // prior completion mean floor before a drop can fire
	BacklogDays           int     // open-record age threshold for the aging rule
	MaxAnomalies          int     // emitted list cap
}

// DefaultConfig returns the thresholds the dashboard ships with.
func DefaultConfig() Config {
	return Config{
		SpikeMultiplier:       2.0,
		SystemSpikeMultiplier: 1.5,
		MinVolumeBaseline:     1.0,
		MinCostBaseline:       100.0,
		CompletionDropRatio:   0.8,
		MinCompletionBaseline: 0.5,
		BacklogDays:           90,
		MaxAnomalies:          8,
	}
}
