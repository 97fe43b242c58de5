package model

import "time"

// PatternKind identifies a cross-quarter discrepancy pattern.
type PatternKind string

const (
	PatternRoundingUp           PatternKind = "consistent_rounding_up"
	PatternMetricSwitching      PatternKind = "metric_switching"
	PatternIncreasingInaccuracy PatternKind = "increasing_inaccuracy"
	PatternGAAPShifting         PatternKind = "gaap_nongaap_shifting"
	PatternSelectiveEmphasis    PatternKind = "selective_emphasis"
)

// Pattern is a company-level finding mined from multiple quarters of
// verified claims. A company's patterns are replaced wholesale on each
// analysis run, never merged.
type Pattern struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`

	Kind             PatternKind `json:"kind"`
	Severity         float64     `json:"severity"`
	Description      string      `json:"description"`
	AffectedQuarters []string    `json:"affected_quarters"`
	Evidence         []string    `json:"evidence"`

	CreatedAt time.Time `json:"created_at"`
}
