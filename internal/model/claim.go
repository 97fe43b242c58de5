package model

import "time"

// MetricKind classifies what a claim's stated value expresses.
type MetricKind string

const (
	MetricAbsolute   MetricKind = "absolute"    // "$5B in revenue"
	MetricGrowthRate MetricKind = "growth_rate" // "grew 15%"
	MetricMargin     MetricKind = "margin"      // "operating margin of 30%"
	MetricRatio      MetricKind = "ratio"       // "debt-to-equity of 0.5"
	MetricChange     MetricKind = "change"      // "expanded 200 basis points"
	MetricPerShare   MetricKind = "per_share"   // "EPS of $2.50"
)

// ValidMetricKind reports whether s is one of the recognized metric kinds.
func ValidMetricKind(s string) bool {
	switch MetricKind(s) {
	case MetricAbsolute, MetricGrowthRate, MetricMargin, MetricRatio, MetricChange, MetricPerShare:
		return true
	}
	return false
}

// ComparisonPeriod tags which prior period a growth or change claim is
// measured against.
type ComparisonPeriod string

const (
	CompareYoY        ComparisonPeriod = "year_over_year"
	CompareQoQ        ComparisonPeriod = "quarter_over_quarter"
	CompareSequential ComparisonPeriod = "sequential"
	CompareFullYear   ComparisonPeriod = "full_year"
	CompareCustom     ComparisonPeriod = "custom"
	CompareNone       ComparisonPeriod = "none"
)

// ValidComparisonPeriod reports whether s is a recognized comparison tag.
func ValidComparisonPeriod(s string) bool {
	switch ComparisonPeriod(s) {
	case CompareYoY, CompareQoQ, CompareSequential, CompareFullYear, CompareCustom, CompareNone:
		return true
	}
	return false
}

// Unit is the unit the claim's stated value was expressed in.
type Unit string

const (
	UnitUSD         Unit = "usd"
	UnitUSDMillions Unit = "usd_millions"
	UnitUSDBillions Unit = "usd_billions"
	UnitPercent     Unit = "percent"
	UnitBasisPoints Unit = "basis_points"
	UnitRatio       Unit = "ratio"
	UnitShares      Unit = "shares"
)

// ValidUnit reports whether s is a recognized unit tag.
func ValidUnit(s string) bool {
	switch Unit(s) {
	case UnitUSD, UnitUSDMillions, UnitUSDBillions, UnitPercent, UnitBasisPoints, UnitRatio, UnitShares:
		return true
	}
	return false
}

// Claim is a quantitative statement extracted from a transcript.
// Created during extract and immutable afterwards.
type Claim struct {
	ID           string `json:"id"`
	TranscriptID string `json:"transcript_id"`

	Speaker     string `json:"speaker"`
	SpeakerRole string `json:"speaker_role,omitempty"`
	ClaimText   string `json:"claim_text"`

	Metric      string     `json:"metric"`
	MetricKind  MetricKind `json:"metric_kind"`
	StatedValue float64    `json:"stated_value"`
	Unit        Unit       `json:"unit"`

	ComparisonPeriod ComparisonPeriod `json:"comparison_period"`
	IsGAAP           bool             `json:"is_gaap"`
	Segment          string           `json:"segment,omitempty"`

	Confidence     float64 `json:"confidence"`
	ContextSnippet string  `json:"context_snippet,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
