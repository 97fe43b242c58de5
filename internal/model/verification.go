package model

import "time"

// Verdict is the outcome of reconciling one claim against financial data.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictApproximate  Verdict = "approximately_correct"
	VerdictMisleading   Verdict = "misleading"
	VerdictIncorrect    Verdict = "incorrect"
	VerdictUnverifiable Verdict = "unverifiable"
)

// MisleadingFlag marks a framing problem detected during verification.
type MisleadingFlag string

const (
	FlagGAAPNonGAAPMismatch  MisleadingFlag = "gaap_nongaap_mismatch"
	FlagCherryPickedPeriod   MisleadingFlag = "cherry_picked_period"
	FlagSegmentVsTotal       MisleadingFlag = "segment_vs_total"
	FlagRoundingBias         MisleadingFlag = "rounding_bias"
	FlagMisleadingComparison MisleadingFlag = "misleading_comparison"
	FlagOmitsContext         MisleadingFlag = "omits_context"
)

// Verification records the outcome of verifying one claim. At most one
// exists per claim; it is written once and never mutated.
//
// ActualValue and AccuracyScore are nil exactly when Verdict is unverifiable.
type Verification struct {
	ID      string `json:"id"`
	ClaimID string `json:"claim_id"`

	ActualValue   *float64 `json:"actual_value,omitempty"`
	AccuracyScore *float64 `json:"accuracy_score,omitempty"`
	Verdict       Verdict  `json:"verdict"`
	Explanation   string   `json:"explanation"`

	// Financial periods consulted during verification.
	PeriodID           string `json:"period_id,omitempty"`
	ComparisonPeriodID string `json:"comparison_period_id,omitempty"`

	Flags []MisleadingFlag `json:"flags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ClaimWithVerification bundles a claim, its quarter, and its verification
// (nil until the verify stage has run) for analysis and reporting.
type ClaimWithVerification struct {
	Claim
	CompanyID    string        `json:"company_id"`
	Year         int           `json:"year"`
	Quarter      int           `json:"quarter"`
	Verification *Verification `json:"verification,omitempty"`
}
