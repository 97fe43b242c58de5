package model

// IngestSummary reports what the ingest stage touched.
type IngestSummary struct {
	OK                 bool `json:"ok"`
	Companies          int  `json:"companies"`
	TranscriptsFetched int  `json:"transcripts_fetched"`
	TranscriptsSkipped int  `json:"transcripts_skipped"`
	TranscriptsMissing int  `json:"transcripts_missing"`
	PeriodsFetched     int  `json:"periods_fetched"`
	PeriodsSkipped     int  `json:"periods_skipped"`
	Errors             int  `json:"errors"`
}

// ExtractSummary reports what the extract stage produced.
type ExtractSummary struct {
	OK                   bool `json:"ok"`
	TranscriptsProcessed int  `json:"transcripts_processed"`
	ClaimsExtracted      int  `json:"claims_extracted"`
	ClaimsInvalid        int  `json:"claims_invalid"`
	ClaimsDeduped        int  `json:"claims_deduped"`
	Errors               int  `json:"errors"`
}

// VerifySummary tallies verify-stage outcomes by verdict.
type VerifySummary struct {
	OK           bool `json:"ok"`
	Verified     int  `json:"verified"`
	Approximate  int  `json:"approximately_correct"`
	Misleading   int  `json:"misleading"`
	Incorrect    int  `json:"incorrect"`
	Unverifiable int  `json:"unverifiable"`
	Errors       int  `json:"errors"`
}

// Add increments the counter for the given verdict.
func (s *VerifySummary) Add(v Verdict) {
	switch v {
	case VerdictVerified:
		s.Verified++
	case VerdictApproximate:
		s.Approximate++
	case VerdictMisleading:
		s.Misleading++
	case VerdictIncorrect:
		s.Incorrect++
	case VerdictUnverifiable:
		s.Unverifiable++
	}
}

// Total returns the number of verifications recorded in the summary.
func (s *VerifySummary) Total() int {
	return s.Verified + s.Approximate + s.Misleading + s.Incorrect + s.Unverifiable
}

// AnalyzeSummary reports what the analyze stage emitted, with pattern counts
// keyed by pattern kind.
type AnalyzeSummary struct {
	OK                bool           `json:"ok"`
	CompaniesAnalyzed int            `json:"companies_analyzed"`
	PatternsByKind    map[string]int `json:"patterns_by_kind"`
	Errors            int            `json:"errors"`
}

// PipelineSummary aggregates per-stage summaries for a full run.
type PipelineSummary struct {
	OK       bool            `json:"ok"`
	StepsRun []string        `json:"steps_run"`
	Ingest   *IngestSummary  `json:"ingest,omitempty"`
	Extract  *ExtractSummary `json:"extract,omitempty"`
	Verify   *VerifySummary  `json:"verify,omitempty"`
	Analyze  *AnalyzeSummary `json:"analyze,omitempty"`
}

// CompanyAnalysis is the per-company report: verdict tallies, accuracy,
// trust score, worst discrepancies, and detected patterns.
type CompanyAnalysis struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Sector string `json:"sector"`

	TotalClaims  int `json:"total_claims"`
	Verified     int `json:"verified"`
	Approximate  int `json:"approximately_correct"`
	Misleading   int `json:"misleading"`
	Incorrect    int `json:"incorrect"`
	Unverifiable int `json:"unverifiable"`

	AccuracyRate float64 `json:"accuracy_rate"`
	TrustScore   float64 `json:"trust_score"`

	TopDiscrepancies []Discrepancy `json:"top_discrepancies"`
	Patterns         []Pattern     `json:"patterns"`
	QuartersAnalyzed []string      `json:"quarters_analyzed"`
}

// Discrepancy is one misleading or incorrect claim surfaced in a report.
type Discrepancy struct {
	ClaimID     string   `json:"claim_id"`
	ClaimText   string   `json:"claim_text"`
	Speaker     string   `json:"speaker"`
	Metric      string   `json:"metric"`
	StatedValue float64  `json:"stated_value"`
	ActualValue *float64 `json:"actual_value,omitempty"`
	Verdict     Verdict  `json:"verdict"`
	Explanation string   `json:"explanation"`
}
