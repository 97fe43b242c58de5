// Package verify reconciles extracted claims against structured financial
// data and assigns verdicts.
package verify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/finmath"
	"github.com/sells-group/claim-auditor/internal/metrics"
	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/internal/verdict"
)

// PeriodSource yields financial periods for a company. A nil period with a
// nil error means the quarter is simply absent from the source.
type PeriodSource interface {
	PeriodFor(ctx context.Context, companyID string, year, quarter int) (*model.FinancialPeriod, error)
}

// Engine verifies a single claim against financial data.
//
// Pipeline per claim:
//  1. Check the metric is resolvable
//  2. Fetch the relevant periods (current + comparison for growth claims)
//  3. Compute the actual value
//  4. Normalize units so stated and actual are comparable
//  5. Score accuracy
//  6. Detect misleading framing
//  7. Assign the verdict
//
// Missing data never raises: it yields an unverifiable verdict with an
// explanation. Only period-source failures surface as errors.
type Engine struct {
	registry   *metrics.Registry
	source     PeriodSource
	thresholds verdict.Thresholds
}

// NewEngine constructs a verification engine.
func NewEngine(registry *metrics.Registry, source PeriodSource, thresholds verdict.Thresholds) *Engine {
	return &Engine{registry: registry, source: source, thresholds: thresholds}
}

// Verify produces the Verification for one claim made in the transcript at
// (year, quarter) for the given company.
func (e *Engine) Verify(ctx context.Context, claim *model.Claim, companyID string, year, quarter int) (*model.Verification, error) {
	if !e.registry.CanResolve(claim.Metric) {
		return e.unverifiable(claim, fmt.Sprintf("Metric %q is not in the financial data mapping.", claim.Metric)), nil
	}

	var (
		actual   *float64
		periodID string
		compID   string
		err      error
	)

	switch claim.MetricKind {
	case model.MetricGrowthRate, model.MetricChange:
		actual, periodID, compID, err = e.actualGrowth(ctx, claim, companyID, year, quarter)
	case model.MetricMargin, model.MetricRatio:
		actual, periodID, err = e.actualLevel(ctx, claim, companyID, year, quarter)
	case model.MetricAbsolute, model.MetricPerShare:
		actual, periodID, err = e.actualAbsolute(ctx, claim, companyID, year, quarter)
	default:
		return e.unverifiable(claim, fmt.Sprintf("Unrecognized metric kind %q.", claim.MetricKind)), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "verify: claim %s", claim.ID)
	}
	if actual == nil {
		return e.unverifiable(claim, "Could not find sufficient financial data to verify this claim."), nil
	}

	stated := statedComparable(claim)
	score := finmath.AccuracyScore(stated, *actual)
	flags := detectFlags(claim, stated, *actual, score)
	v := verdict.Assign(score, flags, e.thresholds)
	explanation := explain(stated, *actual, v, flags)

	return &model.Verification{
		ID:                 uuid.New().String(),
		ClaimID:            claim.ID,
		ActualValue:        round4(actual),
		AccuracyScore:      round4(&score),
		Verdict:            v,
		Explanation:        explanation,
		PeriodID:           periodID,
		ComparisonPeriodID: compID,
		Flags:              flags,
	}, nil
}

// actualGrowth computes the actual growth percentage between the claim's
// current and comparison periods.
func (e *Engine) actualGrowth(ctx context.Context, claim *model.Claim, companyID string, year, quarter int) (*float64, string, string, error) {
	compYear, compQuarter, ok := comparisonQuarter(year, quarter, claim.ComparisonPeriod)
	if !ok {
		return nil, "", "", nil
	}

	current, err := e.source.PeriodFor(ctx, companyID, year, quarter)
	if err != nil {
		return nil, "", "", err
	}
	comparison, err := e.source.PeriodFor(ctx, companyID, compYear, compQuarter)
	if err != nil {
		return nil, "", "", err
	}
	if current == nil || comparison == nil {
		return nil, "", "", nil
	}

	curVal := e.registry.Resolve(claim.Metric, current)
	compVal := e.registry.Resolve(claim.Metric, comparison)
	if curVal == nil || compVal == nil {
		return nil, "", "", nil
	}
	growth, ok := finmath.GrowthRate(*curVal, *compVal)
	if !ok {
		return nil, "", "", nil
	}
	return &growth, current.ID, comparison.ID, nil
}

// actualLevel resolves margin and ratio claims against the current period.
// Derived registry entries already come back in percent.
func (e *Engine) actualLevel(ctx context.Context, claim *model.Claim, companyID string, year, quarter int) (*float64, string, error) {
	period, err := e.source.PeriodFor(ctx, companyID, year, quarter)
	if err != nil {
		return nil, "", err
	}
	if period == nil {
		return nil, "", nil
	}
	val := e.registry.Resolve(claim.Metric, period)
	if val == nil {
		return nil, "", nil
	}
	return val, period.ID, nil
}

// actualAbsolute resolves absolute and per-share claims, converting the raw
// dollar value into the claim's declared unit.
func (e *Engine) actualAbsolute(ctx context.Context, claim *model.Claim, companyID string, year, quarter int) (*float64, string, error) {
	period, err := e.source.PeriodFor(ctx, companyID, year, quarter)
	if err != nil {
		return nil, "", err
	}
	if period == nil {
		return nil, "", nil
	}
	raw := e.registry.Resolve(claim.Metric, period)
	if raw == nil {
		return nil, "", nil
	}
	actual := finmath.NormalizeToUnit(*raw, claim.Unit)
	return &actual, period.ID, nil
}

// comparisonQuarter maps a comparison tag to the prior (year, quarter).
// full_year aliases to year_over_year: no quarterly aggregate is
// synthesized. custom and none cannot anchor a growth claim.
func comparisonQuarter(year, quarter int, cp model.ComparisonPeriod) (int, int, bool) {
	switch cp {
	case model.CompareYoY, model.CompareFullYear:
		return year - 1, quarter, true
	case model.CompareQoQ, model.CompareSequential:
		if quarter > 1 {
			return year, quarter - 1, true
		}
		return year - 1, 4, true
	default:
		return 0, 0, false
	}
}

// statedComparable normalizes the stated value for comparison. Basis points
// become percentage points; everything else is already in the claim's unit.
func statedComparable(claim *model.Claim) float64 {
	if claim.Unit == model.UnitBasisPoints {
		return finmath.BasisPointsToPercent(claim.StatedValue)
	}
	return claim.StatedValue
}

// detectFlags runs the misleading-framing checks in a fixed order.
func detectFlags(claim *model.Claim, stated, actual, score float64) []model.MisleadingFlag {
	var flags []model.MisleadingFlag

	// Stated rounds in the favorable direction and sits inside the
	// approximate band.
	if score >= 0.90 && score < 0.98 && abs(stated) > abs(actual) {
		flags = append(flags, model.FlagRoundingBias)
	}
	if !claim.IsGAAP {
		flags = append(flags, model.FlagGAAPNonGAAPMismatch)
	}
	// Segment-level claim verified against total-company data.
	if claim.Segment != "" {
		flags = append(flags, model.FlagSegmentVsTotal)
	}
	return flags
}

func (e *Engine) unverifiable(claim *model.Claim, reason string) *model.Verification {
	zap.L().Debug("claim unverifiable",
		zap.String("claim_id", claim.ID),
		zap.String("metric", claim.Metric),
		zap.String("reason", reason),
	)
	return &model.Verification{
		ID:          uuid.New().String(),
		ClaimID:     claim.ID,
		Verdict:     model.VerdictUnverifiable,
		Explanation: reason,
	}
}

// explain renders the canonical explanation template for a verdict.
func explain(stated, actual float64, v model.Verdict, flags []model.MisleadingFlag) string {
	pctStr := "N/A"
	if pct, ok := finmath.PercentageDifference(stated, actual); ok {
		pctStr = fmt.Sprintf("%+.1f%%", pct)
	}

	var base string
	switch v {
	case model.VerdictVerified:
		base = fmt.Sprintf("Verified. Stated %.2f, actual %.2f (difference %s). Within acceptable tolerance.", stated, actual, pctStr)
	case model.VerdictApproximate:
		base = fmt.Sprintf("Approximately correct. Stated %.2f, actual %.2f (difference %s).", stated, actual, pctStr)
	case model.VerdictMisleading:
		base = fmt.Sprintf("Misleading. Stated %.2f, actual %.2f (difference %s). The framing may create a false impression.", stated, actual, pctStr)
	case model.VerdictIncorrect:
		base = fmt.Sprintf("Incorrect. Stated %.2f, actual %.2f (difference %s). Materially inaccurate.", stated, actual, pctStr)
	default:
		return "Cannot verify: insufficient data."
	}

	if len(flags) > 0 {
		names := make([]string, len(flags))
		for i, f := range flags {
			names[i] = strings.ReplaceAll(string(f), "_", " ")
		}
		base += " Flags: " + strings.Join(names, ", ") + "."
	}
	return base
}

func round4(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*10000) / 10000
	return &r
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
