// Package verdict holds the pure classification rules: mapping an accuracy
// score plus misleading flags to a verdict, and aggregating verdict tallies
// into a trust score.
package verdict

import "github.com/sells-group/claim-auditor/internal/model"

// Thresholds are the externally configurable tolerances used to classify
// accuracy scores.
type Thresholds struct {
	// Verified passes when score >= 1 - Verified.
	Verified float64
	// Approximate passes when score >= 1 - Approximate.
	Approximate float64
	// Misleading passes when score >= 1 - Misleading; below that is incorrect.
	Misleading float64
}

// DefaultThresholds returns the standard tolerances: 2% verified,
// 10% approximately correct, 25% misleading.
func DefaultThresholds() Thresholds {
	return Thresholds{Verified: 0.02, Approximate: 0.10, Misleading: 0.25}
}

// substantive flags upgrade an otherwise-acceptable verdict to misleading.
var substantive = map[model.MisleadingFlag]bool{
	model.FlagRoundingBias:         true,
	model.FlagGAAPNonGAAPMismatch:  true,
	model.FlagSegmentVsTotal:       true,
	model.FlagMisleadingComparison: true,
}

// Assign maps an accuracy score and flag set to a verdict. The base verdict
// comes from the score; a substantive flag upgrades verified or
// approximately-correct results to misleading. Applying Assign to its own
// output with the same flags is a no-op (the upgrade is idempotent).
func Assign(score float64, flags []model.MisleadingFlag, t Thresholds) model.Verdict {
	var v model.Verdict
	switch {
	case score >= 1-t.Verified:
		v = model.VerdictVerified
	case score >= 1-t.Approximate:
		v = model.VerdictApproximate
	case score >= 1-t.Misleading:
		v = model.VerdictMisleading
	default:
		v = model.VerdictIncorrect
	}

	if v == model.VerdictVerified || v == model.VerdictApproximate {
		for _, f := range flags {
			if substantive[f] {
				return model.VerdictMisleading
			}
		}
	}
	return v
}

// Counts tallies verifications by verdict.
type Counts struct {
	Verified     int
	Approximate  int
	Misleading   int
	Incorrect    int
	Unverifiable int
}

// Add increments the tally for one verdict.
func (c *Counts) Add(v model.Verdict) {
	switch v {
	case model.VerdictVerified:
		c.Verified++
	case model.VerdictApproximate:
		c.Approximate++
	case model.VerdictMisleading:
		c.Misleading++
	case model.VerdictIncorrect:
		c.Incorrect++
	case model.VerdictUnverifiable:
		c.Unverifiable++
	}
}

// Verifiable returns the number of claims with a numeric verdict.
func (c Counts) Verifiable() int {
	return c.Verified + c.Approximate + c.Misleading + c.Incorrect
}

// TrustScore collapses a verdict tally into a [0, 100] score. Verified
// claims count +1, approximately correct +0.7, misleading -0.3, incorrect
// -1.0; unverifiable claims are excluded. With no verifiable claims the
// score is a neutral 50.
func TrustScore(c Counts) float64 {
	verifiable := c.Verifiable()
	if verifiable == 0 {
		return 50.0
	}
	raw := (1.0*float64(c.Verified) +
		0.7*float64(c.Approximate) -
		0.3*float64(c.Misleading) -
		1.0*float64(c.Incorrect)) / float64(verifiable)
	score := (raw + 1) * 50
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// AccuracyRate returns the share of verifiable claims that are verified or
// approximately correct, in [0, 1]. Zero when nothing is verifiable.
func AccuracyRate(c Counts) float64 {
	verifiable := c.Verifiable()
	if verifiable == 0 {
		return 0
	}
	return float64(c.Verified+c.Approximate) / float64(verifiable)
}
