// Package finmath holds the pure financial calculations used by the
// verification engine and the discrepancy analyzer. Every function is
// stateless; undefined results are reported with an ok=false second return.
package finmath

import "github.com/sells-group/claim-auditor/internal/model"

// GrowthRate returns the percentage growth from previous to current.
// Undefined (ok=false) when previous is zero.
func GrowthRate(current, previous float64) (float64, bool) {
	if previous == 0 {
		return 0, false
	}
	return ((current - previous) / abs(previous)) * 100, true
}

// Margin returns numerator/denominator expressed as a percentage.
// Undefined (ok=false) when the denominator is zero.
func Margin(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	return (numerator / denominator) * 100, true
}

// NormalizeToUnit converts a raw-dollar value into the named unit.
// Basis points are converted to percentage points; percent, ratio, and
// share counts pass through unchanged.
func NormalizeToUnit(value float64, unit model.Unit) float64 {
	switch unit {
	case model.UnitUSDBillions:
		return value / 1e9
	case model.UnitUSDMillions:
		return value / 1e6
	case model.UnitBasisPoints:
		return value / 100
	default:
		return value
	}
}

// AccuracyScore measures how close a stated value is to the actual value,
// on [0, 1] with 1.0 a perfect match.
//
//	accuracy = max(0, 1 - |stated - actual| / |actual|)
//
// When actual is zero the score is 1.0 iff stated is also zero, else 0.0.
func AccuracyScore(stated, actual float64) float64 {
	if actual == 0 {
		if stated == 0 {
			return 1.0
		}
		return 0.0
	}
	score := 1.0 - abs(stated-actual)/abs(actual)
	if score < 0 {
		return 0
	}
	return score
}

// PercentageDifference returns how far stated overshoots actual as a signed
// percentage. Positive means the stated value is above the actual.
// Undefined (ok=false) when actual is zero.
func PercentageDifference(stated, actual float64) (float64, bool) {
	if actual == 0 {
		return 0, false
	}
	return ((stated - actual) / abs(actual)) * 100, true
}

// BasisPointsToPercent converts basis points to percentage points.
func BasisPointsToPercent(bps float64) float64 {
	return bps / 100
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
