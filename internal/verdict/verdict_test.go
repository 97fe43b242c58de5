package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/claim-auditor/internal/model"
)

func TestAssign_BaseVerdicts(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		score float64
		want  model.Verdict
	}{
		{1.0, model.VerdictVerified},
		{0.99, model.VerdictVerified},
		{0.98, model.VerdictVerified},
		{0.979, model.VerdictApproximate},
		{0.95, model.VerdictApproximate},
		{0.90, model.VerdictApproximate},
		{0.899, model.VerdictMisleading},
		{0.80, model.VerdictMisleading},
		{0.75, model.VerdictMisleading},
		{0.749, model.VerdictIncorrect},
		{0.50, model.VerdictIncorrect},
		{0.0, model.VerdictIncorrect},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Assign(tt.score, nil, th), "score %v", tt.score)
	}
}

func TestAssign_SubstantiveFlagUpgrades(t *testing.T) {
	th := DefaultThresholds()

	for _, f := range []model.MisleadingFlag{
		model.FlagRoundingBias,
		model.FlagGAAPNonGAAPMismatch,
		model.FlagSegmentVsTotal,
		model.FlagMisleadingComparison,
	} {
		flags := []model.MisleadingFlag{f}
		assert.Equal(t, model.VerdictMisleading, Assign(0.99, flags, th), "flag %s", f)
		assert.Equal(t, model.VerdictMisleading, Assign(0.95, flags, th), "flag %s", f)
	}

	// Non-substantive flags never upgrade.
	flags := []model.MisleadingFlag{model.FlagOmitsContext, model.FlagCherryPickedPeriod}
	assert.Equal(t, model.VerdictVerified, Assign(0.99, flags, th))
}

func TestAssign_FlagsDoNotDowngradeOrDoubleUpgrade(t *testing.T) {
	th := DefaultThresholds()
	flags := []model.MisleadingFlag{model.FlagGAAPNonGAAPMismatch}

	// Already misleading or incorrect stays put.
	assert.Equal(t, model.VerdictMisleading, Assign(0.80, flags, th))
	assert.Equal(t, model.VerdictIncorrect, Assign(0.10, flags, th))
}

func TestTrustScore(t *testing.T) {
	assert.Equal(t, 100.0, TrustScore(Counts{Verified: 10, Unverifiable: 2}))
	assert.InDelta(t, 85.0, TrustScore(Counts{Verified: 5, Approximate: 5}), 1e-9)
	assert.InDelta(t, 35.0, TrustScore(Counts{Misleading: 10}), 1e-9)
	assert.Equal(t, 0.0, TrustScore(Counts{Incorrect: 10}))
	assert.Equal(t, 50.0, TrustScore(Counts{}))
	assert.Equal(t, 50.0, TrustScore(Counts{Unverifiable: 7}))
}

func TestTrustScore_Monotone(t *testing.T) {
	// Adding verified claims never lowers the score.
	prev := -1.0
	for v := 0; v <= 10; v++ {
		s := TrustScore(Counts{Verified: v, Misleading: 3, Incorrect: 2})
		assert.GreaterOrEqual(t, s, prev)
		prev = s
	}

	// Adding incorrect claims never raises it.
	prev = 101.0
	for i := 0; i <= 10; i++ {
		s := TrustScore(Counts{Verified: 5, Incorrect: i})
		assert.LessOrEqual(t, s, prev)
		prev = s
	}
}

func TestAccuracyRate(t *testing.T) {
	assert.Equal(t, 1.0, AccuracyRate(Counts{Verified: 8, Approximate: 2}))
	assert.Equal(t, 0.5, AccuracyRate(Counts{Verified: 5, Misleading: 5}))
	assert.Equal(t, 0.0, AccuracyRate(Counts{Unverifiable: 3}))
}

func TestCounts_Add(t *testing.T) {
	var c Counts
	for _, v := range []model.Verdict{
		model.VerdictVerified, model.VerdictVerified,
		model.VerdictApproximate,
		model.VerdictMisleading,
		model.VerdictIncorrect,
		model.VerdictUnverifiable,
	} {
		c.Add(v)
	}
	assert.Equal(t, Counts{Verified: 2, Approximate: 1, Misleading: 1, Incorrect: 1, Unverifiable: 1}, c)
	assert.Equal(t, 5, c.Verifiable())
}
