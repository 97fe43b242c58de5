package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/internal/store"
	"github.com/sells-group/claim-auditor/internal/verify"
)

// storePeriodSource adapts the store to the verification engine's period
// lookup. The engine treats a nil period as "quarter absent".
type storePeriodSource struct {
	store store.Store
}

func (s storePeriodSource) PeriodFor(ctx context.Context, companyID string, year, quarter int) (*model.FinancialPeriod, error) {
	return s.store.GetPeriod(ctx, companyID, year, quarter)
}

// Verify runs the verification engine over every claim without a
// verification. Existing verifications are never touched; an engine failure
// for one claim is counted and the rest continue. The stage is sequential:
// it is pure computation plus indexed point lookups.
func (p *Pipeline) Verify(ctx context.Context) (*model.VerifySummary, error) {
	claims, err := p.store.ListUnverifiedClaims(ctx)
	if err != nil {
		return nil, err
	}

	engine := verify.NewEngine(p.registry, storePeriodSource{store: p.store}, p.thresholds())
	summary := &model.VerifySummary{}

	for i := range claims {
		c := &claims[i]
		v, err := engine.Verify(ctx, &c.Claim, c.CompanyID, c.Year, c.Quarter)
		if err != nil {
			summary.Errors++
			zap.L().Error("verification failed",
				zap.String("claim_id", c.ID),
				zap.String("metric", c.Metric),
				zap.Error(err),
			)
			continue
		}
		if err := p.store.CreateVerification(ctx, v); err != nil {
			summary.Errors++
			zap.L().Error("persisting verification failed",
				zap.String("claim_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		summary.Add(v.Verdict)
	}

	summary.OK = summary.Errors == 0
	zap.L().Info("verify complete",
		zap.Int("verified", summary.Verified),
		zap.Int("approximate", summary.Approximate),
		zap.Int("misleading", summary.Misleading),
		zap.Int("incorrect", summary.Incorrect),
		zap.Int("unverifiable", summary.Unverifiable),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}
