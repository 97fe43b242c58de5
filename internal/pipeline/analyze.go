package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/analyze"
	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/internal/verdict"
)

// Analyze recomputes cross-quarter patterns for every company with at least
// one verified claim, replacing each company's pattern set atomically.
// Companies are processed sequentially: the analyzer is pure CPU and the
// replace must not race with itself for the same company.
func (p *Pipeline) Analyze(ctx context.Context) (*model.AnalyzeSummary, error) {
	companies, err := p.store.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	summary := &model.AnalyzeSummary{PatternsByKind: map[string]int{}}

	for i := range companies {
		company := &companies[i]
		claims, err := p.store.ListClaimsForCompany(ctx, company.ID)
		if err != nil {
			summary.Errors++
			zap.L().Error("listing claims failed",
				zap.String("ticker", company.Ticker),
				zap.Error(err),
			)
			continue
		}

		if !hasVerifiedClaim(claims) {
			continue
		}

		patterns := p.analyzer.AnalyzeCompany(company.ID, groupByQuarter(claims))
		if err := p.store.ReplacePatterns(ctx, company.ID, patterns); err != nil {
			summary.Errors++
			zap.L().Error("replacing patterns failed",
				zap.String("ticker", company.Ticker),
				zap.Error(err),
			)
			continue
		}

		summary.CompaniesAnalyzed++
		for _, pat := range patterns {
			summary.PatternsByKind[string(pat.Kind)]++
		}
	}

	summary.OK = summary.Errors == 0
	zap.L().Info("analyze complete",
		zap.Int("companies", summary.CompaniesAnalyzed),
		zap.Any("patterns_by_kind", summary.PatternsByKind),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

// BuildCompanyAnalysis assembles the per-company report consumed by the
// report command and the HTTP API.
func (p *Pipeline) BuildCompanyAnalysis(ctx context.Context, ticker string) (*model.CompanyAnalysis, error) {
	company, err := p.store.GetCompanyByTicker(ctx, model.CanonicalTicker(ticker))
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, nil
	}

	claims, err := p.store.ListClaimsForCompany(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	patterns, err := p.store.ListPatterns(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	var counts verdict.Counts
	var discrepancies []model.Discrepancy
	quarters := map[string]bool{}

	for _, c := range claims {
		quarters[model.QuarterLabel(c.Year, c.Quarter)] = true
		if c.Verification == nil {
			continue
		}
		counts.Add(c.Verification.Verdict)

		switch c.Verification.Verdict {
		case model.VerdictMisleading, model.VerdictIncorrect:
			discrepancies = append(discrepancies, model.Discrepancy{
				ClaimID:     c.ID,
				ClaimText:   c.ClaimText,
				Speaker:     c.Speaker,
				Metric:      c.Metric,
				StatedValue: c.StatedValue,
				ActualValue: c.Verification.ActualValue,
				Verdict:     c.Verification.Verdict,
				Explanation: c.Verification.Explanation,
			})
		}
	}

	// Worst first: incorrect before misleading, then by distance from truth.
	sort.SliceStable(discrepancies, func(i, j int) bool {
		if discrepancies[i].Verdict != discrepancies[j].Verdict {
			return discrepancies[i].Verdict == model.VerdictIncorrect
		}
		return discrepancyGap(discrepancies[i]) > discrepancyGap(discrepancies[j])
	})
	if len(discrepancies) > 10 {
		discrepancies = discrepancies[:10]
	}

	return &model.CompanyAnalysis{
		Ticker:           company.Ticker,
		Name:             company.Name,
		Sector:           company.Sector,
		TotalClaims:      len(claims),
		Verified:         counts.Verified,
		Approximate:      counts.Approximate,
		Misleading:       counts.Misleading,
		Incorrect:        counts.Incorrect,
		Unverifiable:     counts.Unverifiable,
		AccuracyRate:     verdict.AccuracyRate(counts),
		TrustScore:       verdict.TrustScore(counts),
		TopDiscrepancies: discrepancies,
		Patterns:         patterns,
		QuartersAnalyzed: sortedQuarterLabels(quarters),
	}, nil
}

func discrepancyGap(d model.Discrepancy) float64 {
	if d.ActualValue == nil {
		return 0
	}
	gap := d.StatedValue - *d.ActualValue
	if gap < 0 {
		gap = -gap
	}
	return gap
}

func groupByQuarter(claims []model.ClaimWithVerification) analyze.ClaimsByQuarter {
	cbq := analyze.ClaimsByQuarter{}
	for _, c := range claims {
		label := model.QuarterLabel(c.Year, c.Quarter)
		cbq[label] = append(cbq[label], c)
	}
	return cbq
}

func hasVerifiedClaim(claims []model.ClaimWithVerification) bool {
	for _, c := range claims {
		if c.Verification != nil && c.Verification.Verdict != model.VerdictUnverifiable {
			return true
		}
	}
	return false
}

func sortedQuarterLabels(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for label := range set {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		qi, erri := ParseQuarter(out[i])
		qj, errj := ParseQuarter(out[j])
		if erri != nil || errj != nil {
			return out[i] < out[j]
		}
		if qi.Year != qj.Year {
			return qi.Year < qj.Year
		}
		return qi.Quarter < qj.Quarter
	})
	return out
}
