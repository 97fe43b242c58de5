package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/pkg/fmp"
)

// Ingest populates companies, transcripts, and financial periods for the
// given tickers and quarters. Tickers are processed in parallel by a bounded
// worker pool; a failure for one ticker is counted and does not stop the
// others. Reruns skip rows that already exist.
func (p *Pipeline) Ingest(ctx context.Context, tickers []string, quarters []Quarter) (*model.IngestSummary, error) {
	if p.fmp == nil {
		return nil, eris.New("pipeline: ingest requires an FMP client")
	}
	if len(tickers) == 0 {
		tickers = p.cfg.Pipeline.TargetTickers
	}
	if len(tickers) == 0 {
		return nil, eris.New("pipeline: no target tickers configured")
	}
	if len(quarters) == 0 {
		var err error
		quarters, err = ParseQuarters(p.cfg.Pipeline.TargetQuarters)
		if err != nil {
			return nil, err
		}
	}
	if len(quarters) == 0 {
		quarters = RecentQuarters(4, time.Now())
	}

	summary := &model.IngestSummary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for _, ticker := range tickers {
		ticker := model.CanonicalTicker(ticker)
		g.Go(func() error {
			one, err := p.ingestCompany(gctx, ticker, quarters)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors++
				zap.L().Error("ingest failed for company",
					zap.String("ticker", ticker),
					zap.Error(err),
				)
				return nil
			}
			summary.Companies++
			summary.TranscriptsFetched += one.TranscriptsFetched
			summary.TranscriptsSkipped += one.TranscriptsSkipped
			summary.TranscriptsMissing += one.TranscriptsMissing
			summary.PeriodsFetched += one.PeriodsFetched
			summary.PeriodsSkipped += one.PeriodsSkipped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.OK = summary.Errors == 0
	zap.L().Info("ingest complete",
		zap.Int("companies", summary.Companies),
		zap.Int("transcripts_fetched", summary.TranscriptsFetched),
		zap.Int("periods_fetched", summary.PeriodsFetched),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (p *Pipeline) ingestCompany(ctx context.Context, ticker string, quarters []Quarter) (*model.IngestSummary, error) {
	one := &model.IngestSummary{}

	company, err := p.upsertCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}

	fetched, skipped, err := p.ingestFinancials(ctx, company)
	if err != nil {
		return nil, err
	}
	one.PeriodsFetched = fetched
	one.PeriodsSkipped = skipped

	for _, q := range quarters {
		outcome, err := p.ingestTranscript(ctx, company, ticker, q)
		if err != nil {
			return nil, err
		}
		switch outcome {
		case transcriptFetched:
			one.TranscriptsFetched++
		case transcriptSkipped:
			one.TranscriptsSkipped++
		case transcriptMissing:
			one.TranscriptsMissing++
		}
	}
	return one, nil
}

// upsertCompany fetches the profile and writes the company row. A missing or
// restricted profile is not fatal: the ticker itself is enough identity.
func (p *Pipeline) upsertCompany(ctx context.Context, ticker string) (*model.Company, error) {
	name, sector := ticker, "Unknown"
	profile, err := p.fmp.Profile(ctx, ticker)
	if err != nil {
		zap.L().Warn("profile fetch failed, using ticker as name",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
	} else if profile != nil {
		if profile.CompanyName != "" {
			name = profile.CompanyName
		}
		if profile.Sector != "" {
			sector = profile.Sector
		}
	}

	company, err := p.store.UpsertCompany(ctx, &model.Company{
		ID:        uuid.New().String(),
		Ticker:    ticker,
		Name:      name,
		Sector:    sector,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

// ingestFinancials merges the three statement feeds into FinancialPeriod
// rows. A company whose periods are already loaded is skipped wholesale.
func (p *Pipeline) ingestFinancials(ctx context.Context, company *model.Company) (fetched, skipped int, err error) {
	count, err := p.store.CountPeriods(ctx, company.ID)
	if err != nil {
		return 0, 0, err
	}
	if count > 0 {
		zap.L().Debug("financial periods already loaded",
			zap.String("ticker", company.Ticker),
			zap.Int("periods", count),
		)
		return 0, count, nil
	}

	window := p.cfg.Pipeline.StatementWindow
	if window <= 0 {
		window = 8
	}

	income, err := p.fmp.IncomeStatements(ctx, company.Ticker, window)
	if err != nil {
		return 0, 0, err
	}
	cashflow, err := p.fmp.CashFlowStatements(ctx, company.Ticker, window)
	if err != nil {
		return 0, 0, err
	}
	balance, err := p.fmp.BalanceSheetStatements(ctx, company.Ticker, window)
	if err != nil {
		return 0, 0, err
	}

	for _, period := range mergeStatements(company.ID, income, cashflow, balance) {
		created, err := p.store.CreatePeriod(ctx, period)
		if err != nil {
			return fetched, skipped, err
		}
		if created {
			fetched++
		} else {
			skipped++
		}
	}
	return fetched, skipped, nil
}

// mergeStatements joins the three statement feeds on (year, quarter). Rows
// without a resolvable quarterly period key are dropped.
func mergeStatements(
	companyID string,
	income []fmp.IncomeStatement,
	cashflow []fmp.CashFlowStatement,
	balance []fmp.BalanceSheetStatement,
) []*model.FinancialPeriod {
	byQuarter := map[Quarter]*model.FinancialPeriod{}
	var order []Quarter

	periodFor := func(meta fmp.StatementMeta) *model.FinancialPeriod {
		year, quarter, ok := meta.PeriodKey()
		if !ok {
			return nil
		}
		key := Quarter{Year: year, Quarter: quarter}
		if p, exists := byQuarter[key]; exists {
			return p
		}
		p := &model.FinancialPeriod{
			ID:        uuid.New().String(),
			CompanyID: companyID,
			Year:      year,
			Quarter:   quarter,
			CreatedAt: time.Now().UTC(),
		}
		byQuarter[key] = p
		order = append(order, key)
		return p
	}

	for _, s := range income {
		p := periodFor(s.StatementMeta)
		if p == nil {
			continue
		}
		p.Revenue = s.Revenue
		p.CostOfRevenue = s.CostOfRevenue
		p.GrossProfit = s.GrossProfit
		p.OperatingIncome = s.OperatingIncome
		p.OperatingExpenses = s.OperatingExpenses
		p.NetIncome = s.NetIncome
		p.EPS = s.EPS
		p.EPSDiluted = s.DilutedEPS()
		p.EBITDA = s.EBITDA
		p.ResearchAndDevelopment = s.ResearchAndDevelopment
		p.SellingGeneralAdmin = s.SellingGeneralAdmin
		p.InterestExpense = s.InterestExpense
		p.IncomeTaxExpense = s.IncomeTaxExpense
	}
	for _, s := range cashflow {
		p := periodFor(s.StatementMeta)
		if p == nil {
			continue
		}
		p.OperatingCashFlow = s.OperatingCashFlow
		p.CapitalExpenditure = s.CapitalExpenditure
		p.FreeCashFlow = s.FreeCashFlow
	}
	for _, s := range balance {
		p := periodFor(s.StatementMeta)
		if p == nil {
			continue
		}
		p.TotalAssets = s.TotalAssets
		p.TotalLiabilities = s.TotalLiabilities
		p.TotalDebt = s.TotalDebt
		p.CashAndEquivalents = s.CashAndEquivalents
		p.ShareholdersEquity = s.ShareholdersEquity
	}

	out := make([]*model.FinancialPeriod, 0, len(order))
	for _, key := range order {
		out = append(out, byQuarter[key])
	}
	return out
}

type transcriptOutcome int

const (
	transcriptFetched transcriptOutcome = iota
	transcriptSkipped
	transcriptMissing
)

// ingestTranscript writes one transcript row, trying FMP first and a local
// file second. A quarter with no transcript anywhere is a benign miss.
func (p *Pipeline) ingestTranscript(ctx context.Context, company *model.Company, ticker string, q Quarter) (transcriptOutcome, error) {
	existing, err := p.store.GetTranscript(ctx, company.ID, q.Year, q.Quarter)
	if err != nil {
		return transcriptMissing, err
	}
	if existing != nil {
		return transcriptSkipped, nil
	}

	text, callDate, err := p.fetchTranscriptText(ctx, ticker, q)
	if err != nil {
		return transcriptMissing, err
	}
	if text == "" {
		zap.L().Warn("no transcript available",
			zap.String("ticker", ticker),
			zap.Int("year", q.Year),
			zap.Int("quarter", q.Quarter),
		)
		return transcriptMissing, nil
	}

	created, err := p.store.CreateTranscript(ctx, &model.Transcript{
		ID:        uuid.New().String(),
		CompanyID: company.ID,
		Year:      q.Year,
		Quarter:   q.Quarter,
		CallDate:  callDate,
		FullText:  text,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return transcriptMissing, err
	}
	if !created {
		return transcriptSkipped, nil
	}
	return transcriptFetched, nil
}

func (p *Pipeline) fetchTranscriptText(ctx context.Context, ticker string, q Quarter) (string, time.Time, error) {
	tr, err := p.fmp.Transcript(ctx, ticker, q.Year, q.Quarter)
	if err != nil {
		return "", time.Time{}, err
	}
	if tr != nil {
		return tr.Content, parseCallDate(tr.Date), nil
	}

	// Local fallback for quarters the provider does not carry.
	path := filepath.Join(p.cfg.Transcripts.Dir, fmt.Sprintf("%s_Q%d_%d.txt", ticker, q.Quarter, q.Year))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, nil
		}
		return "", time.Time{}, eris.Wrapf(err, "pipeline: read local transcript %s", path)
	}
	zap.L().Info("loaded transcript from local file", zap.String("path", path))
	return string(data), time.Time{}, nil
}

func parseCallDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
