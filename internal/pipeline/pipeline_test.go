package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claim-auditor/internal/config"
	"github.com/sells-group/claim-auditor/internal/extract"
	"github.com/sells-group/claim-auditor/internal/metrics"
	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/internal/store"
	"github.com/sells-group/claim-auditor/pkg/fmp"
)

// --- mocks ---

type mockFMP struct {
	mock.Mock
}

func (m *mockFMP) Profile(ctx context.Context, ticker string) (*fmp.Profile, error) {
	args := m.Called(ctx, ticker)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fmp.Profile), args.Error(1)
}

func (m *mockFMP) Transcript(ctx context.Context, ticker string, year, quarter int) (*fmp.Transcript, error) {
	args := m.Called(ctx, ticker, year, quarter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fmp.Transcript), args.Error(1)
}

func (m *mockFMP) IncomeStatements(ctx context.Context, ticker string, limit int) ([]fmp.IncomeStatement, error) {
	args := m.Called(ctx, ticker, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fmp.IncomeStatement), args.Error(1)
}

func (m *mockFMP) CashFlowStatements(ctx context.Context, ticker string, limit int) ([]fmp.CashFlowStatement, error) {
	args := m.Called(ctx, ticker, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fmp.CashFlowStatement), args.Error(1)
}

func (m *mockFMP) BalanceSheetStatements(ctx context.Context, ticker string, limit int) ([]fmp.BalanceSheetStatement, error) {
	args := m.Called(ctx, ticker, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fmp.BalanceSheetStatement), args.Error(1)
}

// fakeExtractor returns canned claims per (ticker, year, quarter).
type fakeExtractor struct {
	fn func(ticker string, year, quarter int) (*extract.Result, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, text, ticker string, year, quarter int) (*extract.Result, error) {
	return f.fn(ticker, year, quarter)
}

// --- helpers ---

func f64(v float64) *float64 { return &v }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.StatementWindow = 8
	cfg.Pipeline.VerificationTolerance = 0.02
	cfg.Pipeline.ApproximateTolerance = 0.10
	cfg.Pipeline.MisleadingThreshold = 0.25
	cfg.Transcripts.Dir = t.TempDir()
	return cfg
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pipeline_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCompany(t *testing.T, st store.Store, ticker string) *model.Company {
	t.Helper()
	co, err := st.UpsertCompany(context.Background(), &model.Company{
		ID:        uuid.New().String(),
		Ticker:    ticker,
		Name:      ticker + " Inc.",
		Sector:    "Technology",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return co
}

func seedTranscript(t *testing.T, st store.Store, companyID string, year, quarter int) *model.Transcript {
	t.Helper()
	tr := &model.Transcript{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Year:      year,
		Quarter:   quarter,
		FullText:  "Good afternoon, everyone.",
		CreatedAt: time.Now().UTC(),
	}
	created, err := st.CreateTranscript(context.Background(), tr)
	require.NoError(t, err)
	require.True(t, created)
	return tr
}

func seedPeriod(t *testing.T, st store.Store, companyID string, year, quarter int, revenue float64) {
	t.Helper()
	created, err := st.CreatePeriod(context.Background(), &model.FinancialPeriod{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Year:      year,
		Quarter:   quarter,
		Revenue:   f64(revenue),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.True(t, created)
}

func seedClaim(t *testing.T, st store.Store, transcriptID string, c model.Claim) model.Claim {
	t.Helper()
	c.ID = uuid.New().String()
	c.TranscriptID = transcriptID
	c.CreatedAt = time.Now().UTC()
	require.NoError(t, st.CreateClaims(context.Background(), []model.Claim{c}))
	return c
}

func growthClaim(stated float64) model.Claim {
	return model.Claim{
		Speaker:          "CFO",
		ClaimText:        "Revenue grew year over year.",
		Metric:           "revenue",
		MetricKind:       model.MetricGrowthRate,
		StatedValue:      stated,
		Unit:             model.UnitPercent,
		ComparisonPeriod: model.CompareYoY,
		IsGAAP:           true,
		Confidence:       0.9,
	}
}

// --- Ingest ---

func TestIngest(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	m := &mockFMP{}
	ctx := context.Background()

	m.On("Profile", mock.Anything, "AAPL").
		Return(&fmp.Profile{Symbol: "AAPL", CompanyName: "Apple Inc.", Sector: "Technology"}, nil)
	m.On("IncomeStatements", mock.Anything, "AAPL", 8).Return([]fmp.IncomeStatement{
		{
			StatementMeta: fmp.StatementMeta{Date: "2025-06-28", Period: "Q3", FiscalYear: "2025"},
			Revenue:       f64(94.93e9),
			GrossProfit:   f64(43.879e9),
		},
		{
			StatementMeta: fmp.StatementMeta{Date: "2024-06-29", Period: "Q3", FiscalYear: "2024"},
			Revenue:       f64(85.777e9),
		},
	}, nil)
	m.On("CashFlowStatements", mock.Anything, "AAPL", 8).Return([]fmp.CashFlowStatement{
		{
			StatementMeta:     fmp.StatementMeta{Date: "2025-06-28", Period: "Q3", FiscalYear: "2025"},
			OperatingCashFlow: f64(28.0e9),
		},
	}, nil)
	m.On("BalanceSheetStatements", mock.Anything, "AAPL", 8).Return([]fmp.BalanceSheetStatement{
		{
			StatementMeta: fmp.StatementMeta{Date: "2025-06-28", Period: "Q3", FiscalYear: "2025"},
			TotalAssets:   f64(331.0e9),
		},
	}, nil)
	m.On("Transcript", mock.Anything, "AAPL", 2025, 3).
		Return(&fmp.Transcript{Quarter: 3, Year: 2025, Date: "2025-07-31 17:00:00", Content: "Good afternoon."}, nil)
	m.On("Transcript", mock.Anything, "AAPL", 2025, 2).Return(nil, nil)

	p := New(cfg, st, m, nil, metrics.NewRegistry())
	quarters := []Quarter{{Year: 2025, Quarter: 3}, {Year: 2025, Quarter: 2}}

	summary, err := p.Ingest(ctx, []string{"aapl"}, quarters)
	require.NoError(t, err)

	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.Companies)
	assert.Equal(t, 1, summary.TranscriptsFetched)
	assert.Equal(t, 1, summary.TranscriptsMissing, "Q2 has no transcript anywhere")
	assert.Equal(t, 2, summary.PeriodsFetched, "statements merge into two quarters")
	assert.Zero(t, summary.Errors)

	co, err := st.GetCompanyByTicker(ctx, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, co)
	assert.Equal(t, "Apple Inc.", co.Name)

	// Cash flow and balance sheet merged into the Q3 2025 period.
	period, err := st.GetPeriod(ctx, co.ID, 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, period)
	assert.Equal(t, 94.93e9, *period.Revenue)
	assert.Equal(t, 28.0e9, *period.OperatingCashFlow)
	assert.Equal(t, 331.0e9, *period.TotalAssets)
}

func TestIngest_RerunSkips(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	m := &mockFMP{}

	m.On("Profile", mock.Anything, "AAPL").
		Return(&fmp.Profile{Symbol: "AAPL", CompanyName: "Apple Inc."}, nil)
	m.On("IncomeStatements", mock.Anything, "AAPL", 8).Return([]fmp.IncomeStatement{
		{StatementMeta: fmp.StatementMeta{Date: "2025-06-28", Period: "Q3", FiscalYear: "2025"}, Revenue: f64(94.93e9)},
	}, nil)
	m.On("CashFlowStatements", mock.Anything, "AAPL", 8).Return([]fmp.CashFlowStatement{}, nil)
	m.On("BalanceSheetStatements", mock.Anything, "AAPL", 8).Return([]fmp.BalanceSheetStatement{}, nil)
	m.On("Transcript", mock.Anything, "AAPL", 2025, 3).
		Return(&fmp.Transcript{Quarter: 3, Year: 2025, Content: "Hello."}, nil)

	p := New(cfg, st, m, nil, metrics.NewRegistry())
	quarters := []Quarter{{Year: 2025, Quarter: 3}}

	first, err := p.Ingest(context.Background(), []string{"AAPL"}, quarters)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TranscriptsFetched)
	assert.Equal(t, 1, first.PeriodsFetched)

	second, err := p.Ingest(context.Background(), []string{"AAPL"}, quarters)
	require.NoError(t, err)
	assert.Zero(t, second.TranscriptsFetched)
	assert.Equal(t, 1, second.TranscriptsSkipped)
	assert.Zero(t, second.PeriodsFetched)
	assert.Equal(t, 1, second.PeriodsSkipped, "period load skipped wholesale")

	// Statement endpoints were only hit on the first run.
	m.AssertNumberOfCalls(t, "IncomeStatements", 1)
	// The existing transcript row short-circuits before the FMP call.
	m.AssertNumberOfCalls(t, "Transcript", 1)
}

func TestIngest_LocalTranscriptFallback(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	m := &mockFMP{}

	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Transcripts.Dir, "AAPL_Q1_2025.txt"),
		[]byte("Transcript from disk."), 0o644,
	))

	m.On("Profile", mock.Anything, "AAPL").Return(&fmp.Profile{Symbol: "AAPL"}, nil)
	m.On("IncomeStatements", mock.Anything, "AAPL", 8).Return([]fmp.IncomeStatement{}, nil)
	m.On("CashFlowStatements", mock.Anything, "AAPL", 8).Return([]fmp.CashFlowStatement{}, nil)
	m.On("BalanceSheetStatements", mock.Anything, "AAPL", 8).Return([]fmp.BalanceSheetStatement{}, nil)
	m.On("Transcript", mock.Anything, "AAPL", 2025, 1).Return(nil, nil)

	p := New(cfg, st, m, nil, metrics.NewRegistry())
	summary, err := p.Ingest(context.Background(), []string{"AAPL"}, []Quarter{{Year: 2025, Quarter: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TranscriptsFetched)

	co, err := st.GetCompanyByTicker(context.Background(), "AAPL")
	require.NoError(t, err)
	tr, err := st.GetTranscript(context.Background(), co.ID, 2025, 1)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "Transcript from disk.", tr.FullText)
	// Empty profile fields fall back to the ticker and "Unknown".
	assert.Equal(t, "AAPL", co.Name)
	assert.Equal(t, "Unknown", co.Sector)
}

func TestIngest_CompanyErrorCountedOthersContinue(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	m := &mockFMP{}

	m.On("Profile", mock.Anything, "GOOD").Return(&fmp.Profile{Symbol: "GOOD", CompanyName: "Good Co"}, nil)
	m.On("IncomeStatements", mock.Anything, "GOOD", 8).Return([]fmp.IncomeStatement{}, nil)
	m.On("CashFlowStatements", mock.Anything, "GOOD", 8).Return([]fmp.CashFlowStatement{}, nil)
	m.On("BalanceSheetStatements", mock.Anything, "GOOD", 8).Return([]fmp.BalanceSheetStatement{}, nil)
	m.On("Transcript", mock.Anything, "GOOD", 2025, 3).Return(nil, nil)

	m.On("Profile", mock.Anything, "BAD").Return(&fmp.Profile{Symbol: "BAD"}, nil)
	m.On("IncomeStatements", mock.Anything, "BAD", 8).Return(nil, assert.AnError)

	p := New(cfg, st, m, nil, metrics.NewRegistry())
	summary, err := p.Ingest(context.Background(), []string{"GOOD", "BAD"}, []Quarter{{Year: 2025, Quarter: 3}})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Companies)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.OK)
}

// --- Extract ---

func TestExtract(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	ctx := context.Background()

	co := seedCompany(t, st, "AAPL")
	seedTranscript(t, st, co.ID, 2025, 3)

	ext := &fakeExtractor{fn: func(ticker string, year, quarter int) (*extract.Result, error) {
		assert.Equal(t, "AAPL", ticker)
		return &extract.Result{
			Claims:  []model.Claim{growthClaim(10.7)},
			Raw:     3,
			Invalid: 1,
			Deduped: 1,
		}, nil
	}}

	p := New(cfg, st, nil, ext, metrics.NewRegistry())
	summary, err := p.Extract(ctx)
	require.NoError(t, err)

	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.TranscriptsProcessed)
	assert.Equal(t, 1, summary.ClaimsExtracted)
	assert.Equal(t, 1, summary.ClaimsInvalid)
	assert.Equal(t, 1, summary.ClaimsDeduped)

	unverified, err := st.ListUnverifiedClaims(ctx)
	require.NoError(t, err)
	require.Len(t, unverified, 1)
	assert.NotEmpty(t, unverified[0].ID)
	assert.NotEmpty(t, unverified[0].TranscriptID)

	// Rerun finds nothing to extract.
	second, err := p.Extract(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.TranscriptsProcessed)
}

func TestExtract_ErrorCounted(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)

	co := seedCompany(t, st, "AAPL")
	seedTranscript(t, st, co.ID, 2025, 3)

	ext := &fakeExtractor{fn: func(string, int, int) (*extract.Result, error) {
		return nil, assert.AnError
	}}

	p := New(cfg, st, nil, ext, metrics.NewRegistry())
	summary, err := p.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	assert.False(t, summary.OK)
}

// --- Verify ---

func TestVerify(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	ctx := context.Background()

	co := seedCompany(t, st, "AAPL")
	tr := seedTranscript(t, st, co.ID, 2025, 3)
	seedPeriod(t, st, co.ID, 2025, 3, 94.93e9)
	seedPeriod(t, st, co.ID, 2024, 3, 85.777e9)

	seedClaim(t, st, tr.ID, growthClaim(10.7)) // actual ~10.67 -> verified
	unknown := growthClaim(5)
	unknown.Metric = "customer_delight_index"
	seedClaim(t, st, tr.ID, unknown) // unresolvable -> unverifiable

	p := New(cfg, st, nil, nil, metrics.NewRegistry())
	summary, err := p.Verify(ctx)
	require.NoError(t, err)

	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.Verified)
	assert.Equal(t, 1, summary.Unverifiable)
	assert.Equal(t, 2, summary.Total())

	// Existing verifications are never reprocessed.
	second, err := p.Verify(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Total())
}

// --- Analyze ---

func TestAnalyzeAndReport(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	ctx := context.Background()

	co := seedCompany(t, st, "AAPL")
	seedPeriod(t, st, co.ID, 2025, 3, 94.93e9)
	seedPeriod(t, st, co.ID, 2024, 3, 85.777e9)
	tr := seedTranscript(t, st, co.ID, 2025, 3)

	seedClaim(t, st, tr.ID, growthClaim(10.7)) // verified
	seedClaim(t, st, tr.ID, growthClaim(15.0)) // wildly overstated -> incorrect

	p := New(cfg, st, nil, nil, metrics.NewRegistry())
	_, err := p.Verify(ctx)
	require.NoError(t, err)

	summary, err := p.Analyze(ctx)
	require.NoError(t, err)
	assert.True(t, summary.OK)
	assert.Equal(t, 1, summary.CompaniesAnalyzed)

	report, err := p.BuildCompanyAnalysis(ctx, "aapl")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "AAPL", report.Ticker)
	assert.Equal(t, 2, report.TotalClaims)
	assert.Equal(t, 1, report.Verified)
	assert.Equal(t, 1, report.Incorrect)
	assert.InDelta(t, 0.5, report.AccuracyRate, 0.001)
	assert.Equal(t, []string{"Q3 2025"}, report.QuartersAnalyzed)
	require.Len(t, report.TopDiscrepancies, 1)
	assert.Equal(t, model.VerdictIncorrect, report.TopDiscrepancies[0].Verdict)
}

func TestAnalyze_SkipsCompanyWithoutVerifiedClaims(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)

	seedCompany(t, st, "IDLE")

	p := New(cfg, st, nil, nil, metrics.NewRegistry())
	summary, err := p.Analyze(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.OK)
	assert.Zero(t, summary.CompaniesAnalyzed)
}

func TestBuildCompanyAnalysis_UnknownTicker(t *testing.T) {
	st := newTestStore(t)
	p := New(testConfig(t), st, nil, nil, metrics.NewRegistry())

	report, err := p.BuildCompanyAnalysis(context.Background(), "NONE")
	require.NoError(t, err)
	assert.Nil(t, report)
}

// --- Run ---

func TestRun_StepOrderAndValidation(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(t)
	p := New(cfg, st, nil, nil, metrics.NewRegistry())

	summary, err := p.Run(context.Background(), nil, nil, []string{"analyze", "verify"})
	require.NoError(t, err)
	assert.Equal(t, []string{"verify", "analyze"}, summary.StepsRun, "canonical order regardless of request order")
	assert.True(t, summary.OK)

	_, err = p.Run(context.Background(), nil, nil, []string{"transmogrify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

// --- Quarter helpers ---

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter("Q3 2025")
	require.NoError(t, err)
	assert.Equal(t, Quarter{Year: 2025, Quarter: 3}, q)
	assert.Equal(t, "Q3 2025", q.Label())

	for _, bad := range []string{"", "2025 Q3", "Q5 2025", "Q0 2025", "Q3"} {
		_, err := ParseQuarter(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecentQuarters(t *testing.T) {
	now := time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	got := RecentQuarters(5, now)
	want := []Quarter{
		{Year: 2025, Quarter: 4},
		{Year: 2025, Quarter: 3},
		{Year: 2025, Quarter: 2},
		{Year: 2025, Quarter: 1},
		{Year: 2024, Quarter: 4},
	}
	assert.Equal(t, want, got)
}

func TestQuarterPrevious(t *testing.T) {
	assert.Equal(t, Quarter{Year: 2025, Quarter: 2}, Quarter{Year: 2025, Quarter: 3}.Previous())
	assert.Equal(t, Quarter{Year: 2024, Quarter: 4}, Quarter{Year: 2025, Quarter: 1}.Previous())
}
