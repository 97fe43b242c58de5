package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/claim-auditor/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetCompanyByTicker_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, ticker, name, sector, created_at FROM companies WHERE ticker = \$1`).
		WithArgs("NONE").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompanyByTicker(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertCompany_CanonicalizesTicker(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO companies .* ON CONFLICT \(ticker\) DO UPDATE`).
		WithArgs("co-1", "AAPL", "Apple Inc.", "Technology", now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "ticker", "name", "sector", "created_at"}).
			AddRow("co-1", "AAPL", "Apple Inc.", "Technology", now))

	c, err := s.UpsertCompany(context.Background(), &model.Company{
		ID:        "co-1",
		Ticker:    " aapl ",
		Name:      "Apple Inc.",
		Sector:    "Technology",
		CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", c.Ticker)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateTranscript_SkipIfExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO transcripts .* ON CONFLICT \(company_id, year, quarter\) DO NOTHING`).
		WithArgs("tr-1", "co-1", 2025, 3, pgxmock.AnyArg(), "call text", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.CreateTranscript(context.Background(), &model.Transcript{
		ID:        "tr-1",
		CompanyID: "co-1",
		Year:      2025,
		Quarter:   3,
		FullText:  "call text",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPeriod_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, data FROM financial_periods`).
		WithArgs("co-1", 2025, 3).
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetPeriod(context.Background(), "co-1", 2025, 3)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPeriod_DecodesPayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	data := []byte(`{"id":"p-1","company_id":"co-1","year":2025,"quarter":3,"revenue":94930000000}`)
	mock.ExpectQuery(`SELECT id, data FROM financial_periods`).
		WithArgs("co-1", 2025, 3).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).AddRow("p-1", data))

	p, err := s.GetPeriod(context.Background(), "co-1", 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "p-1", p.ID)
	require.NotNil(t, p.Revenue)
	assert.Equal(t, 94.93e9, *p.Revenue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateClaims_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"claims"}, []string{"id", "transcript_id", "data", "created_at"}).
		WillReturnResult(2)

	claims := []model.Claim{
		{ID: "c-1", TranscriptID: "tr-1", Metric: "revenue"},
		{ID: "c-2", TranscriptID: "tr-1", Metric: "eps"},
	}
	require.NoError(t, s.CreateClaims(context.Background(), claims))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateClaims_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	require.NoError(t, s.CreateClaims(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateVerification_ConflictIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO verifications .* ON CONFLICT \(claim_id\) DO NOTHING`).
		WithArgs("v-1", "c-1", "verified", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.CreateVerification(context.Background(), &model.Verification{
		ID:      "v-1",
		ClaimID: "c-1",
		Verdict: model.VerdictVerified,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplacePatterns_TxDeleteThenInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM patterns WHERE company_id = \$1`).
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO patterns`).
		WithArgs("pat-1", "co-1", "consistent_rounding_up", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.ReplacePatterns(context.Background(), "co-1", []model.Pattern{{
		ID:        "pat-1",
		CompanyID: "co-1",
		Kind:      model.PatternRoundingUp,
		Severity:  0.8,
	}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplacePatterns_RollsBackOnInsertError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM patterns WHERE company_id = \$1`).
		WithArgs("co-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO patterns`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.ReplacePatterns(context.Background(), "co-1", []model.Pattern{{
		ID:        "pat-1",
		CompanyID: "co-1",
		Kind:      model.PatternRoundingUp,
	}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUnverifiedClaims_Decodes(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	claimJSON := []byte(`{"id":"c-1","transcript_id":"tr-1","metric":"revenue","metric_kind":"growth_rate","stated_value":10,"unit":"percent","comparison_period":"year_over_year","is_gaap":true}`)
	mock.ExpectQuery(`SELECT c\.data, t\.company_id, t\.year, t\.quarter`).
		WillReturnRows(pgxmock.NewRows([]string{"data", "company_id", "year", "quarter"}).AddRow(claimJSON, "co-1", 2025, 3))

	got, err := s.ListUnverifiedClaims(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c-1", got[0].ID)
	assert.Equal(t, "revenue", got[0].Metric)
	assert.Equal(t, "co-1", got[0].CompanyID)
	assert.Equal(t, 2025, got[0].Year)
	assert.Nil(t, got[0].Verification)
	assert.NoError(t, mock.ExpectationsWereMet())
}
