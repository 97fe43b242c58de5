package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/claim-auditor/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for local
// runs without a Postgres instance; one file holds the whole audit state.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	sector     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
	call_date  DATETIME,
	full_text  TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (company_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS financial_periods (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (company_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS claims (
	id            TEXT PRIMARY KEY,
	transcript_id TEXT NOT NULL REFERENCES transcripts(id),
	data          TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS verifications (
	id         TEXT PRIMARY KEY,
	claim_id   TEXT NOT NULL UNIQUE REFERENCES claims(id),
	verdict    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS patterns (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transcripts_company ON transcripts(company_id);
CREATE INDEX IF NOT EXISTS idx_periods_company ON financial_periods(company_id);
CREATE INDEX IF NOT EXISTS idx_claims_transcript ON claims(transcript_id);
CREATE INDEX IF NOT EXISTS idx_patterns_company ON patterns(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	var out model.Company
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, ticker, name, sector, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (ticker) DO UPDATE SET name = excluded.name, sector = excluded.sector
		 RETURNING id, ticker, name, sector, created_at`,
		c.ID, model.CanonicalTicker(c.Ticker), c.Name, c.Sector, c.CreatedAt,
	).Scan(&out.ID, &out.Ticker, &out.Name, &out.Sector, &out.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert company %s", c.Ticker)
	}
	return &out, nil
}

func (s *SQLiteStore) GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, name, sector, created_at FROM companies WHERE ticker = ?`,
		model.CanonicalTicker(ticker),
	).Scan(&c.ID, &c.Ticker, &c.Name, &c.Sector, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", ticker)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticker, name, sector, created_at FROM companies ORDER BY ticker`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Name, &c.Sector, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) CreateTranscript(ctx context.Context, t *model.Transcript) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, company_id, year, quarter, call_date, full_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, year, quarter) DO NOTHING`,
		t.ID, t.CompanyID, t.Year, t.Quarter, t.CallDate, t.FullText, t.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert transcript %s Q%d %d", t.CompanyID, t.Quarter, t.Year)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetTranscript(ctx context.Context, companyID string, year, quarter int) (*model.Transcript, error) {
	var t model.Transcript
	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, year, quarter, call_date, full_text, created_at
		 FROM transcripts WHERE company_id = ? AND year = ? AND quarter = ?`,
		companyID, year, quarter,
	).Scan(&t.ID, &t.CompanyID, &t.Year, &t.Quarter, &t.CallDate, &t.FullText, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get transcript")
	}
	return &t, nil
}

func (s *SQLiteStore) ListUnextractedTranscripts(ctx context.Context) ([]model.Transcript, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.company_id, t.year, t.quarter, t.call_date, t.full_text, t.created_at
		 FROM transcripts t
		 WHERE NOT EXISTS (SELECT 1 FROM claims c WHERE c.transcript_id = t.id)
		 ORDER BY t.company_id, t.year, t.quarter`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unextracted transcripts")
	}
	defer rows.Close()

	var transcripts []model.Transcript
	for rows.Next() {
		var t model.Transcript
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Year, &t.Quarter, &t.CallDate, &t.FullText, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transcript")
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, eris.Wrap(rows.Err(), "sqlite: list unextracted iterate")
}

func (s *SQLiteStore) CreatePeriod(ctx context.Context, p *model.FinancialPeriod) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal period")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO financial_periods (id, company_id, year, quarter, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (company_id, year, quarter) DO NOTHING`,
		p.ID, p.CompanyID, p.Year, p.Quarter, string(data), p.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert period %s Q%d %d", p.CompanyID, p.Quarter, p.Year)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetPeriod(ctx context.Context, companyID string, year, quarter int) (*model.FinancialPeriod, error) {
	var id, data string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, data FROM financial_periods WHERE company_id = ? AND year = ? AND quarter = ?`,
		companyID, year, quarter,
	).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get period")
	}

	var p model.FinancialPeriod
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal period")
	}
	p.ID = id
	return &p, nil
}

func (s *SQLiteStore) CountPeriods(ctx context.Context, companyID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM financial_periods WHERE company_id = ?`,
		companyID,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count periods")
}

func (s *SQLiteStore) CreateClaims(ctx context.Context, claims []model.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert claims")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO claims (id, transcript_id, data, created_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert claims")
	}
	defer stmt.Close()

	for i := range claims {
		c := &claims[i]
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal claim %s", c.ID)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.TranscriptID, string(data), c.CreatedAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert claim %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert claims")
}

func (s *SQLiteStore) ListUnverifiedClaims(ctx context.Context) ([]model.ClaimWithVerification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.data, t.company_id, t.year, t.quarter
		 FROM claims c
		 JOIN transcripts t ON t.id = c.transcript_id
		 LEFT JOIN verifications v ON v.claim_id = c.id
		 WHERE v.id IS NULL
		 ORDER BY t.company_id, t.year, t.quarter, c.id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unverified claims")
	}
	defer rows.Close()

	var out []model.ClaimWithVerification
	for rows.Next() {
		var cwv model.ClaimWithVerification
		var claimData string
		if err := rows.Scan(&claimData, &cwv.CompanyID, &cwv.Year, &cwv.Quarter); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		if err := json.Unmarshal([]byte(claimData), &cwv.Claim); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal claim")
		}
		out = append(out, cwv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: claims iterate")
}

func (s *SQLiteStore) ListClaimsForCompany(ctx context.Context, companyID string) ([]model.ClaimWithVerification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.data, t.company_id, t.year, t.quarter, v.data
		 FROM claims c
		 JOIN transcripts t ON t.id = c.transcript_id
		 LEFT JOIN verifications v ON v.claim_id = c.id
		 WHERE t.company_id = ?
		 ORDER BY t.year, t.quarter, c.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list claims for company %s", companyID)
	}
	defer rows.Close()

	var out []model.ClaimWithVerification
	for rows.Next() {
		var cwv model.ClaimWithVerification
		var claimData string
		var verificationData sql.NullString
		if err := rows.Scan(&claimData, &cwv.CompanyID, &cwv.Year, &cwv.Quarter, &verificationData); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan claim")
		}
		if err := json.Unmarshal([]byte(claimData), &cwv.Claim); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal claim")
		}
		if verificationData.Valid {
			cwv.Verification = &model.Verification{}
			if err := json.Unmarshal([]byte(verificationData.String), cwv.Verification); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal verification")
			}
		}
		out = append(out, cwv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: claims iterate")
}

func (s *SQLiteStore) CreateVerification(ctx context.Context, v *model.Verification) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal verification")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verifications (id, claim_id, verdict, data, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (claim_id) DO NOTHING`,
		v.ID, v.ClaimID, string(v.Verdict), string(data), v.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert verification for claim %s", v.ClaimID)
}

func (s *SQLiteStore) ReplacePatterns(ctx context.Context, companyID string, patterns []model.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace patterns")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE company_id = ?`, companyID); err != nil {
		return eris.Wrapf(err, "sqlite: delete patterns for %s", companyID)
	}

	for i := range patterns {
		p := &patterns[i]
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal pattern %s", p.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO patterns (id, company_id, kind, data, created_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.CompanyID, string(p.Kind), string(data), p.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert pattern %s", p.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace patterns")
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, companyID string) ([]model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM patterns WHERE company_id = ? ORDER BY kind`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list patterns for %s", companyID)
	}
	defer rows.Close()

	var patterns []model.Pattern
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		var p model.Pattern
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "sqlite: list patterns iterate")
}
