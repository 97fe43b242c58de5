package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/claim-auditor/internal/db"
	"github.com/sells-group/claim-auditor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection. Verify
// hammers get_period once or twice per claim, so it benefits the most.
var preparedStatements = map[string]string{
	"get_company_by_ticker": `SELECT id, ticker, name, sector, created_at FROM companies WHERE ticker = $1`,
	"get_transcript":        `SELECT id, company_id, year, quarter, call_date, full_text, created_at FROM transcripts WHERE company_id = $1 AND year = $2 AND quarter = $3`,
	"get_period":            `SELECT id, data FROM financial_periods WHERE company_id = $1 AND year = $2 AND quarter = $3`,
	"count_periods":         `SELECT COUNT(*) FROM financial_periods WHERE company_id = $1`,
	"insert_verification":   `INSERT INTO verifications (id, claim_id, verdict, data, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (claim_id) DO NOTHING`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	sector     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
	call_date  TIMESTAMPTZ,
	full_text  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS financial_periods (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	year       INTEGER NOT NULL,
	quarter    INTEGER NOT NULL CHECK (quarter BETWEEN 1 AND 4),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, year, quarter)
);

CREATE TABLE IF NOT EXISTS claims (
	id            TEXT PRIMARY KEY,
	transcript_id TEXT NOT NULL REFERENCES transcripts(id),
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verifications (
	id         TEXT PRIMARY KEY,
	claim_id   TEXT NOT NULL UNIQUE REFERENCES claims(id),
	verdict    TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patterns (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_company ON transcripts(company_id);
CREATE INDEX IF NOT EXISTS idx_periods_company ON financial_periods(company_id);
CREATE INDEX IF NOT EXISTS idx_claims_transcript ON claims(transcript_id);
CREATE INDEX IF NOT EXISTS idx_verifications_verdict ON verifications(verdict);
CREATE INDEX IF NOT EXISTS idx_patterns_company ON patterns(company_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error) {
	var out model.Company
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, ticker, name, sector, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (ticker) DO UPDATE SET name = EXCLUDED.name, sector = EXCLUDED.sector
		 RETURNING id, ticker, name, sector, created_at`,
		c.ID, model.CanonicalTicker(c.Ticker), c.Name, c.Sector, c.CreatedAt,
	).Scan(&out.ID, &out.Ticker, &out.Name, &out.Sector, &out.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert company %s", c.Ticker)
	}
	return &out, nil
}

func (s *PostgresStore) GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, ticker, name, sector, created_at FROM companies WHERE ticker = $1`,
		model.CanonicalTicker(ticker),
	).Scan(&c.ID, &c.Ticker, &c.Name, &c.Sector, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", ticker)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ticker, name, sector, created_at FROM companies ORDER BY ticker`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Name, &c.Sector, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) CreateTranscript(ctx context.Context, t *model.Transcript) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (id, company_id, year, quarter, call_date, full_text, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (company_id, year, quarter) DO NOTHING`,
		t.ID, t.CompanyID, t.Year, t.Quarter, t.CallDate, t.FullText, t.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert transcript %s Q%d %d", t.CompanyID, t.Quarter, t.Year)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetTranscript(ctx context.Context, companyID string, year, quarter int) (*model.Transcript, error) {
	var t model.Transcript
	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, year, quarter, call_date, full_text, created_at
		 FROM transcripts WHERE company_id = $1 AND year = $2 AND quarter = $3`,
		companyID, year, quarter,
	).Scan(&t.ID, &t.CompanyID, &t.Year, &t.Quarter, &t.CallDate, &t.FullText, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get transcript")
	}
	return &t, nil
}

func (s *PostgresStore) ListUnextractedTranscripts(ctx context.Context) ([]model.Transcript, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.company_id, t.year, t.quarter, t.call_date, t.full_text, t.created_at
		 FROM transcripts t
		 WHERE NOT EXISTS (SELECT 1 FROM claims c WHERE c.transcript_id = t.id)
		 ORDER BY t.company_id, t.year, t.quarter`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unextracted transcripts")
	}
	defer rows.Close()

	var transcripts []model.Transcript
	for rows.Next() {
		var t model.Transcript
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Year, &t.Quarter, &t.CallDate, &t.FullText, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transcript")
		}
		transcripts = append(transcripts, t)
	}
	return transcripts, eris.Wrap(rows.Err(), "postgres: list unextracted iterate")
}

func (s *PostgresStore) CreatePeriod(ctx context.Context, p *model.FinancialPeriod) (bool, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal period")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO financial_periods (id, company_id, year, quarter, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (company_id, year, quarter) DO NOTHING`,
		p.ID, p.CompanyID, p.Year, p.Quarter, data, p.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert period %s Q%d %d", p.CompanyID, p.Quarter, p.Year)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetPeriod(ctx context.Context, companyID string, year, quarter int) (*model.FinancialPeriod, error) {
	var id string
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, data FROM financial_periods WHERE company_id = $1 AND year = $2 AND quarter = $3`,
		companyID, year, quarter,
	).Scan(&id, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get period")
	}

	var p model.FinancialPeriod
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal period")
	}
	p.ID = id
	return &p, nil
}

func (s *PostgresStore) CountPeriods(ctx context.Context, companyID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM financial_periods WHERE company_id = $1`,
		companyID,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count periods")
}

func (s *PostgresStore) CreateClaims(ctx context.Context, claims []model.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(claims))
	for i := range claims {
		c := &claims[i]
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal claim %s", c.ID)
		}
		rows = append(rows, []any{c.ID, c.TranscriptID, data, c.CreatedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "claims", []string{"id", "transcript_id", "data", "created_at"}, rows)
	return eris.Wrap(err, "postgres: insert claims")
}

func (s *PostgresStore) ListUnverifiedClaims(ctx context.Context) ([]model.ClaimWithVerification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.data, t.company_id, t.year, t.quarter
		 FROM claims c
		 JOIN transcripts t ON t.id = c.transcript_id
		 LEFT JOIN verifications v ON v.claim_id = c.id
		 WHERE v.id IS NULL
		 ORDER BY t.company_id, t.year, t.quarter, c.id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unverified claims")
	}
	defer rows.Close()

	return scanClaimRows(rows, false)
}

func (s *PostgresStore) ListClaimsForCompany(ctx context.Context, companyID string) ([]model.ClaimWithVerification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.data, t.company_id, t.year, t.quarter, v.data
		 FROM claims c
		 JOIN transcripts t ON t.id = c.transcript_id
		 LEFT JOIN verifications v ON v.claim_id = c.id
		 WHERE t.company_id = $1
		 ORDER BY t.year, t.quarter, c.id`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list claims for company %s", companyID)
	}
	defer rows.Close()

	return scanClaimRows(rows, true)
}

// scanClaimRows decodes claim rows; withVerification selects the five-column
// shape that carries a nullable verification payload.
func scanClaimRows(rows pgx.Rows, withVerification bool) ([]model.ClaimWithVerification, error) {
	var out []model.ClaimWithVerification
	for rows.Next() {
		var cwv model.ClaimWithVerification
		var claimData []byte
		var verificationData *[]byte

		var err error
		if withVerification {
			err = rows.Scan(&claimData, &cwv.CompanyID, &cwv.Year, &cwv.Quarter, &verificationData)
		} else {
			err = rows.Scan(&claimData, &cwv.CompanyID, &cwv.Year, &cwv.Quarter)
		}
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan claim")
		}

		if err := json.Unmarshal(claimData, &cwv.Claim); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal claim")
		}
		if verificationData != nil {
			cwv.Verification = &model.Verification{}
			if err := json.Unmarshal(*verificationData, cwv.Verification); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal verification")
			}
		}
		out = append(out, cwv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: claims iterate")
}

func (s *PostgresStore) CreateVerification(ctx context.Context, v *model.Verification) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal verification")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO verifications (id, claim_id, verdict, data, created_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (claim_id) DO NOTHING`,
		v.ID, v.ClaimID, string(v.Verdict), data, v.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert verification for claim %s", v.ClaimID)
}

func (s *PostgresStore) ReplacePatterns(ctx context.Context, companyID string, patterns []model.Pattern) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace patterns")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM patterns WHERE company_id = $1`, companyID); err != nil {
		return eris.Wrapf(err, "postgres: delete patterns for %s", companyID)
	}

	for i := range patterns {
		p := &patterns[i]
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal pattern %s", p.ID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO patterns (id, company_id, kind, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.CompanyID, string(p.Kind), data, p.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert pattern %s", p.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace patterns")
}

func (s *PostgresStore) ListPatterns(ctx context.Context, companyID string) ([]model.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM patterns WHERE company_id = $1 ORDER BY kind`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list patterns for %s", companyID)
	}
	defer rows.Close()

	var patterns []model.Pattern
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		var p model.Pattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal pattern")
		}
		patterns = append(patterns, p)
	}
	return patterns, eris.Wrap(rows.Err(), "postgres: list patterns iterate")
}
