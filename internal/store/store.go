// Package store persists companies, transcripts, financial periods, claims,
// verifications, and patterns. Two implementations exist: Postgres for real
// deployments and SQLite for local single-file runs.
package store

import (
	"context"

	"github.com/sells-group/claim-auditor/internal/model"
)

// Store defines the persistence interface for the audit pipeline.
//
// Create methods with a bool result implement skip-if-exists semantics: they
// return false without error when the row's natural key is already present.
// That is what makes pipeline reruns idempotent.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c *model.Company) (*model.Company, error)
	GetCompanyByTicker(ctx context.Context, ticker string) (*model.Company, error)
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// Transcripts, unique per (company, year, quarter)
	CreateTranscript(ctx context.Context, t *model.Transcript) (bool, error)
	GetTranscript(ctx context.Context, companyID string, year, quarter int) (*model.Transcript, error)
	ListUnextractedTranscripts(ctx context.Context) ([]model.Transcript, error)

	// Financial periods, unique per (company, year, quarter)
	CreatePeriod(ctx context.Context, p *model.FinancialPeriod) (bool, error)
	GetPeriod(ctx context.Context, companyID string, year, quarter int) (*model.FinancialPeriod, error)
	CountPeriods(ctx context.Context, companyID string) (int, error)

	// Claims and verifications
	CreateClaims(ctx context.Context, claims []model.Claim) error
	ListUnverifiedClaims(ctx context.Context) ([]model.ClaimWithVerification, error)
	ListClaimsForCompany(ctx context.Context, companyID string) ([]model.ClaimWithVerification, error)
	CreateVerification(ctx context.Context, v *model.Verification) error

	// Patterns are replaced wholesale per company on each analysis run.
	ReplacePatterns(ctx context.Context, companyID string, patterns []model.Pattern) error
	ListPatterns(ctx context.Context, companyID string) ([]model.Pattern, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
