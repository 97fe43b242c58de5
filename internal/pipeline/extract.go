package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/claim-auditor/internal/model"
)

// Extract runs claim extraction over every transcript that has no claims
// yet. Transcripts are processed in parallel by a bounded pool; a failure on
// one transcript is counted and the rest continue.
func (p *Pipeline) Extract(ctx context.Context) (*model.ExtractSummary, error) {
	if p.extractor == nil {
		return nil, eris.New("pipeline: extract requires an extraction client")
	}

	transcripts, err := p.store.ListUnextractedTranscripts(ctx)
	if err != nil {
		return nil, err
	}

	tickers, err := p.tickersByCompany(ctx)
	if err != nil {
		return nil, err
	}

	summary := &model.ExtractSummary{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())

	for i := range transcripts {
		t := transcripts[i]
		g.Go(func() error {
			ticker := tickers[t.CompanyID]
			res, err := p.extractor.Extract(gctx, t.FullText, ticker, t.Year, t.Quarter)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors++
				zap.L().Error("extraction failed",
					zap.String("ticker", ticker),
					zap.Int("year", t.Year),
					zap.Int("quarter", t.Quarter),
					zap.Error(err),
				)
				return nil
			}

			claims := res.Claims
			now := time.Now().UTC()
			for j := range claims {
				claims[j].ID = uuid.New().String()
				claims[j].TranscriptID = t.ID
				claims[j].CreatedAt = now
			}
			if err := p.store.CreateClaims(gctx, claims); err != nil {
				summary.Errors++
				zap.L().Error("persisting claims failed",
					zap.String("transcript_id", t.ID),
					zap.Error(err),
				)
				return nil
			}

			summary.TranscriptsProcessed++
			summary.ClaimsExtracted += len(claims)
			summary.ClaimsInvalid += res.Invalid
			summary.ClaimsDeduped += res.Deduped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	summary.OK = summary.Errors == 0
	zap.L().Info("extract complete",
		zap.Int("transcripts", summary.TranscriptsProcessed),
		zap.Int("claims", summary.ClaimsExtracted),
		zap.Int("invalid", summary.ClaimsInvalid),
		zap.Int("deduped", summary.ClaimsDeduped),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (p *Pipeline) tickersByCompany(ctx context.Context) (map[string]string, error) {
	companies, err := p.store.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(companies))
	for _, c := range companies {
		out[c.ID] = c.Ticker
	}
	return out, nil
}
