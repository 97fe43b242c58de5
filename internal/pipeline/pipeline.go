// Package pipeline orchestrates the four audit stages: ingest, extract,
// verify, analyze. Each stage is idempotent and reports a structured summary;
// a rerun after a partial failure completes the remaining work.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/analyze"
	"github.com/sells-group/claim-auditor/internal/config"
	"github.com/sells-group/claim-auditor/internal/extract"
	"github.com/sells-group/claim-auditor/internal/metrics"
	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/internal/store"
	"github.com/sells-group/claim-auditor/internal/verdict"
	"github.com/sells-group/claim-auditor/pkg/fmp"
)

// ClaimExtractor turns transcript text into claim drafts. Satisfied by
// *extract.Extractor; narrowed to an interface so stage tests can fake it.
type ClaimExtractor interface {
	Extract(ctx context.Context, transcriptText, ticker string, year, quarter int) (*extract.Result, error)
}

// Pipeline wires the stages to their external dependencies.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	fmp       fmp.Client
	extractor ClaimExtractor
	registry  *metrics.Registry
	analyzer  *analyze.Analyzer
}

// New creates a Pipeline with all dependencies. fmpClient may be nil when
// only extract/verify/analyze will run, and extractor may be nil when
// extract will not run.
func New(
	cfg *config.Config,
	st store.Store,
	fmpClient fmp.Client,
	extractor ClaimExtractor,
	registry *metrics.Registry,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		fmp:       fmpClient,
		extractor: extractor,
		registry:  registry,
		analyzer:  analyze.New(),
	}
}

func (p *Pipeline) thresholds() verdict.Thresholds {
	return verdict.Thresholds{
		Verified:    p.cfg.Pipeline.VerificationTolerance,
		Approximate: p.cfg.Pipeline.ApproximateTolerance,
		Misleading:  p.cfg.Pipeline.MisleadingThreshold,
	}
}

func (p *Pipeline) workers() int {
	if p.cfg.Pipeline.Workers > 0 {
		return p.cfg.Pipeline.Workers
	}
	return 4
}

// Steps in canonical execution order.
var Steps = []string{"ingest", "extract", "verify", "analyze"}

// ValidStep reports whether s names a pipeline stage.
func ValidStep(s string) bool {
	for _, step := range Steps {
		if s == step {
			return true
		}
	}
	return false
}

// Run executes the requested steps in canonical order. An empty steps slice
// means all four. A stage that returns an error stops the run; per-record
// failures inside a stage are counted in its summary instead.
func (p *Pipeline) Run(ctx context.Context, tickers []string, quarters []Quarter, steps []string) (*model.PipelineSummary, error) {
	requested := map[string]bool{}
	if len(steps) == 0 {
		steps = Steps
	}
	for _, s := range steps {
		if !ValidStep(s) {
			return nil, eris.Errorf("pipeline: unknown step %q", s)
		}
		requested[s] = true
	}

	summary := &model.PipelineSummary{OK: true}
	start := time.Now()

	for _, step := range Steps {
		if !requested[step] {
			continue
		}
		summary.StepsRun = append(summary.StepsRun, step)

		var err error
		switch step {
		case "ingest":
			summary.Ingest, err = p.Ingest(ctx, tickers, quarters)
			summary.OK = summary.OK && summary.Ingest != nil && summary.Ingest.OK
		case "extract":
			summary.Extract, err = p.Extract(ctx)
			summary.OK = summary.OK && summary.Extract != nil && summary.Extract.OK
		case "verify":
			summary.Verify, err = p.Verify(ctx)
			summary.OK = summary.OK && summary.Verify != nil && summary.Verify.OK
		case "analyze":
			summary.Analyze, err = p.Analyze(ctx)
			summary.OK = summary.OK && summary.Analyze != nil && summary.Analyze.OK
		}
		if err != nil {
			summary.OK = false
			return summary, eris.Wrapf(err, "pipeline: %s stage", step)
		}
	}

	zap.L().Info("pipeline run complete",
		zap.Strings("steps", summary.StepsRun),
		zap.Bool("ok", summary.OK),
		zap.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// Quarter identifies one fiscal quarter.
type Quarter struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// Label formats the quarter the way reports key it, e.g. "Q3 2025".
func (q Quarter) Label() string {
	return model.QuarterLabel(q.Year, q.Quarter)
}

// ParseQuarter parses a "Q3 2025" label.
func ParseQuarter(label string) (Quarter, error) {
	var q Quarter
	if _, err := fmt.Sscanf(label, "Q%d %d", &q.Quarter, &q.Year); err != nil {
		return q, eris.Errorf("pipeline: malformed quarter label %q (want \"Q3 2025\")", label)
	}
	if q.Quarter < 1 || q.Quarter > 4 || q.Year < 1900 {
		return q, eris.Errorf("pipeline: quarter label %q out of range", label)
	}
	return q, nil
}

// ParseQuarters parses a list of quarter labels.
func ParseQuarters(labels []string) ([]Quarter, error) {
	out := make([]Quarter, 0, len(labels))
	for _, label := range labels {
		q, err := ParseQuarter(label)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// RecentQuarters returns the n most recently completed calendar quarters
// before now, newest first. Used when no target quarters are configured.
func RecentQuarters(n int, now time.Time) []Quarter {
	year := now.Year()
	quarter := (int(now.Month())-1)/3 + 1

	out := make([]Quarter, 0, n)
	for i := 0; i < n; i++ {
		quarter--
		if quarter == 0 {
			quarter = 4
			year--
		}
		out = append(out, Quarter{Year: year, Quarter: quarter})
	}
	return out
}

// Previous returns the immediately preceding fiscal quarter.
func (q Quarter) Previous() Quarter {
	if q.Quarter == 1 {
		return Quarter{Year: q.Year - 1, Quarter: 4}
	}
	return Quarter{Year: q.Year, Quarter: q.Quarter - 1}
}
