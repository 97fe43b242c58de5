// Package extract turns transcript text into validated claim records via a
// prompted language-model call.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/claim-auditor/internal/metrics"
	"github.com/sells-group/claim-auditor/internal/model"
	"github.com/sells-group/claim-auditor/pkg/anthropic"
)

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxClaims = 50
	maxTokens        = 8192
)

// Extractor drives claim extraction for one transcript at a time. It is safe
// for concurrent use.
type Extractor struct {
	client    anthropic.Client
	registry  *metrics.Registry
	model     string
	maxClaims int
	version   string
	system    string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithModel overrides the extraction model.
func WithModel(model string) Option {
	return func(e *Extractor) {
		if model != "" {
			e.model = model
		}
	}
}

// WithMaxClaims caps how many claims one transcript may yield.
func WithMaxClaims(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxClaims = n
		}
	}
}

// WithPromptVersion selects the system prompt version ("v1", "latest").
func WithPromptVersion(v string) Option {
	return func(e *Extractor) {
		if v != "" {
			e.version = v
		}
	}
}

// NewExtractor creates an Extractor. The registry normalizes metric names so
// downstream verification sees canonical identifiers.
func NewExtractor(client anthropic.Client, registry *metrics.Registry, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		client:    client,
		registry:  registry,
		model:     defaultModel,
		maxClaims: defaultMaxClaims,
		version:   DefaultVersion,
	}
	for _, opt := range opts {
		opt(e)
	}

	system, err := Prompt(e.version)
	if err != nil {
		return nil, err
	}
	e.system = system
	return e, nil
}

// Result reports what one extraction produced.
type Result struct {
	Claims  []model.Claim
	Raw     int // records in the model response
	Invalid int // dropped by validation
	Deduped int // duplicates removed
	Usage   anthropic.TokenUsage
}

// Extract runs the model over one transcript and returns validated,
// deduplicated claim drafts. ID and TranscriptID are left for the caller to
// stamp before persisting.
func (e *Extractor) Extract(ctx context.Context, transcriptText, ticker string, year, quarter int) (*Result, error) {
	user := fmt.Sprintf(
		"Analyze this %s Q%d %d earnings call transcript.\n\n"+
			"Extract ALL quantitative claims made by management (CEO, CFO, etc.).\n\n"+
			"Transcript:\n%s",
		strings.ToUpper(ticker), quarter, year, transcriptText,
	)

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: maxTokens,
		System: []anthropic.SystemBlock{
			// The same system prompt repeats for every transcript.
			{Text: e.system, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: %s Q%d %d", ticker, quarter, year)
	}
	resp.Usage.LogCost(e.model, "extract")

	raws, err := parseClaimsResponse(resp.Text())
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse response for %s Q%d %d", ticker, quarter, year)
	}

	result := &Result{Raw: len(raws), Usage: resp.Usage}
	valid := make([]model.Claim, 0, len(raws))
	for _, raw := range raws {
		claim, err := e.validate(raw)
		if err != nil {
			result.Invalid++
			zap.L().Warn("skipping invalid claim",
				zap.String("ticker", ticker),
				zap.Error(err),
				zap.String("claim_text", truncate(raw.ClaimText, 80)),
			)
			continue
		}
		valid = append(valid, claim)
	}

	deduped := deduplicate(valid)
	result.Deduped = len(valid) - len(deduped)

	if len(deduped) > e.maxClaims {
		zap.L().Warn("claim cap exceeded",
			zap.String("ticker", ticker),
			zap.Int("claims", len(deduped)),
			zap.Int("cap", e.maxClaims),
		)
		deduped = deduped[:e.maxClaims]
	}
	result.Claims = deduped

	zap.L().Info("extraction complete",
		zap.String("ticker", ticker),
		zap.Int("year", year),
		zap.Int("quarter", quarter),
		zap.Int("raw", result.Raw),
		zap.Int("invalid", result.Invalid),
		zap.Int("deduped", result.Deduped),
		zap.Int("claims", len(result.Claims)),
	)
	return result, nil
}

// rawClaim mirrors the JSON schema the prompt demands. Pointer fields
// distinguish absent from zero.
type rawClaim struct {
	Speaker          string   `json:"speaker"`
	SpeakerRole      string   `json:"speaker_role"`
	ClaimText        string   `json:"claim_text"`
	Metric           string   `json:"metric"`
	MetricKind       string   `json:"metric_kind"`
	StatedValue      *float64 `json:"stated_value"`
	Unit             string   `json:"unit"`
	ComparisonPeriod string   `json:"comparison_period"`
	IsGAAP           *bool    `json:"is_gaap"`
	Segment          string   `json:"segment"`
	Confidence       *float64 `json:"confidence"`
	ContextSnippet   string   `json:"context_snippet"`
}

// validate turns one raw record into a Claim draft, or rejects it. Invalid
// enum values reject the record rather than being coerced.
func (e *Extractor) validate(raw rawClaim) (model.Claim, error) {
	var c model.Claim

	if strings.TrimSpace(raw.ClaimText) == "" {
		return c, eris.New("empty claim_text")
	}
	if strings.TrimSpace(raw.Metric) == "" {
		return c, eris.New("empty metric")
	}
	if raw.StatedValue == nil {
		return c, eris.New("missing stated_value")
	}
	if !model.ValidMetricKind(raw.MetricKind) {
		return c, eris.Errorf("invalid metric_kind %q", raw.MetricKind)
	}
	if !model.ValidUnit(raw.Unit) {
		return c, eris.Errorf("invalid unit %q", raw.Unit)
	}

	comparison := raw.ComparisonPeriod
	if comparison == "" {
		comparison = string(model.CompareNone)
	}
	if !model.ValidComparisonPeriod(comparison) {
		return c, eris.Errorf("invalid comparison_period %q", raw.ComparisonPeriod)
	}

	confidence := 0.5
	if raw.Confidence != nil {
		confidence = *raw.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return c, eris.Errorf("confidence %.3f out of range", confidence)
	}

	speaker := strings.TrimSpace(raw.Speaker)
	if speaker == "" {
		speaker = "Unknown"
	}

	isGAAP := true
	if raw.IsGAAP != nil {
		isGAAP = *raw.IsGAAP
	}

	c = model.Claim{
		Speaker:          speaker,
		SpeakerRole:      strings.TrimSpace(raw.SpeakerRole),
		ClaimText:        strings.TrimSpace(raw.ClaimText),
		Metric:           e.registry.Normalize(raw.Metric),
		MetricKind:       model.MetricKind(raw.MetricKind),
		StatedValue:      *raw.StatedValue,
		Unit:             model.Unit(raw.Unit),
		ComparisonPeriod: model.ComparisonPeriod(comparison),
		IsGAAP:           isGAAP,
		Segment:          strings.TrimSpace(raw.Segment),
		Confidence:       confidence,
		ContextSnippet:   strings.TrimSpace(raw.ContextSnippet),
	}
	return c, nil
}

// deduplicate keeps the first claim for each (metric, stated value,
// comparison period) triple, preserving response order.
func deduplicate(claims []model.Claim) []model.Claim {
	type key struct {
		metric     string
		stated     float64
		comparison model.ComparisonPeriod
	}
	seen := make(map[key]bool, len(claims))
	out := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		k := key{c.Metric, c.StatedValue, c.ComparisonPeriod}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

var fencedArray = regexp.MustCompile("```(?:json)?\\s*(\\[[\\s\\S]*?\\])\\s*```")

// parseClaimsResponse salvages a JSON array from potentially messy model
// output: bare JSON, a fenced code block, or an array buried in prose.
func parseClaimsResponse(text string) ([]rawClaim, error) {
	if m := fencedArray.FindStringSubmatch(text); m != nil {
		var out []rawClaim
		if err := json.Unmarshal([]byte(m[1]), &out); err == nil {
			return out, nil
		}
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		var out []rawClaim
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out, nil
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		var out []rawClaim
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			return out, nil
		}
	}

	return nil, eris.Errorf("no JSON claim array in response: %s", truncate(text, 300))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
