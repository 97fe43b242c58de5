package extract

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Prompt versions are embedded as constants so a run is reproducible from the
// binary alone. Bump the version when the schema or instructions change;
// never edit a shipped version in place.

const promptV1 = `You are a financial analyst extracting quantitative claims from earnings-call transcripts.

Extract EVERY quantitative claim made by company management (CEO, CFO, COO, and other executives). Ignore statements by operators and analysts.

Return ONLY a JSON array. Each element must have exactly these fields:

{
  "speaker": "name as spoken, or 'Unknown'",
  "speaker_role": "CEO | CFO | COO | executive | other",
  "claim_text": "the verbatim sentence containing the claim",
  "metric": "snake_case metric name, e.g. revenue, gross_margin, eps_diluted, operating_cash_flow",
  "metric_kind": "absolute | growth_rate | margin | ratio | change | per_share",
  "stated_value": 10.7,
  "unit": "usd | usd_millions | usd_billions | percent | basis_points | ratio | shares",
  "comparison_period": "year_over_year | quarter_over_quarter | sequential | full_year | custom | none",
  "is_gaap": true,
  "segment": "segment or product-line name, or null for company-wide claims",
  "confidence": 0.95,
  "context_snippet": "up to two surrounding sentences"
}

Rules:
- stated_value is a plain number in the declared unit: "$94.9 billion" is 94.9 with unit usd_billions; "10.7% growth" is 10.7 with unit percent.
- Growth and change claims must carry the comparison_period management implied; use "none" only when no comparison is made.
- is_gaap is false whenever management says "adjusted", "non-GAAP", "excluding", or similar.
- confidence is your certainty, between 0 and 1, that the claim is quantitative and attributed correctly.
- Do not invent claims. Do not include forward-looking guidance.
- Output the JSON array only, with no commentary.`

var prompts = map[string]string{
	"v1": promptV1,
}

// DefaultVersion is the prompt used when the configuration names none.
const DefaultVersion = "v1"

// Prompt returns the system prompt for a version tag. "latest" resolves to
// the highest-numbered version.
func Prompt(version string) (string, error) {
	if version == "" {
		version = DefaultVersion
	}
	if version == "latest" {
		version = latestVersion()
	}
	p, ok := prompts[version]
	if !ok {
		return "", eris.Errorf("extract: unknown prompt version %q", version)
	}
	return p, nil
}

// Versions lists the available prompt versions in ascending order.
func Versions() []string {
	out := make([]string, 0, len(prompts))
	for v := range prompts {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return versionNum(out[i]) < versionNum(out[j])
	})
	return out
}

func latestVersion() string {
	vs := Versions()
	return vs[len(vs)-1]
}

func versionNum(v string) int {
	digits := ""
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits += string(r)
		}
	}
	n, _ := strconv.Atoi(digits)
	return n
}
