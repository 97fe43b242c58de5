// Package metrics is the bridge between what an executive says and which
// line item of the financial statements to look at. It owns the canonical
// metric vocabulary: direct statement fields, derived ratios, and the alias
// table that folds free-form metric names onto canonical ones.
package metrics

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/claim-auditor/internal/finmath"
	"github.com/sells-group/claim-auditor/internal/model"
)

// Derived describes a metric computed as numerator/denominator, expressed
// as a percentage.
type Derived struct {
	Numerator   string
	Denominator string
}

// Registry resolves metric names against financial periods. The zero value
// is not usable; construct with NewRegistry.
type Registry struct {
	direct  map[string]string  // canonical name -> FinancialPeriod field
	derived map[string]Derived // canonical name -> ratio definition
	aliases map[string]string  // lower-cased free-form -> canonical name

	// Metrics the source stores as negative cash outflows but executives
	// quote as positive figures.
	signNormalize map[string]bool
}

// NewRegistry builds the registry with the built-in vocabulary.
func NewRegistry() *Registry {
	r := &Registry{
		direct: map[string]string{
			"revenue":                  "revenue",
			"cost_of_revenue":          "cost_of_revenue",
			"gross_profit":             "gross_profit",
			"operating_income":         "operating_income",
			"operating_expenses":       "operating_expenses",
			"net_income":               "net_income",
			"eps":                      "eps",
			"eps_diluted":              "eps_diluted",
			"ebitda":                   "ebitda",
			"research_and_development": "research_and_development",
			"selling_general_admin":    "selling_general_admin",
			"interest_expense":         "interest_expense",
			"income_tax_expense":       "income_tax_expense",
			"operating_cash_flow":      "operating_cash_flow",
			"capital_expenditure":      "capital_expenditure",
			"free_cash_flow":           "free_cash_flow",
			"total_assets":             "total_assets",
			"total_liabilities":        "total_liabilities",
			"total_debt":               "total_debt",
			"cash_and_equivalents":     "cash_and_equivalents",
			"shareholders_equity":      "shareholders_equity",
		},
		derived: map[string]Derived{
			"gross_margin":     {Numerator: "gross_profit", Denominator: "revenue"},
			"operating_margin": {Numerator: "operating_income", Denominator: "revenue"},
			"net_margin":       {Numerator: "net_income", Denominator: "revenue"},
		},
		aliases: map[string]string{
			// Revenue
			"total revenue": "revenue",
			"net revenue":   "revenue",
			"net revenues":  "revenue",
			"sales":         "revenue",
			"net sales":     "revenue",
			"top line":      "revenue",
			// Earnings
			"earnings per share":         "eps",
			"basic eps":                  "eps",
			"diluted eps":                "eps_diluted",
			"diluted earnings per share": "eps_diluted",
			// Operating
			"op income":               "operating_income",
			"operating profit":        "operating_income",
			"operating loss":          "operating_income",
			"op margin":               "operating_margin",
			"operating profit margin": "operating_margin",
			// Margins
			"gross margin":        "gross_margin",
			"gross profit margin": "gross_margin",
			"net margin":          "net_margin",
			"profit margin":       "net_margin",
			// Cash flow
			"fcf": "free_cash_flow",
			// CapEx
			"capex":                "capital_expenditure",
			"capital expenditures": "capital_expenditure",
			// R&D
			"r&d":                      "research_and_development",
			"research and development": "research_and_development",
			// SG&A
			"sg&a": "selling_general_admin",
			"sga":  "selling_general_admin",
			// Balance sheet
			"cash":                      "cash_and_equivalents",
			"cash and cash equivalents": "cash_and_equivalents",
			"debt":                      "total_debt",
			"long-term debt":            "total_debt",
			"stockholders equity":       "shareholders_equity",
			"shareholders equity":       "shareholders_equity",
			"total stockholders equity": "shareholders_equity",
		},
		signNormalize: map[string]bool{
			"capital_expenditure": true,
		},
	}
	return r
}

// LoadAliases merges extra alias→canonical entries from a YAML file into the
// registry. Entries pointing at unknown canonical names are rejected.
func (r *Registry) LoadAliases(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "metrics: read aliases %s", path)
	}
	extra := map[string]string{}
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return eris.Wrapf(err, "metrics: parse aliases %s", path)
	}
	for alias, canonical := range extra {
		if _, ok := r.direct[canonical]; !ok {
			if _, ok := r.derived[canonical]; !ok {
				return eris.Errorf("metrics: alias %q targets unknown metric %q", alias, canonical)
			}
		}
		r.aliases[strings.ToLower(strings.TrimSpace(alias))] = canonical
	}
	return nil
}

// Normalize folds a free-form metric name onto its canonical name. Names
// with no alias entry come back lower-cased and trimmed, unchanged otherwise.
func (r *Registry) Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := r.aliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// CanResolve reports whether the canonical name has a direct or derived
// entry. Anything else is unverifiable by construction.
func (r *Registry) CanResolve(name string) bool {
	if _, ok := r.direct[name]; ok {
		return true
	}
	_, ok := r.derived[name]
	return ok
}

// IsDerived reports whether the canonical name is a computed ratio.
func (r *Registry) IsDerived(name string) bool {
	_, ok := r.derived[name]
	return ok
}

// Resolve returns the actual numeric value for a canonical metric from one
// financial period, or nil when the required fields are absent (or the
// derived denominator is zero). Derived metrics come back as percentages.
func (r *Registry) Resolve(name string, period *model.FinancialPeriod) *float64 {
	if period == nil {
		return nil
	}

	if field, ok := r.direct[name]; ok {
		val := period.Field(field)
		if val == nil {
			return nil
		}
		v := *val
		if r.signNormalize[name] && v < 0 {
			v = -v
		}
		return &v
	}

	if d, ok := r.derived[name]; ok {
		num := period.Field(d.Numerator)
		den := period.Field(d.Denominator)
		if num == nil || den == nil {
			return nil
		}
		pct, ok := finmath.Margin(*num, *den)
		if !ok {
			return nil
		}
		return &pct
	}

	return nil
}
