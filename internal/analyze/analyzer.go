// Package analyze mines a company's verified claims across quarters for
// systematic patterns of misleading communication. Five detectors run in a
// fixed order; each emits at most one pattern. All detectors are pure:
// identical input maps produce identical patterns.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/claim-auditor/internal/model"
)

// Analyzer detects cross-quarter discrepancy patterns.
type Analyzer struct{}

// New returns a pattern analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// ClaimsByQuarter maps a quarter label ("Q3 2025") to the claims made that
// quarter, each paired with its verification where one exists.
type ClaimsByQuarter map[string][]model.ClaimWithVerification

// AnalyzeCompany runs every detector and returns the detected patterns in
// detector order: rounding, switching, inaccuracy, GAAP, emphasis.
func (a *Analyzer) AnalyzeCompany(companyID string, cbq ClaimsByQuarter) []model.Pattern {
	var patterns []model.Pattern
	for _, detect := range []func(string, ClaimsByQuarter) *model.Pattern{
		a.detectRoundingBias,
		a.detectMetricSwitching,
		a.detectIncreasingInaccuracy,
		a.detectGAAPShifting,
		a.detectSelectiveEmphasis,
	} {
		if p := detect(companyID, cbq); p != nil {
			patterns = append(patterns, *p)
		}
	}
	return patterns
}

// detectRoundingBias flags companies where more than 70% of inexact claims
// round in the favorable direction, over at least four inexact claims.
func (a *Analyzer) detectRoundingBias(companyID string, cbq ClaimsByQuarter) *model.Pattern {
	var favorable, total int
	affected := map[string]bool{}

	for quarter, claims := range cbq {
		for _, c := range claims {
			v := c.Verification
			if v == nil || v.ActualValue == nil || v.AccuracyScore == nil {
				continue
			}
			if *v.AccuracyScore <= 0 || *v.AccuracyScore >= 1 {
				continue
			}
			total++
			if c.StatedValue > *v.ActualValue {
				favorable++
				affected[quarter] = true
			}
		}
	}

	if total < 4 || float64(favorable)/float64(total) <= 0.70 {
		return nil
	}
	ratio := float64(favorable) / float64(total)
	return &model.Pattern{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Kind:      model.PatternRoundingUp,
		Severity:  round2(ratio),
		Description: fmt.Sprintf(
			"Management consistently rounds in a favorable direction. %d/%d inexact claims overshoot the actual figure.",
			favorable, total),
		AffectedQuarters: sortedKeys(affected),
		Evidence:         []string{fmt.Sprintf("%d/%d favorable roundings", favorable, total)},
	}
}

// detectMetricSwitching flags companies whose most-emphasized metric changes
// across at least three quarters.
func (a *Analyzer) detectMetricSwitching(companyID string, cbq ClaimsByQuarter) *model.Pattern {
	topByQuarter := map[string]string{}
	for quarter, claims := range cbq {
		counts := map[string]int{}
		for _, c := range claims {
			counts[c.Metric]++
		}
		if top := topMetric(counts); top != "" {
			topByQuarter[quarter] = top
		}
	}

	unique := map[string]bool{}
	for _, m := range topByQuarter {
		unique[m] = true
	}
	if len(unique) < 3 || len(topByQuarter) < 3 {
		return nil
	}

	quarters := sortedKeys(mapKeysSet(topByQuarter))
	pairs := make([]string, len(quarters))
	for i, q := range quarters {
		pairs[i] = fmt.Sprintf("%s: %s", q, topByQuarter[q])
	}
	return &model.Pattern{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Kind:      model.PatternMetricSwitching,
		Severity:  0.5,
		Description: fmt.Sprintf(
			"Most-emphasized metric shifts across quarters (%s). Possible selective emphasis.",
			strings.Join(pairs, "; ")),
		AffectedQuarters: quarters,
		Evidence:         []string{"Top metrics: " + strings.Join(pairs, "; ")},
	}
}

// detectIncreasingInaccuracy flags companies whose mean per-quarter accuracy
// declines by more than five points over at least three quarters.
func (a *Analyzer) detectIncreasingInaccuracy(companyID string, cbq ClaimsByQuarter) *model.Pattern {
	type quarterAcc struct {
		label string
		year  int
		q     int
		mean  float64
	}
	var series []quarterAcc
	for label, claims := range cbq {
		var sum float64
		var n int
		var year, q int
		for _, c := range claims {
			year, q = c.Year, c.Quarter
			if c.Verification != nil && c.Verification.AccuracyScore != nil {
				sum += *c.Verification.AccuracyScore
				n++
			}
		}
		if n > 0 {
			series = append(series, quarterAcc{label: label, year: year, q: q, mean: sum / float64(n)})
		}
	}
	if len(series) < 3 {
		return nil
	}

	sort.Slice(series, func(i, j int) bool {
		if series[i].year != series[j].year {
			return series[i].year < series[j].year
		}
		return series[i].q < series[j].q
	})

	first, last := series[0].mean, series[len(series)-1].mean
	if last-first > -0.05 {
		return nil
	}

	trend := make([]string, len(series))
	quarters := make([]string, len(series))
	for i, s := range series {
		trend[i] = fmt.Sprintf("%s: %.1f%%", s.label, s.mean*100)
		quarters[i] = s.label
	}
	return &model.Pattern{
		ID:               uuid.New().String(),
		CompanyID:        companyID,
		Kind:             model.PatternIncreasingInaccuracy,
		Severity:         round2(math.Abs(last - first)),
		Description:      fmt.Sprintf("Claim accuracy declining over time (%s).", strings.Join(trend, "; ")),
		AffectedQuarters: quarters,
		Evidence:         []string{"Accuracy trend: " + strings.Join(trend, "; ")},
	}
}

// detectGAAPShifting flags companies whose GAAP vs non-GAAP claim mix swings
// by more than 30 points across quarters.
func (a *Analyzer) detectGAAPShifting(companyID string, cbq ClaimsByQuarter) *model.Pattern {
	ratios := map[string]float64{}
	for quarter, claims := range cbq {
		if len(claims) == 0 {
			continue
		}
		var gaap int
		for _, c := range claims {
			if c.IsGAAP {
				gaap++
			}
		}
		ratios[quarter] = float64(gaap) / float64(len(claims))
	}
	if len(ratios) < 2 {
		return nil
	}

	minR, maxR := 1.0, 0.0
	for _, r := range ratios {
		if r < minR {
			minR = r
		}
		if r > maxR {
			maxR = r
		}
	}
	if maxR-minR <= 0.30 {
		return nil
	}

	quarters := sortedKeys(mapKeysSetF(ratios))
	detail := make([]string, len(quarters))
	for i, q := range quarters {
		detail[i] = fmt.Sprintf("%s: %.2f", q, ratios[q])
	}
	return &model.Pattern{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Kind:      model.PatternGAAPShifting,
		Severity:  round2(maxR - minR),
		Description: fmt.Sprintf(
			"Company shifts between GAAP and non-GAAP emphasis. GAAP ratios: %s",
			strings.Join(detail, "; ")),
		AffectedQuarters: quarters,
		Evidence:         []string{"GAAP ratios: " + strings.Join(detail, "; ")},
	}
}

// detectSelectiveEmphasis flags companies that almost never voice negative
// growth: two or more quarters where >90% of growth claims are positive.
func (a *Analyzer) detectSelectiveEmphasis(companyID string, cbq ClaimsByQuarter) *model.Pattern {
	biased := map[string]bool{}
	for quarter, claims := range cbq {
		var pos, neg int
		for _, c := range claims {
			if c.MetricKind != model.MetricGrowthRate {
				continue
			}
			switch {
			case c.StatedValue > 0:
				pos++
			case c.StatedValue < 0:
				neg++
			}
		}
		total := pos + neg
		if total > 2 && float64(pos)/float64(total) > 0.90 {
			biased[quarter] = true
		}
	}
	if len(biased) < 2 {
		return nil
	}

	quarters := sortedKeys(biased)
	return &model.Pattern{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Kind:      model.PatternSelectiveEmphasis,
		Severity:  0.6,
		Description: fmt.Sprintf(
			"Management overwhelmingly highlights positive growth metrics in %d quarters while avoiding negative trends.",
			len(quarters)),
		AffectedQuarters: quarters,
		Evidence:         []string{"Quarters with >90% positive growth claims: " + strings.Join(quarters, ", ")},
	}
}

// topMetric returns the metric with the highest count, breaking ties by
// lexicographic order so the result is deterministic.
func topMetric(counts map[string]int) string {
	var top string
	var best int
	for m, n := range counts {
		if n > best || (n == best && (top == "" || m < top)) {
			top, best = m, n
		}
	}
	return top
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mapKeysSet(m map[string]string) map[string]bool {
	set := make(map[string]bool, len(m))
	for k := range m {
		set[k] = true
	}
	return set
}

func mapKeysSetF(m map[string]float64) map[string]bool {
	set := make(map[string]bool, len(m))
	for k := range m {
		set[k] = true
	}
	return set
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
