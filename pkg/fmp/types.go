package fmp

import "strconv"

// Profile is the company profile returned by the stable /profile endpoint.
type Profile struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Exchange    string `json:"exchange"`
}

// Transcript is one earnings-call transcript entry.
type Transcript struct {
	Symbol  string `json:"symbol"`
	Quarter int    `json:"quarter"`
	Year    int    `json:"year"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

// StatementMeta carries the period-identifying fields shared by all three
// statement endpoints. The stable API reports fiscalYear; legacy v3 payloads
// and fixtures use calendarYear. Both arrive as strings.
type StatementMeta struct {
	Date         string `json:"date"`
	Symbol       string `json:"symbol"`
	Period       string `json:"period"` // "Q1".."Q4" or "FY"
	FiscalYear   string `json:"fiscalYear"`
	CalendarYear string `json:"calendarYear"`
}

// PeriodKey resolves the statement's (year, quarter). ok is false for annual
// rows and rows whose year cannot be determined.
func (m StatementMeta) PeriodKey() (year, quarter int, ok bool) {
	if len(m.Period) < 2 || m.Period[0] != 'Q' {
		return 0, 0, false
	}
	quarter, err := strconv.Atoi(m.Period[1:2])
	if err != nil || quarter < 1 || quarter > 4 {
		return 0, 0, false
	}

	if y, err := strconv.Atoi(m.FiscalYear); err == nil && y > 0 {
		return y, quarter, true
	}
	if y, err := strconv.Atoi(m.CalendarYear); err == nil && y > 0 {
		return y, quarter, true
	}
	if len(m.Date) >= 4 {
		if y, err := strconv.Atoi(m.Date[:4]); err == nil && y > 0 {
			return y, quarter, true
		}
	}
	return 0, 0, false
}

// IncomeStatement is one quarterly income-statement row.
type IncomeStatement struct {
	StatementMeta

	Revenue                *float64 `json:"revenue"`
	CostOfRevenue          *float64 `json:"costOfRevenue"`
	GrossProfit            *float64 `json:"grossProfit"`
	OperatingIncome        *float64 `json:"operatingIncome"`
	OperatingExpenses      *float64 `json:"operatingExpenses"`
	NetIncome              *float64 `json:"netIncome"`
	EPS                    *float64 `json:"eps"`
	EPSDiluted             *float64 `json:"epsDiluted"`
	EPSDilutedLegacy       *float64 `json:"epsdiluted"`
	EBITDA                 *float64 `json:"ebitda"`
	ResearchAndDevelopment *float64 `json:"researchAndDevelopmentExpenses"`
	SellingGeneralAdmin    *float64 `json:"sellingGeneralAndAdministrativeExpenses"`
	InterestExpense        *float64 `json:"interestExpense"`
	IncomeTaxExpense       *float64 `json:"incomeTaxExpense"`
}

// DilutedEPS returns the stable-API field, falling back to the legacy v3
// spelling when only that is present.
func (s IncomeStatement) DilutedEPS() *float64 {
	if s.EPSDiluted != nil {
		return s.EPSDiluted
	}
	return s.EPSDilutedLegacy
}

// CashFlowStatement is one quarterly cash-flow row.
type CashFlowStatement struct {
	StatementMeta

	OperatingCashFlow  *float64 `json:"operatingCashFlow"`
	CapitalExpenditure *float64 `json:"capitalExpenditure"`
	FreeCashFlow       *float64 `json:"freeCashFlow"`
}

// BalanceSheetStatement is one quarterly balance-sheet row.
type BalanceSheetStatement struct {
	StatementMeta

	TotalAssets        *float64 `json:"totalAssets"`
	TotalLiabilities   *float64 `json:"totalLiabilities"`
	TotalDebt          *float64 `json:"totalDebt"`
	CashAndEquivalents *float64 `json:"cashAndCashEquivalents"`
	ShareholdersEquity *float64 `json:"totalStockholdersEquity"`
}
