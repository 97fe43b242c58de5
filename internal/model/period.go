package model

import "time"

// FinancialPeriod holds one fiscal quarter of structured financial data,
// merged from the income statement, cash-flow statement, and balance sheet.
// Every numeric field is optional: the source may not report it.
// All dollar amounts are raw (native) dollars, not millions or billions.
type FinancialPeriod struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Year      int    `json:"year"`
	Quarter   int    `json:"quarter"`

	// Income statement
	Revenue                *float64 `json:"revenue,omitempty"`
	CostOfRevenue          *float64 `json:"cost_of_revenue,omitempty"`
	GrossProfit            *float64 `json:"gross_profit,omitempty"`
	OperatingIncome        *float64 `json:"operating_income,omitempty"`
	OperatingExpenses      *float64 `json:"operating_expenses,omitempty"`
	NetIncome              *float64 `json:"net_income,omitempty"`
	EPS                    *float64 `json:"eps,omitempty"`
	EPSDiluted             *float64 `json:"eps_diluted,omitempty"`
	EBITDA                 *float64 `json:"ebitda,omitempty"`
	ResearchAndDevelopment *float64 `json:"research_and_development,omitempty"`
	SellingGeneralAdmin    *float64 `json:"selling_general_admin,omitempty"`
	InterestExpense        *float64 `json:"interest_expense,omitempty"`
	IncomeTaxExpense       *float64 `json:"income_tax_expense,omitempty"`

	// Cash flow
	OperatingCashFlow  *float64 `json:"operating_cash_flow,omitempty"`
	CapitalExpenditure *float64 `json:"capital_expenditure,omitempty"`
	FreeCashFlow       *float64 `json:"free_cash_flow,omitempty"`

	// Balance sheet
	TotalAssets        *float64 `json:"total_assets,omitempty"`
	TotalLiabilities   *float64 `json:"total_liabilities,omitempty"`
	TotalDebt          *float64 `json:"total_debt,omitempty"`
	CashAndEquivalents *float64 `json:"cash_and_equivalents,omitempty"`
	ShareholdersEquity *float64 `json:"shareholders_equity,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Field returns the named numeric field, or nil when the source did not
// report it. Field names are the canonical snake_case names used by the
// metric registry.
func (p *FinancialPeriod) Field(name string) *float64 {
	switch name {
	case "revenue":
		return p.Revenue
	case "cost_of_revenue":
		return p.CostOfRevenue
	case "gross_profit":
		return p.GrossProfit
	case "operating_income":
		return p.OperatingIncome
	case "operating_expenses":
		return p.OperatingExpenses
	case "net_income":
		return p.NetIncome
	case "eps":
		return p.EPS
	case "eps_diluted":
		return p.EPSDiluted
	case "ebitda":
		return p.EBITDA
	case "research_and_development":
		return p.ResearchAndDevelopment
	case "selling_general_admin":
		return p.SellingGeneralAdmin
	case "interest_expense":
		return p.InterestExpense
	case "income_tax_expense":
		return p.IncomeTaxExpense
	case "operating_cash_flow":
		return p.OperatingCashFlow
	case "capital_expenditure":
		return p.CapitalExpenditure
	case "free_cash_flow":
		return p.FreeCashFlow
	case "total_assets":
		return p.TotalAssets
	case "total_liabilities":
		return p.TotalLiabilities
	case "total_debt":
		return p.TotalDebt
	case "cash_and_equivalents":
		return p.CashAndEquivalents
	case "shareholders_equity":
		return p.ShareholdersEquity
	default:
		return nil
	}
}
