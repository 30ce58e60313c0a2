package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"payment-agent/money"
)

// Bill is a single payable obligation. Bills are read-only facts sourced from
// the repository; paid status lives in the session, never on the bill.
type Bill struct {
	ID                string          `json:"id"`
	CompanyID         string          `json:"company_id"`
	Creditor          string          `json:"creditor"`
	Amount            money.Money     `json:"amount"`
	DailyInterestRate decimal.Decimal `json:"daily_interest_rate"`
	DueDate           time.Time       `json:"due_date"`
	Status            string          `json:"status,omitempty"`
}

// IsOverdue reports whether the bill's due date is strictly before asOf.
func (b Bill) IsOverdue(asOf time.Time) bool {
	return b.DueDate.Before(truncateToDay(asOf))
}

// DaysLate returns how many whole days the bill is past due as of asOf,
// zero when it is not overdue.
func (b Bill) DaysLate(asOf time.Time) int {
	days := int(truncateToDay(asOf).Sub(truncateToDay(b.DueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DeferralCost is one day of accrual on the bill, the cost of leaving it
// unpaid until tomorrow.
func (b Bill) DeferralCost() money.Money {
	return b.Amount.Mul(b.DailyInterestRate)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayOverview aggregates a single day's outstanding obligations. Totals are
// always computed after already-paid bills have been filtered out.
type DayOverview struct {
	Date          string      `json:"date"`
	DueCount      int         `json:"due_count"`
	DueTotal      money.Money `json:"due_total"`
	OverdueCount  int         `json:"overdue_count"`
	OverdueTotal  money.Money `json:"overdue_total"`
	CombinedTotal money.Money `json:"combined_total"`
}

// DayTotal is a per-day aggregate used by the range dashboard.
type DayTotal struct {
	Date  string      `json:"date"`
	Count int         `json:"count"`
	Total money.Money `json:"total"`
}

// RangeDashboard summarizes a queried date window.
type RangeDashboard struct {
	Start        string      `json:"start"`
	End          string      `json:"end"`
	TopValueDays []DayTotal  `json:"top_value_days"`
	TopCountDays []DayTotal  `json:"top_count_days"`
	OverdueCount int         `json:"overdue_count"`
	OverdueTotal money.Money `json:"overdue_total"`
	UrgentView   []UrgentDay `json:"urgent_view"`
}

// UrgentDay lists the bills of one of the earliest days in the window.
type UrgentDay struct {
	Date  string `json:"date"`
	Bills []Bill `json:"bills"`
}
