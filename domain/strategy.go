package domain

import (
	"github.com/shopspring/decimal"

	"payment-agent/money"
)

// FinancingMethod identifies an external credit product.
type FinancingMethod string

const (
	WorkingCapital     FinancingMethod = "working_capital"
	ReceivablesAdvance FinancingMethod = "receivables_advance"
)

// FinancingOption is a credit product with a flat rate over the financed
// amount.
type FinancingOption struct {
	Method FinancingMethod `json:"method"`
	Rate   decimal.Decimal `json:"rate"`
}

// Cost is the flat fee for financing the given amount.
func (o FinancingOption) Cost(amount money.Money) money.Money {
	return amount.Mul(o.Rate)
}

// TotalOutlay is the financed amount plus its cost.
func (o FinancingOption) TotalOutlay(amount money.Money) money.Money {
	return amount.Add(o.Cost(amount))
}

// StrategyKind classifies the decision engine's output.
type StrategyKind string

const (
	FullBalance    StrategyKind = "full_balance"
	FullFinancing  StrategyKind = "full_financing"
	PartialPayment StrategyKind = "partial_payment"
)

// Strategy is the allocation of bills to pay-now versus defer, plus the
// financing method if any. PayNow and Deferred partition the engine's input
// bill set.
type Strategy struct {
	Kind               StrategyKind    `json:"kind"`
	Method             FinancingMethod `json:"method,omitempty"`
	PayNow             []Bill          `json:"pay_now"`
	Deferred           []Bill          `json:"deferred"`
	FinancedAmount     money.Money     `json:"financed_amount"`
	InterestCost       money.Money     `json:"interest_cost"`
	SavingsVsAlternate money.Money     `json:"savings_vs_alternative"`
}

// PayNowTotal sums the amounts committed for immediate settlement.
func (s Strategy) PayNowTotal() money.Money {
	total := money.Zero()
	for _, b := range s.PayNow {
		total = total.Add(b.Amount)
	}
	return total
}

// DeferredTotal sums the amounts left unpaid this cycle.
func (s Strategy) DeferredTotal() money.Money {
	total := money.Zero()
	for _, b := range s.Deferred {
		total = total.Add(b.Amount)
	}
	return total
}

// FinancingQuote is one costed candidate, kept for reporting so the user can
// compare the chosen path against the alternatives.
type FinancingQuote struct {
	Label       string          `json:"label"`
	Method      FinancingMethod `json:"method,omitempty"`
	Cost        money.Money     `json:"cost"`
	TotalOutlay money.Money     `json:"total_outlay"`
}

// FinancingComparison presents every candidate side by side plus the
// recommendation.
type FinancingComparison struct {
	Deficit     money.Money      `json:"deficit"`
	Quotes      []FinancingQuote `json:"quotes"`
	Recommended Strategy         `json:"recommended"`
}
