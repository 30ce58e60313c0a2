package service

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payment-agent/domain"
	"payment-agent/money"
)

// PlannerService is the decision engine. Given a snapshot of bills and the
// available balance it produces exactly one Strategy: settle everything from
// balance, finance the whole deficit, or pay part now and defer the rest.
// It holds no mutable state.
type PlannerService struct {
	giro         domain.FinancingOption
	adiantamento domain.FinancingOption
}

// NewPlannerService creates a planner with the standard financing products.
func NewPlannerService() *PlannerService {
	return &PlannerService{
		giro:         domain.FinancingOption{Method: domain.WorkingCapital, Rate: WorkingCapitalRate},
		adiantamento: domain.FinancingOption{Method: domain.ReceivablesAdvance, Rate: ReceivablesAdvanceRate},
	}
}

// ComputeStrategy picks the cheapest way to deal with the given bills. Ties
// prefer the option that needs no external financing, then the cheaper
// financing product. Malformed input aborts the whole computation; no partial
// result is returned.
func (p *PlannerService) ComputeStrategy(
	bills []domain.Bill,
	balance money.Money,
	asOf time.Time,
) (domain.Strategy, error) {

	if err := validateBills(bills); err != nil {
		return domain.Strategy{}, err
	}

	totalDue := money.Zero()
	for _, b := range bills {
		totalDue = totalDue.Add(b.Amount)
	}

	if balance.GreaterThanOrEqual(totalDue) {
		return domain.Strategy{
			Kind:         domain.FullBalance,
			PayNow:       sortedByID(bills),
			Deferred:     []domain.Bill{},
			InterestCost: money.Zero(),
		}, nil
	}

	deficit := totalDue.Sub(balance)
	costGiro := p.giro.Cost(deficit)
	costAdiantamento := p.adiantamento.Cost(deficit)

	payNow, deferred, costPartial := greedyDeferral(bills, balance)

	// Tie-break order: partial payment beats working capital beats
	// receivables advance.
	type candidate struct {
		kind   domain.StrategyKind
		method domain.FinancingMethod
		cost   money.Money
	}
	candidates := []candidate{
		{kind: domain.PartialPayment, cost: costPartial},
		{kind: domain.FullFinancing, method: domain.WorkingCapital, cost: costGiro},
		{kind: domain.FullFinancing, method: domain.ReceivablesAdvance, cost: costAdiantamento},
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.cost.LessThan(best.cost) {
			best = c
		}
	}

	// Savings versus the next-best alternative, for reporting only.
	nextBest := money.Money{}
	first := true
	for _, c := range candidates {
		if c.kind == best.kind && c.method == best.method {
			continue
		}
		if first || c.cost.LessThan(nextBest) {
			nextBest = c.cost
			first = false
		}
	}
	savings := nextBest.Sub(best.cost)

	if best.kind == domain.PartialPayment {
		return domain.Strategy{
			Kind:               domain.PartialPayment,
			PayNow:             payNow,
			Deferred:           deferred,
			InterestCost:       costPartial,
			SavingsVsAlternate: savings,
		}, nil
	}

	return domain.Strategy{
		Kind:               domain.FullFinancing,
		Method:             best.method,
		PayNow:             sortedByID(bills),
		Deferred:           []domain.Bill{},
		FinancedAmount:     deficit,
		InterestCost:       best.cost,
		SavingsVsAlternate: savings,
	}, nil
}

// ComputeComparison quotes every candidate side by side and attaches the
// recommended strategy, for the "show me my options" view.
func (p *PlannerService) ComputeComparison(
	bills []domain.Bill,
	balance money.Money,
	asOf time.Time,
) (domain.FinancingComparison, error) {

	recommended, err := p.ComputeStrategy(bills, balance, asOf)
	if err != nil {
		return domain.FinancingComparison{}, err
	}

	totalDue := money.Zero()
	for _, b := range bills {
		totalDue = totalDue.Add(b.Amount)
	}
	deficit := totalDue.Sub(balance)
	if deficit.IsNegative() {
		deficit = money.Zero()
	}

	_, _, costPartial := greedyDeferral(bills, balance)

	return domain.FinancingComparison{
		Deficit: deficit,
		Quotes: []domain.FinancingQuote{
			{
				Label:       "Capital de Giro (8%)",
				Method:      domain.WorkingCapital,
				Cost:        p.giro.Cost(deficit),
				TotalOutlay: p.giro.TotalOutlay(deficit),
			},
			{
				Label:       "Adiantamento de Recebíveis (15%)",
				Method:      domain.ReceivablesAdvance,
				Cost:        p.adiantamento.Cost(deficit),
				TotalOutlay: p.adiantamento.TotalOutlay(deficit),
			},
			{
				Label: "Pagamento Parcial Inteligente",
				Cost:  costPartial,
			},
		},
		Recommended: recommended,
	}, nil
}

// greedyDeferral allocates the balance across bills by descending one-day
// deferral cost, the costliest-to-defer bills first. The interest cost is one
// day of accrual on whatever gets deferred, modeling receipts arriving
// tomorrow.
func greedyDeferral(bills []domain.Bill, balance money.Money) (payNow, deferred []domain.Bill, interestCost money.Money) {
	ordered := make([]domain.Bill, len(bills))
	copy(ordered, bills)
	sort.Slice(ordered, func(i, j int) bool {
		di := deferralDensity(ordered[i])
		dj := deferralDensity(ordered[j])
		if !di.Equal(dj) {
			return di.GreaterThan(dj)
		}
		return ordered[i].ID < ordered[j].ID
	})

	payNow = []domain.Bill{}
	deferred = []domain.Bill{}
	remaining := balance
	interestCost = money.Zero()

	for _, b := range ordered {
		if remaining.GreaterThanOrEqual(b.Amount) {
			remaining = remaining.Sub(b.Amount)
			payNow = append(payNow, b)
			continue
		}
		deferred = append(deferred, b)
		interestCost = interestCost.Add(b.DeferralCost())
	}

	return payNow, deferred, interestCost
}

// deferralDensity is the exact (unrounded) one-day cost of deferring a bill.
func deferralDensity(b domain.Bill) decimal.Decimal {
	return b.Amount.Amount().Mul(b.DailyInterestRate)
}

func validateBills(bills []domain.Bill) error {
	if len(bills) > MaxBillsPerPlan {
		return domain.ValidationErrorf("número de boletos excede o máximo de %d", MaxBillsPerPlan)
	}
	for _, b := range bills {
		if b.Amount.IsNegative() {
			return domain.ValidationErrorf("boleto %s: valor negativo", b.ID)
		}
		if b.DailyInterestRate.IsNegative() {
			return domain.ValidationErrorf("boleto %s: juros diário negativo", b.ID)
		}
	}
	return nil
}

func sortedByID(bills []domain.Bill) []domain.Bill {
	out := make([]domain.Bill, len(bills))
	copy(out, bills)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
