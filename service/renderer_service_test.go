package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"payment-agent/domain"
	"payment-agent/money"
)

func newTestRenderer() *RendererService {
	log := logrus.New()
	log.SetOutput(io.Discard)

	// Sem chave de API o renderizador responde apenas com os templates.
	return NewRendererService("", "gpt-4o-mini", log)
}

func TestRenderWelcomeListsMenu(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind: domain.ResponseWelcome,
		Overview: &domain.DayOverview{
			Date:         "2026-09-15",
			DueCount:     2,
			OverdueCount: 1,
		},
	})

	assert.Contains(t, text, "Célia")
	assert.Contains(t, text, "2 boleto(s) vencendo")
	assert.Contains(t, text, "1 em atraso")
	assert.Contains(t, text, "1. Ver pagamentos de hoje")
	assert.Contains(t, text, "4. Ver boletos atrasados")
}

func TestRenderDayOverviewShowsTotalsAndBalance(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind:    domain.ResponseDayOverview,
		Balance: money.FromFloat(10000),
		Overview: &domain.DayOverview{
			Date:          "2026-09-15",
			DueCount:      2,
			DueTotal:      money.FromFloat(7000),
			CombinedTotal: money.FromFloat(7000),
		},
	})

	assert.Contains(t, text, "2026-09-15")
	assert.Contains(t, text, "R$ 7000.00")
	assert.Contains(t, text, "R$ 10000.00")
	assert.Contains(t, text, "1. Pagar")
}

func TestRenderConfirmationDescribesPartialStrategy(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind: domain.ResponseConfirmation,
		Strategy: &domain.Strategy{
			Kind:               domain.PartialPayment,
			PayNow:             []domain.Bill{testBill("BOLETO_1", 4000, 0.01)},
			Deferred:           []domain.Bill{testBill("BOLETO_2", 3000, 0.02)},
			InterestCost:       money.FromFloat(60),
			SavingsVsAlternate: money.FromFloat(180),
		},
	})

	assert.Contains(t, text, "Pagamento parcial inteligente")
	assert.Contains(t, text, "R$ 60.00")
	assert.Contains(t, text, "R$ 180.00")
	assert.Contains(t, text, "BOLETO_2")
	assert.Contains(t, text, "sim/não")
}

func TestRenderFinancingComparisonListsQuotes(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind: domain.ResponseFinancingComparison,
		Comparison: &domain.FinancingComparison{
			Deficit: money.FromFloat(3050),
			Quotes: []domain.FinancingQuote{
				{Label: "Capital de Giro (8%)", Cost: money.FromFloat(244), TotalOutlay: money.FromFloat(3294)},
				{Label: "Adiantamento de Recebíveis (15%)", Cost: money.FromFloat(457.50), TotalOutlay: money.FromFloat(3507.50)},
				{Label: "Pagamento Parcial Inteligente", Cost: money.FromFloat(40)},
			},
			Recommended: domain.Strategy{
				Kind:         domain.PartialPayment,
				PayNow:       []domain.Bill{testBill("BOLETO_1", 4000, 0.01)},
				Deferred:     []domain.Bill{},
				InterestCost: money.FromFloat(40),
			},
		},
	})

	assert.Contains(t, text, "R$ 3050.00")
	assert.Contains(t, text, "Capital de Giro (8%)")
	assert.Contains(t, text, "Adiantamento de Recebíveis (15%)")
	assert.Contains(t, text, "Pagamento Parcial Inteligente")
	assert.Contains(t, text, "Recomendação")
}

func TestRenderCommittedShowsNewBalance(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind:    domain.ResponseCommitted,
		Balance: money.FromFloat(1950),
		Strategy: &domain.Strategy{
			Kind:     domain.FullBalance,
			PayNow:   []domain.Bill{testBill("BOLETO_1", 4000, 0.01)},
			Deferred: []domain.Bill{},
		},
	})

	assert.Contains(t, text, "executado com sucesso")
	assert.Contains(t, text, "R$ 1950.00")
}

func TestRenderOverdueListWhenEmpty(t *testing.T) {
	r := newTestRenderer()

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind: domain.ResponseOverdueList,
	})

	assert.Contains(t, text, "não tem boletos em atraso")
}

func TestRenderOverdueListWithBills(t *testing.T) {
	r := newTestRenderer()

	bill := testBill("BOLETO_3", 1000, 0.01)
	bill.DueDate = time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)

	text := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind:    domain.ResponseOverdueList,
		Overdue: []domain.Bill{bill},
	})

	assert.Contains(t, text, "1 boleto(s) em atraso")
	assert.Contains(t, text, "BOLETO_3")
	assert.Contains(t, text, "2026-09-10")
}

func TestRenderGuidanceFallsBackToHelpHint(t *testing.T) {
	r := newTestRenderer()

	withText := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind:     domain.ResponseGuidance,
		Guidance: "consulte primeiro os pagamentos do dia",
	})
	assert.Contains(t, withText, "consulte primeiro os pagamentos do dia")

	withoutText := r.Render(context.Background(), "Célia", domain.ResponseContext{
		Kind: domain.ResponseGuidance,
	})
	assert.Contains(t, withoutText, "ajuda")
}
