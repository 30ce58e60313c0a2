package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payment-agent/domain"
)

// RendererService turns a structured turn result into user-facing Portuguese
// text. Templates always produce a complete answer; when a model is
// configured it only rephrases the template output, so a model outage never
// degrades the content of a reply.
type RendererService struct {
	client  *openai.Client
	model   string
	enabled bool
	log     *logrus.Logger
}

func NewRendererService(apiKey, model string, log *logrus.Logger) *RendererService {
	s := &RendererService{
		model:   model,
		enabled: apiKey != "",
		log:     log,
	}
	if s.enabled {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

// Render produces the reply text for a turn. It never fails: model errors
// fall back to the template rendering.
func (s *RendererService) Render(ctx context.Context, userName string, rc domain.ResponseContext) string {
	text := s.renderTemplate(userName, rc)

	if !s.enabled {
		return text
	}

	polished, err := s.rephrase(ctx, text)
	if err != nil {
		s.log.Warnf("renderer model unavailable, using template text: %v", err)
		return text
	}
	return polished
}

func (s *RendererService) renderTemplate(userName string, rc domain.ResponseContext) string {
	var b strings.Builder

	switch rc.Kind {
	case domain.ResponseWelcome:
		fmt.Fprintf(&b, "Olá, %s! 👋 Sou seu assistente de pagamentos.\n\n", userName)
		if rc.Overview != nil && rc.Overview.DueCount+rc.Overview.OverdueCount > 0 {
			fmt.Fprintf(&b, "Hoje você tem %d boleto(s) vencendo", rc.Overview.DueCount)
			if rc.Overview.OverdueCount > 0 {
				fmt.Fprintf(&b, " e %d em atraso", rc.Overview.OverdueCount)
			}
			b.WriteString(".\n\n")
		}
		b.WriteString("O que deseja fazer?\n")
		b.WriteString("1. Ver pagamentos de hoje\n")
		b.WriteString("2. Consultar outra data\n")
		b.WriteString("3. Consultar um período\n")
		b.WriteString("4. Ver boletos atrasados\n")

	case domain.ResponseDayOverview:
		if rc.Overview != nil {
			fmt.Fprintf(&b, "📋 Pagamentos de %s:\n", rc.Overview.Date)
			fmt.Fprintf(&b, "• %d boleto(s) no dia, total %s\n", rc.Overview.DueCount, rc.Overview.DueTotal.FormatWithSymbol())
			if rc.Overview.OverdueCount > 0 {
				fmt.Fprintf(&b, "• ⚠️ %d boleto(s) em atraso, total %s\n", rc.Overview.OverdueCount, rc.Overview.OverdueTotal.FormatWithSymbol())
			}
			fmt.Fprintf(&b, "• Total a quitar: %s\n", rc.Overview.CombinedTotal.FormatWithSymbol())
		}
		fmt.Fprintf(&b, "• Saldo disponível: %s\n", rc.Balance.FormatWithSymbol())
		if rc.Strategy != nil {
			b.WriteString("\n")
			b.WriteString(describeStrategy(*rc.Strategy))
		}
		b.WriteString("\nO que deseja?\n1. Pagar\n2. Ver detalhes\n3. Voltar ao menu\n")

	case domain.ResponseRangeOverview:
		if rc.Dashboard != nil {
			d := rc.Dashboard
			fmt.Fprintf(&b, "📊 Período de %s a %s:\n\n", d.Start, d.End)
			if len(d.TopValueDays) > 0 {
				b.WriteString("Dias com maior valor:\n")
				for _, day := range d.TopValueDays {
					fmt.Fprintf(&b, "• %s: %s (%d boleto(s))\n", day.Date, day.Total.FormatWithSymbol(), day.Count)
				}
			}
			if len(d.TopCountDays) > 0 {
				b.WriteString("\nDias com mais boletos:\n")
				for _, day := range d.TopCountDays {
					fmt.Fprintf(&b, "• %s: %d boleto(s), %s\n", day.Date, day.Count, day.Total.FormatWithSymbol())
				}
			}
			if d.OverdueCount > 0 {
				fmt.Fprintf(&b, "\n⚠️ %d boleto(s) em atraso fora do período, total %s\n", d.OverdueCount, d.OverdueTotal.FormatWithSymbol())
			}
			b.WriteString("\nPosso detalhar os valores dos dias em destaque, é só pedir.\n")
		}

	case domain.ResponseOverdueList:
		if len(rc.Overdue) == 0 {
			b.WriteString("✅ Ótima notícia: você não tem boletos em atraso.\n")
			break
		}
		fmt.Fprintf(&b, "⚠️ Você tem %d boleto(s) em atraso:\n\n", len(rc.Overdue))
		for _, bill := range rc.Overdue {
			fmt.Fprintf(&b, "• %s — %s, %s, venceu em %s\n", bill.ID, bill.Creditor, bill.Amount.FormatWithSymbol(), bill.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\nQuer que eu calcule a melhor forma de quitá-los? É só dizer \"pagar\".\n")

	case domain.ResponseBillList:
		b.WriteString("📄 Boletos em análise:\n\n")
		for _, bill := range rc.Bills {
			fmt.Fprintf(&b, "• %s — %s, %s, vencimento %s\n", bill.ID, bill.Creditor, bill.Amount.FormatWithSymbol(), bill.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\nInforme o identificador de um boleto para ver os detalhes.\n")

	case domain.ResponseBillDetail:
		if rc.Bill != nil {
			bill := rc.Bill
			fmt.Fprintf(&b, "📄 Boleto %s:\n", bill.ID)
			fmt.Fprintf(&b, "• Beneficiário: %s\n", bill.Creditor)
			fmt.Fprintf(&b, "• Valor: %s\n", bill.Amount.FormatWithSymbol())
			fmt.Fprintf(&b, "• Vencimento: %s\n", bill.DueDate.Format("2006-01-02"))
			fmt.Fprintf(&b, "• Juros diário: %s%%\n", bill.DailyInterestRate.Mul(decimal.NewFromInt(100)).String())
		}

	case domain.ResponseFinancingComparison:
		if rc.Comparison != nil {
			c := rc.Comparison
			fmt.Fprintf(&b, "💡 Seu saldo não cobre o total. Faltam %s. Opções:\n\n", c.Deficit.FormatWithSymbol())
			for _, q := range c.Quotes {
				fmt.Fprintf(&b, "• %s: custo %s, desembolso total %s\n", q.Label, q.Cost.FormatWithSymbol(), q.TotalOutlay.FormatWithSymbol())
			}
			b.WriteString("\nRecomendação: ")
			b.WriteString(describeStrategy(c.Recommended))
			b.WriteString("\nDeseja seguir a recomendação? (sim/não)\n")
		}

	case domain.ResponseConfirmation:
		if rc.Strategy != nil {
			b.WriteString("🔎 Plano de pagamento:\n\n")
			b.WriteString(describeStrategy(*rc.Strategy))
			b.WriteString("\nConfirma a execução? (sim/não)\n")
		}

	case domain.ResponseCommitted:
		b.WriteString("✅ Pagamento executado com sucesso!\n")
		if rc.Strategy != nil {
			fmt.Fprintf(&b, "• Boletos pagos: %d, total %s\n", len(rc.Strategy.PayNow), rc.Strategy.PayNowTotal().FormatWithSymbol())
			if len(rc.Strategy.Deferred) > 0 {
				fmt.Fprintf(&b, "• Boletos adiados: %d\n", len(rc.Strategy.Deferred))
			}
		}
		fmt.Fprintf(&b, "• Saldo atual: %s\n", rc.Balance.FormatWithSymbol())

	case domain.ResponseCancelled:
		b.WriteString("Sem problemas, pagamento cancelado. Posso ajudar com mais alguma coisa?\n")

	case domain.ResponseHighlights:
		if rc.Dashboard != nil {
			b.WriteString("🔍 Valores dos dias em destaque:\n\n")
			for _, day := range rc.Dashboard.UrgentView {
				fmt.Fprintf(&b, "%s:\n", day.Date)
				for _, bill := range day.Bills {
					fmt.Fprintf(&b, "• %s — %s, %s\n", bill.ID, bill.Creditor, bill.Amount.FormatWithSymbol())
				}
			}
		}

	case domain.ResponsePromptDate:
		b.WriteString("📅 Qual data você quer consultar? Use o formato AAAA-MM-DD, por exemplo 2026-09-15.\n")

	case domain.ResponsePromptRange:
		b.WriteString("📅 Qual período você quer consultar? Informe início e fim (AAAA-MM-DD a AAAA-MM-DD) ou algo como \"próximos 15 dias\".\n")

	case domain.ResponseNothingDue:
		b.WriteString("✅ Nenhum boleto pendente para essa consulta. Tudo em dia!\n")

	case domain.ResponseGuidance:
		if rc.Guidance != "" {
			b.WriteString(rc.Guidance)
			b.WriteString("\n")
		} else {
			b.WriteString("Não entendi. Digite \"ajuda\" para ver o que posso fazer.\n")
		}

	case domain.ResponseHelp:
		b.WriteString("ℹ️ Posso ajudar com:\n")
		b.WriteString("• Ver pagamentos de hoje ou de uma data específica\n")
		b.WriteString("• Consultar um período (ex.: próximos 15 dias)\n")
		b.WriteString("• Listar boletos em atraso\n")
		b.WriteString("• Comparar opções de financiamento\n")
		b.WriteString("• Executar o pagamento sugerido\n")

	case domain.ResponseError:
		b.WriteString("😕 Tive um problema ao processar sua solicitação. Pode tentar de novo em instantes?\n")

	default:
		b.WriteString("Não entendi. Digite \"ajuda\" para ver o que posso fazer.\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func describeStrategy(s domain.Strategy) string {
	var b strings.Builder

	switch s.Kind {
	case domain.FullBalance:
		fmt.Fprintf(&b, "Seu saldo cobre tudo: pagar os %d boleto(s) agora, total %s.\n", len(s.PayNow), s.PayNowTotal().FormatWithSymbol())

	case domain.FullFinancing:
		label := "Capital de Giro (8%)"
		if s.Method == domain.ReceivablesAdvance {
			label = "Adiantamento de Recebíveis (15%)"
		}
		fmt.Fprintf(&b, "Financiar %s via %s e quitar todos os %d boleto(s).\n", s.FinancedAmount.FormatWithSymbol(), label, len(s.PayNow))
		fmt.Fprintf(&b, "Custo do financiamento: %s.\n", s.InterestCost.FormatWithSymbol())

	case domain.PartialPayment:
		fmt.Fprintf(&b, "Pagamento parcial inteligente: pagar %d boleto(s) agora (%s) e adiar %d (%s).\n",
			len(s.PayNow), s.PayNowTotal().FormatWithSymbol(), len(s.Deferred), s.DeferredTotal().FormatWithSymbol())
		fmt.Fprintf(&b, "Custo de juros do adiamento: %s.\n", s.InterestCost.FormatWithSymbol())
		if !s.SavingsVsAlternate.IsZero() {
			fmt.Fprintf(&b, "Economia frente à melhor alternativa: %s.\n", s.SavingsVsAlternate.FormatWithSymbol())
		}
	}

	if len(s.Deferred) > 0 {
		b.WriteString("Boletos adiados:\n")
		for _, bill := range s.Deferred {
			fmt.Fprintf(&b, "• %s — %s (%s)\n", bill.ID, bill.Creditor, bill.Amount.FormatWithSymbol())
		}
	}

	return b.String()
}

func (s *RendererService) rephrase(ctx context.Context, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Você é um assistente financeiro simpático e objetivo. Reescreva a mensagem a seguir mantendo TODOS os números, identificadores de boletos, opções de menu e valores exatamente como estão. Apenas melhore a fluidez do texto em português.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
		Temperature: 0.7,
		MaxTokens:   600,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return out, nil
}
