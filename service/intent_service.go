package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"payment-agent/domain"
)

// IntentService classifies a free-form user message into one of the closed
// intents, extracting dates, ranges and bill-id tokens along the way. With an
// API key it asks the model first and falls back to keyword matching; without
// one it matches keywords only.
type IntentService struct {
	client  *openai.Client
	model   string
	enabled bool
	log     *logrus.Logger
	now     func() time.Time
}

func NewIntentService(apiKey, model string, log *logrus.Logger) *IntentService {
	s := &IntentService{
		model:   model,
		enabled: apiKey != "",
		log:     log,
		now:     time.Now,
	}
	if s.enabled {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

var intentKeywords = map[domain.Intent][]string{
	domain.IntentGreeting: {
		"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite", "hey",
		"e aí", "tudo bem", "como vai", "beleza",
	},
	domain.IntentViewToday: {
		"pagamentos de hoje", "boletos hoje", "ver hoje", "pagamento hoje",
		"o que vence hoje", "contas de hoje", "mostrar hoje",
	},
	domain.IntentViewDate: {
		"pagamentos de", "boletos de", "ver data", "outra data",
		"data específica", "consultar data",
	},
	domain.IntentViewRange: {
		"período", "periodo", "intervalo", "entre", "até",
		"próximos", "próximas", "proximos", "proximas",
	},
	domain.IntentViewOverdue: {
		"atrasados", "vencidos", "em atraso", "contas atrasadas",
		"boletos vencidos", "pendentes",
	},
	domain.IntentPay: {
		"pagar", "quitar", "executar", "confirmar", "confirmo", "sim",
		"aceito", "prosseguir", "pode seguir", "seguir sugestão",
		"seguir recomendação", "aplicar", "implementar",
	},
	domain.IntentViewDetails: {
		"detalhes", "detalhe", "informações", "ver mais", "saber mais",
		"quais boletos", "lista de boletos", "mostrar boleto",
	},
	domain.IntentViewFinancing: {
		"opções", "opcoes", "financiamento", "financiar", "capital de giro",
		"adiantamento", "alternativas", "negociação", "comparar",
	},
	domain.IntentViewHighlights: {
		"dias destaque", "valores dos dias", "valores em destaque",
		"valores por dia", "quanto é cada dia",
	},
	domain.IntentGoBack: {
		"voltar", "menu", "cancelar", "não", "nao", "sair", "retornar",
	},
	domain.IntentHelp: {
		"ajuda", "help", "o que posso fazer", "comandos", "não entendi",
	},
}

var (
	dateRe     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	relativeRe = regexp.MustCompile(`pr[oó]xim[oa]s?\s+(\d+)\s+(dia|semana|m[eê]s)`)
	numberRe   = regexp.MustCompile(`^\d+$`)
	billIDRe   = regexp.MustCompile(`(?i)\b(boleto[_\s]?\d+|bol[_\s]?\d+)\b`)
)

// Classify maps a message to an intent given the session's current state.
// It never fails hard: when the model is unavailable or misbehaves the
// keyword path answers instead.
func (s *IntentService) Classify(ctx context.Context, message string, state domain.ChatState) domain.Classification {
	normalized := strings.ToLower(strings.TrimSpace(message))

	// Bare menu numbers are positional, not linguistic.
	if numberRe.MatchString(normalized) {
		return s.classifyMenuNumber(normalized, state)
	}

	if s.enabled {
		c, err := s.classifyWithModel(ctx, message, state)
		if err == nil {
			return c
		}
		s.log.Warnf("intent model unavailable, falling back to patterns: %v", err)
	}

	return s.classifyWithPatterns(normalized, state)
}

func (s *IntentService) classifyMenuNumber(number string, state domain.ChatState) domain.Classification {
	menus := map[domain.ChatState]map[string]domain.Intent{
		domain.StateMainMenu: {
			"1": domain.IntentViewToday,
			"2": domain.IntentViewDate,
			"3": domain.IntentViewRange,
			"4": domain.IntentViewOverdue,
		},
		domain.StateDayOverview: {
			"1": domain.IntentPay,
			"2": domain.IntentViewDetails,
			"3": domain.IntentGoBack,
		},
	}

	if intent, ok := menus[state][number]; ok {
		return domain.Classification{Intent: intent, Confidence: 1.0}
	}
	return domain.Classification{Intent: domain.IntentUnknown}
}

func (s *IntentService) classifyWithPatterns(message string, state domain.ChatState) domain.Classification {
	params := s.extractParams(message)

	// Greetings win outright.
	for _, kw := range intentKeywords[domain.IntentGreeting] {
		if strings.Contains(message, kw) {
			return domain.Classification{Intent: domain.IntentGreeting, Confidence: 1.0, Params: params}
		}
	}

	// Confirmation states read yes/no before anything else, so "sim" never
	// collides with a query keyword.
	if state == domain.StatePaymentConfirmation {
		for _, kw := range intentKeywords[domain.IntentGoBack] {
			if strings.Contains(message, kw) {
				return domain.Classification{Intent: domain.IntentGoBack, Confidence: 1.0, Params: params}
			}
		}
		for _, kw := range intentKeywords[domain.IntentPay] {
			if strings.Contains(message, kw) {
				return domain.Classification{Intent: domain.IntentPay, Confidence: 1.0, Params: params}
			}
		}
	}

	// A relative window ("próximos 15 dias") is always a range request.
	if params.HasRange() && relativeRe.MatchString(message) {
		return domain.Classification{Intent: domain.IntentViewRange, Confidence: 1.0, Params: params}
	}

	best := domain.IntentUnknown
	bestScore := 0
	for _, intent := range []domain.Intent{
		domain.IntentViewToday,
		domain.IntentViewOverdue,
		domain.IntentViewFinancing,
		domain.IntentViewHighlights,
		domain.IntentViewDetails,
		domain.IntentViewRange,
		domain.IntentViewDate,
		domain.IntentPay,
		domain.IntentGoBack,
		domain.IntentHelp,
	} {
		score := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(message, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = intent
		}
	}

	// A date-entry state with a parsable date is an answer, not a command.
	if best == domain.IntentUnknown && params.HasDate() {
		if params.HasRange() || state == domain.StateAwaitingRange {
			best = domain.IntentViewRange
		} else {
			best = domain.IntentViewDate
		}
		bestScore = 2
	}

	// In bill-detail mode a bare token selects a bill.
	if best == domain.IntentUnknown && state == domain.StateBillDetail && params.BillID != "" {
		best = domain.IntentViewDetails
		bestScore = 2
	}

	confidence := float64(bestScore) / 2
	if confidence > 1 {
		confidence = 1
	}

	return domain.Classification{Intent: best, Confidence: confidence, Params: params}
}

func (s *IntentService) extractParams(message string) domain.IntentParams {
	var params domain.IntentParams

	if m := relativeRe.FindStringSubmatch(message); m != nil {
		n := 0
		fmt.Sscanf(m[1], "%d", &n)
		today := dayOf(s.now())
		params.Date = today
		switch {
		case strings.HasPrefix(m[2], "dia"):
			params.EndDate = today.AddDate(0, 0, n)
		case strings.HasPrefix(m[2], "semana"):
			params.EndDate = today.AddDate(0, 0, n*7)
		default: // meses, aproximação de 30 dias
			params.EndDate = today.AddDate(0, 0, n*30)
		}
	}

	if dates := dateRe.FindAllString(message, 2); len(dates) > 0 {
		if d, err := time.Parse("2006-01-02", dates[0]); err == nil {
			params.Date = d
		}
		if len(dates) > 1 {
			if d, err := time.Parse("2006-01-02", dates[1]); err == nil {
				params.EndDate = d
			}
		}
	}

	if m := billIDRe.FindString(message); m != "" {
		params.BillID = normalizeBillToken(m)
	}

	return params
}

func normalizeBillToken(token string) string {
	token = strings.ToUpper(strings.TrimSpace(token))
	token = strings.ReplaceAll(token, " ", "_")
	return token
}

type modelVerdict struct {
	Intent     string  `json:"intencao"`
	Confidence float64 `json:"confianca"`
	Params     struct {
		Date    string `json:"data"`
		EndDate string `json:"data_fim"`
		BillID  string `json:"boleto"`
	} `json:"parametros"`
}

func (s *IntentService) classifyWithModel(ctx context.Context, message string, state domain.ChatState) (domain.Classification, error) {
	prompt := s.buildPrompt(message, state)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Você é um classificador de intenções para um chatbot de pagamento de boletos. Responda sempre com JSON válido.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		return domain.Classification{}, err
	}
	if len(resp.Choices) == 0 {
		return domain.Classification{}, fmt.Errorf("no response from model")
	}

	raw := stripMarkdownFences(resp.Choices[0].Message.Content)

	var verdict modelVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return domain.Classification{}, fmt.Errorf("unparsable model verdict: %w", err)
	}

	intent := domain.Intent(verdict.Intent)
	if _, known := intentKeywords[intent]; !known && intent != domain.IntentUnknown &&
		intent != domain.IntentViewToday && intent != domain.IntentViewHighlights {
		intent = domain.IntentUnknown
	}

	params := s.extractParams(strings.ToLower(message))
	if verdict.Params.Date != "" {
		if d, err := time.Parse("2006-01-02", verdict.Params.Date); err == nil {
			params.Date = d
		}
	}
	if verdict.Params.EndDate != "" {
		if d, err := time.Parse("2006-01-02", verdict.Params.EndDate); err == nil {
			params.EndDate = d
		}
	}
	if verdict.Params.BillID != "" {
		params.BillID = normalizeBillToken(verdict.Params.BillID)
	}

	return domain.Classification{Intent: intent, Confidence: verdict.Confidence, Params: params}, nil
}

func (s *IntentService) buildPrompt(message string, state domain.ChatState) string {
	stateHint := ""
	switch state {
	case domain.StatePaymentConfirmation:
		stateHint = "O usuário está na confirmação de pagamento: confirmações ('sim', 'aceito', 'executar') são 'pay'; recusas ('não', 'cancelar') são 'go_back'."
	case domain.StateDayOverview:
		stateHint = "O usuário acabou de ver a análise de boletos: pedidos de informação são 'view_details', pedidos de alternativas são 'view_financing_options', confirmações explícitas são 'pay'."
	case domain.StateRangeOverview:
		stateHint = "O usuário acabou de ver um período: pedidos de valores específicos dos dias em destaque são 'view_highlighted_values'."
	}

	return fmt.Sprintf(`Classifique a intenção da mensagem em uma das categorias:
greeting, view_today, view_date, view_range, view_overdue, view_financing_options, pay, view_details, view_highlighted_values, go_back, help, unknown.

Estado atual da conversa: %s
%s

Para "próximos N dias/semanas/meses", calcule data=hoje e data_fim correspondente. Datas no formato YYYY-MM-DD. Data de hoje: %s.

Mensagem: %q

Responda APENAS com JSON: {"intencao": "...", "confianca": 0.9, "parametros": {"data": "YYYY-MM-DD", "data_fim": "YYYY-MM-DD", "boleto": "..."}}`,
		state, stateHint, s.now().Format("2006-01-02"), message)
}

func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
