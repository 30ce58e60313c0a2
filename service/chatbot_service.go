package service

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"payment-agent/domain"
	"payment-agent/money"
	"payment-agent/repository"
)

// ChatbotService drives the conversation state machine. Each turn runs in
// two phases: every repository read and engine computation finishes first,
// and only then is session state mutated, so a failing collaborator call
// leaves the session exactly as it was.
type ChatbotService struct {
	sessions *SessionManager
	bills    repository.BillRepository
	planner  *PlannerService
	cache    repository.CacheRepository
	log      *logrus.Logger
	now      func() time.Time
}

func NewChatbotService(
	sessions *SessionManager,
	bills repository.BillRepository,
	planner *PlannerService,
	cache repository.CacheRepository,
	log *logrus.Logger,
) *ChatbotService {
	return &ChatbotService{
		sessions: sessions,
		bills:    bills,
		planner:  planner,
		cache:    cache,
		log:      log,
		now:      time.Now,
	}
}

// NewSessionID issues an id for a first-contact caller.
func (s *ChatbotService) NewSessionID() string {
	return s.sessions.NewSessionID()
}

// CurrentState reports the session's FSM state without advancing it.
func (s *ChatbotService) CurrentState(sessionID string) domain.ChatState {
	var state domain.ChatState
	_ = s.sessions.WithSession(sessionID, func(sess *Session) error {
		state = sess.State
		return nil
	})
	return state
}

// HandleTurn advances one session by one classified turn and returns the
// structured response payload plus the next state.
func (s *ChatbotService) HandleTurn(
	sessionID string,
	intent domain.Intent,
	params domain.IntentParams,
) (domain.ResponseContext, domain.ChatState, error) {

	var rc domain.ResponseContext
	var next domain.ChatState

	err := s.sessions.WithSession(sessionID, func(sess *Session) error {
		var err error
		rc, err = s.dispatch(sess, intent, params)
		next = sess.State
		if rc.Balance.IsZero() {
			rc.Balance = sess.Balance
		}
		return err
	})
	return rc, next, err
}

func (s *ChatbotService) dispatch(sess *Session, intent domain.Intent, params domain.IntentParams) (domain.ResponseContext, error) {
	// Start always advances to the main menu, whatever the first message
	// was.
	if sess.State == domain.StateStart {
		sess.State = domain.StateMainMenu
		if intent == domain.IntentUnknown || intent == domain.IntentGreeting {
			return s.greet(sess)
		}
	}

	// The date-entry states consume any turn that carries the parameter
	// they are waiting for; anything else re-prompts without advancing.
	if sess.State == domain.StateAwaitingDate && !navigatesAway(intent) {
		if params.HasDate() {
			return s.dayView(sess, params.Date, false)
		}
		return domain.ResponseContext{Kind: domain.ResponsePromptDate}, nil
	}
	if sess.State == domain.StateAwaitingRange && !navigatesAway(intent) {
		if params.HasRange() {
			return s.rangeView(sess, params.Date, params.EndDate)
		}
		return domain.ResponseContext{Kind: domain.ResponsePromptRange}, nil
	}

	switch intent {
	case domain.IntentGreeting:
		return s.greet(sess)

	case domain.IntentViewToday:
		return s.dayView(sess, s.now(), false)

	case domain.IntentViewDate:
		if params.HasDate() {
			return s.dayView(sess, params.Date, false)
		}
		sess.State = domain.StateAwaitingDate
		return domain.ResponseContext{Kind: domain.ResponsePromptDate}, nil

	case domain.IntentViewRange:
		if params.HasRange() {
			return s.rangeView(sess, params.Date, params.EndDate)
		}
		sess.State = domain.StateAwaitingRange
		return domain.ResponseContext{Kind: domain.ResponsePromptRange}, nil

	case domain.IntentViewOverdue:
		return s.overdueList(sess)

	case domain.IntentViewFinancing:
		return s.financingOptions(sess)

	case domain.IntentPay:
		return s.pay(sess)

	case domain.IntentViewDetails:
		return s.billDetails(sess, params.BillID)

	case domain.IntentViewHighlights:
		return s.highlights(sess)

	case domain.IntentGoBack:
		return s.goBack(sess)

	case domain.IntentHelp:
		return domain.ResponseContext{Kind: domain.ResponseHelp}, nil

	default:
		// Unrecognized intent keeps the current state and offers help.
		return domain.ResponseContext{Kind: domain.ResponseHelp}, nil
	}
}

// navigatesAway lists the intents that escape the date-entry states.
func navigatesAway(intent domain.Intent) bool {
	switch intent {
	case domain.IntentGoBack, domain.IntentHelp, domain.IntentViewOverdue, domain.IntentGreeting:
		return true
	}
	return false
}

func (s *ChatbotService) greet(sess *Session) (domain.ResponseContext, error) {
	rc, err := s.dayView(sess, s.now(), true)
	if err != nil {
		// A failed bill fetch degrades the greeting to a plain welcome.
		s.log.Warnf("greeting day view unavailable for session %s: %v", sess.ID, err)
		sess.State = domain.StateMainMenu
		return domain.ResponseContext{Kind: domain.ResponseWelcome}, nil
	}
	return rc, nil
}

// dayView builds the day overview: bills due on the queried date plus
// everything overdue relative to now, both filtered for already-paid ids,
// with an advisory suggestion attached when anything is outstanding.
func (s *ChatbotService) dayView(sess *Session, date time.Time, welcome bool) (domain.ResponseContext, error) {
	due, err := s.bills.FetchDueOnDate(sess.CompanyID, date)
	if err != nil {
		return domain.ResponseContext{}, domain.CollaboratorErrorf("consultando boletos do dia: %v", err)
	}
	// Overdue is always relative to the current date, never the queried
	// one.
	overdue, err := s.bills.FetchOverdue(sess.CompanyID, s.now())
	if err != nil {
		return domain.ResponseContext{}, domain.CollaboratorErrorf("consultando boletos vencidos: %v", err)
	}

	due = sess.FilterUnpaid(due)
	overdue = sess.FilterUnpaid(overdue)
	overdue = excludeIDs(overdue, due)

	overview := buildOverview(date, due, overdue)

	rc := domain.ResponseContext{
		Kind:     domain.ResponseDayOverview,
		Overview: &overview,
		Bills:    due,
		Overdue:  overdue,
	}
	if len(due)+len(overdue) == 0 {
		rc.Kind = domain.ResponseNothingDue
	} else if suggestion := s.advisoryStrategy(sess, due, overdue); suggestion != nil {
		rc.Strategy = suggestion
	}
	// A greeting is always a welcome, bills or not.
	if welcome {
		rc.Kind = domain.ResponseWelcome
	}

	// All reads done; now it is safe to mutate.
	sess.Query = &QueryContext{Date: date, Bills: due, Overdue: overdue}
	sess.State = domain.StateDayOverview
	return rc, nil
}

// advisoryStrategy computes the suggestion shown with an overview. It is
// informational only and never arms the pending strategy. Engine failures
// degrade to "no suggestion".
func (s *ChatbotService) advisoryStrategy(sess *Session, due, overdue []domain.Bill) *domain.Strategy {
	outstanding := append(append([]domain.Bill{}, due...), overdue...)
	if len(outstanding) == 0 {
		return nil
	}
	strategy, err := s.planner.ComputeStrategy(planningBills(outstanding, s.now()), sess.Balance, s.now())
	if err != nil {
		s.log.Warnf("advisory analysis unavailable for session %s: %v", sess.ID, err)
		return nil
	}
	return &strategy
}

func (s *ChatbotService) rangeView(sess *Session, start, end time.Time) (domain.ResponseContext, error) {
	if end.Before(start) {
		return domain.ResponseContext{Kind: domain.ResponsePromptRange},
			domain.RecoverableInputErrorf("intervalo com fim antes do início")
	}

	inRange, err := s.bills.FetchRange(sess.CompanyID, start, end)
	if err != nil {
		return domain.ResponseContext{}, domain.CollaboratorErrorf("consultando intervalo: %v", err)
	}
	overdue, err := s.bills.FetchOverdue(sess.CompanyID, s.now())
	if err != nil {
		return domain.ResponseContext{}, domain.CollaboratorErrorf("consultando boletos vencidos: %v", err)
	}

	inRange = sess.FilterUnpaid(inRange)
	overdue = sess.FilterUnpaid(overdue)

	dashboard := buildDashboard(start, end, inRange, overdue)

	sess.Query = &QueryContext{Start: start, End: end, Bills: inRange, Overdue: overdue, Dashboard: &dashboard}
	sess.State = domain.StateRangeOverview

	return domain.ResponseContext{
		Kind:      domain.ResponseRangeOverview,
		Dashboard: &dashboard,
		Bills:     inRange,
	}, nil
}

func (s *ChatbotService) overdueList(sess *Session) (domain.ResponseContext, error) {
	overdue, err := s.bills.FetchOverdue(sess.CompanyID, s.now())
	if err != nil {
		return domain.ResponseContext{}, domain.CollaboratorErrorf("consultando boletos vencidos: %v", err)
	}
	overdue = sess.FilterUnpaid(overdue)

	sess.Query = &QueryContext{Date: s.now(), Overdue: overdue}
	sess.State = domain.StateOverdueList

	return domain.ResponseContext{
		Kind:    domain.ResponseOverdueList,
		Overdue: overdue,
	}, nil
}

func (s *ChatbotService) financingOptions(sess *Session) (domain.ResponseContext, error) {
	outstanding := sess.OutstandingBills()
	if len(outstanding) == 0 {
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "consulte primeiro os pagamentos do dia ou de uma data específica",
		}, nil
	}

	total := money.Zero()
	for _, b := range outstanding {
		total = total.Add(b.Amount)
	}
	if sess.Balance.GreaterThanOrEqual(total) {
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "o saldo cobre todos os boletos; nenhum financiamento é necessário",
		}, nil
	}

	comparison, err := s.planner.ComputeComparison(planningBills(outstanding, s.now()), sess.Balance, s.now())
	if err != nil {
		return domain.ResponseContext{}, err
	}

	recommended := comparison.Recommended
	sess.Pending = &recommended
	sess.State = domain.StatePaymentConfirmation

	return domain.ResponseContext{
		Kind:       domain.ResponseFinancingComparison,
		Comparison: &comparison,
		Strategy:   &recommended,
	}, nil
}

func (s *ChatbotService) pay(sess *Session) (domain.ResponseContext, error) {
	if sess.State == domain.StatePaymentConfirmation {
		return s.commitPending(sess)
	}

	switch sess.State {
	case domain.StateDayOverview, domain.StateBillDetail, domain.StateOverdueList:
	default:
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "para pagar boletos, consulte primeiro os pagamentos do dia ou de uma data específica",
		}, nil
	}

	outstanding := sess.OutstandingBills()
	if len(outstanding) == 0 {
		sess.State = domain.StateMainMenu
		return domain.ResponseContext{Kind: domain.ResponseNothingDue}, nil
	}

	strategy, err := s.planner.ComputeStrategy(planningBills(outstanding, s.now()), sess.Balance, s.now())
	if err != nil {
		// Validation failure aborts the transition: prior state kept,
		// pending strategy left unset.
		return domain.ResponseContext{}, err
	}

	sess.Pending = &strategy
	sess.State = domain.StatePaymentConfirmation

	return domain.ResponseContext{
		Kind:     domain.ResponseConfirmation,
		Strategy: &strategy,
	}, nil
}

func (s *ChatbotService) commitPending(sess *Session) (domain.ResponseContext, error) {
	pending := sess.Pending
	if pending == nil {
		sess.State = domain.StateMainMenu
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "não há pagamento pendente de confirmação",
		}, nil
	}

	if err := sess.Commit(pending); err != nil {
		return domain.ResponseContext{}, err
	}

	committed := *pending
	sess.Pending = nil
	sess.State = domain.StateMainMenu

	return domain.ResponseContext{
		Kind:     domain.ResponseCommitted,
		Strategy: &committed,
		Balance:  sess.Balance,
	}, nil
}

func (s *ChatbotService) billDetails(sess *Session, billID string) (domain.ResponseContext, error) {
	outstanding := sess.OutstandingBills()
	if sess.Query == nil || len(outstanding) == 0 {
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "para ver detalhes, consulte primeiro os pagamentos do dia ou de uma data específica",
		}, nil
	}

	if billID == "" {
		sess.State = domain.StateBillDetail
		return domain.ResponseContext{
			Kind:  domain.ResponseBillList,
			Bills: outstanding,
		}, nil
	}

	for _, b := range outstanding {
		if b.ID == billID {
			bill := b
			sess.State = domain.StateBillDetail
			return domain.ResponseContext{
				Kind: domain.ResponseBillDetail,
				Bill: &bill,
			}, nil
		}
	}

	// Unknown token: recover by listing what can be inspected.
	sess.State = domain.StateBillDetail
	return domain.ResponseContext{
		Kind:  domain.ResponseBillList,
		Bills: outstanding,
	}, domain.RecoverableInputErrorf("boleto %s não encontrado na consulta atual", billID)
}

func (s *ChatbotService) highlights(sess *Session) (domain.ResponseContext, error) {
	if sess.State != domain.StateRangeOverview || sess.Query == nil || sess.Query.Dashboard == nil {
		return domain.ResponseContext{
			Kind:     domain.ResponseGuidance,
			Guidance: "para ver os valores em destaque, consulte primeiro um período",
		}, nil
	}
	return domain.ResponseContext{
		Kind:      domain.ResponseHighlights,
		Dashboard: sess.Query.Dashboard,
	}, nil
}

func (s *ChatbotService) goBack(sess *Session) (domain.ResponseContext, error) {
	if sess.State == domain.StatePaymentConfirmation {
		// Discard without touching balance or the paid set.
		sess.Pending = nil
		sess.State = domain.StateMainMenu
		return domain.ResponseContext{Kind: domain.ResponseCancelled}, nil
	}
	sess.State = domain.StateMainMenu
	return domain.ResponseContext{Kind: domain.ResponseHelp}, nil
}

// RecordExchange appends the turn's transcript entries and snapshots the
// session to the cache. Cache failures are logged and ignored; the snapshot
// carries no monetary authority.
func (s *ChatbotService) RecordExchange(sessionID, userMessage, botMessage string) {
	err := s.sessions.WithSession(sessionID, func(sess *Session) error {
		now := s.now()
		sess.AppendHistory("user", userMessage, now)
		sess.AppendHistory("bot", botMessage, now)

		snapshot := struct {
			Balance money.Money           `json:"balance"`
			History []domain.HistoryEntry `json:"history"`
		}{Balance: sess.Balance, History: sess.History}

		raw, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		return s.cache.Set("session:"+sessionID, string(raw))
	})
	if err != nil {
		s.log.Warnf("failed to snapshot session %s: %v", sessionID, err)
	}
}

// History returns the transcript and current balance.
func (s *ChatbotService) History(sessionID string) ([]domain.HistoryEntry, money.Money, error) {
	var history []domain.HistoryEntry
	var balance money.Money
	err := s.sessions.WithSession(sessionID, func(sess *Session) error {
		history = append(history, sess.History...)
		balance = sess.Balance
		return nil
	})
	return history, balance, err
}

// planningBills prepares engine input: overdue bills carry their face amount
// plus the interest accrued to date as a synthetic charge. The engine itself
// never recomputes historical interest.
func planningBills(bills []domain.Bill, asOf time.Time) []domain.Bill {
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		rate := b.DailyInterestRate
		if rate.IsZero() {
			rate = DefaultDailyInterestRate
		}
		adjusted := b
		adjusted.DailyInterestRate = rate
		if days := b.DaysLate(asOf); days > 0 {
			accrued := b.Amount.Mul(rate.Mul(decimal.NewFromInt(int64(days))))
			adjusted.Amount = b.Amount.Add(accrued)
		}
		out = append(out, adjusted)
	}
	return out
}

func buildOverview(date time.Time, due, overdue []domain.Bill) domain.DayOverview {
	dueTotal := money.Zero()
	for _, b := range due {
		dueTotal = dueTotal.Add(b.Amount)
	}
	overdueTotal := money.Zero()
	for _, b := range overdue {
		overdueTotal = overdueTotal.Add(b.Amount)
	}
	return domain.DayOverview{
		Date:          date.Format("2006-01-02"),
		DueCount:      len(due),
		DueTotal:      dueTotal,
		OverdueCount:  len(overdue),
		OverdueTotal:  overdueTotal,
		CombinedTotal: dueTotal.Add(overdueTotal),
	}
}

func buildDashboard(start, end time.Time, inRange, overdue []domain.Bill) domain.RangeDashboard {
	perDay := make(map[string][]domain.Bill)
	for _, b := range inRange {
		day := b.DueDate.Format("2006-01-02")
		perDay[day] = append(perDay[day], b)
	}

	totals := make([]domain.DayTotal, 0, len(perDay))
	for day, bills := range perDay {
		total := money.Zero()
		for _, b := range bills {
			total = total.Add(b.Amount)
		}
		totals = append(totals, domain.DayTotal{Date: day, Count: len(bills), Total: total})
	}

	topValue := make([]domain.DayTotal, len(totals))
	copy(topValue, totals)
	sort.Slice(topValue, func(i, j int) bool {
		if topValue[i].Total.Cmp(topValue[j].Total) != 0 {
			return topValue[i].Total.Cmp(topValue[j].Total) > 0
		}
		return topValue[i].Date < topValue[j].Date
	})
	if len(topValue) > 3 {
		topValue = topValue[:3]
	}

	topCount := make([]domain.DayTotal, len(totals))
	copy(topCount, totals)
	sort.Slice(topCount, func(i, j int) bool {
		if topCount[i].Count != topCount[j].Count {
			return topCount[i].Count > topCount[j].Count
		}
		return topCount[i].Date < topCount[j].Date
	})
	if len(topCount) > 3 {
		topCount = topCount[:3]
	}

	overdueTotal := money.Zero()
	for _, b := range overdue {
		overdueTotal = overdueTotal.Add(b.Amount)
	}

	// Urgent view: the first days of the window that actually have bills.
	days := make([]string, 0, len(perDay))
	for day := range perDay {
		days = append(days, day)
	}
	sort.Strings(days)
	if len(days) > 3 {
		days = days[:3]
	}
	urgent := make([]domain.UrgentDay, 0, len(days))
	for _, day := range days {
		urgent = append(urgent, domain.UrgentDay{Date: day, Bills: perDay[day]})
	}

	return domain.RangeDashboard{
		Start:        start.Format("2006-01-02"),
		End:          end.Format("2006-01-02"),
		TopValueDays: topValue,
		TopCountDays: topCount,
		OverdueCount: len(overdue),
		OverdueTotal: overdueTotal,
		UrgentView:   urgent,
	}
}

func excludeIDs(bills, exclude []domain.Bill) []domain.Bill {
	ids := make(map[string]struct{}, len(exclude))
	for _, b := range exclude {
		ids[b.ID] = struct{}{}
	}
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if _, dup := ids[b.ID]; dup {
			continue
		}
		out = append(out, b)
	}
	return out
}
