package service

import (
	"time"

	"payment-agent/domain"
	"payment-agent/money"
)

// QueryContext is the last-fetched bill snapshot, kept so follow-up questions
// (details, highlighted values, pay) are answered without re-querying.
type QueryContext struct {
	Date      time.Time
	Start     time.Time
	End       time.Time
	Bills     []domain.Bill
	Overdue   []domain.Bill
	Dashboard *domain.RangeDashboard
}

// Session is the per-conversation mutable store. Balance and the paid-id set
// are the only fields with monetary consequence; both change only through
// Commit. A session is owned by exactly one goroutine at a time (see
// SessionManager), so the struct itself carries no lock.
type Session struct {
	ID        string
	CompanyID string
	UserName  string
	Balance   money.Money
	State     domain.ChatState
	Pending   *domain.Strategy
	Query     *QueryContext
	History   []domain.HistoryEntry

	paidIDs map[string]struct{}
}

func NewSession(id, companyID, userName string, openingBalance money.Money) *Session {
	return &Session{
		ID:        id,
		CompanyID: companyID,
		UserName:  userName,
		Balance:   openingBalance,
		State:     domain.StateStart,
		paidIDs:   make(map[string]struct{}),
	}
}

func (s *Session) IsPaid(billID string) bool {
	_, ok := s.paidIDs[billID]
	return ok
}

func (s *Session) PaidCount() int {
	return len(s.paidIDs)
}

// FilterUnpaid drops bills already committed as paid. Every query path must
// run its results through here before displaying or caching them.
func (s *Session) FilterUnpaid(bills []domain.Bill) []domain.Bill {
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if !s.IsPaid(b.ID) {
			out = append(out, b)
		}
	}
	return out
}

// OutstandingBills is the cached query context minus anything paid since the
// snapshot was taken: due bills first, then overdue ones not already listed.
func (s *Session) OutstandingBills() []domain.Bill {
	if s.Query == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []domain.Bill
	for _, b := range s.FilterUnpaid(s.Query.Bills) {
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	for _, b := range s.FilterUnpaid(s.Query.Overdue) {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Commit applies a strategy to the session exactly once. It is atomic (the
// new balance and paid set are computed before anything is assigned) and
// idempotent: ids already paid are skipped, and when nothing new is settled
// the balance is untouched, financing credit included.
func (s *Session) Commit(strategy *domain.Strategy) error {
	if strategy == nil {
		return domain.InvariantErrorf("commit sem estratégia pendente")
	}

	deferredIDs := make(map[string]struct{}, len(strategy.Deferred))
	for _, b := range strategy.Deferred {
		deferredIDs[b.ID] = struct{}{}
	}

	newlyPaid := make([]string, 0, len(strategy.PayNow))
	newlyPaidTotal := money.Zero()
	for _, b := range strategy.PayNow {
		if _, overlap := deferredIDs[b.ID]; overlap {
			return domain.InvariantErrorf("boleto %s aparece em pagar e adiar", b.ID)
		}
		if s.IsPaid(b.ID) {
			continue
		}
		newlyPaid = append(newlyPaid, b.ID)
		newlyPaidTotal = newlyPaidTotal.Add(b.Amount)
	}

	if len(newlyPaid) == 0 {
		return nil
	}

	newBalance := s.Balance
	if strategy.Kind == domain.FullFinancing {
		newBalance = newBalance.Add(strategy.FinancedAmount)
	}
	newBalance = newBalance.Sub(newlyPaidTotal)

	for _, id := range newlyPaid {
		s.paidIDs[id] = struct{}{}
	}
	s.Balance = newBalance
	return nil
}

// AppendHistory records one transcript entry, trimming the oldest entries
// past MaxHistorySize.
func (s *Session) AppendHistory(role, content string, at time.Time) {
	s.History = append(s.History, domain.HistoryEntry{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
	if len(s.History) > MaxHistorySize {
		s.History = s.History[len(s.History)-MaxHistorySize:]
	}
}
