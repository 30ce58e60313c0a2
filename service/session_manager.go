package service

import (
	"sync"

	"github.com/google/uuid"

	"payment-agent/money"
)

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
}

// SessionManager hands out exactly one owner at a time per session id. The
// manager lock guards only the map; each session carries its own lock, so
// unrelated sessions never serialize against each other.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry

	companyID      string
	userName       string
	openingBalance money.Money
}

func NewSessionManager(companyID, userName string, openingBalance money.Money) *SessionManager {
	return &SessionManager{
		sessions:       make(map[string]*sessionEntry),
		companyID:      companyID,
		userName:       userName,
		openingBalance: openingBalance,
	}
}

// NewSessionID issues a fresh session identifier.
func (m *SessionManager) NewSessionID() string {
	return uuid.NewString()
}

func (m *SessionManager) entry(id string) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		e = &sessionEntry{
			session: NewSession(id, m.companyID, m.userName, m.openingBalance),
		}
		m.sessions[id] = e
	}
	return e
}

// WithSession runs fn as the session's exclusive owner. Turns of one session
// are applied strictly in acquisition order.
func (m *SessionManager) WithSession(id string, fn func(*Session) error) error {
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}
