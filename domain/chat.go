package domain

import (
	"time"

	"payment-agent/money"
)

// ChatState is the conversation state machine's current position. The machine
// is long-lived per session; there is no terminal state.
type ChatState string

const (
	StateStart               ChatState = "start"
	StateMainMenu            ChatState = "main_menu"
	StateAwaitingDate        ChatState = "awaiting_date"
	StateAwaitingRange       ChatState = "awaiting_range"
	StateDayOverview         ChatState = "day_overview"
	StateRangeOverview       ChatState = "range_overview"
	StateBillDetail          ChatState = "bill_detail"
	StatePaymentConfirmation ChatState = "payment_confirmation"
	StateOverdueList         ChatState = "overdue_list"
)

// HistoryEntry is one message of the conversation transcript.
type HistoryEntry struct {
	Role      string    `json:"role"` // "user" or "bot"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseKind tells the renderer which shape of reply to produce.
type ResponseKind string

const (
	ResponseWelcome             ResponseKind = "welcome"
	ResponseDayOverview         ResponseKind = "day_overview"
	ResponseRangeOverview       ResponseKind = "range_overview"
	ResponseOverdueList         ResponseKind = "overdue_list"
	ResponseBillDetail          ResponseKind = "bill_detail"
	ResponseBillList            ResponseKind = "bill_list"
	ResponseFinancingComparison ResponseKind = "financing_comparison"
	ResponseConfirmation        ResponseKind = "confirmation"
	ResponseCommitted           ResponseKind = "committed"
	ResponseCancelled           ResponseKind = "cancelled"
	ResponseHighlights          ResponseKind = "highlights"
	ResponsePromptDate          ResponseKind = "prompt_date"
	ResponsePromptRange         ResponseKind = "prompt_range"
	ResponseGuidance            ResponseKind = "guidance"
	ResponseHelp                ResponseKind = "help"
	ResponseNothingDue          ResponseKind = "nothing_due"
	ResponseError               ResponseKind = "error"
)

// ResponseContext is the structured payload a turn produces. An external
// renderer turns it into user-facing prose; the state machine never formats
// final text itself.
type ResponseContext struct {
	Kind       ResponseKind         `json:"kind"`
	Balance    money.Money          `json:"balance"`
	Overview   *DayOverview         `json:"overview,omitempty"`
	Bills      []Bill               `json:"bills,omitempty"`
	Overdue    []Bill               `json:"overdue,omitempty"`
	Bill       *Bill                `json:"bill,omitempty"`
	Dashboard  *RangeDashboard      `json:"dashboard,omitempty"`
	Strategy   *Strategy            `json:"strategy,omitempty"`
	Comparison *FinancingComparison `json:"comparison,omitempty"`
	Guidance   string               `json:"guidance,omitempty"`
}
