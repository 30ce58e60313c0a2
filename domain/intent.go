package domain

import "time"

// Intent is the closed set of user intentions the classifier can produce.
type Intent string

const (
	IntentGreeting       Intent = "greeting"
	IntentViewToday      Intent = "view_today"
	IntentViewDate       Intent = "view_date"
	IntentViewRange      Intent = "view_range"
	IntentViewOverdue    Intent = "view_overdue"
	IntentViewFinancing  Intent = "view_financing_options"
	IntentPay            Intent = "pay"
	IntentViewDetails    Intent = "view_details"
	IntentViewHighlights Intent = "view_highlighted_values"
	IntentGoBack         Intent = "go_back"
	IntentHelp           Intent = "help"
	IntentUnknown        Intent = "unknown"
)

// IntentParams carries the free-form parameters extracted alongside an
// intent. Zero values mean "absent".
type IntentParams struct {
	Date    time.Time
	EndDate time.Time
	BillID  string
}

func (p IntentParams) HasDate() bool {
	return !p.Date.IsZero()
}

func (p IntentParams) HasRange() bool {
	return !p.Date.IsZero() && !p.EndDate.IsZero()
}

// Classification is the classifier's verdict. The state machine treats every
// returned intent as fully confident; Confidence is informational only.
type Classification struct {
	Intent     Intent
	Confidence float64
	Params     IntentParams
}
