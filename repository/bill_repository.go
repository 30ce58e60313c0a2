package repository

import (
	"time"

	"payment-agent/domain"
)

// BillRepository is the bill source of record. Amounts and dates come back
// normalized; callers decide what "overdue" means by passing asOf.
type BillRepository interface {
	FetchDueOnDate(companyID string, date time.Time) ([]domain.Bill, error)
	FetchOverdue(companyID string, asOf time.Time) ([]domain.Bill, error)
	FetchRange(companyID string, start, end time.Time) ([]domain.Bill, error)
	FetchByID(companyID, billID string) (*domain.Bill, error)
}
