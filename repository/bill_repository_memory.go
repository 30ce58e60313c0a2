package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payment-agent/domain"
	"payment-agent/money"
)

// BillRepositoryMemory is an in-memory implementation of BillRepository.
type BillRepositoryMemory struct {
	bills []domain.Bill
}

// NewBillRepositoryMemory creates a repository over a fixed bill set.
func NewBillRepositoryMemory(bills []domain.Bill) *BillRepositoryMemory {
	return &BillRepositoryMemory{bills: bills}
}

type billRecord struct {
	ID                string  `json:"id"`
	CompanyID         string  `json:"cnpj"`
	Creditor          string  `json:"beneficiario"`
	Amount            float64 `json:"valor"`
	DailyInterestRate float64 `json:"juros_diario"`
	DueDate           string  `json:"data_vencimento"`
	Status            string  `json:"status"`
}

type billFile struct {
	Data []billRecord `json:"data"`
}

// NewBillRepositoryFromJSON loads the DDA-style JSON document
// {"data": [{"id", "cnpj", "beneficiario", "valor", "juros_diario",
// "data_vencimento", "status"}, ...]}.
func NewBillRepositoryFromJSON(path string) (*BillRepositoryMemory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bill file: %w", err)
	}

	var file billFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding bill file: %w", err)
	}

	bills := make([]domain.Bill, 0, len(file.Data))
	for _, rec := range file.Data {
		due, err := time.Parse("2006-01-02", rec.DueDate)
		if err != nil {
			return nil, fmt.Errorf("bill %s: invalid due date %q: %w", rec.ID, rec.DueDate, err)
		}
		bills = append(bills, domain.Bill{
			ID:                rec.ID,
			CompanyID:         rec.CompanyID,
			Creditor:          rec.Creditor,
			Amount:            money.FromFloat(rec.Amount),
			DailyInterestRate: decimal.NewFromFloat(rec.DailyInterestRate),
			DueDate:           due,
			Status:            rec.Status,
		})
	}

	return NewBillRepositoryMemory(bills), nil
}

// FetchDueOnDate returns the company's bills due exactly on the given date.
func (r *BillRepositoryMemory) FetchDueOnDate(companyID string, date time.Time) ([]domain.Bill, error) {
	return r.filter(companyID, func(b domain.Bill) bool {
		return sameDay(b.DueDate, date)
	}), nil
}

// FetchOverdue returns bills due strictly before asOf.
func (r *BillRepositoryMemory) FetchOverdue(companyID string, asOf time.Time) ([]domain.Bill, error) {
	return r.filter(companyID, func(b domain.Bill) bool {
		return b.IsOverdue(asOf)
	}), nil
}

// FetchRange returns bills due within [start, end], inclusive on both ends.
func (r *BillRepositoryMemory) FetchRange(companyID string, start, end time.Time) ([]domain.Bill, error) {
	return r.filter(companyID, func(b domain.Bill) bool {
		return !b.DueDate.Before(dayStart(start)) && !b.DueDate.After(dayStart(end))
	}), nil
}

// FetchByID returns a single bill, or nil when not found.
func (r *BillRepositoryMemory) FetchByID(companyID, billID string) (*domain.Bill, error) {
	for _, b := range r.bills {
		if b.CompanyID == companyID && b.ID == billID {
			bill := b
			return &bill, nil
		}
	}
	return nil, nil
}

func (r *BillRepositoryMemory) filter(companyID string, keep func(domain.Bill) bool) []domain.Bill {
	var out []domain.Bill
	for _, b := range r.bills {
		if b.CompanyID == companyID && keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
