package service

import "github.com/shopspring/decimal"

const (
	MaxBillsPerPlan = 200 // máximo de boletos por chamada ao planejador
	MaxHistorySize  = 500 // entradas de histórico retidas por sessão
)

// Taxas flat dos produtos de financiamento, sobre o valor financiado.
var (
	WorkingCapitalRate     = decimal.NewFromFloat(0.08) // capital de giro
	ReceivablesAdvanceRate = decimal.NewFromFloat(0.15) // adiantamento de recebíveis

	// DefaultDailyInterestRate cobre boletos cuja taxa diária não veio
	// informada pela fonte.
	DefaultDailyInterestRate = decimal.NewFromFloat(0.01)
)
