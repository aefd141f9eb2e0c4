package commission

import "github.com/shopspring/decimal"

// Observer is notified after an operation has committed. Implementations
// must not block; the metrics package provides the production one.
type Observer interface {
	SaleRegistered(amount decimal.Decimal)
	ClientPaymentRecorded(i Installment)
	CollaboratorPaymentRecorded(i Installment)
	SummaryComputed(s MonthlySummary)
}

type nopObserver struct{}

func (nopObserver) SaleRegistered(decimal.Decimal)          {}
func (nopObserver) ClientPaymentRecorded(Installment)       {}
func (nopObserver) CollaboratorPaymentRecorded(Installment) {}
func (nopObserver) SummaryComputed(MonthlySummary)          {}
