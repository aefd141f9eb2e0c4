/*
Package commission implements collaborator sales, client installments and
the commission payouts they trigger.

PURPOSE:
  Collaborators (commission-earning sales agents) register sales. Each sale
  is split into installments the client owes. When the client pays an
  installment, the collaborator's payout date is scheduled; once a month the
  collaborator's paid sales are totalled and a tiered commission applies.

KEY CONCEPTS:
  Collaborator: sales agent, owns sales
  Sale:         one client deal, owns installments
  Installment:  one client payment tranche + the payout it triggers
  Multiplier:   1.2 / 1.4 / 1.6 tier from the monthly paid total (rules.go)
  ReceiptDate:  payout run (20th or next 5th) for a client payment (rules.go)

LIFECYCLE OF AN INSTALLMENT:
  created (unpaid)
    -> RecordClientPayment:       client_paid, client_paid_date, receipt date
    -> RecordCollaboratorPayment: collaborator_paid, collaborator_paid_date

SEE ALSO:
  - rules.go: Pure commission and scheduling rules
  - plan.go: How a sale is split into installments
  - service.go: Transactional operations
  - store.go: Persistence interfaces
*/
package commission

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CollaboratorID int64
type SaleID int64
type InstallmentID int64

// =============================================================================
// ENTITIES
// =============================================================================

// Collaborator is a commission-earning sales agent.
type Collaborator struct {
	ID        CollaboratorID
	Name      string
	Phone     string // optional
	Email     string // optional
	CreatedAt time.Time
}

// Sale is a deal closed by a collaborator with a client.
type Sale struct {
	ID               SaleID
	CollaboratorID   CollaboratorID
	ClientName       string
	Amount           decimal.Decimal
	FirstPaymentDate generic.Date // when the client's first installment is due
	CreatedAt        time.Time

	Installments []Installment
}

// Installment is one client payment tranche and the collaborator payout it triggers.
type Installment struct {
	ID            InstallmentID
	SaleID        SaleID
	Index         int // 1-based position within the sale
	ClientDueDate generic.Date

	ClientPaid     bool
	ClientPaidDate *generic.Date

	// Set together with ClientPaidDate, derived by ReceiptDate.
	CollaboratorReceiptDate *generic.Date

	CollaboratorPaid     bool
	CollaboratorPaidDate *generic.Date

	// What the collaborator is owed for this installment.
	Amount decimal.Decimal
}

// MarkClientPaid records the client payment and schedules the payout.
// Calling it again overwrites the previous payment.
func (i *Installment) MarkClientPaid(paid generic.Date) {
	receipt := ReceiptDate(paid)
	i.ClientPaid = true
	i.ClientPaidDate = &paid
	i.CollaboratorReceiptDate = &receipt
}

// MarkCollaboratorPaid records the payout to the collaborator.
func (i *Installment) MarkCollaboratorPaid(paid generic.Date) {
	i.CollaboratorPaid = true
	i.CollaboratorPaidDate = &paid
}

// =============================================================================
// READ MODELS
// =============================================================================

// MonthlySummary is the commission owed to a collaborator for one calendar month.
type MonthlySummary struct {
	Collaborator    Collaborator
	Month           time.Month
	Year            int
	TotalSold       decimal.Decimal // sum of installments the client paid in the month
	Multiplier      decimal.Decimal
	CommissionValue decimal.Decimal

	// Every sale of the collaborator, regardless of month.
	Sales []Sale
}

// Payout is an installment waiting for the collaborator to be paid.
type Payout struct {
	Installment      Installment
	ClientName       string
	CollaboratorID   CollaboratorID
	CollaboratorName string
}

// SumInstallments adds up the installment amounts.
func SumInstallments(insts []Installment) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(insts))
	for i, inst := range insts {
		amounts[i] = inst.Amount
	}
	return generic.SumMoney(amounts...)
}

// SumPayouts adds up the amounts owed by the payouts.
func SumPayouts(payouts []Payout) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(payouts))
	for i, p := range payouts {
		amounts[i] = p.Installment.Amount
	}
	return generic.SumMoney(amounts...)
}
