/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the commission domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

ENCODING:
  - Money: strings with exactly two fractional digits ("1200.00")
  - Dates: "YYYY-MM-DD"; unset dates are null
  - Timestamps: RFC3339

VALIDATION:
  Validation is done by commission.Service, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - commission/types.go: Domain types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateCollaboratorRequest is the body of POST /api/collaborators.
type CreateCollaboratorRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// CreateSaleRequest is the body of POST /api/sales. Amount accepts a JSON
// number or string.
type CreateSaleRequest struct {
	CollaboratorID   int64           `json:"collaborator_id"`
	ClientName       string          `json:"client_name"`
	Amount           decimal.Decimal `json:"amount"`
	FirstPaymentDate string          `json:"first_payment_date"`
}

// PaymentRequest is the optional body of the payment endpoints.
// Empty PaidDate means today.
type PaymentRequest struct {
	PaidDate string `json:"paid_date"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// CollaboratorDTO represents a collaborator in API responses.
type CollaboratorDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// InstallmentDTO represents one installment and its payout state.
type InstallmentDTO struct {
	ID                      int64   `json:"id"`
	SaleID                  int64   `json:"sale_id"`
	Index                   int     `json:"index"`
	ClientDueDate           string  `json:"client_due_date"`
	ClientPaid              bool    `json:"client_paid"`
	ClientPaidDate          *string `json:"client_paid_date"`
	CollaboratorReceiptDate *string `json:"collaborator_receipt_date"`
	CollaboratorPaid        bool    `json:"collaborator_paid"`
	CollaboratorPaidDate    *string `json:"collaborator_paid_date"`
	Amount                  string  `json:"amount"`
}

// SaleDTO represents a sale with its installments.
type SaleDTO struct {
	ID               int64            `json:"id"`
	CollaboratorID   int64            `json:"collaborator_id"`
	ClientName       string           `json:"client_name"`
	Amount           string           `json:"amount"`
	FirstPaymentDate string           `json:"first_payment_date"`
	CreatedAt        time.Time        `json:"created_at"`
	Installments     []InstallmentDTO `json:"installments"`
}

// CollaboratorDetailDTO is GET /api/collaborators/{id}: the collaborator,
// every sale, and the commission summary for the requested month.
type CollaboratorDetailDTO struct {
	Collaborator    CollaboratorDTO `json:"collaborator"`
	Month           int             `json:"month"`
	Year            int             `json:"year"`
	TotalSold       string          `json:"total_sold"`
	Multiplier      string          `json:"multiplier"`
	CommissionValue string          `json:"commission_value"`
	Sales           []SaleDTO       `json:"sales"`
}

// PayoutDTO is one pending collaborator payout.
type PayoutDTO struct {
	Installment      InstallmentDTO `json:"installment"`
	ClientName       string         `json:"client_name"`
	CollaboratorID   int64          `json:"collaborator_id"`
	CollaboratorName string         `json:"collaborator_name"`
}

// PayoutsDueResponse wraps the payout list with its cut-off and total.
type PayoutsDueResponse struct {
	AsOf    string      `json:"as_of"`
	Total   string      `json:"total"`
	Payouts []PayoutDTO `json:"payouts"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCollaboratorDTO(c commission.Collaborator) CollaboratorDTO {
	return CollaboratorDTO{
		ID:        int64(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

func toInstallmentDTO(i commission.Installment) InstallmentDTO {
	return InstallmentDTO{
		ID:                      int64(i.ID),
		SaleID:                  int64(i.SaleID),
		Index:                   i.Index,
		ClientDueDate:           i.ClientDueDate.String(),
		ClientPaid:              i.ClientPaid,
		ClientPaidDate:          datePtr(i.ClientPaidDate),
		CollaboratorReceiptDate: datePtr(i.CollaboratorReceiptDate),
		CollaboratorPaid:        i.CollaboratorPaid,
		CollaboratorPaidDate:    datePtr(i.CollaboratorPaidDate),
		Amount:                  generic.FormatMoney(i.Amount),
	}
}

func toSaleDTO(s commission.Sale) SaleDTO {
	installments := make([]InstallmentDTO, len(s.Installments))
	for i, inst := range s.Installments {
		installments[i] = toInstallmentDTO(inst)
	}
	return SaleDTO{
		ID:               int64(s.ID),
		CollaboratorID:   int64(s.CollaboratorID),
		ClientName:       s.ClientName,
		Amount:           generic.FormatMoney(s.Amount),
		FirstPaymentDate: s.FirstPaymentDate.String(),
		CreatedAt:        s.CreatedAt,
		Installments:     installments,
	}
}

func toCollaboratorDetailDTO(s commission.MonthlySummary) CollaboratorDetailDTO {
	sales := make([]SaleDTO, len(s.Sales))
	for i, sale := range s.Sales {
		sales[i] = toSaleDTO(sale)
	}
	return CollaboratorDetailDTO{
		Collaborator:    toCollaboratorDTO(s.Collaborator),
		Month:           int(s.Month),
		Year:            s.Year,
		TotalSold:       generic.FormatMoney(s.TotalSold),
		Multiplier:      s.Multiplier.StringFixed(1),
		CommissionValue: generic.FormatMoney(s.CommissionValue),
		Sales:           sales,
	}
}

func toPayoutDTO(p commission.Payout) PayoutDTO {
	return PayoutDTO{
		Installment:      toInstallmentDTO(p.Installment),
		ClientName:       p.ClientName,
		CollaboratorID:   int64(p.CollaboratorID),
		CollaboratorName: p.CollaboratorName,
	}
}

func datePtr(d *generic.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
