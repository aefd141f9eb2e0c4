/*
store.go - Persistence interface for collaborators, sales and installments

PURPOSE:
  Defines the interface between the commission service and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Record-level reads and writes
  TxStore: Store + WithTx for atomic multi-record operations

TRANSACTION SCOPE:
  Every service operation runs inside exactly one WithTx call and uses only
  the Store handed to the callback. Nothing outside the callback sees
  partial writes: a sale is never visible without its installments.

MISSING RECORDS:
  Get* methods return (nil, nil) when the record does not exist. Turning
  that into a NotFoundError is the service's job.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - commission/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: The only caller
*/
package commission

import (
	"context"

	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// STORE - Interface for record persistence
// =============================================================================

// Store persists collaborators, sales and installments.
type Store interface {
	// CreateCollaborator inserts c and sets c.ID and c.CreatedAt.
	CreateCollaborator(ctx context.Context, c *Collaborator) error

	// GetCollaborator returns nil, nil if id does not exist.
	GetCollaborator(ctx context.Context, id CollaboratorID) (*Collaborator, error)

	// ListCollaborators returns all collaborators ordered by name.
	ListCollaborators(ctx context.Context) ([]Collaborator, error)

	// DeleteCollaborator removes only the collaborator row.
	DeleteCollaborator(ctx context.Context, id CollaboratorID) error

	// CreateSale inserts s (without installments) and sets s.ID and s.CreatedAt.
	CreateSale(ctx context.Context, s *Sale) error

	// ListSalesByCollaborator returns the collaborator's sales ordered by id,
	// each with its installments ordered by index.
	ListSalesByCollaborator(ctx context.Context, id CollaboratorID) ([]Sale, error)

	// DeleteSalesByCollaborator removes the collaborator's sale rows.
	DeleteSalesByCollaborator(ctx context.Context, id CollaboratorID) error

	// CreateInstallment inserts i and sets i.ID.
	CreateInstallment(ctx context.Context, i *Installment) error

	// GetInstallment returns nil, nil if id does not exist.
	GetInstallment(ctx context.Context, id InstallmentID) (*Installment, error)

	// UpdateInstallment overwrites the payment fields of an existing installment.
	UpdateInstallment(ctx context.Context, i Installment) error

	// ListClientPaidInstallments returns the collaborator's installments
	// with client_paid set and client_paid_date inside period.
	ListClientPaidInstallments(ctx context.Context, id CollaboratorID, period generic.Period) ([]Installment, error)

	// DeleteInstallmentsByCollaborator removes installments of all the collaborator's sales.
	DeleteInstallmentsByCollaborator(ctx context.Context, id CollaboratorID) error

	// ListPayoutsDue returns client-paid, collaborator-unpaid installments
	// whose receipt date is on or before asOf, ordered by receipt date.
	ListPayoutsDue(ctx context.Context, asOf generic.Date) ([]Payout, error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
