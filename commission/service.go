/*
service.go - Application service for collaborator commissions

PURPOSE:
  The single entry point callers (HTTP handlers, scenarios) use to change or
  read commission data. Each exported method validates its input, then runs
  as exactly one store transaction.

OPERATIONS:
  RegisterCollaborator      Create a collaborator
  RegisterSale              Create a sale and its installments atomically
  RecordClientPayment       Mark installment paid by client, schedule payout
  RecordCollaboratorPayment Mark installment paid out to collaborator
  GetMonthlySummary         Total paid sales + commission for a month
  ListPayoutsDue            Installments waiting for a payout run
  DeleteCollaborator        Remove collaborator, sales, installments

ERRORS:
  *generic.ValidationError: bad input (including unknown collaborator on RegisterSale)
  *generic.NotFoundError:   unknown collaborator / installment id
  anything else:            storage failure, wrapped with context

TRUST MODEL:
  RecordClientPayment is not idempotent. A second call overwrites the first
  payment and recomputes the receipt date. RecordCollaboratorPayment does not
  require the client to have paid.

SEE ALSO:
  - rules.go: Multiplier, CommissionValue, ReceiptDate
  - store.go: TxStore contract
*/
package commission

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/logging"
)

// =============================================================================
// INPUTS
// =============================================================================

// RegisterCollaboratorInput is the data needed to register a collaborator.
type RegisterCollaboratorInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// RegisterSaleInput is the data needed to register a sale.
type RegisterSaleInput struct {
	CollaboratorID   CollaboratorID  `json:"collaborator_id" validate:"required"`
	ClientName       string          `json:"client_name" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"-"`
	FirstPaymentDate string          `json:"first_payment_date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates commission operations over a TxStore.
type Service struct {
	store    TxStore
	plan     InstallmentPlan
	clock    generic.Clock
	logger   *zap.Logger
	observer Observer
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithPlan sets how sales are split into installments. Default: SinglePayment.
func WithPlan(p InstallmentPlan) Option {
	return func(s *Service) { s.plan = p }
}

// WithClock sets the source of "today" for defaulted dates.
func WithClock(c generic.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver registers a post-commit observer (metrics).
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// NewService creates a service backed by store.
func NewService(store TxStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		plan:     SinglePayment{},
		clock:    time.Now,
		logger:   zap.NewNop(),
		observer: nopObserver{},
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the service's current date.
func (s *Service) Today() generic.Date {
	return generic.Today(s.clock)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// RegisterCollaborator creates a collaborator with no sales.
func (s *Service) RegisterCollaborator(ctx context.Context, in RegisterCollaboratorInput) (*Collaborator, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	c := &Collaborator{Name: in.Name, Phone: in.Phone, Email: in.Email}
	err := s.store.WithTx(ctx, func(tx Store) error {
		return tx.CreateCollaborator(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("register collaborator: %w", err)
	}

	s.log(ctx).Info("collaborator registered",
		zap.Int64("collaborator_id", int64(c.ID)),
		zap.String("name", c.Name),
	)
	return c, nil
}

// GetCollaborator returns one collaborator.
func (s *Service) GetCollaborator(ctx context.Context, id CollaboratorID) (*Collaborator, error) {
	var c *Collaborator
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		c, err = s.requireCollaborator(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, s.wrap("get collaborator", err)
	}
	return c, nil
}

// ListCollaborators returns every collaborator ordered by name.
func (s *Service) ListCollaborators(ctx context.Context) ([]Collaborator, error) {
	var list []Collaborator
	err := s.store.WithTx(ctx, func(tx Store) error {
		var err error
		list, err = tx.ListCollaborators(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	return list, nil
}

// DeleteCollaborator removes the collaborator with all its sales and
// installments. Children are deleted explicitly before parents, all in one
// transaction, so it does not depend on the database cascading.
func (s *Service) DeleteCollaborator(ctx context.Context, id CollaboratorID) error {
	err := s.store.WithTx(ctx, func(tx Store) error {
		if _, err := s.requireCollaborator(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.DeleteInstallmentsByCollaborator(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteSalesByCollaborator(ctx, id); err != nil {
			return err
		}
		return tx.DeleteCollaborator(ctx, id)
	})
	if err != nil {
		return s.wrap("delete collaborator", err)
	}

	s.log(ctx).Info("collaborator deleted", zap.Int64("collaborator_id", int64(id)))
	return nil
}

// =============================================================================
// SALES
// =============================================================================

// RegisterSale creates a sale and the installments its plan produces. Either
// all rows are written or none are.
func (s *Service) RegisterSale(ctx context.Context, in RegisterSaleInput) (*Sale, error) {
	in.ClientName = strings.TrimSpace(in.ClientName)
	in.FirstPaymentDate = strings.TrimSpace(in.FirstPaymentDate)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, generic.NewValidationError("amount", "must be positive")
	}
	if !in.Amount.Equal(generic.RoundMoney(in.Amount)) {
		return nil, generic.NewValidationError("amount",
			fmt.Sprintf("must have at most %d decimal places", generic.MoneyPlaces))
	}
	firstPayment, err := generic.ParseDate(in.FirstPaymentDate)
	if err != nil {
		return nil, generic.NewValidationError("first_payment_date", err.Error())
	}
	if err := checkPayable("first_payment_date", firstPayment); err != nil {
		return nil, err
	}

	sale := &Sale{
		CollaboratorID:   in.CollaboratorID,
		ClientName:       in.ClientName,
		Amount:           in.Amount,
		FirstPaymentDate: firstPayment,
	}

	err = s.store.WithTx(ctx, func(tx Store) error {
		c, err := tx.GetCollaborator(ctx, in.CollaboratorID)
		if err != nil {
			return err
		}
		if c == nil {
			return generic.NewValidationError("collaborator_id",
				fmt.Sprintf("collaborator %d does not exist", in.CollaboratorID))
		}

		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}

		installments := s.plan.Split(*sale)
		if err := checkPlan(*sale, installments); err != nil {
			return err
		}
		for i := range installments {
			installments[i].SaleID = sale.ID
			if err := tx.CreateInstallment(ctx, &installments[i]); err != nil {
				return err
			}
		}
		sale.Installments = installments
		return nil
	})
	if err != nil {
		return nil, s.wrap("register sale", err)
	}

	s.observer.SaleRegistered(sale.Amount)
	s.log(ctx).Info("sale registered",
		zap.Int64("sale_id", int64(sale.ID)),
		zap.Int64("collaborator_id", int64(sale.CollaboratorID)),
		zap.String("amount", sale.Amount.String()),
		zap.Int("installments", len(sale.Installments)),
	)
	return sale, nil
}

// checkPlan guards the sale-amount == sum-of-installments invariant.
func checkPlan(sale Sale, installments []Installment) error {
	if len(installments) == 0 {
		return fmt.Errorf("installment plan produced no installments for sale")
	}
	for _, i := range installments {
		if err := checkPayable("first_payment_date", i.ClientDueDate); err != nil {
			return err
		}
	}
	if total := SumInstallments(installments); !total.Equal(sale.Amount) {
		return fmt.Errorf("installment plan total %s does not match sale amount %s", total, sale.Amount)
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordClientPayment marks the installment as paid by the client on paidDate
// (YYYY-MM-DD, empty = today) and schedules the collaborator payout.
func (s *Service) RecordClientPayment(ctx context.Context, id InstallmentID, paidDate string) (*Installment, error) {
	paid, err := s.dateOrToday("paid_date", paidDate)
	if err != nil {
		return nil, err
	}
	if err := checkPayable("paid_date", paid); err != nil {
		return nil, err
	}

	var inst *Installment
	err = s.store.WithTx(ctx, func(tx Store) error {
		found, err := s.requireInstallment(ctx, tx, id)
		if err != nil {
			return err
		}
		found.MarkClientPaid(paid)
		if err := tx.UpdateInstallment(ctx, *found); err != nil {
			return err
		}
		inst = found
		return nil
	})
	if err != nil {
		return nil, s.wrap("record client payment", err)
	}

	s.observer.ClientPaymentRecorded(*inst)
	s.log(ctx).Info("client payment recorded",
		zap.Int64("installment_id", int64(inst.ID)),
		zap.Stringer("client_paid_date", paid),
		zap.Stringer("collaborator_receipt_date", *inst.CollaboratorReceiptDate),
	)
	return inst, nil
}

// RecordCollaboratorPayment marks the installment's commission as paid out
// on paidDate (YYYY-MM-DD, empty = today).
func (s *Service) RecordCollaboratorPayment(ctx context.Context, id InstallmentID, paidDate string) (*Installment, error) {
	paid, err := s.dateOrToday("paid_date", paidDate)
	if err != nil {
		return nil, err
	}

	var inst *Installment
	err = s.store.WithTx(ctx, func(tx Store) error {
		found, err := s.requireInstallment(ctx, tx, id)
		if err != nil {
			return err
		}
		found.MarkCollaboratorPaid(paid)
		if err := tx.UpdateInstallment(ctx, *found); err != nil {
			return err
		}
		inst = found
		return nil
	})
	if err != nil {
		return nil, s.wrap("record collaborator payment", err)
	}

	logger := s.log(ctx)
	if !inst.ClientPaid {
		// Allowed on purpose (manual override), but worth noticing.
		logger.Warn("collaborator paid before client payment was recorded",
			zap.Int64("installment_id", int64(inst.ID)))
	}
	s.observer.CollaboratorPaymentRecorded(*inst)
	logger.Info("collaborator payment recorded",
		zap.Int64("installment_id", int64(inst.ID)),
		zap.Stringer("collaborator_paid_date", paid),
	)
	return inst, nil
}

// ListPayoutsDue returns installments the client has paid whose collaborator
// payout is scheduled on or before asOf (YYYY-MM-DD, empty = today) and has
// not been made yet.
func (s *Service) ListPayoutsDue(ctx context.Context, asOf string) ([]Payout, error) {
	day, err := s.dateOrToday("as_of", asOf)
	if err != nil {
		return nil, err
	}

	var payouts []Payout
	err = s.store.WithTx(ctx, func(tx Store) error {
		var err error
		payouts, err = tx.ListPayoutsDue(ctx, day)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list payouts due: %w", err)
	}
	return payouts, nil
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// GetMonthlySummary totals the installments the collaborator's clients paid in
// the given month and applies the commission tier. month and year default
// to the current month and year when zero.
func (s *Service) GetMonthlySummary(ctx context.Context, id CollaboratorID, month, year int) (*MonthlySummary, error) {
	today := s.Today()
	if month == 0 {
		month = int(today.Month())
	}
	if year == 0 {
		year = today.Year()
	}
	if month < 1 || month > 12 {
		return nil, generic.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1 {
		return nil, generic.NewValidationError("year", "must be positive")
	}
	period := generic.MonthPeriod(year, time.Month(month))

	summary := &MonthlySummary{Month: time.Month(month), Year: year}
	err := s.store.WithTx(ctx, func(tx Store) error {
		c, err := s.requireCollaborator(ctx, tx, id)
		if err != nil {
			return err
		}
		summary.Collaborator = *c

		paid, err := tx.ListClientPaidInstallments(ctx, id, period)
		if err != nil {
			return err
		}
		summary.TotalSold = SumInstallments(paid)

		summary.Sales, err = tx.ListSalesByCollaborator(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.wrap("monthly summary", err)
	}

	summary.Multiplier = Multiplier(summary.TotalSold)
	summary.CommissionValue = CommissionValue(summary.TotalSold)
	s.observer.SummaryComputed(*summary)
	return summary, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) requireCollaborator(ctx context.Context, tx Store, id CollaboratorID) (*Collaborator, error) {
	c, err := tx.GetCollaborator(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, generic.NewNotFoundError("collaborator", int64(id))
	}
	return c, nil
}

func (s *Service) requireInstallment(ctx context.Context, tx Store, id InstallmentID) (*Installment, error) {
	i, err := tx.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	if i == nil {
		return nil, generic.NewNotFoundError("installment", int64(id))
	}
	return i, nil
}

// checkPayable rejects a client payment date whose payout date could not be
// stored.
func checkPayable(field string, paid generic.Date) error {
	if ReceiptDate(paid).After(generic.MaxDate) {
		return generic.NewValidationError(field,
			fmt.Sprintf("payout date would fall after %s", generic.MaxDate))
	}
	return nil
}

func (s *Service) dateOrToday(field, value string) (generic.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Today(), nil
	}
	d, err := generic.ParseDate(value)
	if err != nil {
		return generic.Date{}, generic.NewValidationError(field, err.Error())
	}
	return d, nil
}

// wrap adds operation context to infrastructure errors. Client errors are
// returned as-is so their message reads cleanly at the boundary.
func (s *Service) wrap(op string, err error) error {
	if generic.IsClientError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return generic.NewValidationError(fe.Field(), validationMessage(fe))
	}
	return generic.NewValidationError("", err.Error())
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so errors match what API clients sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a valid date in YYYY-MM-DD format"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
