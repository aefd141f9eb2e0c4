/*
Package sqlite provides a SQLite-backed implementation of commission.TxStore.

PURPOSE:
  Persists collaborators, sales and installments.

KEY TABLES:
  collaborators: Sales agents
  sales:         Deals, FK to collaborators (ON DELETE CASCADE)
  installments:  Client tranches + payout state, FK to sales (ON DELETE CASCADE)

ENCODING:
  Money:      decimal string ("1500.00"), summed in Go, never in SQL
  Dates:      TEXT "YYYY-MM-DD", so string comparison is date comparison.
              Dates after generic.MaxDate are refused on write.
  Timestamps: RFC3339 UTC
  Booleans:   INTEGER 0/1

MIGRATIONS:
  Versioned SQL files in migrations/, embedded in the binary and applied by
  golang-migrate on New().

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so
  ":memory:" databases are shared by every caller. WithTx holds the write
  lock for its whole callback; the Store handed to the callback reads and
  writes through the *sql.Tx only.

WAL MODE:
  File databases are opened with WAL (Write-Ahead Logging). The pragma
  has no effect on ":memory:" databases.

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := commission.NewService(store)

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store implements commission.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and applies pending
// migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already-migrated connection.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection (health checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies every pending migration in migrations/.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite3 migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m.Close() would close db as well; the source is in-memory.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. The transaction is
// committed only if fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(commission.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Reset clears all data and restarts ids (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statements := []string{
		"DELETE FROM installments",
		"DELETE FROM sales",
		"DELETE FROM collaborators",
		"DELETE FROM sqlite_sequence WHERE name IN ('installments', 'sales', 'collaborators')",
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// NON-TRANSACTIONAL ACCESS - each call is its own statement
// =============================================================================

func (s *Store) CreateCollaborator(ctx context.Context, c *commission.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateCollaborator(ctx, c)
}

func (s *Store) GetCollaborator(ctx context.Context, id commission.CollaboratorID) (*commission.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetCollaborator(ctx, id)
}

func (s *Store) ListCollaborators(ctx context.Context) ([]commission.Collaborator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListCollaborators(ctx)
}

func (s *Store) DeleteCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteCollaborator(ctx, id)
}

func (s *Store) CreateSale(ctx context.Context, sale *commission.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateSale(ctx, sale)
}

func (s *Store) ListSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) ([]commission.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListSalesByCollaborator(ctx, id)
}

func (s *Store) DeleteSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteSalesByCollaborator(ctx, id)
}

func (s *Store) CreateInstallment(ctx context.Context, i *commission.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateInstallment(ctx, i)
}

func (s *Store) GetInstallment(ctx context.Context, id commission.InstallmentID) (*commission.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetInstallment(ctx, id)
}

func (s *Store) UpdateInstallment(ctx context.Context, i commission.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateInstallment(ctx, i)
}

func (s *Store) ListClientPaidInstallments(ctx context.Context, id commission.CollaboratorID, period generic.Period) ([]commission.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListClientPaidInstallments(ctx, id, period)
}

func (s *Store) DeleteInstallmentsByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteInstallmentsByCollaborator(ctx, id)
}

func (s *Store) ListPayoutsDue(ctx context.Context, asOf generic.Date) ([]commission.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListPayoutsDue(ctx, asOf)
}

func (s *Store) q() *queries {
	return &queries{db: s.db}
}

// =============================================================================
// QUERIES - shared by *sql.DB and *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db querier
}

func (q *queries) CreateCollaborator(ctx context.Context, c *commission.Collaborator) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		"INSERT INTO collaborators (name, phone, email, created_at) VALUES (?, ?, ?, ?)",
		c.Name, nullString(c.Phone), nullString(c.Email), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert collaborator: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = commission.CollaboratorID(id)
	c.CreatedAt = now.Truncate(time.Second)
	return nil
}

func (q *queries) GetCollaborator(ctx context.Context, id commission.CollaboratorID) (*commission.Collaborator, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, name, phone, email, created_at FROM collaborators WHERE id = ?", int64(id))
	c, err := scanCollaborator(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *queries) ListCollaborators(ctx context.Context) ([]commission.Collaborator, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, phone, email, created_at FROM collaborators ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []commission.Collaborator{}
	for rows.Next() {
		c, err := scanCollaborator(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (q *queries) DeleteCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM collaborators WHERE id = ?", int64(id))
	return err
}

func (q *queries) CreateSale(ctx context.Context, s *commission.Sale) error {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO sales (collaborator_id, client_name, amount, first_payment_date, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		int64(s.CollaboratorID), s.ClientName, s.Amount.String(),
		s.FirstPaymentDate.String(), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = commission.SaleID(id)
	s.CreatedAt = now.Truncate(time.Second)
	return nil
}

func (q *queries) ListSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) ([]commission.Sale, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, collaborator_id, client_name, amount, first_payment_date, created_at
		 FROM sales WHERE collaborator_id = ? ORDER BY id`, int64(id))
	if err != nil {
		return nil, err
	}

	var sales []commission.Sale
	index := make(map[commission.SaleID]int)
	for rows.Next() {
		var (
			s                           commission.Sale
			saleID, collaboratorID      int64
			amount, firstPayment, added string
		)
		if err := rows.Scan(&saleID, &collaboratorID, &s.ClientName, &amount, &firstPayment, &added); err != nil {
			rows.Close()
			return nil, err
		}
		s.ID = commission.SaleID(saleID)
		s.CollaboratorID = commission.CollaboratorID(collaboratorID)
		if s.Amount, err = generic.ParseMoney(amount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sale %d amount: %w", saleID, err)
		}
		if s.FirstPaymentDate, err = generic.ParseDate(firstPayment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sale %d first_payment_date: %w", saleID, err)
		}
		s.CreatedAt, _ = time.Parse(time.RFC3339, added)
		index[s.ID] = len(sales)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(sales) == 0 {
		return sales, nil
	}

	insts, err := q.queryInstallments(ctx,
		installmentColumns+` FROM installments i
		 JOIN sales s ON s.id = i.sale_id
		 WHERE s.collaborator_id = ?
		 ORDER BY i.sale_id, i.installment_index`, int64(id))
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		pos := index[inst.SaleID]
		sales[pos].Installments = append(sales[pos].Installments, inst)
	}
	return sales, nil
}

func (q *queries) DeleteSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM sales WHERE collaborator_id = ?", int64(id))
	return err
}

func (q *queries) CreateInstallment(ctx context.Context, i *commission.Installment) error {
	if err := checkDates(*i); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO installments (
			sale_id, installment_index, client_due_date,
			client_paid, client_paid_date, collaborator_receipt_date,
			collaborator_paid, collaborator_paid_date, amount
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(i.SaleID), i.Index, i.ClientDueDate.String(),
		i.ClientPaid, nullDate(i.ClientPaidDate), nullDate(i.CollaboratorReceiptDate),
		i.CollaboratorPaid, nullDate(i.CollaboratorPaidDate), i.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("insert installment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	i.ID = commission.InstallmentID(id)
	return nil
}

func (q *queries) GetInstallment(ctx context.Context, id commission.InstallmentID) (*commission.Installment, error) {
	insts, err := q.queryInstallments(ctx,
		installmentColumns+" FROM installments i WHERE i.id = ?", int64(id))
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, nil
	}
	return &insts[0], nil
}

func (q *queries) UpdateInstallment(ctx context.Context, i commission.Installment) error {
	if err := checkDates(i); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE installments SET
			client_paid = ?, client_paid_date = ?, collaborator_receipt_date = ?,
			collaborator_paid = ?, collaborator_paid_date = ?
		 WHERE id = ?`,
		i.ClientPaid, nullDate(i.ClientPaidDate), nullDate(i.CollaboratorReceiptDate),
		i.CollaboratorPaid, nullDate(i.CollaboratorPaidDate), int64(i.ID),
	)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return generic.NewNotFoundError("installment", int64(i.ID))
	}
	return nil
}

func (q *queries) ListClientPaidInstallments(ctx context.Context, id commission.CollaboratorID, period generic.Period) ([]commission.Installment, error) {
	return q.queryInstallments(ctx,
		installmentColumns+` FROM installments i
		 JOIN sales s ON s.id = i.sale_id
		 WHERE s.collaborator_id = ?
		   AND i.client_paid = 1
		   AND i.client_paid_date BETWEEN ? AND ?
		 ORDER BY i.id`,
		int64(id), period.Start.String(), period.End.String())
}

func (q *queries) DeleteInstallmentsByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM installments WHERE sale_id IN (SELECT id FROM sales WHERE collaborator_id = ?)",
		int64(id))
	return err
}

func (q *queries) ListPayoutsDue(ctx context.Context, asOf generic.Date) ([]commission.Payout, error) {
	rows, err := q.db.QueryContext(ctx,
		installmentColumns+`, s.client_name, c.id, c.name
		 FROM installments i
		 JOIN sales s ON s.id = i.sale_id
		 JOIN collaborators c ON c.id = s.collaborator_id
		 WHERE i.client_paid = 1
		   AND i.collaborator_paid = 0
		   AND i.collaborator_receipt_date <= ?
		 ORDER BY i.collaborator_receipt_date, i.id`,
		asOf.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payouts := []commission.Payout{}
	for rows.Next() {
		var (
			p              commission.Payout
			collaboratorID int64
		)
		inst, err := scanInstallment(rows, &p.ClientName, &collaboratorID, &p.CollaboratorName)
		if err != nil {
			return nil, err
		}
		p.Installment = inst
		p.CollaboratorID = commission.CollaboratorID(collaboratorID)
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

const installmentColumns = `SELECT i.id, i.sale_id, i.installment_index, i.client_due_date,
	i.client_paid, i.client_paid_date, i.collaborator_receipt_date,
	i.collaborator_paid, i.collaborator_paid_date, i.amount`

type scanner interface {
	Scan(dest ...any) error
}

func (q *queries) queryInstallments(ctx context.Context, query string, args ...any) ([]commission.Installment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []commission.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, rows.Err()
}

// scanInstallment reads installmentColumns followed by any extra columns.
func scanInstallment(row scanner, extra ...any) (commission.Installment, error) {
	var (
		inst                         commission.Installment
		id, saleID                   int64
		dueDate, amount              string
		clientPaid, collaboratorPaid bool
		clientPaidDate, receiptDate  sql.NullString
		collaboratorPaidDate         sql.NullString
	)
	dest := append([]any{
		&id, &saleID, &inst.Index, &dueDate,
		&clientPaid, &clientPaidDate, &receiptDate,
		&collaboratorPaid, &collaboratorPaidDate, &amount,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return inst, err
	}

	var err error
	inst.ID = commission.InstallmentID(id)
	inst.SaleID = commission.SaleID(saleID)
	inst.ClientPaid = clientPaid
	inst.CollaboratorPaid = collaboratorPaid
	if inst.ClientDueDate, err = generic.ParseDate(dueDate); err != nil {
		return inst, fmt.Errorf("installment %d client_due_date: %w", id, err)
	}
	if inst.Amount, err = generic.ParseMoney(amount); err != nil {
		return inst, fmt.Errorf("installment %d amount: %w", id, err)
	}
	if inst.ClientPaidDate, err = parseNullDate(clientPaidDate); err != nil {
		return inst, fmt.Errorf("installment %d client_paid_date: %w", id, err)
	}
	if inst.CollaboratorReceiptDate, err = parseNullDate(receiptDate); err != nil {
		return inst, fmt.Errorf("installment %d collaborator_receipt_date: %w", id, err)
	}
	if inst.CollaboratorPaidDate, err = parseNullDate(collaboratorPaidDate); err != nil {
		return inst, fmt.Errorf("installment %d collaborator_paid_date: %w", id, err)
	}
	return inst, nil
}

func scanCollaborator(row scanner) (commission.Collaborator, error) {
	var (
		c            commission.Collaborator
		id           int64
		phone, email sql.NullString
		createdAt    string
	)
	if err := row.Scan(&id, &c.Name, &phone, &email, &createdAt); err != nil {
		return c, err
	}
	c.ID = commission.CollaboratorID(id)
	c.Phone = phone.String
	c.Email = email.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return c, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// checkDates refuses dates that would not parse back from their TEXT column.
func checkDates(i commission.Installment) error {
	for _, d := range []*generic.Date{&i.ClientDueDate, i.ClientPaidDate, i.CollaboratorReceiptDate, i.CollaboratorPaidDate} {
		if d != nil && d.After(generic.MaxDate) {
			return fmt.Errorf("installment %d: date %s is after %s", i.ID, d, generic.MaxDate)
		}
	}
	return nil
}

func nullDate(d *generic.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (*generic.Date, error) {
	if !s.Valid || strings.TrimSpace(s.String) == "" {
		return nil, nil
	}
	d, err := generic.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

var _ commission.TxStore = (*Store)(nil)
