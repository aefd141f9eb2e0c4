// Package store provides in-memory commission.TxStore for tests and demos.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a commission.TxStore kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	data  *state
	clock generic.Clock
}

// state is everything Memory holds. WithTx works on a copy and swaps it in
// on success.
type state struct {
	collaborators map[commission.CollaboratorID]commission.Collaborator
	sales         map[commission.SaleID]commission.Sale // Installments left nil
	installments  map[commission.InstallmentID]commission.Installment

	nextCollaborator commission.CollaboratorID
	nextSale         commission.SaleID
	nextInstallment  commission.InstallmentID
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: newState(), clock: time.Now}
}

func newState() *state {
	return &state{
		collaborators: make(map[commission.CollaboratorID]commission.Collaborator),
		sales:         make(map[commission.SaleID]commission.Sale),
		installments:  make(map[commission.InstallmentID]commission.Installment),
	}
}

func (s *state) clone() *state {
	c := &state{
		collaborators:    make(map[commission.CollaboratorID]commission.Collaborator, len(s.collaborators)),
		sales:            make(map[commission.SaleID]commission.Sale, len(s.sales)),
		installments:     make(map[commission.InstallmentID]commission.Installment, len(s.installments)),
		nextCollaborator: s.nextCollaborator,
		nextSale:         s.nextSale,
		nextInstallment:  s.nextInstallment,
	}
	for k, v := range s.collaborators {
		c.collaborators[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	return c
}

// Reset drops every record and restarts ids at 1.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = newState()
	return nil
}

// WithTx runs fn against a snapshot. The snapshot replaces the store's
// contents only if fn returns nil. Transactions are serialized.
func (m *Memory) WithTx(ctx context.Context, fn func(commission.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(&memTx{data: snapshot, clock: m.clock}); err != nil {
		return err
	}
	m.data = snapshot
	return nil
}

func (m *Memory) read() *memTx {
	return &memTx{data: m.data, clock: m.clock}
}

func (m *Memory) CreateCollaborator(ctx context.Context, c *commission.Collaborator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().CreateCollaborator(ctx, c)
}

func (m *Memory) GetCollaborator(ctx context.Context, id commission.CollaboratorID) (*commission.Collaborator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetCollaborator(ctx, id)
}

func (m *Memory) ListCollaborators(ctx context.Context) ([]commission.Collaborator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListCollaborators(ctx)
}

func (m *Memory) DeleteCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().DeleteCollaborator(ctx, id)
}

func (m *Memory) CreateSale(ctx context.Context, s *commission.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().CreateSale(ctx, s)
}

func (m *Memory) ListSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) ([]commission.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListSalesByCollaborator(ctx, id)
}

func (m *Memory) DeleteSalesByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().DeleteSalesByCollaborator(ctx, id)
}

func (m *Memory) CreateInstallment(ctx context.Context, i *commission.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().CreateInstallment(ctx, i)
}

func (m *Memory) GetInstallment(ctx context.Context, id commission.InstallmentID) (*commission.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetInstallment(ctx, id)
}

func (m *Memory) UpdateInstallment(ctx context.Context, i commission.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().UpdateInstallment(ctx, i)
}

func (m *Memory) ListClientPaidInstallments(ctx context.Context, id commission.CollaboratorID, period generic.Period) ([]commission.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListClientPaidInstallments(ctx, id, period)
}

func (m *Memory) DeleteInstallmentsByCollaborator(ctx context.Context, id commission.CollaboratorID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().DeleteInstallmentsByCollaborator(ctx, id)
}

func (m *Memory) ListPayoutsDue(ctx context.Context, asOf generic.Date) ([]commission.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListPayoutsDue(ctx, asOf)
}

// =============================================================================
// UNLOCKED OPERATIONS - caller holds the lock or owns the snapshot
// =============================================================================

type memTx struct {
	data  *state
	clock generic.Clock
}

func (t *memTx) CreateCollaborator(_ context.Context, c *commission.Collaborator) error {
	t.data.nextCollaborator++
	c.ID = t.data.nextCollaborator
	c.CreatedAt = t.clock().UTC()
	t.data.collaborators[c.ID] = *c
	return nil
}

func (t *memTx) GetCollaborator(_ context.Context, id commission.CollaboratorID) (*commission.Collaborator, error) {
	c, ok := t.data.collaborators[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) ListCollaborators(_ context.Context) ([]commission.Collaborator, error) {
	list := make([]commission.Collaborator, 0, len(t.data.collaborators))
	for _, c := range t.data.collaborators {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (t *memTx) DeleteCollaborator(_ context.Context, id commission.CollaboratorID) error {
	delete(t.data.collaborators, id)
	return nil
}

func (t *memTx) CreateSale(_ context.Context, s *commission.Sale) error {
	t.data.nextSale++
	s.ID = t.data.nextSale
	s.CreatedAt = t.clock().UTC()
	row := *s
	row.Installments = nil
	t.data.sales[s.ID] = row
	return nil
}

func (t *memTx) ListSalesByCollaborator(_ context.Context, id commission.CollaboratorID) ([]commission.Sale, error) {
	var sales []commission.Sale
	for _, s := range t.data.sales {
		if s.CollaboratorID == id {
			sales = append(sales, s)
		}
	}
	sort.Slice(sales, func(i, j int) bool { return sales[i].ID < sales[j].ID })

	for idx := range sales {
		for _, inst := range t.data.installments {
			if inst.SaleID == sales[idx].ID {
				sales[idx].Installments = append(sales[idx].Installments, inst)
			}
		}
		insts := sales[idx].Installments
		sort.Slice(insts, func(i, j int) bool { return insts[i].Index < insts[j].Index })
	}
	return sales, nil
}

func (t *memTx) DeleteSalesByCollaborator(_ context.Context, id commission.CollaboratorID) error {
	for saleID, s := range t.data.sales {
		if s.CollaboratorID == id {
			delete(t.data.sales, saleID)
		}
	}
	return nil
}

func (t *memTx) CreateInstallment(_ context.Context, i *commission.Installment) error {
	t.data.nextInstallment++
	i.ID = t.data.nextInstallment
	t.data.installments[i.ID] = *i
	return nil
}

func (t *memTx) GetInstallment(_ context.Context, id commission.InstallmentID) (*commission.Installment, error) {
	i, ok := t.data.installments[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (t *memTx) UpdateInstallment(_ context.Context, i commission.Installment) error {
	if _, ok := t.data.installments[i.ID]; !ok {
		return generic.NewNotFoundError("installment", int64(i.ID))
	}
	t.data.installments[i.ID] = i
	return nil
}

func (t *memTx) ListClientPaidInstallments(_ context.Context, id commission.CollaboratorID, period generic.Period) ([]commission.Installment, error) {
	var result []commission.Installment
	for _, inst := range t.data.installments {
		if !inst.ClientPaid || inst.ClientPaidDate == nil || !period.Contains(*inst.ClientPaidDate) {
			continue
		}
		if s, ok := t.data.sales[inst.SaleID]; ok && s.CollaboratorID == id {
			result = append(result, inst)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (t *memTx) DeleteInstallmentsByCollaborator(_ context.Context, id commission.CollaboratorID) error {
	for instID, inst := range t.data.installments {
		if s, ok := t.data.sales[inst.SaleID]; ok && s.CollaboratorID == id {
			delete(t.data.installments, instID)
		}
	}
	return nil
}

func (t *memTx) ListPayoutsDue(_ context.Context, asOf generic.Date) ([]commission.Payout, error) {
	var payouts []commission.Payout
	for _, inst := range t.data.installments {
		if !inst.ClientPaid || inst.CollaboratorPaid || inst.CollaboratorReceiptDate == nil {
			continue
		}
		if inst.CollaboratorReceiptDate.After(asOf) {
			continue
		}
		s := t.data.sales[inst.SaleID]
		c := t.data.collaborators[s.CollaboratorID]
		payouts = append(payouts, commission.Payout{
			Installment:      inst,
			ClientName:       s.ClientName,
			CollaboratorID:   c.ID,
			CollaboratorName: c.Name,
		})
	}
	sort.Slice(payouts, func(i, j int) bool {
		a, b := payouts[i].Installment, payouts[j].Installment
		if !a.CollaboratorReceiptDate.Equal(*b.CollaboratorReceiptDate) {
			return a.CollaboratorReceiptDate.Before(*b.CollaboratorReceiptDate)
		}
		return a.ID < b.ID
	})
	return payouts, nil
}

var (
	_ commission.TxStore = (*Memory)(nil)
	_ commission.Store   = (*memTx)(nil)
)
