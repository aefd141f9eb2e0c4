/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Every scenario goes through commission.Service, so the
	data obeys the same rules as API traffic.

AVAILABLE SCENARIOS:

	ana-march:       One collaborator, one 3000.00 sale paid in March 2024 (tier 1.4)
	tier-boundaries: Collaborators sitting exactly on and past each tier limit
	payout-run:      Client payments spread around the 5th, some already paid out
	random-team:     A generated team with sales this month (gofakeit)

HOW SCENARIOS WORK:
 1. Reset database (clear all data, ids restart at 1)
 2. Register collaborators
 3. Register sales
 4. Record client / collaborator payments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "ana-march"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to Seed

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Other handlers
  - commission/service.go: Operations used by the loaders
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/logging"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "ana-march",
		Name:        "Ana in March",
		Description: "One 3000.00 sale paid on 2024-03-03: multiplier 1.4, commission 1200.00",
	},
	{
		ID:          "tier-boundaries",
		Name:        "Tier Boundaries",
		Description: "March 2024 totals of 2000.00, 2000.01, 4000.00 and 4000.01",
	},
	{
		ID:          "payout-run",
		Name:        "Payout Run",
		Description: "Client payments before and after the 5th, one payout already made",
	},
	{
		ID:          "random-team",
		Name:        "Random Team",
		Description: "Generated collaborators with sales and payments in the current month",
	},
}

// Scenarios lists the available demo scenarios.
func Scenarios() []ScenarioDTO {
	out := make([]ScenarioDTO, len(scenarios))
	copy(out, scenarios)
	return out
}

// =============================================================================
// HTTP HANDLERS
// =============================================================================

// ListScenarios returns the available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Scenarios())
}

// GetCurrentScenario returns the id of the last loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the database and loads the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
	})
}

// Seed resets the store and loads scenario id. Used by LoadScenario and by
// the server's --seed flag.
func (h *Handler) Seed(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "ana-march":
		load = h.loadAnaMarchScenario
	case "tier-boundaries":
		load = h.loadTierBoundariesScenario
	case "payout-run":
		load = h.loadPayoutRunScenario
	case "random-team":
		load = h.loadRandomTeamScenario
	default:
		return generic.NewValidationError("scenario_id", fmt.Sprintf("unknown scenario %q", id))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Reset and each loader commit separately. A failure part way leaves
	// whatever was written and no current scenario.
	h.currentScenario = ""
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}
	h.currentScenario = id

	logging.FromContextOr(ctx, h.Logger).Info("scenario loaded", zap.String("scenario_id", id))
	return nil
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadAnaMarchScenario(ctx context.Context) error {
	ana, err := h.Service.RegisterCollaborator(ctx, commission.RegisterCollaboratorInput{
		Name:  "Ana",
		Phone: "555-0101",
		Email: "ana@example.com",
	})
	if err != nil {
		return err
	}
	sale, err := h.sell(ctx, ana.ID, "Padaria Central", "3000.00", "2024-03-01")
	if err != nil {
		return err
	}
	_, err = h.Service.RecordClientPayment(ctx, sale.Installments[0].ID, "2024-03-03")
	return err
}

func (h *Handler) loadTierBoundariesScenario(ctx context.Context) error {
	cases := []struct {
		name   string
		amount string
	}{
		{"Bruno", "2000.00"}, // 1.2
		{"Carla", "2000.01"}, // 1.4
		{"Diego", "4000.00"}, // 1.4
		{"Elisa", "4000.01"}, // 1.6
	}
	for _, tc := range cases {
		c, err := h.Service.RegisterCollaborator(ctx, commission.RegisterCollaboratorInput{Name: tc.name})
		if err != nil {
			return err
		}
		sale, err := h.sell(ctx, c.ID, "Client of "+tc.name, tc.amount, "2024-03-01")
		if err != nil {
			return err
		}
		if _, err := h.Service.RecordClientPayment(ctx, sale.Installments[0].ID, "2024-03-04"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadPayoutRunScenario(ctx context.Context) error {
	fabio, err := h.Service.RegisterCollaborator(ctx, commission.RegisterCollaboratorInput{Name: "Fabio"})
	if err != nil {
		return err
	}

	payments := []struct {
		client  string
		amount  string
		paid    string // client payment date
		paidOut string // collaborator payment date, "" = pending
	}{
		{"Mercado Sul", "800.00", "2024-03-05", "2024-03-20"}, // paid out on the 20th
		{"Loja Norte", "1200.00", "2024-03-05", ""},           // due 2024-03-20
		{"Oficina Leste", "650.50", "2024-03-06", ""},         // due 2024-04-05
		{"Bazar Oeste", "430.00", "2024-03-28", ""},           // due 2024-04-05
	}
	for _, p := range payments {
		sale, err := h.sell(ctx, fabio.ID, p.client, p.amount, "2024-03-01")
		if err != nil {
			return err
		}
		instID := sale.Installments[0].ID
		if _, err := h.Service.RecordClientPayment(ctx, instID, p.paid); err != nil {
			return err
		}
		if p.paidOut != "" {
			if _, err := h.Service.RecordCollaboratorPayment(ctx, instID, p.paidOut); err != nil {
				return err
			}
		}
	}

	// A sale the client has not paid yet.
	_, err = h.sell(ctx, fabio.ID, "Papelaria Centro", "990.00", "2024-04-01")
	return err
}

func (h *Handler) loadRandomTeamScenario(ctx context.Context) error {
	f := gofakeit.New(h.FakerSeed)
	today := h.Service.Today()
	monthStart := today.WithDay(1)

	for range f.IntRange(3, 6) {
		c, err := h.Service.RegisterCollaborator(ctx, commission.RegisterCollaboratorInput{
			Name:  f.Name(),
			Phone: f.Phone(),
			Email: f.Email(),
		})
		if err != nil {
			return err
		}

		for range f.IntRange(1, 4) {
			amount := decimal.NewFromFloat(f.Float64Range(150, 2500)).Round(2)
			sale, err := h.Service.RegisterSale(ctx, commission.RegisterSaleInput{
				CollaboratorID:   c.ID,
				ClientName:       f.Company(),
				Amount:           amount,
				FirstPaymentDate: monthStart.String(),
			})
			if err != nil {
				return err
			}
			if f.IntRange(1, 3) == 3 {
				continue // client has not paid yet
			}
			paid := monthStart.WithDay(f.IntRange(1, today.Day()))
			if _, err := h.Service.RecordClientPayment(ctx, sale.Installments[0].ID, paid.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) sell(ctx context.Context, id commission.CollaboratorID, client, amount, firstPayment string) (*commission.Sale, error) {
	return h.Service.RegisterSale(ctx, commission.RegisterSaleInput{
		CollaboratorID:   id,
		ClientName:       client,
		Amount:           decimal.RequireFromString(amount),
		FirstPaymentDate: firstPayment,
	})
}
