/*
handlers.go - HTTP API handlers for the commission engine

PURPOSE:
  Exposes commission.Service via REST API. Handles HTTP request/response
  and JSON serialization; every rule lives in the service.

ENDPOINTS:
  Collaborators:
    GET    /api/collaborators          List collaborators (by name)
    POST   /api/collaborators          Register collaborator
    GET    /api/collaborators/{id}     Detail + monthly summary (?month=&year=)
    DELETE /api/collaborators/{id}     Delete collaborator, sales, installments

  Sales:
    POST   /api/sales                  Register sale (creates installments)

  Installments:
    POST   /api/installments/{id}/client-payment        Client paid
    POST   /api/installments/{id}/collaborator-payment  Collaborator paid out

  Payouts:
    GET    /api/payouts/due            Pending payouts (?as_of=)

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Reset and load a demo scenario

REQUEST FLOW:
  1. Parse path/query/body
  2. Call commission.Service (validation + one transaction)
  3. Serialize response DTO
  4. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"} with status:
  - 400: ValidationError, malformed JSON, malformed id/query
  - 404: NotFoundError
  - 500: Internal errors (details are logged, not returned)

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
	"github.com/warp/commission-engine/logging"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all stored data. Both store implementations satisfy it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger checks the database connection. The SQLite store satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *commission.Service
	Store   Resetter
	DB      Pinger // nil when the store has no connection to check
	Logger  *zap.Logger

	// FakerSeed seeds the random-team scenario; 0 picks a random seed.
	FakerSeed uint64

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. store is used by scenario loading, and by
// Healthz when it implements Pinger.
func NewHandler(svc *commission.Service, store Resetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{Service: svc, Store: store, Logger: logger}
	if p, ok := store.(Pinger); ok {
		h.DB = p
	}
	return h
}

// =============================================================================
// COLLABORATOR HANDLERS
// =============================================================================

// ListCollaborators returns all collaborators ordered by name.
func (h *Handler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListCollaborators(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	dtos := make([]CollaboratorDTO, len(list))
	for i, c := range list {
		dtos[i] = toCollaboratorDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCollaborator registers a collaborator.
func (h *Handler) CreateCollaborator(w http.ResponseWriter, r *http.Request) {
	var req CreateCollaboratorRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	c, err := h.Service.RegisterCollaborator(r.Context(), commission.RegisterCollaboratorInput{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCollaboratorDTO(*c))
}

// GetCollaborator returns the collaborator, all sales, and the commission
// summary for ?month=&year= (default: current month).
func (h *Handler) GetCollaborator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid collaborator id", err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	summary, err := h.Service.GetMonthlySummary(r.Context(), commission.CollaboratorID(id), month, year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCollaboratorDetailDTO(*summary))
}

// DeleteCollaborator removes the collaborator and everything it owns.
func (h *Handler) DeleteCollaborator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid collaborator id", err)
		return
	}
	if err := h.Service.DeleteCollaborator(r.Context(), commission.CollaboratorID(id)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale registers a sale and its installments.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	sale, err := h.Service.RegisterSale(r.Context(), commission.RegisterSaleInput{
		CollaboratorID:   commission.CollaboratorID(req.CollaboratorID),
		ClientName:       req.ClientName,
		Amount:           req.Amount,
		FirstPaymentDate: req.FirstPaymentDate,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*sale))
}

// =============================================================================
// INSTALLMENT HANDLERS
// =============================================================================

// RecordClientPayment marks an installment paid by the client.
func (h *Handler) RecordClientPayment(w http.ResponseWriter, r *http.Request) {
	h.recordPayment(w, r, h.Service.RecordClientPayment)
}

// RecordCollaboratorPayment marks an installment's payout as made.
func (h *Handler) RecordCollaboratorPayment(w http.ResponseWriter, r *http.Request) {
	h.recordPayment(w, r, h.Service.RecordCollaboratorPayment)
}

type paymentFunc func(ctx context.Context, id commission.InstallmentID, paidDate string) (*commission.Installment, error)

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request, record paymentFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid installment id", err)
		return
	}
	var req PaymentRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	inst, err := record(r.Context(), commission.InstallmentID(id), req.PaidDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(*inst))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// ListPayoutsDue returns payouts scheduled on or before ?as_of= (default today).
func (h *Handler) ListPayoutsDue(w http.ResponseWriter, r *http.Request) {
	asOf := r.URL.Query().Get("as_of")
	payouts, err := h.Service.ListPayoutsDue(r.Context(), asOf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if asOf == "" {
		asOf = h.Service.Today().String()
	}
	resp := PayoutsDueResponse{
		AsOf:    asOf,
		Total:   generic.FormatMoney(commission.SumPayouts(payouts)),
		Payouts: make([]PayoutDTO, len(payouts)),
	}
	for i, p := range payouts {
		resp.Payouts[i] = toPayoutDTO(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports liveness, or 503 when the database does not answer.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.Logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors to status codes. Internal errors
// are logged with the request logger and hidden from the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *generic.ValidationError
		notFoundErr   *generic.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "Validation failed", validationErr)
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, "Not found", notFoundErr)
	default:
		logging.FromContextOr(r.Context(), h.Logger).Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

// decodeJSON reads the body into v. With optional set, an empty body is
// not an error.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// queryInt parses an optional positive integer query parameter. Absent
// returns 0 so the service picks its default; an explicit 0 is an error.
func queryInt(r *http.Request, name string) (int, error) {
	q := r.URL.Query()
	if !q.Has(name) {
		return 0, nil
	}
	raw := q.Get(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return n, nil
}
