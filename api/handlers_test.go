/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Collaborator, sale and payment endpoints against an in-memory SQLite store
- Error mapping (400 / 404 / 500) and the JSON error body
- Payouts due listing and the /metrics endpoint
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/metrics"
	"github.com/warp/commission-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testClock() time.Time {
	return time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
}

func setupTestHandler(t *testing.T, clock func() time.Time) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := commission.NewService(store, commission.WithClock(clock))
	h := NewHandler(svc, store, zaptest.NewLogger(t))
	h.FakerSeed = 42
	return h
}

func setupTestRouter(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := setupTestHandler(t, testClock)
	return h, NewRouter(h, RouterOptions{Metrics: metrics.New()})
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// =============================================================================
// COLLABORATORS
// =============================================================================

func TestCreateCollaborator(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/collaborators",
		`{"name": "Ana", "phone": "555-0101", "email": "ana@example.com"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	c := decodeBody[CollaboratorDTO](t, rec)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestCreateCollaborator_MissingName(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/collaborators", `{"phone": "555"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Equal(t, "name: is required", resp.Details)
}

func TestCreateCollaborator_MalformedJSON(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": `)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decodeBody[ErrorResponse](t, rec).Error)
}

func TestListCollaborators(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/collaborators", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, name := range []string{"Carla", "Ana"} {
		rec := doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "`+name+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/collaborators", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]CollaboratorDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].Name)
	assert.Equal(t, "Carla", list[1].Name)
}

func TestGetCollaborator_BadRequests(t *testing.T) {
	_, router := setupTestRouter(t)
	rec := doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/collaborators/abc", http.StatusBadRequest},
		{"/api/collaborators/0", http.StatusBadRequest},
		{"/api/collaborators/1?month=abc", http.StatusBadRequest},
		{"/api/collaborators/1?year=20x4", http.StatusBadRequest},
		{"/api/collaborators/1?month=13&year=2024", http.StatusBadRequest},
		{"/api/collaborators/1?month=0", http.StatusBadRequest},
		{"/api/collaborators/1?year=0", http.StatusBadRequest},
		{"/api/collaborators/1?month=", http.StatusBadRequest},
		{"/api/collaborators/1?month=3&year=2024", http.StatusOK},
		{"/api/collaborators/99", http.StatusNotFound},
		{"/api/collaborators/1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestDeleteCollaborator(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	rec := doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "ACME", "amount": "100", "first_payment_date": "2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/collaborators/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/collaborators/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(t, router, http.MethodPost, "/api/installments/1/client-payment", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doRequest(t, router, http.MethodDelete, "/api/collaborators/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// SALES AND PAYMENTS
// =============================================================================

func TestSaleLifecycle_AnaInMarch(t *testing.T) {
	_, router := setupTestRouter(t)

	// GIVEN: Ana with a 3000 sale whose first payment is due 2024-03-01
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	rec := doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "Padaria Central", "amount": 3000, "first_payment_date": "2024-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[SaleDTO](t, rec)
	assert.Equal(t, "3000.00", sale.Amount)
	require.Len(t, sale.Installments, 1)
	inst := sale.Installments[0]
	assert.Equal(t, 1, inst.Index)
	assert.Equal(t, "2024-03-01", inst.ClientDueDate)
	assert.Equal(t, "3000.00", inst.Amount)
	assert.False(t, inst.ClientPaid)
	assert.Nil(t, inst.ClientPaidDate)
	assert.Nil(t, inst.CollaboratorReceiptDate)

	// WHEN: The client pays on 2024-03-03
	rec = doRequest(t, router, http.MethodPost, "/api/installments/1/client-payment", `{"paid_date": "2024-03-03"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[InstallmentDTO](t, rec)
	assert.True(t, paid.ClientPaid)
	require.NotNil(t, paid.CollaboratorReceiptDate)
	assert.Equal(t, "2024-03-20", *paid.CollaboratorReceiptDate)

	// THEN: The March detail shows tier 1.4 and 1200.00 commission
	rec = doRequest(t, router, http.MethodGet, "/api/collaborators/1?month=3&year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeBody[CollaboratorDetailDTO](t, rec)
	assert.Equal(t, "Ana", detail.Collaborator.Name)
	assert.Equal(t, 3, detail.Month)
	assert.Equal(t, 2024, detail.Year)
	assert.Equal(t, "3000.00", detail.TotalSold)
	assert.Equal(t, "1.4", detail.Multiplier)
	assert.Equal(t, "1200.00", detail.CommissionValue)
	require.Len(t, detail.Sales, 1)
	assert.True(t, detail.Sales[0].Installments[0].ClientPaid)

	// AND: February has nothing
	rec = doRequest(t, router, http.MethodGet, "/api/collaborators/1?month=2&year=2024", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail = decodeBody[CollaboratorDetailDTO](t, rec)
	assert.Equal(t, "0.00", detail.TotalSold)
	assert.Equal(t, "1.2", detail.Multiplier)
	assert.Equal(t, "0.00", detail.CommissionValue)
}

func TestCreateSale_Errors(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)

	tests := []struct {
		name    string
		body    string
		error   string
		details string
	}{
		{
			name:    "unknown collaborator",
			body:    `{"collaborator_id": 7, "client_name": "X", "amount": "10", "first_payment_date": "2024-03-01"}`,
			error:   "Validation failed",
			details: "collaborator_id: collaborator 7 does not exist",
		},
		{
			name:    "negative amount",
			body:    `{"collaborator_id": 1, "client_name": "X", "amount": "-10", "first_payment_date": "2024-03-01"}`,
			error:   "Validation failed",
			details: "amount: must be positive",
		},
		{
			name:    "fraction of a cent",
			body:    `{"collaborator_id": 1, "client_name": "X", "amount": "0.001", "first_payment_date": "2024-03-01"}`,
			error:   "Validation failed",
			details: "amount: must have at most 2 decimal places",
		},
		{
			name:    "payout after last date",
			body:    `{"collaborator_id": 1, "client_name": "X", "amount": "10", "first_payment_date": "9999-12-31"}`,
			error:   "Validation failed",
			details: "first_payment_date: payout date would fall after 9999-12-31",
		},
		{
			name:    "bad date",
			body:    `{"collaborator_id": 1, "client_name": "X", "amount": "10", "first_payment_date": "2024-02-30"}`,
			error:   "Validation failed",
			details: "first_payment_date: must be a valid date in YYYY-MM-DD format",
		},
		{
			name:  "amount not a number",
			body:  `{"collaborator_id": 1, "client_name": "X", "amount": "ten", "first_payment_date": "2024-03-01"}`,
			error: "Invalid JSON",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/sales", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.error, resp.Error)
			if tt.details != "" {
				assert.Equal(t, tt.details, resp.Details)
			}
		})
	}

	// Nothing was written
	rec := doRequest(t, router, http.MethodGet, "/api/collaborators/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[CollaboratorDetailDTO](t, rec).Sales)
}

func TestClientPayment_EmptyBodyUsesToday(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "ACME", "amount": "500", "first_payment_date": "2024-03-01"}`)

	rec := doRequest(t, router, http.MethodPost, "/api/installments/1/client-payment", "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inst := decodeBody[InstallmentDTO](t, rec)
	require.NotNil(t, inst.ClientPaidDate)
	assert.Equal(t, "2024-03-15", *inst.ClientPaidDate)
	require.NotNil(t, inst.CollaboratorReceiptDate)
	assert.Equal(t, "2024-04-05", *inst.CollaboratorReceiptDate)
}

func TestPayments_Errors(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "ACME", "amount": "500", "first_payment_date": "2024-03-01"}`)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown installment", "/api/installments/42/client-payment", "", http.StatusNotFound},
		{"unknown installment payout", "/api/installments/42/collaborator-payment", "", http.StatusNotFound},
		{"bad id", "/api/installments/x/client-payment", "", http.StatusBadRequest},
		{"bad date", "/api/installments/1/client-payment", `{"paid_date": "15/03/2024"}`, http.StatusBadRequest},
		{"bad json", "/api/installments/1/collaborator-payment", `{"paid_date":`, http.StatusBadRequest},
		{"payout after last date", "/api/installments/1/client-payment", `{"paid_date": "9999-12-06"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	// Rejected payments leave every listing readable
	rec := doRequest(t, router, http.MethodGet, "/api/payouts/due?as_of=9999-12-31", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = doRequest(t, router, http.MethodGet, "/api/collaborators/1", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCollaboratorPayment(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "ACME", "amount": "500", "first_payment_date": "2024-03-01"}`)
	doRequest(t, router, http.MethodPost, "/api/installments/1/client-payment", `{"paid_date": "2024-03-02"}`)

	rec := doRequest(t, router, http.MethodPost, "/api/installments/1/collaborator-payment", `{"paid_date": "2024-03-20"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	inst := decodeBody[InstallmentDTO](t, rec)
	assert.True(t, inst.CollaboratorPaid)
	require.NotNil(t, inst.CollaboratorPaidDate)
	assert.Equal(t, "2024-03-20", *inst.CollaboratorPaidDate)
	assert.True(t, inst.ClientPaid)
}

// =============================================================================
// PAYOUTS
// =============================================================================

func TestListPayoutsDue(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	for _, amount := range []string{"100.10", "200.20"} {
		rec := doRequest(t, router, http.MethodPost, "/api/sales",
			`{"collaborator_id": 1, "client_name": "ACME", "amount": "`+amount+`", "first_payment_date": "2024-03-01"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	doRequest(t, router, http.MethodPost, "/api/installments/1/client-payment", `{"paid_date": "2024-03-02"}`) // 03-20
	doRequest(t, router, http.MethodPost, "/api/installments/2/client-payment", `{"paid_date": "2024-03-10"}`) // 04-05

	rec := doRequest(t, router, http.MethodGet, "/api/payouts/due?as_of=2024-04-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[PayoutsDueResponse](t, rec)
	assert.Equal(t, "2024-04-05", resp.AsOf)
	assert.Equal(t, "300.30", resp.Total)
	require.Len(t, resp.Payouts, 2)
	assert.Equal(t, int64(1), resp.Payouts[0].Installment.ID)
	assert.Equal(t, "Ana", resp.Payouts[0].CollaboratorName)
	assert.Equal(t, "ACME", resp.Payouts[0].ClientName)

	// Default is today (2024-03-15): nothing due yet
	rec = doRequest(t, router, http.MethodGet, "/api/payouts/due", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[PayoutsDueResponse](t, rec)
	assert.Equal(t, "2024-03-15", resp.AsOf)
	assert.Equal(t, "0.00", resp.Total)
	assert.Empty(t, resp.Payouts)

	rec = doRequest(t, router, http.MethodGet, "/api/payouts/due?as_of=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestInternalError_HidesDetails(t *testing.T) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	svc := commission.NewService(store, commission.WithClock(testClock))
	router := NewRouter(NewHandler(svc, store, zaptest.NewLogger(t)), RouterOptions{})
	require.NoError(t, store.Close())

	rec := doRequest(t, router, http.MethodGet, "/api/collaborators", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Internal error", resp.Error)
	assert.Empty(t, resp.Details)
}

func TestHealthz(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHealthz_DatabaseClosed(t *testing.T) {
	// GIVEN: A handler whose database connection has been closed
	h, router := setupTestRouter(t)
	require.NotNil(t, h.DB)
	require.NoError(t, h.Store.(*sqlite.Store).Close())

	// WHEN: Checking health
	rec := doRequest(t, router, http.MethodGet, "/healthz", "")

	// THEN: 503 instead of a false ok
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status": "unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := setupTestRouter(t)
	doRequest(t, router, http.MethodPost, "/api/collaborators", `{"name": "Ana"}`)
	doRequest(t, router, http.MethodPost, "/api/sales",
		`{"collaborator_id": 1, "client_name": "ACME", "amount": "500", "first_payment_date": "2024-03-01"}`)

	rec := doRequest(t, router, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, metrics.MetricHTTPRequestsTotal)
	assert.Contains(t, body, `route="/api/sales"`)
}

func TestMetricsEndpoint_DisabledWithoutMetrics(t *testing.T) {
	h := setupTestHandler(t, testClock)
	router := NewRouter(h, RouterOptions{})

	rec := doRequest(t, router, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_PreflightAllowsFrontendOrigin(t *testing.T) {
	_, router := setupTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/collaborators", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
