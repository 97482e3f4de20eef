/*
handlers_test.go - HTTP tests for the front-desk API

Tests for:
- Membership sale with a split payment and its ledger movements
- Split mismatch and missing cash session rejections
- Check-in gate (allowed, denied, visit consumption)
- Point of sale with stock, and sale cancellation by reversal
- Cash session close classification
- Roles, tenant isolation, pagination, reports, metrics
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-desk/auth"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/store/sqlite"
)

const testTenant generic.TenantID = "gym-centro"

type testEnv struct {
	t       *testing.T
	store   *sqlite.Store
	handler *Handler
	router  http.Handler
	maker   *auth.Maker
	tokens  map[auth.Role]string
}

// newTestEnv builds a router over an in-memory store with the demo catalog
// loaded. Today is Monday 2025-03-10.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, Options{
		Clock:    generic.FixedClock{At: time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)},
		Location: time.UTC,
	})
	require.NoError(t, h.loadCatalog(context.Background(), testTenant, ""))

	maker := auth.NewMaker("test-secret-0123456789abcdef", time.Hour)
	env := &testEnv{
		t:       t,
		store:   store,
		handler: h,
		maker:   maker,
		tokens:  make(map[auth.Role]string),
	}
	for _, role := range []auth.Role{auth.RoleAdmin, auth.RoleGerente, auth.RoleRecepcion} {
		token, err := maker.GenerateToken(auth.Principal{UserID: "u-" + strings.ToLower(string(role)), Role: role, TenantID: testTenant})
		require.NoError(t, err)
		env.tokens[role] = token
	}
	env.router = NewRouter(h, RouterConfig{Maker: maker, Scheduler: NewExpiryScheduler(store, h)})
	return env
}

func (e *testEnv) do(role auth.Role, method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[role])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) createMember(id, name string) {
	e.t.Helper()
	rec := e.do(auth.RoleRecepcion, http.MethodPost, "/api/members", CreateMemberRequest{ID: id, Name: name})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) openSession(float float64) SessionDTO {
	e.t.Helper()
	rec := e.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions", OpenSessionRequest{OpeningFloat: float})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[SessionDTO](e.t, rec)
}

func (e *testEnv) enroll(memberID string, req EnrollRequest) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.do(auth.RoleRecepcion, http.MethodPost, "/api/members/"+memberID+"/memberships", req)
}

func monthlyEnrollment(payments ...TenderDTO) EnrollRequest {
	return EnrollRequest{PackageID: "mensual", Movement: "INSCRIPCION", Payments: payments}
}

// =============================================================================
// MEMBERSHIP SALES
// =============================================================================

func TestEnroll_SplitPaymentRecordsOneMovementPerMethod(t *testing.T) {
	// GIVEN: An open drawer with 500 and a new member
	env := newTestEnv(t)
	env.openSession(500)
	env.createMember("socio-1", "Ana López")

	// WHEN: Selling the monthly plan (600 + 150 enrollment) paid 300 cash + 450 card
	rec := env.enroll("socio-1", monthlyEnrollment(
		TenderDTO{Method: "CASH", Amount: 300},
		TenderDTO{Method: "CARD", Amount: 450},
		TenderDTO{Method: "TRANSFER", Amount: 0},
	))

	// THEN: The server priced it at 750 and ends it one month later
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody[EnrollmentDTO](t, rec)
	assert.Equal(t, 750.0, got.Sale.Total)
	assert.Equal(t, "2025-03-10", got.Membership.StartDate)
	assert.Equal(t, "2025-04-10", got.Membership.EndDate)
	assert.Equal(t, string(membership.StatusAhead), got.Membership.Status)
	assert.True(t, got.Split.IsValid)
	assert.Len(t, got.Sale.Payments, 2, "zero tenders are not recorded")

	// AND: The drawer shows one movement per used method
	rec = env.do(auth.RoleRecepcion, http.MethodGet, "/api/cash/sessions/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decodeBody[SummaryDTO](t, rec)
	assert.Equal(t, 800.0, sum.ExpectedCash)
	assert.Equal(t, 800.0, sum.ByMethod["CASH"])
	assert.Equal(t, 450.0, sum.ByMethod["CARD"])
	assert.Equal(t, 0.0, sum.ByMethod["TRANSFER"])
	assert.Len(t, sum.Movements, 3) // float + CASH + CARD
}

func TestEnroll_SplitMismatchRejected(t *testing.T) {
	// GIVEN: An open drawer
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")

	// WHEN: Payments fall one cent short of 750
	rec := env.enroll("socio-1", monthlyEnrollment(
		TenderDTO{Method: "CASH", Amount: 300},
		TenderDTO{Method: "CARD", Amount: 449.99},
	))

	// THEN: 422 and nothing is written
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), generic.ErrSplitMismatch.Error())

	ms, err := env.store.MembershipsByMember(context.Background(), testTenant, "socio-1")
	require.NoError(t, err)
	assert.Empty(t, ms)

	sales, err := env.store.ListSales(context.Background(), testTenant, generic.NewDate(2025, 3, 10), generic.NewDate(2025, 3, 10))
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestEnroll_RequiresOpenSession(t *testing.T) {
	env := newTestEnv(t)
	env.createMember("socio-1", "Ana López")

	rec := env.enroll("socio-1", monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), generic.ErrNoOpenSession.Error())
}

func TestEnroll_DuplicateIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")

	req := monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750})
	req.IdempotencyKey = "cobro-1"
	require.Equal(t, http.StatusCreated, env.enroll("socio-1", req).Code)

	rec := env.enroll("socio-1", req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ms, err := env.store.MembershipsByMember(context.Background(), testTenant, "socio-1")
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestEnroll_RenewalStartsAfterCurrentEnd(t *testing.T) {
	// GIVEN: A member whose monthly plan runs to 2025-04-10
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")
	require.Equal(t, http.StatusCreated, env.enroll("socio-1", monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750})).Code)

	// WHEN: Re-enrolling early (no enrollment fee)
	req := EnrollRequest{PackageID: "mensual", Movement: "REINSCRIPCION", Payments: []TenderDTO{{Method: "TRANSFER", Amount: 600}}}
	rec := env.enroll("socio-1", req)

	// THEN: The new plan starts the day after the current one ends
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody[EnrollmentDTO](t, rec)
	assert.Equal(t, 600.0, got.Sale.Total)
	assert.Equal(t, "2025-04-11", got.Membership.StartDate)
	assert.Equal(t, "2025-05-11", got.Membership.EndDate)
}

func TestEnroll_SplitRoundsTheSumOnce(t *testing.T) {
	// GIVEN: Three tenders whose exact sum is 750.00 but whose cent-rounded
	// parts would add up to 750.01
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")

	// WHEN: Selling the 750 monthly enrollment with them
	rec := env.enroll("socio-1", monthlyEnrollment(
		TenderDTO{Method: "CASH", Amount: 250.005},
		TenderDTO{Method: "CARD", Amount: 250.005},
		TenderDTO{Method: "TRANSFER", Amount: 249.99},
	))

	// THEN: The split reconciles
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 750.0, decodeBody[EnrollmentDTO](t, rec).Sale.Total)
}

func TestEnroll_RejectsStartDateBeforeMinYear(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")

	req := monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750})
	req.StartDate = "0001-01-01"
	rec := env.enroll("socio-1", req)

	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestQuote_MatchesRenewalWindow(t *testing.T) {
	// GIVEN: A member whose monthly plan runs to 2025-04-10
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")
	require.Equal(t, http.StatusCreated, env.enroll("socio-1", monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750})).Code)

	// WHEN: Quoting an early renewal for that member, then charging it
	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/quote", QuoteRequest{
		MemberID:  "socio-1",
		PackageID: "mensual",
		Movement:  "REINSCRIPCION",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decodeBody[QuoteDTO](t, rec)

	rec = env.enroll("socio-1", EnrollRequest{PackageID: "mensual", Movement: "REINSCRIPCION", Payments: []TenderDTO{{Method: "CASH", Amount: 600}}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	charged := decodeBody[EnrollmentDTO](t, rec)

	// THEN: The preview shows the window and total that were charged
	assert.Equal(t, "2025-04-11", quote.StartDate)
	assert.Equal(t, charged.Membership.StartDate, quote.StartDate)
	assert.Equal(t, charged.Membership.EndDate, quote.EndDate)
	assert.Equal(t, charged.Sale.Total, quote.Total)
}

func TestQuote_UnknownMember(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/quote", QuoteRequest{
		MemberID:  "nadie",
		PackageID: "mensual",
		Movement:  "INSCRIPCION",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestQuote_PreviewsWithoutWriting(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/quote", QuoteRequest{
		PackageID: "mensual",
		Movement:  "INSCRIPCION",
		Discount:  50,
		StartDate: "2025-01-31",
		Payments:  []TenderDTO{{Method: "CASH", Amount: 700}},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decodeBody[QuoteDTO](t, rec)
	assert.Equal(t, 700.0, q.Total)
	assert.Equal(t, "2025-01-31", q.StartDate)
	assert.Equal(t, "2025-02-28", q.EndDate)
	require.NotNil(t, q.Split)
	assert.True(t, q.Split.IsValid)
}

// =============================================================================
// CHECK-IN
// =============================================================================

func TestCheckIn_AllowedAndDenied(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")
	env.createMember("socio-2", "Bruno Díaz")
	require.Equal(t, http.StatusCreated, env.enroll("socio-1", monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750})).Code)

	t.Run("current membership is admitted", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/socio-1/checkins", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		got := decodeBody[CheckInDTO](t, rec)
		assert.True(t, got.Allowed)
		assert.Equal(t, "green", got.Semaphore)
		require.NotNil(t, got.DaysRemaining)
		assert.Equal(t, 31, *got.DaysRemaining)
	})

	t.Run("no membership is denied with reason", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/socio-2/checkins", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, membership.ReasonNoMembership, decodeBody[ErrorResponse](t, rec).Error)
	})

	t.Run("unknown member is 404", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/nadie/checkins", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("only admitted check-ins are listed", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodGet, "/api/checkins?date=2025-03-10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodeBody[Page[CheckInDTO]](t, rec)
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "socio-1", page.Items[0].MemberID)
	})
}

func TestCheckIn_ConsumesVisitPass(t *testing.T) {
	// GIVEN: A member who bought the ten-visit pass
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Diego Mora")
	req := EnrollRequest{PackageID: "10-visitas", Movement: "INSCRIPCION", Payments: []TenderDTO{{Method: "CARD", Amount: 450}}}
	require.Equal(t, http.StatusCreated, env.enroll("socio-1", req).Code)

	// WHEN: Checking in twice
	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusCreated, env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/socio-1/checkins", nil).Code)
	}

	// THEN: Eight visits remain and the status stays green
	rec := env.do(auth.RoleRecepcion, http.MethodGet, "/api/members/socio-1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[StatusDTO](t, rec)
	assert.Equal(t, 8, st.VisitsRemaining)
	assert.Equal(t, "green", st.Semaphore)
	assert.Nil(t, st.DaysRemaining)
}

// =============================================================================
// POINT OF SALE
// =============================================================================

func TestCreateSale_DeductsStock(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(100)

	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/sales", CreateSaleRequest{
		Items: []SaleItemRequest{
			{ProductID: "agua", Quantity: 2},
			{ProductID: "toalla", Quantity: 1},
		},
		Payments: []TenderDTO{{Method: "CASH", Amount: 57}},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[SaleDTO](t, rec)
	assert.Equal(t, 57.0, sale.Total)
	assert.Len(t, sale.Items, 2)

	p, err := env.store.GetProduct(context.Background(), testTenant, "agua")
	require.NoError(t, err)
	assert.Equal(t, 46, p.Stock)
}

func TestCreateSale_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)

	tests := []struct {
		name string
		req  CreateSaleRequest
		code int
	}{
		{
			name: "insufficient stock",
			req:  CreateSaleRequest{Items: []SaleItemRequest{{ProductID: "agua", Quantity: 49}}, Payments: []TenderDTO{{Method: "CASH", Amount: 906.5}}},
			code: http.StatusConflict,
		},
		{
			name: "discount above subtotal",
			req:  CreateSaleRequest{Items: []SaleItemRequest{{ProductID: "toalla", Quantity: 1}}, Discount: 25},
			code: http.StatusBadRequest,
		},
		{
			name: "unknown product",
			req:  CreateSaleRequest{Items: []SaleItemRequest{{ProductID: "pesas", Quantity: 1}}},
			code: http.StatusNotFound,
		},
		{
			name: "split mismatch",
			req:  CreateSaleRequest{Items: []SaleItemRequest{{ProductID: "barra", Quantity: 1}}, Payments: []TenderDTO{{Method: "CASH", Amount: 30}}},
			code: http.StatusUnprocessableEntity,
		},
		{
			name: "empty ticket",
			req:  CreateSaleRequest{},
			code: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/sales", tt.req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	p, err := env.store.GetProduct(context.Background(), testTenant, "agua")
	require.NoError(t, err)
	assert.Equal(t, 48, p.Stock, "rejected sales leave stock untouched")
}

func TestCancelSale_ReversesMovementsAndRestocks(t *testing.T) {
	// GIVEN: A product sale paid in cash and card
	env := newTestEnv(t)
	env.openSession(200)
	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/sales", CreateSaleRequest{
		Items:    []SaleItemRequest{{ProductID: "barra", Quantity: 2}},
		Payments: []TenderDTO{{Method: "CASH", Amount: 50}, {Method: "CARD", Amount: 20}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decodeBody[SaleDTO](t, rec)

	// WHEN: Reception tries to cancel it
	rec = env.do(auth.RoleRecepcion, http.MethodDelete, "/api/sales/"+sale.ID, nil)
	// THEN: Only managers may
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// WHEN: A manager cancels it
	rec = env.do(auth.RoleGerente, http.MethodDelete, "/api/sales/"+sale.ID, CancelSaleRequest{Reason: "cliente se arrepintió"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Two reversal movements, stock restored, drawer back to the float
	var body struct {
		Status    string        `json:"status"`
		Reversals []MovementDTO `json:"reversals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cancelled", body.Status)
	require.Len(t, body.Reversals, 2)
	for _, mv := range body.Reversals {
		assert.Equal(t, string(generic.MovReversal), mv.Type)
		assert.Negative(t, mv.Amount)
		assert.NotEmpty(t, mv.ReversesID)
	}

	p, err := env.store.GetProduct(context.Background(), testTenant, "barra")
	require.NoError(t, err)
	assert.Equal(t, 24, p.Stock)

	sum := decodeBody[SummaryDTO](t, env.do(auth.RoleRecepcion, http.MethodGet, "/api/cash/sessions/current", nil))
	assert.Equal(t, 200.0, sum.ExpectedCash)
	assert.Equal(t, 0.0, sum.ByMethod["CARD"])
	assert.Len(t, sum.Movements, 5, "original movements are kept")

	// AND: A second cancellation conflicts
	rec = env.do(auth.RoleGerente, http.MethodDelete, "/api/sales/"+sale.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelSale_CancelsPaidMembership(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")
	rec := env.enroll("socio-1", monthlyEnrollment(TenderDTO{Method: "CASH", Amount: 750}))
	require.Equal(t, http.StatusCreated, rec.Code)
	sold := decodeBody[EnrollmentDTO](t, rec)

	rec = env.do(auth.RoleGerente, http.MethodDelete, "/api/sales/"+sold.Sale.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/socio-1/checkins", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, membership.ReasonNoMembership, decodeBody[ErrorResponse](t, rec).Error)
}

// =============================================================================
// CASH REGISTER
// =============================================================================

func TestCashSession_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(500)

	t.Run("second open conflicts", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions", OpenSessionRequest{OpeningFloat: 100})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("manual movements", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions/current/in", CashMovementRequest{Amount: 100, Reason: "cambio"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions/current/out", CashMovementRequest{Amount: 80, Reason: "garrafón"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, -80.0, decodeBody[MovementDTO](t, rec).Amount)

		rec = env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions/current/out", CashMovementRequest{Amount: 0, Reason: "nada"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("close grades the deviation", func(t *testing.T) {
		// Expected 520, declared 515: -5.00 is within 5% of expected
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions/current/close", CloseSessionRequest{Declared: 515})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		sum := decodeBody[SummaryDTO](t, rec)
		assert.Equal(t, "cerrada", sum.Session.State)
		require.NotNil(t, sum.Session.Expected)
		assert.Equal(t, 520.0, *sum.Session.Expected)
		assert.Equal(t, -5.0, *sum.Session.Deviation)
		assert.Equal(t, "advertencia", sum.Session.Classification)
	})

	t.Run("nothing open after close", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodGet, "/api/cash/sessions/current", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = env.do(auth.RoleRecepcion, http.MethodGet, "/api/cash/sessions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		page := decodeBody[Page[SessionDTO]](t, rec)
		require.Equal(t, 1, page.Total)

		rec = env.do(auth.RoleRecepcion, http.MethodGet, "/api/cash/sessions/"+page.Items[0].ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[SummaryDTO](t, rec).Movements, 3)
	})
}

// =============================================================================
// CATALOG
// =============================================================================

func TestPackages_ManagerCreatesReceptionLists(t *testing.T) {
	env := newTestEnv(t)
	body := json.RawMessage(`{"id":"anual","name":"Anualidad","price":6000,"duration":"ONE_YEAR"}`)

	rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/packages", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(auth.RoleGerente, http.MethodPost, "/api/packages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(auth.RoleRecepcion, http.MethodGet, "/api/packages?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pkgs := decodeBody[[]PackageDTO](t, rec)
	ids := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "anual")
	assert.Contains(t, ids, "mensual")
}

func TestCountProduct_SetsStock(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(auth.RoleGerente, http.MethodPost, "/api/products/agua/counts", CountRequest{Counted: 45})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decodeBody[CountDTO](t, rec)
	assert.Equal(t, 48, c.Previous)
	assert.Equal(t, -3, c.Difference)

	p, err := env.store.GetProduct(context.Background(), testTenant, "agua")
	require.NoError(t, err)
	assert.Equal(t, 45, p.Stock)

	rec = env.do(auth.RoleGerente, http.MethodPost, "/api/products/toalla/counts", CountRequest{Counted: 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "services have no stock")
}

// =============================================================================
// ACCESS CONTROL
// =============================================================================

func TestAccessControl(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token", func(t *testing.T) {
		rec := env.do("", http.MethodGet, "/api/members", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("reception cannot act on another gym", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/members", nil)
		req.Header.Set("Authorization", "Bearer "+env.tokens[auth.RoleRecepcion])
		req.Header.Set(auth.TenantHeader, "gym-norte")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin views another gym", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/packages", nil)
		req.Header.Set("Authorization", "Bearer "+env.tokens[auth.RoleAdmin])
		req.Header.Set(auth.TenantHeader, "gym-norte")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decodeBody[[]PackageDTO](t, rec), "catalogs are per gym")
	})

	t.Run("reception opens and closes its own cash session", func(t *testing.T) {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions", OpenSessionRequest{OpeningFloat: 200})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		rec = env.do(auth.RoleRecepcion, http.MethodPost, "/api/cash/sessions/current/close", CloseSessionRequest{Declared: 200})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("reports need a manager", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, env.do(auth.RoleRecepcion, http.MethodGet, "/api/reports/sales", nil).Code)
		assert.Equal(t, http.StatusOK, env.do(auth.RoleGerente, http.MethodGet, "/api/reports/sales", nil).Code)
	})
}

// =============================================================================
// REPORTS
// =============================================================================

func TestSalesReport_NetsCancelledSales(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)

	sell := func(payments ...TenderDTO) SaleDTO {
		rec := env.do(auth.RoleRecepcion, http.MethodPost, "/api/sales", CreateSaleRequest{
			Items:    []SaleItemRequest{{ProductID: "entrenamiento", Quantity: 1}},
			Payments: payments,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decodeBody[SaleDTO](t, rec)
	}
	sell(TenderDTO{Method: "CASH", Amount: 250})
	cancelled := sell(TenderDTO{Method: "TRANSFER", Amount: 250})
	require.Equal(t, http.StatusOK, env.do(auth.RoleGerente, http.MethodDelete, "/api/sales/"+cancelled.ID, nil).Code)

	rec := env.do(auth.RoleGerente, http.MethodGet, "/api/reports/sales?from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	days := decodeBody[[]DailySalesDTO](t, rec)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-03-10", days[0].Date)
	assert.Equal(t, 250.0, days[0].Total)
	assert.Equal(t, 250.0, days[0].ByMethod["CASH"])
	assert.Equal(t, 0.0, days[0].ByMethod["TRANSFER"])

	rec = env.do(auth.RoleGerente, http.MethodGet, "/api/reports/sales?from=2025-03-31&to=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMembershipsReport_CountsPerStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Atomic(ctx, func(tx *sqlite.Tx) error {
		for _, s := range []struct {
			id     string
			active bool
			endsIn int
		}{
			{"verde", true, 20},
			{"amarillo", true, 1},
			{"rojo", true, -4},
			{"inactivo", false, 20},
		} {
			if err := env.handler.seedMember(ctx, tx, testTenant, s.id, s.id, s.active, "mensual", s.endsIn, 0); err != nil {
				return err
			}
		}
		return env.handler.seedMember(ctx, tx, testTenant, "sin-plan", "sin-plan", true, "", 0, 0)
	}))

	rec := env.do(auth.RoleGerente, http.MethodGet, "/api/reports/memberships", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[MembershipReportDTO](t, rec)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 1, report.Counts["AHEAD"])
	assert.Equal(t, 1, report.Counts["NEAR"])
	assert.Equal(t, 3, report.Counts["EXPIRED"])
}

// =============================================================================
// HELPERS
// =============================================================================

func TestPaginate(t *testing.T) {
	items := make([]int, 45)
	for i := range items {
		items[i] = i
	}

	tests := []struct {
		query     string
		wantLen   int
		wantFirst int
		wantPage  int
		wantSize  int
	}{
		{"", 20, 0, 1, 20},
		{"?page=3", 5, 40, 3, 20},
		{"?page=2&size=10", 10, 10, 2, 10},
		{"?page=9", 0, -1, 9, 20},
		{"?size=500", 45, 0, 1, 100},
		{"?page=-1&size=abc", 20, 0, 1, 20},
		{"?page=9223372036854775807", 0, -1, 9223372036854775807, 20},
		{"?page=4611686018427387904&size=50", 0, -1, 4611686018427387904, 50},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			p := paginate(r, items)
			assert.Len(t, p.Items, tt.wantLen)
			assert.Equal(t, 45, p.Total)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantSize, p.Size)
			assert.NotNil(t, p.Items)
			if tt.wantFirst >= 0 {
				assert.Equal(t, tt.wantFirst, p.Items[0])
			}
		})
	}
}

func TestMembers_SearchAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.createMember("socio-1", "Ana López")
	env.createMember("socio-2", "Bruno Díaz")

	rec := env.do(auth.RoleRecepcion, http.MethodGet, "/api/members?q=ana", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[Page[MemberDTO]](t, rec)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "socio-1", page.Items[0].ID)

	inactive := false
	rec = env.do(auth.RoleRecepcion, http.MethodPut, "/api/members/socio-2", CreateMemberRequest{Name: "Bruno Díaz", Active: &inactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeBody[MemberDTO](t, rec).Active)

	rec = env.do(auth.RoleRecepcion, http.MethodPut, "/api/members/nadie", CreateMemberRequest{Name: "X"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(auth.RoleRecepcion, http.MethodPost, "/api/members", CreateMemberRequest{Email: "sin-nombre@x.mx"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	env := newTestEnv(t)
	env.openSession(0)
	env.createMember("socio-1", "Ana López")
	env.do(auth.RoleRecepcion, http.MethodPost, "/api/members/socio-1/checkins", nil)

	rec := env.do("", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do("", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gymdesk_checkins_total{result="denied"} 1`)
	assert.Contains(t, body, "gymdesk_http_request_duration_seconds")
}
