/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	front-desk data for demos. Each scenario creates the catalog, members
	and memberships that show one feature of the system, all relative to
	today so the semaphore colours are always meaningful.

AVAILABLE SCENARIOS:

	front-desk-day:  Open drawer, every semaphore colour, a visit pass
	renewals:        Members about to expire, for advance re-enrollment
	catalog-only:    Packages and products, no members

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create packages via factory presets
 3. Create products and services
 4. Create members and their memberships
 5. Optionally open a cash session and sell through the real enroll path

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "front-desk-day"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/package.go: Package JSON presets
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/pos"
	"github.com/warp/gym-desk/pricing"
	"github.com/warp/gym-desk/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "front-desk-day",
		Name:        "Front Desk Day",
		Description: "Open cash drawer, members in every semaphore colour, a visit pass and a weekend plan",
	},
	{
		ID:          "renewals",
		Name:        "Renewals",
		Description: "Members whose monthly plan ends within three days, ready for advance re-enrollment",
	},
	{
		ID:          "catalog-only",
		Name:        "Catalog Only",
		Description: "Packages, products and services with no members",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario into the caller's tenant.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var load func(context.Context, generic.TenantID, string) error
	switch req.ScenarioID {
	case "front-desk-day":
		load = h.loadFrontDeskDay
	case "renewals":
		load = h.loadRenewals
	case "catalog-only":
		load = h.loadCatalog
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.resetAll(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx, tenant, user); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "tenant": string(tenant)})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := h.identify(w, r); !ok {
		return
	}
	if err := h.resetAll(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// resetAll wipes every tenant, so every tenant's cached catalog goes too.
func (h *Handler) resetAll(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	if err := h.Catalog.InvalidateAll(ctx); err != nil {
		h.Log.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

var demoPackages = []string{
	factory.MonthlyJSON("mensual", "Mensualidad", 600, 150),
	factory.VisitPassJSON("10-visitas", "Paquete 10 visitas", 450, pricing.TenVisits),
	factory.RestrictedJSON("fin-de-semana", "Fin de semana", 350, pricing.OneMonth, "sat", "sun"),
	factory.RestrictedJSON("semana-laboral", "Lunes a viernes", 500, pricing.OneMonth, "mon", "tue", "wed", "thu", "fri"),
}

var demoProducts = []pos.Product{
	{ID: "agua", Name: "Agua 1L", SKU: "AG-1000", Kind: pos.KindProduct, Price: generic.MustParseMoney("18.50"), Stock: 48, Active: true},
	{ID: "barra", Name: "Barra de proteína", SKU: "BP-60", Kind: pos.KindProduct, Price: generic.MustParseMoney("35.00"), Stock: 24, Active: true},
	{ID: "toalla", Name: "Renta de toalla", Kind: pos.KindService, Price: generic.MustParseMoney("20.00"), Active: true},
	{ID: "entrenamiento", Name: "Sesión con entrenador", Kind: pos.KindService, Price: generic.MustParseMoney("250.00"), Active: true},
}

func (h *Handler) loadCatalog(ctx context.Context, tenant generic.TenantID, _ string) error {
	for _, raw := range demoPackages {
		pkg, err := h.Packages.ParsePackage(raw)
		if err != nil {
			return err
		}
		pkg.TenantID = tenant
		if err := h.Store.SavePackage(ctx, *pkg); err != nil {
			return err
		}
	}
	for _, p := range demoProducts {
		p.TenantID = tenant
		if err := h.Store.SaveProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// seedMember stores a member and, when pkgID is set, a membership of that
// package. Calendar plans end endsIn days from today; visit passes started
// three weeks ago and keep `visits` visits.
func (h *Handler) seedMember(ctx context.Context, tx *sqlite.Tx, tenant generic.TenantID, id, name string, active bool, pkgID string, endsIn, visits int) error {
	m := membership.Member{
		ID: generic.MemberID(id), TenantID: tenant, Name: name, Active: active,
		Email: id + "@demo.mx", CreatedAt: h.Clock.Now().UTC(),
	}
	if err := tx.SaveMember(ctx, m); err != nil {
		return err
	}
	if pkgID == "" {
		return nil
	}
	pkg, err := tx.GetPackage(ctx, tenant, generic.PackageID(pkgID))
	if err != nil {
		return err
	}

	today := h.today()
	start := today.AddDays(-21)
	if pkg.Duration.IsCalendar() {
		start = today.AddDays(endsIn).AddMonths(-1)
	}
	plan, err := membership.Plan(membership.EnrollRequest{
		TenantID: tenant,
		MemberID: m.ID,
		Package:  *pkg,
		Movement: pricing.Inscripcion,
		Start:    start,
		Today:    today,
	})
	if err != nil {
		return err
	}
	if pkg.Duration.IsCalendar() {
		plan.Membership.Window.End = today.AddDays(endsIn)
	} else {
		plan.Membership.VisitsRemaining = visits
	}
	return tx.SaveMembership(ctx, plan.Membership)
}

func (h *Handler) loadFrontDeskDay(ctx context.Context, tenant generic.TenantID, user string) error {
	if err := h.loadCatalog(ctx, tenant, user); err != nil {
		return err
	}
	return h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		seeds := []struct {
			id, name string
			active   bool
			pkg      string
			endsIn   int
			visits   int
		}{
			{"socio-ana", "Ana López", true, "mensual", 27, 0},      // green
			{"socio-bruno", "Bruno Díaz", true, "mensual", 2, 0},    // yellow
			{"socio-carla", "Carla Ruiz", true, "mensual", -15, 0},  // red
			{"socio-diego", "Diego Mora", true, "10-visitas", 0, 2}, // yellow by visits
			{"socio-elena", "Elena Vega", false, "mensual", 27, 0},  // inactive
			{"socio-fer", "Fernando Gil", true, "fin-de-semana", 29, 0},
			{"socio-gaby", "Gabriela Paz", true, "", 0, 0},
		}
		for _, s := range seeds {
			if err := h.seedMember(ctx, tx, tenant, s.id, s.name, s.active, s.pkg, s.endsIn, s.visits); err != nil {
				return fmt.Errorf("seed %s: %w", s.id, err)
			}
		}

		if _, err := h.register(tx).Open(ctx, tenant, user, generic.NewMoneyFromInt(500)); err != nil {
			return err
		}
		_, err := h.enroll(ctx, tx, tenant, user, "socio-gaby", EnrollRequest{
			PackageID: "mensual",
			Movement:  string(pricing.Inscripcion),
			Payments: []TenderDTO{
				{Method: "CASH", Amount: 300},
				{Method: "CARD", Amount: 450},
			},
			IdempotencyKey: "demo-socio-gaby",
		})
		return err
	})
}

func (h *Handler) loadRenewals(ctx context.Context, tenant generic.TenantID, user string) error {
	if err := h.loadCatalog(ctx, tenant, user); err != nil {
		return err
	}
	return h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		// Plans end today, tomorrow and the day after.
		for i, name := range []string{"Hugo Ramos", "Irene Soto", "Julián Cruz"} {
			id := fmt.Sprintf("socio-renov-%d", i+1)
			if err := h.seedMember(ctx, tx, tenant, id, name, true, "mensual", i, 0); err != nil {
				return err
			}
		}
		_, err := h.register(tx).Open(ctx, tenant, user, generic.NewMoneyFromInt(300))
		return err
	})
}
