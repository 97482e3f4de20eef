/*
handlers.go - HTTP API handlers for the gym front desk

PURPOSE:
  Exposes the pricing calculator, the payment split validator, the
  membership classifier and the check-in gate via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic. The server recomputes every total and end date; values sent by
  the client are never trusted.

ENDPOINTS:
  Quote:
    POST   /api/quote                         Live preview (total, end date, split)

  Members:
    GET    /api/members                       List members (?q=, paginated)
    POST   /api/members                       Create member
    GET    /api/members/{id}                  Get member
    PUT    /api/members/{id}                  Update member
    GET    /api/members/{id}/status           Semaphore for the front desk
    GET    /api/members/{id}/memberships      Membership history
    POST   /api/members/{id}/memberships      Enroll / renew (sales.go)
    POST   /api/members/{id}/checkins         Check in (checkins.go)

  Catalog:
    GET    /api/packages                      List packages (?active=true)
    POST   /api/packages                      Create or update package
    GET    /api/packages/{id}                 Get package
    GET    /api/products                      List products (paginated)
    POST   /api/products                      Create or update product
    POST   /api/products/{id}/counts          Physical inventory count

  Sales, cash register, check-ins, reports: see sales.go, cash.go,
  checkins.go, reports.go.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (View / Atomic)
  - Packages: JSON to Package conversion
  - Catalog: Optional Redis cache of package listings
  - Metrics, Clock, Location, Log

REQUEST FLOW:
  1. Resolve the tenant from the principal (auth.Tenant)
  2. Decode and validate input
  3. Call domain logic inside one store transaction when writing
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, negative totals
  - 403: Check-in denied, tenant not accessible
  - 404: Resource not found
  - 409: Conflict (no open session, stock, idempotency, already cancelled)
  - 422: Payment split does not match the total
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/gym-desk/auth"
	"github.com/warp/gym-desk/cache"
	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/payment"
	"github.com/warp/gym-desk/pos"
	"github.com/warp/gym-desk/pricing"
	"github.com/warp/gym-desk/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Packages *factory.PackageFactory
	Catalog  *cache.Catalog
	Metrics  *Metrics
	Clock    generic.Clock
	Location *time.Location
	Log      zerolog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// Options are the optional dependencies of a Handler.
type Options struct {
	Catalog  *cache.Catalog
	Metrics  *Metrics
	Clock    generic.Clock
	Location *time.Location
	Logger   *zerolog.Logger
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	h := &Handler{
		Store:    store,
		Packages: factory.NewPackageFactory(),
		Catalog:  opts.Catalog,
		Metrics:  opts.Metrics,
		Clock:    opts.Clock,
		Location: opts.Location,
		Log:      zerolog.Nop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if h.Metrics == nil {
		h.Metrics = NewMetrics()
	}
	if h.Clock == nil {
		h.Clock = generic.SystemClock{}
	}
	if h.Location == nil {
		h.Location = time.UTC
	}
	if opts.Logger != nil {
		h.Log = *opts.Logger
	}
	return h
}

// today is the tenant-local calendar day.
func (h *Handler) today() generic.Date {
	return generic.Today(h.Clock, h.Location)
}

// register binds cash-register operations to tx.
func (h *Handler) register(tx *sqlite.Tx) *cashregister.Register {
	return cashregister.New(tx, generic.NewLedger(tx), h.Clock, h.Location)
}

// identify resolves the tenant and acting user, writing the error response
// itself when the tenant is not accessible.
func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (generic.TenantID, string, bool) {
	tenant, err := auth.Tenant(r)
	if err != nil {
		h.fail(w, r, err)
		return "", "", false
	}
	p, _ := auth.FromContext(r.Context())
	return tenant, p.UserID, true
}

// decode reads a JSON body and runs its validate tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// QUOTE
// =============================================================================

// Quote previews a membership sale: total, window and, when payments are
// given, how they reconcile. With a member_id the window follows the same
// renewal rule EnrollMember applies. Nothing is written.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req QuoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := parseStart(req.StartDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var plan membership.Enrollment
	err = h.Store.View(r.Context(), func(tx *sqlite.Tx) error {
		pkg, err := tx.GetPackage(r.Context(), tenant, generic.PackageID(req.PackageID))
		if err != nil {
			return err
		}
		var current *membership.Membership
		if req.MemberID != "" {
			memberID := generic.MemberID(req.MemberID)
			if _, err := tx.GetMember(r.Context(), tenant, memberID); err != nil {
				return err
			}
			history, err := tx.MembershipsByMember(r.Context(), tenant, memberID)
			if err != nil {
				return err
			}
			current = membership.Latest(history)
		}
		plan, err = membership.Plan(membership.EnrollRequest{
			TenantID: tenant,
			MemberID: generic.MemberID(req.MemberID),
			Package:  *pkg,
			Movement: pricing.Movement(req.Movement),
			Discount: generic.NewMoney(req.Discount).Round2(),
			Start:    start,
			Current:  current,
			Today:    h.today(),
		})
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := plan.Quotation

	dto := QuoteDTO{
		Total:     q.Total.Float64(),
		StartDate: q.Window.Start.String(),
		EndDate:   q.Window.End.String(),
		Visits:    q.Visits,
	}
	if req.Payments != nil {
		split := toSplitDTO(payment.ValidateSplit(toTenders(req.Payments), q.Total))
		dto.Split = &split
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// MEMBERS
// =============================================================================

// ListMembers returns the tenant's members, filtered by ?q= on the name.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	members, err := h.Store.ListMembers(r.Context(), tenant, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMemberDTO(m))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}

// GetMember returns one member.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	m, err := h.Store.GetMember(r.Context(), tenant, generic.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// CreateMember creates a member; a missing id is generated.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	h.saveMember(w, r, tenant, req, http.StatusCreated)
}

// UpdateMember replaces a member's details.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CreateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	if _, err := h.Store.GetMember(r.Context(), tenant, generic.MemberID(req.ID)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.saveMember(w, r, tenant, req, http.StatusOK)
}

func (h *Handler) saveMember(w http.ResponseWriter, r *http.Request, tenant generic.TenantID, req CreateMemberRequest, status int) {
	m := membership.Member{
		ID:        generic.MemberID(req.ID),
		TenantID:  tenant,
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     req.Phone,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: h.Clock.Now().UTC(),
	}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save member", err)
		return
	}
	writeJSON(w, status, toMemberDTO(m))
}

// GetMemberships returns a member's membership history, latest first.
func (h *Handler) GetMemberships(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ms, err := h.Store.MembershipsByMember(r.Context(), tenant, generic.MemberID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get memberships", err)
		return
	}
	today := h.today()
	dtos := make([]MembershipDTO, 0, len(ms))
	for _, m := range ms {
		dtos = append(dtos, toMembershipDTO(m, today))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMemberStatus returns the semaphore for the member's current membership.
func (h *Handler) GetMemberStatus(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	memberID := generic.MemberID(chi.URLParam(r, "id"))

	member, err := h.Store.GetMember(ctx, tenant, memberID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	history, err := h.Store.MembershipsByMember(ctx, tenant, memberID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get memberships", err)
		return
	}

	today := h.today()
	current := membership.Current(history, today)
	dto := StatusDTO{MemberID: string(memberID), Status: string(membership.ClassifyMember(member.Active, current, today))}
	if current != nil {
		if current.IsVisitPass() {
			dto.VisitsRemaining = current.VisitsRemaining
		} else if days, ok := membership.DaysRemaining(current.Window.End, today); ok {
			dto.DaysRemaining = &days
		}
		mdto := toMembershipDTO(*current, today)
		dto.Membership = &mdto
	}
	dto.Semaphore = string(membership.Status(dto.Status).Semaphore())
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PACKAGES
// =============================================================================

// ListPackages returns the catalog, served from the cache when present.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	configs, hit, err := h.Catalog.Get(ctx, tenant)
	if err != nil {
		h.Log.Warn().Err(err).Str("tenant", string(tenant)).Msg("catalog cache read failed")
	}
	if !hit {
		pkgs, err := h.Store.ListPackages(ctx, tenant, false)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list packages", err)
			return
		}
		configs = make([]factory.PackageJSON, 0, len(pkgs))
		for i := range pkgs {
			configs = append(configs, h.Packages.ToJSON(&pkgs[i]))
		}
		if err := h.Catalog.Set(ctx, tenant, configs); err != nil {
			h.Log.Warn().Err(err).Str("tenant", string(tenant)).Msg("catalog cache write failed")
		}
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	dtos := make([]PackageDTO, 0, len(configs))
	for _, c := range configs {
		if activeOnly && c.Active != nil && !*c.Active {
			continue
		}
		dtos = append(dtos, PackageDTO{ID: c.ID, Name: c.Name, Config: c})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPackage returns one package.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	pkg, err := h.Store.GetPackage(r.Context(), tenant, generic.PackageID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PackageDTO{ID: string(pkg.ID), Name: pkg.Name, Config: h.Packages.ToJSON(pkg)})
}

// CreatePackage stores a package definition and drops the cached catalog.
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req factory.PackageJSON
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.TenantID = string(tenant)

	pkg, err := h.Packages.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid package configuration", err)
		return
	}
	if err := h.Store.SavePackage(r.Context(), *pkg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save package", err)
		return
	}
	if err := h.Catalog.Invalidate(r.Context(), tenant); err != nil {
		h.Log.Warn().Err(err).Str("tenant", string(tenant)).Msg("catalog cache invalidation failed")
	}
	writeJSON(w, http.StatusCreated, PackageDTO{ID: string(pkg.ID), Name: pkg.Name, Config: h.Packages.ToJSON(pkg)})
}

// =============================================================================
// PRODUCTS AND INVENTORY
// =============================================================================

// ListProducts returns the tenant's products and services.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	products, err := h.Store.ListProducts(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}

// CreateProduct creates or replaces a product. Services never hold stock.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CreateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p := pos.Product{
		ID:       generic.ProductID(req.ID),
		TenantID: tenant,
		Name:     strings.TrimSpace(req.Name),
		SKU:      req.SKU,
		Kind:     pos.Kind(req.Kind),
		Price:    generic.NewMoney(req.Price).Round2(),
		Stock:    req.Stock,
		Active:   req.Active == nil || *req.Active,
	}
	if !p.TracksStock() {
		p.Stock = 0
	}
	if err := h.Store.SaveProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// CountProduct records a physical count and sets stock to what was found.
func (h *Handler) CountProduct(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CountRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	productID := generic.ProductID(chi.URLParam(r, "id"))

	var count pos.Count
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		p, err := tx.GetProduct(ctx, tenant, productID)
		if err != nil {
			return err
		}
		if !p.TracksStock() {
			return fmt.Errorf("%w: services have no stock", generic.ErrInvalidAmount)
		}
		count, err = pos.NewCount(uuid.NewString(), *p, req.Counted, user, h.Clock.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.SaveCount(ctx, count); err != nil {
			return err
		}
		return tx.SetStock(ctx, tenant, productID, req.Counted)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCountDTO(count))
}

// ListCounts returns a product's count history.
func (h *Handler) ListCounts(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var counts []pos.Count
	err := h.Store.View(ctx, func(tx *sqlite.Tx) error {
		var err error
		counts, err = tx.ListCounts(ctx, tenant, generic.ProductID(chi.URLParam(r, "id")))
		return err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list counts", err)
		return
	}
	dtos := make([]CountDTO, 0, len(counts))
	for _, c := range counts {
		dtos = append(dtos, toCountDTO(c))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}

// =============================================================================
// HELPERS
// =============================================================================

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// fail maps a domain error to its status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var denied *generic.CheckInDeniedError
	var split *generic.SplitMismatchError
	switch {
	case errors.As(err, &denied):
		writeError(w, http.StatusForbidden, denied.Reason, nil)
	case errors.As(err, &split):
		writeError(w, http.StatusUnprocessableEntity, generic.ErrSplitMismatch.Error(), err)
	case errors.Is(err, generic.ErrForbiddenTenant):
		writeError(w, http.StatusForbidden, "Tenant not accessible", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

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

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paginate slices items by ?page= (1-based) and ?size=.
func paginate[T any](r *http.Request, items []T) Page[T] {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	total := len(items)
	from := total
	if page-1 <= total/size {
		from = (page - 1) * size
	}
	to := min(from+size, total)
	out := items[from:to]
	if out == nil {
		out = []T{}
	}
	return Page[T]{Items: out, Page: page, Size: size, Total: total}
}
