package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/payment"
	"github.com/warp/gym-desk/pos"
	"github.com/warp/gym-desk/pricing"
	"github.com/warp/gym-desk/store/sqlite"
)

// =============================================================================
// MEMBERSHIP SALES
// =============================================================================

// EnrollMember sells a membership. Total and window are recomputed here,
// the split is validated, and the sale, the membership and one ledger
// movement per used tender are written in one transaction.
func (h *Handler) EnrollMember(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	memberID := generic.MemberID(chi.URLParam(r, "id"))

	var sold enrollment
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		var err error
		sold, err = h.enroll(ctx, tx, tenant, user, memberID, req)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.Info().
		Str("tenant", string(tenant)).
		Str("member", string(memberID)).
		Str("sale", string(sold.sale.ID)).
		Str("total", sold.sale.Total.String()).
		Msg("membership sold")

	writeJSON(w, http.StatusCreated, EnrollmentDTO{
		Membership: toMembershipDTO(sold.membership, h.today()),
		Sale:       toSaleDTO(sold.sale),
		Split:      toSplitDTO(sold.split),
	})
}

// parseStart reads an optional start_date. Empty leaves the choice to
// membership.Plan.
func parseStart(raw string) (generic.Date, error) {
	if raw == "" {
		return generic.Date{}, nil
	}
	d, ok := generic.ParseDate(raw)
	if !ok {
		return generic.Date{}, fmt.Errorf("%w: start_date %q", generic.ErrInvalidDate, raw)
	}
	return d, nil
}

type enrollment struct {
	membership membership.Membership
	sale       pos.Sale
	split      payment.Split
}

// enroll prices, validates and records one membership sale inside tx.
func (h *Handler) enroll(ctx context.Context, tx *sqlite.Tx, tenant generic.TenantID, user string, memberID generic.MemberID, req EnrollRequest) (enrollment, error) {
	var out enrollment
	today := h.today()
	tenders := toTenders(req.Payments)

	start, err := parseStart(req.StartDate)
	if err != nil {
		return out, err
	}

	if err := checkIdempotency(ctx, tx, tenant, req.IdempotencyKey); err != nil {
		return out, err
	}
	if _, err := tx.GetMember(ctx, tenant, memberID); err != nil {
		return out, err
	}
	pkg, err := tx.GetPackage(ctx, tenant, generic.PackageID(req.PackageID))
	if err != nil {
		return out, err
	}
	if !pkg.Active {
		return out, fmt.Errorf("%w: package %s is inactive", generic.ErrInvalidPackage, pkg.ID)
	}
	history, err := tx.MembershipsByMember(ctx, tenant, memberID)
	if err != nil {
		return out, err
	}

	movement := pricing.Movement(req.Movement)
	plan, err := membership.Plan(membership.EnrollRequest{
		TenantID: tenant,
		MemberID: memberID,
		Package:  *pkg,
		Movement: movement,
		Discount: generic.NewMoney(req.Discount).Round2(),
		Start:    start,
		Current:  membership.Latest(history),
		Today:    today,
	})
	if err != nil {
		return out, err
	}

	total := plan.Quotation.Total
	out.split = payment.ValidateSplit(tenders, total)
	if !out.split.IsValid {
		h.Metrics.SplitRejections.Inc()
		return out, out.split.Err()
	}
	session, err := h.register(tx).Require(ctx, tenant, total)
	if err != nil {
		return out, err
	}

	out.sale = pos.Sale{
		ID:             generic.SaleID(uuid.NewString()),
		TenantID:       tenant,
		Kind:           pos.SaleMembership,
		MemberID:       memberID,
		Subtotal:       pkg.Price.Add(pkg.FeeFor(movement)).Round2(),
		Discount:       plan.Membership.Discount,
		Total:          total,
		Payments:       payment.Used(tenders),
		Status:         pos.SaleCompleted,
		IdempotencyKey: req.IdempotencyKey,
		EffectiveAt:    today,
		CreatedBy:      user,
		CreatedAt:      h.Clock.Now().UTC(),
	}
	if session != nil {
		out.sale.SessionID = session.ID
	}
	if err := tx.SaveSale(ctx, out.sale); err != nil {
		return out, err
	}

	out.membership = plan.Membership
	out.membership.SaleID = out.sale.ID
	if err := tx.SaveMembership(ctx, out.membership); err != nil {
		return out, err
	}
	err = generic.NewLedger(tx).AppendBatch(ctx,
		cashregister.SaleMovements(session, out.sale.ID, tenders, today, user, req.IdempotencyKey))
	if err != nil {
		return out, err
	}

	h.Metrics.Sales.WithLabelValues(string(pos.SaleMembership)).Inc()
	return out, nil
}

// =============================================================================
// POINT OF SALE
// =============================================================================

// CreateSale charges a ticket of products and services and deducts stock.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CreateSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	tenders := toTenders(req.Payments)
	today := h.today()

	var sale pos.Sale
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		if err := checkIdempotency(ctx, tx, tenant, req.IdempotencyKey); err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, tenant, req.Items)
		if err != nil {
			return err
		}

		items := make([]pos.Item, 0, len(req.Items))
		for _, it := range req.Items {
			line, err := pos.Line(products[generic.ProductID(it.ProductID)], it.Quantity)
			if err != nil {
				return err
			}
			items = append(items, line)
		}
		discount := generic.NewMoney(req.Discount).Round2()
		subtotal, total := pos.Total(items, discount)
		if total.IsNegative() {
			return generic.ErrNegativeTotal
		}

		split := payment.ValidateSplit(tenders, total)
		if !split.IsValid {
			h.Metrics.SplitRejections.Inc()
			return split.Err()
		}
		session, err := h.register(tx).Require(ctx, tenant, total)
		if err != nil {
			return err
		}
		if err := tx.AdjustStock(ctx, tenant, pos.Deductions(items, products)); err != nil {
			return err
		}

		sale = pos.Sale{
			ID:             generic.SaleID(uuid.NewString()),
			TenantID:       tenant,
			Kind:           pos.SaleProducts,
			Items:          items,
			Subtotal:       subtotal,
			Discount:       discount,
			Total:          total,
			Payments:       payment.Used(tenders),
			Status:         pos.SaleCompleted,
			IdempotencyKey: req.IdempotencyKey,
			EffectiveAt:    today,
			CreatedBy:      user,
			CreatedAt:      h.Clock.Now().UTC(),
		}
		if session != nil {
			sale.SessionID = session.ID
		}
		if err := tx.SaveSale(ctx, sale); err != nil {
			return err
		}
		return generic.NewLedger(tx).AppendBatch(ctx,
			cashregister.SaleMovements(session, sale.ID, tenders, today, user, req.IdempotencyKey))
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Metrics.Sales.WithLabelValues(string(pos.SaleProducts)).Inc()
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns one sale.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	sale, err := h.Store.GetSale(r.Context(), tenant, generic.SaleID(chi.URLParam(r, "id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*sale))
}

// ListSales returns sales effective in ?from=&to= (default today).
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	span, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	sales, err := h.Store.ListSales(r.Context(), tenant, span.From, span.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, 0, len(sales))
	for _, s := range sales {
		dtos = append(dtos, toSaleDTO(s))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}

// CancelSale reverses a sale: negated movements are appended to the open
// session, stock is restored, and a membership it paid for is cancelled.
// Nothing already in the ledger is edited.
func (h *Handler) CancelSale(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CancelSaleRequest
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	saleID := generic.SaleID(chi.URLParam(r, "id"))
	today := h.today()

	var reversed []generic.Movement
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		sale, err := tx.GetSale(ctx, tenant, saleID)
		if err != nil {
			return err
		}
		if sale.IsCancelled() {
			return generic.ErrAlreadyReversed
		}
		original, err := tx.MovementsBySale(ctx, tenant, saleID)
		if err != nil {
			return err
		}

		session, err := h.register(tx).Require(ctx, tenant, sale.Total)
		if err != nil {
			return err
		}
		reversed = cashregister.Reversals(original, session, today, user, req.Reason)
		if err := generic.NewLedger(tx).AppendBatch(ctx, reversed); err != nil {
			return err
		}

		if len(sale.Items) > 0 {
			products := make(map[generic.ProductID]pos.Product, len(sale.Items))
			for _, it := range sale.Items {
				p, err := tx.GetProduct(ctx, tenant, it.ProductID)
				if err != nil {
					return err
				}
				products[p.ID] = *p
			}
			if err := tx.AdjustStock(ctx, tenant, pos.Restorations(sale.Items, products)); err != nil {
				return err
			}
		}

		m, err := tx.MembershipBySale(ctx, tenant, saleID)
		if err != nil {
			return err
		}
		if m != nil {
			if err := tx.SetMembershipState(ctx, m.ID, membership.StateCancelled); err != nil {
				return err
			}
		}
		return tx.CancelSale(ctx, tenant, saleID, h.Clock.Now().UTC(), req.Reason)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.Info().Str("tenant", string(tenant)).Str("sale", string(saleID)).Int("reversals", len(reversed)).Msg("sale cancelled")

	dtos := make([]MovementDTO, 0, len(reversed))
	for _, m := range reversed {
		dtos = append(dtos, toMovementDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sale_id":   saleID,
		"status":    pos.SaleCancelled,
		"reversals": dtos,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// checkIdempotency rejects a key that already recorded a sale.
func checkIdempotency(ctx context.Context, tx *sqlite.Tx, tenant generic.TenantID, key string) error {
	if key == "" {
		return nil
	}
	existing, err := tx.SaleByIdempotencyKey(ctx, tenant, key)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: sale %s", generic.ErrDuplicateIdempotencyKey, existing.ID)
	}
	return nil
}

func loadProducts(ctx context.Context, tx *sqlite.Tx, tenant generic.TenantID, items []SaleItemRequest) (map[generic.ProductID]pos.Product, error) {
	out := make(map[generic.ProductID]pos.Product, len(items))
	for _, it := range items {
		id := generic.ProductID(it.ProductID)
		if _, seen := out[id]; seen {
			continue
		}
		p, err := tx.GetProduct(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: %s is inactive", generic.ErrProductNotFound, id)
		}
		out[id] = *p
	}
	return out, nil
}
