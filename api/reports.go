package api

import (
	"net/http"
	"sort"

	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
)

// =============================================================================
// REPORTS
// =============================================================================

// SalesReport nets sale and reversal movements per day and method, so a
// cancelled sale contributes nothing.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	span, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	ms, err := generic.NewLedger(h.Store).MovementsInRange(r.Context(), tenant, span.From, span.To)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load movements", err)
		return
	}

	byDay := make(map[string][]generic.Movement)
	for _, m := range ms {
		if m.Type != generic.MovSale && m.Type != generic.MovReversal {
			continue
		}
		key := m.EffectiveAt.String()
		byDay[key] = append(byDay[key], m)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	out := make([]DailySalesDTO, 0, len(days))
	for _, d := range days {
		totals := generic.NetByMethod(byDay[d])
		amounts := make([]generic.Money, 0, len(totals))
		for _, v := range totals {
			amounts = append(amounts, v)
		}
		out = append(out, DailySalesDTO{
			Date:     d,
			ByMethod: methodTotals(totals),
			Total:    generic.SumMoney(amounts...).Float64(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// MembershipsReport counts the tenant's members per status for the
// semaphore dashboard. Members with no membership count as EXPIRED.
func (h *Handler) MembershipsReport(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	members, err := h.Store.ListMembers(ctx, tenant, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list members", err)
		return
	}
	all, err := h.Store.MembershipsByTenant(ctx, tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list memberships", err)
		return
	}
	byMember := make(map[generic.MemberID][]membership.Membership)
	for _, m := range all {
		byMember[m.MemberID] = append(byMember[m.MemberID], m)
	}

	today := h.today()
	counts := map[string]int{
		string(membership.StatusAhead):   0,
		string(membership.StatusNear):    0,
		string(membership.StatusExpired): 0,
	}
	for _, mem := range members {
		status := membership.ClassifyMember(mem.Active, membership.Current(byMember[mem.ID], today), today)
		counts[string(status)]++
	}

	writeJSON(w, http.StatusOK, MembershipReportDTO{Date: today.String(), Counts: counts, Total: len(members)})
}

// dateRange reads ?from= and ?to=, each defaulting to today.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (generic.Range, bool) {
	today := h.today()
	span := generic.Range{From: today, To: today}
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		d, ok := generic.ParseDate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", nil)
			return span, false
		}
		span.From = d
	}
	if raw := q.Get("to"); raw != "" {
		d, ok := generic.ParseDate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", nil)
			return span, false
		}
		span.To = d
	}
	if span.To.Before(span.From) {
		writeError(w, http.StatusBadRequest, "from must not be after to", nil)
		return span, false
	}
	return span, true
}
