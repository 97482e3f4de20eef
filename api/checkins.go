package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/store/sqlite"
)

// =============================================================================
// ATTENDANCE
// =============================================================================

// CheckIn runs the eligibility gate for today in the tenant's zone. An
// admitted check-in is recorded and consumes a visit from a visit pass;
// a denied one answers 403 with the reason and records nothing.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	memberID := generic.MemberID(chi.URLParam(r, "id"))
	today := h.today()

	var (
		decision membership.Decision
		record   membership.CheckIn
	)
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		member, err := tx.GetMember(ctx, tenant, memberID)
		if err != nil {
			return err
		}
		history, err := tx.MembershipsByMember(ctx, tenant, memberID)
		if err != nil {
			return err
		}

		current := membership.Current(history, today)
		decision = membership.Gate(membership.GateInput{
			MemberID:     memberID,
			MemberActive: member.Active,
			Membership:   current,
			Today:        today,
		})
		if !decision.Allowed {
			return decision.Err(memberID)
		}

		if current.IsVisitPass() {
			current.Consume()
			decision.VisitsRemaining = current.VisitsRemaining
			if err := tx.SaveMembership(ctx, *current); err != nil {
				return err
			}
		}

		record = membership.CheckIn{
			ID:           uuid.NewString(),
			TenantID:     tenant,
			MemberID:     memberID,
			MembershipID: current.ID,
			Date:         today,
			At:           h.Clock.Now().UTC(),
			Status:       decision.Status,
		}
		return tx.SaveCheckIn(ctx, record)
	})
	if err != nil {
		if !decision.Allowed && decision.Reason != "" {
			h.Metrics.CheckIns.WithLabelValues("denied").Inc()
			h.Log.Info().Str("tenant", string(tenant)).Str("member", string(memberID)).
				Str("reason", decision.Reason).Msg("check-in denied")
		}
		h.fail(w, r, err)
		return
	}

	h.Metrics.CheckIns.WithLabelValues("allowed").Inc()
	dto := toCheckInDTO(record)
	dto.DaysRemaining = decision.DaysRemaining
	dto.VisitsRemaining = decision.VisitsRemaining
	writeJSON(w, http.StatusCreated, dto)
}

// ListCheckIns returns the attendance of ?date= (default today).
func (h *Handler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	day := h.today()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, ok := generic.ParseDate(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", nil)
			return
		}
		day = parsed
	}

	checkins, err := h.Store.ListCheckIns(r.Context(), tenant, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list check-ins", err)
		return
	}
	dtos := make([]CheckInDTO, 0, len(checkins))
	for _, c := range checkins {
		dtos = append(dtos, toCheckInDTO(c))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}
