package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/store/sqlite"
)

// =============================================================================
// CASH REGISTER ("corte de caja")
// =============================================================================

// OpenSession opens the tenant's drawer with an opening float.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req OpenSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	var session *cashregister.Session
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		var err error
		session, err = h.register(tx).Open(ctx, tenant, user, generic.NewMoney(req.OpeningFloat))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.Info().Str("tenant", string(tenant)).Str("session", string(session.ID)).
		Str("float", session.OpeningFloat.String()).Msg("cash session opened")
	writeJSON(w, http.StatusCreated, toSessionDTO(*session))
}

// CurrentSession returns the live summary of the open session.
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var sum *cashregister.Summary
	err := h.Store.View(ctx, func(tx *sqlite.Tx) error {
		reg := h.register(tx)
		s, err := reg.Current(ctx, tenant)
		if err != nil {
			return err
		}
		sum, err = reg.Summarize(ctx, tenant, s.ID)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*sum))
}

// GetSession returns the summary of any session, open or closed.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var sum *cashregister.Summary
	err := h.Store.View(ctx, func(tx *sqlite.Tx) error {
		var err error
		sum, err = h.register(tx).Summarize(ctx, tenant, generic.SessionID(chi.URLParam(r, "id")))
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*sum))
}

// ListSessions returns the tenant's sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	tenant, _, ok := h.identify(w, r)
	if !ok {
		return
	}
	sessions, err := h.Store.ListSessions(r.Context(), tenant)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	dtos := make([]SessionDTO, 0, len(sessions))
	for _, s := range sessions {
		dtos = append(dtos, toSessionDTO(s))
	}
	writeJSON(w, http.StatusOK, paginate(r, dtos))
}

// CashIn records a manual deposit into the drawer.
func (h *Handler) CashIn(w http.ResponseWriter, r *http.Request) {
	h.manualMovement(w, r, (*cashregister.Register).CashIn)
}

// CashOut records a manual withdrawal from the drawer.
func (h *Handler) CashOut(w http.ResponseWriter, r *http.Request) {
	h.manualMovement(w, r, (*cashregister.Register).CashOut)
}

type manualFunc func(*cashregister.Register, context.Context, generic.TenantID, string, generic.Money, string) (*generic.Movement, error)

func (h *Handler) manualMovement(w http.ResponseWriter, r *http.Request, op manualFunc) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CashMovementRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	var mv *generic.Movement
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		var err error
		mv, err = op(h.register(tx), ctx, tenant, user, generic.NewMoney(req.Amount), req.Reason)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovementDTO(*mv))
}

// CloseSession declares the counted cash and closes the drawer.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	tenant, user, ok := h.identify(w, r)
	if !ok {
		return
	}
	var req CloseSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	var sum *cashregister.Summary
	err := h.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		var err error
		sum, err = h.register(tx).Close(ctx, tenant, user, generic.NewMoney(req.Declared), req.Notes)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	s := sum.Session
	event := h.Log.Info()
	if s.Classification == cashregister.Critico {
		event = h.Log.Warn()
	}
	event.Str("tenant", string(tenant)).
		Str("session", string(s.ID)).
		Str("expected", s.Expected.String()).
		Str("declared", s.Declared.String()).
		Str("deviation", s.Deviation.String()).
		Str("classification", string(s.Classification)).
		Msg("cash session closed")

	writeJSON(w, http.StatusOK, toSummaryDTO(*sum))
}
