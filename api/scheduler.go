/*
scheduler.go - Automated membership expiry scheduler

PURPOSE:
  Periodically classifies every active membership and marks the ones
  whose end date (or visit count) has run out as expired, so lists and
  reports do not depend on someone opening the member's file.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Uses the tenant-local today (configured location), never UTC midnight
  - Only active rows are touched; cancelled memberships are left alone
  - Records every run in status_runs for audit and the admin UI

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, EXPIRY_CHECK_INTERVAL)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewExpiryScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - membership/enroll.go: Sweep
  - membership/status.go: Classifier thresholds
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/store/sqlite"
)

// ExpiryScheduler handles automated membership expiry.
type ExpiryScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpiryScheduler creates a new scheduler.
func NewExpiryScheduler(store *sqlite.Store, handler *Handler) *ExpiryScheduler {
	return &ExpiryScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (es *ExpiryScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	log := es.Handler.Log
	if !es.Enabled {
		log.Info().Msg("expiry scheduler disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Info().Dur("interval", es.CheckInterval).Msg("expiry scheduler started")
}

// Stop stops the scheduler.
func (es *ExpiryScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		es.ticker = nil
		es.Handler.Log.Info().Msg("expiry scheduler stopped")
	}
}

func (es *ExpiryScheduler) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.RunNow(context.Background())

	for {
		select {
		case <-es.ticker.C:
			es.RunNow(context.Background())
		case <-es.stop:
			return
		}
	}
}

// RunNow performs one sweep and records it.
func (es *ExpiryScheduler) RunNow(ctx context.Context) (sqlite.StatusRun, error) {
	h := es.Handler
	today := h.today()
	run := sqlite.StatusRun{
		ID:      uuid.NewString(),
		RunDate: today,
		RanAt:   h.Clock.Now().UTC(),
	}

	err := es.Store.Atomic(ctx, func(tx *sqlite.Tx) error {
		active, err := tx.ActiveMemberships(ctx)
		if err != nil {
			return fmt.Errorf("list active memberships: %w", err)
		}
		for _, m := range active {
			run.Checked++
			switch m.Status(today) {
			case membership.StatusNear:
				run.Near++
			case membership.StatusExpired:
				run.Expired++
			}
			if !membership.Sweep(m, today) {
				continue
			}
			if err := tx.SetMembershipState(ctx, m.ID, membership.StateExpired); err != nil {
				return fmt.Errorf("expire membership %s: %w", m.ID, err)
			}
			run.Marked++
		}
		return nil
	})
	if err != nil {
		run.Error = err.Error()
		run.Marked = 0
		h.Log.Error().Err(err).Msg("expiry sweep failed")
	} else {
		h.Log.Info().
			Str("date", today.String()).
			Int("checked", run.Checked).
			Int("near", run.Near).
			Int("expired", run.Expired).
			Int("marked", run.Marked).
			Msg("expiry sweep completed")
	}

	if saveErr := es.Store.SaveStatusRun(ctx, run); saveErr != nil {
		h.Log.Error().Err(saveErr).Msg("failed to record expiry run")
	}
	return run, err
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// TriggerExpiry runs a sweep on demand.
func (h *Handler) TriggerExpiry(es *ExpiryScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := es.RunNow(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Expiry sweep failed", err)
			return
		}
		writeJSON(w, http.StatusOK, toStatusRunDTO(run))
	}
}

// ListStatusRuns returns recent sweeps (?limit=, default 20).
func (h *Handler) ListStatusRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	runs, err := h.Store.ListStatusRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]StatusRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toStatusRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toStatusRunDTO(r sqlite.StatusRun) StatusRunDTO {
	return StatusRunDTO{
		ID: r.ID, RunDate: r.RunDate.String(), RanAt: r.RanAt.Format(time.RFC3339),
		Checked: r.Checked, Near: r.Near, Expired: r.Expired, Marked: r.Marked, Error: r.Error,
	}
}
