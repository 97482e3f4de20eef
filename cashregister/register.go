package cashregister

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/payment"
)

// Register runs session operations over a SessionStore and the ledger.
// Build one per request, or per transaction when the store is transactional.
type Register struct {
	sessions SessionStore
	ledger   generic.Ledger
	clock    generic.Clock
	loc      *time.Location
}

func New(sessions SessionStore, ledger generic.Ledger, clock generic.Clock, loc *time.Location) *Register {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Register{sessions: sessions, ledger: ledger, clock: clock, loc: loc}
}

// Summary is the live view of a session.
type Summary struct {
	Session      Session
	ByMethod     map[string]generic.Money
	ExpectedCash generic.Money
	Movements    []generic.Movement
}

// Open starts a session with an opening float. Fails if one is already open.
func (r *Register) Open(ctx context.Context, tenantID generic.TenantID, user string, float generic.Money) (*Session, error) {
	if float.IsNegative() {
		return nil, fmt.Errorf("opening float: %w", generic.ErrInvalidAmount)
	}
	current, err := r.sessions.OpenSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, generic.ErrSessionAlreadyOpen
	}

	now := r.clock.Now()
	s := Session{
		ID:           generic.SessionID(uuid.NewString()),
		TenantID:     tenantID,
		OpenedBy:     user,
		OpeningFloat: float.Round2(),
		State:        StateOpen,
		OpenedAt:     now.UTC(),
	}
	if err := r.sessions.SaveSession(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if !s.OpeningFloat.IsZero() {
		mv := r.movement(s, generic.MovOpenFloat, s.OpeningFloat, "fondo inicial", user)
		if err := r.ledger.Append(ctx, mv); err != nil {
			return nil, fmt.Errorf("record opening float: %w", err)
		}
	}
	return &s, nil
}

// Current returns the tenant's open session or ErrNoOpenSession.
func (r *Register) Current(ctx context.Context, tenantID generic.TenantID) (*Session, error) {
	s, err := r.sessions.OpenSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, generic.ErrNoOpenSession
	}
	return s, nil
}

// Require returns the session a sale of the given total attaches to.
// Free sales need no session and get nil when none is open.
func (r *Register) Require(ctx context.Context, tenantID generic.TenantID, total generic.Money) (*Session, error) {
	s, err := r.sessions.OpenSession(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if s == nil && total.IsPositive() {
		return nil, generic.ErrNoOpenSession
	}
	return s, nil
}

// CashIn records money put into the drawer outside a sale.
func (r *Register) CashIn(ctx context.Context, tenantID generic.TenantID, user string, amount generic.Money, reason string) (*generic.Movement, error) {
	return r.manual(ctx, tenantID, user, generic.MovCashIn, amount, reason)
}

// CashOut records money taken out of the drawer (petty cash, withdrawals).
func (r *Register) CashOut(ctx context.Context, tenantID generic.TenantID, user string, amount generic.Money, reason string) (*generic.Movement, error) {
	return r.manual(ctx, tenantID, user, generic.MovCashOut, amount, reason)
}

func (r *Register) manual(ctx context.Context, tenantID generic.TenantID, user string, typ generic.MovementType, amount generic.Money, reason string) (*generic.Movement, error) {
	if !amount.Round2().IsPositive() {
		return nil, generic.ErrInvalidAmount
	}
	s, err := r.Current(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	signed := amount.Round2()
	if typ == generic.MovCashOut {
		signed = signed.Neg()
	}
	mv := r.movement(*s, typ, signed, reason, user)
	if err := r.ledger.Append(ctx, mv); err != nil {
		return nil, err
	}
	return &mv, nil
}

// Summarize replays a session's movements.
func (r *Register) Summarize(ctx context.Context, tenantID generic.TenantID, id generic.SessionID) (*Summary, error) {
	s, err := r.sessions.GetSession(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, generic.ErrSessionNotFound
	}
	ms, err := r.ledger.Movements(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Session:      *s,
		ByMethod:     generic.NetByMethod(ms),
		ExpectedCash: ExpectedCash(ms),
		Movements:    ms,
	}, nil
}

// Close declares the counted cash and closes the tenant's open session.
func (r *Register) Close(ctx context.Context, tenantID generic.TenantID, user string, declared generic.Money, notes string) (*Summary, error) {
	if declared.IsNegative() {
		return nil, fmt.Errorf("declared cash: %w", generic.ErrInvalidAmount)
	}
	s, err := r.Current(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	sum, err := r.Summarize(ctx, tenantID, s.ID)
	if err != nil {
		return nil, err
	}

	closedAt := r.clock.Now().UTC()
	closed := sum.Session
	closed.State = StateClosed
	closed.ClosedBy = user
	closed.ClosedAt = &closedAt
	closed.Expected = sum.ExpectedCash
	closed.Declared = declared.Round2()
	closed.Deviation, closed.Classification = Classify(closed.Expected, closed.Declared)
	closed.Notes = notes

	if err := r.sessions.SaveSession(ctx, closed); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	sum.Session = closed
	return sum, nil
}

// SaleMovements builds one sale movement per used tender, attached to s.
// Amounts are summed per method; methods with nothing tendered are skipped.
func SaleMovements(s *Session, saleID generic.SaleID, tenders []payment.Tender, effective generic.Date, user, idempotencyKey string) []generic.Movement {
	byMethod := payment.Breakdown(tenders)
	var out []generic.Movement
	for _, method := range payment.Methods() {
		amt := byMethod[method]
		if !amt.IsPositive() {
			continue
		}
		mv := generic.Movement{
			ID:          generic.MovementID(uuid.NewString()),
			SaleID:      saleID,
			Method:      string(method),
			Amount:      amt,
			Type:        generic.MovSale,
			EffectiveAt: effective,
			CreatedBy:   user,
		}
		if s != nil {
			mv.TenantID = s.TenantID
			mv.SessionID = s.ID
		}
		if idempotencyKey != "" {
			mv.IdempotencyKey = idempotencyKey + ":" + string(method)
		}
		out = append(out, mv)
	}
	return out
}

// Reversals negates each sale movement. Reversals land in the currently
// open session when there is one, otherwise in the original session.
func Reversals(original []generic.Movement, current *Session, effective generic.Date, user, reason string) []generic.Movement {
	out := make([]generic.Movement, 0, len(original))
	for _, m := range original {
		if m.Type != generic.MovSale {
			continue
		}
		rev := generic.Movement{
			ID:          generic.MovementID(uuid.NewString()),
			TenantID:    m.TenantID,
			SessionID:   m.SessionID,
			SaleID:      m.SaleID,
			Method:      m.Method,
			Amount:      m.Amount.Neg(),
			Type:        generic.MovReversal,
			Reason:      reason,
			ReversesID:  m.ID,
			EffectiveAt: effective,
			CreatedBy:   user,
		}
		if current != nil {
			rev.SessionID = current.ID
		}
		out = append(out, rev)
	}
	return out
}

func (r *Register) movement(s Session, typ generic.MovementType, amount generic.Money, reason, user string) generic.Movement {
	return generic.Movement{
		ID:          generic.MovementID(uuid.NewString()),
		TenantID:    s.TenantID,
		SessionID:   s.ID,
		Method:      CashMethod,
		Amount:      amount,
		Type:        typ,
		Reason:      reason,
		EffectiveAt: generic.Today(r.clock, r.loc),
		CreatedBy:   user,
	}
}
