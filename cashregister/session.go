/*
Package cashregister manages the cash register session ("corte de caja").

PURPOSE:
  A tenant takes money through one open session at a time. The session is
  opened with a cash float, every sale and manual cash movement attaches to
  it, and it is closed by declaring the counted cash. The difference
  between what the ledger says should be in the drawer and what was
  counted is the deviation, classified for the manager.

CLOSE-OUT:
  expected  = opening float + sum of signed CASH movements
  deviation = declared - expected

  |deviation| <= 0.01                          normal
  |deviation| <= 5% of expected (50.00 if 0)   advertencia
  otherwise                                    critico

  Card and transfer totals are reported per method but never counted
  against the drawer.

SEE ALSO:
  - register.go: Open, cash in/out, close
  - generic/ledger.go: Movement log the totals are replayed from
*/
package cashregister

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/payment"
)

// =============================================================================
// SESSION
// =============================================================================

// State is the lifecycle of a session.
type State string

const (
	StateOpen   State = "abierta"
	StateClosed State = "cerrada"
)

// Classification grades the deviation found at close.
type Classification string

const (
	Normal      Classification = "normal"
	Advertencia Classification = "advertencia"
	Critico     Classification = "critico"
)

// Session is one opening-to-close cycle of a tenant's cash drawer.
type Session struct {
	ID           generic.SessionID
	TenantID     generic.TenantID
	OpenedBy     string
	OpeningFloat generic.Money
	State        State
	OpenedAt     time.Time

	// Set on close.
	ClosedBy       string
	ClosedAt       *time.Time
	Expected       generic.Money
	Declared       generic.Money
	Deviation      generic.Money
	Classification Classification
	Notes          string
}

func (s Session) IsOpen() bool { return s.State == StateOpen }

// SessionStore persists sessions. OpenSession returns nil, nil when the
// tenant has no open session.
type SessionStore interface {
	OpenSession(ctx context.Context, tenantID generic.TenantID) (*Session, error)
	GetSession(ctx context.Context, tenantID generic.TenantID, id generic.SessionID) (*Session, error)
	SaveSession(ctx context.Context, s Session) error
}

// =============================================================================
// DEVIATION
// =============================================================================

var (
	// WarningRatio is the share of expected cash still graded advertencia.
	WarningRatio = decimal.NewFromFloat(0.05)
	// WarningFloor applies when nothing was expected in the drawer.
	WarningFloor = generic.NewMoneyFromInt(50)
)

// Classify returns declared - expected and its grade.
func Classify(expected, declared generic.Money) (generic.Money, Classification) {
	deviation := declared.Sub(expected).Round2()
	abs := deviation.Abs()

	if abs.LessThanOrEqual(generic.Cent) {
		return deviation, Normal
	}

	limit := WarningFloor
	if !expected.IsZero() {
		limit = expected.Abs().Mul(WarningRatio).Round2()
	}
	if abs.LessThanOrEqual(limit) {
		return deviation, Advertencia
	}
	return deviation, Critico
}

// ExpectedCash is the cash that should be in the drawer given the session's
// movements. The opening float is itself a CASH movement.
func ExpectedCash(ms []generic.Movement) generic.Money {
	return generic.NetByMethod(ms)[CashMethod]
}

// CashMethod is the payment method counted against the drawer.
const CashMethod = string(payment.Cash)
