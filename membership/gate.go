package membership

import (
	"time"

	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/pricing"
)

// =============================================================================
// MEMBERSHIP RECORD
// =============================================================================

// State is the stored lifecycle of a membership row.
type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Membership is one sold plan for one member.
type Membership struct {
	ID              string
	TenantID        generic.TenantID
	MemberID        generic.MemberID
	PackageID       generic.PackageID
	SaleID          generic.SaleID
	Movement        pricing.Movement
	Duration        pricing.Duration
	Window          generic.Window
	VisitsRemaining int
	AccessDays      []time.Weekday
	Total           generic.Money
	Discount        generic.Money
	State           State
}

// IsVisitPass reports whether access is governed by VisitsRemaining.
func (m Membership) IsVisitPass() bool { return m.Duration.IsVisitPass() }

// Status classifies the membership for today. Visit passes are classified
// by remaining visits, calendar plans by their end date.
func (m Membership) Status(today generic.Date) Status {
	if m.State == StateCancelled {
		return StatusExpired
	}
	if m.IsVisitPass() {
		return ClassifyVisits(m.VisitsRemaining)
	}
	return ClassifyDate(m.Window.End, today)
}

// =============================================================================
// CHECK-IN GATE
// =============================================================================

// Denial reasons shown at the front desk.
const (
	ReasonInactive      = "socio inactivo"
	ReasonNoMembership  = "sin membresía vigente"
	ReasonExpired       = "membresía vencida"
	ReasonNotStarted    = "la membresía aún no inicia"
	ReasonNoVisits      = "sin visitas disponibles"
	ReasonDayRestricted = "el plan no permite acceso este día"
)

// GateInput is everything the gate needs; Membership may be nil.
type GateInput struct {
	MemberID     generic.MemberID
	MemberActive bool
	Membership   *Membership
	Today        generic.Date
}

// Decision is the outcome of a check-in attempt.
type Decision struct {
	Allowed bool
	Status  Status
	Reason  string // empty when allowed
	// DaysRemaining is set for calendar plans only.
	DaysRemaining   *int
	VisitsRemaining int
}

// Err returns a *generic.CheckInDeniedError for a denied decision.
func (d Decision) Err(memberID generic.MemberID) error {
	if d.Allowed {
		return nil
	}
	return &generic.CheckInDeniedError{MemberID: memberID, Reason: d.Reason}
}

// Gate decides whether a member may check in today.
func Gate(in GateInput) Decision {
	if !in.MemberActive {
		return deny(StatusExpired, ReasonInactive)
	}
	m := in.Membership
	if m == nil || m.State == StateCancelled {
		return deny(StatusExpired, ReasonNoMembership)
	}
	if m.Window.Start.IsZero() || in.Today.Before(m.Window.Start) {
		return deny(StatusExpired, ReasonNotStarted)
	}

	var d Decision
	if m.IsVisitPass() {
		d = Decision{Status: ClassifyVisits(m.VisitsRemaining), VisitsRemaining: m.VisitsRemaining}
		if m.VisitsRemaining <= 0 {
			d.Reason = ReasonNoVisits
			return d
		}
	} else {
		d = Decision{Status: ClassifyDate(m.Window.End, in.Today)}
		if days, ok := DaysRemaining(m.Window.End, in.Today); ok {
			d.DaysRemaining = &days
		}
		if d.Status == StatusExpired {
			d.Reason = ReasonExpired
			return d
		}
	}

	plan := pricing.Package{AccessDays: m.AccessDays}
	if !plan.AllowsDay(in.Today.Weekday()) {
		d.Reason = ReasonDayRestricted
		return d
	}

	d.Allowed = true
	return d
}

func deny(s Status, reason string) Decision {
	return Decision{Status: s, Reason: reason}
}
