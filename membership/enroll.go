package membership

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/pricing"
)

// =============================================================================
// MEMBER
// =============================================================================

// Member is a gym member (socio).
type Member struct {
	ID        generic.MemberID
	TenantID  generic.TenantID
	Name      string
	Email     string
	Phone     string
	Active    bool
	CreatedAt time.Time
}

// CheckIn is one recorded entry at the front desk.
type CheckIn struct {
	ID           string
	TenantID     generic.TenantID
	MemberID     generic.MemberID
	MembershipID string
	Date         generic.Date
	At           time.Time
	Status       Status
}

// =============================================================================
// ENROLLMENT
// =============================================================================

// EnrollRequest describes the sale of a plan to a member.
type EnrollRequest struct {
	TenantID generic.TenantID
	MemberID generic.MemberID
	Package  pricing.Package
	Movement pricing.Movement
	Discount generic.Money
	// Start is optional; when zero the start is derived from Current.
	Start   generic.Date
	Current *Membership
	Today   generic.Date
}

// Enrollment is the priced plan ready to be persisted.
type Enrollment struct {
	Quotation  pricing.Quotation
	Membership Membership
}

// Plan prices an enrollment or renewal and builds the new membership.
// A running calendar membership pushes the new start to the day after
// it ends. A negative total is rejected.
func Plan(req EnrollRequest) (Enrollment, error) {
	start := req.Start
	if start.IsZero() {
		start = req.Today
		if c := req.Current; c != nil && c.State == StateActive && !c.IsVisitPass() && !req.Package.Duration.IsVisitPass() {
			start = pricing.RenewalStart(c.Window.End, req.Today)
		}
	}

	q := pricing.Quote(pricing.InputFor(req.Package, req.Movement, req.Discount, start))
	if q.Total.IsNegative() {
		return Enrollment{}, generic.ErrNegativeTotal
	}

	m := Membership{
		ID:              uuid.NewString(),
		TenantID:        req.TenantID,
		MemberID:        req.MemberID,
		PackageID:       req.Package.ID,
		Movement:        req.Movement,
		Duration:        req.Package.Duration,
		Window:          q.Window,
		VisitsRemaining: q.Visits,
		AccessDays:      req.Package.AccessDays,
		Total:           q.Total,
		Discount:        req.Discount.Round2(),
		State:           StateActive,
	}
	return Enrollment{Quotation: q, Membership: m}, nil
}

// Consume uses one visit of a visit pass. Calendar plans are unchanged.
func (m *Membership) Consume() {
	if m.IsVisitPass() && m.VisitsRemaining > 0 {
		m.VisitsRemaining--
	}
}

// Sweep reports whether a stored active membership should now be marked
// expired.
func Sweep(m Membership, today generic.Date) bool {
	return m.State == StateActive && m.Status(today) == StatusExpired
}

// =============================================================================
// SELECTION
// =============================================================================

// Current picks the membership that governs access today: the usable one
// with the latest end, else the latest non-cancelled one so the gate can
// explain why access is denied. Returns nil for an empty history.
func Current(ms []Membership, today generic.Date) *Membership {
	var usable, latest *Membership
	for i := range ms {
		m := &ms[i]
		if m.State == StateCancelled {
			continue
		}
		if latest == nil || m.Window.End.After(latest.Window.End) {
			latest = m
		}
		if m.State != StateActive || today.Before(m.Window.Start) {
			continue
		}
		ok := m.VisitsRemaining > 0
		if !m.IsVisitPass() {
			ok = m.Window.End.AfterOrEqual(today)
		}
		if ok && (usable == nil || m.Window.End.After(usable.Window.End)) {
			usable = m
		}
	}
	if usable != nil {
		return usable
	}
	return latest
}

// Latest returns the active calendar membership ending last, the base for
// an advance renewal.
func Latest(ms []Membership) *Membership {
	var out *Membership
	for i := range ms {
		m := &ms[i]
		if m.State != StateActive || m.IsVisitPass() {
			continue
		}
		if out == nil || m.Window.End.After(out.Window.End) {
			out = m
		}
	}
	return out
}
