/*
Package pricing computes what a membership costs and how long it lasts.

PURPOSE:
  Every screen that sells or renews a plan (enrollment, re-enrollment,
  advance re-enrollment, training-session sales) previews the same two
  numbers before charging: the total due and the membership end date.
  This package is the single definition of both.

KEY CONCEPTS:
  - Duration: Plan length code, either a calendar offset or a visit cap
  - Movement: INSCRIPCION (new member, pays enrollment fee) or
    REINSCRIPCION (renewal, no fee)
  - Package: A purchasable plan (paquete) with price, fee and duration

SEE ALSO:
  - calculator.go: ComputeTotal, ComputeEndDate, Quote
  - factory/package.go: JSON package definitions
  - membership/: Status classification of the resulting window
*/
package pricing

import (
	"time"

	"github.com/warp/gym-desk/generic"
)

// =============================================================================
// DURATION - Plan length codes
// =============================================================================

// Duration is a plan length code.
type Duration string

const (
	OneWeek       Duration = "ONE_WEEK"
	TwoWeeks      Duration = "TWO_WEEKS"
	OneMonth      Duration = "ONE_MONTH"
	TwoMonths     Duration = "TWO_MONTHS"
	ThreeMonths   Duration = "THREE_MONTHS"
	SixMonths     Duration = "SIX_MONTHS"
	OneYear       Duration = "ONE_YEAR"
	OneVisit      Duration = "ONE_VISIT"
	TenVisits     Duration = "TEN_VISITS"
	FifteenVisits Duration = "FIFTEEN_VISITS"
	TwentyVisits  Duration = "TWENTY_VISITS"
)

// span is either a calendar offset or a visit cap, never both.
type span struct {
	days   int
	months int
	years  int
	visits int
}

var spans = map[Duration]span{
	OneWeek:       {days: 7},
	TwoWeeks:      {days: 14},
	OneMonth:      {months: 1},
	TwoMonths:     {months: 2},
	ThreeMonths:   {months: 3},
	SixMonths:     {months: 6},
	OneYear:       {years: 1},
	OneVisit:      {visits: 1},
	TenVisits:     {visits: 10},
	FifteenVisits: {visits: 15},
	TwentyVisits:  {visits: 20},
}

// Known reports whether d is a recognised code.
func (d Duration) Known() bool {
	_, ok := spans[d]
	return ok
}

// IsVisitPass reports whether the plan is governed by a visit counter.
func (d Duration) IsVisitPass() bool { return spans[d].visits > 0 }

// IsCalendar reports whether the plan has a calendar expiry.
func (d Duration) IsCalendar() bool {
	s, ok := spans[d]
	return ok && s.visits == 0
}

// Visits returns the visit cap of a visit pass, 0 otherwise.
func (d Duration) Visits() int { return spans[d].visits }

// Durations lists every known code, calendar plans first.
func Durations() []Duration {
	return []Duration{
		OneWeek, TwoWeeks, OneMonth, TwoMonths, ThreeMonths, SixMonths, OneYear,
		OneVisit, TenVisits, FifteenVisits, TwentyVisits,
	}
}

// =============================================================================
// MOVEMENT TYPE
// =============================================================================

// Movement is the membership transaction type.
type Movement string

const (
	Inscripcion   Movement = "INSCRIPCION"   // new enrollment, charges the enrollment fee
	Reinscripcion Movement = "REINSCRIPCION" // renewal, no enrollment fee
)

func (m Movement) Valid() bool { return m == Inscripcion || m == Reinscripcion }

// =============================================================================
// PACKAGE - Purchasable plan
// =============================================================================

// Package is a plan a tenant sells.
type Package struct {
	ID            generic.PackageID
	TenantID      generic.TenantID
	Name          string
	Price         generic.Money
	EnrollmentFee generic.Money
	Duration      Duration
	AccessDays    []time.Weekday // empty means every day
	Active        bool
}

// FeeFor returns the enrollment fee charged for the given movement.
func (p Package) FeeFor(m Movement) generic.Money {
	if m == Inscripcion {
		return p.EnrollmentFee
	}
	return generic.Money{}
}

// AllowsDay reports whether the plan grants access on weekday wd.
func (p Package) AllowsDay(wd time.Weekday) bool {
	if len(p.AccessDays) == 0 {
		return true
	}
	for _, d := range p.AccessDays {
		if d == wd {
			return true
		}
	}
	return false
}

// =============================================================================
// INPUT / QUOTATION
// =============================================================================

// Input is what the calculator needs to price one sale of a plan.
type Input struct {
	BasePrice     generic.Money
	Discount      generic.Money
	EnrollmentFee generic.Money
	Start         generic.Date
	Duration      Duration
}

// InputFor builds the calculator input for selling pkg with the given movement.
func InputFor(pkg Package, m Movement, discount generic.Money, start generic.Date) Input {
	return Input{
		BasePrice:     pkg.Price,
		Discount:      discount,
		EnrollmentFee: pkg.FeeFor(m),
		Start:         start,
		Duration:      pkg.Duration,
	}
}

// Quotation is the preview shown before charging.
type Quotation struct {
	Total  generic.Money
	Window generic.Window
	Visits int // visit passes only
}
