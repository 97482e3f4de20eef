/*
Package membership classifies memberships and gates check-in.

PURPOSE:
  The attendance screen colours every member like a traffic light and
  decides whether the turnstile opens. Both come from the same
  classification of a membership's end date against today.

CLASSIFICATION:
  daysRemaining = whole calendar days from today to the end date
    > 3   AHEAD    (green)
    0..3  NEAR     (yellow)
    < 0   EXPIRED  (red)

  Missing or unparseable end dates are EXPIRED. Inactive members are
  EXPIRED whatever their dates say.

TODAY IS A PARAMETER:
  Nothing here reads the wall clock. Callers resolve today once, in the
  tenant's zone, through generic.Today and pass it down.

SEE ALSO:
  - gate.go: Check-in eligibility
  - api/scheduler.go: Periodic expiry sweep
*/
package membership

import (
	"github.com/warp/gym-desk/generic"
)

// Status is the tri-state used for the semaphore and the check-in gate.
type Status string

const (
	StatusAhead   Status = "AHEAD"
	StatusNear    Status = "NEAR"
	StatusExpired Status = "EXPIRED"
)

const (
	// NearThresholdDays is the last day count still reported as NEAR.
	NearThresholdDays = 3
	// NearThresholdVisits is the last visit count still reported as NEAR.
	NearThresholdVisits = 3
)

// Semaphore is the traffic-light colour shown next to a member.
type Semaphore string

const (
	Green  Semaphore = "green"
	Yellow Semaphore = "yellow"
	Red    Semaphore = "red"
)

func (s Status) Semaphore() Semaphore {
	switch s {
	case StatusAhead:
		return Green
	case StatusNear:
		return Yellow
	default:
		return Red
	}
}

// Classify classifies an ISO end date against today.
func Classify(endISO string, today generic.Date) Status {
	end, ok := generic.ParseDate(endISO)
	if !ok {
		return StatusExpired
	}
	return ClassifyDate(end, today)
}

// ClassifyDate is the typed form of Classify. A zero end or today is EXPIRED.
func ClassifyDate(end, today generic.Date) Status {
	if end.IsZero() || today.IsZero() {
		return StatusExpired
	}
	return fromDays(generic.DaysBetween(today, end))
}

// ClassifyMember is the status shown for a member: an inactive member or one
// without a current membership is EXPIRED, otherwise current decides.
func ClassifyMember(active bool, current *Membership, today generic.Date) Status {
	if !active || current == nil {
		return StatusExpired
	}
	return current.Status(today)
}

// DaysRemaining returns days from today to end, and false when end is missing.
func DaysRemaining(end, today generic.Date) (int, bool) {
	if end.IsZero() || today.IsZero() {
		return 0, false
	}
	return generic.DaysBetween(today, end), true
}

// ClassifyVisits classifies a visit pass by its remaining visits.
func ClassifyVisits(remaining int) Status {
	switch {
	case remaining > NearThresholdVisits:
		return StatusAhead
	case remaining > 0:
		return StatusNear
	default:
		return StatusExpired
	}
}

func fromDays(days int) Status {
	switch {
	case days > NearThresholdDays:
		return StatusAhead
	case days >= 0:
		return StatusNear
	default:
		return StatusExpired
	}
}
