/*
Package payment reconciles tendered payments against a total.

PURPOSE:
  A front-desk charge may be split across cash, card and bank transfer.
  Before a sale is confirmed the tenders must add up to the total, to the
  cent. The same check runs on every keystroke in the UI preview and,
  authoritatively, on the server before anything is written.

RULES:
  - Only tenders with amount > 0 are "used"
  - sum = round2(sum of used tenders)
  - difference = round2(expected - sum)
  - valid = |difference| < 0.01 AND (expected == 0 OR sum > 0)

  Both sides are already at cent precision, so the tolerance only absorbs
  sub-cent drift in client-sent amounts: 99.99 against 100.00 is a one cent
  gap and is rejected. A zero total with no tenders is valid (fully
  discounted membership). Any other total needs at least one positive tender.

SEE ALSO:
  - generic/errors.go: SplitMismatchError
  - cashregister/: Per-method totals at close-out
*/
package payment

import (
	"github.com/warp/gym-desk/generic"
)

// Method is a payment method code.
type Method string

const (
	Cash     Method = "CASH"
	Card     Method = "CARD"
	Transfer Method = "TRANSFER"
)

// Methods lists the accepted methods in display order.
func Methods() []Method { return []Method{Cash, Card, Transfer} }

func (m Method) Valid() bool { return m == Cash || m == Card || m == Transfer }

// Tolerance bounds |expected - sum|; a gap of a full cent is not accepted.
var Tolerance = generic.Cent

// Tender is one payment line.
type Tender struct {
	Method Method
	Amount generic.Money
}

// Split is the result of reconciling tenders with a total.
type Split struct {
	Expected   generic.Money
	Sum        generic.Money
	Difference generic.Money
	IsValid    bool
}

// ValidateSplit reconciles tenders against the expected total.
func ValidateSplit(tenders []Tender, expected generic.Money) Split {
	sum := generic.Money{}
	for _, t := range tenders {
		if t.Amount.IsPositive() {
			sum = sum.Add(t.Amount)
		}
	}
	sum = sum.Round2()
	diff := expected.Sub(sum).Round2()

	valid := diff.Abs().LessThan(Tolerance) && (expected.IsZero() || sum.IsPositive())
	return Split{Expected: expected, Sum: sum, Difference: diff, IsValid: valid}
}

// Err returns a *generic.SplitMismatchError for an invalid split, nil otherwise.
func (s Split) Err() error {
	if s.IsValid {
		return nil
	}
	return &generic.SplitMismatchError{Expected: s.Expected, Sum: s.Sum, Difference: s.Difference}
}

// FillExact puts the whole expected total on one method and zeroes the others.
func FillExact(method Method, expected generic.Money) []Tender {
	out := make([]Tender, 0, 3)
	for _, m := range Methods() {
		t := Tender{Method: m}
		if m == method {
			t.Amount = expected
		}
		out = append(out, t)
	}
	return out
}

// Used drops tenders with amount <= 0.
func Used(tenders []Tender) []Tender {
	var out []Tender
	for _, t := range tenders {
		if t.Amount.IsPositive() {
			out = append(out, t)
		}
	}
	return out
}

// Breakdown sums used tenders per method. Every method is present.
func Breakdown(tenders []Tender) map[Method]generic.Money {
	out := map[Method]generic.Money{Cash: {}, Card: {}, Transfer: {}}
	for _, t := range Used(tenders) {
		out[t.Method] = out[t.Method].Add(t.Amount)
	}
	for k, v := range out {
		out[k] = v.Round2()
	}
	return out
}
