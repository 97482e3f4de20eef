package pricing

import (
	"github.com/warp/gym-desk/generic"
)

// ComputeTotal returns round2(basePrice + enrollmentFee - discount).
// Rounding happens once, on the final sum. Negative inputs and a negative
// result are not rejected here; request validation owns that.
func ComputeTotal(basePrice, discount, enrollmentFee generic.Money) generic.Money {
	return basePrice.Add(enrollmentFee).Sub(discount).Round2()
}

// ComputeEndDate adds the plan's calendar offset to an ISO start date.
// Visit passes, unknown codes and unparseable dates return startISO as is.
func ComputeEndDate(startISO string, d Duration) string {
	if !d.IsCalendar() {
		return startISO
	}
	start, ok := generic.ParseDate(startISO)
	if !ok {
		return startISO
	}
	return EndDate(start, d).String()
}

// EndDate is the typed form of ComputeEndDate.
func EndDate(start generic.Date, d Duration) generic.Date {
	s, ok := spans[d]
	if !ok || s.visits > 0 || start.IsZero() {
		return start
	}
	end := start
	if s.years != 0 {
		end = end.AddYears(s.years)
	}
	if s.months != 0 {
		end = end.AddMonths(s.months)
	}
	if s.days != 0 {
		end = end.AddDays(s.days)
	}
	return end
}

// Quote prices one sale and derives its membership window.
func Quote(in Input) Quotation {
	return Quotation{
		Total:  ComputeTotal(in.BasePrice, in.Discount, in.EnrollmentFee),
		Window: generic.Window{Start: in.Start, End: EndDate(in.Start, in.Duration)},
		Visits: in.Duration.Visits(),
	}
}

// RenewalStart picks the start of a renewal. While the current membership
// is still running the new one starts the day after it ends (advance
// re-enrollment); otherwise it starts today.
func RenewalStart(currentEnd, today generic.Date) generic.Date {
	if currentEnd.IsZero() || currentEnd.Before(today) {
		return today
	}
	return currentEnd.AddDays(1)
}
