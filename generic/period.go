package generic

// =============================================================================
// WINDOW - The span a membership grants access
// =============================================================================

// Window is the [Start, End] span of a membership, both days inclusive.
// End is derived from Start and the plan duration; for visit passes End
// equals Start and access is governed by a visit counter instead.
type Window struct {
	Start Date
	End   Date
}

// Contains returns true if d is within [Start, End].
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.Start) && d.BeforeOrEqual(w.End)
}

// Days returns the number of calendar days covered, counting both ends.
func (w Window) Days() int {
	if w.End.Before(w.Start) {
		return 0
	}
	return DaysBetween(w.Start, w.End) + 1
}

// Valid reports End >= Start with both dates present.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.End.AfterOrEqual(w.Start)
}

func (w Window) String() string {
	return "[" + w.Start.String() + ", " + w.End.String() + "]"
}

// Range is a reporting span, used by sales reports and ledger queries.
type Range struct {
	From Date
	To   Date
}

// Dates returns every date in the range, inclusive.
func (r Range) Dates() []Date {
	var out []Date
	for d := r.From; d.BeforeOrEqual(r.To); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
