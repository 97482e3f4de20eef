package membership_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/pricing"
)

var mensual = pricing.Package{
	ID:            "mensual",
	Name:          "Mensualidad",
	Price:         generic.MustParseMoney("499.00"),
	EnrollmentFee: generic.MustParseMoney("150.00"),
	Duration:      pricing.OneMonth,
	Active:        true,
}

func TestPlan_NewEnrollmentChargesFee(t *testing.T) {
	e, err := membership.Plan(membership.EnrollRequest{
		MemberID: "socio-1",
		Package:  mensual,
		Movement: pricing.Inscripcion,
		Discount: generic.MustParseMoney("49.00"),
		Today:    day(2025, time.January, 31),
	})
	require.NoError(t, err)

	assert.Equal(t, "600.00", e.Quotation.Total.String())
	assert.Equal(t, "2025-01-31", e.Membership.Window.Start.String())
	assert.Equal(t, "2025-02-28", e.Membership.Window.End.String())
	assert.Equal(t, membership.StateActive, e.Membership.State)
	assert.NotEmpty(t, e.Membership.ID)
}

func TestPlan_AdvanceRenewalStartsAfterCurrentEnd(t *testing.T) {
	// GIVEN: A membership running until March 31
	// WHEN: The member renews on March 28
	// THEN: The renewal starts April 1, without enrollment fee

	current := monthly(day(2025, time.February, 28))
	current.Window.End = day(2025, time.March, 31)

	e, err := membership.Plan(membership.EnrollRequest{
		Package:  mensual,
		Movement: pricing.Reinscripcion,
		Current:  current,
		Today:    day(2025, time.March, 28),
	})
	require.NoError(t, err)

	assert.Equal(t, "499.00", e.Quotation.Total.String())
	assert.Equal(t, "2025-04-01", e.Membership.Window.Start.String())
	assert.Equal(t, "2025-05-01", e.Membership.Window.End.String())
}

func TestPlan_LapsedRenewalStartsToday(t *testing.T) {
	current := monthly(day(2025, time.January, 1))
	e, err := membership.Plan(membership.EnrollRequest{
		Package:  mensual,
		Movement: pricing.Reinscripcion,
		Current:  current,
		Today:    day(2025, time.March, 28),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-28", e.Membership.Window.Start.String())
}

func TestPlan_ExplicitStartWins(t *testing.T) {
	e, err := membership.Plan(membership.EnrollRequest{
		Package:  mensual,
		Movement: pricing.Reinscripcion,
		Current:  monthly(day(2025, time.March, 1)),
		Start:    day(2025, time.March, 15),
		Today:    day(2025, time.March, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", e.Membership.Window.Start.String())
}

func TestPlan_VisitPass(t *testing.T) {
	pass := pricing.Package{ID: "diez", Price: generic.MustParseMoney("550"), Duration: pricing.TenVisits}
	e, err := membership.Plan(membership.EnrollRequest{
		Package:  pass,
		Movement: pricing.Inscripcion,
		Current:  monthly(day(2025, time.March, 1)),
		Today:    day(2025, time.March, 10),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, e.Membership.VisitsRemaining)
	assert.Equal(t, "2025-03-10", e.Membership.Window.Start.String())
	assert.Equal(t, e.Membership.Window.Start, e.Membership.Window.End)

	e.Membership.Consume()
	assert.Equal(t, 9, e.Membership.VisitsRemaining)
}

func TestPlan_NegativeTotalRejected(t *testing.T) {
	_, err := membership.Plan(membership.EnrollRequest{
		Package:  mensual,
		Movement: pricing.Reinscripcion,
		Discount: generic.MustParseMoney("500.00"),
		Today:    day(2025, time.March, 10),
	})
	assert.ErrorIs(t, err, generic.ErrNegativeTotal)
}

func TestSweep(t *testing.T) {
	today := day(2025, time.March, 10)
	assert.True(t, membership.Sweep(*monthly(day(2025, time.January, 1)), today))
	assert.False(t, membership.Sweep(*monthly(day(2025, time.March, 1)), today))

	expired := monthly(day(2025, time.January, 1))
	expired.State = membership.StateExpired
	assert.False(t, membership.Sweep(*expired, today), "already marked")
}

func TestCurrent_PrefersRunningOverAdvanceRenewal(t *testing.T) {
	today := day(2025, time.March, 20)
	running := *monthly(day(2025, time.March, 1))
	renewal := *monthly(day(2025, time.April, 2))
	cancelled := *monthly(day(2025, time.March, 10))
	cancelled.State = membership.StateCancelled

	got := membership.Current([]membership.Membership{renewal, cancelled, running}, today)
	require.NotNil(t, got)
	assert.Equal(t, running.Window, got.Window)

	latest := membership.Latest([]membership.Membership{running, renewal, cancelled})
	require.NotNil(t, latest)
	assert.Equal(t, renewal.Window, latest.Window)
}

func TestCurrent_FallsBackToLatestForDenial(t *testing.T) {
	old := *monthly(day(2024, time.December, 1))
	got := membership.Current([]membership.Membership{old}, day(2025, time.March, 20))
	require.NotNil(t, got)

	d := membership.Gate(membership.GateInput{MemberActive: true, Membership: got, Today: day(2025, time.March, 20)})
	assert.Equal(t, membership.ReasonExpired, d.Reason)

	assert.Nil(t, membership.Current(nil, day(2025, time.March, 20)))
}
