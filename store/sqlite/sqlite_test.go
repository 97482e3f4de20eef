package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/payment"
	"github.com/warp/gym-desk/pos"
	"github.com/warp/gym-desk/pricing"
	"github.com/warp/gym-desk/store/sqlite"
)

const gym generic.TenantID = "gym-centro"

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) generic.Date { return generic.NewDate(y, m, d) }

func cash(id string, amount string) generic.Movement {
	return generic.Movement{
		ID:          generic.MovementID(id),
		TenantID:    gym,
		SessionID:   "caja-1",
		Method:      cashregister.CashMethod,
		Amount:      generic.MustParseMoney(amount),
		Type:        generic.MovSale,
		EffectiveAt: day(2025, time.March, 10),
	}
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_AppendAndLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ledger := generic.NewLedger(s)

	require.NoError(t, ledger.Append(ctx, cash("m1", "300.00")))
	require.NoError(t, ledger.Append(ctx, cash("m2", "-50.00")))

	ms, err := s.LoadSession(ctx, gym, "caja-1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, generic.MovementID("m1"), ms[0].ID)
	assert.Equal(t, "-50.00", ms[1].Amount.String())
	assert.Equal(t, "2025-03-10", ms[1].EffectiveAt.String())
	assert.Equal(t, "250.00", cashregister.ExpectedCash(ms).String())

	other, err := s.LoadSession(ctx, "gym-norte", "caja-1")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLedger_IdempotencyKeyIsUnique(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a := cash("m1", "100.00")
	a.IdempotencyKey = "venta-1:CASH"
	b := cash("m2", "100.00")
	b.IdempotencyKey = "venta-1:CASH"

	require.NoError(t, s.Append(ctx, a))
	assert.ErrorIs(t, s.Append(ctx, b), generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "venta-1:CASH")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLedger_ReversedOnce(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, cash("m1", "80.00")))
	rev := cash("r1", "-80.00")
	rev.Type = generic.MovReversal
	rev.ReversesID = "m1"
	require.NoError(t, s.Append(ctx, rev))

	again := rev
	again.ID = "r2"
	assert.ErrorIs(t, s.Append(ctx, again), generic.ErrAlreadyReversed)
}

func TestLedger_BatchIsAtomic(t *testing.T) {
	// GIVEN: A batch whose second movement collides with an existing key
	// WHEN: The batch is appended
	// THEN: Nothing from the batch is written

	s := newStore(t)
	ctx := context.Background()

	existing := cash("m0", "10.00")
	existing.IdempotencyKey = "k0"
	require.NoError(t, s.Append(ctx, existing))

	first := cash("m1", "20.00")
	first.IdempotencyKey = "k1"
	second := cash("m2", "30.00")
	second.IdempotencyKey = "k0"

	err := s.AppendBatch(ctx, []generic.Movement{first, second})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	ms, err := s.LoadSession(ctx, gym, "caja-1")
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.Append(ctx, cash("m1", "100.00")); err != nil {
			return err
		}
		return generic.ErrNoOpenSession
	})
	require.ErrorIs(t, err, generic.ErrNoOpenSession)

	ms, err := s.LoadSession(ctx, gym, "caja-1")
	require.NoError(t, err)
	assert.Empty(t, ms)

	require.NoError(t, s.WithTx(ctx, func(tx generic.Store) error {
		return tx.Append(ctx, cash("m1", "100.00"))
	}))
	ms, err = s.LoadSession(ctx, gym, "caja-1")
	require.NoError(t, err)
	assert.Len(t, ms, 1)
}

func TestLedger_LoadRange(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	early := cash("m1", "10.00")
	early.EffectiveAt = day(2025, time.March, 1)
	late := cash("m2", "20.00")
	late.EffectiveAt = day(2025, time.March, 31)
	require.NoError(t, s.AppendBatch(ctx, []generic.Movement{early, late}))

	ms, err := s.LoadRange(ctx, gym, day(2025, time.March, 1), day(2025, time.March, 15))
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, generic.MovementID("m1"), ms[0].ID)
}

// =============================================================================
// CATALOG AND MEMBERS
// =============================================================================

func TestMembers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMember(ctx, membership.Member{ID: "socio-1", TenantID: gym, Name: "Ana López", Active: true}))
	require.NoError(t, s.SaveMember(ctx, membership.Member{ID: "socio-2", TenantID: gym, Name: "Bruno Díaz", Phone: "555", Active: true}))

	m, err := s.GetMember(ctx, gym, "socio-2")
	require.NoError(t, err)
	assert.Equal(t, "555", m.Phone)

	_, err = s.GetMember(ctx, "gym-norte", "socio-2")
	assert.ErrorIs(t, err, generic.ErrMemberNotFound)

	found, err := s.ListMembers(ctx, gym, "Ana")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, generic.MemberID("socio-1"), found[0].ID)
}

func TestPackages_RoundTripAndActiveFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	weekend := pricing.Package{
		ID: "fin", TenantID: gym, Name: "Fin de semana", Duration: pricing.OneMonth,
		Price: generic.NewMoneyFromInt(350), AccessDays: []time.Weekday{time.Saturday, time.Sunday}, Active: true,
	}
	retired := pricing.Package{ID: "viejo", TenantID: gym, Name: "Viejo", Duration: pricing.OneWeek, Price: generic.NewMoneyFromInt(100)}

	require.NoError(t, s.SavePackage(ctx, weekend))
	require.NoError(t, s.SavePackage(ctx, retired))

	got, err := s.GetPackage(ctx, gym, "fin")
	require.NoError(t, err)
	assert.Equal(t, "350.00", got.Price.String())
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, got.AccessDays)
	assert.Equal(t, gym, got.TenantID)

	active, err := s.ListPackages(ctx, gym, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := s.ListPackages(ctx, gym, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetPackage(ctx, gym, "nada")
	assert.ErrorIs(t, err, generic.ErrPackageNotFound)
}

func TestMemberships(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	start := day(2025, time.March, 1)
	m := membership.Membership{
		ID: "mem-1", TenantID: gym, MemberID: "socio-1", PackageID: "mensual", SaleID: "venta-1",
		Movement: pricing.Inscripcion, Duration: pricing.OneMonth,
		Window:     generic.Window{Start: start, End: pricing.EndDate(start, pricing.OneMonth)},
		AccessDays: []time.Weekday{time.Monday}, Total: generic.NewMoneyFromInt(600), State: membership.StateActive,
	}
	require.NoError(t, s.Atomic(ctx, func(tx *sqlite.Tx) error { return tx.SaveMembership(ctx, m) }))

	ms, err := s.MembershipsByMember(ctx, gym, "socio-1")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "2025-04-01", ms[0].Window.End.String())
	assert.Equal(t, []time.Weekday{time.Monday}, ms[0].AccessDays)
	assert.Equal(t, "600.00", ms[0].Total.String())

	err = s.View(ctx, func(tx *sqlite.Tx) error {
		bySale, err := tx.MembershipBySale(ctx, gym, "venta-1")
		require.NoError(t, err)
		require.NotNil(t, bySale)
		assert.Equal(t, "mem-1", bySale.ID)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Atomic(ctx, func(tx *sqlite.Tx) error {
		return tx.SetMembershipState(ctx, "mem-1", membership.StateExpired)
	}))
	active, err := s.ActiveMemberships(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

// =============================================================================
// POS
// =============================================================================

func TestProducts_AdjustStock(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProduct(ctx, pos.Product{
		ID: "agua", TenantID: gym, Name: "Agua", Kind: pos.KindProduct, Price: generic.MustParseMoney("18.50"), Stock: 3, Active: true,
	}))

	err := s.Atomic(ctx, func(tx *sqlite.Tx) error {
		return tx.AdjustStock(ctx, gym, []pos.StockDelta{{ProductID: "agua", Delta: -2}})
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, func(tx *sqlite.Tx) error {
		return tx.AdjustStock(ctx, gym, []pos.StockDelta{{ProductID: "agua", Delta: -2}})
	})
	var short *generic.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Available)

	p, err := s.GetProduct(ctx, gym, "agua")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
	assert.Equal(t, "18.50", p.Price.String())

	_, err = s.GetProduct(ctx, gym, "nada")
	assert.ErrorIs(t, err, generic.ErrProductNotFound)
}

func TestSales_SaveCancelAndIdempotency(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sale := pos.Sale{
		ID: "venta-1", TenantID: gym, SessionID: "caja-1", Kind: pos.SaleProducts,
		Items: []pos.Item{{ProductID: "agua", Name: "Agua", Quantity: 2,
			UnitPrice: generic.MustParseMoney("18.50"), Amount: generic.MustParseMoney("37.00")}},
		Subtotal: generic.MustParseMoney("37.00"),
		Total:    generic.MustParseMoney("37.00"),
		Payments: []payment.Tender{{Method: payment.Cash, Amount: generic.MustParseMoney("37.00")}},
		Status:   pos.SaleCompleted, IdempotencyKey: "ticket-1", EffectiveAt: day(2025, time.March, 10),
	}
	require.NoError(t, s.Atomic(ctx, func(tx *sqlite.Tx) error { return tx.SaveSale(ctx, sale) }))

	dup := sale
	dup.ID = "venta-2"
	err := s.Atomic(ctx, func(tx *sqlite.Tx) error { return tx.SaveSale(ctx, dup) })
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)

	got, err := s.GetSale(ctx, gym, "venta-1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, payment.Cash, got.Payments[0].Method)
	assert.Equal(t, "37.00", got.Payments[0].Amount.String())

	cancel := func() error {
		return s.Atomic(ctx, func(tx *sqlite.Tx) error {
			return tx.CancelSale(ctx, gym, "venta-1", time.Now(), "error de cobro")
		})
	}
	require.NoError(t, cancel())
	assert.ErrorIs(t, cancel(), generic.ErrAlreadyReversed)

	got, err = s.GetSale(ctx, gym, "venta-1")
	require.NoError(t, err)
	assert.True(t, got.IsCancelled())
	assert.NotNil(t, got.CancelledAt)

	sales, err := s.ListSales(ctx, gym, day(2025, time.March, 1), day(2025, time.March, 31))
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

// =============================================================================
// CASH SESSIONS
// =============================================================================

func TestSessions_OneOpenPerTenant(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)

	open := cashregister.Session{
		ID: "caja-1", TenantID: gym, OpenedBy: "recepcion", OpeningFloat: generic.NewMoneyFromInt(500),
		State: cashregister.StateOpen, OpenedAt: now,
	}
	require.NoError(t, s.SaveSession(ctx, open))

	second := open
	second.ID = "caja-2"
	assert.ErrorIs(t, s.SaveSession(ctx, second), generic.ErrSessionAlreadyOpen)

	other := open
	other.ID = "caja-3"
	other.TenantID = "gym-norte"
	require.NoError(t, s.SaveSession(ctx, other))

	current, err := s.OpenSession(ctx, gym)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, generic.SessionID("caja-1"), current.ID)

	closedAt := now.Add(10 * time.Hour)
	open.State = cashregister.StateClosed
	open.ClosedAt = &closedAt
	open.Expected = generic.NewMoneyFromInt(750)
	open.Declared = generic.NewMoneyFromInt(748)
	open.Deviation, open.Classification = cashregister.Classify(open.Expected, open.Declared)
	require.NoError(t, s.SaveSession(ctx, open))

	current, err = s.OpenSession(ctx, gym)
	require.NoError(t, err)
	assert.Nil(t, current)

	closed, err := s.GetSession(ctx, gym, "caja-1")
	require.NoError(t, err)
	assert.Equal(t, "-2.00", closed.Deviation.String())
	assert.Equal(t, cashregister.Advertencia, closed.Classification)

	require.NoError(t, s.SaveSession(ctx, second))
}

// =============================================================================
// CHECK-INS AND RUNS
// =============================================================================

func TestCheckInsAndStatusRuns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	today := day(2025, time.March, 10)

	err := s.Atomic(ctx, func(tx *sqlite.Tx) error {
		return tx.SaveCheckIn(ctx, membership.CheckIn{
			ID: "chk-1", TenantID: gym, MemberID: "socio-1", MembershipID: "mem-1",
			Date: today, At: time.Now(), Status: membership.StatusAhead,
		})
	})
	require.NoError(t, err)

	list, err := s.ListCheckIns(ctx, gym, today)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, membership.StatusAhead, list[0].Status)

	require.NoError(t, s.SaveStatusRun(ctx, sqlite.StatusRun{ID: "run-1", RunDate: today, RanAt: time.Now(), Checked: 4, Marked: 1}))
	runs, err := s.ListStatusRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Marked)

	require.NoError(t, s.Reset(ctx))
	list, err = s.ListCheckIns(ctx, gym, today)
	require.NoError(t, err)
	assert.Empty(t, list)
}
