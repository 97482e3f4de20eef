/*
ledger.go - Append-only movement log

PURPOSE:
  The Ledger is the source of truth for money that entered or left a cash
  register. Sales, manual cash in/out and cancellations all become
  movements. Register totals are always computed by replaying movements,
  there is no stored running total that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same movement (no duplicates)
  3. REVERSIBLE: A cancelled sale gets reversal movements of opposite sign

EXAMPLE FLOW:
  1. Register opens with 500.00 float:    open_float CASH +500.00
  2. Membership sold, split cash/card:    sale CASH +300.00, sale CARD +199.00
  3. Sale cancelled:                      reversal CASH -300.00, reversal CARD -199.00
  4. Petty cash withdrawn:                cash_out CASH -50.00

  Expected cash at close: 500 + 300 - 300 - 50 = 450.00

SEE ALSO:
  - store.go: Low-level persistence interface
  - cashregister/session.go: Close-out using ledger totals
*/
package generic

import "context"

// Ledger is the append-only record of register movements.
type Ledger interface {
	Append(ctx context.Context, m Movement) error
	AppendBatch(ctx context.Context, ms []Movement) error

	// Movements returns a session's movements in insertion order.
	Movements(ctx context.Context, tenantID TenantID, sessionID SessionID) ([]Movement, error)

	// MovementsInRange returns a tenant's movements effective in [from, to].
	MovementsInRange(ctx context.Context, tenantID TenantID, from, to Date) ([]Movement, error)

	// TotalsByMethod nets a session's movements per payment method.
	TotalsByMethod(ctx context.Context, tenantID TenantID, sessionID SessionID) (map[string]Money, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, m Movement) error {
	if m.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, m.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, m)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, ms []Movement) error {
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m.IdempotencyKey == "" {
			continue
		}
		if seen[m.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[m.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, m.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, ms)
}

func (l *DefaultLedger) Movements(ctx context.Context, tenantID TenantID, sessionID SessionID) ([]Movement, error) {
	return l.Store.LoadSession(ctx, tenantID, sessionID)
}

func (l *DefaultLedger) MovementsInRange(ctx context.Context, tenantID TenantID, from, to Date) ([]Movement, error) {
	return l.Store.LoadRange(ctx, tenantID, from, to)
}

func (l *DefaultLedger) TotalsByMethod(ctx context.Context, tenantID TenantID, sessionID SessionID) (map[string]Money, error) {
	ms, err := l.Store.LoadSession(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	return NetByMethod(ms), nil
}

// NetByMethod sums signed movement amounts per method, rounded once per method.
func NetByMethod(ms []Movement) map[string]Money {
	totals := make(map[string]Money)
	for _, m := range ms {
		totals[m.Method] = totals[m.Method].Add(m.Amount)
	}
	for k, v := range totals {
		totals[k] = v.Round2()
	}
	return totals
}
