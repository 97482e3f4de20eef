/*
store.go - Persistence interface for cash register movements

PURPOSE:
  Defines the interface between the money-handling logic and the database.
  The Store persists movements with append-only semantics. The sqlite
  store implements it for production; store/memory.go for unit tests.

APPEND-ONLY CONTRACT:
  - Append(): Single movement write
  - AppendBatch(): Atomic multi-movement write (one sale, several tenders)
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Writes may carry an idempotency key. If the key already exists the write
  is rejected. A front desk double-click on "cobrar" must not charge twice.

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - store/sqlite/sqlite.go: Concrete implementation
*/
package generic

import "context"

// Store handles persistence of movements.
// IMPORTANT: Store is APPEND-ONLY. Corrections are reversal movements.
type Store interface {
	// Append persists a movement. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, m Movement) error

	// AppendBatch persists multiple movements atomically.
	AppendBatch(ctx context.Context, ms []Movement) error

	// LoadSession returns all movements of a cash session in insertion order.
	LoadSession(ctx context.Context, tenantID TenantID, sessionID SessionID) ([]Movement, error)

	// LoadRange returns a tenant's movements with EffectiveAt in [from, to].
	LoadRange(ctx context.Context, tenantID TenantID, from, to Date) ([]Movement, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. A non-nil error rolls back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
