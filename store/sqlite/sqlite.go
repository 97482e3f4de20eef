/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists every gym record: members, the package catalog, memberships,
  products, sales, the movement ledger, cash sessions, check-ins and
  expiry runs. All of it is tenant-scoped; every query filters by tenant.

INTERFACES IMPLEMENTED:
  generic.Store:              Movement persistence (Store and Tx)
  generic.TxStore:            Atomic movement batches
  cashregister.SessionStore:  Cash sessions (Store and Tx)

APPEND-ONLY ENFORCEMENT:
  The movements table is never updated or deleted from:
  - Cancellations append reversal movements
  - A movement can be reversed once (unique reverses_id)
  - Idempotency keys are unique

KEY TABLES:
  movements:       Immutable ledger of money in and out of registers
  sales:           Tickets, including membership sales
  memberships:     Sold plans and their windows
  cash_sessions:   One open session per tenant (partial unique index)
  packages:        Catalog definitions stored as JSON (versioned)

TRANSACTIONS:
  View runs read-only work, Atomic runs a function inside one SQL
  transaction. Both hand the function a *Tx exposing every query, so an
  enrollment writes its sale, membership and movements together or not
  at all.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so
  ":memory:" databases behave like files.

USAGE:
  store, err := sqlite.New("./data/gymdesk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/payment"
	"github.com/warp/gym-desk/pos"
	"github.com/warp/gym-desk/pricing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		session_id TEXT,
		sale_id TEXT,
		method TEXT NOT NULL,
		amount TEXT NOT NULL,
		mov_type TEXT NOT NULL,
		reason TEXT,
		reverses_id TEXT,
		idempotency_key TEXT UNIQUE,
		effective_at TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_session
		ON movements(tenant_id, session_id);
	CREATE INDEX IF NOT EXISTS idx_movements_effective_at
		ON movements(tenant_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_movements_sale
		ON movements(sale_id) WHERE sale_id IS NOT NULL;

	-- A movement is reversed at most once
	CREATE UNIQUE INDEX IF NOT EXISTS idx_movements_reverses
		ON movements(reverses_id) WHERE reverses_id IS NOT NULL;

	-- Members
	CREATE TABLE IF NOT EXISTS members (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_members_name
		ON members(tenant_id, name);

	-- Packages (catalog, JSON config)
	CREATE TABLE IF NOT EXISTS packages (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Memberships
	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		package_id TEXT NOT NULL,
		sale_id TEXT,
		movement TEXT NOT NULL,
		duration TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		visits_remaining INTEGER NOT NULL DEFAULT 0,
		access_days TEXT,
		total TEXT NOT NULL,
		discount TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_memberships_member
		ON memberships(tenant_id, member_id, end_date DESC);
	CREATE INDEX IF NOT EXISTS idx_memberships_state
		ON memberships(state);
	CREATE INDEX IF NOT EXISTS idx_memberships_sale
		ON memberships(sale_id) WHERE sale_id IS NOT NULL;

	-- Products and services
	CREATE TABLE IF NOT EXISTS products (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		sku TEXT,
		kind TEXT NOT NULL,
		price TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	-- Inventory counts
	CREATE TABLE IF NOT EXISTS inventory_counts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		previous INTEGER NOT NULL,
		counted INTEGER NOT NULL,
		difference INTEGER NOT NULL,
		counted_by TEXT,
		counted_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_inventory_counts_product
		ON inventory_counts(tenant_id, product_id, counted_at DESC);

	-- Sales
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		session_id TEXT,
		kind TEXT NOT NULL,
		member_id TEXT,
		items_json TEXT,
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		payments_json TEXT,
		status TEXT NOT NULL DEFAULT 'completed',
		idempotency_key TEXT UNIQUE,
		effective_at TEXT NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL,
		cancelled_at TEXT,
		cancel_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_tenant_date
		ON sales(tenant_id, effective_at);

	-- Cash sessions
	CREATE TABLE IF NOT EXISTS cash_sessions (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		opened_by TEXT,
		opening_float TEXT NOT NULL,
		state TEXT NOT NULL,
		opened_at TEXT NOT NULL,
		closed_by TEXT,
		closed_at TEXT,
		expected TEXT,
		declared TEXT,
		deviation TEXT,
		classification TEXT,
		notes TEXT
	);

	-- CRITICAL: one open session per tenant
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_open
		ON cash_sessions(tenant_id) WHERE state = 'abierta';

	-- Check-ins
	CREATE TABLE IF NOT EXISTS checkins (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		membership_id TEXT,
		checkin_date TEXT NOT NULL,
		checked_at TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checkins_date
		ON checkins(tenant_id, checkin_date);

	-- Expiry runs (scheduler)
	CREATE TABLE IF NOT EXISTS status_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		ran_at TEXT NOT NULL,
		checked INTEGER NOT NULL DEFAULT 0,
		near INTEGER NOT NULL DEFAULT 0,
		expired INTEGER NOT NULL DEFAULT 0,
		marked INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx exposes every query over either the database or an open transaction.
type Tx struct {
	db dbtx
}

var (
	_ generic.TxStore           = (*Store)(nil)
	_ generic.Store             = (*Tx)(nil)
	_ cashregister.SessionStore = (*Tx)(nil)
	_ cashregister.SessionStore = (*Store)(nil)
)

// View runs fn with read access.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{db: s.db})
}

// Atomic runs fn inside a single database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{db: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// WithTx implements generic.TxStore.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	return s.Atomic(ctx, func(tx *Tx) error { return fn(tx) })
}

func view[T any](ctx context.Context, s *Store, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func (s *Store) write(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{db: s.db})
}

// =============================================================================
// MOVEMENT STORE (generic.Store interface)
// =============================================================================

// Append adds a movement to the ledger.
func (t *Tx) Append(ctx context.Context, m generic.Movement) error {
	query := `
		INSERT INTO movements
		(id, tenant_id, session_id, sale_id, method, amount, mov_type, reason,
		 reverses_id, idempotency_key, effective_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := t.db.ExecContext(ctx, query,
		m.ID,
		m.TenantID,
		nullString(string(m.SessionID)),
		nullString(string(m.SaleID)),
		m.Method,
		m.Amount.String(),
		m.Type,
		nullString(m.Reason),
		nullString(string(m.ReversesID)),
		nullString(m.IdempotencyKey),
		m.EffectiveAt.String(),
		nullString(m.CreatedBy),
		nowString(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "reverses_id") {
				return generic.ErrAlreadyReversed
			}
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// AppendBatch adds movements in order. Atomic only inside Store.Atomic.
func (t *Tx) AppendBatch(ctx context.Context, ms []generic.Movement) error {
	keys := make(map[string]bool)
	for _, m := range ms {
		if m.IdempotencyKey == "" {
			continue
		}
		if keys[m.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		keys[m.IdempotencyKey] = true
	}
	for _, m := range ms {
		if err := t.Append(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

const movementColumns = `id, tenant_id, session_id, sale_id, method, amount, mov_type, reason,
	reverses_id, idempotency_key, effective_at, created_by`

// LoadSession returns a session's movements in insertion order.
func (t *Tx) LoadSession(ctx context.Context, tenantID generic.TenantID, sessionID generic.SessionID) ([]generic.Movement, error) {
	return t.queryMovements(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE tenant_id = ? AND session_id = ? ORDER BY rowid ASC",
		tenantID, sessionID)
}

// LoadRange returns a tenant's movements effective in [from, to].
func (t *Tx) LoadRange(ctx context.Context, tenantID generic.TenantID, from, to generic.Date) ([]generic.Movement, error) {
	return t.queryMovements(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE tenant_id = ? AND effective_at >= ? AND effective_at <= ? ORDER BY effective_at ASC, rowid ASC",
		tenantID, from.String(), to.String())
}

// MovementsBySale returns the movements recorded for a sale.
func (t *Tx) MovementsBySale(ctx context.Context, tenantID generic.TenantID, saleID generic.SaleID) ([]generic.Movement, error) {
	return t.queryMovements(ctx,
		"SELECT "+movementColumns+" FROM movements WHERE tenant_id = ? AND sale_id = ? ORDER BY rowid ASC",
		tenantID, saleID)
}

// Exists checks if an idempotency key exists.
func (t *Tx) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := t.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movements WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (t *Tx) queryMovements(ctx context.Context, query string, args ...any) ([]generic.Movement, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []generic.Movement
	for rows.Next() {
		var (
			m                                             generic.Movement
			sessionID, saleID, reason, reverses, key, by sql.NullString
			amount, effective                             string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &sessionID, &saleID, &m.Method, &amount, &m.Type,
			&reason, &reverses, &key, &effective, &by); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.SessionID = generic.SessionID(sessionID.String)
		m.SaleID = generic.SaleID(saleID.String)
		m.Amount = generic.MustParseMoney(amount)
		m.Reason = reason.String
		m.ReversesID = generic.MovementID(reverses.String)
		m.IdempotencyKey = key.String
		m.EffectiveAt, _ = generic.ParseDate(effective)
		m.CreatedBy = by.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Append(ctx context.Context, m generic.Movement) error {
	return s.write(ctx, func(tx *Tx) error { return tx.Append(ctx, m) })
}

func (s *Store) AppendBatch(ctx context.Context, ms []generic.Movement) error {
	return s.Atomic(ctx, func(tx *Tx) error { return tx.AppendBatch(ctx, ms) })
}

func (s *Store) LoadSession(ctx context.Context, tenantID generic.TenantID, sessionID generic.SessionID) ([]generic.Movement, error) {
	return view(ctx, s, func(tx *Tx) ([]generic.Movement, error) { return tx.LoadSession(ctx, tenantID, sessionID) })
}

func (s *Store) LoadRange(ctx context.Context, tenantID generic.TenantID, from, to generic.Date) ([]generic.Movement, error) {
	return view(ctx, s, func(tx *Tx) ([]generic.Movement, error) { return tx.LoadRange(ctx, tenantID, from, to) })
}

func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return view(ctx, s, func(tx *Tx) (bool, error) { return tx.Exists(ctx, idempotencyKey) })
}

// =============================================================================
// MEMBER STORE
// =============================================================================

// SaveMember inserts or updates a member.
func (t *Tx) SaveMember(ctx context.Context, m membership.Member) error {
	query := `
		INSERT INTO members (tenant_id, id, name, email, phone, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			active = excluded.active
	`
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := t.db.ExecContext(ctx, query,
		m.TenantID, m.ID, m.Name, nullString(m.Email), nullString(m.Phone), m.Active,
		created.UTC().Format(time.RFC3339),
	)
	return err
}

// GetMember retrieves a member or returns ErrMemberNotFound.
func (t *Tx) GetMember(ctx context.Context, tenantID generic.TenantID, id generic.MemberID) (*membership.Member, error) {
	ms, err := t.queryMembers(ctx,
		"SELECT tenant_id, id, name, email, phone, active, created_at FROM members WHERE tenant_id = ? AND id = ?",
		tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(ms) == 0 {
		return nil, generic.ErrMemberNotFound
	}
	return &ms[0], nil
}

// ListMembers returns a tenant's members, optionally filtered by name.
func (t *Tx) ListMembers(ctx context.Context, tenantID generic.TenantID, search string) ([]membership.Member, error) {
	return t.queryMembers(ctx,
		"SELECT tenant_id, id, name, email, phone, active, created_at FROM members WHERE tenant_id = ? AND name LIKE ? ORDER BY name",
		tenantID, "%"+search+"%")
}

func (t *Tx) queryMembers(ctx context.Context, query string, args ...any) ([]membership.Member, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []membership.Member
	for rows.Next() {
		var (
			m            membership.Member
			email, phone sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&m.TenantID, &m.ID, &m.Name, &email, &phone, &m.Active, &createdAt); err != nil {
			return nil, err
		}
		m.Email = email.String
		m.Phone = phone.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveMember(ctx context.Context, m membership.Member) error {
	return s.write(ctx, func(tx *Tx) error { return tx.SaveMember(ctx, m) })
}

func (s *Store) GetMember(ctx context.Context, tenantID generic.TenantID, id generic.MemberID) (*membership.Member, error) {
	return view(ctx, s, func(tx *Tx) (*membership.Member, error) { return tx.GetMember(ctx, tenantID, id) })
}

func (s *Store) ListMembers(ctx context.Context, tenantID generic.TenantID, search string) ([]membership.Member, error) {
	return view(ctx, s, func(tx *Tx) ([]membership.Member, error) { return tx.ListMembers(ctx, tenantID, search) })
}

// =============================================================================
// PACKAGE STORE
// =============================================================================

// SavePackage saves a package, bumping its version on update.
func (t *Tx) SavePackage(ctx context.Context, pkg pricing.Package) error {
	configJSON, err := json.Marshal(factory.NewPackageFactory().ToJSON(&pkg))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO packages (tenant_id, id, name, config_json, active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			active = excluded.active,
			version = packages.version + 1,
			updated_at = excluded.updated_at
	`
	now := nowString()
	_, err = t.db.ExecContext(ctx, query, pkg.TenantID, pkg.ID, pkg.Name, string(configJSON), pkg.Active, now, now)
	return err
}

// GetPackage retrieves a package or returns ErrPackageNotFound.
func (t *Tx) GetPackage(ctx context.Context, tenantID generic.TenantID, id generic.PackageID) (*pricing.Package, error) {
	pkgs, err := t.queryPackages(ctx,
		"SELECT tenant_id, config_json FROM packages WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, generic.ErrPackageNotFound
	}
	return &pkgs[0], nil
}

// ListPackages returns a tenant's catalog ordered by name.
func (t *Tx) ListPackages(ctx context.Context, tenantID generic.TenantID, activeOnly bool) ([]pricing.Package, error) {
	query := "SELECT tenant_id, config_json FROM packages WHERE tenant_id = ?"
	if activeOnly {
		query += " AND active = TRUE"
	}
	return t.queryPackages(ctx, query+" ORDER BY name", tenantID)
}

func (t *Tx) queryPackages(ctx context.Context, query string, args ...any) ([]pricing.Package, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	f := factory.NewPackageFactory()
	var out []pricing.Package
	for rows.Next() {
		var tenant, configJSON string
		if err := rows.Scan(&tenant, &configJSON); err != nil {
			return nil, err
		}
		pkg, err := f.ParsePackage(configJSON)
		if err != nil {
			return nil, err
		}
		pkg.TenantID = generic.TenantID(tenant)
		out = append(out, *pkg)
	}
	return out, rows.Err()
}

func (s *Store) SavePackage(ctx context.Context, pkg pricing.Package) error {
	return s.write(ctx, func(tx *Tx) error { return tx.SavePackage(ctx, pkg) })
}

func (s *Store) GetPackage(ctx context.Context, tenantID generic.TenantID, id generic.PackageID) (*pricing.Package, error) {
	return view(ctx, s, func(tx *Tx) (*pricing.Package, error) { return tx.GetPackage(ctx, tenantID, id) })
}

func (s *Store) ListPackages(ctx context.Context, tenantID generic.TenantID, activeOnly bool) ([]pricing.Package, error) {
	return view(ctx, s, func(tx *Tx) ([]pricing.Package, error) { return tx.ListPackages(ctx, tenantID, activeOnly) })
}

// =============================================================================
// MEMBERSHIP STORE
// =============================================================================

// SaveMembership inserts or updates a membership.
func (t *Tx) SaveMembership(ctx context.Context, m membership.Membership) error {
	query := `
		INSERT INTO memberships
		(id, tenant_id, member_id, package_id, sale_id, movement, duration, start_date, end_date,
		 visits_remaining, access_days, total, discount, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			visits_remaining = excluded.visits_remaining,
			state = excluded.state
	`
	_, err := t.db.ExecContext(ctx, query,
		m.ID, m.TenantID, m.MemberID, m.PackageID, nullString(string(m.SaleID)),
		m.Movement, m.Duration, m.Window.Start.String(), m.Window.End.String(),
		m.VisitsRemaining, formatDays(m.AccessDays), m.Total.String(), m.Discount.String(),
		m.State, nowString(),
	)
	return err
}

const membershipColumns = `id, tenant_id, member_id, package_id, sale_id, movement, duration,
	start_date, end_date, visits_remaining, access_days, total, discount, state`

// MembershipsByMember returns a member's history, latest end first.
func (t *Tx) MembershipsByMember(ctx context.Context, tenantID generic.TenantID, memberID generic.MemberID) ([]membership.Membership, error) {
	return t.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE tenant_id = ? AND member_id = ? ORDER BY end_date DESC, created_at DESC",
		tenantID, memberID)
}

// MembershipsByTenant returns every non-cancelled membership of a tenant.
func (t *Tx) MembershipsByTenant(ctx context.Context, tenantID generic.TenantID) ([]membership.Membership, error) {
	return t.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE tenant_id = ? AND state != 'cancelled' ORDER BY member_id, end_date DESC",
		tenantID)
}

// ActiveMemberships returns active memberships across all tenants.
func (t *Tx) ActiveMemberships(ctx context.Context) ([]membership.Membership, error) {
	return t.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE state = 'active' ORDER BY tenant_id, end_date")
}

// MembershipBySale returns the membership a sale paid for, or nil.
func (t *Tx) MembershipBySale(ctx context.Context, tenantID generic.TenantID, saleID generic.SaleID) (*membership.Membership, error) {
	ms, err := t.queryMemberships(ctx,
		"SELECT "+membershipColumns+" FROM memberships WHERE tenant_id = ? AND sale_id = ?", tenantID, saleID)
	if err != nil || len(ms) == 0 {
		return nil, err
	}
	return &ms[0], nil
}

// SetMembershipState updates a membership's stored state.
func (t *Tx) SetMembershipState(ctx context.Context, id string, state membership.State) error {
	_, err := t.db.ExecContext(ctx, "UPDATE memberships SET state = ? WHERE id = ?", state, id)
	return err
}

func (t *Tx) queryMemberships(ctx context.Context, query string, args ...any) ([]membership.Membership, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []membership.Membership
	for rows.Next() {
		var (
			m                           membership.Membership
			saleID, days                sql.NullString
			start, end, total, discount string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.MemberID, &m.PackageID, &saleID, &m.Movement, &m.Duration,
			&start, &end, &m.VisitsRemaining, &days, &total, &discount, &m.State); err != nil {
			return nil, err
		}
		m.SaleID = generic.SaleID(saleID.String)
		m.Window.Start, _ = generic.ParseDate(start)
		m.Window.End, _ = generic.ParseDate(end)
		m.AccessDays = parseDays(days.String)
		m.Total = generic.MustParseMoney(total)
		m.Discount = generic.MustParseMoney(discount)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MembershipsByMember(ctx context.Context, tenantID generic.TenantID, memberID generic.MemberID) ([]membership.Membership, error) {
	return view(ctx, s, func(tx *Tx) ([]membership.Membership, error) {
		return tx.MembershipsByMember(ctx, tenantID, memberID)
	})
}

func (s *Store) MembershipsByTenant(ctx context.Context, tenantID generic.TenantID) ([]membership.Membership, error) {
	return view(ctx, s, func(tx *Tx) ([]membership.Membership, error) { return tx.MembershipsByTenant(ctx, tenantID) })
}

func (s *Store) ActiveMemberships(ctx context.Context) ([]membership.Membership, error) {
	return view(ctx, s, func(tx *Tx) ([]membership.Membership, error) { return tx.ActiveMemberships(ctx) })
}

// =============================================================================
// PRODUCT STORE
// =============================================================================

// SaveProduct inserts or updates a product.
func (t *Tx) SaveProduct(ctx context.Context, p pos.Product) error {
	query := `
		INSERT INTO products (tenant_id, id, name, sku, kind, price, stock, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			sku = excluded.sku,
			kind = excluded.kind,
			price = excluded.price,
			stock = excluded.stock,
			active = excluded.active,
			updated_at = excluded.updated_at
	`
	now := nowString()
	_, err := t.db.ExecContext(ctx, query,
		p.TenantID, p.ID, p.Name, nullString(p.SKU), p.Kind, p.Price.String(), p.Stock, p.Active, now, now)
	return err
}

// GetProduct retrieves a product or returns ErrProductNotFound.
func (t *Tx) GetProduct(ctx context.Context, tenantID generic.TenantID, id generic.ProductID) (*pos.Product, error) {
	ps, err := t.queryProducts(ctx,
		"SELECT tenant_id, id, name, sku, kind, price, stock, active FROM products WHERE tenant_id = ? AND id = ?",
		tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrProductNotFound, id)
	}
	return &ps[0], nil
}

// ListProducts returns a tenant's products ordered by name.
func (t *Tx) ListProducts(ctx context.Context, tenantID generic.TenantID) ([]pos.Product, error) {
	return t.queryProducts(ctx,
		"SELECT tenant_id, id, name, sku, kind, price, stock, active FROM products WHERE tenant_id = ? ORDER BY name",
		tenantID)
}

// SetStock overwrites a product's stock level.
func (t *Tx) SetStock(ctx context.Context, tenantID generic.TenantID, id generic.ProductID, stock int) error {
	res, err := t.db.ExecContext(ctx,
		"UPDATE products SET stock = ?, updated_at = ? WHERE tenant_id = ? AND id = ?",
		stock, nowString(), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrProductNotFound, id)
	}
	return nil
}

// AdjustStock applies deltas, failing on the first product that would go negative.
func (t *Tx) AdjustStock(ctx context.Context, tenantID generic.TenantID, deltas []pos.StockDelta) error {
	for _, d := range deltas {
		p, err := t.GetProduct(ctx, tenantID, d.ProductID)
		if err != nil {
			return err
		}
		next, err := pos.Apply(*p, d.Delta)
		if err != nil {
			return err
		}
		if err := t.SetStock(ctx, tenantID, p.ID, next); err != nil {
			return err
		}
	}
	return nil
}

// SaveCount records an inventory count.
func (t *Tx) SaveCount(ctx context.Context, c pos.Count) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO inventory_counts (id, tenant_id, product_id, previous, counted, difference, counted_by, counted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.ProductID, c.Previous, c.Counted, c.Difference, nullString(c.CountedBy),
		c.At.UTC().Format(time.RFC3339))
	return err
}

// ListCounts returns a product's counts, newest first.
func (t *Tx) ListCounts(ctx context.Context, tenantID generic.TenantID, productID generic.ProductID) ([]pos.Count, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, tenant_id, product_id, previous, counted, difference, counted_by, counted_at
		FROM inventory_counts WHERE tenant_id = ? AND product_id = ? ORDER BY counted_at DESC`,
		tenantID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pos.Count
	for rows.Next() {
		var (
			c  pos.Count
			by sql.NullString
			at string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ProductID, &c.Previous, &c.Counted, &c.Difference, &by, &at); err != nil {
			return nil, err
		}
		c.CountedBy = by.String
		c.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *Tx) queryProducts(ctx context.Context, query string, args ...any) ([]pos.Product, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pos.Product
	for rows.Next() {
		var (
			p     pos.Product
			sku   sql.NullString
			price string
		)
		if err := rows.Scan(&p.TenantID, &p.ID, &p.Name, &sku, &p.Kind, &price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		p.SKU = sku.String
		p.Price = generic.MustParseMoney(price)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveProduct(ctx context.Context, p pos.Product) error {
	return s.write(ctx, func(tx *Tx) error { return tx.SaveProduct(ctx, p) })
}

func (s *Store) GetProduct(ctx context.Context, tenantID generic.TenantID, id generic.ProductID) (*pos.Product, error) {
	return view(ctx, s, func(tx *Tx) (*pos.Product, error) { return tx.GetProduct(ctx, tenantID, id) })
}

func (s *Store) ListProducts(ctx context.Context, tenantID generic.TenantID) ([]pos.Product, error) {
	return view(ctx, s, func(tx *Tx) ([]pos.Product, error) { return tx.ListProducts(ctx, tenantID) })
}

// =============================================================================
// SALE STORE
// =============================================================================

type tenderRow struct {
	Method string `json:"method"`
	Amount string `json:"amount"`
}

type itemRow struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Amount    string `json:"amount"`
}

// SaveSale inserts a sale. A reused idempotency key is ErrDuplicateIdempotencyKey.
func (t *Tx) SaveSale(ctx context.Context, s pos.Sale) error {
	items := make([]itemRow, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, itemRow{
			ProductID: string(it.ProductID), Name: it.Name, Quantity: it.Quantity,
			UnitPrice: it.UnitPrice.String(), Amount: it.Amount.String(),
		})
	}
	tenders := make([]tenderRow, 0, len(s.Payments))
	for _, p := range s.Payments {
		tenders = append(tenders, tenderRow{Method: string(p.Method), Amount: p.Amount.String()})
	}
	itemsJSON, _ := json.Marshal(items)
	paymentsJSON, _ := json.Marshal(tenders)

	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO sales
		(id, tenant_id, session_id, kind, member_id, items_json, subtotal, discount, total,
		 payments_json, status, idempotency_key, effective_at, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TenantID, nullString(string(s.SessionID)), s.Kind, nullString(string(s.MemberID)),
		string(itemsJSON), s.Subtotal.String(), s.Discount.String(), s.Total.String(),
		string(paymentsJSON), s.Status, nullString(s.IdempotencyKey), s.EffectiveAt.String(),
		nullString(s.CreatedBy), created.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to save sale: %w", err)
	}
	return nil
}

const saleColumns = `id, tenant_id, session_id, kind, member_id, items_json, subtotal, discount, total,
	payments_json, status, idempotency_key, effective_at, created_by, created_at, cancelled_at, cancel_reason`

// GetSale retrieves a sale or returns ErrSaleNotFound.
func (t *Tx) GetSale(ctx context.Context, tenantID generic.TenantID, id generic.SaleID) (*pos.Sale, error) {
	sales, err := t.querySales(ctx, "SELECT "+saleColumns+" FROM sales WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, generic.ErrSaleNotFound
	}
	return &sales[0], nil
}

// SaleByIdempotencyKey returns the sale recorded under key, or nil.
func (t *Tx) SaleByIdempotencyKey(ctx context.Context, tenantID generic.TenantID, key string) (*pos.Sale, error) {
	sales, err := t.querySales(ctx, "SELECT "+saleColumns+" FROM sales WHERE tenant_id = ? AND idempotency_key = ?", tenantID, key)
	if err != nil || len(sales) == 0 {
		return nil, err
	}
	return &sales[0], nil
}

// ListSales returns a tenant's sales effective in [from, to], newest first.
func (t *Tx) ListSales(ctx context.Context, tenantID generic.TenantID, from, to generic.Date) ([]pos.Sale, error) {
	return t.querySales(ctx,
		"SELECT "+saleColumns+" FROM sales WHERE tenant_id = ? AND effective_at >= ? AND effective_at <= ? ORDER BY created_at DESC, rowid DESC",
		tenantID, from.String(), to.String())
}

// CancelSale marks a sale cancelled. The ledger reversal is separate.
func (t *Tx) CancelSale(ctx context.Context, tenantID generic.TenantID, id generic.SaleID, at time.Time, reason string) error {
	res, err := t.db.ExecContext(ctx, `
		UPDATE sales SET status = ?, cancelled_at = ?, cancel_reason = ?
		WHERE tenant_id = ? AND id = ? AND status = ?`,
		pos.SaleCancelled, at.UTC().Format(time.RFC3339), nullString(reason), tenantID, id, pos.SaleCompleted)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrAlreadyReversed
	}
	return nil
}

func (t *Tx) querySales(ctx context.Context, query string, args ...any) ([]pos.Sale, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pos.Sale
	for rows.Next() {
		var (
			s                                                 pos.Sale
			sessionID, memberID, itemsJSON, paymentsJSON     sql.NullString
			key, by, cancelledAt, cancelReason               sql.NullString
			subtotal, discount, total, effective, createdAt string
		)
		if err := rows.Scan(&s.ID, &s.TenantID, &sessionID, &s.Kind, &memberID, &itemsJSON,
			&subtotal, &discount, &total, &paymentsJSON, &s.Status, &key, &effective, &by,
			&createdAt, &cancelledAt, &cancelReason); err != nil {
			return nil, err
		}
		s.SessionID = generic.SessionID(sessionID.String)
		s.MemberID = generic.MemberID(memberID.String)
		s.Subtotal = generic.MustParseMoney(subtotal)
		s.Discount = generic.MustParseMoney(discount)
		s.Total = generic.MustParseMoney(total)
		s.IdempotencyKey = key.String
		s.EffectiveAt, _ = generic.ParseDate(effective)
		s.CreatedBy = by.String
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		s.CancelReason = cancelReason.String
		if cancelledAt.Valid {
			at, _ := time.Parse(time.RFC3339, cancelledAt.String)
			s.CancelledAt = &at
		}

		var items []itemRow
		if itemsJSON.Valid {
			_ = json.Unmarshal([]byte(itemsJSON.String), &items)
		}
		for _, it := range items {
			s.Items = append(s.Items, pos.Item{
				ProductID: generic.ProductID(it.ProductID), Name: it.Name, Quantity: it.Quantity,
				UnitPrice: generic.MustParseMoney(it.UnitPrice), Amount: generic.MustParseMoney(it.Amount),
			})
		}
		var tenders []tenderRow
		if paymentsJSON.Valid {
			_ = json.Unmarshal([]byte(paymentsJSON.String), &tenders)
		}
		for _, p := range tenders {
			s.Payments = append(s.Payments, payment.Tender{Method: payment.Method(p.Method), Amount: generic.MustParseMoney(p.Amount)})
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) GetSale(ctx context.Context, tenantID generic.TenantID, id generic.SaleID) (*pos.Sale, error) {
	return view(ctx, s, func(tx *Tx) (*pos.Sale, error) { return tx.GetSale(ctx, tenantID, id) })
}

func (s *Store) ListSales(ctx context.Context, tenantID generic.TenantID, from, to generic.Date) ([]pos.Sale, error) {
	return view(ctx, s, func(tx *Tx) ([]pos.Sale, error) { return tx.ListSales(ctx, tenantID, from, to) })
}

// =============================================================================
// CASH SESSION STORE (cashregister.SessionStore interface)
// =============================================================================

const sessionColumns = `id, tenant_id, opened_by, opening_float, state, opened_at, closed_by, closed_at,
	expected, declared, deviation, classification, notes`

// SaveSession inserts or updates a session. Opening a second session for
// a tenant is ErrSessionAlreadyOpen.
func (t *Tx) SaveSession(ctx context.Context, s cashregister.Session) error {
	var closedAt sql.NullString
	if s.ClosedAt != nil {
		closedAt = sql.NullString{String: s.ClosedAt.UTC().Format(time.RFC3339), Valid: true}
	}
	money := func(m generic.Money) sql.NullString {
		if s.State != cashregister.StateClosed {
			return sql.NullString{}
		}
		return sql.NullString{String: m.String(), Valid: true}
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO cash_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			closed_by = excluded.closed_by,
			closed_at = excluded.closed_at,
			expected = excluded.expected,
			declared = excluded.declared,
			deviation = excluded.deviation,
			classification = excluded.classification,
			notes = excluded.notes`,
		s.ID, s.TenantID, nullString(s.OpenedBy), s.OpeningFloat.String(), s.State,
		s.OpenedAt.UTC().Format(time.RFC3339), nullString(s.ClosedBy), closedAt,
		money(s.Expected), money(s.Declared), money(s.Deviation),
		nullString(string(s.Classification)), nullString(s.Notes),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrSessionAlreadyOpen
		}
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// OpenSession returns the tenant's open session, or nil.
func (t *Tx) OpenSession(ctx context.Context, tenantID generic.TenantID) (*cashregister.Session, error) {
	ss, err := t.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM cash_sessions WHERE tenant_id = ? AND state = ?",
		tenantID, cashregister.StateOpen)
	if err != nil || len(ss) == 0 {
		return nil, err
	}
	return &ss[0], nil
}

// GetSession returns a session, or nil when the tenant has no such session.
func (t *Tx) GetSession(ctx context.Context, tenantID generic.TenantID, id generic.SessionID) (*cashregister.Session, error) {
	ss, err := t.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM cash_sessions WHERE tenant_id = ? AND id = ?", tenantID, id)
	if err != nil || len(ss) == 0 {
		return nil, err
	}
	return &ss[0], nil
}

// ListSessions returns a tenant's sessions, newest first.
func (t *Tx) ListSessions(ctx context.Context, tenantID generic.TenantID) ([]cashregister.Session, error) {
	return t.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM cash_sessions WHERE tenant_id = ? ORDER BY opened_at DESC", tenantID)
}

func (t *Tx) querySessions(ctx context.Context, query string, args ...any) ([]cashregister.Session, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cashregister.Session
	for rows.Next() {
		var (
			s                                                 cashregister.Session
			openedBy, closedBy, closedAt                      sql.NullString
			expected, declared, deviation, class, notes       sql.NullString
			float, openedAt                                   string
		)
		if err := rows.Scan(&s.ID, &s.TenantID, &openedBy, &float, &s.State, &openedAt, &closedBy, &closedAt,
			&expected, &declared, &deviation, &class, &notes); err != nil {
			return nil, err
		}
		s.OpenedBy = openedBy.String
		s.OpeningFloat = generic.MustParseMoney(float)
		s.OpenedAt, _ = time.Parse(time.RFC3339, openedAt)
		s.ClosedBy = closedBy.String
		if closedAt.Valid {
			at, _ := time.Parse(time.RFC3339, closedAt.String)
			s.ClosedAt = &at
		}
		s.Expected = generic.MustParseMoney(expected.String)
		s.Declared = generic.MustParseMoney(declared.String)
		s.Deviation = generic.MustParseMoney(deviation.String)
		s.Classification = cashregister.Classification(class.String)
		s.Notes = notes.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) SaveSession(ctx context.Context, sess cashregister.Session) error {
	return s.write(ctx, func(tx *Tx) error { return tx.SaveSession(ctx, sess) })
}

func (s *Store) OpenSession(ctx context.Context, tenantID generic.TenantID) (*cashregister.Session, error) {
	return view(ctx, s, func(tx *Tx) (*cashregister.Session, error) { return tx.OpenSession(ctx, tenantID) })
}

func (s *Store) GetSession(ctx context.Context, tenantID generic.TenantID, id generic.SessionID) (*cashregister.Session, error) {
	return view(ctx, s, func(tx *Tx) (*cashregister.Session, error) { return tx.GetSession(ctx, tenantID, id) })
}

func (s *Store) ListSessions(ctx context.Context, tenantID generic.TenantID) ([]cashregister.Session, error) {
	return view(ctx, s, func(tx *Tx) ([]cashregister.Session, error) { return tx.ListSessions(ctx, tenantID) })
}

// =============================================================================
// CHECK-IN STORE
// =============================================================================

// SaveCheckIn records an admitted check-in.
func (t *Tx) SaveCheckIn(ctx context.Context, c membership.CheckIn) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO checkins (id, tenant_id, member_id, membership_id, checkin_date, checked_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.MemberID, nullString(c.MembershipID), c.Date.String(),
		c.At.UTC().Format(time.RFC3339), c.Status)
	return err
}

// ListCheckIns returns a tenant's check-ins for one day in arrival order.
func (t *Tx) ListCheckIns(ctx context.Context, tenantID generic.TenantID, day generic.Date) ([]membership.CheckIn, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT id, tenant_id, member_id, membership_id, checkin_date, checked_at, status
		FROM checkins WHERE tenant_id = ? AND checkin_date = ? ORDER BY checked_at ASC, rowid ASC`,
		tenantID, day.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []membership.CheckIn
	for rows.Next() {
		var (
			c            membership.CheckIn
			membershipID sql.NullString
			date, at     string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &c.MemberID, &membershipID, &date, &at, &c.Status); err != nil {
			return nil, err
		}
		c.MembershipID = membershipID.String
		c.Date, _ = generic.ParseDate(date)
		c.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) ListCheckIns(ctx context.Context, tenantID generic.TenantID, day generic.Date) ([]membership.CheckIn, error) {
	return view(ctx, s, func(tx *Tx) ([]membership.CheckIn, error) { return tx.ListCheckIns(ctx, tenantID, day) })
}

// =============================================================================
// STATUS RUN STORE
// =============================================================================

// StatusRun records one pass of the expiry scheduler.
type StatusRun struct {
	ID      string
	RunDate generic.Date
	RanAt   time.Time
	Checked int
	Near    int
	Expired int
	Marked  int
	Error   string
}

// SaveStatusRun records a scheduler run.
func (s *Store) SaveStatusRun(ctx context.Context, r StatusRun) error {
	return s.write(ctx, func(tx *Tx) error {
		_, err := tx.db.ExecContext(ctx, `
			INSERT INTO status_runs (id, run_date, ran_at, checked, near, expired, marked, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.RunDate.String(), r.RanAt.UTC().Format(time.RFC3339),
			r.Checked, r.Near, r.Expired, r.Marked, nullString(r.Error))
		return err
	})
}

// ListStatusRuns returns the most recent runs, newest first.
func (s *Store) ListStatusRuns(ctx context.Context, limit int) ([]StatusRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_date, ran_at, checked, near, expired, marked, error
		FROM status_runs ORDER BY ran_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []StatusRun
	for rows.Next() {
		var (
			r             StatusRun
			runDate, ran  string
			errText       sql.NullString
		)
		if err := rows.Scan(&r.ID, &runDate, &ran, &r.Checked, &r.Near, &r.Expired, &r.Marked, &errText); err != nil {
			return nil, err
		}
		r.RunDate, _ = generic.ParseDate(runDate)
		r.RanAt, _ = time.Parse(time.RFC3339, ran)
		r.Error = errText.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	return s.Atomic(ctx, func(tx *Tx) error {
		for _, table := range []string{
			"movements", "sales", "memberships", "members", "packages", "products",
			"inventory_counts", "cash_sessions", "checkins", "status_runs",
		} {
			if _, err := tx.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func formatDays(days []time.Weekday) string {
	codes := make([]string, 0, len(days))
	for _, d := range days {
		codes = append(codes, factory.WeekdayCode(d))
	}
	return strings.Join(codes, ",")
}

func parseDays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var out []time.Weekday
	for _, code := range strings.Split(s, ",") {
		if wd, ok := factory.ParseWeekday(code); ok {
			out = append(out, wd)
		}
	}
	return out
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
