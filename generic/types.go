/*
Package generic provides the tenant-agnostic core of the front-desk engine.

PURPOSE:
  This package contains the value types every gym workflow shares: money,
  calendar dates, membership windows, ledger movements and identifiers.
  Enrollment, renewal, point-of-sale and the cash register all build on
  these, so a total computed for a membership preview is the same value
  the cash register later sums.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: Currency amount (MXN) rounded to cents
  - Movement: An immutable ledger entry recording money in or out of a register
  - Tenant/Member/Package IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for arithmetic
  2. Rounding: Half away from zero at the cent boundary, applied once
  3. Immutability: Movements are never modified, only reversed
  4. Type Safety: Strong typing for IDs prevents mixing tenants and members

USAGE:
  price := generic.NewMoney(499)
  fee := generic.MustParseMoney("150.00")
  total := price.Add(fee).Round2()

SEE ALSO:
  - time.go: Calendar dates
  - period.go: Membership windows
  - ledger.go: Movement persistence interface
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal currency, compared and stored at cent precision
// =============================================================================

// Money is a currency amount. The zero value is 0.00.
type Money struct {
	Value decimal.Decimal
}

// Cent is the smallest stored currency unit (0.01).
var Cent = Money{Value: decimal.New(1, -2)}

func NewMoney(value float64) Money { return Money{Value: decimal.NewFromFloat(value)} }

func NewMoneyFromInt(value int64) Money { return Money{Value: decimal.NewFromInt(value)} }

// NewMoneyFromCents builds a Money from integer minor units (cents).
func NewMoneyFromCents(cents int64) Money { return Money{Value: decimal.New(cents, -2)} }

// ParseMoney parses a decimal string such as "1499.90".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{Value: d}, nil
}

// MustParseMoney parses s and returns zero on malformed input.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}
	}
	return m
}

// Round2 rounds to cents, half away from zero.
func (m Money) Round2() Money { return Money{Value: m.Value.Round(2)} }

func (m Money) Add(b Money) Money            { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money            { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Mul(s decimal.Decimal) Money  { return Money{Value: m.Value.Mul(s)} }
func (m Money) MulInt(n int) Money           { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n)))} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money                   { return Money{Value: m.Value.Abs()} }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool           { return m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool     { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool        { return m.Value.LessThan(b.Value) }
func (m Money) LessThanOrEqual(b Money) bool { return m.Value.LessThanOrEqual(b.Value) }

// Cents returns the amount in minor units after rounding to cents.
func (m Money) Cents() int64 { return m.Value.Round(2).Shift(2).IntPart() }

// Float64 is for JSON responses only. Never do arithmetic on the result.
func (m Money) Float64() float64 {
	f, _ := m.Value.Round(2).Float64()
	return f
}

// String formats with exactly two fraction digits.
func (m Money) String() string { return m.Value.StringFixed(2) }

// SumMoney adds amounts and rounds the result once.
func SumMoney(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Value)
	}
	return Money{Value: total}.Round2()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type MemberID string
type PackageID string
type ProductID string
type SaleID string
type SessionID string
type MovementID string

// =============================================================================
// MOVEMENT - Atomic change to a cash register's money
// =============================================================================

type MovementType string

const (
	MovSale      MovementType = "sale"       // Tender received for a sale or membership
	MovCashIn    MovementType = "cash_in"    // Manual cash deposit into the drawer
	MovCashOut   MovementType = "cash_out"   // Manual cash withdrawal (negative amount)
	MovReversal  MovementType = "reversal"   // Undo a previous sale tender
	MovOpenFloat MovementType = "open_float" // Opening float recorded when a session opens
)

// Movement is an immutable ledger entry. Amount is signed: money leaving
// the drawer is negative.
type Movement struct {
	ID             MovementID
	TenantID       TenantID
	SessionID      SessionID
	SaleID         SaleID
	Method         string // payment method code, see payment.Method
	Amount         Money
	Type           MovementType
	Reason         string
	ReversesID     MovementID
	IdempotencyKey string
	EffectiveAt    Date

	CreatedBy string
}
