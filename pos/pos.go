/*
Package pos prices point-of-sale tickets and tracks inventory.

PURPOSE:
  Besides memberships the front desk sells products (drinks, supplements)
  and services (personal training sessions). Products carry stock that
  every sale decrements and every cancellation restores; services do not.

TOTALS:
  line     = unit price x quantity
  subtotal = sum of lines
  total    = round2(subtotal - discount)

  As with memberships, rounding happens once on the final figure.

SEE ALSO:
  - payment/: Split validation of the tenders
  - cashregister/: Session the sale's movements attach to
*/
package pos

import (
	"fmt"
	"time"

	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/payment"
)

// =============================================================================
// CATALOG
// =============================================================================

// Kind distinguishes stocked goods from services.
type Kind string

const (
	KindProduct Kind = "product"
	KindService Kind = "service"
)

func (k Kind) Valid() bool { return k == KindProduct || k == KindService }

// Product is a sellable catalog item.
type Product struct {
	ID       generic.ProductID
	TenantID generic.TenantID
	Name     string
	SKU      string
	Kind     Kind
	Price    generic.Money
	Stock    int
	Active   bool
}

func (p Product) TracksStock() bool { return p.Kind == KindProduct }

// =============================================================================
// SALE
// =============================================================================

// SaleKind is what a sale was for.
type SaleKind string

const (
	SaleMembership SaleKind = "membership"
	SaleProducts   SaleKind = "pos"
)

// SaleStatus is the lifecycle of a sale.
type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

// Item is one ticket line.
type Item struct {
	ProductID generic.ProductID
	Name      string
	Quantity  int
	UnitPrice generic.Money
	Amount    generic.Money
}

// Sale is a recorded ticket. Membership sales have no items and reference
// the member instead.
type Sale struct {
	ID             generic.SaleID
	TenantID       generic.TenantID
	SessionID      generic.SessionID
	Kind           SaleKind
	MemberID       generic.MemberID
	Items          []Item
	Subtotal       generic.Money
	Discount       generic.Money
	Total          generic.Money
	Payments       []payment.Tender
	Status         SaleStatus
	IdempotencyKey string
	EffectiveAt    generic.Date
	CreatedBy      string
	CreatedAt      time.Time
	CancelledAt    *time.Time
	CancelReason   string
}

func (s Sale) IsCancelled() bool { return s.Status == SaleCancelled }

// Line prices qty units of p.
func Line(p Product, qty int) (Item, error) {
	if qty <= 0 {
		return Item{}, fmt.Errorf("%w: quantity must be positive", generic.ErrInvalidAmount)
	}
	return Item{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: p.Price,
		Amount:    p.Price.MulInt(qty),
	}, nil
}

// Total returns the ticket subtotal and the discounted total.
func Total(items []Item, discount generic.Money) (subtotal, total generic.Money) {
	lines := make([]generic.Money, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.Amount)
	}
	subtotal = generic.SumMoney(lines...)
	total = subtotal.Sub(discount).Round2()
	return subtotal, total
}

// =============================================================================
// INVENTORY
// =============================================================================

// StockDelta is a change to one product's stock.
type StockDelta struct {
	ProductID generic.ProductID
	Delta     int
}

// Deductions returns the stock each item removes, merged per product.
// Services are skipped.
func Deductions(items []Item, products map[generic.ProductID]Product) []StockDelta {
	var out []StockDelta
	idx := make(map[generic.ProductID]int)
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.TracksStock() {
			continue
		}
		if i, seen := idx[it.ProductID]; seen {
			out[i].Delta -= it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, StockDelta{ProductID: it.ProductID, Delta: -it.Quantity})
	}
	return out
}

// Restorations inverts Deductions for a cancelled sale.
func Restorations(items []Item, products map[generic.ProductID]Product) []StockDelta {
	out := Deductions(items, products)
	for i := range out {
		out[i].Delta = -out[i].Delta
	}
	return out
}

// Apply checks a delta against the available stock.
func Apply(p Product, delta int) (int, error) {
	next := p.Stock + delta
	if next < 0 {
		return p.Stock, &generic.InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: -delta}
	}
	return next, nil
}

// Count is a physical inventory count.
type Count struct {
	ID         string
	TenantID   generic.TenantID
	ProductID  generic.ProductID
	Previous   int
	Counted    int
	Difference int
	CountedBy  string
	At         time.Time
}

// NewCount records that counted units were found for p.
func NewCount(id string, p Product, counted int, by string, at time.Time) (Count, error) {
	if counted < 0 {
		return Count{}, fmt.Errorf("%w: counted units cannot be negative", generic.ErrInvalidAmount)
	}
	return Count{
		ID:         id,
		TenantID:   p.TenantID,
		ProductID:  p.ID,
		Previous:   p.Stock,
		Counted:    counted,
		Difference: counted - p.Stock,
		CountedBy:  by,
		At:         at,
	}, nil
}
