/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Money travels
  as JSON numbers and is converted to decimal at the edge.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags. Handlers call
  h.decode, which rejects bodies that fail them with 400. Rules that
  need the domain (split reconciliation, stock) run in the handlers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/package.go: PackageJSON type
*/
package api

import (
	"time"

	"github.com/warp/gym-desk/cashregister"
	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/membership"
	"github.com/warp/gym-desk/payment"
	"github.com/warp/gym-desk/pos"
)

// =============================================================================
// SHARED
// =============================================================================

// TenderDTO is one payment line.
type TenderDTO struct {
	Method string  `json:"method" validate:"required,oneof=CASH CARD TRANSFER"`
	Amount float64 `json:"amount" validate:"min=0"`
}

// Page is the envelope of every paginated list.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// SplitDTO reports how tenders reconcile against a total.
type SplitDTO struct {
	Expected   float64 `json:"expected"`
	Sum        float64 `json:"sum"`
	Difference float64 `json:"difference"`
	IsValid    bool    `json:"is_valid"`
}

func toTenders(in []TenderDTO) []payment.Tender {
	out := make([]payment.Tender, 0, len(in))
	for _, t := range in {
		out = append(out, payment.Tender{Method: payment.Method(t.Method), Amount: generic.NewMoney(t.Amount)})
	}
	return out
}

func toTenderDTOs(in []payment.Tender) []TenderDTO {
	out := make([]TenderDTO, 0, len(in))
	for _, t := range in {
		out = append(out, TenderDTO{Method: string(t.Method), Amount: t.Amount.Float64()})
	}
	return out
}

func toSplitDTO(s payment.Split) SplitDTO {
	return SplitDTO{
		Expected:   s.Expected.Float64(),
		Sum:        s.Sum.Float64(),
		Difference: s.Difference.Float64(),
		IsValid:    s.IsValid,
	}
}

func methodTotals(m map[string]generic.Money) map[string]float64 {
	out := make(map[string]float64, len(payment.Methods()))
	for _, method := range payment.Methods() {
		out[string(method)] = m[string(method)].Float64()
	}
	return out
}

// =============================================================================
// QUOTE
// =============================================================================

// QuoteRequest previews a membership sale.
type QuoteRequest struct {
	MemberID  string      `json:"member_id"`
	PackageID string      `json:"package_id" validate:"required"`
	Movement  string      `json:"movement" validate:"required,oneof=INSCRIPCION REINSCRIPCION"`
	Discount  float64     `json:"discount" validate:"min=0"`
	StartDate string      `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Payments  []TenderDTO `json:"payments" validate:"dive"`
}

// QuoteDTO is the live preview shown before charging.
type QuoteDTO struct {
	Total     float64   `json:"total"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Visits    int       `json:"visits,omitempty"`
	Split     *SplitDTO `json:"split,omitempty"`
}

// =============================================================================
// MEMBERS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateMemberRequest creates or replaces a member.
type CreateMemberRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required,max=120"`
	Email  string `json:"email" validate:"omitempty,email"`
	Phone  string `json:"phone" validate:"omitempty,max=30"`
	Active *bool  `json:"active"`
}

func toMemberDTO(m membership.Member) MemberDTO {
	dto := MemberDTO{ID: string(m.ID), Name: m.Name, Email: m.Email, Phone: m.Phone, Active: m.Active}
	if !m.CreatedAt.IsZero() {
		dto.CreatedAt = m.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// EnrollRequest sells a membership to a member.
type EnrollRequest struct {
	PackageID      string      `json:"package_id" validate:"required"`
	Movement       string      `json:"movement" validate:"required,oneof=INSCRIPCION REINSCRIPCION"`
	Discount       float64     `json:"discount" validate:"min=0"`
	StartDate      string      `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Payments       []TenderDTO `json:"payments" validate:"dive"`
	IdempotencyKey string      `json:"idempotency_key" validate:"omitempty,max=100"`
}

// MembershipDTO represents a sold membership.
type MembershipDTO struct {
	ID              string   `json:"id"`
	MemberID        string   `json:"member_id"`
	PackageID       string   `json:"package_id"`
	SaleID          string   `json:"sale_id,omitempty"`
	Movement        string   `json:"movement"`
	Duration        string   `json:"duration"`
	StartDate       string   `json:"start_date"`
	EndDate         string   `json:"end_date"`
	VisitsRemaining int      `json:"visits_remaining,omitempty"`
	AccessDays      []string `json:"access_days,omitempty"`
	Total           float64  `json:"total"`
	Discount        float64  `json:"discount"`
	State           string   `json:"state"`
	Status          string   `json:"status"`
}

func toMembershipDTO(m membership.Membership, today generic.Date) MembershipDTO {
	dto := MembershipDTO{
		ID:              m.ID,
		MemberID:        string(m.MemberID),
		PackageID:       string(m.PackageID),
		SaleID:          string(m.SaleID),
		Movement:        string(m.Movement),
		Duration:        string(m.Duration),
		StartDate:       m.Window.Start.String(),
		EndDate:         m.Window.End.String(),
		VisitsRemaining: m.VisitsRemaining,
		Total:           m.Total.Float64(),
		Discount:        m.Discount.Float64(),
		State:           string(m.State),
		Status:          string(m.Status(today)),
	}
	for _, d := range m.AccessDays {
		dto.AccessDays = append(dto.AccessDays, factory.WeekdayCode(d))
	}
	return dto
}

// EnrollmentDTO is the result of a membership sale.
type EnrollmentDTO struct {
	Membership MembershipDTO `json:"membership"`
	Sale       SaleDTO       `json:"sale"`
	Split      SplitDTO      `json:"split"`
}

// StatusDTO is the semaphore shown at the front desk.
type StatusDTO struct {
	MemberID        string         `json:"member_id"`
	Status          string         `json:"status"`
	Semaphore       string         `json:"semaphore"`
	DaysRemaining   *int           `json:"days_remaining,omitempty"`
	VisitsRemaining int            `json:"visits_remaining,omitempty"`
	Membership      *MembershipDTO `json:"membership,omitempty"`
}

// =============================================================================
// CATALOG
// =============================================================================

// PackageDTO represents a package in API responses.
type PackageDTO struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Config factory.PackageJSON `json:"config"`
}

// ProductDTO represents a product or service.
type ProductDTO struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	SKU    string  `json:"sku,omitempty"`
	Kind   string  `json:"kind"`
	Price  float64 `json:"price"`
	Stock  int     `json:"stock"`
	Active bool    `json:"active"`
}

// CreateProductRequest creates or replaces a product.
type CreateProductRequest struct {
	ID     string  `json:"id" validate:"required,max=64"`
	Name   string  `json:"name" validate:"required,max=120"`
	SKU    string  `json:"sku" validate:"omitempty,max=64"`
	Kind   string  `json:"kind" validate:"required,oneof=product service"`
	Price  float64 `json:"price" validate:"min=0"`
	Stock  int     `json:"stock" validate:"min=0"`
	Active *bool   `json:"active"`
}

func toProductDTO(p pos.Product) ProductDTO {
	return ProductDTO{
		ID: string(p.ID), Name: p.Name, SKU: p.SKU, Kind: string(p.Kind),
		Price: p.Price.Float64(), Stock: p.Stock, Active: p.Active,
	}
}

// CountRequest records a physical inventory count.
type CountRequest struct {
	Counted int `json:"counted" validate:"min=0"`
}

// CountDTO is a recorded inventory count.
type CountDTO struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Previous   int    `json:"previous"`
	Counted    int    `json:"counted"`
	Difference int    `json:"difference"`
	CountedBy  string `json:"counted_by,omitempty"`
	At         string `json:"at"`
}

func toCountDTO(c pos.Count) CountDTO {
	return CountDTO{
		ID: c.ID, ProductID: string(c.ProductID), Previous: c.Previous, Counted: c.Counted,
		Difference: c.Difference, CountedBy: c.CountedBy, At: c.At.Format(time.RFC3339),
	}
}

// =============================================================================
// SALES
// =============================================================================

// SaleItemRequest is one requested ticket line.
type SaleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// CreateSaleRequest is a point-of-sale ticket.
type CreateSaleRequest struct {
	Items          []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount       float64           `json:"discount" validate:"min=0"`
	Payments       []TenderDTO       `json:"payments" validate:"dive"`
	IdempotencyKey string            `json:"idempotency_key" validate:"omitempty,max=100"`
}

// CancelSaleRequest carries the optional reason for a cancellation.
type CancelSaleRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// SaleItemDTO is one ticket line.
type SaleItemDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"session_id,omitempty"`
	Kind         string        `json:"kind"`
	MemberID     string        `json:"member_id,omitempty"`
	Items        []SaleItemDTO `json:"items,omitempty"`
	Subtotal     float64       `json:"subtotal"`
	Discount     float64       `json:"discount"`
	Total        float64       `json:"total"`
	Payments     []TenderDTO   `json:"payments"`
	Status       string        `json:"status"`
	EffectiveAt  string        `json:"effective_at"`
	CreatedBy    string        `json:"created_by,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
}

func toSaleDTO(s pos.Sale) SaleDTO {
	dto := SaleDTO{
		ID: string(s.ID), SessionID: string(s.SessionID), Kind: string(s.Kind), MemberID: string(s.MemberID),
		Subtotal: s.Subtotal.Float64(), Discount: s.Discount.Float64(), Total: s.Total.Float64(),
		Payments: toTenderDTOs(s.Payments), Status: string(s.Status), EffectiveAt: s.EffectiveAt.String(),
		CreatedBy: s.CreatedBy, CancelReason: s.CancelReason,
	}
	for _, it := range s.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ProductID: string(it.ProductID), Name: it.Name, Quantity: it.Quantity,
			UnitPrice: it.UnitPrice.Float64(), Amount: it.Amount.Float64(),
		})
	}
	return dto
}

// =============================================================================
// CASH REGISTER
// =============================================================================

// OpenSessionRequest opens the drawer.
type OpenSessionRequest struct {
	OpeningFloat float64 `json:"opening_float" validate:"min=0"`
}

// CashMovementRequest is a manual cash in/out.
type CashMovementRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
	Reason string  `json:"reason" validate:"required,max=200"`
}

// CloseSessionRequest declares the counted cash.
type CloseSessionRequest struct {
	Declared float64 `json:"declared" validate:"min=0"`
	Notes    string  `json:"notes" validate:"max=500"`
}

// SessionDTO represents a cash session.
type SessionDTO struct {
	ID             string   `json:"id"`
	State          string   `json:"state"`
	OpenedBy       string   `json:"opened_by,omitempty"`
	OpeningFloat   float64  `json:"opening_float"`
	OpenedAt       string   `json:"opened_at"`
	ClosedBy       string   `json:"closed_by,omitempty"`
	ClosedAt       string   `json:"closed_at,omitempty"`
	Expected       *float64 `json:"expected,omitempty"`
	Declared       *float64 `json:"declared,omitempty"`
	Deviation      *float64 `json:"deviation,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

func toSessionDTO(s cashregister.Session) SessionDTO {
	dto := SessionDTO{
		ID: string(s.ID), State: string(s.State), OpenedBy: s.OpenedBy,
		OpeningFloat: s.OpeningFloat.Float64(), OpenedAt: s.OpenedAt.Format(time.RFC3339),
	}
	if !s.IsOpen() {
		expected, declared, deviation := s.Expected.Float64(), s.Declared.Float64(), s.Deviation.Float64()
		dto.Expected, dto.Declared, dto.Deviation = &expected, &declared, &deviation
		dto.ClosedBy = s.ClosedBy
		dto.Classification = string(s.Classification)
		dto.Notes = s.Notes
		if s.ClosedAt != nil {
			dto.ClosedAt = s.ClosedAt.Format(time.RFC3339)
		}
	}
	return dto
}

// MovementDTO represents a ledger movement.
type MovementDTO struct {
	ID          string  `json:"id"`
	SaleID      string  `json:"sale_id,omitempty"`
	Method      string  `json:"method"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Reason      string  `json:"reason,omitempty"`
	ReversesID  string  `json:"reverses_id,omitempty"`
	EffectiveAt string  `json:"effective_at"`
	CreatedBy   string  `json:"created_by,omitempty"`
}

func toMovementDTO(m generic.Movement) MovementDTO {
	return MovementDTO{
		ID: string(m.ID), SaleID: string(m.SaleID), Method: m.Method, Amount: m.Amount.Float64(),
		Type: string(m.Type), Reason: m.Reason, ReversesID: string(m.ReversesID),
		EffectiveAt: m.EffectiveAt.String(), CreatedBy: m.CreatedBy,
	}
}

// SummaryDTO is the live or closing view of a session.
type SummaryDTO struct {
	Session      SessionDTO         `json:"session"`
	ByMethod     map[string]float64 `json:"by_method"`
	ExpectedCash float64            `json:"expected_cash"`
	Movements    []MovementDTO      `json:"movements"`
}

func toSummaryDTO(s cashregister.Summary) SummaryDTO {
	dto := SummaryDTO{
		Session:      toSessionDTO(s.Session),
		ByMethod:     methodTotals(s.ByMethod),
		ExpectedCash: s.ExpectedCash.Float64(),
		Movements:    make([]MovementDTO, 0, len(s.Movements)),
	}
	for _, m := range s.Movements {
		dto.Movements = append(dto.Movements, toMovementDTO(m))
	}
	return dto
}

// =============================================================================
// CHECK-INS AND REPORTS
// =============================================================================

// CheckInDTO is a recorded or attempted check-in.
type CheckInDTO struct {
	ID              string `json:"id,omitempty"`
	MemberID        string `json:"member_id"`
	MembershipID    string `json:"membership_id,omitempty"`
	Date            string `json:"date"`
	At              string `json:"at,omitempty"`
	Allowed         bool   `json:"allowed"`
	Status          string `json:"status"`
	Semaphore       string `json:"semaphore"`
	Reason          string `json:"reason,omitempty"`
	DaysRemaining   *int   `json:"days_remaining,omitempty"`
	VisitsRemaining int    `json:"visits_remaining,omitempty"`
}

func toCheckInDTO(c membership.CheckIn) CheckInDTO {
	return CheckInDTO{
		ID: c.ID, MemberID: string(c.MemberID), MembershipID: c.MembershipID, Date: c.Date.String(),
		At: c.At.Format(time.RFC3339), Allowed: true, Status: string(c.Status), Semaphore: string(c.Status.Semaphore()),
	}
}

// DailySalesDTO is one day of the sales report.
type DailySalesDTO struct {
	Date     string             `json:"date"`
	ByMethod map[string]float64 `json:"by_method"`
	Total    float64            `json:"total"`
}

// MembershipReportDTO counts members per status.
type MembershipReportDTO struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// StatusRunDTO is one expiry scheduler run.
type StatusRunDTO struct {
	ID      string `json:"id"`
	RunDate string `json:"run_date"`
	RanAt   string `json:"ran_at"`
	Checked int    `json:"checked"`
	Near    int    `json:"near"`
	Expired int    `json:"expired"`
	Marked  int    `json:"marked"`
	Error   string `json:"error,omitempty"`
}
