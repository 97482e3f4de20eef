/*
Package factory provides JSON to Go package conversion.

PURPOSE:
  Converts JSON package (paquete) definitions into pricing.Package values.
  Gym managers define their plans from the admin screen; the server stores
  the JSON and the factory turns it into the struct the calculator prices.

JSON SCHEMA:
  {
    "id": "mensual",
    "tenant_id": "gym-centro",
    "name": "Mensualidad",
    "price": 499,
    "enrollment_fee": 150,
    "duration": "ONE_MONTH",
    "access_days": ["mon", "wed", "fri"],
    "active": true
  }

KEY FEATURES:
  - Validates duration codes against pricing.Durations
  - Rejects negative price or enrollment fee
  - Parses access days; an empty list means every day
  - Defaults "active" to true when omitted

USAGE:
  f := factory.NewPackageFactory()
  pkg, err := f.ParsePackage(factory.MonthlyJSON("mensual", "Mensualidad", 499, 150))

SEE ALSO:
  - pricing/types.go: Package type definition
  - store/sqlite/sqlite.go: Packages persisted as rows
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/pricing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PackageJSON is the JSON representation of a package.
type PackageJSON struct {
	ID            string   `json:"id"`
	TenantID      string   `json:"tenant_id,omitempty"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	EnrollmentFee float64  `json:"enrollment_fee,omitempty"`
	Duration      string   `json:"duration"`
	AccessDays    []string `json:"access_days,omitempty"`
	Active        *bool    `json:"active,omitempty"` // Default true
}

// =============================================================================
// PACKAGE FACTORY
// =============================================================================

// PackageFactory converts JSON packages to Go structs.
type PackageFactory struct{}

// NewPackageFactory creates a new package factory.
func NewPackageFactory() *PackageFactory {
	return &PackageFactory{}
}

// ParsePackage parses a JSON string into a Package.
func (f *PackageFactory) ParsePackage(jsonStr string) (*pricing.Package, error) {
	var pj PackageJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse package JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PackageJSON to pricing.Package.
func (f *PackageFactory) FromJSON(pj PackageJSON) (*pricing.Package, error) {
	if strings.TrimSpace(pj.ID) == "" {
		return nil, fmt.Errorf("%w: id is required", generic.ErrInvalidPackage)
	}
	if strings.TrimSpace(pj.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", generic.ErrInvalidPackage)
	}

	duration := pricing.Duration(strings.ToUpper(strings.TrimSpace(pj.Duration)))
	if !duration.Known() {
		return nil, fmt.Errorf("%w: unknown duration %q", generic.ErrInvalidPackage, pj.Duration)
	}
	if pj.Price < 0 || pj.EnrollmentFee < 0 {
		return nil, fmt.Errorf("%w: price and enrollment fee must be non-negative", generic.ErrInvalidPackage)
	}

	days, err := parseAccessDays(pj.AccessDays)
	if err != nil {
		return nil, err
	}

	pkg := &pricing.Package{
		ID:            generic.PackageID(pj.ID),
		TenantID:      generic.TenantID(pj.TenantID),
		Name:          strings.TrimSpace(pj.Name),
		Price:         generic.NewMoney(pj.Price).Round2(),
		EnrollmentFee: generic.NewMoney(pj.EnrollmentFee).Round2(),
		Duration:      duration,
		AccessDays:    days,
		Active:        pj.Active == nil || *pj.Active,
	}
	return pkg, nil
}

// ToJSON converts a Package to PackageJSON.
func (f *PackageFactory) ToJSON(pkg *pricing.Package) PackageJSON {
	active := pkg.Active
	pj := PackageJSON{
		ID:            string(pkg.ID),
		TenantID:      string(pkg.TenantID),
		Name:          pkg.Name,
		Price:         pkg.Price.Float64(),
		EnrollmentFee: pkg.EnrollmentFee.Float64(),
		Duration:      string(pkg.Duration),
		Active:        &active,
	}
	for _, d := range pkg.AccessDays {
		pj.AccessDays = append(pj.AccessDays, weekdayCodes[d])
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "domingo": time.Sunday,
	"mon": time.Monday, "lunes": time.Monday,
	"tue": time.Tuesday, "martes": time.Tuesday,
	"wed": time.Wednesday, "miercoles": time.Wednesday, "miércoles": time.Wednesday,
	"thu": time.Thursday, "jueves": time.Thursday,
	"fri": time.Friday, "viernes": time.Friday,
	"sat": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

// ParseWeekday accepts short English codes and Spanish day names.
func ParseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

// WeekdayCode is the inverse of ParseWeekday for the short codes.
func WeekdayCode(wd time.Weekday) string { return weekdayCodes[wd] }

func parseAccessDays(in []string) ([]time.Weekday, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := make(map[time.Weekday]bool, len(in))
	var out []time.Weekday
	for _, s := range in {
		wd, ok := ParseWeekday(s)
		if !ok {
			return nil, fmt.Errorf("%w: unknown access day %q", generic.ErrInvalidPackage, s)
		}
		if seen[wd] {
			continue
		}
		seen[wd] = true
		out = append(out, wd)
	}
	return out, nil
}

// =============================================================================
// PRESET PACKAGES
// =============================================================================

// MonthlyJSON returns JSON for a monthly plan with an enrollment fee.
func MonthlyJSON(id, name string, price, enrollmentFee float64) string {
	pj := map[string]interface{}{
		"id":             id,
		"name":           name,
		"price":          price,
		"enrollment_fee": enrollmentFee,
		"duration":       string(pricing.OneMonth),
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// VisitPassJSON returns JSON for a visit pass. Visit passes carry no
// enrollment fee.
func VisitPassJSON(id, name string, price float64, duration pricing.Duration) string {
	pj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"price":    price,
		"duration": string(duration),
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// RestrictedJSON returns JSON for a calendar plan limited to some weekdays.
func RestrictedJSON(id, name string, price float64, duration pricing.Duration, days ...string) string {
	pj := map[string]interface{}{
		"id":          id,
		"name":        name,
		"price":       price,
		"duration":    string(duration),
		"access_days": days,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
