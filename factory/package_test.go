package factory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gym-desk/factory"
	"github.com/warp/gym-desk/generic"
	"github.com/warp/gym-desk/pricing"
)

func TestParsePackage_Monthly(t *testing.T) {
	f := factory.NewPackageFactory()

	pkg, err := f.ParsePackage(factory.MonthlyJSON("mensual", "Mensualidad", 499, 150))
	require.NoError(t, err)

	assert.Equal(t, generic.PackageID("mensual"), pkg.ID)
	assert.Equal(t, pricing.OneMonth, pkg.Duration)
	assert.Equal(t, "499.00", pkg.Price.String())
	assert.Equal(t, "150.00", pkg.EnrollmentFee.String())
	assert.True(t, pkg.Active)
	assert.Empty(t, pkg.AccessDays)
}

func TestParsePackage_VisitPass(t *testing.T) {
	f := factory.NewPackageFactory()

	pkg, err := f.ParsePackage(factory.VisitPassJSON("diez", "10 visitas", 550, pricing.TenVisits))
	require.NoError(t, err)

	assert.True(t, pkg.Duration.IsVisitPass())
	assert.Equal(t, 10, pkg.Duration.Visits())
	assert.True(t, pkg.EnrollmentFee.IsZero())
}

func TestParsePackage_AccessDays(t *testing.T) {
	f := factory.NewPackageFactory()

	pkg, err := f.ParsePackage(factory.RestrictedJSON("finde", "Fin de semana", 299, pricing.OneMonth, "sat", "Domingo", "sat"))
	require.NoError(t, err)

	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, pkg.AccessDays)
	assert.True(t, pkg.AllowsDay(time.Sunday))
	assert.False(t, pkg.AllowsDay(time.Monday))
}

func TestParsePackage_Rejections(t *testing.T) {
	f := factory.NewPackageFactory()

	tests := []struct {
		name string
		json string
	}{
		{"unknown duration", `{"id":"x","name":"X","price":10,"duration":"FOREVER"}`},
		{"negative price", `{"id":"x","name":"X","price":-1,"duration":"ONE_MONTH"}`},
		{"negative fee", `{"id":"x","name":"X","price":1,"enrollment_fee":-5,"duration":"ONE_MONTH"}`},
		{"bad day", `{"id":"x","name":"X","price":1,"duration":"ONE_MONTH","access_days":["funday"]}`},
		{"missing id", `{"name":"X","price":1,"duration":"ONE_MONTH"}`},
		{"missing name", `{"id":"x","price":1,"duration":"ONE_MONTH"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParsePackage(tt.json)
			assert.ErrorIs(t, err, generic.ErrInvalidPackage)
		})
	}

	_, err := f.ParsePackage("{not json")
	assert.Error(t, err)
}

func TestParsePackage_InactiveFlag(t *testing.T) {
	f := factory.NewPackageFactory()
	pkg, err := f.ParsePackage(`{"id":"x","name":"X","price":1,"duration":"one_week","active":false}`)
	require.NoError(t, err)
	assert.False(t, pkg.Active)
	assert.Equal(t, pricing.OneWeek, pkg.Duration)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewPackageFactory()
	pkg, err := f.ParsePackage(factory.RestrictedJSON("am", "Matutino", 349.5, pricing.ThreeMonths, "mon", "wed", "fri"))
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(pkg))
	require.NoError(t, err)
	assert.Equal(t, pkg, again)
}
