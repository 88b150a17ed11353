package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langchou/fleetbridge/internal/models"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ABC-1234", "abc1234"},
		{"Truck 12", "truck12"},
		{"unit_5.A", "unit5a"},
		{"  TX 99  ", "tx99"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeIdentifier(tc.in), tc.in)
	}
}

func TestMatchVehiclePriority(t *testing.T) {
	locals := []*models.Vehicle{
		{ID: 1, Name: "Truck 1", VIN: "1XKAD49X0KJ211825", LicensePlate: "ABC-1234"},
		{ID: 2, Name: "Truck 2", VIN: "1FUJGLDR5CSBF1234", LicensePlate: "XYZ-9999"},
		{ID: 3, Name: "Truck 3"},
	}

	t.Run("vin beats plate", func(t *testing.T) {
		// VIN 指向 1 号车，车牌指向 2 号车，VIN 优先
		ev := &models.Vehicle{VIN: "1xkad49x0kj211825", LicensePlate: "XYZ 9999"}
		got := matchVehicle(ev, locals)
		assert.NotNil(t, got)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("plate beats name", func(t *testing.T) {
		ev := &models.Vehicle{Name: "Truck 3", LicensePlate: "xyz9999"}
		got := matchVehicle(ev, locals)
		assert.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID)
	})

	t.Run("name fallback", func(t *testing.T) {
		ev := &models.Vehicle{Name: "TRUCK-3"}
		got := matchVehicle(ev, locals)
		assert.NotNil(t, got)
		assert.Equal(t, int64(3), got.ID)
	})

	t.Run("no match", func(t *testing.T) {
		ev := &models.Vehicle{Name: "Truck 9", VIN: "UNKNOWN"}
		assert.Nil(t, matchVehicle(ev, locals))
	})
}

func TestMatchVehicleAmbiguityGivesUp(t *testing.T) {
	locals := []*models.Vehicle{
		{ID: 1, Name: "Spare"},
		{ID: 2, Name: "spare"},
	}
	ev := &models.Vehicle{Name: "SPARE"}
	assert.Nil(t, matchVehicle(ev, locals))
}

func TestMatchDriver(t *testing.T) {
	locals := []*models.Driver{
		{ID: 1, Name: "Jane Doe", LicenseNumber: "D1234567"},
		{ID: 2, Name: "John Roe", LicenseNumber: "D7654321"},
	}

	t.Run("license beats name", func(t *testing.T) {
		ed := &models.Driver{Name: "John Roe", LicenseNumber: "d-1234567"}
		got := matchDriver(ed, locals)
		assert.NotNil(t, got)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("name fallback", func(t *testing.T) {
		ed := &models.Driver{Name: "JOHN ROE"}
		got := matchDriver(ed, locals)
		assert.NotNil(t, got)
		assert.Equal(t, int64(2), got.ID)
	})

	t.Run("unknown driver", func(t *testing.T) {
		ed := &models.Driver{Name: "Nobody"}
		assert.Nil(t, matchDriver(ed, locals))
	})
}
