package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langchou/fleetbridge/internal/models"
)

func TestSegmentMiles(t *testing.T) {
	trip := &models.ManualTrip{StartOdometer: 1000, EndOdometer: 1450}

	t.Run("multiple crossings", func(t *testing.T) {
		// TX 1000-1200, OK 1200-1380, KS 1380-1450
		got := SegmentMiles(trip, []*models.StateCrossing{
			{Jurisdiction: "TX", Odometer: 1000},
			{Jurisdiction: "OK", Odometer: 1200},
			{Jurisdiction: "KS", Odometer: 1380},
		})
		assert.Equal(t, map[string]float64{"TX": 200, "OK": 180, "KS": 70}, got)
	})

	t.Run("single jurisdiction", func(t *testing.T) {
		got := SegmentMiles(trip, []*models.StateCrossing{
			{Jurisdiction: "TX", Odometer: 1000},
		})
		assert.Equal(t, map[string]float64{"TX": 450}, got)
	})

	t.Run("revisited jurisdiction accumulates", func(t *testing.T) {
		got := SegmentMiles(trip, []*models.StateCrossing{
			{Jurisdiction: "TX", Odometer: 1000},
			{Jurisdiction: "OK", Odometer: 1100},
			{Jurisdiction: "TX", Odometer: 1300},
		})
		assert.Equal(t, map[string]float64{"TX": 250, "OK": 200}, got)
	})

	t.Run("crossing before trip start is clamped", func(t *testing.T) {
		got := SegmentMiles(trip, []*models.StateCrossing{
			{Jurisdiction: "TX", Odometer: 900},
			{Jurisdiction: "OK", Odometer: 1200},
		})
		assert.Equal(t, map[string]float64{"TX": 200, "OK": 250}, got)
	})

	t.Run("no crossings", func(t *testing.T) {
		assert.Empty(t, SegmentMiles(trip, nil))
	})

	t.Run("zero length segment dropped", func(t *testing.T) {
		got := SegmentMiles(trip, []*models.StateCrossing{
			{Jurisdiction: "TX", Odometer: 1000},
			{Jurisdiction: "OK", Odometer: 1450},
		})
		assert.Equal(t, map[string]float64{"TX": 450}, got)
	})
}
