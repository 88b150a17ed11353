package reader

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	// 赤道上经度差 1 度约 111.3 公里
	d := DistanceKm(orb.Point{0, 0}, orb.Point{1, 0})
	assert.InDelta(t, 111.32, d, 0.1)

	// 达拉斯到休斯顿约 362 公里
	dallas := orb.Point{-96.797, 32.7767}
	houston := orb.Point{-95.3698, 29.7604}
	d = DistanceKm(dallas, houston)
	assert.InDelta(t, 362, d, 5)

	assert.Zero(t, DistanceKm(dallas, dallas))
}
