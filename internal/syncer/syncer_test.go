package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	t.Run("no previous sync uses full lookback", func(t *testing.T) {
		got := window(nil, defaultLookback)
		assert.WithinDuration(t, time.Now().Add(-defaultLookback), got, time.Second)
	})

	t.Run("recent watermark used as-is", func(t *testing.T) {
		since := time.Now().Add(-2 * time.Hour)
		got := window(&since, defaultLookback)
		assert.Equal(t, since, got)
	})

	t.Run("stale watermark capped at lookback", func(t *testing.T) {
		// 上次同步在回看窗口之外时不做全量回补
		since := time.Now().Add(-30 * 24 * time.Hour)
		got := window(&since, hosLookback)
		assert.WithinDuration(t, time.Now().Add(-hosLookback), got, time.Second)
	})
}

func TestAllDomainsOrdering(t *testing.T) {
	// 车辆和司机先同步，后续域才能解析实体映射
	assert.Equal(t, DomainVehicles, AllDomains[0])
	assert.Equal(t, DomainDrivers, AllDomains[1])
	assert.Len(t, AllDomains, 7)
}
