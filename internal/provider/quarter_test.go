package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuarter(t *testing.T) {
	year, q, err := ParseQuarter("2025-Q3")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 3, q)

	_, _, err = ParseQuarter("2025-Q5")
	assert.Error(t, err)

	_, _, err = ParseQuarter("bogus")
	assert.Error(t, err)
}

func TestQuarterRange(t *testing.T) {
	from, to, err := QuarterRange("2025-Q3")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), to)

	// Q4 跨年
	from, to, err = QuarterRange("2024-Q4")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestQuarterOf(t *testing.T) {
	assert.Equal(t, "2025-Q1", QuarterOf(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-Q1", QuarterOf(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-Q2", QuarterOf(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-Q4", QuarterOf(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}
