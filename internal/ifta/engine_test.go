package ifta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinePrefersELDOnOverlap(t *testing.T) {
	e := &Engine{cfg: Config{PreferELD: true}}

	eld := map[string]float64{"TX": 100, "NM": 55}
	manual := map[string]float64{"TX": 90, "OK": 20}
	fuel := map[string]float64{"TX": 80.5}

	entries := e.combine(eld, manual, fuel)
	require.Len(t, entries, 3)

	// 按辖区字母序
	assert.Equal(t, "NM", entries[0].Jurisdiction)
	assert.Equal(t, "OK", entries[1].Jurisdiction)
	assert.Equal(t, "TX", entries[2].Jurisdiction)

	nm := entries[0]
	assert.Equal(t, 55.0, nm.Miles)
	assert.Equal(t, SourceELD, nm.Source)
	assert.Nil(t, nm.DiffMiles)

	ok := entries[1]
	assert.Equal(t, 20.0, ok.Miles)
	assert.Equal(t, SourceManual, ok.Source)

	tx := entries[2]
	assert.Equal(t, 100.0, tx.Miles)
	assert.Equal(t, SourceELD, tx.Source)
	require.NotNil(t, tx.ELDMiles)
	require.NotNil(t, tx.ManualMiles)
	require.NotNil(t, tx.DiffMiles)
	assert.Equal(t, 100.0, *tx.ELDMiles)
	assert.Equal(t, 90.0, *tx.ManualMiles)
	assert.Equal(t, 10.0, *tx.DiffMiles)
	assert.Equal(t, 80.5, tx.FuelGallons)
}

func TestCombinePrefersManualWhenConfigured(t *testing.T) {
	e := &Engine{cfg: Config{PreferELD: false}}

	entries := e.combine(
		map[string]float64{"TX": 100},
		map[string]float64{"TX": 90},
		nil,
	)
	require.Len(t, entries, 1)
	assert.Equal(t, 90.0, entries[0].Miles)
	assert.Equal(t, SourceManual, entries[0].Source)
	assert.Equal(t, 10.0, *entries[0].DiffMiles)
}

func TestAssembleELDFallsBackToManual(t *testing.T) {
	e := &Engine{}
	report := &Report{RequestedSource: SourceELD, Source: SourceELD}

	e.assemble(report, nil, map[string]float64{"TX": 90}, nil)

	assert.Equal(t, SourceManual, report.Source)
	assert.True(t, report.Fallback)
	assert.Equal(t, "no eld mileage recorded for quarter, fell back to manual trips", report.FallbackReason)
	require.Len(t, report.Jurisdictions, 1)
	assert.Equal(t, 90.0, report.Jurisdictions[0].Miles)
}

func TestAssembleELDBothSourcesEmpty(t *testing.T) {
	e := &Engine{}
	report := &Report{RequestedSource: SourceELD, Source: SourceELD}

	e.assemble(report, nil, nil, nil)

	// 没有可回退的数据，不算回退，但要说明报表为什么是空的
	assert.Equal(t, SourceELD, report.Source)
	assert.False(t, report.Fallback)
	assert.Equal(t, "no eld mileage recorded for quarter and no manual trips to fall back to", report.FallbackReason)
	assert.Empty(t, report.Jurisdictions)
}

func TestSingleSource(t *testing.T) {
	entries := singleSource(
		map[string]float64{"OK": 40, "AR": 15},
		SourceManual,
		map[string]float64{"OK": 12},
	)
	require.Len(t, entries, 2)
	assert.Equal(t, "AR", entries[0].Jurisdiction)
	assert.Equal(t, 15.0, entries[0].Miles)
	assert.Zero(t, entries[0].FuelGallons)
	assert.Equal(t, "OK", entries[1].Jurisdiction)
	assert.Equal(t, 12.0, entries[1].FuelGallons)
	assert.Equal(t, SourceManual, entries[1].Source)
}
