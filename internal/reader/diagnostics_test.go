package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/langchou/fleetbridge/internal/models"
)

func TestClassifySeverity(t *testing.T) {
	cases := []struct {
		name        string
		severity    string
		description string
		want        string
	}{
		{"provider critical", "critical", "", models.FaultSeverityCritical},
		{"provider severe maps critical", "Severe", "", models.FaultSeverityCritical},
		{"provider high maps critical", "HIGH", "minor thing", models.FaultSeverityCritical},
		{"provider moderate maps warning", "moderate", "", models.FaultSeverityWarning},
		{"provider low maps info", "low", "engine failure", models.FaultSeverityInfo},
		{"keyword engine", "", "Engine coolant temperature above normal", models.FaultSeverityCritical},
		{"keyword derate", "", "Power Derate active", models.FaultSeverityCritical},
		{"keyword tire", "", "Tire pressure low on axle 2", models.FaultSeverityWarning},
		{"keyword dpf", "", "DPF regeneration needed", models.FaultSeverityWarning},
		{"critical keyword beats warning keyword", "", "brake system sensor fault", models.FaultSeverityCritical},
		{"no signal defaults info", "", "Lamp out", models.FaultSeverityInfo},
		{"unknown severity falls through to keywords", "urgent", "oil pressure low", models.FaultSeverityCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySeverity(tc.severity, tc.description))
		})
	}
}
