package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
)

func TestNormalizeDutyStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"driving", models.DutyStatusDriving},
		{"D", models.DutyStatusDriving},
		{"Drive", models.DutyStatusDriving},
		{"on_duty_not_driving", models.DutyStatusOnDuty},
		{"On Duty", models.DutyStatusOnDuty},
		{"onDuty", models.DutyStatusOnDuty},
		{"OFF", models.DutyStatusOffDuty},
		{"off-duty", models.DutyStatusOffDuty},
		{"sleeper_berth", models.DutyStatusSleeper},
		{"SB", models.DutyStatusSleeper},
		{" sleeper ", models.DutyStatusSleeper},
		{"yard_move", models.DutyStatusUnknown},
		{"", models.DutyStatusUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDutyStatus(tc.raw), "raw=%q", tc.raw)
	}
}

func TestAlertLevelThresholds(t *testing.T) {
	r := NewHOSReader(zap.NewNop(), nil, HOSConfig{WarningMinutes: 120, CriticalMinutes: 30})

	assert.Equal(t, AlertNone, r.alertLevel(480))
	assert.Equal(t, AlertNone, r.alertLevel(120))
	assert.Equal(t, AlertWarning, r.alertLevel(119))
	assert.Equal(t, AlertWarning, r.alertLevel(30))
	assert.Equal(t, AlertCritical, r.alertLevel(29))
	assert.Equal(t, AlertCritical, r.alertLevel(0))
}

func TestHOSReaderConfigDefaults(t *testing.T) {
	r := NewHOSReader(zap.NewNop(), nil, HOSConfig{})
	assert.Equal(t, AlertWarning, r.alertLevel(DefaultWarningMinutes-1))
	assert.Equal(t, AlertCritical, r.alertLevel(DefaultCriticalMinutes-1))
}
