package reader

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/repository"
)

// 告警级别常量
const (
	AlertNone     = "none"
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

// 默认告警阈值（分钟）
const (
	DefaultWarningMinutes  = 120
	DefaultCriticalMinutes = 30
)

// HOSConfig HOS 读取器配置
type HOSConfig struct {
	WarningMinutes  int // 剩余驾驶时间低于该值时报 warning
	CriticalMinutes int // 低于该值时报 critical
}

// HOSReader 值班时间视图读取器
type HOSReader struct {
	logger  *zap.Logger
	hosRepo *repository.HOSRepository
	cfg     HOSConfig
}

// NewHOSReader 创建 HOS 读取器
func NewHOSReader(logger *zap.Logger, hosRepo *repository.HOSRepository, cfg HOSConfig) *HOSReader {
	if cfg.WarningMinutes <= 0 {
		cfg.WarningMinutes = DefaultWarningMinutes
	}
	if cfg.CriticalMinutes <= 0 {
		cfg.CriticalMinutes = DefaultCriticalMinutes
	}
	return &HOSReader{logger: logger, hosRepo: hosRepo, cfg: cfg}
}

// DriverStatus 司机当前值班状态视图
type DriverStatus struct {
	ExternalDriverID  string    `json:"external_driver_id"`
	DriverID          *int64    `json:"driver_id,omitempty"`
	LogDate           time.Time `json:"log_date"`
	DriveMinutes      int       `json:"drive_minutes"`
	OnDutyMinutes     int       `json:"on_duty_minutes"`
	RemainingDriveMin int       `json:"remaining_drive_minutes"`
	CycleRemainingMin int       `json:"cycle_remaining_minutes"`
	HasViolation      bool      `json:"has_violation"`
	ViolationRemarks  string    `json:"violation_remarks,omitempty"`
	AlertLevel        string    `json:"alert_level"`
}

// DriverStatuses 返回用户全部司机的最新值班视图
func (r *HOSReader) DriverStatuses(ctx context.Context, userID int64) ([]*DriverStatus, error) {
	dailies, err := r.hosRepo.ListLatestDailyByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]*DriverStatus, 0, len(dailies))
	for _, d := range dailies {
		statuses = append(statuses, &DriverStatus{
			ExternalDriverID:  d.ExternalDriverID,
			DriverID:          d.DriverID,
			LogDate:           d.LogDate,
			DriveMinutes:      d.DriveMinutes,
			OnDutyMinutes:     d.OnDutyMinutes,
			RemainingDriveMin: d.RemainingDriveMin,
			CycleRemainingMin: d.CycleRemainingMin,
			HasViolation:      d.HasViolation,
			ViolationRemarks:  d.ViolationRemarks,
			AlertLevel:        r.alertLevel(d.RemainingDriveMin),
		})
	}
	return statuses, nil
}

// Logs 按时间范围读取单个司机的值班日志
func (r *HOSReader) Logs(ctx context.Context, connectionID int64, externalDriverID string, from, to time.Time) ([]*models.HOSLog, error) {
	return r.hosRepo.ListLogsByDriver(ctx, connectionID, externalDriverID, from, to)
}

// alertLevel 根据剩余驾驶时间分级
func (r *HOSReader) alertLevel(remainingMinutes int) string {
	switch {
	case remainingMinutes < r.cfg.CriticalMinutes:
		return AlertCritical
	case remainingMinutes < r.cfg.WarningMinutes:
		return AlertWarning
	default:
		return AlertNone
	}
}

// NormalizeDutyStatus 把服务商各自的值班状态词汇归一化到规范枚举
// 不认识的词汇归为 unknown，不抛错
func NormalizeDutyStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "driving", "drive", "d":
		return models.DutyStatusDriving
	case "on_duty", "onduty", "on-duty", "on duty", "on_duty_not_driving", "on":
		return models.DutyStatusOnDuty
	case "off_duty", "offduty", "off-duty", "off duty", "off":
		return models.DutyStatusOffDuty
	case "sleeper", "sleeper_berth", "sleeperberth", "sleeper berth", "sb":
		return models.DutyStatusSleeper
	default:
		return models.DutyStatusUnknown
	}
}
