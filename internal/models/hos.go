package models

import "time"

// 规范化值班状态常量
const (
	DutyStatusDriving = "driving"
	DutyStatusOnDuty  = "on_duty"
	DutyStatusOffDuty = "off_duty"
	DutyStatusSleeper = "sleeper"
	DutyStatusUnknown = "unknown"
)

// HOSLog 值班状态日志条目（规范化形状）
// 幂等键：(connection_id, external_id)
type HOSLog struct {
	ID               int64      `json:"id" db:"id"`
	ConnectionID     int64      `json:"connection_id" db:"connection_id"`
	ExternalID       string     `json:"external_id" db:"external_id"`
	ExternalDriverID string     `json:"external_driver_id" db:"external_driver_id"`
	DriverID         *int64     `json:"driver_id,omitempty" db:"driver_id"`
	DutyStatus       string     `json:"duty_status" db:"duty_status"`
	StartedAt        time.Time  `json:"started_at" db:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Location         string     `json:"location,omitempty" db:"location"`
	Remark           string     `json:"remark,omitempty" db:"remark"`
}

// HOSDailyLog 每日汇总日志（规范化形状）
// 幂等键：(connection_id, external_driver_id, log_date)
type HOSDailyLog struct {
	ID                  int64     `json:"id" db:"id"`
	ConnectionID        int64     `json:"connection_id" db:"connection_id"`
	ExternalDriverID    string    `json:"external_driver_id" db:"external_driver_id"`
	DriverID            *int64    `json:"driver_id,omitempty" db:"driver_id"`
	LogDate             time.Time `json:"log_date" db:"log_date"`
	DriveMinutes        int       `json:"drive_minutes" db:"drive_minutes"`
	OnDutyMinutes       int       `json:"on_duty_minutes" db:"on_duty_minutes"`
	RemainingDriveMin   int       `json:"remaining_drive_minutes" db:"remaining_drive_minutes"`
	CycleRemainingMin   int       `json:"cycle_remaining_minutes" db:"cycle_remaining_minutes"`
	HasViolation        bool      `json:"has_violation" db:"has_violation"`
	ViolationRemarks    string    `json:"violation_remarks,omitempty" db:"violation_remarks"`
}
