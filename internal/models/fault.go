package models

import "time"

// 故障码严重级别常量
const (
	FaultSeverityCritical = "critical"
	FaultSeverityWarning  = "warning"
	FaultSeverityInfo     = "info"
)

// FaultCode 车辆诊断故障码（规范化形状）
// 幂等键：(connection_id, external_id)
type FaultCode struct {
	ID                int64      `json:"id" db:"id"`
	ConnectionID      int64      `json:"connection_id" db:"connection_id"`
	ExternalID        string     `json:"external_id" db:"external_id"`
	ExternalVehicleID string     `json:"external_vehicle_id" db:"external_vehicle_id"`
	VehicleID         *int64     `json:"vehicle_id,omitempty" db:"vehicle_id"`
	Code              string     `json:"code" db:"code"`
	Description       string     `json:"description,omitempty" db:"description"`
	Severity          string     `json:"severity,omitempty" db:"severity"` // 服务商提供的原始级别，可为空
	IsActive          bool       `json:"is_active" db:"is_active"`
	ReportedAt        time.Time  `json:"reported_at" db:"reported_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
