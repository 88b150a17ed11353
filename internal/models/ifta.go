package models

import "time"

// IFTAMileage ELD 同步的辖区里程记录（规范化形状）
// 幂等键：(connection_id, external_vehicle_id, jurisdiction, quarter)
type IFTAMileage struct {
	ID                int64     `json:"id" db:"id"`
	ConnectionID      int64     `json:"connection_id" db:"connection_id"`
	ExternalVehicleID string    `json:"external_vehicle_id" db:"external_vehicle_id"`
	VehicleID         *int64    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	Jurisdiction      string    `json:"jurisdiction" db:"jurisdiction"`
	Quarter           string    `json:"quarter" db:"quarter"` // 例如 2025-Q3
	Miles             float64   `json:"miles" db:"miles"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// ManualTrip 手动记录的行程（独立于 ELD 数据源）
type ManualTrip struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	VehicleID     int64     `json:"vehicle_id" db:"vehicle_id"`
	TripDate      time.Time `json:"trip_date" db:"trip_date"`
	StartOdometer float64   `json:"start_odometer" db:"start_odometer"`
	EndOdometer   float64   `json:"end_odometer" db:"end_odometer"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// StateCrossing 手动行程中的辖区切换事件
// 里程按相邻切换点的里程表差值归属到对应辖区
type StateCrossing struct {
	ID           int64   `json:"id" db:"id"`
	TripID       int64   `json:"trip_id" db:"trip_id"`
	Jurisdiction string  `json:"jurisdiction" db:"jurisdiction"`
	Odometer     float64 `json:"odometer" db:"odometer"`
}
