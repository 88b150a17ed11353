package models

import "time"

// Vehicle 车辆（规范化形状）
// 本地车队车辆由宿主应用维护；同步时通过 ExternalID/ConnectionID
// 关联到服务商侧的车辆记录
type Vehicle struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	ConnectionID *int64     `json:"connection_id,omitempty" db:"connection_id"`
	ExternalID   string     `json:"external_id,omitempty" db:"external_id"`
	Name         string     `json:"name" db:"name"`
	VIN          string     `json:"vin,omitempty" db:"vin"`
	LicensePlate string     `json:"license_plate,omitempty" db:"license_plate"`
	Make         string     `json:"make,omitempty" db:"make"`
	Model        string     `json:"model,omitempty" db:"model"`
	Year         *int       `json:"year,omitempty" db:"year"`
	OdometerKm   *float64   `json:"odometer_km,omitempty" db:"odometer_km"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Driver 司机（规范化形状）
type Driver struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	ConnectionID  *int64    `json:"connection_id,omitempty" db:"connection_id"`
	ExternalID    string    `json:"external_id,omitempty" db:"external_id"`
	Name          string    `json:"name" db:"name"`
	LicenseNumber string    `json:"license_number,omitempty" db:"license_number"`
	LicenseState  string    `json:"license_state,omitempty" db:"license_state"`
	Phone         string    `json:"phone,omitempty" db:"phone"`
	Email         string    `json:"email,omitempty" db:"email"`
	Status        string    `json:"status,omitempty" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
