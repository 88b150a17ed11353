package models

import "time"

// GPSLocation GPS 位置记录（规范化形状）
// 幂等键：(connection_id, external_id)
type GPSLocation struct {
	ID                int64     `json:"id" db:"id"`
	ConnectionID      int64     `json:"connection_id" db:"connection_id"`
	ExternalID        string    `json:"external_id" db:"external_id"`
	ExternalVehicleID string    `json:"external_vehicle_id" db:"external_vehicle_id"`
	VehicleID         *int64    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	Heading           *float64  `json:"heading,omitempty" db:"heading"`
	SpeedMph          *float64  `json:"speed_mph,omitempty" db:"speed_mph"`
	OdometerKm        *float64  `json:"odometer_km,omitempty" db:"odometer_km"`
	Address           string    `json:"address,omitempty" db:"address"`
	RecordedAt        time.Time `json:"recorded_at" db:"recorded_at"`
}
