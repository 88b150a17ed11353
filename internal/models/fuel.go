package models

import "time"

// FuelPurchase 加油记录（规范化形状）
// 幂等键：(connection_id, external_id)
type FuelPurchase struct {
	ID                int64     `json:"id" db:"id"`
	ConnectionID      int64     `json:"connection_id" db:"connection_id"`
	ExternalID        string    `json:"external_id" db:"external_id"`
	ExternalVehicleID string    `json:"external_vehicle_id,omitempty" db:"external_vehicle_id"`
	VehicleID         *int64    `json:"vehicle_id,omitempty" db:"vehicle_id"`
	Jurisdiction      string    `json:"jurisdiction,omitempty" db:"jurisdiction"`
	Gallons           float64   `json:"gallons" db:"gallons"`
	TotalCost         *float64  `json:"total_cost,omitempty" db:"total_cost"`
	FuelType          string    `json:"fuel_type,omitempty" db:"fuel_type"`
	Vendor            string    `json:"vendor,omitempty" db:"vendor"`
	PurchasedAt       time.Time `json:"purchased_at" db:"purchased_at"`
}
