package repository

import (
	"context"
	"fmt"

	"github.com/langchou/fleetbridge/internal/models"
)

// FuelRepository 加油记录数据仓库
type FuelRepository struct {
	db *DB
}

// NewFuelRepository 创建加油仓库
func NewFuelRepository(db *DB) *FuelRepository {
	return &FuelRepository{db: db}
}

// Upsert 幂等写入加油记录，键为 (connection_id, external_id)
func (r *FuelRepository) Upsert(ctx context.Context, p *models.FuelPurchase) error {
	query := `
		INSERT INTO fuel_purchases (connection_id, external_id, external_vehicle_id, vehicle_id, jurisdiction, gallons, total_cost, fuel_type, vendor, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			jurisdiction = EXCLUDED.jurisdiction,
			gallons = EXCLUDED.gallons,
			total_cost = EXCLUDED.total_cost,
			fuel_type = EXCLUDED.fuel_type,
			vendor = EXCLUDED.vendor
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		p.ConnectionID,
		p.ExternalID,
		p.ExternalVehicleID,
		p.VehicleID,
		p.Jurisdiction,
		p.Gallons,
		p.TotalCost,
		p.FuelType,
		p.Vendor,
		p.PurchasedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("upsert fuel purchase: %w", err)
	}
	return nil
}

// SumGallonsByJurisdiction 按辖区聚合用户某季度的加油量
func (r *FuelRepository) SumGallonsByJurisdiction(ctx context.Context, userID int64, quarter string) (map[string]float64, error) {
	query := `
		SELECT p.jurisdiction, SUM(p.gallons)
		FROM fuel_purchases p
		JOIN connections c ON c.id = p.connection_id
		WHERE c.user_id = $1
		  AND p.jurisdiction IS NOT NULL AND p.jurisdiction <> ''
		  AND to_char(p.purchased_at, 'YYYY') || '-Q' || to_char(p.purchased_at, 'Q') = $2
		GROUP BY p.jurisdiction
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, quarter)
	if err != nil {
		return nil, fmt.Errorf("sum fuel gallons: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var jurisdiction string
		var gallons float64
		if err := rows.Scan(&jurisdiction, &gallons); err != nil {
			return nil, fmt.Errorf("scan fuel sum: %w", err)
		}
		out[jurisdiction] = gallons
	}
	return out, nil
}
