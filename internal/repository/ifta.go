package repository

import (
	"context"
	"fmt"

	"github.com/langchou/fleetbridge/internal/models"
)

// IFTARepository 辖区里程数据仓库
type IFTARepository struct {
	db *DB
}

// NewIFTARepository 创建 IFTA 仓库
func NewIFTARepository(db *DB) *IFTARepository {
	return &IFTARepository{db: db}
}

// Upsert 幂等写入辖区里程，键为 (connection_id, external_vehicle_id, jurisdiction, quarter)
func (r *IFTARepository) Upsert(ctx context.Context, m *models.IFTAMileage) error {
	query := `
		INSERT INTO ifta_mileage (connection_id, external_vehicle_id, vehicle_id, jurisdiction, quarter, miles)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (connection_id, external_vehicle_id, jurisdiction, quarter) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			miles = EXCLUDED.miles,
			updated_at = NOW()
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		m.ConnectionID,
		m.ExternalVehicleID,
		m.VehicleID,
		m.Jurisdiction,
		m.Quarter,
		m.Miles,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("upsert ifta mileage: %w", err)
	}
	return nil
}

// SumByJurisdiction 按辖区聚合用户某季度的 ELD 里程
func (r *IFTARepository) SumByJurisdiction(ctx context.Context, userID int64, quarter string) (map[string]float64, error) {
	query := `
		SELECT m.jurisdiction, SUM(m.miles)
		FROM ifta_mileage m
		JOIN connections c ON c.id = m.connection_id
		WHERE c.user_id = $1 AND m.quarter = $2
		GROUP BY m.jurisdiction
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, quarter)
	if err != nil {
		return nil, fmt.Errorf("sum ifta mileage: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var jurisdiction string
		var miles float64
		if err := rows.Scan(&jurisdiction, &miles); err != nil {
			return nil, fmt.Errorf("scan ifta sum: %w", err)
		}
		out[jurisdiction] = miles
	}
	return out, nil
}

// CountByConnection 统计连接的里程记录数
func (r *IFTARepository) CountByConnection(ctx context.Context, connectionID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM ifta_mileage WHERE connection_id = $1`, connectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ifta mileage: %w", err)
	}
	return count, nil
}
