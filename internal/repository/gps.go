package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
)

// GPSRepository GPS 位置数据仓库
type GPSRepository struct {
	db *DB
}

// NewGPSRepository 创建 GPS 仓库
func NewGPSRepository(db *DB) *GPSRepository {
	return &GPSRepository{db: db}
}

// Upsert 幂等写入位置记录，键为 (connection_id, external_id)
func (r *GPSRepository) Upsert(ctx context.Context, loc *models.GPSLocation) error {
	query := `
		INSERT INTO gps_locations (connection_id, external_id, external_vehicle_id, vehicle_id, latitude, longitude, heading, speed_mph, odometer_km, address, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			speed_mph = EXCLUDED.speed_mph,
			odometer_km = EXCLUDED.odometer_km,
			address = EXCLUDED.address,
			recorded_at = EXCLUDED.recorded_at
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		loc.ConnectionID,
		loc.ExternalID,
		loc.ExternalVehicleID,
		loc.VehicleID,
		loc.Latitude,
		loc.Longitude,
		loc.Heading,
		loc.SpeedMph,
		loc.OdometerKm,
		loc.Address,
		loc.RecordedAt,
	).Scan(&loc.ID)
	if err != nil {
		return fmt.Errorf("upsert gps location: %w", err)
	}
	return nil
}

// ListLatestByUser 每辆车只取最新一条位置记录
func (r *GPSRepository) ListLatestByUser(ctx context.Context, userID int64) ([]*models.GPSLocation, error) {
	query := `
		SELECT DISTINCT ON (g.connection_id, g.external_vehicle_id)
			g.id, g.connection_id, g.external_id, g.external_vehicle_id, g.vehicle_id,
			g.latitude, g.longitude, g.heading, g.speed_mph, g.odometer_km, g.address, g.recorded_at
		FROM gps_locations g
		JOIN connections c ON c.id = g.connection_id
		WHERE c.user_id = $1
		ORDER BY g.connection_id, g.external_vehicle_id, g.recorded_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list latest locations: %w", err)
	}
	defer rows.Close()

	var out []*models.GPSLocation
	for rows.Next() {
		loc := &models.GPSLocation{}
		err := rows.Scan(
			&loc.ID, &loc.ConnectionID, &loc.ExternalID, &loc.ExternalVehicleID, &loc.VehicleID,
			&loc.Latitude, &loc.Longitude, &loc.Heading, &loc.SpeedMph, &loc.OdometerKm, &loc.Address, &loc.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gps location: %w", err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// ListByVehicle 查询某车辆一段时间内的轨迹
func (r *GPSRepository) ListByVehicle(ctx context.Context, connectionID int64, externalVehicleID string, from, to time.Time) ([]*models.GPSLocation, error) {
	query := `
		SELECT id, connection_id, external_id, external_vehicle_id, vehicle_id,
		       latitude, longitude, heading, speed_mph, odometer_km, address, recorded_at
		FROM gps_locations
		WHERE connection_id = $1 AND external_vehicle_id = $2 AND recorded_at BETWEEN $3 AND $4
		ORDER BY recorded_at
	`
	rows, err := r.db.Pool.Query(ctx, query, connectionID, externalVehicleID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list vehicle locations: %w", err)
	}
	defer rows.Close()

	var out []*models.GPSLocation
	for rows.Next() {
		loc := &models.GPSLocation{}
		err := rows.Scan(
			&loc.ID, &loc.ConnectionID, &loc.ExternalID, &loc.ExternalVehicleID, &loc.VehicleID,
			&loc.Latitude, &loc.Longitude, &loc.Heading, &loc.SpeedMph, &loc.OdometerKm, &loc.Address, &loc.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gps location: %w", err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// CountByConnection 统计连接的位置记录数
func (r *GPSRepository) CountByConnection(ctx context.Context, connectionID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM gps_locations WHERE connection_id = $1`, connectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count gps locations: %w", err)
	}
	return count, nil
}
