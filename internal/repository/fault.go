package repository

import (
	"context"
	"fmt"

	"github.com/langchou/fleetbridge/internal/models"
)

// FaultRepository 故障码数据仓库
type FaultRepository struct {
	db *DB
}

// NewFaultRepository 创建故障码仓库
func NewFaultRepository(db *DB) *FaultRepository {
	return &FaultRepository{db: db}
}

// Upsert 幂等写入故障码，键为 (connection_id, external_id)
// 服务商报告故障已解决时 is_active 会被翻为 false
func (r *FaultRepository) Upsert(ctx context.Context, f *models.FaultCode) error {
	query := `
		INSERT INTO fault_codes (connection_id, external_id, external_vehicle_id, vehicle_id, code, description, severity, is_active, reported_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			vehicle_id = EXCLUDED.vehicle_id,
			description = EXCLUDED.description,
			severity = EXCLUDED.severity,
			is_active = EXCLUDED.is_active,
			resolved_at = EXCLUDED.resolved_at
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		f.ConnectionID,
		f.ExternalID,
		f.ExternalVehicleID,
		f.VehicleID,
		f.Code,
		f.Description,
		f.Severity,
		f.IsActive,
		f.ReportedAt,
		f.ResolvedAt,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("upsert fault code: %w", err)
	}
	return nil
}

// ListActiveByUser 列出用户全部活跃故障码
func (r *FaultRepository) ListActiveByUser(ctx context.Context, userID int64) ([]*models.FaultCode, error) {
	query := `
		SELECT f.id, f.connection_id, f.external_id, f.external_vehicle_id, f.vehicle_id,
		       f.code, f.description, f.severity, f.is_active, f.reported_at, f.resolved_at
		FROM fault_codes f
		JOIN connections c ON c.id = f.connection_id
		WHERE c.user_id = $1 AND f.is_active = true
		ORDER BY f.reported_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active fault codes: %w", err)
	}
	defer rows.Close()

	var out []*models.FaultCode
	for rows.Next() {
		f := &models.FaultCode{}
		var description, severity *string
		err := rows.Scan(
			&f.ID, &f.ConnectionID, &f.ExternalID, &f.ExternalVehicleID, &f.VehicleID,
			&f.Code, &description, &severity, &f.IsActive, &f.ReportedAt, &f.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fault code: %w", err)
		}
		if description != nil {
			f.Description = *description
		}
		if severity != nil {
			f.Severity = *severity
		}
		out = append(out, f)
	}
	return out, nil
}

// Clear 手动清除故障码
func (r *FaultRepository) Clear(ctx context.Context, id int64) error {
	query := `UPDATE fault_codes SET is_active = false, resolved_at = NOW() WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("clear fault code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByConnection 统计连接的故障码记录数
func (r *FaultRepository) CountByConnection(ctx context.Context, connectionID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM fault_codes WHERE connection_id = $1`, connectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count fault codes: %w", err)
	}
	return count, nil
}
