package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
)

// HOSRepository 值班日志数据仓库
type HOSRepository struct {
	db *DB
}

// NewHOSRepository 创建 HOS 仓库
func NewHOSRepository(db *DB) *HOSRepository {
	return &HOSRepository{db: db}
}

// UpsertLog 幂等写入值班日志，键为 (connection_id, external_id)
func (r *HOSRepository) UpsertLog(ctx context.Context, log *models.HOSLog) error {
	query := `
		INSERT INTO hos_logs (connection_id, external_id, external_driver_id, driver_id, duty_status, started_at, ended_at, location, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			driver_id = EXCLUDED.driver_id,
			duty_status = EXCLUDED.duty_status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			location = EXCLUDED.location,
			remark = EXCLUDED.remark
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		log.ConnectionID,
		log.ExternalID,
		log.ExternalDriverID,
		log.DriverID,
		log.DutyStatus,
		log.StartedAt,
		log.EndedAt,
		log.Location,
		log.Remark,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("upsert hos log: %w", err)
	}
	return nil
}

// UpsertDailyLog 幂等写入每日汇总，键为 (connection_id, external_driver_id, log_date)
func (r *HOSRepository) UpsertDailyLog(ctx context.Context, log *models.HOSDailyLog) error {
	query := `
		INSERT INTO hos_daily_logs (connection_id, external_driver_id, driver_id, log_date, drive_minutes, on_duty_minutes, remaining_drive_minutes, cycle_remaining_minutes, has_violation, violation_remarks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (connection_id, external_driver_id, log_date) DO UPDATE SET
			driver_id = EXCLUDED.driver_id,
			drive_minutes = EXCLUDED.drive_minutes,
			on_duty_minutes = EXCLUDED.on_duty_minutes,
			remaining_drive_minutes = EXCLUDED.remaining_drive_minutes,
			cycle_remaining_minutes = EXCLUDED.cycle_remaining_minutes,
			has_violation = EXCLUDED.has_violation,
			violation_remarks = EXCLUDED.violation_remarks
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		log.ConnectionID,
		log.ExternalDriverID,
		log.DriverID,
		log.LogDate,
		log.DriveMinutes,
		log.OnDutyMinutes,
		log.RemainingDriveMin,
		log.CycleRemainingMin,
		log.HasViolation,
		log.ViolationRemarks,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("upsert hos daily log: %w", err)
	}
	return nil
}

// ListLatestDailyByUser 每个司机只取最新一天的汇总
func (r *HOSRepository) ListLatestDailyByUser(ctx context.Context, userID int64) ([]*models.HOSDailyLog, error) {
	query := `
		SELECT DISTINCT ON (h.connection_id, h.external_driver_id)
			h.id, h.connection_id, h.external_driver_id, h.driver_id, h.log_date,
			h.drive_minutes, h.on_duty_minutes, h.remaining_drive_minutes, h.cycle_remaining_minutes,
			h.has_violation, h.violation_remarks
		FROM hos_daily_logs h
		JOIN connections c ON c.id = h.connection_id
		WHERE c.user_id = $1
		ORDER BY h.connection_id, h.external_driver_id, h.log_date DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list latest daily logs: %w", err)
	}
	defer rows.Close()

	var out []*models.HOSDailyLog
	for rows.Next() {
		log := &models.HOSDailyLog{}
		var remarks *string
		err := rows.Scan(
			&log.ID, &log.ConnectionID, &log.ExternalDriverID, &log.DriverID, &log.LogDate,
			&log.DriveMinutes, &log.OnDutyMinutes, &log.RemainingDriveMin, &log.CycleRemainingMin,
			&log.HasViolation, &remarks,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily log: %w", err)
		}
		if remarks != nil {
			log.ViolationRemarks = *remarks
		}
		out = append(out, log)
	}
	return out, nil
}

// ListLogsByDriver 查询司机一段时间内的值班日志
func (r *HOSRepository) ListLogsByDriver(ctx context.Context, connectionID int64, externalDriverID string, from, to time.Time) ([]*models.HOSLog, error) {
	query := `
		SELECT id, connection_id, external_id, external_driver_id, driver_id, duty_status, started_at, ended_at, location, remark
		FROM hos_logs
		WHERE connection_id = $1 AND external_driver_id = $2 AND started_at BETWEEN $3 AND $4
		ORDER BY started_at
	`
	rows, err := r.db.Pool.Query(ctx, query, connectionID, externalDriverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list hos logs: %w", err)
	}
	defer rows.Close()

	var out []*models.HOSLog
	for rows.Next() {
		log := &models.HOSLog{}
		var location, remark *string
		err := rows.Scan(
			&log.ID, &log.ConnectionID, &log.ExternalID, &log.ExternalDriverID, &log.DriverID,
			&log.DutyStatus, &log.StartedAt, &log.EndedAt, &location, &remark,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hos log: %w", err)
		}
		if location != nil {
			log.Location = *location
		}
		if remark != nil {
			log.Remark = *remark
		}
		out = append(out, log)
	}
	return out, nil
}

// CountLogsByConnection 统计连接的值班日志数
func (r *HOSRepository) CountLogsByConnection(ctx context.Context, connectionID int64) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM hos_logs WHERE connection_id = $1`, connectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count hos logs: %w", err)
	}
	return count, nil
}
