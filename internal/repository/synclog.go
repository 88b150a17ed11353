package repository

import (
	"context"
	"fmt"

	"github.com/langchou/fleetbridge/internal/models"
)

// SyncLogRepository 同步审计日志仓库
type SyncLogRepository struct {
	db *DB
}

// NewSyncLogRepository 创建同步日志仓库
func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// Insert 写入一条同步审计记录
func (r *SyncLogRepository) Insert(ctx context.Context, l *models.SyncLog) error {
	query := `
		INSERT INTO sync_logs (connection_id, domain, status, synced_count, skipped_count, error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		l.ConnectionID,
		l.Domain,
		l.Status,
		l.SyncedCount,
		l.SkippedCount,
		l.ErrorMessage,
		l.StartedAt,
		l.FinishedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert sync log: %w", err)
	}
	return nil
}

// ListRecent 按开始时间倒序列出连接最近的同步记录
func (r *SyncLogRepository) ListRecent(ctx context.Context, connectionID int64, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, connection_id, domain, status, synced_count, skipped_count, COALESCE(error_message, ''), started_at, finished_at
		FROM sync_logs
		WHERE connection_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, connectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SyncLog
	for rows.Next() {
		l := &models.SyncLog{}
		if err := rows.Scan(&l.ID, &l.ConnectionID, &l.Domain, &l.Status, &l.SyncedCount, &l.SkippedCount, &l.ErrorMessage, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
