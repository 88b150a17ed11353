package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleetbridge/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// ConnectionRepository 连接数据仓库
type ConnectionRepository struct {
	db *DB
}

// NewConnectionRepository 创建连接仓库
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, provider_id, access_token, refresh_token, token_expires_at, status, company_name, sync_frequency_minutes, last_sync_at, error_message, created_at, updated_at`

func scanConnection(row pgx.Row) (*models.Connection, error) {
	conn := &models.Connection{}
	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.ProviderID,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.TokenExpiresAt,
		&conn.Status,
		&conn.CompanyName,
		&conn.SyncFrequencyMinutes,
		&conn.LastSyncAt,
		&conn.ErrorMessage,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan connection: %w", err)
	}
	return conn, nil
}

// Upsert 创建或更新连接
// 同一 (用户, 服务商) 重新授权时更新令牌并重置状态，不会产生重复记录
func (r *ConnectionRepository) Upsert(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	query := `
		INSERT INTO connections (user_id, provider_id, access_token, refresh_token, token_expires_at, status, company_name, sync_frequency_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, provider_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			status = EXCLUDED.status,
			company_name = EXCLUDED.company_name,
			error_message = '',
			updated_at = NOW()
		RETURNING ` + connectionColumns
	return scanConnection(r.db.Pool.QueryRow(ctx, query,
		conn.UserID,
		conn.ProviderID,
		conn.AccessToken,
		conn.RefreshToken,
		conn.TokenExpiresAt,
		conn.Status,
		conn.CompanyName,
		conn.SyncFrequencyMinutes,
	))
}

// GetByID 按 ID 获取连接
func (r *ConnectionRepository) GetByID(ctx context.Context, id int64) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	return scanConnection(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByUserAndProvider 按 (用户, 服务商) 获取连接
func (r *ConnectionRepository) GetByUserAndProvider(ctx context.Context, userID int64, providerID string) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 AND provider_id = $2`
	return scanConnection(r.db.Pool.QueryRow(ctx, query, userID, providerID))
}

// ListByUser 列出用户的全部连接
func (r *ConnectionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// UpdateStatus 更新连接状态和错误信息
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id int64, status, errorMessage string) error {
	query := `UPDATE connections SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	tag, err := r.db.Pool.Exec(ctx, query, status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTokens 原子更新令牌和过期时间，并清除错误状态
func (r *ConnectionRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE connections
		SET access_token = $1, refresh_token = $2, token_expires_at = $3,
		    status = $4, error_message = '', updated_at = NOW()
		WHERE id = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query, accessToken, refreshToken, expiresAt, models.ConnectionStatusActive, id)
	if err != nil {
		return fmt.Errorf("update connection tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCompanyName 更新公司名称
func (r *ConnectionRepository) UpdateCompanyName(ctx context.Context, id int64, companyName string) error {
	query := `UPDATE connections SET company_name = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.Pool.Exec(ctx, query, companyName, id); err != nil {
		return fmt.Errorf("update company name: %w", err)
	}
	return nil
}

// AdvanceLastSync 条件推进同步水位
// WHERE 条件带上旧值，两个并发同步只有一个能推进成功
func (r *ConnectionRepository) AdvanceLastSync(ctx context.Context, id int64, previous *time.Time, now time.Time) (bool, error) {
	query := `
		UPDATE connections SET last_sync_at = $1, updated_at = NOW()
		WHERE id = $2 AND last_sync_at IS NOT DISTINCT FROM $3
	`
	tag, err := r.db.Pool.Exec(ctx, query, now, id, previous)
	if err != nil {
		return false, fmt.Errorf("advance last_sync_at: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListNeedingSync 查询需要同步的活跃连接
// 条件：status=active 且 last_sync_at 为空或早于各自的同步周期
func (r *ConnectionRepository) ListNeedingSync(ctx context.Context) ([]*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE status = $1
		  AND (last_sync_at IS NULL
		       OR last_sync_at < NOW() - (sync_frequency_minutes || ' minutes')::interval)
		ORDER BY last_sync_at NULLS FIRST
	`
	rows, err := r.db.Pool.Query(ctx, query, models.ConnectionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list connections needing sync: %w", err)
	}
	defer rows.Close()

	var conns []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// Disconnect 软断开：清空令牌，状态置为 disconnected，保留历史数据
func (r *ConnectionRepository) Disconnect(ctx context.Context, id int64) error {
	query := `
		UPDATE connections
		SET access_token = '', refresh_token = '', token_expires_at = NULL,
		    status = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.Pool.Exec(ctx, query, models.ConnectionStatusDisconnected, id)
	if err != nil {
		return fmt.Errorf("disconnect connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete 硬删除：在一个事务里按依赖顺序级联删除连接的全部数据
func (r *ConnectionRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 依赖顺序：审计日志、映射、同步数据，最后是连接本身
	statements := []string{
		`DELETE FROM sync_logs WHERE connection_id = $1`,
		`DELETE FROM entity_mappings WHERE connection_id = $1`,
		`DELETE FROM gps_locations WHERE connection_id = $1`,
		`DELETE FROM hos_logs WHERE connection_id = $1`,
		`DELETE FROM hos_daily_logs WHERE connection_id = $1`,
		`DELETE FROM ifta_mileage WHERE connection_id = $1`,
		`DELETE FROM fault_codes WHERE connection_id = $1`,
		`DELETE FROM fuel_purchases WHERE connection_id = $1`,
		`UPDATE vehicles SET connection_id = NULL, external_id = NULL WHERE connection_id = $1`,
		`UPDATE drivers SET connection_id = NULL, external_id = NULL WHERE connection_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("cascade delete: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}
