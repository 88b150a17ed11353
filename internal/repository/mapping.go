package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleetbridge/internal/models"
)

// MappingRepository 实体映射数据仓库
type MappingRepository struct {
	db *DB
}

// NewMappingRepository 创建映射仓库
func NewMappingRepository(db *DB) *MappingRepository {
	return &MappingRepository{db: db}
}

const mappingColumns = `id, connection_id, entity_type, external_id, local_id, match_method, created_at`

func scanMapping(row pgx.Row) (*models.EntityMapping, error) {
	m := &models.EntityMapping{}
	err := row.Scan(&m.ID, &m.ConnectionID, &m.EntityType, &m.ExternalID, &m.LocalID, &m.MatchMethod, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan mapping: %w", err)
	}
	return m, nil
}

// Get 查询映射
func (r *MappingRepository) Get(ctx context.Context, connectionID int64, entityType, externalID string) (*models.EntityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM entity_mappings WHERE connection_id = $1 AND entity_type = $2 AND external_id = $3`
	return scanMapping(r.db.Pool.QueryRow(ctx, query, connectionID, entityType, externalID))
}

// ListByConnection 列出连接的全部映射
func (r *MappingRepository) ListByConnection(ctx context.Context, connectionID int64) ([]*models.EntityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM entity_mappings WHERE connection_id = $1 ORDER BY entity_type, external_id`
	rows, err := r.db.Pool.Query(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []*models.EntityMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// InsertAuto 写入自动匹配结果
// ON CONFLICT DO NOTHING：已存在的映射（包括手动映射）绝不被自动匹配覆盖
func (r *MappingRepository) InsertAuto(ctx context.Context, connectionID int64, entityType, externalID string, localID int64) error {
	query := `
		INSERT INTO entity_mappings (connection_id, entity_type, external_id, local_id, match_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (connection_id, entity_type, external_id) DO NOTHING
	`
	if _, err := r.db.Pool.Exec(ctx, query, connectionID, entityType, externalID, localID, models.MatchMethodAuto); err != nil {
		return fmt.Errorf("insert auto mapping: %w", err)
	}
	return nil
}

// UpsertManual 写入手动映射，覆盖任何已有映射
func (r *MappingRepository) UpsertManual(ctx context.Context, connectionID int64, entityType, externalID string, localID int64) (*models.EntityMapping, error) {
	query := `
		INSERT INTO entity_mappings (connection_id, entity_type, external_id, local_id, match_method)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (connection_id, entity_type, external_id) DO UPDATE SET
			local_id = EXCLUDED.local_id,
			match_method = EXCLUDED.match_method
		RETURNING ` + mappingColumns
	return scanMapping(r.db.Pool.QueryRow(ctx, query, connectionID, entityType, externalID, localID, models.MatchMethodManual))
}

// Delete 删除映射
func (r *MappingRepository) Delete(ctx context.Context, connectionID int64, entityType, externalID string) error {
	query := `DELETE FROM entity_mappings WHERE connection_id = $1 AND entity_type = $2 AND external_id = $3`
	tag, err := r.db.Pool.Exec(ctx, query, connectionID, entityType, externalID)
	if err != nil {
		return fmt.Errorf("delete mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
