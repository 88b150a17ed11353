package models

import "time"

// 实体映射类型常量
const (
	EntityTypeVehicle = "vehicle"
	EntityTypeDriver  = "driver"
)

// 匹配方式常量
const (
	MatchMethodAuto   = "auto"
	MatchMethodManual = "manual"
)

// EntityMapping 外部实体 ID 到本地实体 ID 的映射
// 唯一约束：(connection_id, entity_type, external_id)
// 手动映射永远不会被后续的自动匹配覆盖
type EntityMapping struct {
	ID           int64     `json:"id" db:"id"`
	ConnectionID int64     `json:"connection_id" db:"connection_id"`
	EntityType   string    `json:"entity_type" db:"entity_type"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	LocalID      int64     `json:"local_id" db:"local_id"`
	MatchMethod  string    `json:"match_method" db:"match_method"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
