package models

import "time"

// 连接状态常量
const (
	ConnectionStatusUnauthenticated = "unauthenticated"
	ConnectionStatusActive          = "active"
	ConnectionStatusError           = "error"
	ConnectionStatusTokenExpired    = "token_expired"
	ConnectionStatusDisconnected    = "disconnected"
)

// Connection 用户与 ELD 服务商之间的授权连接
// 每个 (用户, 服务商) 最多只有一条未删除的连接记录
type Connection struct {
	ID                   int64      `json:"id" db:"id"`
	UserID               int64      `json:"user_id" db:"user_id"`
	ProviderID           string     `json:"provider_id" db:"provider_id"`
	AccessToken          string     `json:"-" db:"access_token"`
	RefreshToken         string     `json:"-" db:"refresh_token"`
	TokenExpiresAt       *time.Time `json:"token_expires_at,omitempty" db:"token_expires_at"`
	Status               string     `json:"status" db:"status"`
	CompanyName          string     `json:"company_name,omitempty" db:"company_name"`
	SyncFrequencyMinutes int        `json:"sync_frequency_minutes" db:"sync_frequency_minutes"`
	LastSyncAt           *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`
	ErrorMessage         string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// TokenExpiringWithin 检查 token 是否在指定时间内过期
func (c *Connection) TokenExpiringWithin(horizon time.Duration) bool {
	if c.TokenExpiresAt == nil {
		return false
	}
	return time.Now().Add(horizon).After(*c.TokenExpiresAt)
}

// SyncLog 单次同步的审计记录
type SyncLog struct {
	ID           int64     `json:"id" db:"id"`
	ConnectionID int64     `json:"connection_id" db:"connection_id"`
	Domain       string    `json:"domain" db:"domain"`
	Status       string    `json:"status" db:"status"` // success, partial, failed
	SyncedCount  int       `json:"synced_count" db:"synced_count"`
	SkippedCount int       `json:"skipped_count" db:"skipped_count"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
}
