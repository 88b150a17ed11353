package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
)

// Capability 服务商能力标识
type Capability string

const (
	CapVehicles      Capability = "vehicles"
	CapDrivers       Capability = "drivers"
	CapGPS           Capability = "gps"
	CapGPSFeed       Capability = "gps_feed"
	CapGPSHistory    Capability = "gps_history"
	CapHOS           Capability = "hos"
	CapIFTA          Capability = "ifta"
	CapFaultCodes    Capability = "fault_codes"
	CapFuelPurchases Capability = "fuel_purchases"
	CapWebhooks      Capability = "webhooks"
)

// Tokens OAuth 令牌交换/刷新结果
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // 秒
}

// ExpiresAt 根据 ExpiresIn 计算过期时间
func (t *Tokens) ExpiresAt() time.Time {
	return time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
}

// VerifyResult 连接校验结果
// token 无效时 Valid=false 且不返回错误
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	CompanyName   string `json:"company_name,omitempty"`
	ProviderLabel string `json:"provider_label,omitempty"`
}

// Adapter 服务商适配器统一接口
// 每个实现负责在内部耗尽自己的分页（游标或页码），
// 返回完整拼接后的规范化记录列表
type Adapter interface {
	// ID 服务商标识
	ID() string
	// Label 展示名称
	Label() string
	// Capabilities 支持的能力集合
	Capabilities() []Capability

	// AuthorizationURL 生成 OAuth 授权地址
	AuthorizationURL(redirectURI, state string) string
	// ExchangeCode 用授权码交换令牌
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Tokens, error)
	// RefreshTokens 刷新访问令牌
	RefreshTokens(ctx context.Context) (*Tokens, error)
	// SetTokens 设置当前令牌
	SetTokens(accessToken, refreshToken string)

	// VerifyConnection 校验连接有效性
	VerifyConnection(ctx context.Context) (*VerifyResult, error)

	FetchVehicles(ctx context.Context) ([]models.Vehicle, error)
	FetchDrivers(ctx context.Context) ([]models.Driver, error)
	FetchCurrentLocations(ctx context.Context) ([]models.GPSLocation, error)
	FetchLocationHistory(ctx context.Context, vehicleExternalID string, from, to time.Time) ([]models.GPSLocation, error)
	FetchHOSLogs(ctx context.Context, from, to time.Time) ([]models.HOSLog, error)
	FetchHOSDailyLogs(ctx context.Context, from, to time.Time) ([]models.HOSDailyLog, error)
	FetchIFTASummary(ctx context.Context, quarter string) ([]models.IFTAMileage, error)
	FetchFaultCodes(ctx context.Context) ([]models.FaultCode, error)
	FetchFuelPurchases(ctx context.Context, from, to time.Time) ([]models.FuelPurchase, error)
}

// Supports 检查适配器是否支持某能力
func Supports(a Adapter, cap Capability) bool {
	for _, c := range a.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}

// Factory 适配器工厂函数
// 每次同步为连接创建独立的适配器实例，避免并发共享令牌状态
type Factory func() Adapter

// Registry 服务商注册表
// 新增服务商只需注册一个工厂，不需要改动分发逻辑
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册服务商工厂
func (r *Registry) Register(providerID string, f Factory) {
	r.factories[providerID] = f
}

// Create 根据服务商 ID 创建适配器
func (r *Registry) Create(providerID string) (Adapter, error) {
	f, ok := r.factories[providerID]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerID)
	}
	return f(), nil
}

// IDs 返回所有已注册的服务商 ID
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}
