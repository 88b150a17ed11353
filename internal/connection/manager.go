package connection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
	"github.com/langchou/fleetbridge/internal/repository"
)

// RefreshHorizon 提前刷新窗口
// token 在这个时间内过期时，使用连接前先刷新
const RefreshHorizon = 5 * time.Minute

// DefaultSyncFrequency 新连接的默认同步周期（分钟）
const DefaultSyncFrequency = 15

// Manager 连接管理器
// 负责 OAuth 授权流程、令牌刷新和连接生命周期
type Manager struct {
	logger   *zap.Logger
	registry *provider.Registry
	connRepo *repository.ConnectionRepository

	syncFrequency int
}

// NewManager 创建连接管理器
func NewManager(logger *zap.Logger, registry *provider.Registry, connRepo *repository.ConnectionRepository, syncFrequency int) *Manager {
	if syncFrequency <= 0 {
		syncFrequency = DefaultSyncFrequency
	}
	return &Manager{
		logger:        logger,
		registry:      registry,
		connRepo:      connRepo,
		syncFrequency: syncFrequency,
	}
}

// ProviderInfo 服务商摘要
type ProviderInfo struct {
	ID           string                `json:"id"`
	Label        string                `json:"label"`
	Capabilities []provider.Capability `json:"capabilities"`
}

// Providers 返回所有已注册服务商的摘要
func (m *Manager) Providers() []ProviderInfo {
	ids := m.registry.IDs()
	infos := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		adapter, err := m.registry.Create(id)
		if err != nil {
			continue
		}
		infos = append(infos, ProviderInfo{
			ID:           adapter.ID(),
			Label:        adapter.Label(),
			Capabilities: adapter.Capabilities(),
		})
	}
	return infos
}

// StartAuthorization 生成服务商授权地址
func (m *Manager) StartAuthorization(ctx context.Context, userID int64, providerID, redirectURI string) (string, error) {
	adapter, err := m.registry.Create(providerID)
	if err != nil {
		return "", err
	}

	state, err := NewState(userID, providerID)
	if err != nil {
		return "", err
	}

	url := adapter.AuthorizationURL(redirectURI, state)
	m.logger.Info("authorization started",
		zap.Int64("user_id", userID),
		zap.String("provider", providerID))
	return url, nil
}

// HandleCallback 处理 OAuth 回调，交换授权码并落库
// 同一 (用户, 服务商) 重复授权会覆盖旧令牌并重置状态
func (m *Manager) HandleCallback(ctx context.Context, code, stateToken, redirectURI string) (*models.Connection, error) {
	state, err := ParseState(stateToken)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}

	adapter, err := m.registry.Create(state.ProviderID)
	if err != nil {
		return nil, err
	}

	tokens, err := adapter.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	expiresAt := tokens.ExpiresAt()
	conn := &models.Connection{
		UserID:               state.UserID,
		ProviderID:           state.ProviderID,
		AccessToken:          tokens.AccessToken,
		RefreshToken:         tokens.RefreshToken,
		TokenExpiresAt:       &expiresAt,
		Status:               models.ConnectionStatusActive,
		SyncFrequencyMinutes: m.syncFrequency,
	}
	conn, err = m.connRepo.Upsert(ctx, conn)
	if err != nil {
		return nil, err
	}

	// 首次校验，顺带获取公司名；校验失败不阻断授权流程
	adapter.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	if result, err := adapter.VerifyConnection(ctx); err == nil && result.Valid && result.CompanyName != "" {
		if err := m.connRepo.UpdateCompanyName(ctx, conn.ID, result.CompanyName); err != nil {
			m.logger.Warn("update company name failed", zap.Error(err))
		} else {
			conn.CompanyName = result.CompanyName
		}
	}

	m.logger.Info("connection authorized",
		zap.Int64("connection_id", conn.ID),
		zap.Int64("user_id", conn.UserID),
		zap.String("provider", conn.ProviderID))
	return conn, nil
}

// AdapterFor 为连接创建带令牌的适配器
// token 在刷新窗口内过期时先刷新再返回
func (m *Manager) AdapterFor(ctx context.Context, conn *models.Connection) (provider.Adapter, error) {
	if conn.Status == models.ConnectionStatusDisconnected {
		return nil, fmt.Errorf("connection %d is disconnected", conn.ID)
	}

	if conn.TokenExpiringWithin(RefreshHorizon) {
		if err := m.Refresh(ctx, conn); err != nil {
			return nil, err
		}
	}

	adapter, err := m.registry.Create(conn.ProviderID)
	if err != nil {
		return nil, err
	}
	adapter.SetTokens(conn.AccessToken, conn.RefreshToken)
	return adapter, nil
}

// Refresh 刷新连接令牌并更新内存中的连接对象
// 刷新失败时连接进入 token_expired 状态，等待用户重新授权
func (m *Manager) Refresh(ctx context.Context, conn *models.Connection) error {
	adapter, err := m.registry.Create(conn.ProviderID)
	if err != nil {
		return err
	}
	adapter.SetTokens(conn.AccessToken, conn.RefreshToken)

	tokens, err := adapter.RefreshTokens(ctx)
	if err != nil {
		next, terr := transition(conn.Status, EventRefreshFailed)
		if terr == nil {
			if uerr := m.connRepo.UpdateStatus(ctx, conn.ID, next, "token refresh failed: "+err.Error()); uerr != nil {
				m.logger.Error("update connection status failed", zap.Error(uerr))
			}
			conn.Status = next
		}
		m.logger.Warn("token refresh failed",
			zap.Int64("connection_id", conn.ID),
			zap.String("provider", conn.ProviderID),
			zap.Error(err))
		return fmt.Errorf("refresh tokens: %w", err)
	}

	expiresAt := tokens.ExpiresAt()
	if err := m.connRepo.UpdateTokens(ctx, conn.ID, tokens.AccessToken, tokens.RefreshToken, expiresAt); err != nil {
		return err
	}

	conn.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		conn.RefreshToken = tokens.RefreshToken
	}
	conn.TokenExpiresAt = &expiresAt
	conn.Status = models.ConnectionStatusActive
	conn.ErrorMessage = ""

	m.logger.Info("tokens refreshed",
		zap.Int64("connection_id", conn.ID),
		zap.String("provider", conn.ProviderID))
	return nil
}

// Verify 校验连接有效性并同步状态
func (m *Manager) Verify(ctx context.Context, connectionID int64) (*provider.VerifyResult, error) {
	conn, err := m.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	adapter, err := m.AdapterFor(ctx, conn)
	if err != nil {
		return nil, err
	}

	result, err := adapter.VerifyConnection(ctx)
	if err != nil {
		next, terr := transition(conn.Status, EventVerifyFailed)
		if terr == nil {
			if uerr := m.connRepo.UpdateStatus(ctx, conn.ID, next, "verify failed: "+err.Error()); uerr != nil {
				m.logger.Error("update connection status failed", zap.Error(uerr))
			}
		}
		return nil, fmt.Errorf("verify connection: %w", err)
	}

	if !result.Valid {
		next, terr := transition(conn.Status, EventVerifyFailed)
		if terr == nil {
			if uerr := m.connRepo.UpdateStatus(ctx, conn.ID, next, "provider rejected credentials"); uerr != nil {
				m.logger.Error("update connection status failed", zap.Error(uerr))
			}
		}
		return result, nil
	}

	// 校验通过，故障状态自动恢复
	if next, terr := transition(conn.Status, EventVerifyOK); terr == nil && next != conn.Status {
		if uerr := m.connRepo.UpdateStatus(ctx, conn.ID, next, ""); uerr != nil {
			m.logger.Error("update connection status failed", zap.Error(uerr))
		}
	}
	if result.CompanyName != "" && result.CompanyName != conn.CompanyName {
		if err := m.connRepo.UpdateCompanyName(ctx, conn.ID, result.CompanyName); err != nil {
			m.logger.Warn("update company name failed", zap.Error(err))
		}
	}
	return result, nil
}

// Get 获取连接
func (m *Manager) Get(ctx context.Context, connectionID int64) (*models.Connection, error) {
	return m.connRepo.GetByID(ctx, connectionID)
}

// List 列出用户的所有连接
func (m *Manager) List(ctx context.Context, userID int64) ([]*models.Connection, error) {
	return m.connRepo.ListByUser(ctx, userID)
}

// Disconnect 软断开连接，保留历史同步数据
func (m *Manager) Disconnect(ctx context.Context, connectionID int64) error {
	conn, err := m.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if _, err := transition(conn.Status, EventDisconnect); err != nil {
		return err
	}
	if err := m.connRepo.Disconnect(ctx, connectionID); err != nil {
		return err
	}
	m.logger.Info("connection disconnected", zap.Int64("connection_id", connectionID))
	return nil
}

// Delete 硬删除连接及其全部同步数据
func (m *Manager) Delete(ctx context.Context, connectionID int64) error {
	if err := m.connRepo.Delete(ctx, connectionID); err != nil {
		return err
	}
	m.logger.Info("connection deleted", zap.Int64("connection_id", connectionID))
	return nil
}

// ConnectionsNeedingSync 列出到达同步时机的活跃连接
func (m *Manager) ConnectionsNeedingSync(ctx context.Context) ([]*models.Connection, error) {
	return m.connRepo.ListNeedingSync(ctx)
}
