package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider/terminal"
	"github.com/langchou/fleetbridge/internal/repository"
	"github.com/langchou/fleetbridge/internal/syncer"
)

// ListProviders 获取支持的服务商列表
func (h *Handler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.connManager.Providers()})
}

// Authorize 发起 OAuth 授权，返回跳转地址
func (h *Handler) Authorize(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	providerID := c.Param("provider")
	redirectURI := h.cfg.RedirectBaseURL + "/api/integrations/callback"

	url, err := h.connManager.StartAuthorization(c.Request.Context(), userID, providerID, redirectURI)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"authorization_url": url}})
}

// OAuthCallback 处理服务商的 OAuth 回调
func (h *Handler) OAuthCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code or state"})
		return
	}

	redirectURI := h.cfg.RedirectBaseURL + "/api/integrations/callback"
	conn, err := h.connManager.HandleCallback(c.Request.Context(), code, state, redirectURI)
	if err != nil {
		h.logger.Error("OAuth callback failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": conn})
}

// ListConnections 列出当前用户的连接
func (h *Handler) ListConnections(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	conns, err := h.connManager.List(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list connections", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list connections"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": conns})
}

// ownedConnection 取连接并校验归属
func (h *Handler) ownedConnection(c *gin.Context) (*models.Connection, bool) {
	userID, ok := h.userID(c)
	if !ok {
		return nil, false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}

	conn, err := h.connManager.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load connection"})
		}
		return nil, false
	}
	if conn.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return nil, false
	}
	return conn, true
}

// GetConnection 获取连接详情
func (h *Handler) GetConnection(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conn})
}

// VerifyConnection 主动校验连接有效性
func (h *Handler) VerifyConnection(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	result, err := h.connManager.Verify(c.Request.Context(), conn.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// RefreshConnection 手动刷新连接令牌
func (h *Handler) RefreshConnection(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	if err := h.connManager.Refresh(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": conn})
}

// TriggerSync 手动触发一轮同步
// 可选 body: {"domains": ["gps", "hos"]}
func (h *Handler) TriggerSync(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	var req struct {
		Domains []string `json:"domains"`
	}
	_ = c.ShouldBindJSON(&req)

	results, err := h.syncer.Sync(c.Request.Context(), conn.ID, req.Domains)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "Sync already in progress"})
			return
		}
		h.logger.Error("Manual sync failed", zap.Error(err), zap.Int64("connection_id", conn.ID))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

// DisconnectConnection 软断开连接，保留历史数据
func (h *Handler) DisconnectConnection(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	if err := h.connManager.Disconnect(c.Request.Context(), conn.ID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Connection disconnected"})
}

// DeleteConnection 删除连接及其全部同步数据
func (h *Handler) DeleteConnection(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	if err := h.connManager.Delete(c.Request.Context(), conn.ID); err != nil {
		h.logger.Error("Failed to delete connection", zap.Error(err), zap.Int64("connection_id", conn.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Connection deleted"})
}

// ListSyncLogs 查询连接最近的同步记录
func (h *Handler) ListSyncLogs(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.syncLogRepo.ListRecent(c.Request.Context(), conn.ID, limit)
	if err != nil {
		h.logger.Error("Failed to list sync logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sync logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// ListMappings 列出连接的实体映射
func (h *Handler) ListMappings(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	mappings, err := h.mapper.List(c.Request.Context(), conn.ID)
	if err != nil {
		h.logger.Error("Failed to list mappings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list mappings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": mappings})
}

// CreateMapping 手动建立实体映射
func (h *Handler) CreateMapping(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	var req struct {
		EntityType string `json:"entity_type" binding:"required"`
		ExternalID string `json:"external_id" binding:"required"`
		LocalID    int64  `json:"local_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.EntityType != models.EntityTypeVehicle && req.EntityType != models.EntityTypeDriver {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entity_type must be vehicle or driver"})
		return
	}

	em, err := h.mapper.MapManual(c.Request.Context(), conn.ID, req.EntityType, req.ExternalID, req.LocalID)
	if err != nil {
		h.logger.Error("Failed to create mapping", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create mapping"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": em})
}

// DeleteMapping 删除实体映射
func (h *Handler) DeleteMapping(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}

	entityType := c.Query("entity_type")
	externalID := c.Query("external_id")
	if entityType == "" || externalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing entity_type or external_id"})
		return
	}

	if err := h.mapper.Unmap(c.Request.Context(), conn.ID, entityType, externalID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mapping not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete mapping"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Mapping deleted"})
}

// terminalClient 为 Terminal 连接构建带令牌的客户端
func (h *Handler) terminalClient(c *gin.Context, conn *models.Connection) (*terminal.Client, bool) {
	if conn.ProviderID != "terminal" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Connection is not a Terminal connection"})
		return nil, false
	}
	client := terminal.New(terminal.Config{
		PublicKey: h.cfg.TerminalPublicKey,
		SecretKey: h.cfg.TerminalSecretKey,
		APIHost:   h.cfg.TerminalAPIHost,
	})
	client.SetTokens(conn.AccessToken, "")
	return client, true
}

// TerminalCatalog 列出聚合器支持的底层服务商目录
// 需要一个已授权的 Terminal 连接，connection_id 从查询参数传入
func (h *Handler) TerminalCatalog(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	connID, err := strconv.ParseInt(c.Query("connection_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid connection_id"})
		return
	}

	conn, err := h.connManager.Get(c.Request.Context(), connID)
	if err != nil || conn.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}

	client, ok := h.terminalClient(c, conn)
	if !ok {
		return
	}

	providers, err := client.ListProviders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": providers})
}

// TerminalPassthrough 原样转发底层服务商调用
func (h *Handler) TerminalPassthrough(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}
	client, ok := h.terminalClient(c, conn)
	if !ok {
		return
	}

	var req struct {
		Method string `json:"method" binding:"required"`
		Path   string `json:"path" binding:"required"`
		Body   string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var payload []byte
	if req.Body != "" {
		payload = []byte(req.Body)
	}
	body, err := client.Passthrough(c.Request.Context(), req.Method, req.Path, payload)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", body)
}

// TerminalCreateSyncJob 请求聚合器从底层服务商拉取历史数据
func (h *Handler) TerminalCreateSyncJob(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}
	client, ok := h.terminalClient(c, conn)
	if !ok {
		return
	}

	var req struct {
		HistoricalDays int `json:"historical_days"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.HistoricalDays <= 0 {
		req.HistoricalDays = 30
	}

	job, err := client.CreateSyncJob(c.Request.Context(), req.HistoricalDays)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

// TerminalGetSyncJob 查询聚合器同步作业状态
func (h *Handler) TerminalGetSyncJob(c *gin.Context) {
	conn, ok := h.ownedConnection(c)
	if !ok {
		return
	}
	client, ok := h.terminalClient(c, conn)
	if !ok {
		return
	}

	job, err := client.GetSyncJob(c.Request.Context(), c.Param("job"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}
