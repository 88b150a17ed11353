package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/config"
	"github.com/langchou/fleetbridge/internal/connection"
	"github.com/langchou/fleetbridge/internal/ifta"
	"github.com/langchou/fleetbridge/internal/mapping"
	"github.com/langchou/fleetbridge/internal/reader"
	"github.com/langchou/fleetbridge/internal/repository"
	"github.com/langchou/fleetbridge/internal/syncer"
	"github.com/langchou/fleetbridge/pkg/ws"
)

// Handler HTTP 处理器
type Handler struct {
	logger      *zap.Logger
	cfg         *config.Config
	connManager *connection.Manager
	mapper      *mapping.Mapper
	syncer      *syncer.Syncer
	hosReader   *reader.HOSReader
	gpsReader   *reader.GPSReader
	diagReader  *reader.DiagnosticsReader
	iftaEngine  *ifta.Engine

	fleetRepo      *repository.FleetRepository
	syncLogRepo    *repository.SyncLogRepository
	manualTripRepo *repository.ManualTripRepository

	wsHub    *ws.Hub
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	cfg *config.Config,
	connManager *connection.Manager,
	mapper *mapping.Mapper,
	sync *syncer.Syncer,
	hosReader *reader.HOSReader,
	gpsReader *reader.GPSReader,
	diagReader *reader.DiagnosticsReader,
	iftaEngine *ifta.Engine,
	fleetRepo *repository.FleetRepository,
	syncLogRepo *repository.SyncLogRepository,
	manualTripRepo *repository.ManualTripRepository,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:         logger,
		cfg:            cfg,
		connManager:    connManager,
		mapper:         mapper,
		syncer:         sync,
		hosReader:      hosReader,
		gpsReader:      gpsReader,
		diagReader:     diagReader,
		iftaEngine:     iftaEngine,
		fleetRepo:      fleetRepo,
		syncLogRepo:    syncLogRepo,
		manualTripRepo: manualTripRepo,
		wsHub:          wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 集成连接
		integrations := api.Group("/integrations")
		{
			integrations.GET("/providers", h.ListProviders)
			integrations.GET("/authorize/:provider", h.Authorize)
			integrations.GET("/callback", h.OAuthCallback)

			integrations.GET("/connections", h.ListConnections)
			integrations.GET("/connections/:id", h.GetConnection)
			integrations.POST("/connections/:id/verify", h.VerifyConnection)
			integrations.POST("/connections/:id/refresh", h.RefreshConnection)
			integrations.POST("/connections/:id/sync", h.TriggerSync)
			integrations.POST("/connections/:id/disconnect", h.DisconnectConnection)
			integrations.DELETE("/connections/:id", h.DeleteConnection)
			integrations.GET("/connections/:id/logs", h.ListSyncLogs)

			// 实体映射
			integrations.GET("/connections/:id/mappings", h.ListMappings)
			integrations.PUT("/connections/:id/mappings", h.CreateMapping)
			integrations.DELETE("/connections/:id/mappings", h.DeleteMapping)

			// 聚合服务商目录与透传
			integrations.GET("/terminal/catalog", h.TerminalCatalog)
			integrations.POST("/connections/:id/passthrough", h.TerminalPassthrough)
			integrations.POST("/connections/:id/sync-jobs", h.TerminalCreateSyncJob)
			integrations.GET("/connections/:id/sync-jobs/:job", h.TerminalGetSyncJob)
		}

		// 车队视图
		fleet := api.Group("/fleet")
		{
			fleet.GET("/vehicles", h.ListVehicles)
			fleet.POST("/vehicles", h.CreateVehicle)
			fleet.GET("/drivers", h.ListDrivers)
			fleet.POST("/drivers", h.CreateDriver)

			fleet.GET("/positions", h.LatestPositions)
			fleet.GET("/positions/nearby", h.PositionsNearby)
			fleet.GET("/vehicles/history", h.PositionHistory)

			fleet.GET("/hos", h.DriverStatuses)
			fleet.GET("/hos/logs", h.DriverHOSLogs)

			fleet.GET("/faults", h.ActiveFaults)
			fleet.POST("/faults/:id/clear", h.ClearFault)
		}

		// IFTA 报表
		iftaGroup := api.Group("/ifta")
		{
			iftaGroup.GET("/report", h.IFTAReport)
			iftaGroup.GET("/trips", h.ListManualTrips)
			iftaGroup.POST("/trips", h.CreateManualTrip)
		}
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// userID 从请求头取当前用户
// 网关层负责认证，这里只消费透传的身份
func (h *Handler) userID(c *gin.Context) (int64, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

// pathID 解析路径中的数字 ID
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
