package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/fleetbridge/internal/api/handlers"
	"github.com/langchou/fleetbridge/internal/config"
	"github.com/langchou/fleetbridge/internal/connection"
	"github.com/langchou/fleetbridge/internal/ifta"
	"github.com/langchou/fleetbridge/internal/mapping"
	"github.com/langchou/fleetbridge/internal/provider"
	"github.com/langchou/fleetbridge/internal/provider/motive"
	"github.com/langchou/fleetbridge/internal/provider/samsara"
	"github.com/langchou/fleetbridge/internal/provider/terminal"
	"github.com/langchou/fleetbridge/internal/reader"
	"github.com/langchou/fleetbridge/internal/repository"
	"github.com/langchou/fleetbridge/internal/syncer"
	"github.com/langchou/fleetbridge/pkg/ws"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting FleetBridge", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	connRepo := repository.NewConnectionRepository(db)
	mappingRepo := repository.NewMappingRepository(db)
	fleetRepo := repository.NewFleetRepository(db)
	gpsRepo := repository.NewGPSRepository(db)
	hosRepo := repository.NewHOSRepository(db)
	iftaRepo := repository.NewIFTARepository(db)
	faultRepo := repository.NewFaultRepository(db)
	fuelRepo := repository.NewFuelRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)
	manualTripRepo := repository.NewManualTripRepository(db)

	// 注册服务商适配器
	registry := provider.NewRegistry()
	registry.Register("samsara", func() provider.Adapter {
		return samsara.New(samsara.Config{
			ClientID:     cfg.SamsaraClientID,
			ClientSecret: cfg.SamsaraClientSecret,
			AuthHost:     cfg.SamsaraAuthHost,
			APIHost:      cfg.SamsaraAPIHost,
		})
	})
	registry.Register("motive", func() provider.Adapter {
		return motive.New(motive.Config{
			ClientID:     cfg.MotiveClientID,
			ClientSecret: cfg.MotiveClientSecret,
			AuthHost:     cfg.MotiveAuthHost,
			APIHost:      cfg.MotiveAPIHost,
		})
	})
	registry.Register("terminal", func() provider.Adapter {
		return terminal.New(terminal.Config{
			PublicKey: cfg.TerminalPublicKey,
			SecretKey: cfg.TerminalSecretKey,
			APIHost:   cfg.TerminalAPIHost,
		})
	})

	// 创建 WebSocket Hub
	wsHub := ws.NewHub(logger)
	go wsHub.Run()

	// 创建服务
	connManager := connection.NewManager(logger, registry, connRepo, cfg.SyncFrequencyMinutes)
	mapper := mapping.NewMapper(logger, mappingRepo, fleetRepo, cfg.AutoCreateVehicles)
	sync := syncer.NewSyncer(
		logger,
		db,
		connManager,
		mapper,
		connRepo,
		gpsRepo,
		hosRepo,
		iftaRepo,
		faultRepo,
		fuelRepo,
		syncLogRepo,
		wsHub,
	)
	hosReader := reader.NewHOSReader(logger, hosRepo, reader.HOSConfig{
		WarningMinutes:  cfg.HOSWarningMinutes,
		CriticalMinutes: cfg.HOSCriticalMinutes,
	})
	gpsReader := reader.NewGPSReader(logger, gpsRepo)
	diagReader := reader.NewDiagnosticsReader(logger, faultRepo)
	iftaEngine := ifta.NewEngine(logger, iftaRepo, manualTripRepo, fuelRepo, ifta.Config{
		PreferELD: cfg.IFTAPreferELD,
	})

	// 启动同步调度器
	go sync.Run(ctx, cfg.SchedulerInterval)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(
		logger,
		cfg,
		connManager,
		mapper,
		sync,
		hosReader,
		gpsReader,
		diagReader,
		iftaEngine,
		fleetRepo,
		syncLogRepo,
		manualTripRepo,
		wsHub,
	)

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止调度器
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
