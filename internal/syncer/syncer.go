package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/connection"
	"github.com/langchou/fleetbridge/internal/mapping"
	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
	"github.com/langchou/fleetbridge/internal/repository"
)

// 同步域常量
const (
	DomainVehicles = "vehicles"
	DomainDrivers  = "drivers"
	DomainGPS      = "gps"
	DomainHOS      = "hos"
	DomainIFTA     = "ifta"
	DomainFaults   = "faults"
	DomainFuel     = "fuel"
)

// AllDomains 默认同步域顺序
// 车辆和司机先同步，后续域的映射解析才有结果可查
var AllDomains = []string{DomainVehicles, DomainDrivers, DomainGPS, DomainHOS, DomainIFTA, DomainFaults, DomainFuel}

// 域结果状态常量
const (
	StatusSuccess  = "success"
	StatusPartial  = "partial"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
	StatusDeferred = "deferred"
)

// advisoryLockNamespace 同步互斥锁的命名空间，避免与其他业务的锁键冲突
const advisoryLockNamespace = 0x464C42 // "FLB"

// 默认增量窗口
const (
	defaultLookback = 24 * time.Hour
	hosLookback     = 7 * 24 * time.Hour
	fuelLookback    = 90 * 24 * time.Hour
)

// ErrSyncInProgress 同一连接的同步已在进行中
var ErrSyncInProgress = errors.New("sync already in progress for connection")

// DomainResult 单个同步域的执行结果
type DomainResult struct {
	Domain  string   `json:"domain"`
	Status  string   `json:"status"`
	Synced  int      `json:"synced"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Broadcaster 同步完成后的实时推送出口
type Broadcaster interface {
	Broadcast(event string, data any)
}

// Syncer 同步编排器
// 按域从服务商拉取数据、解析映射并幂等落库
type Syncer struct {
	logger  *zap.Logger
	db      *repository.DB
	manager *connection.Manager
	mapper  *mapping.Mapper

	connRepo    *repository.ConnectionRepository
	gpsRepo     *repository.GPSRepository
	hosRepo     *repository.HOSRepository
	iftaRepo    *repository.IFTARepository
	faultRepo   *repository.FaultRepository
	fuelRepo    *repository.FuelRepository
	syncLogRepo *repository.SyncLogRepository

	broadcaster Broadcaster
}

// NewSyncer 创建同步编排器
func NewSyncer(
	logger *zap.Logger,
	db *repository.DB,
	manager *connection.Manager,
	mapper *mapping.Mapper,
	connRepo *repository.ConnectionRepository,
	gpsRepo *repository.GPSRepository,
	hosRepo *repository.HOSRepository,
	iftaRepo *repository.IFTARepository,
	faultRepo *repository.FaultRepository,
	fuelRepo *repository.FuelRepository,
	syncLogRepo *repository.SyncLogRepository,
	broadcaster Broadcaster,
) *Syncer {
	return &Syncer{
		logger:      logger,
		db:          db,
		manager:     manager,
		mapper:      mapper,
		connRepo:    connRepo,
		gpsRepo:     gpsRepo,
		hosRepo:     hosRepo,
		iftaRepo:    iftaRepo,
		faultRepo:   faultRepo,
		fuelRepo:    fuelRepo,
		syncLogRepo: syncLogRepo,
		broadcaster: broadcaster,
	}
}

// Sync 对连接执行一轮同步
// 通过 Postgres advisory lock 保证同一连接同一时刻只有一轮同步在跑；
// 适配器获取失败是致命错误（不推进水位），单条记录失败只跳过计数
func (s *Syncer) Sync(ctx context.Context, connectionID int64, domains []string) (map[string]*DomainResult, error) {
	if len(domains) == 0 {
		domains = AllDomains
	}

	// 同一连接的同步互斥
	lockConn, err := s.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}
	defer lockConn.Release()

	var locked bool
	err = lockConn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1, $2)`, advisoryLockNamespace, connectionID).Scan(&locked)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return nil, ErrSyncInProgress
	}
	defer func() {
		if _, err := lockConn.Exec(context.Background(), `SELECT pg_advisory_unlock($1, $2)`, advisoryLockNamespace, connectionID); err != nil {
			s.logger.Warn("release advisory lock failed", zap.Error(err))
		}
	}()

	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	adapter, err := s.manager.AdapterFor(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("acquire adapter: %w", err)
	}

	previous := conn.LastSyncAt
	started := time.Now()

	results := make(map[string]*DomainResult, len(domains))
	for _, domain := range domains {
		result := s.syncDomain(ctx, conn, adapter, domain, previous)
		results[domain] = result
		s.audit(ctx, conn.ID, domain, result, started)
	}

	// 条件推进水位：并发同步只有一个能推进成功
	advanced, err := s.connRepo.AdvanceLastSync(ctx, conn.ID, previous, started)
	if err != nil {
		return results, err
	}
	if !advanced {
		s.logger.Warn("sync watermark not advanced, concurrent update detected",
			zap.Int64("connection_id", conn.ID))
	}

	s.logger.Info("sync round finished",
		zap.Int64("connection_id", conn.ID),
		zap.String("provider", conn.ProviderID),
		zap.Duration("elapsed", time.Since(started)))
	return results, nil
}

// SyncDue 为所有到达同步时机的连接各跑一轮
func (s *Syncer) SyncDue(ctx context.Context) {
	conns, err := s.manager.ConnectionsNeedingSync(ctx)
	if err != nil {
		s.logger.Error("list connections needing sync failed", zap.Error(err))
		return
	}
	for _, conn := range conns {
		if _, err := s.Sync(ctx, conn.ID, nil); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			s.logger.Error("scheduled sync failed",
				zap.Int64("connection_id", conn.ID),
				zap.Error(err))
		}
	}
}

// Run 周期调度主循环，直到 ctx 取消
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sync scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.SyncDue(ctx)
		}
	}
}

// syncDomain 执行单个域的同步，带一次认证重试
// 401 时刷新令牌重试一次，429 时直接延后这个域
func (s *Syncer) syncDomain(ctx context.Context, conn *models.Connection, adapter provider.Adapter, domain string, since *time.Time) *DomainResult {
	result := &DomainResult{Domain: domain, Status: StatusSuccess}

	if !s.domainSupported(adapter, domain) {
		result.Status = StatusSkipped
		return result
	}

	err := s.runDomain(ctx, conn, adapter, domain, since, result)
	if provider.IsAuthError(err) {
		// 刷新后重试一次
		if rerr := s.manager.Refresh(ctx, conn); rerr == nil {
			adapter.SetTokens(conn.AccessToken, conn.RefreshToken)
			result.Synced, result.Skipped, result.Errors = 0, 0, nil
			err = s.runDomain(ctx, conn, adapter, domain, since, result)
		}
	}

	switch {
	case err == nil:
		if len(result.Errors) > 0 {
			result.Status = StatusPartial
		}
	default:
		if retryAfter, ok := provider.IsRateLimitError(err); ok {
			result.Status = StatusDeferred
			result.Errors = append(result.Errors, fmt.Sprintf("rate limited, retry after %s", retryAfter))
			s.logger.Warn("domain deferred by rate limit",
				zap.Int64("connection_id", conn.ID),
				zap.String("domain", domain),
				zap.Duration("retry_after", retryAfter))
		} else {
			result.Status = StatusFailed
			result.Errors = append(result.Errors, err.Error())
			s.logger.Error("domain sync failed",
				zap.Int64("connection_id", conn.ID),
				zap.String("domain", domain),
				zap.Error(err))
		}
	}
	return result
}

// domainSupported 检查适配器是否声明了对应能力
func (s *Syncer) domainSupported(adapter provider.Adapter, domain string) bool {
	switch domain {
	case DomainVehicles:
		return provider.Supports(adapter, provider.CapVehicles)
	case DomainDrivers:
		return provider.Supports(adapter, provider.CapDrivers)
	case DomainGPS:
		return provider.Supports(adapter, provider.CapGPS)
	case DomainHOS:
		return provider.Supports(adapter, provider.CapHOS)
	case DomainIFTA:
		return provider.Supports(adapter, provider.CapIFTA)
	case DomainFaults:
		return provider.Supports(adapter, provider.CapFaultCodes)
	case DomainFuel:
		return provider.Supports(adapter, provider.CapFuelPurchases)
	}
	return false
}

// runDomain 分发到具体域的同步实现
func (s *Syncer) runDomain(ctx context.Context, conn *models.Connection, adapter provider.Adapter, domain string, since *time.Time, result *DomainResult) error {
	switch domain {
	case DomainVehicles:
		return s.syncVehicles(ctx, conn, adapter, result)
	case DomainDrivers:
		return s.syncDrivers(ctx, conn, adapter, result)
	case DomainGPS:
		return s.syncGPS(ctx, conn, adapter, result)
	case DomainHOS:
		return s.syncHOS(ctx, conn, adapter, since, result)
	case DomainIFTA:
		return s.syncIFTA(ctx, conn, adapter, result)
	case DomainFaults:
		return s.syncFaults(ctx, conn, adapter, result)
	case DomainFuel:
		return s.syncFuel(ctx, conn, adapter, since, result)
	}
	return fmt.Errorf("unknown sync domain: %s", domain)
}

// window 计算增量拉取窗口起点
func window(since *time.Time, lookback time.Duration) time.Time {
	if since != nil && time.Since(*since) < lookback {
		return *since
	}
	return time.Now().Add(-lookback)
}

// audit 写入同步审计记录
func (s *Syncer) audit(ctx context.Context, connectionID int64, domain string, result *DomainResult, started time.Time) {
	log := &models.SyncLog{
		ConnectionID: connectionID,
		Domain:       domain,
		Status:       result.Status,
		SyncedCount:  result.Synced,
		SkippedCount: result.Skipped,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	}
	if len(result.Errors) > 0 {
		log.ErrorMessage = result.Errors[0]
	}
	if err := s.syncLogRepo.Insert(ctx, log); err != nil {
		s.logger.Warn("insert sync log failed", zap.Error(err))
	}
}
