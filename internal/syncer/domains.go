package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/provider"
	"github.com/langchou/fleetbridge/internal/reader"
)

// syncVehicles 拉取服务商车辆并自动匹配本地车辆
func (s *Syncer) syncVehicles(ctx context.Context, conn *models.Connection, adapter provider.Adapter, result *DomainResult) error {
	vehicles, err := adapter.FetchVehicles(ctx)
	if err != nil {
		return fmt.Errorf("fetch vehicles: %w", err)
	}

	matched, err := s.mapper.AutoMatchVehicles(ctx, conn.ID, conn.UserID, vehicles)
	if err != nil {
		return fmt.Errorf("auto match vehicles: %w", err)
	}

	result.Synced = len(vehicles)
	s.logger.Debug("vehicles synced",
		zap.Int64("connection_id", conn.ID),
		zap.Int("count", len(vehicles)),
		zap.Int("matched", matched))
	return nil
}

// syncDrivers 拉取服务商司机并自动匹配本地司机
func (s *Syncer) syncDrivers(ctx context.Context, conn *models.Connection, adapter provider.Adapter, result *DomainResult) error {
	drivers, err := adapter.FetchDrivers(ctx)
	if err != nil {
		return fmt.Errorf("fetch drivers: %w", err)
	}

	matched, err := s.mapper.AutoMatchDrivers(ctx, conn.ID, conn.UserID, drivers)
	if err != nil {
		return fmt.Errorf("auto match drivers: %w", err)
	}

	result.Synced = len(drivers)
	s.logger.Debug("drivers synced",
		zap.Int64("connection_id", conn.ID),
		zap.Int("count", len(drivers)),
		zap.Int("matched", matched))
	return nil
}

// syncGPS 拉取当前位置，落库后推送实时位置
// 坐标越界的记录跳过计数，不中断整个域
func (s *Syncer) syncGPS(ctx context.Context, conn *models.Connection, adapter provider.Adapter, result *DomainResult) error {
	locations, err := adapter.FetchCurrentLocations(ctx)
	if err != nil {
		return fmt.Errorf("fetch locations: %w", err)
	}

	var synced []*models.GPSLocation
	for i := range locations {
		loc := &locations[i]
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("gps %s: coordinates out of range", loc.ExternalID))
			continue
		}
		loc.ConnectionID = conn.ID
		s.resolveVehicle(ctx, conn.ID, loc.ExternalVehicleID, &loc.VehicleID)

		if err := s.gpsRepo.Upsert(ctx, loc); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("gps %s: %v", loc.ExternalID, err))
			continue
		}
		result.Synced++
		synced = append(synced, loc)
	}

	if s.broadcaster != nil && len(synced) > 0 {
		s.broadcaster.Broadcast("gps_update", synced)
	}
	return nil
}

// syncHOS 拉取值班日志和每日汇总
func (s *Syncer) syncHOS(ctx context.Context, conn *models.Connection, adapter provider.Adapter, since *time.Time, result *DomainResult) error {
	from := window(since, hosLookback)
	to := time.Now()

	logs, err := adapter.FetchHOSLogs(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch hos logs: %w", err)
	}
	for i := range logs {
		log := &logs[i]
		if log.ExternalID == "" || log.ExternalDriverID == "" {
			result.Skipped++
			continue
		}
		log.ConnectionID = conn.ID
		log.DutyStatus = reader.NormalizeDutyStatus(log.DutyStatus)
		s.resolveDriver(ctx, conn.ID, log.ExternalDriverID, &log.DriverID)

		if err := s.hosRepo.UpsertLog(ctx, log); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("hos log %s: %v", log.ExternalID, err))
			continue
		}
		result.Synced++
	}

	dailies, err := adapter.FetchHOSDailyLogs(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch hos daily logs: %w", err)
	}
	for i := range dailies {
		daily := &dailies[i]
		if daily.ExternalDriverID == "" {
			result.Skipped++
			continue
		}
		daily.ConnectionID = conn.ID
		s.resolveDriver(ctx, conn.ID, daily.ExternalDriverID, &daily.DriverID)

		if err := s.hosRepo.UpsertDailyLog(ctx, daily); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("hos daily %s: %v", daily.ExternalDriverID, err))
			continue
		}
		result.Synced++
	}
	return nil
}

// syncIFTA 拉取当前季度的辖区里程汇总
func (s *Syncer) syncIFTA(ctx context.Context, conn *models.Connection, adapter provider.Adapter, result *DomainResult) error {
	quarter := provider.QuarterOf(time.Now())

	records, err := adapter.FetchIFTASummary(ctx, quarter)
	if err != nil {
		return fmt.Errorf("fetch ifta summary: %w", err)
	}
	for i := range records {
		rec := &records[i]
		if rec.Jurisdiction == "" || rec.Miles < 0 {
			result.Skipped++
			continue
		}
		rec.ConnectionID = conn.ID
		s.resolveVehicle(ctx, conn.ID, rec.ExternalVehicleID, &rec.VehicleID)

		if err := s.iftaRepo.Upsert(ctx, rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("ifta %s/%s: %v", rec.ExternalVehicleID, rec.Jurisdiction, err))
			continue
		}
		result.Synced++
	}
	return nil
}

// syncFaults 拉取故障码
func (s *Syncer) syncFaults(ctx context.Context, conn *models.Connection, adapter provider.Adapter, result *DomainResult) error {
	faults, err := adapter.FetchFaultCodes(ctx)
	if err != nil {
		return fmt.Errorf("fetch fault codes: %w", err)
	}
	for i := range faults {
		f := &faults[i]
		if f.ExternalID == "" || f.Code == "" {
			result.Skipped++
			continue
		}
		f.ConnectionID = conn.ID
		s.resolveVehicle(ctx, conn.ID, f.ExternalVehicleID, &f.VehicleID)

		if err := s.faultRepo.Upsert(ctx, f); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("fault %s: %v", f.ExternalID, err))
			continue
		}
		result.Synced++
	}
	return nil
}

// syncFuel 拉取加油记录
func (s *Syncer) syncFuel(ctx context.Context, conn *models.Connection, adapter provider.Adapter, since *time.Time, result *DomainResult) error {
	from := window(since, fuelLookback)
	to := time.Now()

	purchases, err := adapter.FetchFuelPurchases(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch fuel purchases: %w", err)
	}
	for i := range purchases {
		p := &purchases[i]
		if p.ExternalID == "" || p.Gallons <= 0 {
			result.Skipped++
			continue
		}
		p.ConnectionID = conn.ID
		s.resolveVehicle(ctx, conn.ID, p.ExternalVehicleID, &p.VehicleID)

		if err := s.fuelRepo.Upsert(ctx, p); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("fuel %s: %v", p.ExternalID, err))
			continue
		}
		result.Synced++
	}
	return nil
}

// resolveVehicle 把外部车辆 ID 解析为本地车辆 ID，没有映射时保持为空
func (s *Syncer) resolveVehicle(ctx context.Context, connectionID int64, externalID string, target **int64) {
	if externalID == "" {
		return
	}
	localID, ok, err := s.mapper.Resolve(ctx, connectionID, models.EntityTypeVehicle, externalID)
	if err != nil {
		s.logger.Warn("resolve vehicle mapping failed",
			zap.Int64("connection_id", connectionID),
			zap.String("external_id", externalID),
			zap.Error(err))
		return
	}
	if ok {
		*target = &localID
	}
}

// resolveDriver 把外部司机 ID 解析为本地司机 ID
func (s *Syncer) resolveDriver(ctx context.Context, connectionID int64, externalID string, target **int64) {
	if externalID == "" {
		return
	}
	localID, ok, err := s.mapper.Resolve(ctx, connectionID, models.EntityTypeDriver, externalID)
	if err != nil {
		s.logger.Warn("resolve driver mapping failed",
			zap.Int64("connection_id", connectionID),
			zap.String("external_id", externalID),
			zap.Error(err))
		return
	}
	if ok {
		*target = &localID
	}
}
