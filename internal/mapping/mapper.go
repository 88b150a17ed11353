package mapping

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/repository"
)

// Mapper 实体映射服务
// 负责把服务商侧的车辆/司机 ID 关联到本地车队实体
type Mapper struct {
	logger      *zap.Logger
	mappingRepo *repository.MappingRepository
	fleetRepo   *repository.FleetRepository

	// autoCreate 开启后，首次同步没匹配上的服务商车辆自动建档
	autoCreate bool
}

// NewMapper 创建映射服务
func NewMapper(logger *zap.Logger, mappingRepo *repository.MappingRepository, fleetRepo *repository.FleetRepository, autoCreateVehicles bool) *Mapper {
	return &Mapper{
		logger:      logger,
		mappingRepo: mappingRepo,
		fleetRepo:   fleetRepo,
		autoCreate:  autoCreateVehicles,
	}
}

// Resolve 查找外部 ID 对应的本地实体 ID
// 没有映射时返回 (0, false)
func (m *Mapper) Resolve(ctx context.Context, connectionID int64, entityType, externalID string) (int64, bool, error) {
	em, err := m.mappingRepo.Get(ctx, connectionID, entityType, externalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return em.LocalID, true, nil
}

// List 列出连接的全部映射
func (m *Mapper) List(ctx context.Context, connectionID int64) ([]*models.EntityMapping, error) {
	return m.mappingRepo.ListByConnection(ctx, connectionID)
}

// MapManual 手动建立映射，覆盖已有的自动匹配
func (m *Mapper) MapManual(ctx context.Context, connectionID int64, entityType, externalID string, localID int64) (*models.EntityMapping, error) {
	em, err := m.mappingRepo.UpsertManual(ctx, connectionID, entityType, externalID, localID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("manual mapping created",
		zap.Int64("connection_id", connectionID),
		zap.String("entity_type", entityType),
		zap.String("external_id", externalID),
		zap.Int64("local_id", localID))
	return em, nil
}

// Unmap 删除映射
func (m *Mapper) Unmap(ctx context.Context, connectionID int64, entityType, externalID string) error {
	return m.mappingRepo.Delete(ctx, connectionID, entityType, externalID)
}

// AutoMatchVehicles 为一批服务商车辆按识别字段自动匹配本地车辆
// 匹配优先级：VIN 精确匹配 > 归一化车牌 > 归一化名称
// 同一字段命中多辆本地车时放弃匹配，留给人工处理
// 自动匹配用 INSERT ... DO NOTHING 落库，不会覆盖已有的手动映射
func (m *Mapper) AutoMatchVehicles(ctx context.Context, connectionID, userID int64, external []models.Vehicle) (int, error) {
	locals, err := m.fleetRepo.ListVehiclesByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	matched := 0
	for i := range external {
		ev := &external[i]
		if ev.ExternalID == "" {
			continue
		}
		local := matchVehicle(ev, locals)
		if local == nil {
			if !m.autoCreate {
				continue
			}
			created, err := m.createVehicle(ctx, connectionID, userID, ev)
			if err != nil {
				return matched, err
			}
			locals = append(locals, created)
			local = created
		}
		if err := m.mappingRepo.InsertAuto(ctx, connectionID, models.EntityTypeVehicle, ev.ExternalID, local.ID); err != nil {
			return matched, err
		}
		matched++
	}
	return matched, nil
}

// createVehicle 为没匹配上的服务商车辆自动建档
func (m *Mapper) createVehicle(ctx context.Context, connectionID, userID int64, ev *models.Vehicle) (*models.Vehicle, error) {
	name := ev.Name
	if name == "" {
		name = ev.ExternalID
	}
	v := &models.Vehicle{
		UserID:       userID,
		ConnectionID: &connectionID,
		ExternalID:   ev.ExternalID,
		Name:         name,
		VIN:          ev.VIN,
		LicensePlate: ev.LicensePlate,
		Make:         ev.Make,
		Model:        ev.Model,
	}
	if err := m.fleetRepo.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	m.logger.Info("vehicle auto created",
		zap.Int64("connection_id", connectionID),
		zap.String("external_id", ev.ExternalID),
		zap.Int64("vehicle_id", v.ID))
	return v, nil
}

// AutoMatchDrivers 为一批服务商司机自动匹配本地司机
// 匹配优先级：驾照号精确匹配 > 归一化姓名
func (m *Mapper) AutoMatchDrivers(ctx context.Context, connectionID, userID int64, external []models.Driver) (int, error) {
	locals, err := m.fleetRepo.ListDriversByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	matched := 0
	for i := range external {
		ed := &external[i]
		if ed.ExternalID == "" {
			continue
		}
		local := matchDriver(ed, locals)
		if local == nil {
			continue
		}
		if err := m.mappingRepo.InsertAuto(ctx, connectionID, models.EntityTypeDriver, ed.ExternalID, local.ID); err != nil {
			return matched, err
		}
		matched++
	}
	return matched, nil
}

// matchVehicle 在本地车辆里找唯一匹配
func matchVehicle(ev *models.Vehicle, locals []*models.Vehicle) *models.Vehicle {
	if ev.VIN != "" {
		if v := uniqueVehicle(locals, func(lv *models.Vehicle) bool {
			return lv.VIN != "" && strings.EqualFold(lv.VIN, ev.VIN)
		}); v != nil {
			return v
		}
	}
	if plate := NormalizeIdentifier(ev.LicensePlate); plate != "" {
		if v := uniqueVehicle(locals, func(lv *models.Vehicle) bool {
			return NormalizeIdentifier(lv.LicensePlate) == plate
		}); v != nil {
			return v
		}
	}
	if name := NormalizeIdentifier(ev.Name); name != "" {
		if v := uniqueVehicle(locals, func(lv *models.Vehicle) bool {
			return NormalizeIdentifier(lv.Name) == name
		}); v != nil {
			return v
		}
	}
	return nil
}

// matchDriver 在本地司机里找唯一匹配
func matchDriver(ed *models.Driver, locals []*models.Driver) *models.Driver {
	if license := NormalizeIdentifier(ed.LicenseNumber); license != "" {
		if d := uniqueDriver(locals, func(ld *models.Driver) bool {
			return NormalizeIdentifier(ld.LicenseNumber) == license
		}); d != nil {
			return d
		}
	}
	if name := NormalizeIdentifier(ed.Name); name != "" {
		if d := uniqueDriver(locals, func(ld *models.Driver) bool {
			return NormalizeIdentifier(ld.Name) == name
		}); d != nil {
			return d
		}
	}
	return nil
}

// uniqueVehicle 谓词命中且只命中一辆时返回那辆车
func uniqueVehicle(locals []*models.Vehicle, match func(*models.Vehicle) bool) *models.Vehicle {
	var found *models.Vehicle
	for _, lv := range locals {
		if match(lv) {
			if found != nil {
				return nil // 歧义，放弃
			}
			found = lv
		}
	}
	return found
}

// uniqueDriver 谓词命中且只命中一个时返回那个司机
func uniqueDriver(locals []*models.Driver, match func(*models.Driver) bool) *models.Driver {
	var found *models.Driver
	for _, ld := range locals {
		if match(ld) {
			if found != nil {
				return nil
			}
			found = ld
		}
	}
	return found
}

// NormalizeIdentifier 归一化识别字段：转小写并去掉空格、连字符和点号
func NormalizeIdentifier(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '\t', '-', '.', '_':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
