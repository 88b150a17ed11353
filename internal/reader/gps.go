package reader

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/langchou/fleetbridge/internal/models"
	"github.com/langchou/fleetbridge/internal/repository"
)

// 位置判定阈值
const (
	StaleAfter     = 30 * time.Minute // 超过该时长没有新位置视为过期
	MovingSpeedMph = 5.0              // 速度超过该值视为行驶中
)

// GPSReader 车辆位置视图读取器
type GPSReader struct {
	logger  *zap.Logger
	gpsRepo *repository.GPSRepository
}

// NewGPSReader 创建 GPS 读取器
func NewGPSReader(logger *zap.Logger, gpsRepo *repository.GPSRepository) *GPSReader {
	return &GPSReader{logger: logger, gpsRepo: gpsRepo}
}

// VehiclePosition 车辆位置视图
type VehiclePosition struct {
	*models.GPSLocation
	IsStale  bool `json:"is_stale"`
	IsMoving bool `json:"is_moving"`
}

// LatestPositions 返回用户每辆车的最新位置
func (r *GPSReader) LatestPositions(ctx context.Context, userID int64) ([]*VehiclePosition, error) {
	locations, err := r.gpsRepo.ListLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions := make([]*VehiclePosition, 0, len(locations))
	for _, loc := range locations {
		positions = append(positions, &VehiclePosition{
			GPSLocation: loc,
			IsStale:     time.Since(loc.RecordedAt) > StaleAfter,
			IsMoving:    loc.SpeedMph != nil && *loc.SpeedMph > MovingSpeedMph,
		})
	}
	return positions, nil
}

// History 按时间范围读取单辆车的位置轨迹
func (r *GPSReader) History(ctx context.Context, connectionID int64, externalVehicleID string, from, to time.Time) ([]*models.GPSLocation, error) {
	return r.gpsRepo.ListByVehicle(ctx, connectionID, externalVehicleID, from, to)
}

// WithinBounds 过滤落在矩形范围内的最新位置
func (r *GPSReader) WithinBounds(ctx context.Context, userID int64, minLon, minLat, maxLon, maxLat float64) ([]*VehiclePosition, error) {
	positions, err := r.LatestPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	bound := orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}
	var filtered []*VehiclePosition
	for _, p := range positions {
		if bound.Contains(orb.Point{p.Longitude, p.Latitude}) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// WithinRadius 过滤中心点指定半径（公里）内的最新位置
func (r *GPSReader) WithinRadius(ctx context.Context, userID int64, centerLat, centerLon, radiusKm float64) ([]*VehiclePosition, error) {
	positions, err := r.LatestPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	center := orb.Point{centerLon, centerLat}
	var filtered []*VehiclePosition
	for _, p := range positions {
		if DistanceKm(center, orb.Point{p.Longitude, p.Latitude}) <= radiusKm {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// DistanceKm 两点间大圆距离（公里）
func DistanceKm(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / 1000
}
