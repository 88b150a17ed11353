package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/fleetbridge/internal/models"
)

// ManualTripRepository 手动行程数据仓库
type ManualTripRepository struct {
	db *DB
}

// NewManualTripRepository 创建手动行程仓库
func NewManualTripRepository(db *DB) *ManualTripRepository {
	return &ManualTripRepository{db: db}
}

// Create 在单个事务里写入行程与所有辖区切换点
func (r *ManualTripRepository) Create(ctx context.Context, trip *models.ManualTrip, crossings []*models.StateCrossing) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO manual_trips (user_id, vehicle_id, trip_date, start_odometer, end_odometer)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, trip.UserID, trip.VehicleID, trip.TripDate, trip.StartOdometer, trip.EndOdometer).Scan(&trip.ID, &trip.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert manual trip: %w", err)
	}

	for _, c := range crossings {
		c.TripID = trip.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO state_crossings (trip_id, jurisdiction, odometer)
			VALUES ($1, $2, $3)
			RETURNING id
		`, c.TripID, c.Jurisdiction, c.Odometer).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert state crossing: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListByUser 列出用户在指定日期范围内的手动行程
func (r *ManualTripRepository) ListByUser(ctx context.Context, userID int64, from, to time.Time) ([]*models.ManualTrip, error) {
	query := `
		SELECT id, user_id, vehicle_id, trip_date, start_odometer, end_odometer, created_at
		FROM manual_trips
		WHERE user_id = $1 AND trip_date >= $2 AND trip_date <= $3
		ORDER BY trip_date
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list manual trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.ManualTrip
	for rows.Next() {
		t := &models.ManualTrip{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.VehicleID, &t.TripDate, &t.StartOdometer, &t.EndOdometer, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan manual trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// ListCrossings 按里程表读数升序列出行程的辖区切换点
func (r *ManualTripRepository) ListCrossings(ctx context.Context, tripID int64) ([]*models.StateCrossing, error) {
	query := `
		SELECT id, trip_id, jurisdiction, odometer
		FROM state_crossings
		WHERE trip_id = $1
		ORDER BY odometer
	`
	rows, err := r.db.Pool.Query(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("list state crossings: %w", err)
	}
	defer rows.Close()

	var crossings []*models.StateCrossing
	for rows.Next() {
		c := &models.StateCrossing{}
		if err := rows.Scan(&c.ID, &c.TripID, &c.Jurisdiction, &c.Odometer); err != nil {
			return nil, fmt.Errorf("scan state crossing: %w", err)
		}
		crossings = append(crossings, c)
	}
	return crossings, nil
}

// SumMilesByJurisdiction 按辖区聚合用户某季度的手动行程里程
// 每段里程取相邻切换点的里程表差值，末段补到行程结束读数
func (r *ManualTripRepository) SumMilesByJurisdiction(ctx context.Context, userID int64, from, to time.Time) (map[string]float64, error) {
	trips, err := r.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, trip := range trips {
		crossings, err := r.ListCrossings(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		for jurisdiction, miles := range SegmentMiles(trip, crossings) {
			out[jurisdiction] += miles
		}
	}
	return out, nil
}

// SegmentMiles 把单个行程的里程按切换点拆分到各辖区
func SegmentMiles(trip *models.ManualTrip, crossings []*models.StateCrossing) map[string]float64 {
	out := make(map[string]float64)
	if len(crossings) == 0 {
		return out
	}
	for i, c := range crossings {
		start := c.Odometer
		if start < trip.StartOdometer {
			start = trip.StartOdometer
		}
		end := trip.EndOdometer
		if i+1 < len(crossings) {
			end = crossings[i+1].Odometer
		}
		if end > start {
			out[c.Jurisdiction] += end - start
		}
	}
	return out
}
