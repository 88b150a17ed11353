package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/fleetbridge/internal/models"
)

// FleetRepository 本地车队（车辆/司机）数据仓库
// 车辆和司机归属于用户，由宿主应用创建或同步时自动建档
type FleetRepository struct {
	db *DB
}

// NewFleetRepository 创建车队仓库
func NewFleetRepository(db *DB) *FleetRepository {
	return &FleetRepository{db: db}
}

const vehicleColumns = `id, user_id, connection_id, external_id, name, vin, license_plate, make, model, year, odometer_km, created_at, updated_at`

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	var externalID, vin, plate, mk, mdl *string
	err := row.Scan(&v.ID, &v.UserID, &v.ConnectionID, &externalID, &v.Name, &vin, &plate, &mk, &mdl, &v.Year, &v.OdometerKm, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan vehicle: %w", err)
	}
	if externalID != nil {
		v.ExternalID = *externalID
	}
	if vin != nil {
		v.VIN = *vin
	}
	if plate != nil {
		v.LicensePlate = *plate
	}
	if mk != nil {
		v.Make = *mk
	}
	if mdl != nil {
		v.Model = *mdl
	}
	return v, nil
}

// ListVehiclesByUser 列出用户的全部车辆
func (r *FleetRepository) ListVehiclesByUser(ctx context.Context, userID int64) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE user_id = $1 ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetVehicle 按 ID 获取车辆
func (r *FleetRepository) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`
	return scanVehicle(r.db.Pool.QueryRow(ctx, query, id))
}

// CreateVehicle 创建车辆（同步时自动建档用）
func (r *FleetRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (user_id, connection_id, external_id, name, vin, license_plate, make, model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		v.UserID, v.ConnectionID, v.ExternalID, v.Name, v.VIN, v.LicensePlate, v.Make, v.Model,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}
	return nil
}

const driverColumns = `id, user_id, connection_id, external_id, name, license_number, license_state, phone, email, status, created_at, updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	d := &models.Driver{}
	var externalID, license, state, phone, email, status *string
	err := row.Scan(&d.ID, &d.UserID, &d.ConnectionID, &externalID, &d.Name, &license, &state, &phone, &email, &status, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan driver: %w", err)
	}
	if externalID != nil {
		d.ExternalID = *externalID
	}
	if license != nil {
		d.LicenseNumber = *license
	}
	if state != nil {
		d.LicenseState = *state
	}
	if phone != nil {
		d.Phone = *phone
	}
	if email != nil {
		d.Email = *email
	}
	if status != nil {
		d.Status = *status
	}
	return d, nil
}

// ListDriversByUser 列出用户的全部司机
func (r *FleetRepository) ListDriversByUser(ctx context.Context, userID int64) ([]*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE user_id = $1 ORDER BY name`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var out []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetDriver 按 ID 获取司机
func (r *FleetRepository) GetDriver(ctx context.Context, id int64) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return scanDriver(r.db.Pool.QueryRow(ctx, query, id))
}

// CreateDriver 创建司机（同步时自动建档用）
func (r *FleetRepository) CreateDriver(ctx context.Context, d *models.Driver) error {
	query := `
		INSERT INTO drivers (user_id, connection_id, external_id, name, license_number, license_state, phone, email, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.Pool.QueryRow(ctx, query,
		d.UserID, d.ConnectionID, d.ExternalID, d.Name, d.LicenseNumber, d.LicenseState, d.Phone, d.Email, d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}
