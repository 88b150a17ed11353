package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateVehicles,
		migrationCreateDrivers,
		migrationCreateConnections,
		migrationCreateEntityMappings,
		migrationCreateGPSLocations,
		migrationCreateHOSLogs,
		migrationCreateHOSDailyLogs,
		migrationCreateIFTAMileage,
		migrationCreateFaultCodes,
		migrationCreateFuelPurchases,
		migrationCreateManualTrips,
		migrationCreateSyncLogs,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// 数据库迁移 SQL
const migrationCreateVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    connection_id BIGINT,
    external_id VARCHAR(255),
    name VARCHAR(255) NOT NULL,
    vin VARCHAR(17),
    license_plate VARCHAR(20),
    make VARCHAR(50),
    model VARCHAR(50),
    year INT,
    odometer_km DOUBLE PRECISION,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_user_id ON vehicles(user_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_vin ON vehicles(vin);
`

const migrationCreateDrivers = `
CREATE TABLE IF NOT EXISTS drivers (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    connection_id BIGINT,
    external_id VARCHAR(255),
    name VARCHAR(255) NOT NULL,
    license_number VARCHAR(50),
    license_state VARCHAR(10),
    phone VARCHAR(30),
    email VARCHAR(255),
    status VARCHAR(20),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_drivers_user_id ON drivers(user_id);
`

const migrationCreateConnections = `
CREATE TABLE IF NOT EXISTS connections (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    provider_id VARCHAR(50) NOT NULL,
    access_token TEXT NOT NULL DEFAULT '',
    refresh_token TEXT NOT NULL DEFAULT '',
    token_expires_at TIMESTAMP WITH TIME ZONE,
    status VARCHAR(20) NOT NULL DEFAULT 'unauthenticated',
    company_name VARCHAR(255) NOT NULL DEFAULT '',
    sync_frequency_minutes INT NOT NULL DEFAULT 60,
    last_sync_at TIMESTAMP WITH TIME ZONE,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE (user_id, provider_id)
);
CREATE INDEX IF NOT EXISTS idx_connections_status ON connections(status);
`

const migrationCreateEntityMappings = `
CREATE TABLE IF NOT EXISTS entity_mappings (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    entity_type VARCHAR(20) NOT NULL,
    external_id VARCHAR(255) NOT NULL,
    local_id BIGINT NOT NULL,
    match_method VARCHAR(10) NOT NULL DEFAULT 'auto',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE (connection_id, entity_type, external_id)
);
`

const migrationCreateGPSLocations = `
CREATE TABLE IF NOT EXISTS gps_locations (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_id VARCHAR(255) NOT NULL,
    external_vehicle_id VARCHAR(255) NOT NULL,
    vehicle_id BIGINT,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    heading DOUBLE PRECISION,
    speed_mph DOUBLE PRECISION,
    odometer_km DOUBLE PRECISION,
    address VARCHAR(500),
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (connection_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_gps_locations_vehicle ON gps_locations(connection_id, external_vehicle_id, recorded_at DESC);
`

const migrationCreateHOSLogs = `
CREATE TABLE IF NOT EXISTS hos_logs (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_id VARCHAR(255) NOT NULL,
    external_driver_id VARCHAR(255) NOT NULL,
    driver_id BIGINT,
    duty_status VARCHAR(20) NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ended_at TIMESTAMP WITH TIME ZONE,
    location VARCHAR(255),
    remark VARCHAR(500),
    UNIQUE (connection_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_hos_logs_driver ON hos_logs(connection_id, external_driver_id, started_at);
`

const migrationCreateHOSDailyLogs = `
CREATE TABLE IF NOT EXISTS hos_daily_logs (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_driver_id VARCHAR(255) NOT NULL,
    driver_id BIGINT,
    log_date DATE NOT NULL,
    drive_minutes INT NOT NULL DEFAULT 0,
    on_duty_minutes INT NOT NULL DEFAULT 0,
    remaining_drive_minutes INT NOT NULL DEFAULT 0,
    cycle_remaining_minutes INT NOT NULL DEFAULT 0,
    has_violation BOOLEAN NOT NULL DEFAULT false,
    violation_remarks VARCHAR(1000),
    UNIQUE (connection_id, external_driver_id, log_date)
);
`

const migrationCreateIFTAMileage = `
CREATE TABLE IF NOT EXISTS ifta_mileage (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_vehicle_id VARCHAR(255) NOT NULL,
    vehicle_id BIGINT,
    jurisdiction VARCHAR(10) NOT NULL,
    quarter VARCHAR(10) NOT NULL,
    miles DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE (connection_id, external_vehicle_id, jurisdiction, quarter)
);
CREATE INDEX IF NOT EXISTS idx_ifta_mileage_quarter ON ifta_mileage(quarter);
`

const migrationCreateFaultCodes = `
CREATE TABLE IF NOT EXISTS fault_codes (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_id VARCHAR(255) NOT NULL,
    external_vehicle_id VARCHAR(255) NOT NULL,
    vehicle_id BIGINT,
    code VARCHAR(100) NOT NULL,
    description VARCHAR(1000),
    severity VARCHAR(20),
    is_active BOOLEAN NOT NULL DEFAULT true,
    reported_at TIMESTAMP WITH TIME ZONE NOT NULL,
    resolved_at TIMESTAMP WITH TIME ZONE,
    UNIQUE (connection_id, external_id)
);
CREATE INDEX IF NOT EXISTS idx_fault_codes_active ON fault_codes(connection_id, is_active);
`

const migrationCreateFuelPurchases = `
CREATE TABLE IF NOT EXISTS fuel_purchases (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    external_id VARCHAR(255) NOT NULL,
    external_vehicle_id VARCHAR(255),
    vehicle_id BIGINT,
    jurisdiction VARCHAR(10),
    gallons DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_cost DOUBLE PRECISION,
    fuel_type VARCHAR(30),
    vendor VARCHAR(255),
    purchased_at TIMESTAMP WITH TIME ZONE NOT NULL,
    UNIQUE (connection_id, external_id)
);
`

const migrationCreateManualTrips = `
CREATE TABLE IF NOT EXISTS manual_trips (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    trip_date DATE NOT NULL,
    start_odometer DOUBLE PRECISION NOT NULL,
    end_odometer DOUBLE PRECISION NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_manual_trips_user_date ON manual_trips(user_id, trip_date);

CREATE TABLE IF NOT EXISTS state_crossings (
    id BIGSERIAL PRIMARY KEY,
    trip_id BIGINT NOT NULL REFERENCES manual_trips(id) ON DELETE CASCADE,
    jurisdiction VARCHAR(10) NOT NULL,
    odometer DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_crossings_trip ON state_crossings(trip_id);
`

const migrationCreateSyncLogs = `
CREATE TABLE IF NOT EXISTS sync_logs (
    id BIGSERIAL PRIMARY KEY,
    connection_id BIGINT NOT NULL REFERENCES connections(id),
    domain VARCHAR(30) NOT NULL,
    status VARCHAR(20) NOT NULL,
    synced_count INT NOT NULL DEFAULT 0,
    skipped_count INT NOT NULL DEFAULT 0,
    error_message TEXT,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    finished_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sync_logs_connection ON sync_logs(connection_id, started_at DESC);
`
