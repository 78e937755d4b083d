package postgresql

import (
	"database/sql"
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var initialSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		push_token TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS machines (
		id TEXT PRIMARY KEY,
		building TEXT NOT NULL DEFAULT '',
		floor TEXT NOT NULL DEFAULT '',
		area TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		gis_latitude TEXT NOT NULL DEFAULT '',
		gis_longitude TEXT NOT NULL DEFAULT '',
		kitchen_ids TEXT[] NOT NULL DEFAULT '{}',
		machine_type TEXT,
		end_time TEXT,
		tea_fill_start_quantity INTEGER NOT NULL DEFAULT 0,
		tea_fill_end_quantity INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'offline',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS kitchens (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mobile TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL DEFAULT 'offline'
	)`,
	`CREATE TABLE IF NOT EXISTS agents (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mobile TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'offline'
	)`,
	`CREATE TABLE IF NOT EXISTS kitchen_members (
		id BIGSERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		kitchen_user_id TEXT NOT NULL REFERENCES kitchens(user_id),
		name TEXT NOT NULL,
		mobile TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS canisters (
		id BIGSERIAL PRIMARY KEY,
		scan_id TEXT NOT NULL UNIQUE,
		kitchen_user_id TEXT NOT NULL REFERENCES kitchens(user_id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refill_requests (
		id BIGSERIAL PRIMARY KEY,
		request_id TEXT NOT NULL UNIQUE,
		machine_id TEXT NOT NULL,
		request_status TEXT NOT NULL,
		kitchen_status TEXT NOT NULL DEFAULT '',
		agent_status TEXT NOT NULL DEFAULT '',
		kitchen_user_id TEXT,
		kitchen_candidates TEXT[] NOT NULL DEFAULT '{}',
		agent_user_id TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		request_date_time TEXT NOT NULL,
		source_address TEXT NOT NULL DEFAULT '',
		source_latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		source_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		source_contact_name TEXT NOT NULL DEFAULT '',
		source_contact_number TEXT NOT NULL DEFAULT '',
		destination_address TEXT NOT NULL DEFAULT '',
		destination_latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		destination_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		destination_contact_name TEXT NOT NULL DEFAULT '',
		destination_contact_number TEXT NOT NULL DEFAULT '',
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS refill_requests_machine_idx ON refill_requests (machine_id)`,
	`CREATE TABLE IF NOT EXISTS request_status_updates (
		id UUID PRIMARY KEY,
		seq BIGSERIAL,
		request_id TEXT NOT NULL REFERENCES refill_requests(request_id),
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		date_and_time TEXT NOT NULL,
		is_proceed_next BOOLEAN NOT NULL DEFAULT FALSE,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS request_status_updates_request_user_idx ON request_status_updates (request_id, user_id)`,
	`CREATE TABLE IF NOT EXISTS machine_events_log (
		id BIGSERIAL PRIMARY KEY,
		received_at TIMESTAMPTZ NOT NULL,
		machine_id TEXT,
		mqtt_topic TEXT,
		message_type TEXT,
		payload JSONB,
		processed_status TEXT,
		processing_notes TEXT
	)`,
}

// Migrate applies the schema through gormigrate on a gorm handle sharing the same pool.
func Migrate(db *sql.DB) error {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open gorm handle: %w", err)
	}

	m := gormigrate.New(gdb, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20261016_create_refill_tables",
			Migrate: func(tx *gorm.DB) error {
				for _, stmt := range initialSchema {
					if err := tx.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				for _, table := range []string{"machine_events_log", "request_status_updates", "refill_requests",
					"canisters", "kitchen_members", "agents", "kitchens", "machines", "users"} {
					if err := tx.Migrator().DropTable(table); err != nil {
						return err
					}
				}
				return nil
			},
		},
	})
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
