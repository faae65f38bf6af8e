// Package dbtest opens in-memory SQLite databases carrying the same tables
// and partial unique indexes as the Postgres migrations.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE regions (
		region_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE stores (
		store_id INTEGER PRIMARY KEY AUTOINCREMENT,
		region_id INTEGER NOT NULL REFERENCES regions(region_id),
		name TEXT NOT NULL,
		address TEXT
	)`,
	`CREATE TABLE products (
		product_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		brand TEXT,
		is_valid BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE currencies (
		currency_id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL
	)`,
	`CREATE TABLE users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		permission_id INTEGER NOT NULL,
		region_id INTEGER REFERENCES regions(region_id),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE precios (
		price_id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		store_id INTEGER NOT NULL REFERENCES stores(store_id),
		currency_id INTEGER NOT NULL REFERENCES currencies(currency_id),
		price_amount NUMERIC NOT NULL,
		quantity INTEGER,
		photo_url TEXT,
		user_id INTEGER REFERENCES users(user_id),
		recorded_at DATETIME NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT 1,
		is_valid BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX ux_precios_current ON precios(product_id, store_id, currency_id)
		WHERE is_current = 1 AND is_valid = 1`,
	`CREATE TABLE checkins (
		checkin_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		region_id INTEGER NOT NULL REFERENCES regions(region_id),
		store_id INTEGER NOT NULL REFERENCES stores(store_id),
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE UNIQUE INDEX ux_checkins_active ON checkins(user_id) WHERE is_active = 1`,
	`CREATE TABLE agendas (
		agenda_id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		visit_date DATE NOT NULL,
		region_id INTEGER NOT NULL REFERENCES regions(region_id),
		store_id INTEGER NOT NULL REFERENCES stores(store_id),
		assignee_user_id INTEGER NOT NULL REFERENCES users(user_id),
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'pendiente',
		justification TEXT,
		attempted_store_id INTEGER REFERENCES stores(store_id),
		created_by INTEGER REFERENCES users(user_id),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns a fresh database with foreign keys enforced. A single
// connection keeps the in-memory database and its transactions consistent.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:radar_" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a pkg/db client.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}

// Exec runs a fixture statement and fails the test on error.
func Exec(t *testing.T, conn *gorm.DB, query string, args ...any) {
	t.Helper()
	if err := conn.Exec(query, args...).Error; err != nil {
		t.Fatalf("fixture %q: %v", query, err)
	}
}

// Fixture holds the identifiers created by Seed.
type Fixture struct {
	RegionID   int64
	StoreID    int64
	OtherStore int64
	ProductID  int64
	CurrencyID int64
	AdminID    int64
	UserID     int64
}

// Seed inserts one region with two stores, a product, a currency, an admin
// and a field user.
func Seed(t *testing.T, conn *gorm.DB) Fixture {
	t.Helper()
	Exec(t, conn, `INSERT INTO regions (region_id, name) VALUES (1, 'Centro')`)
	Exec(t, conn, `INSERT INTO stores (store_id, region_id, name) VALUES (5, 1, 'Super Norte'), (6, 1, 'Super Sur')`)
	Exec(t, conn, `INSERT INTO products (product_id, name, brand, is_valid) VALUES (10, 'Leche 1L', 'La Vaca', 1)`)
	Exec(t, conn, `INSERT INTO currencies (currency_id, code, symbol) VALUES (1, 'ARS', '$')`)
	Exec(t, conn, `INSERT INTO users (user_id, name, email, password_hash, permission_id) VALUES
		(1, 'Admin', 'admin@radar.test', 'x', 1),
		(2, 'Field', 'field@radar.test', 'x', 3)`)
	return Fixture{
		RegionID:   1,
		StoreID:    5,
		OtherStore: 6,
		ProductID:  10,
		CurrencyID: 1,
		AdminID:    1,
		UserID:     2,
	}
}
