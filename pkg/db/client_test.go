package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:dbclient_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(nil, 0))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("unexpected")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWithTx_RollsBackWhenContextCanceled(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx, cancel := context.WithCancel(context.Background())

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "abandoned"}).Error; err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	pgxErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_precios_current"})
	assert.True(t, IsUniqueViolation(pgxErr, ""))
	assert.True(t, IsUniqueViolation(pgxErr, "ux_precios_current"))
	assert.False(t, IsUniqueViolation(pgxErr, "ux_checkins_active"))

	pqErr := &pq.Error{Code: "23505", Constraint: "users_email_key"}
	assert.True(t, IsUniqueViolation(pqErr, "users_email_key"))

	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: checkins.user_id"), "ux_checkins_active"))
	assert.True(t, IsUniqueViolation(errors.New(`duplicate key value violates unique constraint "ux_precios_current"`), "ux_precios_current"))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}
