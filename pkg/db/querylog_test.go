package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/radarprecios/radarprecios-backend/pkg/logger"
)

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	dsn := "file:querylog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(logg, time.Nanosecond))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))

	buf.Reset()
	require.NoError(t, conn.Create(&testModel{Name: "slow"}).Error)
	assert.Contains(t, buf.String(), "db.slow_query")
	assert.Contains(t, buf.String(), "INSERT INTO")
}

func TestQueryLoggerIgnoresRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	dsn := "file:querylog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig(logg, time.Hour))
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))

	buf.Reset()
	var row testModel
	err = conn.WithContext(context.Background()).First(&row, 99).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Empty(t, buf.String())
}

func TestQueryLoggerWithoutLoggerDiscards(t *testing.T) {
	assert.NotNil(t, newQueryLogger(nil, time.Second))
}
