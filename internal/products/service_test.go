package products

import (
	"context"
	"errors"
	"testing"

	"github.com/radarprecios/radarprecios-backend/pkg/db/dbtest"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (Service, *gorm.DB, dbtest.Fixture) {
	t.Helper()
	client, conn := dbtest.Client(t)
	fixture := dbtest.Seed(t, conn)
	svc, err := NewService(NewRepository(conn), client, nil)
	require.NoError(t, err)
	return svc, conn, fixture
}

func seedPrices(t *testing.T, conn *gorm.DB, f dbtest.Fixture) {
	t.Helper()
	dbtest.Exec(t, conn, `INSERT INTO precios (product_id, store_id, currency_id, price_amount, recorded_at, is_current, is_valid)
		VALUES (?, ?, ?, '10.00', CURRENT_TIMESTAMP, ?, ?), (?, ?, ?, '11.00', CURRENT_TIMESTAMP, ?, ?), (?, ?, ?, '9.00', CURRENT_TIMESTAMP, ?, ?)`,
		f.ProductID, f.StoreID, f.CurrencyID, false, true,
		f.ProductID, f.StoreID, f.CurrencyID, true, true,
		f.ProductID, f.OtherStore, f.CurrencyID, true, true)
}

func countPrices(t *testing.T, conn *gorm.DB, productID int64, valid bool) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.Price{}).Where("product_id = ? AND is_valid = ?", productID, valid).Count(&count).Error)
	return count
}

func TestSetValidityCascadesToPrices(t *testing.T) {
	svc, conn, f := newService(t)
	seedPrices(t, conn, f)

	result, err := svc.SetValidity(context.Background(), f.ProductID, false)
	require.NoError(t, err)
	assert.False(t, result.Product.IsValid)
	assert.EqualValues(t, 3, result.PricesUpdated)
	assert.EqualValues(t, 3, countPrices(t, conn, f.ProductID, false))

	result, err = svc.SetValidity(context.Background(), f.ProductID, true)
	require.NoError(t, err)
	assert.True(t, result.Product.IsValid)
	assert.EqualValues(t, 3, countPrices(t, conn, f.ProductID, true))

	var current int64
	require.NoError(t, conn.Model(&models.Price{}).
		Where("product_id = ? AND store_id = ? AND is_current = ?", f.ProductID, f.StoreID, true).
		Count(&current).Error)
	assert.EqualValues(t, 1, current)
}

func TestSetValidityUnknownProduct(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.SetValidity(context.Background(), 999, false)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, "product not found", typed.Message())
}

func TestSetValidityRollsBackProductWhenPricesFail(t *testing.T) {
	svc, conn, f := newService(t)
	seedPrices(t, conn, f)

	require.NoError(t, conn.Callback().Update().Before("gorm:update").Register("test:fail_precios", func(tx *gorm.DB) {
		if tx.Statement.Table == "precios" {
			_ = tx.AddError(errors.New("forced price failure"))
		}
	}))

	_, err := svc.SetValidity(context.Background(), f.ProductID, false)
	require.Error(t, err)

	product, err := svc.Get(context.Background(), f.ProductID)
	require.NoError(t, err)
	assert.True(t, product.IsValid)
	assert.EqualValues(t, 3, countPrices(t, conn, f.ProductID, true))
}

func TestGetAndList(t *testing.T) {
	svc, conn, f := newService(t)
	dbtest.Exec(t, conn, `INSERT INTO products (product_id, name, is_valid) VALUES (11, 'Arroz 1kg', ?)`, false)

	product, err := svc.Get(context.Background(), f.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Leche 1L", product.Name)
	require.NotNil(t, product.Brand)
	assert.Equal(t, "La Vaca", *product.Brand)

	_, err = svc.Get(context.Background(), 404)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	all, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Arroz 1kg", all[0].Name)

	valid := true
	onlyValid, err := svc.List(context.Background(), ListFilter{Valid: &valid})
	require.NoError(t, err)
	require.Len(t, onlyValid, 1)
	assert.Equal(t, f.ProductID, onlyValid[0].ID)
}
