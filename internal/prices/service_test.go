package prices

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db/dbtest"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/pagination"
	"github.com/radarprecios/radarprecios-backend/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	svc     Service
	conn    *gorm.DB
	fixture dbtest.Fixture
	photos  *storage.Disk
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	fixture := dbtest.Seed(t, conn)

	photos, err := storage.NewDisk(t.TempDir(), "/uploads")
	require.NoError(t, err)

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		Repo:              NewRepository(conn),
		Tx:                client,
		Photos:            photos,
		DefaultCurrencyID: fixture.CurrencyID,
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
	})
	require.NoError(t, err)
	return &harness{svc: svc, conn: conn, fixture: fixture, photos: photos}
}

func (h *harness) record(t *testing.T, amount string) (*PriceDTO, error) {
	t.Helper()
	value := decimal.RequireFromString(amount)
	return h.svc.Record(context.Background(), RecordInput{
		UserID:    h.fixture.UserID,
		ProductID: h.fixture.ProductID,
		StoreID:   h.fixture.StoreID,
		Amount:    &value,
	})
}

func (h *harness) currentRows(t *testing.T) []models.Price {
	t.Helper()
	var rows []models.Price
	require.NoError(t, h.conn.
		Where("product_id = ? AND store_id = ? AND currency_id = ? AND is_current = ?",
			h.fixture.ProductID, h.fixture.StoreID, h.fixture.CurrencyID, true).
		Find(&rows).Error)
	return rows
}

func TestRecordSupersedesPreviousPrice(t *testing.T) {
	h := newHarness(t)

	first, err := h.record(t, "12.50")
	require.NoError(t, err)
	assert.True(t, first.IsCurrent)
	assert.Equal(t, h.fixture.CurrencyID, first.CurrencyID)

	second, err := h.record(t, "13.00")
	require.NoError(t, err)

	current := h.currentRows(t)
	require.Len(t, current, 1)
	assert.Equal(t, second.ID, current[0].ID)
	assert.True(t, current[0].PriceAmount.Equal(decimal.RequireFromString("13.00")))

	var old models.Price
	require.NoError(t, h.conn.First(&old, "price_id = ?", first.ID).Error)
	assert.False(t, old.IsCurrent)
	assert.True(t, old.PriceAmount.Equal(decimal.RequireFromString("12.50")))

	history, err := h.svc.History(context.Background(), Key{ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	assert.Equal(t, second.ID, history.Items[0].ID)
	assert.Equal(t, first.ID, history.Items[1].ID)
	assert.Empty(t, history.NextCursor)
}

func TestRecordKeepsAtMostOneCurrentRow(t *testing.T) {
	h := newHarness(t)

	assert.Empty(t, h.currentRows(t))
	for _, amount := range []string{"1.00", "2.10", "0", "2.10", "99.99"} {
		_, err := h.record(t, amount)
		require.NoError(t, err)
		assert.Len(t, h.currentRows(t), 1, "after recording %s", amount)
	}

	// A different store is an independent series.
	value := decimal.RequireFromString("5")
	_, err := h.svc.Record(context.Background(), RecordInput{
		ProductID: h.fixture.ProductID,
		StoreID:   h.fixture.OtherStore,
		Amount:    &value,
	})
	require.NoError(t, err)
	assert.Len(t, h.currentRows(t), 1)
}

func TestRecordRollsBackWhenInsertFails(t *testing.T) {
	h := newHarness(t)

	original, err := h.record(t, "12.50")
	require.NoError(t, err)

	require.NoError(t, h.conn.Callback().Create().Before("gorm:create").Register("test:fail_precios", func(tx *gorm.DB) {
		if tx.Statement.Table == "precios" {
			_ = tx.AddError(errors.New("forced insert failure"))
		}
	}))

	value := decimal.RequireFromString("13.00")
	_, err = h.svc.Record(context.Background(), RecordInput{
		ProductID: h.fixture.ProductID,
		StoreID:   h.fixture.StoreID,
		Amount:    &value,
		Photo:     &PhotoInput{Body: strings.NewReader("jpeg-bytes"), ContentType: "image/jpeg", Extension: "jpg"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	current := h.currentRows(t)
	require.Len(t, current, 1)
	assert.Equal(t, original.ID, current[0].ID)

	var count int64
	require.NoError(t, h.conn.Model(&models.Price{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	assertNoPhotos(t, h.photos.Root())
}

func TestRecordSurfacesConcurrentWriterAsConflict(t *testing.T) {
	h := newHarness(t)

	original, err := h.record(t, "12.50")
	require.NoError(t, err)

	// Simulates a competing transaction committing a current row between the
	// supersede and the insert.
	fired := false
	require.NoError(t, h.conn.Callback().Create().Before("gorm:create").Register("test:race_precios", func(tx *gorm.DB) {
		if tx.Statement.Table != "precios" || fired {
			return
		}
		fired = true
		err := tx.Session(&gorm.Session{NewDB: true}).Exec(
			`INSERT INTO precios (product_id, store_id, currency_id, price_amount, recorded_at, is_current, is_valid)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			h.fixture.ProductID, h.fixture.StoreID, h.fixture.CurrencyID, "14.00", time.Now().UTC(), true, true,
		).Error
		if err != nil {
			_ = tx.AddError(err)
		}
	}))

	_, err = h.record(t, "13.00")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	current := h.currentRows(t)
	require.Len(t, current, 1)
	assert.Equal(t, original.ID, current[0].ID)
	assert.True(t, current[0].PriceAmount.Equal(decimal.RequireFromString("12.50")))
}

func TestRecordValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Record(context.Background(), RecordInput{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "missing required fields: product_id, store_id, price_amount", typed.Message())

	negative := decimal.RequireFromString("-1")
	_, err = h.svc.Record(context.Background(), RecordInput{ProductID: 10, StoreID: 5, Amount: &negative})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	zero := 0
	amount := decimal.RequireFromString("3")
	_, err = h.svc.Record(context.Background(), RecordInput{ProductID: 10, StoreID: 5, Amount: &amount, Quantity: &zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRecordBoundsQuantity(t *testing.T) {
	h := newHarness(t)
	amount := decimal.RequireFromString("3")

	over := math.MaxInt32 + 1
	_, err := h.svc.Record(context.Background(), RecordInput{UserID: h.fixture.UserID, ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID, Amount: &amount, Quantity: &over})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Contains(t, typed.Details(), "quantity")

	var count int64
	require.NoError(t, h.conn.Model(&models.Price{}).Count(&count).Error)
	assert.Zero(t, count)

	limit := math.MaxInt32
	dto, err := h.svc.Record(context.Background(), RecordInput{UserID: h.fixture.UserID, ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID, Amount: &amount, Quantity: &limit})
	require.NoError(t, err)
	require.NotNil(t, dto.Quantity)
	assert.Equal(t, math.MaxInt32, *dto.Quantity)
}

func TestRecordReportsMissingReferences(t *testing.T) {
	h := newHarness(t)
	amount := decimal.RequireFromString("3")

	tests := []struct {
		name  string
		input RecordInput
		want  string
	}{
		{"product", RecordInput{ProductID: 999, StoreID: h.fixture.StoreID, Amount: &amount}, "product not found"},
		{"store", RecordInput{ProductID: h.fixture.ProductID, StoreID: 999, Amount: &amount}, "store not found"},
		{"currency", RecordInput{ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID, CurrencyID: 999, Amount: &amount}, "currency not found"},
	}
	for _, tt := range tests {
		_, err := h.svc.Record(context.Background(), tt.input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, tt.name)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code(), tt.name)
		assert.Equal(t, tt.want, typed.Message(), tt.name)
	}
}

func TestRecordRejectsInvalidProduct(t *testing.T) {
	h := newHarness(t)
	dbtest.Exec(t, h.conn, `UPDATE products SET is_valid = ? WHERE product_id = ?`, false, h.fixture.ProductID)

	_, err := h.record(t, "10")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, h.currentRows(t))
}

func TestRecordStoresPhotoReference(t *testing.T) {
	h := newHarness(t)
	amount := decimal.RequireFromString("7.25")

	price, err := h.svc.Record(context.Background(), RecordInput{
		ProductID: h.fixture.ProductID,
		StoreID:   h.fixture.StoreID,
		Amount:    &amount,
		Photo:     &PhotoInput{Body: strings.NewReader("png-bytes"), ContentType: "image/png", Extension: "png"},
	})
	require.NoError(t, err)
	require.NotNil(t, price.PhotoURL)
	assert.True(t, strings.HasPrefix(*price.PhotoURL, "/uploads/precios/2025/03/01/"))
	assert.True(t, strings.HasSuffix(*price.PhotoURL, ".png"))

	rel := strings.TrimPrefix(*price.PhotoURL, "/uploads/")
	data, err := os.ReadFile(filepath.Join(h.photos.Root(), filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestRecordDeletesPhotoWhenReferenceMissing(t *testing.T) {
	h := newHarness(t)
	amount := decimal.RequireFromString("7.25")

	_, err := h.svc.Record(context.Background(), RecordInput{
		ProductID: h.fixture.ProductID,
		StoreID:   404,
		Amount:    &amount,
		Photo:     &PhotoInput{Body: strings.NewReader("png-bytes"), ContentType: "image/png", Extension: "png"},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assertNoPhotos(t, h.photos.Root())
}

func TestListCurrentEnrichesAndFilters(t *testing.T) {
	h := newHarness(t)
	dbtest.Exec(t, h.conn, `INSERT INTO regions (region_id, name) VALUES (2, 'Oeste')`)
	dbtest.Exec(t, h.conn, `INSERT INTO stores (store_id, region_id, name) VALUES (7, 2, 'Mini Oeste')`)

	_, err := h.record(t, "12.50")
	require.NoError(t, err)
	_, err = h.record(t, "13.00")
	require.NoError(t, err)

	amount := decimal.RequireFromString("11")
	_, err = h.svc.Record(context.Background(), RecordInput{ProductID: h.fixture.ProductID, StoreID: 7, Amount: &amount})
	require.NoError(t, err)

	all, err := h.svc.ListCurrent(context.Background(), CurrentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	region := int64(2)
	filtered, err := h.svc.ListCurrent(context.Background(), CurrentFilter{RegionID: &region})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Mini Oeste", filtered[0].StoreName)
	assert.Equal(t, "Leche 1L", filtered[0].ProductName)
	assert.Equal(t, "ARS", filtered[0].CurrencyCode)
	assert.EqualValues(t, 2, filtered[0].RegionID)
	assert.True(t, filtered[0].PriceAmount.Equal(amount))
}

func TestHistoryRequiresKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.History(context.Background(), Key{}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestHistoryPagesNewestFirst(t *testing.T) {
	h := newHarness(t)
	var recorded []int64
	for _, amount := range []string{"1.00", "2.00", "3.00", "4.00", "5.00"} {
		price, err := h.record(t, amount)
		require.NoError(t, err)
		recorded = append(recorded, price.ID)
	}
	key := Key{ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID}

	var seen []int64
	cursor := ""
	for pages := 0; pages < 5; pages++ {
		page, err := h.svc.History(context.Background(), key, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), 2)
		for _, item := range page.Items {
			seen = append(seen, item.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	require.Len(t, seen, len(recorded))
	for i := range recorded {
		assert.Equal(t, recorded[len(recorded)-1-i], seen[i])
	}
}

func TestHistoryRejectsBadCursor(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.History(context.Background(), Key{ProductID: h.fixture.ProductID, StoreID: h.fixture.StoreID}, pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func assertNoPhotos(t *testing.T, root string) {
	t.Helper()
	var files []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	}))
	assert.Empty(t, files)
}
