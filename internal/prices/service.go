package prices

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
	"github.com/radarprecios/radarprecios-backend/pkg/pagination"
	"github.com/radarprecios/radarprecios-backend/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const photoPrefix = "precios"

// numeric(12,2) upper bound.
var maxAmount = decimal.New(1, 10)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records and reads the price ledger.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*PriceDTO, error)
	History(ctx context.Context, key Key, page pagination.Params) (*HistoryPage, error)
	ListCurrent(ctx context.Context, filter CurrentFilter) ([]CurrentPriceDTO, error)
}

// ServiceParams bundles the ledger dependencies.
type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Photos            storage.Store
	Logger            *logger.Logger
	Metrics           *metrics.Workflow
	DefaultCurrencyID int64
	Now               func() time.Time
}

type service struct {
	repo            Repository
	tx              txRunner
	photos          storage.Store
	logg            *logger.Logger
	metrics         *metrics.Workflow
	defaultCurrency int64
	now             func() time.Time
}

// NewService builds the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("prices repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.DefaultCurrencyID <= 0 {
		return nil, fmt.Errorf("default currency id must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:            params.Repo,
		tx:              params.Tx,
		photos:          params.Photos,
		logg:            logg,
		metrics:         params.Metrics,
		defaultCurrency: params.DefaultCurrencyID,
		now:             now,
	}, nil
}

// Record supersedes the current price of the key and inserts the new one in
// a single transaction. A concurrent writer that wins the current slot turns
// this call into a conflict; nothing is retried.
func (s *service) Record(ctx context.Context, input RecordInput) (*PriceDTO, error) {
	amount, err := validateRecord(input)
	if err != nil {
		s.metrics.PriceRecord(metrics.OutcomeRejected)
		return nil, err
	}
	if input.Photo != nil && s.photos == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "photo storage is not configured")
	}

	key := Key{ProductID: input.ProductID, StoreID: input.StoreID, CurrencyID: input.CurrencyID}
	if key.CurrencyID == 0 {
		key.CurrencyID = s.defaultCurrency
	}
	now := s.now().UTC()

	price := &models.Price{
		ProductID:   key.ProductID,
		StoreID:     key.StoreID,
		CurrencyID:  key.CurrencyID,
		PriceAmount: amount,
		Quantity:    input.Quantity,
		RecordedAt:  now,
		IsCurrent:   true,
		IsValid:     true,
	}
	if input.UserID > 0 {
		userID := input.UserID
		price.UserID = &userID
	}

	if input.Photo != nil {
		ref, err := s.photos.Save(ctx, storage.ObjectName(photoPrefix, input.Photo.Extension, now), input.Photo.ContentType, input.Photo.Body)
		if err != nil {
			s.metrics.PriceRecord(metrics.OutcomeRejected)
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store price photo")
		}
		price.PhotoURL = &ref
	}

	var superseded int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := checkReferences(ctx, repo, key); err != nil {
			return err
		}

		flipped, err := repo.SupersedeCurrent(ctx, key)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede current price")
		}
		superseded = flipped

		if err := repo.Create(ctx, price); err != nil {
			switch {
			case db.IsUniqueViolation(err, CurrentPriceConstraint):
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another price for this product and store was recorded at the same time; resubmit to record yours").
					WithDetails(map[string]any{"product_id": key.ProductID, "store_id": key.StoreID, "currency_id": key.CurrencyID})
			case db.IsForeignKeyViolation(err):
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referenced entity not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert price")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record price")
		}
		if price.PhotoURL != nil {
			err = s.discardPhoto(ctx, *price.PhotoURL, err)
		}
		s.metrics.PriceRecord(outcomeFor(err))
		return nil, err
	}

	outcome := metrics.OutcomeRecorded
	if superseded > 0 {
		outcome = metrics.OutcomeSuperseded
	}
	s.metrics.PriceRecord(outcome)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"price_id":    price.ID,
		"product_id":  key.ProductID,
		"store_id":    key.StoreID,
		"currency_id": key.CurrencyID,
		"superseded":  superseded,
	})
	s.logg.Info(logCtx, "price.recorded")

	dto := FromModel(*price)
	return &dto, nil
}

func (s *service) History(ctx context.Context, key Key, page pagination.Params) (*HistoryPage, error) {
	var missing []string
	if key.ProductID <= 0 {
		missing = append(missing, "product_id")
	}
	if key.StoreID <= 0 {
		missing = append(missing, "store_id")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.MissingFields(missing...)
	}
	if key.CurrencyID == 0 {
		key.CurrencyID = s.defaultCurrency
	}

	after, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.History(ctx, key, after, pagination.LimitWithBuffer(page.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price history")
	}
	rows, more := pagination.Trim(rows, page.Limit)

	out := &HistoryPage{Items: make([]PriceDTO, 0, len(rows))}
	for _, row := range rows {
		out.Items = append(out.Items, FromModel(row))
	}
	if more {
		last := rows[len(rows)-1]
		out.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.RecordedAt, ID: last.ID})
	}
	return out, nil
}

func (s *service) ListCurrent(ctx context.Context, filter CurrentFilter) ([]CurrentPriceDTO, error) {
	rows, err := s.repo.ListCurrent(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list current prices")
	}
	return rows, nil
}

// discardPhoto removes a photo whose database write failed. The request may
// already be canceled, so the delete runs on a detached context.
func (s *service) discardPhoto(ctx context.Context, ref string, cause error) error {
	if err := s.photos.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "photo_ref", ref), "price.photo_cleanup_failed", err)
		return multierr.Append(cause, fmt.Errorf("discard photo %s: %w", ref, err))
	}
	return cause
}

func validateRecord(input RecordInput) (decimal.Decimal, error) {
	var missing []string
	if input.ProductID <= 0 {
		missing = append(missing, "product_id")
	}
	if input.StoreID <= 0 {
		missing = append(missing, "store_id")
	}
	if input.Amount == nil {
		missing = append(missing, "price_amount")
	}
	if len(missing) > 0 {
		return decimal.Decimal{}, pkgerrors.MissingFields(missing...)
	}

	amount := input.Amount.Round(2)
	if amount.IsNegative() {
		return decimal.Decimal{}, invalidField("price_amount", "must be a non-negative decimal")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, invalidField("price_amount", "is too large")
	}
	if input.Quantity != nil {
		switch q := *input.Quantity; {
		case q <= 0:
			return decimal.Decimal{}, invalidField("quantity", "must be greater than 0")
		case q > math.MaxInt32:
			return decimal.Decimal{}, invalidField("quantity", fmt.Sprintf("must be at most %d", math.MaxInt32))
		}
	}
	if input.CurrencyID < 0 {
		return decimal.Decimal{}, invalidField("currency_id", "must be a positive integer")
	}
	return amount, nil
}

func checkReferences(ctx context.Context, repo Repository, key Key) error {
	product, err := repo.FindProduct(ctx, key.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.NotFound("product")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsValid {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not valid for price capture").
			WithDetails(map[string]any{"product_id": key.ProductID})
	}

	ok, err := repo.StoreExists(ctx, key.StoreID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if !ok {
		return pkgerrors.NotFound("store")
	}

	ok, err = repo.CurrencyExists(ctx, key.CurrencyID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load currency")
	}
	if !ok {
		return pkgerrors.NotFound("currency")
	}
	return nil
}

func invalidField(field, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: "+field).
		WithDetails(map[string]string{field: msg})
}

func outcomeFor(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return metrics.OutcomeConflict
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeRejected
	}
}
