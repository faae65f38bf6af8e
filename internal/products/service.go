package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"gorm.io/gorm"
)

// currentPriceConstraint mirrors the ledger's partial unique index.
const currentPriceConstraint = "ux_precios_current"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes product reads and the validity cascade.
type Service interface {
	Get(ctx context.Context, id int64) (*ProductDTO, error)
	List(ctx context.Context, filter ListFilter) ([]ProductDTO, error)
	SetValidity(ctx context.Context, id int64, valid bool) (*ValidityResult, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService constructs a product service instance.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, id int64) (*ProductDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.MissingFields("product_id")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

// SetValidity flips the product flag and cascades it to every price row of
// the product in one transaction.
func (s *service) SetValidity(ctx context.Context, id int64, valid bool) (*ValidityResult, error) {
	if id <= 0 {
		return nil, pkgerrors.MissingFields("product_id")
	}

	var result ValidityResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		affected, err := repo.SetValidity(ctx, id, valid, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		if affected == 0 {
			return pkgerrors.NotFound("product")
		}

		prices, err := repo.SetPriceValidity(ctx, id, valid)
		if err != nil {
			if db.IsUniqueViolation(err, currentPriceConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product prices conflict with the current price index")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product prices")
		}

		product, err := repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}
		result = ValidityResult{Product: FromModel(*product), PricesUpdated: prices}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set product validity")
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":     id,
		"is_valid":       valid,
		"prices_updated": result.PricesUpdated,
	})
	s.logg.Info(logCtx, "product.validity_changed")
	return &result, nil
}
