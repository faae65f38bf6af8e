package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/security"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service registers and loads users.
type Service interface {
	Create(ctx context.Context, actor enums.Permission, input CreateInput) (*UserDTO, error)
	Get(ctx context.Context, id int64) (*UserDTO, error)
}

// ServiceParams bundles the dependencies required by the users service.
type ServiceParams struct {
	Repo     *Repository
	Tx       txRunner
	Password config.PasswordConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	tx       txRunner
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
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
		repo:     params.Repo,
		tx:       params.Tx,
		password: params.Password,
		logg:     logg,
		now:      now,
	}, nil
}

// Create registers a user. Only administrators may do so, and the check
// happens before anything is written.
func (s *service) Create(ctx context.Context, actor enums.Permission, input CreateInput) (*UserDTO, error) {
	if !actor.AtLeast(enums.PermissionAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only administrators can create users")
	}

	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if input.Password == "" {
		missing = append(missing, "password")
	}
	if input.PermissionID == 0 {
		missing = append(missing, "permission_id")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.MissingFields(missing...)
	}
	if !input.PermissionID.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: permission_id")
	}
	if err := security.CheckPasswordPolicy(input.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *UserDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		taken, err := repo.EmailTaken(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		if input.RegionID != nil {
			ok, err := repo.RegionExists(ctx, *input.RegionID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load region")
			}
			if !ok {
				return pkgerrors.NotFound("region")
			}
		}

		user, err := repo.Create(ctx, CreateUserDTO{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			PermissionID: input.PermissionID,
			RegionID:     input.RegionID,
			CreatedAt:    s.now().UTC(),
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert user")
		}
		created = FromModel(user)
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
		}
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"created_user_id": created.ID,
		"permission_id":   created.PermissionID,
	})
	s.logg.Info(logCtx, "user.created")
	return created, nil
}

func (s *service) Get(ctx context.Context, id int64) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}
