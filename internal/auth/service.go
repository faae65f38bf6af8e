package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/internal/users"
	pkgAuth "github.com/radarprecios/radarprecios-backend/pkg/auth"
	"github.com/radarprecios/radarprecios-backend/pkg/config"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/security"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
}

type service struct {
	users    userRepository
	jwtCfg   config.JWTConfig
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
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
		users:    params.UserRepo,
		jwtCfg:   params.JWTConfig,
		password: params.PasswordConfig,
		logg:     logg,
		now:      now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, reason, err := s.authenticate(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "auth.login_denied")
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	issuedAt := s.now().UTC()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, issuedAt, pkgAuth.AccessTokenPayload{
		UserID:       user.ID,
		PermissionID: user.PermissionID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID), "auth.login")
	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   issuedAt.Add(s.jwtCfg.TTL()).Unix(),
		User:        users.FromModel(user),
	}, nil
}

// authenticate returns the user on success, or a denial reason for the log.
// Every denial looks the same to the caller. Only infrastructure failures
// come back as errors.
func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" {
		return nil, "blank_email", nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		security.BurnVerify(password, s.password)
		return nil, "unknown_email", nil
	case err != nil:
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	switch {
	case err != nil:
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	case !valid:
		return nil, "wrong_password", nil
	case !user.IsActive:
		return nil, "inactive_user", nil
	}
	return user, "", nil
}
