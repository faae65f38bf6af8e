package checkins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"
)

const conflictBackoff = 25 * time.Millisecond

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service tracks which store each user is currently checked in at.
type Service interface {
	CheckIn(ctx context.Context, input CheckInInput) (*SessionDTO, error)
	CheckOut(ctx context.Context, input CheckOutInput) (*SessionDTO, error)
	Active(ctx context.Context, userID int64) (*SessionDTO, error)
}

// ServiceParams bundles the presence tracker dependencies.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Logger  *logger.Logger
	Metrics *metrics.Workflow
	// ConflictRetries bounds how often a check-in that lost the active slot
	// to a concurrent check-in of the same user is replayed.
	ConflictRetries int
	Now             func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.Workflow
	retries uint64
	now     func() time.Time
}

// NewService builds the presence tracker.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("checkins repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.ConflictRetries < 0 {
		return nil, fmt.Errorf("conflict retries cannot be negative")
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
		repo:    params.Repo,
		tx:      params.Tx,
		logg:    logg,
		metrics: params.Metrics,
		retries: uint64(params.ConflictRetries),
		now:     now,
	}, nil
}

// CheckIn closes whatever session the user has open and starts a new one.
// Superseding is the expected behavior, so losing the active slot to a
// concurrent check-in is replayed rather than reported.
func (s *service) CheckIn(ctx context.Context, input CheckInInput) (*SessionDTO, error) {
	if err := validateCheckIn(input); err != nil {
		s.metrics.CheckIn(metrics.OutcomeRejected)
		return nil, err
	}

	var (
		session *SessionDTO
		closed  int64
		attempt int
	)
	backoff := retry.WithMaxRetries(s.retries, retry.NewConstant(conflictBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.CheckIn(metrics.OutcomeRetried)
		}
		var err error
		session, closed, err = s.checkInOnce(ctx, input)
		if err != nil && db.IsUniqueViolation(err, ActiveSessionConstraint) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, ActiveSessionConstraint) {
			err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "another check-in for this user is in progress; try again")
		} else if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check in")
		}
		s.metrics.CheckIn(outcomeFor(err))
		return nil, err
	}

	outcome := metrics.OutcomeCreated
	if closed > 0 {
		outcome = metrics.OutcomeSuperseded
	}
	s.metrics.CheckIn(outcome)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checkin_id":     session.ID,
		"store_id":       session.StoreID,
		"closed_session": closed,
		"attempts":       attempt,
	})
	s.logg.Info(logCtx, "checkin.started")
	return session, nil
}

func (s *service) checkInOnce(ctx context.Context, input CheckInInput) (*SessionDTO, int64, error) {
	var (
		session *SessionDTO
		closed  int64
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := checkReferences(ctx, repo, input); err != nil {
			return err
		}

		now := s.now().UTC()
		n, err := repo.CloseActiveForUser(ctx, input.UserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close active check-in")
		}
		closed = n

		row := &models.CheckIn{
			UserID:    input.UserID,
			RegionID:  input.RegionID,
			StoreID:   input.StoreID,
			Latitude:  *input.Latitude,
			Longitude: *input.Longitude,
			StartedAt: now,
			IsActive:  true,
		}
		if err := repo.Create(ctx, row); err != nil {
			if db.IsUniqueViolation(err, ActiveSessionConstraint) {
				return err
			}
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referenced entity not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert check-in")
		}

		session, err = repo.FindEnriched(ctx, row.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload check-in")
		}
		return nil
	})
	return session, closed, err
}

// CheckOut closes the identified session, or the latest active one when no
// id is given. Nothing changes when no matching active session exists.
func (s *service) CheckOut(ctx context.Context, input CheckOutInput) (*SessionDTO, error) {
	if input.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CheckInID != nil && *input.CheckInID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: checkin_id")
	}

	var session *SessionDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var id int64
		if input.CheckInID != nil {
			id = *input.CheckInID
		} else {
			latest, err := repo.LatestActiveID(ctx, input.UserID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.NotFound("active check-in")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active check-in")
			}
			id = latest
		}

		affected, err := repo.Close(ctx, id, input.UserID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close check-in")
		}
		if affected == 0 {
			return pkgerrors.NotFound("active check-in")
		}

		session, err = repo.FindEnriched(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload check-in")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check out")
		}
		s.metrics.CheckOut(outcomeFor(err))
		return nil, err
	}

	s.metrics.CheckOut(metrics.OutcomeClosed)
	s.logg.Info(s.logg.WithField(ctx, "checkin_id", session.ID), "checkin.closed")
	return session, nil
}

func (s *service) Active(ctx context.Context, userID int64) (*SessionDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	session, err := s.repo.FindActiveEnriched(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("active check-in")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active check-in")
	}
	return session, nil
}

func validateCheckIn(input CheckInInput) error {
	if input.UserID <= 0 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var missing []string
	if input.RegionID <= 0 {
		missing = append(missing, "region_id")
	}
	if input.StoreID <= 0 {
		missing = append(missing, "store_id")
	}
	if input.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if input.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return pkgerrors.MissingFields(missing...)
	}

	details := map[string]string{}
	if lat := *input.Latitude; lat < -90 || lat > 90 {
		details["latitude"] = "must be between -90 and 90"
	}
	if lon := *input.Longitude; lon < -180 || lon > 180 {
		details["longitude"] = "must be between -180 and 180"
	}
	switch len(details) {
	case 0:
		return nil
	case 1:
		for field := range details {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: "+field).WithDetails(details)
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: latitude, longitude").WithDetails(details)
}

func checkReferences(ctx context.Context, repo Repository, input CheckInInput) error {
	checks := []struct {
		entity string
		fn     func(context.Context, int64) (bool, error)
		id     int64
	}{
		{"user", repo.UserExists, input.UserID},
		{"region", repo.RegionExists, input.RegionID},
		{"store", repo.StoreExists, input.StoreID},
	}
	for _, check := range checks {
		ok, err := check.fn(ctx, check.id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+check.entity)
		}
		if !ok {
			return pkgerrors.NotFound(check.entity)
		}
	}
	return nil
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
