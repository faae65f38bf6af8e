package agendas

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/radarprecios/radarprecios-backend/pkg/db"
	"github.com/radarprecios/radarprecios-backend/pkg/db/models"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/metrics"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages scheduled store visits.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*AgendaDTO, error)
	BulkCreate(ctx context.Context, input BulkInput) (*BulkResult, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*AgendaDTO, error)
	Justify(ctx context.Context, id int64, input JustifyInput) (*AgendaDTO, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*AgendaDTO, error)
	List(ctx context.Context, filter ListFilter) ([]AgendaDTO, error)
	AssignedToday(ctx context.Context, userID int64) (*AgendaDTO, error)
	AssignedWeek(ctx context.Context, userID int64) ([]AgendaDTO, error)
}

// ServiceParams bundles the agenda dependencies. Location decides which
// calendar day "today" is.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Logger   *logger.Logger
	Metrics  *metrics.Workflow
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.Workflow
	loc     *time.Location
	now     func() time.Time
}

// NewService builds the agenda service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("agendas repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
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
		loc:     loc,
		now:     now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*AgendaDTO, error) {
	title := strings.TrimSpace(input.Title)
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if input.Date == nil || input.Date.IsZero() {
		missing = append(missing, "date")
	}
	if input.RegionID <= 0 {
		missing = append(missing, "region_id")
	}
	if input.StoreID <= 0 {
		missing = append(missing, "store_id")
	}
	if input.AssigneeUserID <= 0 {
		missing = append(missing, "assignee_user_id")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.MissingFields(missing...)
	}

	now := s.now().UTC()
	item := models.Agenda{
		Title:          title,
		VisitDate:      *input.Date,
		RegionID:       input.RegionID,
		StoreID:        input.StoreID,
		AssigneeUserID: input.AssigneeUserID,
		Notes:          input.Notes,
		Status:         enums.AgendaStatusPending,
		CreatedBy:      actor(input.CreatedBy),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var created *AgendaDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &item); err != nil {
			return insertError(err)
		}
		dto, err := repo.FindEnriched(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload agenda item")
		}
		created = dto
		return nil
	})
	if err != nil {
		return nil, dependency(err, "create agenda item")
	}

	s.logg.Info(s.logg.WithField(ctx, "agenda_id", created.ID), "agenda.created")
	return created, nil
}

// BulkCreate inserts every well-formed item in one transaction. Malformed
// items are dropped and only counted.
func (s *service) BulkCreate(ctx context.Context, input BulkInput) (*BulkResult, error) {
	var missing []string
	if input.AssigneeUserID <= 0 {
		missing = append(missing, "assignee_user_id")
	}
	if len(input.Items) == 0 {
		missing = append(missing, "items")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.MissingFields(missing...)
	}

	now := s.now().UTC()
	rows := make([]models.Agenda, 0, len(input.Items))
	for _, raw := range input.Items {
		title := strings.TrimSpace(raw.Title)
		if title == "" || raw.RegionID <= 0 || raw.StoreID <= 0 {
			continue
		}
		day, err := types.ParseDate(raw.Date)
		if err != nil {
			continue
		}
		rows = append(rows, models.Agenda{
			Title:          title,
			VisitDate:      day,
			RegionID:       raw.RegionID,
			StoreID:        raw.StoreID,
			AssigneeUserID: input.AssigneeUserID,
			Notes:          raw.Notes,
			Status:         enums.AgendaStatusPending,
			CreatedBy:      actor(input.CreatedBy),
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	skipped := len(input.Items) - len(rows)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			return insertError(err)
		}
		return nil
	})
	if err != nil {
		return nil, dependency(err, "bulk create agenda items")
	}

	s.metrics.AgendaBulk(len(rows), skipped)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assignee_user_id": input.AssigneeUserID,
		"inserted":         len(rows),
		"skipped":          skipped,
	})
	if skipped > 0 {
		s.logg.Warn(logCtx, "agenda.bulk_items_skipped")
	} else {
		s.logg.Info(logCtx, "agenda.bulk_created")
	}

	items := make([]AgendaDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromModel(row))
	}
	return &BulkResult{Items: items, Skipped: skipped}, nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateInput) (*AgendaDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid agenda id")
	}
	fields, err := updateColumns(input)
	if err != nil {
		return nil, err
	}
	fields["updated_at"] = s.now().UTC()

	var updated *AgendaDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.Update(ctx, id, fields)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referenced entity not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update agenda item")
		}
		if affected == 0 {
			return pkgerrors.NotFound("agenda item")
		}
		updated, err = repo.FindEnriched(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload agenda item")
		}
		return nil
	})
	if err != nil {
		return nil, dependency(err, "update agenda item")
	}

	s.logg.Info(s.logg.WithField(ctx, "agenda_id", id), "agenda.updated")
	return updated, nil
}

// Justify records why a visit did not happen.
func (s *service) Justify(ctx context.Context, id int64, input JustifyInput) (*AgendaDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid agenda id")
	}
	input.Justification = strings.TrimSpace(input.Justification)
	if input.Justification == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "justification is required").
			WithDetails(map[string]string{"justification": "must not be blank"})
	}
	if input.AttemptedStoreID != nil && *input.AttemptedStoreID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: attempted_store_id")
	}

	var justified *AgendaDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.Justify(ctx, id, input, s.now().UTC())
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "attempted store not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "justify agenda item")
		}
		if affected == 0 {
			if _, err := repo.FindByID(ctx, id); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.NotFound("agenda item")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agenda item")
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "completed visits cannot be justified")
		}
		justified, err = repo.FindEnriched(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload agenda item")
		}
		return nil
	})
	if err != nil {
		return nil, dependency(err, "justify agenda item")
	}

	s.logg.Info(s.logg.WithField(ctx, "agenda_id", id), "agenda.justified")
	return justified, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid agenda id")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		affected, err := s.repo.WithTx(tx).Delete(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete agenda item")
		}
		if affected == 0 {
			return pkgerrors.NotFound("agenda item")
		}
		return nil
	})
	if err != nil {
		return dependency(err, "delete agenda item")
	}
	s.logg.Info(s.logg.WithField(ctx, "agenda_id", id), "agenda.deleted")
	return nil
}

func (s *service) Get(ctx context.Context, id int64) (*AgendaDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid agenda id")
	}
	item, err := s.repo.FindEnriched(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("agenda item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load agenda item")
	}
	return item, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]AgendaDTO, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: status")
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list agenda items")
	}
	return items, nil
}

// AssignedToday returns the visit the user should be working on now.
func (s *service) AssignedToday(ctx context.Context, userID int64) (*AgendaDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	item, err := s.repo.LatestOpenOn(ctx, userID, s.today())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("agenda item for today")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load today's agenda")
	}
	return item, nil
}

// AssignedWeek lists the user's visits from Monday through Sunday of the
// current week.
func (s *service) AssignedWeek(ctx context.Context, userID int64) ([]AgendaDTO, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	monday := s.today().StartOfWeek()
	items, err := s.repo.Between(ctx, userID, monday, monday.AddDays(6))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load week agenda")
	}
	return items, nil
}

func (s *service) today() types.Date {
	return types.NewDate(s.now().In(s.loc))
}

// updateColumns maps the present fields to their columns. Only these columns
// can ever be written by Update.
func updateColumns(input UpdateInput) (map[string]any, error) {
	fields := map[string]any{}
	invalid := map[string]string{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			invalid["title"] = "must not be blank"
		}
		fields["title"] = title
	}
	if input.Date != nil {
		if input.Date.IsZero() {
			invalid["date"] = "must be a date"
		}
		fields["visit_date"] = *input.Date
	}
	if input.RegionID != nil {
		if *input.RegionID <= 0 {
			invalid["region_id"] = "must be positive"
		}
		fields["region_id"] = *input.RegionID
	}
	if input.StoreID != nil {
		if *input.StoreID <= 0 {
			invalid["store_id"] = "must be positive"
		}
		fields["store_id"] = *input.StoreID
	}
	if input.AssigneeUserID != nil {
		if *input.AssigneeUserID <= 0 {
			invalid["assignee_user_id"] = "must be positive"
		}
		fields["assignee_user_id"] = *input.AssigneeUserID
	}
	if input.Notes.Valid {
		fields["notes"] = input.Notes.Ptr()
	}
	if input.Status != nil {
		switch {
		case !input.Status.IsValid():
			invalid["status"] = "unknown status"
		case *input.Status == enums.AgendaStatusNotExecuted:
			invalid["status"] = "no_ejecutado needs a justification, use PUT /api/agendas/{id}/justify"
		}
		fields["status"] = *input.Status
	}

	if len(invalid) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid agenda fields").WithDetails(invalid)
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	return fields, nil
}

func insertError(err error) error {
	if db.IsForeignKeyViolation(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "referenced entity not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert agenda item")
}

func dependency(err error, msg string) error {
	if pkgerrors.As(err) == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	return err
}

func actor(userID int64) *int64 {
	if userID <= 0 {
		return nil
	}
	return &userID
}
