package controllers

import (
	"net/http"
	"strings"

	"github.com/radarprecios/radarprecios-backend/api/middleware"
	"github.com/radarprecios/radarprecios-backend/api/responses"
	"github.com/radarprecios/radarprecios-backend/api/validators"
	"github.com/radarprecios/radarprecios-backend/internal/agendas"
	"github.com/radarprecios/radarprecios-backend/pkg/enums"
	pkgerrors "github.com/radarprecios/radarprecios-backend/pkg/errors"
	"github.com/radarprecios/radarprecios-backend/pkg/logger"
	"github.com/radarprecios/radarprecios-backend/pkg/types"
)

type createAgendaRequest struct {
	Title          string      `json:"title"`
	Date           *types.Date `json:"date"`
	RegionID       int64       `json:"region_id"`
	StoreID        int64       `json:"store_id"`
	AssigneeUserID int64       `json:"assignee_user_id"`
	Notes          *string     `json:"notes"`
}

type bulkAgendaRequest struct {
	AssigneeUserID int64              `json:"assignee_user_id"`
	Items          []agendas.BulkItem `json:"items"`
}

type updateAgendaRequest struct {
	Title          *string                `json:"title"`
	Date           *types.Date            `json:"date"`
	RegionID       *int64                 `json:"region_id"`
	StoreID        *int64                 `json:"store_id"`
	AssigneeUserID *int64                 `json:"assignee_user_id"`
	Notes          types.Nullable[string] `json:"notes"`
	Status         *string                `json:"status"`
}

type justifyAgendaRequest struct {
	Justification    string `json:"justification"`
	AttemptedStoreID *int64 `json:"attempted_store_id"`
}

func CreateAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		var body createAgendaRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Create(r.Context(), agendas.CreateInput{
			Title:          body.Title,
			Date:           body.Date,
			RegionID:       body.RegionID,
			StoreID:        body.StoreID,
			AssigneeUserID: body.AssigneeUserID,
			Notes:          body.Notes,
			CreatedBy:      middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, item)
	}
}

// BulkCreateAgenda reports how many items were skipped in meta.
func BulkCreateAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		var body bulkAgendaRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkCreate(r.Context(), agendas.BulkInput{
			AssigneeUserID: body.AssigneeUserID,
			Items:          body.Items,
			CreatedBy:      middleware.UserIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessMeta(w, http.StatusCreated, result.Items, types.BulkMeta{
			Requested: len(body.Items),
			Inserted:  len(result.Items),
			Skipped:   result.Skipped,
		})
	}
}

func UpdateAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAgendaRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := agendas.UpdateInput{
			Title:          body.Title,
			Date:           body.Date,
			RegionID:       body.RegionID,
			StoreID:        body.StoreID,
			AssigneeUserID: body.AssigneeUserID,
			Notes:          body.Notes,
		}
		if body.Status != nil {
			status, err := enums.ParseAgendaStatus(strings.TrimSpace(*body.Status))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fields: status"))
				return
			}
			input.Status = &status
		}

		item, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func JustifyAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body justifyAgendaRequest
		if err := validators.DecodeJSONBodyAllowUnknown(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Justify(r.Context(), id, agendas.JustifyInput{
			Justification:    body.Justification,
			AttemptedStoreID: body.AttemptedStoreID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func DeleteAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"agenda_id": id})
	}
}

func GetAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func ListAgenda(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		filter, err := agendaFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func agendaFilterFromQuery(r *http.Request) (agendas.ListFilter, error) {
	var (
		filter agendas.ListFilter
		err    error
	)
	if filter.Date, err = validators.ParseQueryDate(r, "date"); err != nil {
		return filter, err
	}
	if filter.AssigneeUserID, err = validators.ParseQueryInt64(r, "assignee_user_id"); err != nil {
		return filter, err
	}
	if filter.RegionID, err = validators.ParseQueryInt64(r, "region_id"); err != nil {
		return filter, err
	}
	if filter.StoreID, err = validators.ParseQueryInt64(r, "store_id"); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseAgendaStatus(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "status is not a known agenda status")
		}
		filter.Status = &status
	}
	return filter, nil
}

// AgendaToday returns the caller's current open visit.
func AgendaToday(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		item, err := svc.AssignedToday(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

func AgendaWeek(svc agendas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "agenda service unavailable"))
			return
		}

		items, err := svc.AssignedWeek(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
