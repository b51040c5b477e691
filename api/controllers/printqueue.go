package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printbridge/backend/api/responses"
	"github.com/printbridge/backend/api/validators"
	"github.com/printbridge/backend/internal/printqueue"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/logger"
	"github.com/printbridge/backend/pkg/pagination"
)

type enqueueRequest struct {
	StationID *uuid.UUID `json:"station_id"`
}

type jobStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending printing completed failed"`
	Error  string `json:"error" validate:"omitempty,max=1024"`
}

// ListQueue returns the caller's recent jobs.
func ListQueue(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), userID, validators.ParseQueryString(r, "status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"jobs": rows})
	}
}

// EnqueueJob queues a file for printing with three-tier station resolution.
func EnqueueJob(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fileID, err := validators.ParsePathUUID(chi.URLParam(r, "file_id"), "file_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req := enqueueRequest{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		job, err := svc.Enqueue(r.Context(), userID, fileID, req.StationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"print_job": job})
	}
}

// ClaimNextJob hands the oldest eligible pending job to a poller.
func ClaimNextJob(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var stationID *uuid.UUID
		if raw := validators.ParseQueryString(r, "station_id"); raw != "" {
			id, err := validators.ParsePathUUID(raw, "station_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			stationID = &id
		}

		result, err := svc.ClaimNext(r.Context(), userID, stationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// UpdateJobStatus applies a consumer-reported lifecycle transition.
func UpdateJobStatus(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		jobID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req jobStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.UpdateStatus(r.Context(), printqueue.UpdateStatusParams{
			UserID:       userID,
			JobID:        jobID,
			Status:       req.Status,
			ErrorMessage: req.Error,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"print_job": job})
	}
}

// DeleteJob removes an owned queue entry.
func DeleteJob(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		jobID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, jobID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deleted": true})
	}
}

// StationQueue returns a station's jobs with pagination.
func StationQueue(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stationID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := windowFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := printqueue.StationQueueParams{
			UserID:    userID,
			StationID: stationID,
			Window:    window,
		}
		if raw := validators.ParseQueryString(r, "status"); raw != "" {
			status, err := enums.ParseJobStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown job status"))
				return
			}
			params.Status = &status
		}

		result, err := svc.StationQueue(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// StationHistory returns a station's terminal jobs with aggregates.
func StationHistory(svc printqueue.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "print queue service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stationID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := windowFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := printqueue.HistoryParams{
			UserID:    userID,
			StationID: stationID,
			Window:    window,
		}
		if from, err := dateFromQuery(r, "from_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if from != nil {
			params.FromDate = from
		}
		if to, err := dateFromQuery(r, "to_date"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if to != nil {
			params.ToDate = to
		}

		result, err := svc.StationHistory(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func windowFromQuery(r *http.Request) (pagination.Window, error) {
	limit, err := validators.ParseQueryInt(r, "limit", 50, 1, pagination.MaxPerPage)
	if err != nil {
		return pagination.Window{}, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
	if err != nil {
		return pagination.Window{}, err
	}
	return pagination.Window{Limit: limit, Offset: offset}, nil
}

func dateFromQuery(r *http.Request, key string) (*time.Time, error) {
	raw := validators.ParseQueryString(r, key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dates must use YYYY-MM-DD").
			WithDetails(map[string]any{"field": key})
	}
	return &parsed, nil
}
