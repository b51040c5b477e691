package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/printbridge/backend/api/responses"
	"github.com/printbridge/backend/api/validators"
	"github.com/printbridge/backend/internal/settings"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/logger"
)

// updateSettingsRequest distinguishes "absent" from "null" for
// default_station_id: null clears the default, absent leaves it alone.
type updateSettingsRequest struct {
	MaxUploadMB      *int             `json:"max_upload_mb"`
	AutoProcessFiles *bool            `json:"auto_process_files"`
	AutoPrintEnabled *bool            `json:"auto_print_enabled"`
	PrintOrientation *string          `json:"print_orientation"`
	PrintCopies      *int             `json:"print_copies"`
	DefaultStationID *json.RawMessage `json:"default_station_id"`
}

// GetSettings returns the caller's preferences, creating defaults on first use.
func GetSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"settings": row})
	}
}

// UpdateSettings applies partial preference changes.
func UpdateSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settings service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := settings.UpdateParams{
			MaxUploadMB:      req.MaxUploadMB,
			AutoProcessFiles: req.AutoProcessFiles,
			AutoPrintEnabled: req.AutoPrintEnabled,
			PrintOrientation: req.PrintOrientation,
			PrintCopies:      req.PrintCopies,
		}
		if req.DefaultStationID != nil {
			raw := *req.DefaultStationID
			if string(raw) == "null" {
				params.ClearDefaultStation = true
			} else {
				var idStr string
				if err := json.Unmarshal(raw, &idStr); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "default_station_id must be a uuid or null"))
					return
				}
				id, err := uuid.Parse(idStr)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "default_station_id must be a uuid or null"))
					return
				}
				params.DefaultStationID = &id
			}
		}

		row, err := svc.Update(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"settings": row})
	}
}
