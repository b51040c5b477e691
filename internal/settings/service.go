package settings

import (
	"context"

	"github.com/google/uuid"

	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
)

// StationChecker verifies a station is owned by a user and still active.
type StationChecker interface {
	OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error)
}

// Service defines per-user preference operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	Update(ctx context.Context, userID uuid.UUID, params UpdateParams) (*models.UserSettings, error)
}

// UpdateParams applies partial settings changes. Pointer fields left nil keep
// the stored value; ClearDefaultStation removes the default target explicitly.
type UpdateParams struct {
	MaxUploadMB         *int
	AutoProcessFiles    *bool
	AutoPrintEnabled    *bool
	PrintOrientation    *string
	PrintCopies         *int
	DefaultStationID    *uuid.UUID
	ClearDefaultStation bool
}

type service struct {
	repo     Repository
	stations StationChecker
}

// NewService wires settings dependencies.
func NewService(repo Repository, stations StationChecker) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settings repository required")
	}
	if stations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "station checker required")
	}
	return &service{repo: repo, stations: stations}, nil
}

// Get returns the stored settings, creating defaults on first access.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	row, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	if row != nil {
		return row, nil
	}

	row = defaultSettings(userID)
	if err := s.repo.Create(ctx, row); err != nil {
		// Lost the create race; the winner's row is authoritative.
		existing, getErr := s.repo.GetByUserID(ctx, userID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settings")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, params UpdateParams) (*models.UserSettings, error) {
	row, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if params.MaxUploadMB != nil {
		if *params.MaxUploadMB < 1 || *params.MaxUploadMB > 100 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_upload_mb must be between 1 and 100")
		}
		row.MaxUploadMB = *params.MaxUploadMB
	}
	if params.AutoProcessFiles != nil {
		row.AutoProcessFiles = *params.AutoProcessFiles
	}
	if params.AutoPrintEnabled != nil {
		row.AutoPrintEnabled = *params.AutoPrintEnabled
	}
	if params.PrintOrientation != nil {
		orientation, err := enums.ParsePrintOrientation(*params.PrintOrientation)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "print_orientation must be portrait or landscape")
		}
		row.PrintOrientation = orientation
	}
	if params.PrintCopies != nil {
		if *params.PrintCopies < 1 || *params.PrintCopies > 10 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "print_copies must be between 1 and 10")
		}
		row.PrintCopies = *params.PrintCopies
	}

	switch {
	case params.ClearDefaultStation:
		row.DefaultStationID = nil
	case params.DefaultStationID != nil:
		owns, err := s.stations.OwnsActiveStation(ctx, userID, *params.DefaultStationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check station")
		}
		if !owns {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "default_station_id must reference an owned active station")
		}
		row.DefaultStationID = params.DefaultStationID
	}

	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	return row, nil
}

func defaultSettings(userID uuid.UUID) *models.UserSettings {
	return &models.UserSettings{
		UserID:           userID,
		MaxUploadMB:      10,
		AutoProcessFiles: true,
		AutoPrintEnabled: false,
		PrintOrientation: enums.PrintOrientationPortrait,
		PrintCopies:      1,
	}
}
