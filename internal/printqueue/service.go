package printqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
)

// FileChecker verifies a file exists and belongs to a user.
type FileChecker interface {
	OwnsFile(ctx context.Context, userID, fileID uuid.UUID) (bool, error)
}

// StationChecker verifies a station is owned by a user and still active.
type StationChecker interface {
	OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error)
}

// PrintPreferences is the slice of user settings the queue consults.
type PrintPreferences struct {
	AutoPrintEnabled bool
	Orientation      enums.PrintOrientation
	Copies           int
	DefaultStationID *uuid.UUID
}

// PreferencesProvider loads queue-relevant settings.
type PreferencesProvider interface {
	PrintPreferences(ctx context.Context, userID uuid.UUID) (*PrintPreferences, error)
}

// Service defines print queue operations.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, statusFilter string) ([]models.PrintJob, error)
	Enqueue(ctx context.Context, userID, fileID uuid.UUID, stationID *uuid.UUID) (*models.PrintJob, error)
	ClaimNext(ctx context.Context, userID uuid.UUID, stationID *uuid.UUID) (*ClaimResult, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.PrintJob, error)
	Delete(ctx context.Context, userID, jobID uuid.UUID) error
	StationQueue(ctx context.Context, params StationQueueParams) (*StationQueueResult, error)
	StationHistory(ctx context.Context, params HistoryParams) (*HistoryResult, error)
}

// ClaimResult is the claim-next outcome. Job is nil when there is nothing to
// print or auto-print is disabled; Message carries the idle explanation.
type ClaimResult struct {
	Job      *models.PrintJob `json:"print_job,omitempty"`
	Settings *ClaimSettings   `json:"settings,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// ClaimSettings carries the print preferences a consumer applies to a claim.
type ClaimSettings struct {
	Orientation enums.PrintOrientation `json:"orientation"`
	Copies      int                    `json:"copies"`
}

// UpdateStatusParams applies a consumer-reported transition.
type UpdateStatusParams struct {
	UserID       uuid.UUID
	JobID        uuid.UUID
	Status       string
	ErrorMessage string
}

// StationQueueResult is the paginated per-station queue view.
type StationQueueResult struct {
	Jobs   []models.PrintJob `json:"jobs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// HistoryResult is the terminal-job history view with aggregates.
type HistoryResult struct {
	Jobs   []models.PrintJob `json:"jobs"`
	Total  int64             `json:"total"`
	Stats  *HistoryStats     `json:"stats"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type service struct {
	repo     Repository
	files    FileChecker
	stations StationChecker
	prefs    PreferencesProvider
	client   *db.Client
}

// NewService wires print queue dependencies.
func NewService(repo Repository, files FileChecker, stations StationChecker, prefs PreferencesProvider, client *db.Client) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "print queue repository required")
	}
	if files == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "file checker required")
	}
	if stations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "station checker required")
	}
	if prefs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preferences provider required")
	}
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	return &service{repo: repo, files: files, stations: stations, prefs: prefs, client: client}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, statusFilter string) ([]models.PrintJob, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	var status *enums.JobStatus
	if statusFilter != "" {
		parsed, err := enums.ParseJobStatus(statusFilter)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown job status")
		}
		status = &parsed
	}
	rows, err := s.repo.ListOwned(ctx, userID, status, 20)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list jobs")
	}
	return rows, nil
}

// Enqueue targets, in order: the explicit station, the user's default station,
// or local (nil). A second pending job for the same (user, file, target) is a
// conflict; the partial unique index backs the pre-check against races.
func (s *service) Enqueue(ctx context.Context, userID, fileID uuid.UUID, stationID *uuid.UUID) (*models.PrintJob, error) {
	if userID == uuid.Nil || fileID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and file id required")
	}

	owns, err := s.files.OwnsFile(ctx, userID, fileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check file")
	}
	if !owns {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
	}

	target := stationID
	if target != nil {
		ownsStation, err := s.stations.OwnsActiveStation(ctx, userID, *target)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check station")
		}
		if !ownsStation {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
		}
	} else {
		prefs, err := s.prefs.PrintPreferences(ctx, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
		}
		if prefs.DefaultStationID != nil {
			ownsStation, err := s.stations.OwnsActiveStation(ctx, userID, *prefs.DefaultStationID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check default station")
			}
			if ownsStation {
				target = prefs.DefaultStationID
			}
		}
	}

	duplicate, err := s.repo.HasPending(ctx, userID, fileID, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicates")
	}
	if duplicate {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "file is already queued for this target")
	}

	job := &models.PrintJob{
		UserID:    userID,
		FileID:    fileID,
		StationID: target,
		Status:    enums.JobStatusPending,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		if db.IsUniqueViolation(err, "uq_print_jobs_pending") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "file is already queued for this target")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create job")
	}
	return job, nil
}

// ClaimNext drains the caller's queue. Station pollers bypass the auto-print
// preference; browser (local) pollers honor it.
func (s *service) ClaimNext(ctx context.Context, userID uuid.UUID, stationID *uuid.UUID) (*ClaimResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	prefs, err := s.prefs.PrintPreferences(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	if stationID == nil && !prefs.AutoPrintEnabled {
		return &ClaimResult{Message: "Auto-print is disabled"}, nil
	}
	if stationID != nil {
		ownsStation, err := s.stations.OwnsActiveStation(ctx, userID, *stationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check station")
		}
		if !ownsStation {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
		}
	}

	var job *models.PrintJob
	now := time.Now().UTC()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		claimed, err := repo.ClaimNext(ctx, userID, stationID)
		if err != nil {
			return err
		}
		job = claimed
		return repo.TouchLastPrintCheck(ctx, userID, now)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim next job")
	}

	if job == nil {
		return &ClaimResult{Message: "No pending print jobs"}, nil
	}
	return &ClaimResult{
		Job: job,
		Settings: &ClaimSettings{
			Orientation: prefs.Orientation,
			Copies:      prefs.Copies,
		},
	}, nil
}

func (s *service) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.PrintJob, error) {
	status, err := enums.ParseJobStatus(params.Status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown job status")
	}
	if status == enums.JobStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation is an admin operation")
	}

	job, err := s.repo.GetOwned(ctx, params.UserID, params.JobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "print job not found")
	}
	if job.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job already finished").
			WithDetails(map[string]any{"status": job.Status.String()})
	}

	var printedAt *time.Time
	var errorMessage *string
	if status == enums.JobStatusCompleted {
		now := time.Now().UTC()
		printedAt = &now
	}
	if status == enums.JobStatusFailed && params.ErrorMessage != "" {
		errorMessage = &params.ErrorMessage
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, status, printedAt, errorMessage); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job")
	}

	job.Status = status
	job.PrintedAt = printedAt
	job.ErrorMessage = errorMessage
	return job, nil
}

func (s *service) Delete(ctx context.Context, userID, jobID uuid.UUID) error {
	job, err := s.repo.GetOwned(ctx, userID, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "print job not found")
	}
	if err := s.repo.Delete(ctx, job.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete job")
	}
	return nil
}

func (s *service) StationQueue(ctx context.Context, params StationQueueParams) (*StationQueueResult, error) {
	ownsStation, err := s.stations.OwnsActiveStation(ctx, params.UserID, params.StationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check station")
	}
	if !ownsStation {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	rows, total, err := s.repo.ListForStation(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list station queue")
	}
	window := params.Window.Normalize()
	return &StationQueueResult{
		Jobs:   rows,
		Total:  total,
		Limit:  window.Limit,
		Offset: window.Offset,
	}, nil
}

func (s *service) StationHistory(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	ownsStation, err := s.stations.OwnsActiveStation(ctx, params.UserID, params.StationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check station")
	}
	if !ownsStation {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	rows, total, err := s.repo.ListHistory(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list history")
	}
	stats, err := s.repo.HistoryStats(ctx, params.StationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "history stats")
	}
	window := params.Window.Normalize()
	return &HistoryResult{
		Jobs:   rows,
		Total:  total,
		Stats:  stats,
		Limit:  window.Limit,
		Offset: window.Offset,
	}, nil
}
