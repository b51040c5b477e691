package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	dbtypes "github.com/printbridge/backend/pkg/db/types"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/pagination"
	"github.com/printbridge/backend/pkg/storage"
)

const manualFailureMessage = "Manually marked as failed by admin"

// BulkOperation names a bulk queue action.
type BulkOperation string

const (
	BulkCancel  BulkOperation = "cancel"
	BulkRequeue BulkOperation = "requeue"
	BulkDelete  BulkOperation = "delete"
)

// Actor identifies the admin performing a mutation, for audit entries.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
}

// Service defines system administration operations.
type Service interface {
	Dashboard(ctx context.Context) (*DashboardCounts, error)
	ListUsers(ctx context.Context, page pagination.Page) (*UserListResult, error)
	ToggleUserActive(ctx context.Context, actor Actor, userID uuid.UUID) (*models.User, error)
	DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error
	ListFiles(ctx context.Context, page pagination.Page) (*FileListResult, error)
	ListJobs(ctx context.Context, params JobListParams) (*JobListResult, error)
	UpdateJob(ctx context.Context, actor Actor, jobID uuid.UUID, status string) (*models.PrintJob, error)
	DeleteJob(ctx context.Context, actor Actor, jobID uuid.UUID) error
	BulkJobs(ctx context.Context, actor Actor, jobIDs []uuid.UUID, op BulkOperation) (int64, error)
	ListStations(ctx context.Context) ([]StationRow, error)
	UpdateStation(ctx context.Context, actor Actor, stationID uuid.UUID, params StationUpdateParams) (*models.PrinterStation, error)
	ListAudit(ctx context.Context, page pagination.Page) (*AuditListResult, error)
}

// UserListResult is the paginated user listing with counts.
type UserListResult struct {
	Users []UserRow `json:"users"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
}

// FileListResult is the cross-tenant file listing.
type FileListResult struct {
	Files []models.UploadedFile `json:"files"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Pages int                   `json:"pages"`
}

// JobListResult is the cross-tenant job listing.
type JobListResult struct {
	Jobs   []models.PrintJob `json:"jobs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// AuditListResult is the paginated audit trail.
type AuditListResult struct {
	Entries []models.AuditLog `json:"entries"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Pages   int               `json:"pages"`
}

// StationUpdateParams applies admin overrides to a station.
type StationUpdateParams struct {
	Status       *string
	IsActive     *bool
	Capabilities map[string]any
}

type service struct {
	repo   Repository
	client *db.Client
	store  *storage.Store
}

// NewService wires admin dependencies.
func NewService(repo Repository, client *db.Client, store *storage.Store) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "admin repository required")
	}
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "storage required")
	}
	return &service{repo: repo, client: client, store: store}, nil
}

func (s *service) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	counts, err := s.repo.DashboardCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dashboard")
	}
	return counts, nil
}

func (s *service) ListUsers(ctx context.Context, page pagination.Page) (*UserListResult, error) {
	rows, total, err := s.repo.ListUsers(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	normalized := page.Normalize()
	return &UserListResult{
		Users: rows,
		Total: total,
		Page:  normalized.Number,
		Pages: normalized.Pages(total),
	}, nil
}

func (s *service) ToggleUserActive(ctx context.Context, actor Actor, userID uuid.UUID) (*models.User, error) {
	if userID == actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify your own account")
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	next := !user.IsActive
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetUserActive(ctx, userID, next); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, s.auditEntry(actor, "user.toggle_active", map[string]any{
			"target_user_id": userID.String(),
			"is_active":      next,
		}))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle user")
	}

	user.IsActive = next
	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if userID == actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete your own account")
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteUserData(ctx, userID); err != nil {
			return err
		}
		if err := repo.DeleteUser(ctx, userID); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, s.auditEntry(actor, "user.delete", map[string]any{
			"target_user_id": userID.String(),
			"username":       user.Username,
		}))
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}

	if err := s.store.DeleteUserDir(userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove user uploads")
	}
	return nil
}

func (s *service) ListFiles(ctx context.Context, page pagination.Page) (*FileListResult, error) {
	rows, total, err := s.repo.ListFiles(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list files")
	}
	normalized := page.Normalize()
	return &FileListResult{
		Files: rows,
		Total: total,
		Page:  normalized.Number,
		Pages: normalized.Pages(total),
	}, nil
}

func (s *service) ListJobs(ctx context.Context, params JobListParams) (*JobListResult, error) {
	rows, total, err := s.repo.ListJobs(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list jobs")
	}
	window := params.Window.Normalize()
	return &JobListResult{
		Jobs:   rows,
		Total:  total,
		Limit:  window.Limit,
		Offset: window.Offset,
	}, nil
}

func (s *service) UpdateJob(ctx context.Context, actor Actor, jobID uuid.UUID, status string) (*models.PrintJob, error) {
	parsed, err := enums.ParseJobStatus(status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown job status")
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "print job not found")
	}

	var printedAt *time.Time
	var errorMessage *string
	if parsed == enums.JobStatusCompleted {
		now := time.Now().UTC()
		printedAt = &now
	}
	if parsed == enums.JobStatusFailed {
		msg := manualFailureMessage
		errorMessage = &msg
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateJob(ctx, jobID, parsed, printedAt, errorMessage); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, s.auditEntry(actor, "job.update_status", map[string]any{
			"job_id": jobID.String(),
			"from":   job.Status.String(),
			"to":     parsed.String(),
		}))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update job")
	}

	job.Status = parsed
	if printedAt != nil {
		job.PrintedAt = printedAt
	}
	job.ErrorMessage = errorMessage
	return job, nil
}

func (s *service) DeleteJob(ctx context.Context, actor Actor, jobID uuid.UUID) error {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "print job not found")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteJob(ctx, jobID); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, s.auditEntry(actor, "job.delete", map[string]any{
			"job_id": jobID.String(),
		}))
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete job")
	}
	return nil
}

// BulkJobs applies one operation to a batch in a single transaction,
// all-or-nothing.
func (s *service) BulkJobs(ctx context.Context, actor Actor, jobIDs []uuid.UUID, op BulkOperation) (int64, error) {
	if len(jobIDs) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "job_ids is required")
	}

	var affected int64
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		switch op {
		case BulkCancel:
			affected, err = repo.CancelJobs(ctx, jobIDs)
		case BulkRequeue:
			affected, err = repo.RequeueJobs(ctx, jobIDs)
		case BulkDelete:
			affected, err = repo.DeleteJobs(ctx, jobIDs)
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "operation must be cancel, requeue or delete")
		}
		if err != nil {
			return err
		}

		return repo.AppendAudit(ctx, s.auditEntry(actor, "job.bulk_"+string(op), map[string]any{
			"job_ids":  len(jobIDs),
			"affected": affected,
		}))
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return 0, typed
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk job operation")
	}
	return affected, nil
}

func (s *service) ListStations(ctx context.Context) ([]StationRow, error) {
	rows, err := s.repo.ListStations(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stations")
	}
	return rows, nil
}

func (s *service) UpdateStation(ctx context.Context, actor Actor, stationID uuid.UUID, params StationUpdateParams) (*models.PrinterStation, error) {
	station, err := s.repo.GetStation(ctx, stationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station")
	}
	if station == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	if params.Status != nil {
		status, err := enums.ParseStationStatus(*params.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be online, offline or busy")
		}
		station.Status = status
	}
	if params.IsActive != nil {
		station.IsActive = *params.IsActive
	}
	if params.Capabilities != nil {
		station.Capabilities = dbtypes.JSONMap(params.Capabilities)
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SaveStation(ctx, station); err != nil {
			return err
		}
		return repo.AppendAudit(ctx, s.auditEntry(actor, "station.update", map[string]any{
			"station_id": stationID.String(),
		}))
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update station")
	}
	return station, nil
}

func (s *service) ListAudit(ctx context.Context, page pagination.Page) (*AuditListResult, error) {
	rows, total, err := s.repo.ListAudit(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit log")
	}
	normalized := page.Normalize()
	return &AuditListResult{
		Entries: rows,
		Total:   total,
		Page:    normalized.Number,
		Pages:   normalized.Pages(total),
	}, nil
}

func (s *service) auditEntry(actor Actor, action string, details map[string]any) *models.AuditLog {
	entry := &models.AuditLog{
		AdminUserID: actor.UserID,
		Action:      action,
		Details:     dbtypes.JSONMap(details),
	}
	if actor.IPAddress != "" {
		entry.IPAddress = &actor.IPAddress
	}
	return entry
}
