package printqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	"github.com/printbridge/backend/pkg/pagination"
)

// Repository exposes persistence helpers for print jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, job *models.PrintJob) error
	GetOwned(ctx context.Context, userID, jobID uuid.UUID) (*models.PrintJob, error)
	ListOwned(ctx context.Context, userID uuid.UUID, status *enums.JobStatus, limit int) ([]models.PrintJob, error)
	HasPending(ctx context.Context, userID, fileID uuid.UUID, stationID *uuid.UUID) (bool, error)
	ClaimNext(ctx context.Context, userID uuid.UUID, stationID *uuid.UUID) (*models.PrintJob, error)
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status enums.JobStatus, printedAt *time.Time, errorMessage *string) error
	TouchLastPrintCheck(ctx context.Context, userID uuid.UUID, now time.Time) error
	Delete(ctx context.Context, jobID uuid.UUID) error
	ListForStation(ctx context.Context, params StationQueueParams) ([]models.PrintJob, int64, error)
	ListHistory(ctx context.Context, params HistoryParams) ([]models.PrintJob, int64, error)
	HistoryStats(ctx context.Context, stationID uuid.UUID) (*HistoryStats, error)
}

// StationQueueParams scopes a per-station queue view.
type StationQueueParams struct {
	UserID    uuid.UUID
	StationID uuid.UUID
	Status    *enums.JobStatus
	Window    pagination.Window
}

// HistoryParams scopes the completed/failed history view.
type HistoryParams struct {
	UserID    uuid.UUID
	StationID uuid.UUID
	FromDate  *time.Time
	ToDate    *time.Time
	Window    pagination.Window
}

// HistoryStats aggregates a station's terminal jobs.
type HistoryStats struct {
	TotalPrinted int64 `json:"total_printed"`
	TotalFailed  int64 `json:"total_failed"`
	Last24h      int64 `json:"last_24h"`
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a print queue repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, job *models.PrintJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repositoryImpl) GetOwned(ctx context.Context, userID, jobID uuid.UUID) (*models.PrintJob, error) {
	var job models.PrintJob
	err := r.db.WithContext(ctx).First(&job, "id = ? AND user_id = ?", jobID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repositoryImpl) ListOwned(ctx context.Context, userID uuid.UUID, status *enums.JobStatus, limit int) ([]models.PrintJob, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []models.PrintJob
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) HasPending(ctx context.Context, userID, fileID uuid.UUID, stationID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("user_id = ? AND file_id = ? AND status = ?", userID, fileID, enums.JobStatusPending)
	if stationID == nil {
		query = query.Where("station_id IS NULL")
	} else {
		query = query.Where("station_id = ?", *stationID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimNext atomically claims the oldest eligible pending job. Station mode
// drains both station-addressed and unaddressed jobs; local mode drains only
// unaddressed ones. The claim is a single conditional UPDATE guarded on
// status='pending', so two concurrent pollers can never win the same row.
func (r *repositoryImpl) ClaimNext(ctx context.Context, userID uuid.UUID, stationID *uuid.UUID) (*models.PrintJob, error) {
	for {
		candidate, err := r.nextCandidate(ctx, userID, stationID)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			return nil, nil
		}

		result := r.db.WithContext(ctx).
			Model(&models.PrintJob{}).
			Where("id = ? AND status = ?", candidate.ID, enums.JobStatusPending).
			UpdateColumn("status", enums.JobStatusPrinting)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			// Lost the race for this row; try the next one.
			continue
		}

		candidate.Status = enums.JobStatusPrinting
		return candidate, nil
	}
}

func (r *repositoryImpl) nextCandidate(ctx context.Context, userID uuid.UUID, stationID *uuid.UUID) (*models.PrintJob, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.JobStatusPending)
	if stationID == nil {
		query = query.Where("station_id IS NULL")
	} else {
		query = query.Where("(station_id = ? OR station_id IS NULL)", *stationID)
	}

	var job models.PrintJob
	err := query.Order("created_at ASC").First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repositoryImpl) UpdateStatus(ctx context.Context, jobID uuid.UUID, status enums.JobStatus, printedAt *time.Time, errorMessage *string) error {
	updates := map[string]any{"status": status}
	if printedAt != nil {
		updates["printed_at"] = *printedAt
	}
	updates["error_message"] = errorMessage
	return r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id = ?", jobID).
		UpdateColumns(updates).Error
}

func (r *repositoryImpl) TouchLastPrintCheck(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		UpdateColumn("last_print_check", now).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, jobID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PrintJob{}, "id = ?", jobID).Error
}

func (r *repositoryImpl) ListForStation(ctx context.Context, params StationQueueParams) ([]models.PrintJob, int64, error) {
	window := params.Window.Normalize()

	base := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("user_id = ? AND station_id = ?", params.UserID, params.StationID)
	if params.Status != nil {
		base = base.Where("status = ?", *params.Status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ? AND station_id = ?", params.UserID, params.StationID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	// Live work drains FIFO; finished work reads newest first.
	order := "created_at DESC"
	if params.Status != nil && (*params.Status == enums.JobStatusPending || *params.Status == enums.JobStatusPrinting) {
		order = "created_at ASC"
	}

	var rows []models.PrintJob
	err := query.Order(order).Offset(window.Offset).Limit(window.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) ListHistory(ctx context.Context, params HistoryParams) ([]models.PrintJob, int64, error) {
	window := params.Window.Normalize()
	terminal := []enums.JobStatus{enums.JobStatusCompleted, enums.JobStatusFailed}

	base := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("user_id = ? AND station_id = ? AND status IN ?", params.UserID, params.StationID, terminal)
	if params.FromDate != nil {
		base = base.Where("printed_at >= ?", *params.FromDate)
	}
	if params.ToDate != nil {
		base = base.Where("printed_at <= ?", *params.ToDate)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ? AND station_id = ? AND status IN ?", params.UserID, params.StationID, terminal)
	if params.FromDate != nil {
		query = query.Where("printed_at >= ?", *params.FromDate)
	}
	if params.ToDate != nil {
		query = query.Where("printed_at <= ?", *params.ToDate)
	}

	var rows []models.PrintJob
	err := query.Order("printed_at DESC").
		Offset(window.Offset).
		Limit(window.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) HistoryStats(ctx context.Context, stationID uuid.UUID) (*HistoryStats, error) {
	stats := &HistoryStats{}

	err := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("station_id = ? AND status = ?", stationID, enums.JobStatusCompleted).
		Count(&stats.TotalPrinted).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("station_id = ? AND status = ?", stationID, enums.JobStatusFailed).
		Count(&stats.TotalFailed).Error
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	err = r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("station_id = ? AND status = ? AND printed_at >= ?", stationID, enums.JobStatusCompleted, cutoff).
		Count(&stats.Last24h).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}
