package admin

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

// Repository exposes cross-tenant persistence helpers for administration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	DashboardCounts(ctx context.Context) (*DashboardCounts, error)
	ListUsers(ctx context.Context, page pagination.Page) ([]UserRow, int64, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	DeleteUserData(ctx context.Context, userID uuid.UUID) error

	ListFiles(ctx context.Context, page pagination.Page) ([]models.UploadedFile, int64, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*models.PrintJob, error)
	ListJobs(ctx context.Context, params JobListParams) ([]models.PrintJob, int64, error)
	UpdateJob(ctx context.Context, jobID uuid.UUID, status enums.JobStatus, printedAt *time.Time, errorMessage *string) error
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
	CancelJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error)
	RequeueJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error)
	DeleteJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error)

	ListStations(ctx context.Context) ([]StationRow, error)
	GetStation(ctx context.Context, stationID uuid.UUID) (*models.PrinterStation, error)
	SaveStation(ctx context.Context, station *models.PrinterStation) error

	AppendAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, page pagination.Page) ([]models.AuditLog, int64, error)
}

// DashboardCounts aggregates system-wide totals.
type DashboardCounts struct {
	TotalUsers     int64 `json:"total_users"`
	ActiveUsers    int64 `json:"active_users"`
	TotalFiles     int64 `json:"total_files"`
	StorageBytes   int64 `json:"storage_bytes"`
	TotalJobs      int64 `json:"total_jobs"`
	PendingJobs    int64 `json:"pending_jobs"`
	TotalStations  int64 `json:"total_stations"`
	OnlineStations int64 `json:"online_stations"`
}

// UserRow is a user with per-user resource counts.
type UserRow struct {
	models.User
	FileCount int64 `json:"file_count" gorm:"column:file_count"`
	JobCount  int64 `json:"job_count" gorm:"column:job_count"`
}

// StationRow is a station with its pending job count.
type StationRow struct {
	models.PrinterStation
	PendingJobs int64 `json:"pending_jobs" gorm:"column:pending_jobs"`
}

// JobListParams filters and sorts the cross-tenant job listing.
type JobListParams struct {
	UserID    *uuid.UUID
	StationID *uuid.UUID
	Status    *enums.JobStatus
	SortBy    string
	SortDesc  bool
	Window    pagination.Window
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an admin repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) DashboardCounts(ctx context.Context) (*DashboardCounts, error) {
	counts := &DashboardCounts{}
	db := r.db.WithContext(ctx)

	steps := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&counts.TotalUsers, db.Model(&models.User{})},
		{&counts.ActiveUsers, db.Model(&models.User{}).Where("is_active = ?", true)},
		{&counts.TotalFiles, db.Model(&models.UploadedFile{})},
		{&counts.TotalJobs, db.Model(&models.PrintJob{})},
		{&counts.PendingJobs, db.Model(&models.PrintJob{}).Where("status = ?", enums.JobStatusPending)},
		{&counts.TotalStations, db.Model(&models.PrinterStation{}).Where("is_active = ?", true)},
		{&counts.OnlineStations, db.Model(&models.PrinterStation{}).Where("is_active = ? AND status = ?", true, enums.StationStatusOnline)},
	}
	for _, step := range steps {
		if err := step.query.Count(step.dest).Error; err != nil {
			return nil, err
		}
	}

	var storage struct{ Total int64 }
	err := db.Model(&models.UploadedFile{}).
		Select("COALESCE(SUM(size_bytes), 0) AS total").
		Scan(&storage).Error
	if err != nil {
		return nil, err
	}
	counts.StorageBytes = storage.Total

	return counts, nil
}

func (r *repositoryImpl) ListUsers(ctx context.Context, page pagination.Page) ([]UserRow, int64, error) {
	normalized := page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []UserRow
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(`users.*,
			(SELECT COUNT(*) FROM uploaded_files WHERE uploaded_files.user_id = users.id) AS file_count,
			(SELECT COUNT(*) FROM print_jobs WHERE print_jobs.user_id = users.id) AS job_count`).
		Order("created_at DESC").
		Offset(normalized.Offset()).
		Limit(normalized.PerPage).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repositoryImpl) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("is_active", active).Error
}

func (r *repositoryImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", userID).Error
}

// DeleteUserData removes the user's dependent rows explicitly so SQLite-backed
// tests behave like the Postgres cascade.
func (r *repositoryImpl) DeleteUserData(ctx context.Context, userID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Delete(&models.PrintJob{}, "user_id = ?", userID).Error; err != nil {
		return err
	}
	if err := db.Exec(
		"DELETE FROM station_sessions WHERE station_id IN (SELECT id FROM printer_stations WHERE user_id = ?)",
		userID,
	).Error; err != nil {
		return err
	}
	if err := db.Delete(&models.PrinterStation{}, "user_id = ?", userID).Error; err != nil {
		return err
	}
	if err := db.Delete(&models.UploadedFile{}, "user_id = ?", userID).Error; err != nil {
		return err
	}
	return db.Delete(&models.UserSettings{}, "user_id = ?", userID).Error
}

func (r *repositoryImpl) ListFiles(ctx context.Context, page pagination.Page) ([]models.UploadedFile, int64, error) {
	normalized := page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.UploadedFile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.UploadedFile
	err := r.db.WithContext(ctx).
		Order("uploaded_at DESC").
		Offset(normalized.Offset()).
		Limit(normalized.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.PrintJob, error) {
	var job models.PrintJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repositoryImpl) ListJobs(ctx context.Context, params JobListParams) ([]models.PrintJob, int64, error) {
	window := params.Window.Normalize()

	filter := func(q *gorm.DB) *gorm.DB {
		if params.UserID != nil {
			q = q.Where("user_id = ?", *params.UserID)
		}
		if params.StationID != nil {
			q = q.Where("station_id = ?", *params.StationID)
		}
		if params.Status != nil {
			q = q.Where("status = ?", *params.Status)
		}
		return q
	}

	var total int64
	if err := filter(r.db.WithContext(ctx).Model(&models.PrintJob{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortCol := "created_at"
	switch params.SortBy {
	case "status":
		sortCol = "status"
	case "printed_at":
		sortCol = "printed_at"
	}
	direction := "ASC"
	if params.SortDesc {
		direction = "DESC"
	}

	var rows []models.PrintJob
	err := filter(r.db.WithContext(ctx)).
		Order(sortCol + " " + direction).
		Offset(window.Offset).
		Limit(window.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) UpdateJob(ctx context.Context, jobID uuid.UUID, status enums.JobStatus, printedAt *time.Time, errorMessage *string) error {
	updates := map[string]any{
		"status":        status,
		"error_message": errorMessage,
	}
	if printedAt != nil {
		updates["printed_at"] = *printedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id = ?", jobID).
		UpdateColumns(updates).Error
}

func (r *repositoryImpl) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PrintJob{}, "id = ?", jobID).Error
}

func (r *repositoryImpl) CancelJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id IN ? AND status IN ?", jobIDs, []enums.JobStatus{enums.JobStatusPending, enums.JobStatusPrinting}).
		UpdateColumn("status", enums.JobStatusCancelled)
	return result.RowsAffected, result.Error
}

// RequeueJobs is the only exit from a terminal status: any status resets to
// pending and the stored error is cleared.
func (r *repositoryImpl) RequeueJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("id IN ?", jobIDs).
		UpdateColumns(map[string]any{
			"status":        enums.JobStatusPending,
			"error_message": nil,
			"printed_at":    nil,
		})
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) DeleteJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.PrintJob{}, "id IN ?", jobIDs)
	return result.RowsAffected, result.Error
}

func (r *repositoryImpl) ListStations(ctx context.Context) ([]StationRow, error) {
	var rows []StationRow
	err := r.db.WithContext(ctx).
		Model(&models.PrinterStation{}).
		Select(`printer_stations.*,
			(SELECT COUNT(*) FROM print_jobs
				WHERE print_jobs.station_id = printer_stations.id
				AND print_jobs.status = 'pending') AS pending_jobs`).
		Order("created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) GetStation(ctx context.Context, stationID uuid.UUID) (*models.PrinterStation, error) {
	var station models.PrinterStation
	err := r.db.WithContext(ctx).First(&station, "id = ?", stationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

func (r *repositoryImpl) SaveStation(ctx context.Context, station *models.PrinterStation) error {
	return r.db.WithContext(ctx).Save(station).Error
}

func (r *repositoryImpl) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) ListAudit(ctx context.Context, page pagination.Page) ([]models.AuditLog, int64, error) {
	normalized := page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AuditLog{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AuditLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(normalized.Offset()).
		Limit(normalized.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
