package stations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
)

// Repository exposes persistence helpers for stations and their sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, station *models.PrinterStation) error
	Save(ctx context.Context, station *models.PrinterStation) error
	GetOwned(ctx context.Context, userID, stationID uuid.UUID) (*models.PrinterStation, error)
	GetByUserAndName(ctx context.Context, userID uuid.UUID, name string) (*models.PrinterStation, error)
	ListActive(ctx context.Context, userID uuid.UUID, status *enums.StationStatus) ([]models.PrinterStation, error)
	MarkOffline(ctx context.Context, stationIDs []uuid.UUID) error
	Deactivate(ctx context.Context, stationID uuid.UUID) error
	OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error)
	CountPendingJobs(ctx context.Context, stationID uuid.UUID) (int64, error)

	CreateSession(ctx context.Context, session *models.StationSession) error
	DeactivateSessions(ctx context.Context, stationID uuid.UUID) (int64, error)
	GetActiveSession(ctx context.Context, stationID uuid.UUID, token string) (*models.StationSession, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a stations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, station *models.PrinterStation) error {
	return r.db.WithContext(ctx).Create(station).Error
}

func (r *repositoryImpl) Save(ctx context.Context, station *models.PrinterStation) error {
	return r.db.WithContext(ctx).Save(station).Error
}

func (r *repositoryImpl) GetOwned(ctx context.Context, userID, stationID uuid.UUID) (*models.PrinterStation, error) {
	var station models.PrinterStation
	err := r.db.WithContext(ctx).First(&station, "id = ? AND user_id = ?", stationID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

func (r *repositoryImpl) GetByUserAndName(ctx context.Context, userID uuid.UUID, name string) (*models.PrinterStation, error) {
	var station models.PrinterStation
	err := r.db.WithContext(ctx).First(&station, "user_id = ? AND name = ?", userID, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

func (r *repositoryImpl) ListActive(ctx context.Context, userID uuid.UUID, status *enums.StationStatus) ([]models.PrinterStation, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var rows []models.PrinterStation
	if err := query.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) MarkOffline(ctx context.Context, stationIDs []uuid.UUID) error {
	if len(stationIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PrinterStation{}).
		Where("id IN ?", stationIDs).
		UpdateColumn("status", enums.StationStatusOffline).Error
}

func (r *repositoryImpl) Deactivate(ctx context.Context, stationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PrinterStation{}).
		Where("id = ?", stationID).
		UpdateColumns(map[string]any{
			"is_active": false,
			"status":    enums.StationStatusOffline,
		}).Error
}

func (r *repositoryImpl) OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PrinterStation{}).
		Where("id = ? AND user_id = ? AND is_active = ?", stationID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) CountPendingJobs(ctx context.Context, stationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PrintJob{}).
		Where("station_id = ? AND status = ?", stationID, enums.JobStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repositoryImpl) CreateSession(ctx context.Context, session *models.StationSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repositoryImpl) DeactivateSessions(ctx context.Context, stationID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StationSession{}).
		Where("station_id = ? AND is_active = ?", stationID, true).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) GetActiveSession(ctx context.Context, stationID uuid.UUID, token string) (*models.StationSession, error) {
	var session models.StationSession
	err := r.db.WithContext(ctx).
		First(&session, "station_id = ? AND session_token = ? AND is_active = ?", stationID, token, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repositoryImpl) TouchSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.StationSession{}).
		Where("id = ?", sessionID).
		UpdateColumn("last_activity", now).Error
}
