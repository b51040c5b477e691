package settings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db/models"
)

// Repository exposes persistence helpers for user settings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
	Create(ctx context.Context, settings *models.UserSettings) error
	Save(ctx context.Context, settings *models.UserSettings) error
	TouchLastPrintCheck(ctx context.Context, userID uuid.UUID, now time.Time) error
	ClearDefaultStation(ctx context.Context, stationID uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a settings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	var row models.UserSettings
	err := r.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repositoryImpl) Create(ctx context.Context, settings *models.UserSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *repositoryImpl) Save(ctx context.Context, settings *models.UserSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

func (r *repositoryImpl) TouchLastPrintCheck(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("user_id = ?", userID).
		UpdateColumn("last_print_check", now).Error
}

func (r *repositoryImpl) ClearDefaultStation(ctx context.Context, stationID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.UserSettings{}).
		Where("default_station_id = ?", stationID).
		UpdateColumn("default_station_id", nil).Error
}
