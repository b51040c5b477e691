package files

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/pagination"
)

// Repository exposes persistence helpers for uploaded files.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, file *models.UploadedFile) error
	GetOwned(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, error)
	ListOwned(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.UploadedFile, int64, error)
	Delete(ctx context.Context, fileID uuid.UUID) error
	DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a files repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, file *models.UploadedFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *repositoryImpl) GetOwned(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, error) {
	var file models.UploadedFile
	err := r.db.WithContext(ctx).First(&file, "id = ? AND user_id = ?", fileID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repositoryImpl) ListOwned(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.UploadedFile, int64, error) {
	normalized := page.Normalize()

	var total int64
	base := r.db.WithContext(ctx).Model(&models.UploadedFile{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.UploadedFile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Offset(normalized.Offset()).
		Limit(normalized.PerPage).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, fileID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.UploadedFile{}, "id = ?", fileID).Error
}

func (r *repositoryImpl) DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.PrintJob{}, "file_id = ?", fileID).Error
}
