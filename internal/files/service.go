package files

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/pagination"
	"github.com/printbridge/backend/pkg/storage"
)

const pdfMagic = "%PDF-"

// UploadLimitProvider returns the per-user upload cap in megabytes.
type UploadLimitProvider interface {
	MaxUploadMB(ctx context.Context, userID uuid.UUID) (int, error)
}

// Service defines document upload and retrieval operations.
type Service interface {
	Upload(ctx context.Context, params UploadParams) (*models.UploadedFile, error)
	List(ctx context.Context, userID uuid.UUID, page pagination.Page) (*ListResult, error)
	Get(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, error)
	Delete(ctx context.Context, userID, fileID uuid.UUID) error
	OpenDownload(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, io.ReadSeekCloser, error)
	OwnsFile(ctx context.Context, userID, fileID uuid.UUID) (bool, error)
}

// UploadParams carries one multipart upload.
type UploadParams struct {
	UserID       uuid.UUID
	OriginalName string
	Reader       io.Reader
	DeclaredSize int64
}

// ListResult is a paginated file listing.
type ListResult struct {
	Files []models.UploadedFile `json:"files"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Pages int                   `json:"pages"`
}

type service struct {
	repo   Repository
	store  *storage.Store
	limits UploadLimitProvider
	client *db.Client
}

// NewService wires file dependencies.
func NewService(repo Repository, store *storage.Store, limits UploadLimitProvider, client *db.Client) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "files repository required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "storage required")
	}
	if limits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "upload limits required")
	}
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	return &service{repo: repo, store: store, limits: limits, client: client}, nil
}

func (s *service) Upload(ctx context.Context, params UploadParams) (*models.UploadedFile, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	name := strings.TrimSpace(params.OriginalName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file name required")
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only PDF files are accepted")
	}

	maxMB, err := s.limits.MaxUploadMB(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upload limit")
	}
	maxBytes := int64(maxMB) * 1024 * 1024
	if params.DeclaredSize > 0 && params.DeclaredSize > maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the upload size limit")
	}

	// Sniff the header before committing anything to disk.
	header := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(params.Reader, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable upload")
	}
	if n < len(pdfMagic) || !bytes.Equal(header[:n], []byte(pdfMagic)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file is not a valid PDF")
	}

	limited := io.LimitReader(params.Reader, maxBytes-int64(len(header))+1)
	saved, err := s.store.Save(params.UserID, name, io.MultiReader(bytes.NewReader(header), limited))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store upload")
	}
	if saved.SizeBytes > maxBytes {
		_ = s.store.Delete(params.UserID, saved.StoredName)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file exceeds the upload size limit")
	}

	now := time.Now().UTC()
	file := &models.UploadedFile{
		UserID:       params.UserID,
		StoredName:   saved.StoredName,
		OriginalName: name,
		SizeBytes:    saved.SizeBytes,
		ContentHash:  saved.ContentHash,
		MimeType:     "application/pdf",
		Status:       enums.FileStatusCompleted,
		ProcessedAt:  &now,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		_ = s.store.Delete(params.UserID, saved.StoredName)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save file metadata")
	}
	return file, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, page pagination.Page) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, total, err := s.repo.ListOwned(ctx, userID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list files")
	}
	normalized := page.Normalize()
	return &ListResult{
		Files: rows,
		Total: total,
		Page:  normalized.Number,
		Pages: normalized.Pages(total),
	}, nil
}

func (s *service) Get(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, error) {
	file, err := s.repo.GetOwned(ctx, userID, fileID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load file")
	}
	if file == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "file not found")
	}
	return file, nil
}

func (s *service) Delete(ctx context.Context, userID, fileID uuid.UUID) error {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeleteJobsForFile(ctx, file.ID); err != nil {
			return err
		}
		return repo.Delete(ctx, file.ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete file")
	}

	// Disk cleanup happens after the metadata commit; a stray file is better
	// than a row pointing at nothing.
	if err := s.store.Delete(userID, file.StoredName); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove stored file")
	}
	return nil
}

func (s *service) OwnsFile(ctx context.Context, userID, fileID uuid.UUID) (bool, error) {
	file, err := s.repo.GetOwned(ctx, userID, fileID)
	if err != nil {
		return false, err
	}
	return file != nil, nil
}

func (s *service) OpenDownload(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, io.ReadSeekCloser, error) {
	file, err := s.Get(ctx, userID, fileID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.store.Open(userID, file.StoredName)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open stored file")
	}
	return file, reader, nil
}
