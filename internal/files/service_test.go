package files

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/config"
	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/pagination"
	"github.com/printbridge/backend/pkg/storage"
)

type fakeFilesRepo struct {
	files map[uuid.UUID]*models.UploadedFile

	deletedJobsFor *uuid.UUID
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{files: map[uuid.UUID]*models.UploadedFile{}}
}

func (f *fakeFilesRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.UploadedFile) error {
	file.ID = uuid.New()
	copied := *file
	f.files[file.ID] = &copied
	return nil
}

func (f *fakeFilesRepo) GetOwned(ctx context.Context, userID, fileID uuid.UUID) (*models.UploadedFile, error) {
	file, ok := f.files[fileID]
	if !ok || file.UserID != userID {
		return nil, nil
	}
	copied := *file
	return &copied, nil
}

func (f *fakeFilesRepo) ListOwned(ctx context.Context, userID uuid.UUID, page pagination.Page) ([]models.UploadedFile, int64, error) {
	var rows []models.UploadedFile
	for _, file := range f.files {
		if file.UserID == userID {
			rows = append(rows, *file)
		}
	}
	return rows, int64(len(rows)), nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, fileID uuid.UUID) error {
	delete(f.files, fileID)
	return nil
}

func (f *fakeFilesRepo) DeleteJobsForFile(ctx context.Context, fileID uuid.UUID) error {
	f.deletedJobsFor = &fileID
	return nil
}

type fixedLimit int

func (l fixedLimit) MaxUploadMB(ctx context.Context, userID uuid.UUID) (int, error) {
	return int(l), nil
}

func testFilesService(t *testing.T, repo Repository, limit int) Service {
	t.Helper()
	store, err := storage.New(config.StorageConfig{UploadRoot: t.TempDir()})
	require.NoError(t, err)
	client, err := db.New(context.Background(), config.DBConfig{DSN: "file::memory:?cache=shared"}, true, nil)
	require.NoError(t, err)
	svc, err := NewService(repo, store, fixedLimit(limit), client)
	require.NoError(t, err)
	return svc
}

func TestUploadStoresPDF(t *testing.T) {
	repo := newFakeFilesRepo()
	svc := testFilesService(t, repo, 10)
	userID := uuid.New()
	content := "%PDF-1.7\nhello"

	file, err := svc.Upload(context.Background(), UploadParams{
		UserID:       userID,
		OriginalName: "report.pdf",
		Reader:       strings.NewReader(content),
		DeclaredSize: int64(len(content)),
	})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", file.OriginalName)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.EqualValues(t, len(content), file.SizeBytes)
	assert.NotEmpty(t, file.ContentHash)
	assert.Equal(t, enums.FileStatusCompleted, file.Status)
	assert.NotNil(t, file.ProcessedAt)
}

func TestUploadRejectsNonPDFExtension(t *testing.T) {
	svc := testFilesService(t, newFakeFilesRepo(), 10)

	_, err := svc.Upload(context.Background(), UploadParams{
		UserID:       uuid.New(),
		OriginalName: "notes.txt",
		Reader:       strings.NewReader("%PDF-1.7"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUploadRejectsForgedPDF(t *testing.T) {
	svc := testFilesService(t, newFakeFilesRepo(), 10)

	_, err := svc.Upload(context.Background(), UploadParams{
		UserID:       uuid.New(),
		OriginalName: "fake.pdf",
		Reader:       strings.NewReader("GIF89a not a pdf"),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUploadRejectsDeclaredOversize(t *testing.T) {
	svc := testFilesService(t, newFakeFilesRepo(), 1)

	_, err := svc.Upload(context.Background(), UploadParams{
		UserID:       uuid.New(),
		OriginalName: "big.pdf",
		Reader:       strings.NewReader("%PDF-1.7"),
		DeclaredSize: 2 * 1024 * 1024,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestUploadTruncatesUndeclaredOversize(t *testing.T) {
	repo := newFakeFilesRepo()
	svc := testFilesService(t, repo, 1)

	body := "%PDF-1.7" + strings.Repeat("x", 2*1024*1024)
	_, err := svc.Upload(context.Background(), UploadParams{
		UserID:       uuid.New(),
		OriginalName: "big.pdf",
		Reader:       strings.NewReader(body),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, repo.files, "an oversized upload must not leave metadata behind")
}

func TestGetUnknownFile(t *testing.T) {
	svc := testFilesService(t, newFakeFilesRepo(), 10)

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newFakeFilesRepo()
	svc := testFilesService(t, repo, 10)
	owner := uuid.New()

	file, err := svc.Upload(context.Background(), UploadParams{
		UserID:       owner,
		OriginalName: "mine.pdf",
		Reader:       strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), file.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	owns, err := svc.OwnsFile(context.Background(), owner, file.ID)
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestDeleteRemovesFileAndQueueEntries(t *testing.T) {
	repo := newFakeFilesRepo()
	svc := testFilesService(t, repo, 10)
	userID := uuid.New()

	file, err := svc.Upload(context.Background(), UploadParams{
		UserID:       userID,
		OriginalName: "report.pdf",
		Reader:       strings.NewReader("%PDF-1.7"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), userID, file.ID))
	assert.Empty(t, repo.files)
	require.NotNil(t, repo.deletedJobsFor)
	assert.Equal(t, file.ID, *repo.deletedJobsFor)
}

func TestDownloadRoundTrip(t *testing.T) {
	repo := newFakeFilesRepo()
	svc := testFilesService(t, repo, 10)
	userID := uuid.New()
	content := "%PDF-1.7 round trip"

	uploaded, err := svc.Upload(context.Background(), UploadParams{
		UserID:       userID,
		OriginalName: "report.pdf",
		Reader:       strings.NewReader(content),
	})
	require.NoError(t, err)

	file, reader, err := svc.OpenDownload(context.Background(), userID, uploaded.ID)
	require.NoError(t, err)
	defer reader.Close()

	buf := make([]byte, len(content))
	_, err = reader.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, content, string(buf))
	assert.Equal(t, uploaded.StoredName, file.StoredName)
}
