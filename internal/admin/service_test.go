package admin

import (
	"context"
	"testing"
	"time"

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

type fakeAdminRepo struct {
	users map[uuid.UUID]*models.User
	jobs  map[uuid.UUID]*models.PrintJob
	audit []*models.AuditLog

	requeuedIDs []uuid.UUID
	deletedUser *uuid.UUID
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{
		users: map[uuid.UUID]*models.User{},
		jobs:  map[uuid.UUID]*models.PrintJob{},
	}
}

func (f *fakeAdminRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeAdminRepo) DashboardCounts(ctx context.Context) (*DashboardCounts, error) {
	return &DashboardCounts{TotalUsers: int64(len(f.users))}, nil
}

func (f *fakeAdminRepo) ListUsers(ctx context.Context, page pagination.Page) ([]UserRow, int64, error) {
	return nil, int64(len(f.users)), nil
}

func (f *fakeAdminRepo) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeAdminRepo) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	if user, ok := f.users[userID]; ok {
		user.IsActive = active
	}
	return nil
}

func (f *fakeAdminRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	delete(f.users, userID)
	f.deletedUser = &userID
	return nil
}

func (f *fakeAdminRepo) DeleteUserData(ctx context.Context, userID uuid.UUID) error { return nil }

func (f *fakeAdminRepo) ListFiles(ctx context.Context, page pagination.Page) ([]models.UploadedFile, int64, error) {
	return nil, 0, nil
}

func (f *fakeAdminRepo) GetJob(ctx context.Context, jobID uuid.UUID) (*models.PrintJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (f *fakeAdminRepo) ListJobs(ctx context.Context, params JobListParams) ([]models.PrintJob, int64, error) {
	return nil, 0, nil
}

func (f *fakeAdminRepo) UpdateJob(ctx context.Context, jobID uuid.UUID, status enums.JobStatus, printedAt *time.Time, errorMessage *string) error {
	if job, ok := f.jobs[jobID]; ok {
		job.Status = status
		job.PrintedAt = printedAt
		job.ErrorMessage = errorMessage
	}
	return nil
}

func (f *fakeAdminRepo) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeAdminRepo) CancelJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	var affected int64
	for _, id := range jobIDs {
		job, ok := f.jobs[id]
		if !ok {
			continue
		}
		if job.Status == enums.JobStatusPending || job.Status == enums.JobStatusPrinting {
			job.Status = enums.JobStatusCancelled
			affected++
		}
	}
	return affected, nil
}

func (f *fakeAdminRepo) RequeueJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	f.requeuedIDs = append(f.requeuedIDs, jobIDs...)
	var affected int64
	for _, id := range jobIDs {
		if job, ok := f.jobs[id]; ok {
			job.Status = enums.JobStatusPending
			job.ErrorMessage = nil
			job.PrintedAt = nil
			affected++
		}
	}
	return affected, nil
}

func (f *fakeAdminRepo) DeleteJobs(ctx context.Context, jobIDs []uuid.UUID) (int64, error) {
	var affected int64
	for _, id := range jobIDs {
		if _, ok := f.jobs[id]; ok {
			delete(f.jobs, id)
			affected++
		}
	}
	return affected, nil
}

func (f *fakeAdminRepo) ListStations(ctx context.Context) ([]StationRow, error) { return nil, nil }

func (f *fakeAdminRepo) GetStation(ctx context.Context, stationID uuid.UUID) (*models.PrinterStation, error) {
	return nil, nil
}

func (f *fakeAdminRepo) SaveStation(ctx context.Context, station *models.PrinterStation) error {
	return nil
}

func (f *fakeAdminRepo) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	f.audit = append(f.audit, entry)
	return nil
}

func (f *fakeAdminRepo) ListAudit(ctx context.Context, page pagination.Page) ([]models.AuditLog, int64, error) {
	return nil, 0, nil
}

func (f *fakeAdminRepo) lastAudit(t *testing.T) *models.AuditLog {
	t.Helper()
	require.NotEmpty(t, f.audit)
	return f.audit[len(f.audit)-1]
}

func testAdminService(t *testing.T, repo Repository) Service {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{DSN: "file::memory:?cache=shared"}, true, nil)
	require.NoError(t, err)
	store, err := storage.New(config.StorageConfig{UploadRoot: t.TempDir()})
	require.NoError(t, err)
	svc, err := NewService(repo, client, store)
	require.NoError(t, err)
	return svc
}

func TestToggleUserActiveSelfGuard(t *testing.T) {
	repo := newFakeAdminRepo()
	adminID := uuid.New()
	repo.users[adminID] = &models.User{ID: adminID, IsActive: true}
	svc := testAdminService(t, repo)

	_, err := svc.ToggleUserActive(context.Background(), Actor{UserID: adminID}, adminID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	assert.True(t, repo.users[adminID].IsActive, "self-toggle must not change anything")
}

func TestToggleUserActiveFlipsAndAudits(t *testing.T) {
	repo := newFakeAdminRepo()
	adminID := uuid.New()
	targetID := uuid.New()
	repo.users[targetID] = &models.User{ID: targetID, IsActive: true}
	svc := testAdminService(t, repo)

	user, err := svc.ToggleUserActive(context.Background(), Actor{UserID: adminID, IPAddress: "203.0.113.9"}, targetID)
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.False(t, repo.users[targetID].IsActive)

	entry := repo.lastAudit(t)
	assert.Equal(t, "user.toggle_active", entry.Action)
	assert.Equal(t, adminID, entry.AdminUserID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "203.0.113.9", *entry.IPAddress)
}

func TestDeleteUserSelfGuard(t *testing.T) {
	repo := newFakeAdminRepo()
	adminID := uuid.New()
	repo.users[adminID] = &models.User{ID: adminID}
	svc := testAdminService(t, repo)

	err := svc.DeleteUser(context.Background(), Actor{UserID: adminID}, adminID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	assert.Nil(t, repo.deletedUser)
}

func TestDeleteUserRemovesRowAndAudits(t *testing.T) {
	repo := newFakeAdminRepo()
	targetID := uuid.New()
	repo.users[targetID] = &models.User{ID: targetID, Username: "doomed"}
	svc := testAdminService(t, repo)

	require.NoError(t, svc.DeleteUser(context.Background(), Actor{UserID: uuid.New()}, targetID))
	require.NotNil(t, repo.deletedUser)
	assert.Equal(t, targetID, *repo.deletedUser)
	assert.Equal(t, "user.delete", repo.lastAudit(t).Action)
}

func TestDeleteUserUnknownTarget(t *testing.T) {
	svc := testAdminService(t, newFakeAdminRepo())

	err := svc.DeleteUser(context.Background(), Actor{UserID: uuid.New()}, uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUpdateJobFailedSetsManualMessage(t *testing.T) {
	repo := newFakeAdminRepo()
	jobID := uuid.New()
	repo.jobs[jobID] = &models.PrintJob{ID: jobID, Status: enums.JobStatusPrinting}
	svc := testAdminService(t, repo)

	job, err := svc.UpdateJob(context.Background(), Actor{UserID: uuid.New()}, jobID, "failed")
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "Manually marked as failed by admin", *job.ErrorMessage)
}

func TestUpdateJobCompletedStampsPrintedAt(t *testing.T) {
	repo := newFakeAdminRepo()
	jobID := uuid.New()
	repo.jobs[jobID] = &models.PrintJob{ID: jobID, Status: enums.JobStatusCancelled}
	svc := testAdminService(t, repo)

	job, err := svc.UpdateJob(context.Background(), Actor{UserID: uuid.New()}, jobID, "completed")
	require.NoError(t, err)
	assert.Equal(t, enums.JobStatusCompleted, job.Status)
	assert.NotNil(t, job.PrintedAt)
	assert.Equal(t, "job.update_status", repo.lastAudit(t).Action)
}

func TestUpdateJobRejectsUnknownStatus(t *testing.T) {
	svc := testAdminService(t, newFakeAdminRepo())

	_, err := svc.UpdateJob(context.Background(), Actor{UserID: uuid.New()}, uuid.New(), "paused")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestBulkJobsRequeueResetsTerminalJobs(t *testing.T) {
	repo := newFakeAdminRepo()
	failedID := uuid.New()
	cancelledID := uuid.New()
	msg := "jam"
	repo.jobs[failedID] = &models.PrintJob{ID: failedID, Status: enums.JobStatusFailed, ErrorMessage: &msg}
	repo.jobs[cancelledID] = &models.PrintJob{ID: cancelledID, Status: enums.JobStatusCancelled}
	svc := testAdminService(t, repo)

	affected, err := svc.BulkJobs(context.Background(), Actor{UserID: uuid.New()},
		[]uuid.UUID{failedID, cancelledID}, BulkRequeue)
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)
	assert.Equal(t, enums.JobStatusPending, repo.jobs[failedID].Status)
	assert.Nil(t, repo.jobs[failedID].ErrorMessage)
	assert.Equal(t, "job.bulk_requeue", repo.lastAudit(t).Action)
}

func TestBulkJobsCancelSkipsTerminalJobs(t *testing.T) {
	repo := newFakeAdminRepo()
	pendingID := uuid.New()
	doneID := uuid.New()
	repo.jobs[pendingID] = &models.PrintJob{ID: pendingID, Status: enums.JobStatusPending}
	repo.jobs[doneID] = &models.PrintJob{ID: doneID, Status: enums.JobStatusCompleted}
	svc := testAdminService(t, repo)

	affected, err := svc.BulkJobs(context.Background(), Actor{UserID: uuid.New()},
		[]uuid.UUID{pendingID, doneID}, BulkCancel)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	assert.Equal(t, enums.JobStatusCancelled, repo.jobs[pendingID].Status)
	assert.Equal(t, enums.JobStatusCompleted, repo.jobs[doneID].Status)
}

func TestBulkJobsUnknownOperation(t *testing.T) {
	repo := newFakeAdminRepo()
	svc := testAdminService(t, repo)

	_, err := svc.BulkJobs(context.Background(), Actor{UserID: uuid.New()},
		[]uuid.UUID{uuid.New()}, BulkOperation("explode"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	assert.Empty(t, repo.audit, "a rejected operation must not be audited")
}

func TestBulkJobsEmptyBatch(t *testing.T) {
	svc := testAdminService(t, newFakeAdminRepo())

	_, err := svc.BulkJobs(context.Background(), Actor{UserID: uuid.New()}, nil, BulkCancel)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
