package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/printbridge/backend/api/middleware"
	"github.com/printbridge/backend/internal/admin"
	"github.com/printbridge/backend/pkg/db/models"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/pagination"
)

type testAdminService struct {
	dashboardFn     func(ctx context.Context) (*admin.DashboardCounts, error)
	listUsersFn     func(ctx context.Context, page pagination.Page) (*admin.UserListResult, error)
	toggleUserFn    func(ctx context.Context, actor admin.Actor, userID uuid.UUID) (*models.User, error)
	deleteUserFn    func(ctx context.Context, actor admin.Actor, userID uuid.UUID) error
	listFilesFn     func(ctx context.Context, page pagination.Page) (*admin.FileListResult, error)
	listJobsFn      func(ctx context.Context, params admin.JobListParams) (*admin.JobListResult, error)
	updateJobFn     func(ctx context.Context, actor admin.Actor, jobID uuid.UUID, status string) (*models.PrintJob, error)
	deleteJobFn     func(ctx context.Context, actor admin.Actor, jobID uuid.UUID) error
	bulkJobsFn      func(ctx context.Context, actor admin.Actor, jobIDs []uuid.UUID, op admin.BulkOperation) (int64, error)
	listStationsFn  func(ctx context.Context) ([]admin.StationRow, error)
	updateStationFn func(ctx context.Context, actor admin.Actor, stationID uuid.UUID, params admin.StationUpdateParams) (*models.PrinterStation, error)
	listAuditFn     func(ctx context.Context, page pagination.Page) (*admin.AuditListResult, error)
}

func (s *testAdminService) Dashboard(ctx context.Context) (*admin.DashboardCounts, error) {
	if s.dashboardFn != nil {
		return s.dashboardFn(ctx)
	}
	return nil, nil
}

func (s *testAdminService) ListUsers(ctx context.Context, page pagination.Page) (*admin.UserListResult, error) {
	if s.listUsersFn != nil {
		return s.listUsersFn(ctx, page)
	}
	return nil, nil
}

func (s *testAdminService) ToggleUserActive(ctx context.Context, actor admin.Actor, userID uuid.UUID) (*models.User, error) {
	if s.toggleUserFn != nil {
		return s.toggleUserFn(ctx, actor, userID)
	}
	return nil, nil
}

func (s *testAdminService) DeleteUser(ctx context.Context, actor admin.Actor, userID uuid.UUID) error {
	if s.deleteUserFn != nil {
		return s.deleteUserFn(ctx, actor, userID)
	}
	return nil
}

func (s *testAdminService) ListFiles(ctx context.Context, page pagination.Page) (*admin.FileListResult, error) {
	if s.listFilesFn != nil {
		return s.listFilesFn(ctx, page)
	}
	return nil, nil
}

func (s *testAdminService) ListJobs(ctx context.Context, params admin.JobListParams) (*admin.JobListResult, error) {
	if s.listJobsFn != nil {
		return s.listJobsFn(ctx, params)
	}
	return nil, nil
}

func (s *testAdminService) UpdateJob(ctx context.Context, actor admin.Actor, jobID uuid.UUID, status string) (*models.PrintJob, error) {
	if s.updateJobFn != nil {
		return s.updateJobFn(ctx, actor, jobID, status)
	}
	return nil, nil
}

func (s *testAdminService) DeleteJob(ctx context.Context, actor admin.Actor, jobID uuid.UUID) error {
	if s.deleteJobFn != nil {
		return s.deleteJobFn(ctx, actor, jobID)
	}
	return nil
}

func (s *testAdminService) BulkJobs(ctx context.Context, actor admin.Actor, jobIDs []uuid.UUID, op admin.BulkOperation) (int64, error) {
	if s.bulkJobsFn != nil {
		return s.bulkJobsFn(ctx, actor, jobIDs, op)
	}
	return 0, nil
}

func (s *testAdminService) ListStations(ctx context.Context) ([]admin.StationRow, error) {
	if s.listStationsFn != nil {
		return s.listStationsFn(ctx)
	}
	return nil, nil
}

func (s *testAdminService) UpdateStation(ctx context.Context, actor admin.Actor, stationID uuid.UUID, params admin.StationUpdateParams) (*models.PrinterStation, error) {
	if s.updateStationFn != nil {
		return s.updateStationFn(ctx, actor, stationID, params)
	}
	return nil, nil
}

func (s *testAdminService) ListAudit(ctx context.Context, page pagination.Page) (*admin.AuditListResult, error) {
	if s.listAuditFn != nil {
		return s.listAuditFn(ctx, page)
	}
	return nil, nil
}

func TestAdminCheckEchoesContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/check", nil)
	ctx := middleware.WithUsername(req.Context(), "boss")
	ctx = middleware.WithIsAdmin(ctx, true)
	req = req.WithContext(ctx)
	resp := httptest.NewRecorder()
	AdminCheck(testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var data struct {
		IsAdmin  bool   `json:"is_admin"`
		Username string `json:"username"`
	}
	decodeData(t, resp.Body.Bytes(), &data)
	if !data.IsAdmin || data.Username != "boss" {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestAdminToggleUserSelfGuard(t *testing.T) {
	adminID := uuid.New()
	svc := &testAdminService{
		toggleUserFn: func(ctx context.Context, actor admin.Actor, userID uuid.UUID) (*models.User, error) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot modify your own account")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/"+adminID.String()+"/toggle-active", nil)
	req = asUser(req, adminID)
	req = addRouteParam(req, "id", adminID.String())
	resp := httptest.NewRecorder()
	AdminToggleUser(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if code := errorCode(t, resp.Body.Bytes()); code != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN got %s", code)
	}
}

func TestAdminDeleteUserBuildsActor(t *testing.T) {
	adminID := uuid.New()
	targetID := uuid.New()
	svc := &testAdminService{
		deleteUserFn: func(ctx context.Context, actor admin.Actor, userID uuid.UUID) error {
			if actor.UserID != adminID {
				t.Fatalf("unexpected actor %s", actor.UserID)
			}
			if actor.IPAddress != "203.0.113.9" {
				t.Fatalf("unexpected ip %q", actor.IPAddress)
			}
			if userID != targetID {
				t.Fatalf("unexpected target %s", userID)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/"+targetID.String(), nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req = asUser(req, adminID)
	req = addRouteParam(req, "id", targetID.String())
	resp := httptest.NewRecorder()
	AdminDeleteUser(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminListJobsParsesFilters(t *testing.T) {
	userID := uuid.New()
	stationID := uuid.New()
	svc := &testAdminService{
		listJobsFn: func(ctx context.Context, params admin.JobListParams) (*admin.JobListResult, error) {
			if params.UserID == nil || *params.UserID != userID {
				t.Fatalf("unexpected user filter %v", params.UserID)
			}
			if params.StationID == nil || *params.StationID != stationID {
				t.Fatalf("unexpected station filter %v", params.StationID)
			}
			if params.Status == nil || *params.Status != enums.JobStatusFailed {
				t.Fatalf("unexpected status filter %v", params.Status)
			}
			if params.SortBy != "printed_at" || params.SortDesc {
				t.Fatalf("unexpected sort %q desc=%v", params.SortBy, params.SortDesc)
			}
			if params.Window.Limit != 10 || params.Window.Offset != 20 {
				t.Fatalf("unexpected window %+v", params.Window)
			}
			return &admin.JobListResult{}, nil
		},
	}

	url := "/api/v1/admin/print-jobs?user_id=" + userID.String() +
		"&station_id=" + stationID.String() +
		"&status=failed&sort_by=printed_at&sort_order=asc&limit=10&skip=20"
	req := asUser(httptest.NewRequest(http.MethodGet, url, nil), uuid.New())
	resp := httptest.NewRecorder()
	AdminListJobs(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminBulkJobsRejectsUnknownOperation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/print-jobs/bulk",
		strings.NewReader(`{"job_ids":["`+uuid.NewString()+`"],"operation":"explode"}`))
	req = asUser(req, uuid.New())
	resp := httptest.NewRecorder()
	AdminBulkJobs(&testAdminService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminBulkJobsRequeue(t *testing.T) {
	jobID := uuid.New()
	svc := &testAdminService{
		bulkJobsFn: func(ctx context.Context, actor admin.Actor, jobIDs []uuid.UUID, op admin.BulkOperation) (int64, error) {
			if op != admin.BulkRequeue {
				t.Fatalf("unexpected operation %q", op)
			}
			if len(jobIDs) != 1 || jobIDs[0] != jobID {
				t.Fatalf("unexpected ids %v", jobIDs)
			}
			return 1, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/print-jobs/bulk",
		strings.NewReader(`{"job_ids":["`+jobID.String()+`"],"operation":"requeue"}`))
	req = asUser(req, uuid.New())
	resp := httptest.NewRecorder()
	AdminBulkJobs(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var data struct {
		Operation string `json:"operation"`
		Affected  int64  `json:"affected"`
	}
	decodeData(t, resp.Body.Bytes(), &data)
	if data.Operation != "requeue" || data.Affected != 1 {
		t.Fatalf("unexpected payload %+v", data)
	}
}

func TestAdminUpdateStationPartialBody(t *testing.T) {
	stationID := uuid.New()
	svc := &testAdminService{
		updateStationFn: func(ctx context.Context, actor admin.Actor, sid uuid.UUID, params admin.StationUpdateParams) (*models.PrinterStation, error) {
			if params.Status == nil || *params.Status != "offline" {
				t.Fatalf("unexpected status %v", params.Status)
			}
			if params.IsActive != nil {
				t.Fatal("is_active should stay nil when absent")
			}
			return &models.PrinterStation{ID: sid}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/stations/"+stationID.String(),
		strings.NewReader(`{"status":"offline"}`))
	req = asUser(req, uuid.New())
	req = addRouteParam(req, "id", stationID.String())
	resp := httptest.NewRecorder()
	AdminUpdateStation(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
