package stations

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
)

type fakeStationsRepo struct {
	stations map[uuid.UUID]*models.PrinterStation
	sessions map[uuid.UUID]*models.StationSession

	deactivatedSessions int
	markedOffline       []uuid.UUID
	pendingJobs         int64
}

func newFakeStationsRepo() *fakeStationsRepo {
	return &fakeStationsRepo{
		stations: map[uuid.UUID]*models.PrinterStation{},
		sessions: map[uuid.UUID]*models.StationSession{},
	}
}

func (f *fakeStationsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeStationsRepo) Create(ctx context.Context, station *models.PrinterStation) error {
	station.ID = uuid.New()
	copied := *station
	f.stations[station.ID] = &copied
	return nil
}

func (f *fakeStationsRepo) Save(ctx context.Context, station *models.PrinterStation) error {
	copied := *station
	f.stations[station.ID] = &copied
	return nil
}

func (f *fakeStationsRepo) GetOwned(ctx context.Context, userID, stationID uuid.UUID) (*models.PrinterStation, error) {
	station, ok := f.stations[stationID]
	if !ok || station.UserID != userID {
		return nil, nil
	}
	copied := *station
	return &copied, nil
}

func (f *fakeStationsRepo) GetByUserAndName(ctx context.Context, userID uuid.UUID, name string) (*models.PrinterStation, error) {
	for _, station := range f.stations {
		if station.UserID == userID && station.Name == name {
			copied := *station
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStationsRepo) ListActive(ctx context.Context, userID uuid.UUID, status *enums.StationStatus) ([]models.PrinterStation, error) {
	var rows []models.PrinterStation
	for _, station := range f.stations {
		if station.UserID != userID || !station.IsActive {
			continue
		}
		if status != nil && station.Status != *status {
			continue
		}
		rows = append(rows, *station)
	}
	return rows, nil
}

func (f *fakeStationsRepo) MarkOffline(ctx context.Context, stationIDs []uuid.UUID) error {
	f.markedOffline = append(f.markedOffline, stationIDs...)
	for _, id := range stationIDs {
		if station, ok := f.stations[id]; ok {
			station.Status = enums.StationStatusOffline
		}
	}
	return nil
}

func (f *fakeStationsRepo) Deactivate(ctx context.Context, stationID uuid.UUID) error {
	if station, ok := f.stations[stationID]; ok {
		station.IsActive = false
		station.Status = enums.StationStatusOffline
	}
	return nil
}

func (f *fakeStationsRepo) OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error) {
	station, ok := f.stations[stationID]
	return ok && station.UserID == userID && station.IsActive, nil
}

func (f *fakeStationsRepo) CountPendingJobs(ctx context.Context, stationID uuid.UUID) (int64, error) {
	return f.pendingJobs, nil
}

func (f *fakeStationsRepo) CreateSession(ctx context.Context, session *models.StationSession) error {
	session.ID = uuid.New()
	copied := *session
	f.sessions[session.ID] = &copied
	return nil
}

func (f *fakeStationsRepo) DeactivateSessions(ctx context.Context, stationID uuid.UUID) (int64, error) {
	var count int64
	for _, session := range f.sessions {
		if session.StationID == stationID && session.IsActive {
			session.IsActive = false
			count++
		}
	}
	f.deactivatedSessions++
	return count, nil
}

func (f *fakeStationsRepo) GetActiveSession(ctx context.Context, stationID uuid.UUID, token string) (*models.StationSession, error) {
	for _, session := range f.sessions {
		if session.StationID == stationID && session.SessionToken == token && session.IsActive {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeStationsRepo) TouchSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	if session, ok := f.sessions[sessionID]; ok {
		session.LastActivity = now
	}
	return nil
}

func (f *fakeStationsRepo) activeSessionToken(stationID uuid.UUID) string {
	for _, session := range f.sessions {
		if session.StationID == stationID && session.IsActive {
			return session.SessionToken
		}
	}
	return ""
}

func testStationsService(t *testing.T, repo Repository, cfg config.StationConfig) Service {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{DSN: "file::memory:?cache=shared"}, true, nil)
	require.NoError(t, err)
	svc, err := NewService(repo, client, cfg)
	require.NoError(t, err)
	return svc
}

func TestRegisterCreatesStationWithSession(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	result, err := svc.Register(context.Background(), RegisterParams{
		UserID:   userID,
		Name:     "  Office Printer  ",
		Location: "floor 2",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "Office Printer", result.Station.Name)
	assert.Equal(t, enums.StationStatusOnline, result.Station.Status)
	assert.True(t, result.Station.IsActive)
	assert.Len(t, result.StationToken, 64)
	assert.Len(t, result.SessionToken, 64)
	assert.Equal(t, result.SessionToken, repo.activeSessionToken(result.Station.ID))
}

func TestRegisterReactivatesExistingRowAndRotatesSession(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	first, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), userID, first.Station.ID))

	second, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Station.ID, second.Station.ID, "reactivation must reuse the existing row")
	assert.Equal(t, first.StationToken, second.StationToken, "station token survives reactivation")
	assert.NotEqual(t, first.SessionToken, second.SessionToken, "session token must rotate")
	assert.True(t, repo.stations[first.Station.ID].IsActive)

	old, err := repo.GetActiveSession(context.Background(), first.Station.ID, first.SessionToken)
	require.NoError(t, err)
	assert.Nil(t, old, "old session must stop authorizing")
}

func TestRegisterRequiresName(t *testing.T) {
	svc := testStationsService(t, newFakeStationsRepo(), config.StationConfig{HeartbeatStaleAfter: time.Minute})

	_, err := svc.Register(context.Background(), RegisterParams{UserID: uuid.New(), Name: "   "})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestHeartbeatRequiresSessionToken(t *testing.T) {
	svc := testStationsService(t, newFakeStationsRepo(), config.StationConfig{HeartbeatStaleAfter: time.Minute})

	_, err := svc.Heartbeat(context.Background(), HeartbeatParams{
		UserID:    uuid.New(),
		StationID: uuid.New(),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestHeartbeatUnknownStation(t *testing.T) {
	svc := testStationsService(t, newFakeStationsRepo(), config.StationConfig{HeartbeatStaleAfter: time.Minute})

	_, err := svc.Heartbeat(context.Background(), HeartbeatParams{
		UserID:       uuid.New(),
		StationID:    uuid.New(),
		SessionToken: "nope",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestHeartbeatStaleSessionUnauthorized(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	_, err = svc.Reconnect(context.Background(), ReconnectParams{UserID: userID, StationID: registered.Station.ID})
	require.NoError(t, err)

	_, err = svc.Heartbeat(context.Background(), HeartbeatParams{
		UserID:       userID,
		StationID:    registered.Station.ID,
		SessionToken: registered.SessionToken,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestHeartbeatUpdatesStatusAndActivity(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	station, err := svc.Heartbeat(context.Background(), HeartbeatParams{
		UserID:       userID,
		StationID:    registered.Station.ID,
		SessionToken: registered.SessionToken,
		Status:       "busy",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.StationStatusBusy, station.Status)
	require.NotNil(t, station.LastHeartbeat)
	assert.WithinDuration(t, time.Now().UTC(), *station.LastHeartbeat, 5*time.Second)
}

func TestHeartbeatRejectsUnknownStatus(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	_, err = svc.Heartbeat(context.Background(), HeartbeatParams{
		UserID:       userID,
		StationID:    registered.Station.ID,
		SessionToken: registered.SessionToken,
		Status:       "sleeping",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestReconnectRotatesSessionForActiveStation(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	result, err := svc.Reconnect(context.Background(), ReconnectParams{
		UserID:    userID,
		StationID: registered.Station.ID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, registered.SessionToken, result.SessionToken)
	assert.Equal(t, enums.StationStatusOnline, result.Station.Status)
	assert.Equal(t, result.SessionToken, repo.activeSessionToken(registered.Station.ID))
}

func TestDeactivateKillsStationAndSessions(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), userID, registered.Station.ID))

	station := repo.stations[registered.Station.ID]
	assert.False(t, station.IsActive)
	assert.Equal(t, enums.StationStatusOffline, station.Status)
	assert.Empty(t, repo.activeSessionToken(registered.Station.ID))

	err = svc.Deactivate(context.Background(), userID, registered.Station.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListFlipsStaleHeartbeatsOffline(t *testing.T) {
	repo := newFakeStationsRepo()
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-10 * time.Minute)
	repo.stations[registered.Station.ID].LastHeartbeat = &stale

	rows, err := svc.List(context.Background(), userID, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.StationStatusOffline, rows[0].Status)
	assert.Contains(t, repo.markedOffline, registered.Station.ID, "staleness must be persisted")
}

func TestStatusReportsPendingJobsAndLiveness(t *testing.T) {
	repo := newFakeStationsRepo()
	repo.pendingJobs = 3
	svc := testStationsService(t, repo, config.StationConfig{HeartbeatStaleAfter: time.Minute})
	userID := uuid.New()

	registered, err := svc.Register(context.Background(), RegisterParams{UserID: userID, Name: "Office Printer"})
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), userID, registered.Station.ID)
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.EqualValues(t, 3, status.PendingJobs)
}
