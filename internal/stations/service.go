package stations

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printbridge/backend/pkg/config"
	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	dbtypes "github.com/printbridge/backend/pkg/db/types"
	"github.com/printbridge/backend/pkg/enums"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
)

// Service defines station lifecycle and liveness operations.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*RegisterResult, error)
	Heartbeat(ctx context.Context, params HeartbeatParams) (*models.PrinterStation, error)
	Reconnect(ctx context.Context, params ReconnectParams) (*ReconnectResult, error)
	Deactivate(ctx context.Context, userID, stationID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, statusFilter string) ([]models.PrinterStation, error)
	Status(ctx context.Context, userID, stationID uuid.UUID) (*StatusResult, error)
	OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error)
}

// RegisterParams captures a station registration or reactivation request.
type RegisterParams struct {
	UserID       uuid.UUID
	Name         string
	Location     string
	Capabilities map[string]any
	IPAddress    string
	UserAgent    string
}

// RegisterResult returns the station plus both credential tiers.
type RegisterResult struct {
	Station      *models.PrinterStation `json:"station"`
	StationToken string                 `json:"station_token"`
	SessionToken string                 `json:"session_token"`
	Created      bool                   `json:"-"`
}

// HeartbeatParams authenticates and applies one liveness report.
type HeartbeatParams struct {
	UserID       uuid.UUID
	StationID    uuid.UUID
	SessionToken string
	Status       string
}

// ReconnectParams requests a session rotation for a station agent.
type ReconnectParams struct {
	UserID       uuid.UUID
	StationID    uuid.UUID
	SessionToken string
	IPAddress    string
	UserAgent    string
}

// ReconnectResult returns the rotated session.
type ReconnectResult struct {
	Station      *models.PrinterStation `json:"station"`
	SessionToken string                 `json:"session_token"`
}

// StatusResult is the single-station liveness view.
type StatusResult struct {
	Station     *models.PrinterStation `json:"station"`
	PendingJobs int64                  `json:"pending_jobs"`
	IsOnline    bool                   `json:"is_online"`
}

type service struct {
	repo   Repository
	client *db.Client
	cfg    config.StationConfig
}

// NewService wires station dependencies.
func NewService(repo Repository, client *db.Client, cfg config.StationConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stations repository required")
	}
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db client required")
	}
	if cfg.HeartbeatStaleAfter <= 0 {
		cfg.HeartbeatStaleAfter = 60 * time.Second
	}
	return &service{repo: repo, client: client, cfg: cfg}, nil
}

// Register creates a station or reactivates the existing (user, name) row in
// place. Either path rotates the session credentials: every prior session is
// deactivated in the same transaction that inserts the new one.
func (s *service) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	name := strings.TrimSpace(params.Name)
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "station_name is required")
	}

	now := time.Now().UTC()
	var result *RegisterResult

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		station, err := repo.GetByUserAndName(ctx, params.UserID, name)
		if err != nil {
			return err
		}

		created := false
		if station == nil {
			token, err := generateToken()
			if err != nil {
				return err
			}
			station = &models.PrinterStation{
				UserID:        params.UserID,
				Name:          name,
				Location:      strings.TrimSpace(params.Location),
				StationToken:  token,
				Status:        enums.StationStatusOnline,
				Capabilities:  capabilitiesOrEmpty(params.Capabilities),
				IsActive:      true,
				LastHeartbeat: &now,
			}
			if err := repo.Create(ctx, station); err != nil {
				return err
			}
			created = true
		} else {
			station.IsActive = true
			station.Status = enums.StationStatusOnline
			station.LastHeartbeat = &now
			if loc := strings.TrimSpace(params.Location); loc != "" {
				station.Location = loc
			}
			if params.Capabilities != nil {
				station.Capabilities = capabilitiesOrEmpty(params.Capabilities)
			}
			if err := repo.Save(ctx, station); err != nil {
				return err
			}
		}

		sessionToken, err := s.rotateSession(ctx, repo, station.ID, params.IPAddress, params.UserAgent, now)
		if err != nil {
			return err
		}

		result = &RegisterResult{
			Station:      station,
			StationToken: station.StationToken,
			SessionToken: sessionToken,
			Created:      created,
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register station")
	}
	return result, nil
}

func (s *service) Heartbeat(ctx context.Context, params HeartbeatParams) (*models.PrinterStation, error) {
	if params.SessionToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session_token is required")
	}

	station, err := s.repo.GetOwned(ctx, params.UserID, params.StationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station")
	}
	if station == nil || !station.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	session, err := s.repo.GetActiveSession(ctx, station.ID, params.SessionToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session")
	}

	status := enums.StationStatusOnline
	if params.Status != "" {
		parsed, err := enums.ParseStationStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be online, offline or busy")
		}
		status = parsed
	}

	now := time.Now().UTC()
	station.Status = status
	station.LastHeartbeat = &now
	if err := s.repo.Save(ctx, station); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save heartbeat")
	}
	if err := s.repo.TouchSession(ctx, session.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch session")
	}
	return station, nil
}

// Reconnect rotates the session for an agent that lost its credentials. It is
// idempotent: a stale or missing old token still yields a fresh session.
func (s *service) Reconnect(ctx context.Context, params ReconnectParams) (*ReconnectResult, error) {
	station, err := s.repo.GetOwned(ctx, params.UserID, params.StationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station")
	}
	if station == nil || !station.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	now := time.Now().UTC()
	var sessionToken string
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		token, err := s.rotateSession(ctx, repo, station.ID, params.IPAddress, params.UserAgent, now)
		if err != nil {
			return err
		}
		sessionToken = token

		station.Status = enums.StationStatusOnline
		station.LastHeartbeat = &now
		return repo.Save(ctx, station)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconnect station")
	}

	return &ReconnectResult{Station: station, SessionToken: sessionToken}, nil
}

// Deactivate soft-deletes the station and kills its sessions. Pending jobs
// addressed to the station are left untouched for later admin recovery.
func (s *service) Deactivate(ctx context.Context, userID, stationID uuid.UUID) error {
	station, err := s.repo.GetOwned(ctx, userID, stationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station")
	}
	if station == nil || !station.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Deactivate(ctx, station.ID); err != nil {
			return err
		}
		_, err := repo.DeactivateSessions(ctx, station.ID)
		return err
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate station")
	}
	return nil
}

// List returns the caller's active stations, persisting offline status for any
// station whose heartbeat went stale.
func (s *service) List(ctx context.Context, userID uuid.UUID, statusFilter string) ([]models.PrinterStation, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var status *enums.StationStatus
	if statusFilter != "" {
		parsed, err := enums.ParseStationStatus(statusFilter)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be online, offline or busy")
		}
		status = &parsed
	}

	rows, err := s.repo.ListActive(ctx, userID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stations")
	}

	if err := s.applyStaleness(ctx, rows); err != nil {
		return nil, err
	}

	if status == nil {
		return rows, nil
	}
	filtered := rows[:0]
	for _, station := range rows {
		if station.Status == *status {
			filtered = append(filtered, station)
		}
	}
	return filtered, nil
}

func (s *service) Status(ctx context.Context, userID, stationID uuid.UUID) (*StatusResult, error) {
	station, err := s.repo.GetOwned(ctx, userID, stationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load station")
	}
	if station == nil || !station.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "station not found")
	}

	rows := []models.PrinterStation{*station}
	if err := s.applyStaleness(ctx, rows); err != nil {
		return nil, err
	}
	*station = rows[0]

	pending, err := s.repo.CountPendingJobs(ctx, station.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending jobs")
	}

	return &StatusResult{
		Station:     station,
		PendingJobs: pending,
		IsOnline:    station.Status == enums.StationStatusOnline || station.Status == enums.StationStatusBusy,
	}, nil
}

func (s *service) OwnsActiveStation(ctx context.Context, userID, stationID uuid.UUID) (bool, error) {
	return s.repo.OwnsActiveStation(ctx, userID, stationID)
}

// applyStaleness flips stations with stale heartbeats to offline, both in the
// slice and in storage.
func (s *service) applyStaleness(ctx context.Context, rows []models.PrinterStation) error {
	cutoff := time.Now().UTC().Add(-s.cfg.HeartbeatStaleAfter)

	var stale []uuid.UUID
	for i := range rows {
		if rows[i].Status == enums.StationStatusOffline {
			continue
		}
		if rows[i].LastHeartbeat == nil || rows[i].LastHeartbeat.Before(cutoff) {
			rows[i].Status = enums.StationStatusOffline
			stale = append(stale, rows[i].ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.repo.MarkOffline(ctx, stale); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist offline status")
	}
	return nil
}

func (s *service) rotateSession(ctx context.Context, repo Repository, stationID uuid.UUID, ip, userAgent string, now time.Time) (string, error) {
	if _, err := repo.DeactivateSessions(ctx, stationID); err != nil {
		return "", err
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}
	session := &models.StationSession{
		StationID:    stationID,
		SessionToken: token,
		StartedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	if ip != "" {
		session.IPAddress = &ip
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		return "", err
	}
	return token, nil
}

func capabilitiesOrEmpty(caps map[string]any) dbtypes.JSONMap {
	if caps == nil {
		return dbtypes.JSONMap{}
	}
	return dbtypes.JSONMap(caps)
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
