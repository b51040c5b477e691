package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printbridge/backend/internal/users"
	pkgAuth "github.com/printbridge/backend/pkg/auth"
	"github.com/printbridge/backend/pkg/config"
	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/db/models"
	pkgerrors "github.com/printbridge/backend/pkg/errors"
	"github.com/printbridge/backend/pkg/security"
)

// Service defines account and token operations.
type Service interface {
	Register(ctx context.Context, params RegisterParams) (*TokenResult, error)
	Login(ctx context.Context, params LoginParams) (*TokenResult, error)
	Profile(ctx context.Context, userID uuid.UUID) (*ProfileResult, error)
	Refresh(ctx context.Context, userID uuid.UUID) (*TokenResult, error)
	IsActiveUser(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RegisterParams captures a signup request.
type RegisterParams struct {
	Username string
	Password string
}

// LoginParams captures a credential check.
type LoginParams struct {
	Username string
	Password string
}

// TokenResult wraps an issued bearer token.
type TokenResult struct {
	Token    string    `json:"token"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
}

// ProfileResult is the authenticated identity view.
type ProfileResult struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type service struct {
	repo        users.Repository
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewService wires auth dependencies.
func NewService(repo users.Repository, jwtCfg config.JWTConfig, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo, jwtCfg: jwtCfg, passwordCfg: passwordCfg}, nil
}

func (s *service) Register(ctx context.Context, params RegisterParams) (*TokenResult, error) {
	username := strings.TrimSpace(params.Username)
	if len(username) < 3 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username must be at least 3 characters")
	}
	if len(params.Password) < 6 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 6 characters")
	}

	hash, err := security.HashPassword(params.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "username already taken")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	return s.mint(user)
}

func (s *service) Login(ctx context.Context, params LoginParams) (*TokenResult, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" || params.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password are required")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(params.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	return s.mint(user)
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*ProfileResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing subject")
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return &ProfileResult{
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (s *service) Refresh(ctx context.Context, userID uuid.UUID) (*TokenResult, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account unavailable")
	}
	return s.mint(user)
}

func (s *service) IsActiveUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.IsActiveUser(ctx, userID)
}

func (s *service) mint(user *models.User) (*TokenResult, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgAuth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}
	return &TokenResult{
		Token:    token,
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, nil
}
