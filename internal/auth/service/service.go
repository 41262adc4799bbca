package service

import (
	"context"
	"errors"
	"time"

	"estate_crm_backend/internal/auth/password"
	"estate_crm_backend/internal/auth/repository"
	"estate_crm_backend/internal/auth/token"
	"estate_crm_backend/internal/auth/transport"
	"estate_crm_backend/platform/apperr"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"
)

// Store is the slice of the auth repository the service depends on.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	repo Store
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

func New(repo Store, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Login verifies credentials and issues an access token plus a rotating
// refresh token. The failure message never says which part was wrong.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.AuthResponse, string, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.AuthEvent("login", req.Email, false, "unknown email")
			return transport.AuthResponse{}, "", apperr.Unauthorized("invalid credentials")
		}
		return transport.AuthResponse{}, "", apperr.Wrap(apperr.KindInternal, "login", err)
	}

	if err := password.Compare(user.PasswordHash, req.Password); err != nil {
		s.log.AuthEvent("login", req.Email, false, "bad password")
		return transport.AuthResponse{}, "", apperr.Unauthorized("invalid credentials")
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user.ID, user.Role)
	if err != nil {
		return transport.AuthResponse{}, "", apperr.Wrap(apperr.KindInternal, "issue tokens", err)
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.DatabaseError("touch last login", err)
	}

	s.log.AuthEvent("login", req.Email, true, "")
	return transport.AuthResponse{
		AccessToken: accessToken,
		User:        toUserResponse(user),
	}, refreshToken, nil
}

// Refresh rotates the refresh token: the presented token is revoked whether
// or not a new pair is issued.
func (s *Service) Refresh(ctx context.Context, rawToken string) (transport.AuthResponse, string, error) {
	hash := token.HashSHA256(rawToken)
	userID, expiresAt, err := s.repo.GetRefreshToken(ctx, hash)
	if err != nil {
		return transport.AuthResponse{}, "", apperr.Unauthorized("invalid refresh token")
	}

	_ = s.repo.RevokeRefreshToken(ctx, hash)
	if time.Now().After(expiresAt) {
		return transport.AuthResponse{}, "", apperr.Unauthorized("refresh token expired")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return transport.AuthResponse{}, "", apperr.Unauthorized("invalid refresh token")
	}

	accessToken, refreshToken, err := s.issueTokens(ctx, user.ID, user.Role)
	if err != nil {
		return transport.AuthResponse{}, "", apperr.Wrap(apperr.KindInternal, "issue tokens", err)
	}

	return transport.AuthResponse{
		AccessToken: accessToken,
		User:        toUserResponse(user),
	}, refreshToken, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.repo.RevokeRefreshToken(ctx, token.HashSHA256(rawToken))
}

// LogoutAll revokes every refresh token the user holds, ending all of their
// sessions at once.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "revoke refresh tokens", err)
	}
	s.log.AuthEvent("logout_all", userID.String(), true, "")
	return nil
}

// Me returns the account behind an authenticated request.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.UserResponse{}, apperr.NotFound("user not found")
		}
		return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "get user", err)
	}
	return toUserResponse(user), nil
}

func (s *Service) issueTokens(ctx context.Context, userID uuid.UUID, role string) (string, string, error) {
	accessToken, err := s.signJWT(userID, []string{role}, s.cfg.GetAccessTokenTTL(), accessTokenType)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := token.GenerateRandomToken(48)
	if err != nil {
		return "", "", err
	}

	hash := token.HashSHA256(refreshToken)
	expiresAt := time.Now().Add(s.cfg.GetRefreshTokenTTL())
	if err := s.repo.CreateRefreshToken(ctx, userID, hash, expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func (s *Service) signJWT(userID uuid.UUID, roles []string, ttl time.Duration, tokenType string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"type":  tokenType,
		"roles": roles,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}

func toUserResponse(user repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		LastLogin: user.LastLogin,
		CreatedAt: user.CreatedAt,
	}
}
