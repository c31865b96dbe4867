package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smart-care/voice-gateway/internal/auth"
	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/repository"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// NormalizePhone canonicalizes a Saudi mobile number to +9665XXXXXXXX form.
// Accepted inputs: 05XXXXXXXX, 5XXXXXXXX, 9665XXXXXXXX, +9665XXXXXXXX, with
// spaces and dashes ignored. Anything else is a validation error.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.TrimPrefix(cleaned, "966")
	cleaned = strings.TrimPrefix(cleaned, "0")

	if len(cleaned) != 9 || !strings.HasPrefix(cleaned, "5") {
		return "", apperrors.NewValidationError("invalid Saudi mobile number", map[string]any{"phone": raw})
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", apperrors.NewValidationError("invalid Saudi mobile number", map[string]any{"phone": raw})
		}
	}
	return "+966" + cleaned, nil
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Community  string
	UnitNumber string
	Password   string
}

// Register creates a new resident account. The phone number is canonicalized
// so that caller-identity resolution matches it later.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, string, time.Time, error) {
	if in.Email == "" || in.Password == "" || in.FirstName == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("first name, email and password are required", nil)
	}

	phone, err := NormalizePhone(in.Phone)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, "", time.Time{}, apperrors.NewValidationError("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNoRows) {
		return nil, "", time.Time{}, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        phone,
		Community:    in.Community,
		UnitNumber:   in.UnitNumber,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}

// Login authenticates a resident.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	return user, token, exp, nil
}
