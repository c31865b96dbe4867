package service

import (
	"context"
	"testing"

	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/repository"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0512345678", "+966512345678", false},
		{"512345678", "+966512345678", false},
		{"966512345678", "+966512345678", false},
		{"+966512345678", "+966512345678", false},
		{"+966 51 234 5678", "+966512345678", false},
		{"051-234-5678", "+966512345678", false},
		{"0612345678", "", true},  // not a mobile prefix
		{"05123", "", true},       // too short
		{"05123456789", "", true}, // too long
		{"+14155550123", "", true},
		{"", "", true},
		{"051234567a", "", true},
	}
	for _, tc := range tests {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newAuthService() (*AuthService, *repository.MemoryUserRepository) {
	users := repository.NewMemoryUserRepository()
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4}
	return NewAuthService(cfg, users), users
}

func validRegistration() RegisterInput {
	return RegisterInput{
		FirstName:  "Sara",
		LastName:   "Alfayez",
		Email:      "sara@example.com",
		Phone:      "0512345678",
		Community:  "Palm Gardens",
		UnitNumber: "14B",
		Password:   "hunter22",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()

	user, token, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if token == "" {
		t.Fatal("no token issued on registration")
	}
	if user.Phone != "+966512345678" {
		t.Errorf("phone not canonicalized: %q", user.Phone)
	}
	if user.PasswordHash == "hunter22" || user.PasswordHash == "" {
		t.Error("password stored unhashed")
	}

	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("claims uid = %q, want %q", claims.UserID, user.ID)
	}

	if _, _, _, err := svc.Login(context.Background(), "sara@example.com", "hunter22"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, _, _, err := svc.Login(context.Background(), "sara@example.com", "wrong"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, _, _, err := svc.Login(context.Background(), "ghost@example.com", "hunter22"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("unknown email: err = %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService()
	if _, _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, _, _, err := svc.Register(context.Background(), validRegistration()); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("duplicate email: err = %v", err)
	}
}

func TestRegisterRejectsBadPhone(t *testing.T) {
	svc, _ := newAuthService()
	in := validRegistration()
	in.Phone = "12345"
	if _, _, _, err := svc.Register(context.Background(), in); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("bad phone: err = %v", err)
	}
}
