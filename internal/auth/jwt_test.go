package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/config"
	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/pkg/crypto"
)

func testManager() *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := testManager()
	user := &models.User{
		Email: "ops@example.com",
		Role:  models.RoleOperator,
	}
	user.ID = uuid.New()

	access, refresh, err := m.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("user id = %s, want %s", claims.UserID, user.ID)
	}
	if claims.Role != models.RoleOperator {
		t.Errorf("role = %s, want operator", claims.Role)
	}

	userID, err := m.ParseRefreshToken(refresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if userID != user.ID {
		t.Errorf("refresh subject = %s, want %s", userID, user.ID)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	m := testManager()
	user := &models.User{Email: "ops@example.com", Role: models.RoleViewer}
	user.ID = uuid.New()

	access, _, err := m.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewJWTManager(&config.JWTConfig{
		Secret:          "different-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if _, err := other.ValidateToken(access); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestPasswordVerification(t *testing.T) {
	m := testManager()

	hash, err := crypto.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !m.VerifyPassword("hunter22", hash) {
		t.Error("correct password rejected")
	}
	if m.VerifyPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}
