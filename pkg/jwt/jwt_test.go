package jwt

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"academic-info/config"
)

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL: 2 * time.Hour,
	})
}

func TestGenerateAndParseToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	claims, err := m.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 失败: %v", err)
	}

	if claims.Username != "admin" {
		t.Errorf("期望 Username=admin，实际=%s", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("期望 Role=admin，实际=%s", claims.Role)
	}
	if claims.Issuer != "academic-info" {
		t.Errorf("期望 Issuer=academic-info，实际=%s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("JTI 不应为空")
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < 119*time.Minute || ttl > 121*time.Minute {
		t.Errorf("Token TTL 期望约 2h，实际=%v", ttl)
	}
}

func TestParseToken_Expired(t *testing.T) {
	m := newTestManager()
	m.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	token, err := m.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	m.now = time.Now
	if _, err := m.ParseToken(token); err != ErrTokenExpired {
		t.Errorf("期望 ErrTokenExpired，实际=%v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	m := newTestManager()
	token, _ := m.GenerateToken("admin", "admin")

	other := NewManager(&config.AuthConfig{
		JWTSecret:      "another-secret-key-for-testing",
		AccessTokenTTL: time.Hour,
	})
	if _, err := other.ParseToken(token); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际=%v", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	m := newTestManager()
	for _, s := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := m.ParseToken(s); err != ErrTokenInvalid {
			t.Errorf("输入 %q 期望 ErrTokenInvalid，实际=%v", s, err)
		}
	}
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager()
	claims := Claims{
		Username: "admin",
		Role:     "admin",
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    "academic-info",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, claims).SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("构造 none Token 失败: %v", err)
	}
	if _, err := m.ParseToken(unsigned); err != ErrTokenInvalid {
		t.Errorf("期望 ErrTokenInvalid，实际=%v", err)
	}
}
