package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "correct horse battery") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}

func TestAccessTokenCarriesIdentityClaims(t *testing.T) {
	tok, err := NewAccessToken("test-secret", 42, "MEMBER", 15)
	if err != nil {
		t.Fatalf("new access token: %v", err)
	}
	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims type %T", parsed.Claims)
	}
	if claims["sub"] != float64(42) {
		t.Errorf("sub = %v", claims["sub"])
	}
	if claims["role"] != "MEMBER" {
		t.Errorf("role = %v", claims["role"])
	}
}

func TestRefreshTokenHashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("new refresh token: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw token length %d, want 96 hex chars", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) != HashRefreshRaw(rt.Raw) {
		t.Error("hashing the same raw token twice differed")
	}
	if HashRefreshRaw(rt.Raw) == HashRefreshRaw(rt.Raw+"x") {
		t.Error("distinct raw tokens produced the same hash")
	}
}
