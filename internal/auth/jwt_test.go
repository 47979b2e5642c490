package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret []byte, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims() Claims {
	return Claims{
		Name:    "Ada Rider",
		Email:   "ada@example.com",
		Phone:   "+15550100",
		Picture: "https://img.example.com/ada.png",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_123",
			Issuer:    "https://id.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifier_HMAC(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	v := NewHMACVerifier(secret, "https://id.example.com")

	user, err := v.Verify(signHS256(t, secret, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user_123" || user.Email != "ada@example.com" || user.Phone != "+15550100" {
		t.Errorf("unexpected user: %+v", user)
	}
	if user.AvatarURL != "https://img.example.com/ada.png" {
		t.Errorf("expected avatar from picture claim, got %q", user.AvatarURL)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	v := NewHMACVerifier(secret, "https://id.example.com")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.example.com"

	noSubject := validClaims()
	noSubject.Subject = ""

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	testCases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signHS256(t, []byte("other"), validClaims())},
		{"expired", signHS256(t, secret, expired)},
		{"wrong issuer", signHS256(t, secret, wrongIssuer)},
		{"missing subject", signHS256(t, secret, noSubject)},
		{"missing expiry", signHS256(t, secret, noExpiry)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(tc.token); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestVerifier_RSA(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewRSAVerifier(pemBytes, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims()).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	user, err := v.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user_123" {
		t.Errorf("expected user_123, got %s", user.ID)
	}

	// An HMAC token must not be accepted by an RSA verifier.
	if _, err := v.Verify(signHS256(t, []byte("x"), validClaims())); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for HS256 token, got %v", err)
	}
}
