package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mbdocs-server/core"
)

var testSecret = []byte("test-secret")

func TestCreateAndVerifyToken(t *testing.T) {
	tokens := NewTokenServiceWithSecret(testSecret)

	user := &core.User{ID: "user-1", Name: "Maya", Email: "maya@example.com"}
	token, err := tokens.CreateToken(user)
	if err != nil {
		t.Fatalf("CreateToken() failed: %v", err)
	}

	userID, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("Verify() = %q, want user-1", userID)
	}

	claims, err := tokens.ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims() failed: %v", err)
	}
	if claims.Email != "maya@example.com" {
		t.Errorf("claims.Email = %q, want maya@example.com", claims.Email)
	}
}

func TestVerify_GarbageToken(t *testing.T) {
	tokens := NewTokenServiceWithSecret(testSecret)

	if _, err := tokens.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(garbage) = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewTokenServiceWithSecret([]byte("other-secret"))
	verifier := NewTokenServiceWithSecret(testSecret)

	token, err := issuer.CreateToken(&core.User{ID: "user-1"})
	if err != nil {
		t.Fatalf("CreateToken() failed: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(wrong secret) = %v, want ErrInvalidToken", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	tokens := NewTokenServiceWithSecret(testSecret)

	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	if _, err := tokens.Verify(expired); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Verify(expired) = %v, want ErrTokenExpired", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	tokens := NewTokenServiceWithSecret(testSecret)

	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := tokens.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(no subject) = %v, want ErrInvalidToken", err)
	}
}

func TestCreateResetToken_Expiry(t *testing.T) {
	tokens := NewTokenServiceWithSecret(testSecret)

	token, err := tokens.CreateResetToken("user-1")
	if err != nil {
		t.Fatalf("CreateResetToken() failed: %v", err)
	}

	claims, err := tokens.ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims() failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl > 10*time.Minute || ttl < 9*time.Minute {
		t.Errorf("reset token lifetime = %v, want about 10 minutes", ttl)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if !CheckPassword(hash, "s3cret") {
		t.Error("CheckPassword() rejected the correct password")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("CheckPassword() accepted a wrong password")
	}
}
