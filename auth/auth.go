package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"mbdocs-server/core"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim
	// validation for any reason other than expiry.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
)

// AppClaims is the JWT payload issued at login and verified on every
// document-creation path.
type AppClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Verifier turns a bearer credential into a user identity. Stateless; the
// realtime layer consumes it once per document-creation path.
type Verifier interface {
	Verify(token string) (userID string, err error)
}

// TokenService issues and verifies HS256 tokens with a shared secret.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

const (
	defaultTokenLifetime = 7 * 24 * time.Hour
	resetTokenLifetime   = 10 * time.Minute
)

func NewTokenService() *TokenService {
	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	return &TokenService{secret: secret, lifetime: defaultTokenLifetime}
}

// NewTokenServiceWithSecret is used by tests and embedded setups.
func NewTokenServiceWithSecret(secret []byte) *TokenService {
	return &TokenService{secret: secret, lifetime: defaultTokenLifetime}
}

// CreateToken issues a login token for the user.
func (s *TokenService) CreateToken(user *core.User) (string, error) {
	return s.create(user.ID, user.Name, user.Email, s.lifetime)
}

// CreateResetToken issues a short-lived token for the password reset flow.
func (s *TokenService) CreateResetToken(userID string) (string, error) {
	return s.create(userID, "", "", resetTokenLifetime)
}

func (s *TokenService) create(subject, name, email string, lifetime time.Duration) (string, error) {
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:  name,
		Email: email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses and validates a token, returning the user id it was issued
// for. Failures map onto ErrTokenExpired and ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims, err := s.ParseClaims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ParseClaims validates a token and returns its full claim set.
func (s *TokenService) ParseClaims(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
