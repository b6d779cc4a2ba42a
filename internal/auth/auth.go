// Package auth handles password hashing, JWT issuing/verification and
// request identity for the HTTP API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nvoronin/periscope/internal/models"
)

// UserStore is the subset of the persistence layer auth needs.
type UserStore interface {
	CreateUser(ctx context.Context, id, email, passwordHash string, name *string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, string, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

var (
	// ErrInvalidCredentials covers both unknown email and wrong password,
	// deliberately indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken indicates a missing, malformed or expired token.
	ErrInvalidToken = errors.New("invalid token")
)

// Service issues and verifies session tokens backed by the user store.
type Service struct {
	store  UserStore
	secret []byte
	expiry time.Duration
}

// NewService creates the auth service. expiry bounds token lifetime.
func NewService(store UserStore, secret string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &Service{store: store, secret: []byte(secret), expiry: expiry}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a session token for the user.
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.expiry)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// VerifyToken parses a session token and returns the user id it names.
func (s *Service) VerifyToken(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// Register creates a user and returns them with a fresh token. A taken
// email surfaces as the store's already-exists error.
func (s *Service) Register(ctx context.Context, id, email, password string, name *string) (*models.User, string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, id, email, hash, name)
	if err != nil {
		return nil, "", err
	}

	token, _, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, hash, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !CheckPassword(hash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, _, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Resolve verifies a token and loads the user it names.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (*models.User, error) {
	userID, err := s.VerifyToken(tokenStr)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return user, nil
}
