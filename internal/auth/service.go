package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/inaiurai/whitelist/internal/errs"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

const minPasswordLen = 8

// Overridable in tests.
var (
	now        = time.Now
	bcryptCost = bcrypt.DefaultCost
)

type Account struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists accounts. GetByEmail returns (nil, "", nil) when no account matches.
type Store interface {
	Create(ctx context.Context, email, passwordHash, displayName string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, string, error)
}

type Config struct {
	Secret   string
	TokenTTL time.Duration
}

type Service interface {
	Register(ctx context.Context, email, password, displayName string) (*Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

type service struct {
	store  Store
	secret []byte
	ttl    time.Duration
}

func NewService(store Store, cfg Config) Service {
	if cfg.Secret == "" {
		cfg.Secret = "supersecretmvp"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &service{store: store, secret: []byte(cfg.Secret), ttl: cfg.TokenTTL}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, email, password, displayName string) (*Account, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, errs.Invalid("email", "is not a valid address")
	}
	if len(password) < minPasswordLen {
		return nil, errs.Invalid("password", "must be at least %d characters", minPasswordLen)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, errs.Invalid("display_name", "is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}
	return s.store.Create(ctx, email, string(hash), displayName)
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, hash, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.ID)
}

func (s *service) issueToken(accountID uuid.UUID) (string, error) {
	issued := now()
	c := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(issued),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, error) {
	c := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(now))
	if err != nil || !tok.Valid {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
