package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth/entity"
	authrepo "github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth/repo"
)

// TokenTTL is the validity window of an issued token and its session row.
const TokenTTL = 2 * time.Hour

var (
	ErrPasswordMismatch = apperror.New(apperror.KindValidation, "passwords do not match")
	ErrUserExists       = apperror.New(apperror.KindConflict, "user with this email or username already exists")
	ErrUserNotFound     = apperror.New(apperror.KindNotFound, "user not found")
	ErrBadCredentials   = apperror.New(apperror.KindAuth, "invalid credentials")
	ErrNoToken          = apperror.New(apperror.KindAuth, "no token provided")
	ErrInvalidToken     = apperror.New(apperror.KindAuth, "invalid or expired token")
	ErrSessionInvalid   = apperror.New(apperror.KindAuth, "session expired or invalid")
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// UserStore is the user persistence surface the service needs.
type UserStore interface {
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

// SessionStore is the session persistence surface the service needs.
type SessionStore interface {
	Create(ctx context.Context, s *entity.Session) (int64, error)
	Find(ctx context.Context, userID int64, token string) (*entity.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service issues and validates tokens and gates protected operations.
// A token is double-checked on every request: once cryptographically
// (signature plus embedded expiry) and once against the sessions table,
// so deleting a session row revokes the token immediately.
type Service struct {
	users    UserStore
	sessions SessionStore
	hasher   PasswordHasher
	secret   []byte

	now func() time.Time
}

// NewService wires a Service. Pass nil stores/hasher to use the sqlx
// repositories and bcrypt defaults.
func NewService(db *sqlx.DB, users UserStore, sessions SessionStore, hasher PasswordHasher, secret []byte) *Service {
	if users == nil {
		users = authrepo.NewUserRepo(db)
	}
	if sessions == nil {
		sessions = authrepo.NewSessionRepo(db)
	}
	if hasher == nil {
		hasher = BcryptHasher{Cost: 10}
	}
	return &Service{users: users, sessions: sessions, hasher: hasher, secret: secret, now: time.Now}
}

// Signup registers a new user. The plaintext password is hashed before
// storage and never logged or returned.
func (s *Service) Signup(ctx context.Context, username, email, password, confirmPassword string) (*entity.PublicUser, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, apperror.New(apperror.KindValidation, "username, email and password are required")
	}
	if password != confirmPassword {
		return nil, ErrPasswordMismatch
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "check existing user", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "hash password", err)
	}
	u := &entity.User{Username: username, Email: email, PasswordHash: hash}
	if _, err := s.users.Create(ctx, u); err != nil {
		return nil, apperror.Wrap(apperror.KindStore, "create user", err)
	}
	return u.Public(), nil
}

// Login verifies credentials, signs a token embedding the user id with a
// two hour validity, and records a session row with the same expiry.
// Each login creates its own session; earlier sessions stay valid.
func (s *Service) Login(ctx context.Context, email, password string) (string, *entity.PublicUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, apperror.Wrap(apperror.KindStore, "lookup user", err)
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return "", nil, ErrBadCredentials
	}

	now := s.now()
	expiresAt := now.Add(TokenTTL)
	claims := jwt.MapClaims{
		"userId": u.ID,
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, apperror.Wrap(apperror.KindStore, "sign token", err)
	}

	sess := &entity.Session{UserID: u.ID, Token: token, ExpiresAt: expiresAt}
	if _, err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, apperror.Wrap(apperror.KindStore, "create session", err)
	}
	return token, u.Public(), nil
}

// Authenticate validates a bearer token and returns the user id it was
// issued for. The token must carry a valid signature and expiry AND have
// a live session row; either check failing rejects the request.
func (s *Service) Authenticate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrNoToken
	}
	userID, err := s.parseToken(token)
	if err != nil {
		return 0, ErrInvalidToken
	}

	sess, err := s.sessions.Find(ctx, userID, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSessionInvalid
		}
		return 0, apperror.Wrap(apperror.KindStore, "lookup session", err)
	}
	if s.now().After(sess.ExpiresAt) {
		return 0, ErrSessionInvalid
	}
	return userID, nil
}

// Logout revokes the session for a token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return apperror.Wrap(apperror.KindStore, "delete session", err)
	}
	return nil
}

// SweepSessions deletes expired session rows and returns how many were
// removed.
func (s *Service) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperror.Wrap(apperror.KindStore, "sweep sessions", err)
	}
	return n, nil
}

func (s *Service) parseToken(token string) (int64, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, fmt.Errorf("token not valid")
	}
	raw, ok := claims["userId"].(float64)
	if !ok {
		return 0, fmt.Errorf("userId claim missing")
	}
	return int64(raw), nil
}
