package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth/entity"
)

type fakeUserStore struct {
	users  map[string]*entity.User // keyed by email
	nextID int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*entity.User{}, nextID: 1}
}

func (s *fakeUserStore) Create(ctx context.Context, u *entity.User) (int64, error) {
	u.ID = s.nextID
	s.nextID++
	u.CreatedAt = time.Now()
	s.users[u.Email] = u
	return u.ID, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (s *fakeUserStore) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	for _, u := range s.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type fakeSessionStore struct {
	sessions []*entity.Session
	nextID   int64
}

func newFakeSessionStore() *fakeSessionStore { return &fakeSessionStore{nextID: 1} }

func (s *fakeSessionStore) Create(ctx context.Context, sess *entity.Session) (int64, error) {
	sess.ID = s.nextID
	s.nextID++
	s.sessions = append(s.sessions, sess)
	return sess.ID, nil
}

func (s *fakeSessionStore) Find(ctx context.Context, userID int64, token string) (*entity.Session, error) {
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Token == token {
			return sess, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *fakeSessionStore) Delete(ctx context.Context, token string) error {
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.Token != token {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	return nil
}

func (s *fakeSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			removed++
			continue
		}
		kept = append(kept, sess)
	}
	s.sessions = kept
	return removed, nil
}

func newTestService() (*Service, *fakeUserStore, *fakeSessionStore) {
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	svc := NewService(nil, users, sessions, nil, []byte("test-secret"))
	return svc, users, sessions
}

func signup(t *testing.T, svc *Service) {
	t.Helper()
	if _, err := svc.Signup(context.Background(), "alice", "alice@example.com", "s3cret", "s3cret"); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
}

func TestSignupPasswordMismatch(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Signup(context.Background(), "alice", "alice@example.com", "s3cret", "other")
	if !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("kind: got %v, want validation", apperror.KindOf(err))
	}
}

func TestSignupDuplicate(t *testing.T) {
	svc, _, _ := newTestService()
	signup(t, svc)

	// same email, different username
	_, err := svc.Signup(context.Background(), "alice2", "alice@example.com", "s3cret", "s3cret")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for duplicate email, got %v", err)
	}

	// same username, different email
	_, err = svc.Signup(context.Background(), "alice", "other@example.com", "s3cret", "s3cret")
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for duplicate username, got %v", err)
	}
}

func TestSignupScrubsHash(t *testing.T) {
	svc, users, _ := newTestService()
	pub, err := svc.Signup(context.Background(), "alice", "alice@example.com", "s3cret", "s3cret")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if pub.Email != "alice@example.com" || pub.Username != "alice" {
		t.Errorf("unexpected projection: %+v", pub)
	}
	stored := users.users["alice@example.com"]
	if stored.PasswordHash == "" || stored.PasswordHash == "s3cret" {
		t.Errorf("password must be stored as a hash, got %q", stored.PasswordHash)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()
	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginBadPassword(t *testing.T) {
	svc, _, _ := newTestService()
	signup(t, svc)
	_, _, err := svc.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("expected ErrBadCredentials, got %v", err)
	}
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	svc, _, sessions := newTestService()
	signup(t, svc)

	start := time.Now()
	token, user, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("user email: got %q", user.Email)
	}

	// the returned token must validate
	userID, err := svc.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate failed for fresh token: %v", err)
	}
	if userID != user.ID {
		t.Errorf("authenticated user id: got %d, want %d", userID, user.ID)
	}

	// session expiry matches the two hour token validity
	if len(sessions.sessions) != 1 {
		t.Fatalf("session rows: got %d, want 1", len(sessions.sessions))
	}
	exp := sessions.sessions[0].ExpiresAt
	if exp.Before(start.Add(TokenTTL-time.Minute)) || exp.After(start.Add(TokenTTL+time.Minute)) {
		t.Errorf("session expiry %v not within 2h of issuance", exp)
	}

	// the embedded claim matches too
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}); err != nil {
		t.Fatalf("token does not parse: %v", err)
	}
	if int64(claims["userId"].(float64)) != user.ID {
		t.Errorf("userId claim: got %v, want %d", claims["userId"], user.ID)
	}
}

func TestMultipleSessionsCoexist(t *testing.T) {
	svc, _, _ := newTestService()
	signup(t, svc)

	svc.now = func() time.Time { return time.Now().Add(-time.Second) }
	first, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	svc.now = time.Now
	second, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	for name, tok := range map[string]string{"first": first, "second": second} {
		if _, err := svc.Authenticate(context.Background(), tok); err != nil {
			t.Errorf("%s token no longer authenticates: %v", name, err)
		}
	}
}

func TestAuthenticateRevokedSession(t *testing.T) {
	svc, _, _ := newTestService()
	signup(t, svc)
	token, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// revoke server-side: the signature is still valid but the session
	// row is gone
	if err := svc.Logout(context.Background(), token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	_, err = svc.Authenticate(context.Background(), token)
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid after revocation, got %v", err)
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	svc, _, _ := newTestService()
	signup(t, svc)
	token, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(TokenTTL + time.Minute) }
	_, err = svc.Authenticate(context.Background(), token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestAuthenticateMissingToken(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Authenticate(context.Background(), "")
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestAuthenticateGarbageToken(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Authenticate(context.Background(), "not.a.jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSweepSessions(t *testing.T) {
	svc, _, sessions := newTestService()
	signup(t, svc)

	// one expired, one live
	svc.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	svc.now = time.Now
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "s3cret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	n, err := svc.SweepSessions(context.Background())
	if err != nil {
		t.Fatalf("SweepSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("swept rows: got %d, want 1", n)
	}
	if len(sessions.sessions) != 1 {
		t.Errorf("remaining rows: got %d, want 1", len(sessions.sessions))
	}
}
