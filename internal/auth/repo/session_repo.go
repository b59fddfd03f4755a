package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-taskboard-go/internal/auth/entity"
)

// SessionRepo persists issued tokens so they can be revoked server-side.
type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo { return &SessionRepo{db: db} }

// EnsureTable creates the sessions table if not exists (idempotent).
func (r *SessionRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  token TEXT NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_token ON sessions(user_id, token);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create records a session for an issued token. One row per login;
// multiple live sessions per user may coexist.
func (r *SessionRepo) Create(ctx context.Context, s *entity.Session) (int64, error) {
	const q = `INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3) RETURNING id`
	row := r.db.QueryRowxContext(ctx, q, s.UserID, s.Token, s.ExpiresAt)
	if err := row.Scan(&s.ID); err != nil {
		return 0, err
	}
	return s.ID, nil
}

// Find returns the session matching (userID, token) or sql.ErrNoRows.
func (r *SessionRepo) Find(ctx context.Context, userID int64, token string) (*entity.Session, error) {
	const q = `SELECT id, user_id, token, expires_at FROM sessions WHERE user_id=$1 AND token=$2`
	var row entity.Session
	if err := r.db.GetContext(ctx, &row, q, userID, token); err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes the session for a token. Deleting an unknown token is
// not an error.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=$1`, token)
	return err
}

// DeleteExpired purges sessions whose expiry passed and returns the
// number of rows removed. Called by the background sweeper.
func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
