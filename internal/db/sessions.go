package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

// SessionStore implements session.Store on top of PostgreSQL. The version
// column guards every save.
type SessionStore struct {
	db  *DB
	ttl time.Duration
}

// NewSessionStore returns a store using db. A ttl of zero never expires rows.
func NewSessionStore(db *DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

func (s *SessionStore) expiresAt() *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	t := time.Now().Add(s.ttl)
	return &t
}

// Create implements session.Store.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	data, err := session.Encode(sess)
	if err != nil {
		return err
	}

	tag, err := s.db.pool.Exec(ctx,
		`INSERT INTO assessment_sessions (id, version, phase, data, created_at, updated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.Version, string(sess.Phase), data, sess.CreatedAt, s.expiresAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrAlreadyExists
	}
	return nil
}

// Get implements session.Store.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	var version int64
	err := s.db.pool.QueryRow(ctx,
		`SELECT data, version FROM assessment_sessions
		 WHERE id = $1 AND (expires_at IS NULL OR expires_at > NOW())`,
		id,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	sess, err := session.Decode(data)
	if err != nil {
		return nil, err
	}
	sess.Version = version
	return sess, nil
}

// CompareAndSwap implements session.Store.
func (s *SessionStore) CompareAndSwap(ctx context.Context, sess *session.Session, expected int64) error {
	next := *sess
	next.Version = expected + 1
	next.UpdatedAt = time.Now().UTC()
	data, err := session.Encode(&next)
	if err != nil {
		return err
	}

	tag, err := s.db.pool.Exec(ctx,
		`UPDATE assessment_sessions
		 SET data = $1, version = $2, phase = $3, updated_at = $4, expires_at = $5
		 WHERE id = $6 AND version = $7 AND (expires_at IS NULL OR expires_at > NOW())`,
		data, next.Version, string(next.Phase), next.UpdatedAt, s.expiresAt(), sess.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, sess.ID); err != nil {
			return err
		}
		return session.ErrVersionConflict
	}

	sess.Version = next.Version
	sess.UpdatedAt = next.UpdatedAt
	return nil
}

// PruneExpired deletes expired sessions and returns how many were removed.
func (s *SessionStore) PruneExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.pool.Exec(ctx,
		`DELETE FROM assessment_sessions WHERE expires_at IS NOT NULL AND expires_at <= NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
