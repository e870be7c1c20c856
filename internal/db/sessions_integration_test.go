package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ujjwalparashar30/github-assisstance/internal/session"
)

func setupTestDB(t *testing.T) *DB {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestSessionStore_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	store := NewSessionStore(db, time.Hour)
	s := session.New(time.Now())
	require.NoError(t, store.Create(ctx, s))
	assert.ErrorIs(t, store.Create(ctx, s), session.ErrAlreadyExists)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, int64(1), got.Version)

	got.ResumeText = "go developer"
	got.Advance(session.Phase1Complete)
	require.NoError(t, store.CompareAndSwap(ctx, got, 1))
	assert.Equal(t, int64(2), got.Version)

	stale := *s
	assert.ErrorIs(t, store.CompareAndSwap(ctx, &stale, 1), session.ErrVersionConflict)

	final, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "go developer", final.ResumeText)
	assert.Equal(t, session.Phase1Complete, final.Phase)
}

func TestSessionStore_Missing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	store := NewSessionStore(db, 0)
	_, err := store.Get(ctx, "does-not-exist")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, store.CompareAndSwap(ctx, session.New(time.Now()), 1), session.ErrNotFound)
}

func TestSessionStore_UpdateHelper(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	store := NewSessionStore(db, time.Hour)
	s := session.New(time.Now())
	require.NoError(t, store.Create(ctx, s))

	updated, err := session.Update(ctx, store, s.ID, func(s *session.Session) error {
		s.Progress.Phase1Complete = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Progress.Phase1Complete)

	_, err = store.PruneExpired(ctx)
	require.NoError(t, err)
}
