package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no session exists for an id.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists is returned by Create when the id is taken.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrVersionConflict is returned by CompareAndSwap when the stored version moved.
	ErrVersionConflict = errors.New("session version conflict")
)

// Store persists sessions keyed by id.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error
	// Get returns the current session record or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// CompareAndSwap saves s only if the stored version still equals expected.
	// On success s.Version is the new stored version.
	CompareAndSwap(ctx context.Context, s *Session, expected int64) error
}

// maxUpdateAttempts bounds optimistic retries in Update.
const maxUpdateAttempts = 5

// Update applies fn to the latest copy of a session and saves it with
// compare-and-swap, retrying on version conflicts. If fn returns an error
// nothing is saved and that error is returned unchanged.
func Update(ctx context.Context, store Store, id string, fn func(*Session) error) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		s, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		expected := s.Version
		if err := fn(s); err != nil {
			return nil, err
		}

		err = store.CompareAndSwap(ctx, s, expected)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to update session %s after %d attempts: %w", id, maxUpdateAttempts, lastErr)
}

// Encode serialises a session for storage.
func Encode(s *Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return data, nil
}

// Decode parses a session produced by Encode.
func Decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}
