package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is the current version of the persisted record envelope.
// Bump it together with a migration path in readEnvelope when a record
// shape changes.
const SchemaVersion = 1

// Common errors
var (
	// ErrNotFound means the key is absent. Callers treat this as "use the
	// empty/default value"; it is never returned for an I/O failure.
	ErrNotFound = errors.New("key not found")

	// ErrSchemaVersion means a record was written by an incompatible
	// schema version and cannot be decoded.
	ErrSchemaVersion = errors.New("unsupported schema version")
)

// Store is the key-value blob store boundary. Values are opaque byte
// slices; Get returns ErrNotFound for an absent key, any other error is
// an I/O failure.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error

	// Keys returns all keys with the given prefix. Used by background
	// workers; not part of the hot path.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}

// envelope wraps every persisted record with an explicit schema version
// so future migrations don't require bespoke parsing of legacy shapes.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// GetJSON reads the record at key into v, unwrapping the version envelope.
// Returns ErrNotFound unchanged when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode envelope for %q: %w", key, err)
	}

	if env.SchemaVersion != SchemaVersion {
		return fmt.Errorf("record %q has schema version %d: %w", key, env.SchemaVersion, ErrSchemaVersion)
	}

	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload for %q: %w", key, err)
	}

	return nil
}

// SetJSON writes v at key wrapped in the version envelope
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %q: %w", key, err)
	}

	data, err := json.Marshal(envelope{
		SchemaVersion: SchemaVersion,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode envelope for %q: %w", key, err)
	}

	return s.Set(ctx, key, data)
}
