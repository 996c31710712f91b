// Package collection keeps ordered lists of records as a single JSON array
// blob. Writers use conditional puts and retry the whole read-modify-write
// when another writer got there first.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonathan/campaign-studio/internal/apperr"
	"github.com/jonathan/campaign-studio/internal/blob"
	"github.com/jonathan/campaign-studio/internal/schemas"
	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds the read-modify-write retries of one mutation.
const DefaultMaxAttempts = 5

const contentType = "application/json"

// Store reads and mutates collections held in a blob.Store.
type Store struct {
	blobs       blob.Store
	maxAttempts int
	logger      zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAttempts sets the retry bound. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n >= 1 {
			s.maxAttempts = n
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over blobs.
func New(blobs blob.Store, opts ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		maxAttempts: DefaultMaxAttempts,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// snapshot is one read of a collection document.
type snapshot struct {
	records []Record
	version string
	exists  bool
}

func (s *Store) load(ctx context.Context, key string) (*snapshot, error) {
	obj, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return &snapshot{records: []Record{}}, nil
		}
		return nil, err
	}

	if err := schemas.ValidateCollection(obj.Data); err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "stored collection is malformed",
			fmt.Errorf("collection %s: %w", key, err))
	}
	records, err := decodeRecords(obj.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "stored collection is malformed",
			fmt.Errorf("collection %s: %w", key, err))
	}
	return &snapshot{records: records, version: obj.Version, exists: true}, nil
}

// List returns the records at key in insertion order. A key that was never
// written yields an empty slice.
func (s *Store) List(ctx context.Context, key string) ([]Record, error) {
	snap, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

// Append adds record at the end of the collection. IDs are not checked for
// uniqueness.
func (s *Store) Append(ctx context.Context, key string, record Record) error {
	if record.ID == "" {
		return apperr.New(apperr.KindValidation, "record id is required")
	}
	return s.mutate(ctx, key, func(records []Record) ([]Record, error) {
		return append(records, record), nil
	})
}

// Remove deletes the record with id and returns it. If no record matches,
// the collection is left untouched and a not_found error is returned.
func (s *Store) Remove(ctx context.Context, key, id string) (Record, error) {
	var removed Record
	err := s.mutate(ctx, key, func(records []Record) ([]Record, error) {
		kept := make([]Record, 0, len(records))
		found := false
		for _, r := range records {
			if !found && r.ID == id {
				removed = r
				found = true
				continue
			}
			kept = append(kept, r)
		}
		if !found {
			return nil, apperr.Newf(apperr.KindNotFound, "record %s not found", id)
		}
		return kept, nil
	})
	if err != nil {
		return Record{}, err
	}
	return removed, nil
}

// mutate runs one read-modify-write cycle per attempt. The write is
// conditional on the version read, so a concurrent writer makes it fail and
// the cycle starts over from a fresh read.
func (s *Store) mutate(ctx context.Context, key string, fn func([]Record) ([]Record, error)) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		snap, err := s.load(ctx, key)
		if err != nil {
			return err
		}

		next, err := fn(snap.records)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "failed to encode collection", err)
		}

		cond := blob.Condition{IfVersion: snap.version}
		if !snap.exists {
			cond = blob.Condition{IfAbsent: true}
		}
		_, err = s.blobs.Put(ctx, key, data, contentType, cond)
		if err == nil {
			return nil
		}
		if !errors.Is(err, blob.ErrPreconditionFailed) {
			return err
		}

		s.logger.Debug().
			Str("key", key).
			Int("attempt", attempt).
			Msg("collection changed concurrently, retrying")
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return apperr.Newf(apperr.KindConcurrentModification,
		"collection %s kept changing, gave up after %d attempts", key, s.maxAttempts)
}
