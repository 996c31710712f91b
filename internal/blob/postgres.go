package blob

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Versions come from one sequence so a key that is deleted and recreated
// never repeats a version an earlier writer may still hold. Tables created
// with per-row counters are moved onto the sequence past their highest
// version.
const createBlobsTable = `
CREATE SEQUENCE IF NOT EXISTS blob_versions;
CREATE TABLE IF NOT EXISTS blobs (
  key          TEXT PRIMARY KEY,
  data         BYTEA NOT NULL,
  content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
  version      BIGINT NOT NULL DEFAULT nextval('blob_versions'),
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE blobs ALTER COLUMN version SET DEFAULT nextval('blob_versions');
SELECT setval('blob_versions', GREATEST(
  (SELECT COALESCE(MAX(version), 0) FROM blobs),
  (SELECT last_value FROM blob_versions)
));`

// PostgresStore keeps blobs in a single table. Conditional writes are a
// single guarded statement on the row's version.
type PostgresStore struct {
	filesPrefix
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies the connection and ensures the table exists.
func OpenPostgres(ctx context.Context, databaseURL, baseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createBlobsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create blobs table: %w", err)
	}
	return &PostgresStore{filesPrefix: filesPrefix{baseURL: baseURL}, pool: pool}, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, key string) (*Object, error) {
	var (
		data        []byte
		contentType string
		version     int64
	)
	err := p.pool.QueryRow(ctx,
		`SELECT data, content_type, version FROM blobs WHERE key = $1`, key,
	).Scan(&data, &contentType, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get", key, err)
	}
	return &Object{Data: data, ContentType: contentType, Version: strconv.FormatInt(version, 10)}, nil
}

// Put implements Store.
func (p *PostgresStore) Put(ctx context.Context, key string, data []byte, contentType string, cond Condition) (string, error) {
	switch {
	case cond.IfVersion != "":
		expected, err := strconv.ParseInt(cond.IfVersion, 10, 64)
		if err != nil {
			return "", ErrPreconditionFailed
		}
		tag, err := p.pool.Exec(ctx,
			`UPDATE blobs SET data = $2, content_type = $3, version = nextval('blob_versions'), updated_at = NOW()
			 WHERE key = $1 AND version = $4`,
			key, data, contentType, expected,
		)
		if err != nil {
			return "", unavailable("put", key, err)
		}
		if tag.RowsAffected() == 0 {
			return "", ErrPreconditionFailed
		}
	case cond.IfAbsent:
		tag, err := p.pool.Exec(ctx,
			`INSERT INTO blobs (key, data, content_type) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO NOTHING`,
			key, data, contentType,
		)
		if err != nil {
			return "", unavailable("put", key, err)
		}
		if tag.RowsAffected() == 0 {
			return "", ErrPreconditionFailed
		}
	default:
		_, err := p.pool.Exec(ctx,
			`INSERT INTO blobs (key, data, content_type) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO UPDATE
			 SET data = EXCLUDED.data, content_type = EXCLUDED.content_type,
			     version = nextval('blob_versions'), updated_at = NOW()`,
			key, data, contentType,
		)
		if err != nil {
			return "", unavailable("put", key, err)
		}
	}
	return p.PublicURL(key), nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM blobs WHERE key = $1`, key)
	if err != nil {
		return unavailable("delete", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
