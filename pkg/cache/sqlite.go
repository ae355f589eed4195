package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/fontshield/pkg/logging"
)

const sqliteBackend = "sqlite"

// maxPurgeInterval caps how long expired rows linger between purges.
const maxPurgeInterval = time.Hour

// SQLiteStore persists entries in a single SQLite table so a single-node
// deployment keeps its cache across restarts. With a ttl, a janitor
// goroutine purges expired rows until Close.
type SQLiteStore struct {
	db         *sql.DB
	ttl        time.Duration
	writeMutex sync.Mutex
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	logger     zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
// An empty path opens a shared in-memory database. A zero ttl keeps rows
// until they are overwritten.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fontcss (
			key TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			headers TEXT,
			cached_at INTEGER NOT NULL,
			expires INTEGER NOT NULL DEFAULT 0
		)`,
		"CREATE INDEX IF NOT EXISTS fontcss_expires_idx ON fontcss (expires)",
		"PRAGMA journal_mode=WAL",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		ttl:    ttl,
		logger: logging.NewLogger(logging.ComponentCache).With().Str("backend", sqliteBackend).Logger(),
	}
	if ttl > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.runJanitor(min(ttl, maxPurgeInterval))
	}
	return s, nil
}

// runJanitor purges once immediately, then every interval until stopped.
func (s *SQLiteStore) runJanitor(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.purgeExpired()
	for {
		select {
		case <-ticker.C:
			s.purgeExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *SQLiteStore) purgeExpired() {
	n, err := s.Purge(context.Background())
	if err != nil {
		CacheErrors.WithLabelValues(sqliteBackend, "purge").Inc()
		s.logger.Warn().Err(err).Msg("Failed to purge expired entries")
		return
	}
	if n > 0 {
		s.logger.Debug().Int64("removed", n).Msg("Purged expired entries")
	}
}

// Get retrieves an entry by key.
func (s *SQLiteStore) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	var (
		body, headers     string
		cachedAt, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT body, headers, cached_at, expires FROM fontcss WHERE key = ?",
		key.StorageKey(),
	).Scan(&body, &headers, &cachedAt, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.WithLabelValues(sqliteBackend).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(sqliteBackend, "get").Inc()
		return nil, fmt.Errorf("sqlite get: %w", err)
	}

	entry := &Entry{
		Body:     body,
		CachedAt: time.Unix(cachedAt, 0),
	}
	if expires > 0 {
		entry.Expires = time.Unix(expires, 0)
	}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &entry.Headers); err != nil {
			CacheErrors.WithLabelValues(sqliteBackend, "get").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		}
	}

	if entry.IsExpired() {
		CacheMisses.WithLabelValues(sqliteBackend).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(sqliteBackend).Inc()
	return entry, nil
}

// Put upserts an entry.
func (s *SQLiteStore) Put(ctx context.Context, key CacheKey, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		CacheErrors.WithLabelValues(sqliteBackend, "put").Inc()
		return fmt.Errorf("marshal headers: %w", err)
	}

	var expires int64
	switch {
	case !entry.Expires.IsZero():
		expires = entry.Expires.Unix()
	case s.ttl > 0:
		expires = time.Now().Add(s.ttl).Unix()
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO fontcss (key, body, headers, cached_at, expires) VALUES (?, ?, ?, ?, ?)",
		key.StorageKey(), entry.Body, string(headers), entry.CachedAt.Unix(), expires,
	)
	if err != nil {
		CacheErrors.WithLabelValues(sqliteBackend, "put").Inc()
		return fmt.Errorf("sqlite put: %w", err)
	}

	CacheEntryBytes.WithLabelValues(sqliteBackend).Observe(float64(len(entry.Body)))
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM fontcss WHERE expires > 0 AND expires < ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops the janitor and closes the database.
func (s *SQLiteStore) Close() error {
	if s.stop != nil {
		s.stopOnce.Do(func() {
			close(s.stop)
			<-s.done
		})
	}
	return s.db.Close()
}
