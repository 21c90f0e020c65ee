package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"clip-studio/internal/logging"
	"clip-studio/internal/mediatypes"
	"clip-studio/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a clip id has no library entry.
var ErrNotFound = errors.New("clip not found")

// Clip is one stored recording: metadata in sqlite, bytes on disk.
type Clip struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
}

// Store is the clip library. Metadata lives in a sqlite database, clip
// bytes live as blob files next to it.
type Store struct {
	db      *sql.DB
	dir     string
	blobDir string
	mu      sync.RWMutex
}

// Open creates or opens a library rooted at dir. The directory is created
// when missing.
func Open(ctx context.Context, dir string) (*Store, error) {
	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	dbPath := filepath.Join(dir, "library.db")
	logging.Info("Library database path: %s", dbPath)

	// WAL mode and busy_timeout prevent "database is locked" errors when
	// the collector reads stats during a save.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dir: dir, blobDir: blobDir}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize library schema: %w", err)
	}

	logging.Info("Library opened at %s", dir)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_clips_created_at ON clips(created_at);
	CREATE INDEX IF NOT EXISTS idx_clips_name ON clips(name COLLATE NOCASE);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a new clip and returns its metadata.
func (s *Store) Save(ctx context.Context, name, mimeType string, data []byte) (*Clip, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("save_clip", start, err) }()

	if len(data) == 0 {
		err = errors.New("empty clip data")
		return nil, err
	}
	if _, ok := mediatypes.FormatForMime(mimeType); !ok {
		err = fmt.Errorf("unsupported clip type %q", mimeType)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clip := &Clip{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	if clip.Name == "" {
		clip.Name = "Recording " + clip.CreatedAt.Format("2006-01-02 15:04:05")
	}

	if err = os.WriteFile(s.blobPath(clip.ID), data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write clip blob: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO clips (id, name, mime_type, size, created_at) VALUES (?, ?, ?, ?, ?)",
		clip.ID, clip.Name, clip.MimeType, clip.Size, clip.CreatedAt.Unix(),
	)
	if err != nil {
		if rmErr := os.Remove(s.blobPath(clip.ID)); rmErr != nil {
			logging.Warn("failed to remove orphaned blob %s: %v", clip.ID, rmErr)
		}
		return nil, fmt.Errorf("failed to insert clip: %w", err)
	}

	logging.Debug("Saved clip %s (%q, %d bytes)", clip.ID, clip.Name, clip.Size)
	return clip, nil
}

// Get returns a clip's metadata and bytes.
func (s *Store) Get(ctx context.Context, id string) (*Clip, []byte, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_clip", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, err := s.scanClip(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(s.blobPath(id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read clip blob: %w", err)
	}
	return clip, data, nil
}

// OpenBlob returns a clip's metadata and an open handle on its blob, for
// callers that stream instead of loading the whole clip. The caller closes
// the file.
func (s *Store) OpenBlob(ctx context.Context, id string) (*Clip, *os.File, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_clip", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	clip, err := s.scanClip(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.blobPath(id))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open clip blob: %w", err)
	}
	return clip, f, nil
}

// Delete removes a clip and its blob.
func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_clip", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, "DELETE FROM clips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}

	if rmErr := os.Remove(s.blobPath(id)); rmErr != nil && !os.IsNotExist(rmErr) {
		logging.Warn("failed to remove blob for deleted clip %s: %v", id, rmErr)
	}
	return nil
}

// List returns all clips, newest first.
func (s *Store) List(ctx context.Context) ([]Clip, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_clips", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, mime_type, size, created_at FROM clips ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		var created int64
		if err = rows.Scan(&c.ID, &c.Name, &c.MimeType, &c.Size, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(created, 0)
		clips = append(clips, c)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return clips, nil
}

// Rename updates a clip's display name.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rename_clip", start, err) }()

	if name == "" {
		err = errors.New("empty clip name")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, "UPDATE clips SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("failed to rename clip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}

// GetStats reports the library totals for the metrics collector.
func (s *Store) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("stats", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(size), 0) FROM clips").
		Scan(&stats.TotalClips, &stats.TotalBytes)
	if err != nil {
		logging.Warn("library stats query failed: %v", err)
	}
	return stats
}

// Vacuum optimizes the database.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

func (s *Store) scanClip(ctx context.Context, id string) (*Clip, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c Clip
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, mime_type, size, created_at FROM clips WHERE id = ?", id).
		Scan(&c.ID, &c.Name, &c.MimeType, &c.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(created, 0)
	return &c, nil
}

// blobExt is the file extension of stored clip blobs.
const blobExt = ".clip"

func (s *Store) blobPath(id string) string {
	return filepath.Join(s.blobDir, id+blobExt)
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}
