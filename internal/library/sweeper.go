package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clip-studio/internal/logging"
)

// DefaultSweepInterval is how often the sweeper reconciles blobs with the
// database when no interval is configured.
const DefaultSweepInterval = 6 * time.Hour

// Sweeper periodically reconciles the blob directory with the clip table.
// A crash between writing a blob and committing its row leaves an orphan
// file; the sweeper removes those and compacts the database afterwards.
type Sweeper struct {
	store    *Store
	interval time.Duration
	stopChan chan struct{}
}

// NewSweeper creates a sweeper over the given store. interval <= 0 selects
// the default.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic sweeping in the background.
func (sw *Sweeper) Start() {
	go sw.loop()
}

// Stop stops the sweeper.
func (sw *Sweeper) Stop() {
	close(sw.stopChan)
}

func (sw *Sweeper) loop() {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := sw.Sweep(context.Background()); err != nil {
				logging.Error("Library sweep failed: %v", err)
			}
		case <-sw.stopChan:
			return
		}
	}
}

// Sweep runs one reconciliation pass: orphaned blob files are removed and
// the database is compacted when anything was cleaned up.
func (sw *Sweeper) Sweep(ctx context.Context) error {
	start := time.Now()

	clips, err := sw.store.List(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(clips))
	for _, c := range clips {
		known[c.ID] = true
	}

	entries, err := os.ReadDir(sw.store.blobDir)
	if err != nil {
		return err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), blobExt) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), blobExt)
		if known[id] {
			continue
		}
		path := filepath.Join(sw.store.blobDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn("Failed to remove orphaned blob %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info("Library sweep removed %d orphaned blob(s) in %v", removed, time.Since(start).Round(time.Millisecond))
		if err := sw.store.Vacuum(); err != nil {
			logging.Warn("Vacuum after sweep failed: %v", err)
		}
	} else {
		logging.Debug("Library sweep found nothing to clean (%d clips, %v)", len(clips), time.Since(start).Round(time.Millisecond))
	}

	return nil
}
