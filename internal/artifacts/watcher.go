package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Chrome writes downloads under a temporary name and renames them when
// complete. A file counts as finished once it has a final name and its
// size has stopped changing.
const (
	partialSuffix     = ".crdownload"
	sizeSettleChecks  = 2
	sizeSettleBackoff = 300 * time.Millisecond
)

// AwaitDownload watches the download directory until a new file finishes
// writing, and returns its path. Files already present in before are
// ignored. The context bounds the whole wait.
func AwaitDownload(ctx context.Context, dir string, before map[string]struct{}) (string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", fmt.Errorf("failed to create download watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return "", fmt.Errorf("failed to watch download directory: %w", err)
	}

	// The download may have landed before the watcher was armed
	if path, ok := findNewComplete(dir, before); ok {
		return settle(ctx, path)
	}

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("download did not complete: %w", ctx.Err())

		case event, ok := <-watcher.Events:
			if !ok {
				return "", fmt.Errorf("download watcher closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			if path, ok := findNewComplete(dir, before); ok {
				return settle(ctx, path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return "", fmt.Errorf("download watcher closed")
			}
			log.Warn().Err(err).Msg("Download watcher error")
		}
	}
}

// CleanupStale removes everything that appeared in dir after the
// snapshot was taken: partial files and downloads nobody claimed.
// Called on failed download paths so the directory never accumulates
// orphans.
func CleanupStale(dir string, before map[string]struct{}) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, seen := before[e.Name()]; seen {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to remove stale download")
		}
	}
}

// Snapshot lists the files currently in dir, for use as the before set of
// AwaitDownload.
func Snapshot(dir string) map[string]struct{} {
	out := make(map[string]struct{})
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		out[e.Name()] = struct{}{}
	}
	return out
}

func findNewComplete(dir string, before map[string]struct{}) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, seen := before[name]; seen {
			continue
		}
		if strings.HasSuffix(name, partialSuffix) || strings.HasPrefix(name, ".") {
			continue
		}
		return filepath.Join(dir, name), true
	}
	return "", false
}

// settle waits for the file size to stop changing before declaring the
// download complete.
func settle(ctx context.Context, path string) (string, error) {
	var lastSize int64 = -1
	stable := 0
	for stable < sizeSettleChecks {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("download did not settle: %w", ctx.Err())
		case <-time.After(sizeSettleBackoff):
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("downloaded file vanished: %w", err)
		}
		// A size that stabilizes at zero is not a finished download
		if info.Size() == lastSize && info.Size() > 0 {
			stable++
		} else {
			stable = 0
			lastSize = info.Size()
		}
	}
	return path, nil
}
