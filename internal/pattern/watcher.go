package pattern

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces bursts of filesystem events (editors often
// write partitions in several operations) into a single reload.
const watchDebounce = 500 * time.Millisecond

// Watch reloads the catalog whenever a partition file changes on disk.
// It blocks until ctx is cancelled. Reload failures are logged, never
// fatal; the previous catalog stays active.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return &IOError{Op: "watch", Path: s.dir, Err: err}
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return &IOError{Op: "watch", Path: s.dir, Err: err}
	}
	// The builtin directory may not exist; watching it is best-effort.
	builtinDir := filepath.Join(s.dir, builtinDirName)
	if err := watcher.Add(builtinDir); err != nil {
		s.logger.Debug("builtin directory not watched",
			zap.String("dir", builtinDir), zap.Error(err))
	}

	var debounce *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isPartitionEvent(ev) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.Load(ctx); err != nil {
				s.logger.Warn("pattern reload failed", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("pattern watcher error", zap.Error(err))
		}
	}
}

// isPartitionEvent reports whether ev concerns a partition file. Other
// json files sharing the directory, like the unknowns ledger, do not
// trigger reloads.
func isPartitionEvent(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return false
	}
	if !strings.HasSuffix(ev.Name, ".json") {
		return false
	}
	base := filepath.Base(ev.Name)
	if base == userFileName || base == learnedFileName {
		return true
	}
	return filepath.Base(filepath.Dir(ev.Name)) == builtinDirName
}
