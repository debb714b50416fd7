// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// Watch reloads the store when the file changes on disk and passes the new
// enabled list to onChange. The parent directory is watched since atomic
// replacement swaps the inode. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func([]cms.SourceEndpoint)) error {
	return s.watch(ctx, defaultDebounce, onChange)
}

func (s *Store) watch(ctx context.Context, debounce time.Duration, onChange func([]cms.SourceEndpoint)) error {
	logger := log.WithComponentFromContext(ctx, "sources")

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve sources path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sources dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch sources dir: %w", err)
	}

	logger.Info().Str(log.FieldEvent, "sources.watch_started").Str("path", abs).Msg("watching sources file")

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	reload := func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Reload(); err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "sources.reload_failed").Msg("keeping previous sources")
			return
		}
		enabled := s.Enabled()
		logger.Info().Str(log.FieldEvent, "sources.reloaded").Int("enabled", len(enabled)).Msg("sources file reloaded")
		if onChange != nil {
			onChange(enabled)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(log.FieldEvent, "sources.watch_stopped").Msg("sources watcher stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug().Str(log.FieldEvent, "sources.file_changed").Str("op", ev.Op.String()).Msg("sources file changed")

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Str(log.FieldEvent, "sources.watch_error").Msg("sources watcher error")
		}
	}
}
