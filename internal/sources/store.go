// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sources persists the catalog source list as a YAML file and
// applies scanner cleanup plans to it.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/ManuGH/vodagg/internal/cms"
	"github.com/ManuGH/vodagg/internal/log"
	"github.com/ManuGH/vodagg/internal/scanner"
	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicate is returned by Add for an API URL already present.
	ErrDuplicate = errors.New("source already exists")
	// ErrUnknown is returned when no source has the given API URL.
	ErrUnknown = errors.New("unknown source")
	// ErrNotCustom is returned by Remove for built-in sources; disable those instead.
	ErrNotCustom = errors.New("only custom sources can be removed")
)

// file is the on-disk layout.
type file struct {
	Sources []cms.SourceEndpoint `yaml:"sources"`
}

// Store is the source list backed by a YAML file. Reads return copies;
// every mutation is written through atomically before it becomes visible.
type Store struct {
	path string

	mu      sync.RWMutex
	sources []cms.SourceEndpoint
}

// Open loads path. A missing file yields an empty store that is created on
// first write.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Reload replaces the in-memory list with the file contents. On error the
// previous list is kept.
func (s *Store) Reload() error {
	list, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sources = list
	s.mu.Unlock()
	return nil
}

func readFile(path string) ([]cms.SourceEndpoint, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}
	for i, src := range f.Sources {
		if strings.TrimSpace(src.APIBaseURL) == "" {
			return nil, fmt.Errorf("parse sources file %s: entry %d has no api", path, i)
		}
		if src.Name == "" {
			f.Sources[i].Name = src.APIBaseURL
		}
	}
	return f.Sources, nil
}

// All returns every source, disabled ones included.
func (s *Store) All() []cms.SourceEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]cms.SourceEndpoint(nil), s.sources...)
}

// Enabled returns the sources searches and listings should use.
func (s *Store) Enabled() []cms.SourceEndpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cms.SourceEndpoint, 0, len(s.sources))
	for _, src := range s.sources {
		if !src.IsDisabled {
			out = append(out, src)
		}
	}
	return out
}

// Disabled returns the set of disabled API URLs.
func (s *Store) Disabled() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool)
	for _, src := range s.sources {
		if src.IsDisabled {
			out[src.APIBaseURL] = true
		}
	}
	return out
}

// Lookup finds a source by API URL.
func (s *Store) Lookup(api string) (cms.SourceEndpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, src := range s.sources {
		if src.APIBaseURL == api {
			return src, true
		}
	}
	return cms.SourceEndpoint{}, false
}

// Len counts enabled sources.
func (s *Store) Len() int { return len(s.Enabled()) }

// Add appends a custom source.
func (s *Store) Add(ctx context.Context, src cms.SourceEndpoint) error {
	return s.update(ctx, "add", func(list []cms.SourceEndpoint) ([]cms.SourceEndpoint, error) {
		for _, cur := range list {
			if cur.APIBaseURL == src.APIBaseURL {
				return nil, fmt.Errorf("%w: %s", ErrDuplicate, src.APIBaseURL)
			}
		}
		src.IsCustom = true
		if src.Name == "" {
			src.Name = src.APIBaseURL
		}
		return append(list, src), nil
	})
}

// Remove deletes a custom source.
func (s *Store) Remove(ctx context.Context, api string) error {
	return s.update(ctx, "remove", func(list []cms.SourceEndpoint) ([]cms.SourceEndpoint, error) {
		for i, cur := range list {
			if cur.APIBaseURL != api {
				continue
			}
			if !cur.IsCustom {
				return nil, fmt.Errorf("%w: %s", ErrNotCustom, api)
			}
			return append(list[:i], list[i+1:]...), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknown, api)
	})
}

// SetDisabled toggles a source on or off.
func (s *Store) SetDisabled(ctx context.Context, api string, disabled bool) error {
	return s.update(ctx, "set_disabled", func(list []cms.SourceEndpoint) ([]cms.SourceEndpoint, error) {
		for i := range list {
			if list[i].APIBaseURL == api {
				list[i].IsDisabled = disabled
				return list, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknown, api)
	})
}

// Apply carries out a cleanup plan: listed built-ins are disabled, listed
// custom sources dropped, and later copies of a duplicated API URL removed.
func (s *Store) Apply(ctx context.Context, plan scanner.CleanupPlan) error {
	disable := toSet(plan.DisableBuiltins)
	drop := toSet(plan.DropCustom)

	return s.update(ctx, "apply_plan", func(list []cms.SourceEndpoint) ([]cms.SourceEndpoint, error) {
		seen := make(map[string]bool, len(list))
		out := list[:0]
		for _, src := range list {
			if seen[src.APIBaseURL] {
				continue
			}
			seen[src.APIBaseURL] = true
			if src.IsCustom && drop[src.APIBaseURL] {
				continue
			}
			if !src.IsCustom && disable[src.APIBaseURL] {
				src.IsDisabled = true
			}
			out = append(out, src)
		}
		return out, nil
	})
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// update runs fn on a copy of the list, persists the result and only then
// publishes it.
func (s *Store) update(ctx context.Context, op string, fn func([]cms.SourceEndpoint) ([]cms.SourceEndpoint, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(append([]cms.SourceEndpoint(nil), s.sources...))
	if err != nil {
		return err
	}
	if err := writeFile(ctx, s.path, next); err != nil {
		return err
	}
	before := len(s.sources)
	s.sources = next

	logger := log.WithComponentFromContext(ctx, "sources")
	logger.Info().
		Str(log.FieldEvent, "sources."+op).
		Int("before", before).
		Int("after", len(next)).
		Msg("sources file updated")
	return nil
}

func writeFile(ctx context.Context, path string, list []cms.SourceEndpoint) error {
	logger := log.FromContext(ctx)

	data, err := yaml.Marshal(file{Sources: list})
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending sources file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending sources file")
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write sources file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace sources file: %w", err)
	}
	return nil
}
