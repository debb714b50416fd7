// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"sync"

	"github.com/google/uuid"
)

// Handle names a synthetic playlist held for the player.
type Handle string

// Store holds sanitized playlists until the player releases them. It is
// bounded: when full, the oldest playlist is dropped.
type Store struct {
	mu      sync.Mutex
	max     int
	entries map[Handle]string
	order   []Handle
}

func NewStore(max int) *Store {
	if max <= 0 {
		max = 256
	}
	return &Store{max: max, entries: make(map[Handle]string)}
}

// Put stores content and returns its handle.
func (s *Store) Put(content string) Handle {
	h := Handle(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.entries) >= s.max && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[h] = content
	s.order = append(s.order, h)
	return h
}

func (s *Store) Get(h Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[h]
	return c, ok
}

// Release drops a playlist. Releasing an unknown handle is a no-op.
func (s *Store) Release(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[h]; !ok {
		return false
	}
	delete(s.entries, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
