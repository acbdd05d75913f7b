package ratelimit

import (
	"context"
	"sync"
)

type window struct {
	day   string
	count int
}

// MemoryStore keeps a single day window per recipient. A reservation for a
// newer day replaces the old window, so the table never holds more than one
// entry per recipient. Prune drops recipients that have gone quiet.
type MemoryStore struct {
	mutex   sync.Mutex
	max     int
	windows map[string]*window
}

func NewMemoryStore(maxPerDay int) *MemoryStore {
	if maxPerDay <= 0 {
		maxPerDay = DefaultMaxPerDay
	}
	return &MemoryStore{
		max:     maxPerDay,
		windows: make(map[string]*window),
	}
}

func (s *MemoryStore) Reserve(_ context.Context, recipient, day string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	w, ok := s.windows[recipient]
	if !ok || w.day < day {
		w = &window{day: day}
		s.windows[recipient] = w
	}
	if w.day != day {
		// Reservation for a day older than the live window.
		return false, nil
	}
	if w.count >= s.max {
		return false, nil
	}

	w.count++
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, recipient, day string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if w, ok := s.windows[recipient]; ok && w.day == day && w.count > 0 {
		w.count--
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, recipient, day string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if w, ok := s.windows[recipient]; ok && w.day == day {
		return w.count, nil
	}
	return 0, nil
}

// Prune removes every window older than day and returns how many it dropped.
func (s *MemoryStore) Prune(day string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dropped := 0
	for recipient, w := range s.windows {
		if w.day < day {
			delete(s.windows, recipient)
			dropped++
		}
	}
	return dropped
}

func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.windows)
}
