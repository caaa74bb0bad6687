package util

import "sync"

func NewSet[T comparable](initial ...T) *Set[T] {
	m := make(map[T]struct{}, len(initial))
	for _, v := range initial {
		m[v] = struct{}{}
	}

	return &Set[T]{
		items: m,
	}
}

type Set[T comparable] struct {
	items map[T]struct{}
	mu    sync.RWMutex
}

func (s *Set[T]) Has(item T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[item]
	return ok
}
