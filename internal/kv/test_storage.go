package kv

import (
	"context"
	"errors"
	"sync"
)

var _ Storage = (*TestStorage)(nil)

var ErrTestStorageClosed = errors.New("test storage closed")

// TestStorage is a map backed medium for tests. FailGet and FailPut make the
// next operations fail with the given error.
type TestStorage struct {
	mutex   sync.Mutex
	values  map[string]string
	FailGet error
	FailPut error
	Puts    int
	closed  bool
}

func NewTestStorage() *TestStorage {
	return &TestStorage{
		values: make(map[string]string),
	}
}

func (s *TestStorage) Get(_ context.Context, namespace, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return "", ErrTestStorageClosed
	}
	if s.FailGet != nil {
		return "", s.FailGet
	}
	value, ok := s.values[namespace+":"+key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *TestStorage) Put(_ context.Context, namespace, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrTestStorageClosed
	}
	if s.FailPut != nil {
		return s.FailPut
	}
	s.values[namespace+":"+key] = value
	s.Puts++
	return nil
}

// Raw returns whatever is stored in the slot, bypassing failure injection.
func (s *TestStorage) Raw(namespace, key string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, ok := s.values[namespace+":"+key]
	return value, ok
}

func (s *TestStorage) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
	return nil
}
