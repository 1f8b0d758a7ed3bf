package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

var _ Storage = (*FreecacheStorage)(nil)

const (
	minFreecacheSize = 512 * 1024
	// freecache splits the cache into 256 segments and accepts entries up to
	// a quarter of a segment, minus the entry header
	freecacheSegments    = 256
	freecacheEntryHeader = 24
	chunkSuffixReserve   = 21
)

var ErrValueTooLarge = errors.New("value too large for cache")

// FreecacheStorage is an in-process medium, everything is gone on restart.
// A value is split into chunks stored under "namespace:key#i", and the
// "namespace:key" entry holds the number of chunks.
type FreecacheStorage struct {
	cache    *freecache.Cache
	size     int
	maxEntry int

	mutex sync.Mutex
}

func NewFreecacheStorage(sizeBytes int) *FreecacheStorage {
	if sizeBytes < minFreecacheSize {
		sizeBytes = minFreecacheSize
	}
	return &FreecacheStorage{
		cache:    freecache.NewCache(sizeBytes),
		size:     sizeBytes,
		maxEntry: sizeBytes/freecacheSegments/4 - freecacheEntryHeader,
	}
}

func freecacheKey(namespace, key string) string {
	return namespace + ":" + key
}

func chunkKey(base string, i int) []byte {
	return []byte(base + "#" + strconv.Itoa(i))
}

// chunkSize leaves room for the key and its chunk suffix in every entry.
func (s *FreecacheStorage) chunkSize(base string) int {
	return s.maxEntry - len(base) - chunkSuffixReserve
}

func (s *FreecacheStorage) chunkCount(base string) (int, error) {
	raw, err := s.cache.Get([]byte(base))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return 0, ErrKeyNotFound
		}
		return 0, fmt.Errorf("freecache get: %w", err)
	}
	count, err := strconv.Atoi(string(raw))
	if err != nil || count < 0 {
		return 0, fmt.Errorf("freecache chunk count [%s] invalid: %q", base, raw)
	}
	return count, nil
}

func (s *FreecacheStorage) Get(_ context.Context, namespace, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	base := freecacheKey(namespace, key)
	count, err := s.chunkCount(base)
	if err != nil {
		return "", err
	}

	var value strings.Builder
	for i := 0; i < count; i++ {
		chunk, err := s.cache.Get(chunkKey(base, i))
		if err != nil {
			if errors.Is(err, freecache.ErrNotFound) {
				// evicted, the slot is as gone as if it was never written
				log.Warnf("freecache: chunk %d/%d of [%s] evicted", i, count, base)
				return "", ErrKeyNotFound
			}
			return "", fmt.Errorf("freecache get: %w", err)
		}
		value.Write(chunk)
	}

	return value.String(), nil
}

func (s *FreecacheStorage) Put(_ context.Context, namespace, key, value string) error {
	base := freecacheKey(namespace, key)
	chunkSize := s.chunkSize(base)
	if chunkSize <= 0 {
		return fmt.Errorf("freecache set: key [%s] too long", base)
	}
	// past a quarter of the cache, chunks start evicting each other
	if len(value) > s.size/4 {
		return fmt.Errorf("freecache set [%s] %d bytes: %w", base, len(value), ErrValueTooLarge)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := (len(value) + chunkSize - 1) / chunkSize
	for i := 0; i < count; i++ {
		chunk := value[i*chunkSize : min((i+1)*chunkSize, len(value))]
		// expireSeconds 0 => never expires
		if err := s.cache.Set(chunkKey(base, i), []byte(chunk), 0); err != nil {
			return fmt.Errorf("freecache set: %w", err)
		}
	}

	if oldCount, err := s.chunkCount(base); err == nil {
		for i := count; i < oldCount; i++ {
			s.cache.Del(chunkKey(base, i))
		}
	}

	if err := s.cache.Set([]byte(base), []byte(strconv.Itoa(count)), 0); err != nil {
		return fmt.Errorf("freecache set: %w", err)
	}
	return nil
}

func (s *FreecacheStorage) Close() error {
	s.cache.Clear()
	return nil
}
