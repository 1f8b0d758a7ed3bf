// Package kv holds the key-value media the note collection can be persisted to.
// Every medium addresses a value by a (namespace, key) pair.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the slot was never written.
var ErrKeyNotFound = errors.New("key not found")

type Storage interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Put(ctx context.Context, namespace, key, value string) error
	Close() error
}
