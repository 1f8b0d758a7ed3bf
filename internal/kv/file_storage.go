package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/2beens/notesbox/pkg"
	log "github.com/sirupsen/logrus"
)

var _ Storage = (*FileStorage)(nil)

// FileStorage keeps every namespace in its own <namespace>.json file under rootDir,
// holding a flat key => value object.
type FileStorage struct {
	rootDir string
	mutex   sync.Mutex
}

func NewFileStorage(rootDir string) (*FileStorage, error) {
	if err := pkg.EnsureDir(rootDir); err != nil {
		return nil, fmt.Errorf("prepare storage dir: %w", err)
	}
	return &FileStorage{
		rootDir: rootDir,
	}, nil
}

func (s *FileStorage) Get(_ context.Context, namespace, key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.readNamespace(namespace)
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *FileStorage) Put(_ context.Context, namespace, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	values, err := s.readNamespace(namespace)
	if err != nil {
		return err
	}
	values[key] = value

	return s.writeNamespace(namespace, values)
}

func (s *FileStorage) Close() error {
	return nil
}

func (s *FileStorage) namespacePath(namespace string) string {
	return filepath.Join(s.rootDir, namespace+".json")
}

func (s *FileStorage) readNamespace(namespace string) (map[string]string, error) {
	values := make(map[string]string)

	content, err := os.ReadFile(s.namespacePath(namespace))
	if err != nil {
		if os.IsNotExist(err) {
			return values, nil
		}
		return nil, fmt.Errorf("read namespace %s: %w", namespace, err)
	}

	if err := json.Unmarshal(content, &values); err != nil {
		// a damaged prefs file behaves like a fresh one, the next write replaces it
		log.Warnf("namespace file [%s] is corrupt, treating it as empty: %s", namespace, err)
		return make(map[string]string), nil
	}

	return values, nil
}

func (s *FileStorage) writeNamespace(namespace string, values map[string]string) error {
	content, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal namespace %s: %w", namespace, err)
	}

	tmp, err := os.CreateTemp(s.rootDir, namespace+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.namespacePath(namespace)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace namespace file: %w", err)
	}

	return nil
}
