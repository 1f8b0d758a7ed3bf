package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/notesbox/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

// storageContract is exercised by every in-process medium
func storageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "simple_note_prefs", "notes_json")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", `[]`))
	value, err := s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	// overwrite, last writer wins
	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", `[{"id":1}]`))
	value, err = s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, value)

	// slots are isolated by namespace and key
	_, err = s.Get(ctx, "other_prefs", "notes_json")
	require.ErrorIs(t, err, ErrKeyNotFound)
	_, err = s.Get(ctx, "simple_note_prefs", "other_key")
	require.ErrorIs(t, err, ErrKeyNotFound)

	// empty values are values
	require.NoError(t, s.Put(ctx, "other_prefs", "empty", ""))
	value, err = s.Get(ctx, "other_prefs", "empty")
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "prefs"))
	require.NoError(t, err)
	storageContract(t, s)
	require.NoError(t, s.Close())
}

func TestFileStorage_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStorage(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Put(ctx, "simple_note_prefs", "notes_json", "stored"))
	require.NoError(t, s1.Put(ctx, "simple_note_prefs", "another", "kept"))

	s2, err := NewFileStorage(dir)
	require.NoError(t, err)
	value, err := s2.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, "stored", value)
	value, err = s2.Get(ctx, "simple_note_prefs", "another")
	require.NoError(t, err)
	assert.Equal(t, "kept", value)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "simple_note_prefs.json", entries[0].Name())
}

func TestFileStorage_CorruptNamespaceFile(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "simple_note_prefs.json"), []byte("{not json"), 0o600))

	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	_, err = s.Get(ctx, "simple_note_prefs", "notes_json")
	require.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", "fresh"))
	value, err := s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
}

func TestFileStorage_UnreadableNamespace(t *testing.T) {
	dir := t.TempDir()
	// a directory where the prefs file should be can be neither read nor replaced
	require.NoError(t, os.Mkdir(filepath.Join(dir, "simple_note_prefs.json"), 0o700))

	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "simple_note_prefs", "notes_json")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrKeyNotFound))

	err = s.Put(context.Background(), "simple_note_prefs", "notes_json", "x")
	require.Error(t, err)
}

func TestNewFileStorage_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewFileStorage(path)
	require.Error(t, err)
}

func TestFreecacheStorage(t *testing.T) {
	s := NewFreecacheStorage(0)
	storageContract(t, s)
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "simple_note_prefs", "notes_json")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestFreecacheStorage_ValueTooLarge(t *testing.T) {
	s := NewFreecacheStorage(0)
	big := make([]byte, minFreecacheSize)
	err := s.Put(context.Background(), "ns", "key", string(big))
	require.ErrorIs(t, err, ErrValueTooLarge)
}

func TestFreecacheStorage_ValuesBiggerThanOneEntry(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, Params{Backend: config.BackendFreecache, FreecacheSizeMB: 16})
	require.NoError(t, err)
	defer s.Close()

	// freecache alone takes at most 16KB per entry at this size
	big := strings.Repeat("0123456789abcdef", 64*1024/16)
	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", big))
	value, err := s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, big, value)

	// shrinking drops the chunks of the previous value
	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", `[]`))
	value, err = s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, `[]`, value)

	grown := big + big
	require.NoError(t, s.Put(ctx, "simple_note_prefs", "notes_json", grown))
	value, err = s.Get(ctx, "simple_note_prefs", "notes_json")
	require.NoError(t, err)
	assert.Equal(t, grown, value)
}

func TestFreecacheStorage_EvictedChunk(t *testing.T) {
	ctx := context.Background()
	s := NewFreecacheStorage(0)

	value := strings.Repeat("x", 4*s.chunkSize("ns:key"))
	require.NoError(t, s.Put(ctx, "ns", "key", value))
	s.cache.Del(chunkKey("ns:key", 2))

	_, err := s.Get(ctx, "ns", "key")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestTestStorage(t *testing.T) {
	s := NewTestStorage()
	storageContract(t, s)
	assert.Equal(t, 3, s.Puts)

	failure := errors.New("disk full")
	s.FailPut = failure
	require.ErrorIs(t, s.Put(context.Background(), "ns", "key", "v"), failure)
	s.FailGet = failure
	_, err := s.Get(context.Background(), "simple_note_prefs", "notes_json")
	require.ErrorIs(t, err, failure)

	raw, ok := s.Raw("simple_note_prefs", "notes_json")
	assert.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, raw)

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Put(context.Background(), "ns", "key", "v"), ErrTestStorageClosed)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, Params{Backend: config.BackendFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStorage{}, s)

	s, err = New(ctx, Params{Backend: config.BackendFreecache, FreecacheSizeMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &FreecacheStorage{}, s)
	require.NoError(t, s.Close())

	_, err = New(ctx, Params{Backend: "etcd"})
	require.Error(t, err)
}

func TestParamsFromConfig(t *testing.T) {
	cfg := &config.Config{
		StorageBackend: config.BackendRedis,
		RedisHost:      "localhost",
		RedisPort:      "6379",
		RedisDB:        2,
	}
	params := ParamsFromConfig(cfg, "pass", "")
	assert.Equal(t, config.BackendRedis, params.Backend)
	assert.Equal(t, "localhost", params.RedisHost)
	assert.Equal(t, "pass", params.RedisPassword)
	assert.Equal(t, 2, params.RedisDB)
}
