package notes_box_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/2beens/notesbox/internal/kv"
	"github.com/2beens/notesbox/internal/notes_box"
	"github.com/2beens/notesbox/internal/telemetry/metrics"
)

const (
	namespace = "simple_note_prefs"
	key       = "notes_json"
)

func TestStore_Load_ReadsConfiguredSlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	store := notes_box.NewStore(storage, namespace, key, metrics.NewTestManager())

	storage.EXPECT().
		Get(gomock.Any(), namespace, key).
		Return(`[{"id":3,"title":"T","content":"C","time":42}]`, nil)

	notes, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []notes_box.Note{{ID: 3, Title: "T", Content: "C", Time: 42}}, notes)
}

func TestStore_Load_MissingSlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	metricsManager := metrics.NewTestManager()
	store := notes_box.NewStore(storage, namespace, key, metricsManager)

	storage.EXPECT().Get(gomock.Any(), namespace, key).Return("", kv.ErrKeyNotFound)

	notes, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterLoadFallbacks.WithLabelValues("absent")))
}

func TestStore_Load_MediumFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	metricsManager := metrics.NewTestManager()
	store := notes_box.NewStore(storage, namespace, key, metricsManager)

	mediumErr := errors.New("connection reset")
	storage.EXPECT().Get(gomock.Any(), namespace, key).Return("", mediumErr)

	notes, err := store.Load(context.Background())
	require.ErrorIs(t, err, notes_box.ErrStorageRead)
	require.ErrorIs(t, err, mediumErr)
	assert.Nil(t, notes)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterStorageErrors.WithLabelValues("load")))
}

func TestStore_Save_WritesWholeCollection(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	store := notes_box.NewStore(storage, namespace, key, metrics.NewTestManager())

	storage.EXPECT().
		Put(gomock.Any(), namespace, key, `[{"id":2,"title":"b","content":"","time":2},{"id":1,"title":"","content":"a","time":1}]`).
		Return(nil)

	err := store.Save(context.Background(), []notes_box.Note{
		{ID: 2, Title: "b", Time: 2},
		{ID: 1, Content: "a", Time: 1},
	})
	require.NoError(t, err)
}

func TestStore_Save_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	store := notes_box.NewStore(storage, namespace, key, metrics.NewTestManager())

	storage.EXPECT().Put(gomock.Any(), namespace, key, `[]`).Return(nil).Times(2)

	require.NoError(t, store.Save(context.Background(), nil))
	require.NoError(t, store.Save(context.Background(), []notes_box.Note{}))
}

func TestStore_Save_WriteFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	storage := NewMockkvStorage(ctrl)
	metricsManager := metrics.NewTestManager()
	store := notes_box.NewStore(storage, namespace, key, metricsManager)

	storage.EXPECT().Put(gomock.Any(), namespace, key, gomock.Any()).Return(errors.New("quota exceeded"))

	err := store.Save(context.Background(), []notes_box.Note{{ID: 1, Title: "x"}})
	require.ErrorIs(t, err, notes_box.ErrStorageWrite)
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterStorageErrors.WithLabelValues("save")))
}
