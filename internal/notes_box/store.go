package notes_box

//go:generate mockgen -source=$GOFILE -destination=store_mocks_test.go -package=notes_box_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/notesbox/internal/kv"
	"github.com/2beens/notesbox/internal/telemetry/metrics"
	"github.com/2beens/notesbox/internal/telemetry/tracing"
)

var (
	ErrParse        = errors.New("notes value cannot be parsed")
	ErrStorageRead  = errors.New("notes storage read failed")
	ErrStorageWrite = errors.New("notes storage write failed")
)

type kvStorage interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Put(ctx context.Context, namespace, key, value string) error
}

// Store persists the whole note collection as one JSON string in a single
// (namespace, key) slot of a kv medium. Every Save replaces the slot.
type Store struct {
	storage   kvStorage
	namespace string
	key       string
	metrics   *metrics.Manager
}

func NewStore(storage kvStorage, namespace, key string, metricsManager *metrics.Manager) *Store {
	return &Store{
		storage:   storage,
		namespace: namespace,
		key:       key,
		metrics:   metricsManager,
	}
}

// Load returns the stored collection in stored order. A slot that was never
// written or holds an unparseable value yields an empty collection and no error.
func (s *Store) Load(ctx context.Context) (_ []Note, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesStore.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	defer s.observeDuration("load", time.Now())

	raw, err := s.storage.Get(ctx, s.namespace, s.key)
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			s.metrics.CounterLoadFallbacks.WithLabelValues("absent").Inc()
			s.metrics.GaugeNotes.Set(0)
			return []Note{}, nil
		}
		s.metrics.CounterStorageErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %w", ErrStorageRead, err)
	}

	notes, err := Parse(raw)
	if err != nil {
		log.Warnf("notes slot [%s/%s] holds an unparseable value, treating as empty: %s", s.namespace, s.key, err)
		s.metrics.CounterLoadFallbacks.WithLabelValues("corrupt").Inc()
		s.metrics.GaugeNotes.Set(0)
		return []Note{}, nil
	}

	span.SetAttributes(attribute.Int("notes.count", len(notes)))
	s.metrics.GaugeNotes.Set(float64(len(notes)))

	return notes, nil
}

// Save overwrites the slot with the given collection, in the given order.
func (s *Store) Save(ctx context.Context, notes []Note) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesStore.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	defer s.observeDuration("save", time.Now())

	span.SetAttributes(attribute.Int("notes.count", len(notes)))

	value, err := Encode(notes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	if err := s.storage.Put(ctx, s.namespace, s.key, value); err != nil {
		s.metrics.CounterStorageErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	s.metrics.GaugeNotes.Set(float64(len(notes)))
	log.Tracef("saved %d notes to [%s/%s]", len(notes), s.namespace, s.key)

	return nil
}

func (s *Store) observeDuration(op string, begin time.Time) {
	s.metrics.HistogramStoreDuration.WithLabelValues(op).Observe(time.Since(begin).Seconds())
}

// NextID is one more than the largest id in notes, or 1 when notes is empty.
// Callers check HasFreeID first, past math.MaxInt64 the result wraps.
func NextID(notes []Note) int64 {
	return maxNoteID(notes) + 1
}

// HasFreeID reports whether NextID can hand out one more id.
func HasFreeID(notes []Note) bool {
	return maxNoteID(notes) < math.MaxInt64
}

func maxNoteID(notes []Note) int64 {
	var maxID int64
	for _, n := range notes {
		if n.ID > maxID {
			maxID = n.ID
		}
	}
	return maxID
}

// rawNote has every field required, missing ones stay nil
type rawNote struct {
	ID      *int64  `json:"id"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Time    *int64  `json:"time"`
}

// Parse decodes a stored value. Anything but a JSON array of complete note
// objects is an ErrParse.
func Parse(raw string) ([]Note, error) {
	var rawNotes []*rawNote
	if err := json.Unmarshal([]byte(raw), &rawNotes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if rawNotes == nil {
		return nil, fmt.Errorf("%w: not an array", ErrParse)
	}

	notes := make([]Note, 0, len(rawNotes))
	for i, rn := range rawNotes {
		if rn == nil {
			return nil, fmt.Errorf("%w: element %d is null", ErrParse, i)
		}
		if rn.ID == nil || rn.Title == nil || rn.Content == nil || rn.Time == nil {
			return nil, fmt.Errorf("%w: element %d misses a field", ErrParse, i)
		}
		notes = append(notes, Note{
			ID:      *rn.ID,
			Title:   *rn.Title,
			Content: *rn.Content,
			Time:    *rn.Time,
		})
	}

	return notes, nil
}

// Encode is the inverse of Parse. An empty collection encodes as "[]".
func Encode(notes []Note) (string, error) {
	if notes == nil {
		notes = []Note{}
	}
	content, err := json.Marshal(notes)
	if err != nil {
		return "", err
	}
	return string(content), nil
}
