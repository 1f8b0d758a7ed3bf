package notes_box

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/notesbox/internal/telemetry/metrics"
	"github.com/2beens/notesbox/internal/telemetry/tracing"
)

var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrEmptyNote       = errors.New("note title and content are both empty")
	ErrBackupsDisabled = errors.New("backups are not configured")
	ErrNoFreeID        = errors.New("no note id left to assign")
)

type Stats struct {
	Total int `json:"total"`
	// LastModified is the newest note time in unix millis, 0 when there are no notes.
	LastModified int64 `json:"last_modified"`
}

// Service implements the note flows on top of Store. Each mutating flow loads
// the whole collection, changes it in memory and saves it back in full, under
// one mutex so that ids handed out by NextID stay unique within the process.
type Service struct {
	store          *Store
	backups        *Backups
	backupOnDelete bool
	metrics        *metrics.Manager

	mutex sync.Mutex
	now   func() time.Time
}

type NewServiceParams struct {
	Store          *Store
	Backups        *Backups // optional
	BackupOnDelete bool
	Metrics        *metrics.Manager
}

func NewService(params NewServiceParams) *Service {
	return &Service{
		store:          params.Store,
		backups:        params.Backups,
		backupOnDelete: params.BackupOnDelete,
		metrics:        params.Metrics,
		now:            time.Now,
	}
}

func (s *Service) List(ctx context.Context) ([]Note, error) {
	return s.store.Load(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Note, error) {
	notes, err := s.store.Load(ctx)
	if err != nil {
		return Note{}, err
	}
	idx := indexOf(notes, id)
	if idx < 0 {
		return Note{}, ErrNoteNotFound
	}
	return notes[idx], nil
}

func (s *Service) Create(ctx context.Context, title, content string) (_ Note, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesService.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" && content == "" {
		return Note{}, ErrEmptyNote
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	notes, err := s.store.Load(ctx)
	if err != nil {
		return Note{}, err
	}
	if !HasFreeID(notes) {
		return Note{}, ErrNoFreeID
	}

	note := Note{
		ID:      NextID(notes),
		Title:   title,
		Content: content,
		Time:    s.now().UnixMilli(),
	}
	span.SetAttributes(attribute.Int64("note.id", note.ID))

	// newest first
	notes = append([]Note{note}, notes...)
	if err := s.store.Save(ctx, notes); err != nil {
		return Note{}, err
	}

	s.metrics.CounterNotesCreated.Inc()
	log.Debugf("new note added: [%s]: %d", note.Title, note.ID)

	return note, nil
}

// Update edits title and content of the note in place. The note keeps its
// position in the collection.
func (s *Service) Update(ctx context.Context, id int64, title, content string) (_ Note, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesService.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("note.id", id))

	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" && content == "" {
		return Note{}, ErrEmptyNote
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	notes, err := s.store.Load(ctx)
	if err != nil {
		return Note{}, err
	}

	idx := indexOf(notes, id)
	if idx < 0 {
		return Note{}, ErrNoteNotFound
	}

	note := notes[idx]
	note.Title = title
	note.Content = content
	// time never goes backwards, even with a skewed clock
	note.Time = max(s.now().UnixMilli(), note.Time)
	notes[idx] = note

	if err := s.store.Save(ctx, notes); err != nil {
		return Note{}, err
	}

	s.metrics.CounterNotesUpdated.Inc()
	log.Debugf("note updated: [%s]: %d", note.Title, note.ID)

	return note, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesService.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("note.id", id))

	s.mutex.Lock()
	defer s.mutex.Unlock()

	notes, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(notes, id)
	if idx < 0 {
		return ErrNoteNotFound
	}

	if s.backupOnDelete && s.backups != nil {
		if name, err := s.backups.Create(notes); err != nil {
			log.Warnf("backup before deleting note %d failed: %s", id, err)
		} else {
			s.metrics.CounterBackups.Inc()
			log.Debugf("backup before deleting note %d: %s", id, name)
		}
	}

	remaining := make([]Note, 0, len(notes)-1)
	remaining = append(remaining, notes[:idx]...)
	remaining = append(remaining, notes[idx+1:]...)

	if err := s.store.Save(ctx, remaining); err != nil {
		return err
	}

	s.metrics.CounterNotesDeleted.Inc()
	log.Debugf("note deleted: %d", id)

	return nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	notes, err := s.store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(notes)}
	for _, n := range notes {
		stats.LastModified = max(stats.LastModified, n.Time)
	}
	return stats, nil
}

// Backup snapshots the current collection and returns the backup name.
func (s *Service) Backup(ctx context.Context) (string, error) {
	if s.backups == nil {
		return "", ErrBackupsDisabled
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	notes, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}

	name, err := s.backups.Create(notes)
	if err != nil {
		return "", err
	}

	s.metrics.CounterBackups.Inc()
	log.Infof("notes backup created: %s (%d notes)", name, len(notes))

	return name, nil
}

func (s *Service) ListBackups() ([]string, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	return s.backups.List()
}

// Restore replaces the whole collection with the named backup and returns
// the number of restored notes.
func (s *Service) Restore(ctx context.Context, name string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "notesService.restore")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("backup.name", name))

	if s.backups == nil {
		return 0, ErrBackupsDisabled
	}

	notes, err := s.backups.Read(name)
	if err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.store.Save(ctx, notes); err != nil {
		return 0, err
	}

	log.Infof("notes restored from backup %s (%d notes)", name, len(notes))
	return len(notes), nil
}

func indexOf(notes []Note, id int64) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
