package notes_box

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/2beens/notesbox/pkg"
)

const (
	backupFilePrefix     = "notes_backup_"
	backupFileSuffix     = ".json"
	backupTimeLayout     = "20060102_150405"
	backupFilePermission = 0o600
)

var (
	ErrBackupNotFound    = errors.New("backup not found")
	ErrInvalidBackupName = errors.New("invalid backup name")

	backupNameRegex = regexp.MustCompile(`^notes_backup_\d{8}_\d{6}\.json$`)
)

// Backups keeps full snapshots of the note collection as files named
// notes_backup_YYYYMMDD_HHMMSS.json in one directory. A snapshot taken in the
// same second as an existing one replaces it.
type Backups struct {
	dir string
	now func() time.Time
}

func NewBackups(dir string) (*Backups, error) {
	if err := pkg.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("prepare backups dir: %w", err)
	}
	return &Backups{
		dir: dir,
		now: time.Now,
	}, nil
}

func (b *Backups) Create(notes []Note) (string, error) {
	content, err := Encode(notes)
	if err != nil {
		return "", fmt.Errorf("encode notes: %w", err)
	}

	name := backupFilePrefix + b.now().Format(backupTimeLayout) + backupFileSuffix
	if err := os.WriteFile(filepath.Join(b.dir, name), []byte(content), backupFilePermission); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}

	return name, nil
}

// List returns backup names, newest first.
func (b *Backups) List() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !backupNameRegex.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	// the timestamp layout sorts lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return names, nil
}

// Read loads the notes of a backup. A damaged backup is an ErrParse, never
// an empty collection.
func (b *Backups) Read(name string) ([]Note, error) {
	if !backupNameRegex.MatchString(name) {
		return nil, ErrInvalidBackupName
	}

	content, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	notes, err := Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", name, err)
	}
	return notes, nil
}
