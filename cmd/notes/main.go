// Command notes manages the note collection from a terminal, against the
// storage configured for the service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/notesbox/internal/config"
	"github.com/2beens/notesbox/internal/kv"
	"github.com/2beens/notesbox/internal/logging"
	notesBox "github.com/2beens/notesbox/internal/notes_box"
	"github.com/2beens/notesbox/internal/telemetry/metrics"
)

const usage = `usage: notes [-env ENV] [-config PATH] <command> [args]

commands:
  list [-sort time|title]                list notes, stored order by default
  add -title T -content C                create a note
  edit [-title T] [-content C] ID        edit a note
  delete ID                              delete a note
  stats                                  number of notes and last modification
  backup                                 snapshot all notes
  backups                                list snapshots
  restore NAME                           replace all notes with a snapshot
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("notes", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	env := fs.String("env", "development", "environment [prod | production | dev | development]")
	configPath := fs.String("config", "./config.toml", "path for the TOML config file")
	logLevel := fs.String("log-level", "warn", "log level, logs go to stderr")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(logging.GetLevel(*logLevel))

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		return err
	}

	storage, err := kv.New(ctx, kv.ParamsFromConfig(
		cfg,
		os.Getenv("NOTESBOX_REDIS_PASS"),
		os.Getenv("NOTESBOX_POSTGRES_PASS"),
	))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Errorf("close storage: %s", err)
		}
	}()

	metricsManager := metrics.NewManager("notesbox", "cli", prometheus.NewRegistry())
	var backups *notesBox.Backups
	if cfg.BackupsDir != "" {
		if backups, err = notesBox.NewBackups(cfg.BackupsDir); err != nil {
			return err
		}
	}
	service := notesBox.NewService(notesBox.NewServiceParams{
		Store:          notesBox.NewStore(storage, cfg.StorageNamespace, cfg.StorageKey, metricsManager),
		Backups:        backups,
		BackupOnDelete: cfg.BackupOnDelete,
		Metrics:        metricsManager,
	})

	command, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "list":
		return listNotes(ctx, service, cmdArgs, out)
	case "add":
		return addNote(ctx, service, cmdArgs, out)
	case "edit":
		return editNote(ctx, service, cmdArgs, out)
	case "delete":
		return deleteNote(ctx, service, cmdArgs, out)
	case "stats":
		return printStats(ctx, service, out)
	case "backup":
		name, err := service.Backup(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, name)
		return err
	case "backups":
		names, err := service.ListBackups()
		if err != nil {
			return err
		}
		for _, name := range names {
			if _, err := fmt.Fprintln(out, name); err != nil {
				return err
			}
		}
		return nil
	case "restore":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("%w: restore needs a backup name", errUsage)
		}
		restored, err := service.Restore(ctx, cmdArgs[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "restored %d notes from %s\n", restored, cmdArgs[0])
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func listNotes(ctx context.Context, service *notesBox.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sortBy := fs.String("sort", "", "time (newest first) or title")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}
	order, err := notesBox.ParseSortOrder(*sortBy)
	if err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	notes, err := service.List(ctx)
	if err != nil {
		return err
	}
	notes = notesBox.SortNotes(notes, order)
	if len(notes) == 0 {
		_, err := fmt.Fprintln(out, "no notes")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODIFIED\tTITLE\tCONTENT")
	for _, n := range notes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", n.ID, formatTime(n.Time), n.Title, preview(n.Content, 40))
	}
	return tw.Flush()
}

func addNote(ctx context.Context, service *notesBox.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "note title")
	content := fs.String("content", "", "note content")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}

	note, err := service.Create(ctx, *title, *content)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "added:%d\n", note.ID)
	return err
}

// editNote keeps the current title or content unless the flag is given.
func editNote(ctx context.Context, service *notesBox.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.Int64("id", 0, "note id")
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new content")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}
	noteID, err := idFromFlagOrArg(*id, fs)
	if err != nil {
		return err
	}

	current, err := service.Get(ctx, noteID)
	if err != nil {
		return err
	}
	newTitle, newContent := current.Title, current.Content
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			newTitle = *title
		case "content":
			newContent = *content
		}
	})

	note, err := service.Update(ctx, noteID, newTitle, newContent)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "updated:%d\n", note.ID)
	return err
}

func deleteNote(ctx context.Context, service *notesBox.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	id := fs.Int64("id", 0, "note id")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err)
	}
	noteID, err := idFromFlagOrArg(*id, fs)
	if err != nil {
		return err
	}

	if err := service.Delete(ctx, noteID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "deleted:%d\n", noteID)
	return err
}

func printStats(ctx context.Context, service *notesBox.Service, out io.Writer) error {
	stats, err := service.Stats(ctx)
	if err != nil {
		return err
	}

	lastModified := "-"
	if stats.Total > 0 {
		lastModified = formatTime(stats.LastModified)
	}
	_, err = fmt.Fprintf(out, "notes: %d\nlast modified: %s\n", stats.Total, lastModified)
	return err
}

func formatTime(unixMillis int64) string {
	return time.UnixMilli(unixMillis).Format("2006-01-02 15:04")
}

func preview(content string, maxRunes int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "…"
}

// idFromFlagOrArg accepts both "-id 3" and a positional "3".
func idFromFlagOrArg(flagID int64, fs *flag.FlagSet) (int64, error) {
	if flagID > 0 {
		return flagID, nil
	}
	if fs.NArg() == 0 {
		return 0, fmt.Errorf("%w: %s needs a note id", errUsage, fs.Name())
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad note id %q", errUsage, fs.Arg(0))
	}
	return id, nil
}
