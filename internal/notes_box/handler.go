package notes_box

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/notesbox/pkg"
)

type notesService interface {
	List(ctx context.Context) ([]Note, error)
	Get(ctx context.Context, id int64) (Note, error)
	Create(ctx context.Context, title, content string) (Note, error)
	Update(ctx context.Context, id int64, title, content string) (Note, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (Stats, error)
	Backup(ctx context.Context) (string, error)
	ListBackups() ([]string, error)
	Restore(ctx context.Context, name string) (int, error)
}

var _ notesService = (*Service)(nil)

type Handler struct {
	service notesService
}

func NewHandler(service notesService) *Handler {
	return &Handler{
		service: service,
	}
}

type notesListResponse struct {
	Notes []Note `json:"notes"`
	Total int    `json:"total"`
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SetupRoutes registers the notes routes. writeMiddleware (if any) wraps the
// mutating routes only.
func (handler *Handler) SetupRoutes(r *mux.Router, writeMiddleware ...mux.MiddlewareFunc) {
	notesRouter := r.PathPrefix("/notes").Subrouter()

	notesRouter.HandleFunc("", handler.HandleList).Methods("GET").Name("list-notes")
	notesRouter.HandleFunc("/stats", handler.HandleStats).Methods("GET").Name("notes-stats")
	notesRouter.HandleFunc("/backups", handler.HandleListBackups).Methods("GET").Name("list-notes-backups")
	notesRouter.HandleFunc("/{id:[0-9]+}", handler.HandleGet).Methods("GET").Name("get-note")

	writeRouter := notesRouter.NewRoute().Subrouter()
	writeRouter.HandleFunc("", handler.HandleAdd).Methods("POST").Name("new-note")
	writeRouter.HandleFunc("/{id:[0-9]+}", handler.HandleUpdate).Methods("PUT").Name("update-note")
	writeRouter.HandleFunc("/{id:[0-9]+}", handler.HandleDelete).Methods("DELETE").Name("remove-note")
	writeRouter.HandleFunc("/backups", handler.HandleBackup).Methods("POST").Name("new-notes-backup")
	writeRouter.HandleFunc("/backups/{name}/restore", handler.HandleRestore).Methods("POST").Name("restore-notes-backup")
	for _, mw := range writeMiddleware {
		writeRouter.Use(mw)
	}
}

// HandleList lists notes in stored order, or sorted by the optional
// "sort" query param (time or title).
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	order, err := ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	notes, err := handler.service.List(r.Context())
	if err != nil {
		log.Errorf("list notes error: %s", err)
		http.Error(w, "failed to get notes", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, notesListResponse{
		Notes: SortNotes(notes, order),
		Total: len(notes),
	})
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := noteIDFromPath(w, r)
	if !ok {
		return
	}

	note, err := handler.service.Get(r.Context(), id)
	if err != nil {
		handler.writeError(w, fmt.Sprintf("get note %d", id), err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, note)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	req, err := parseNoteRequest(r)
	if err != nil {
		log.Errorf("add new note failed, parse request error: %s", err)
		http.Error(w, "parse request error", http.StatusBadRequest)
		return
	}

	note, err := handler.service.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		handler.writeError(w, "add new note", err)
		return
	}

	pkg.WriteJSON(w, http.StatusCreated, note)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := noteIDFromPath(w, r)
	if !ok {
		return
	}

	req, err := parseNoteRequest(r)
	if err != nil {
		log.Errorf("update note failed, parse request error: %s", err)
		http.Error(w, "parse request error", http.StatusBadRequest)
		return
	}

	note, err := handler.service.Update(r.Context(), id, req.Title, req.Content)
	if err != nil {
		handler.writeError(w, fmt.Sprintf("update note %d", id), err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, note)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := noteIDFromPath(w, r)
	if !ok {
		return
	}

	if err := handler.service.Delete(r.Context(), id); err != nil {
		handler.writeError(w, fmt.Sprintf("delete note %d", id), err)
		return
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := handler.service.Stats(r.Context())
	if err != nil {
		handler.writeError(w, "notes stats", err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, stats)
}

func (handler *Handler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	name, err := handler.service.Backup(r.Context())
	if err != nil {
		handler.writeError(w, "create backup", err)
		return
	}

	pkg.WriteJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func (handler *Handler) HandleListBackups(w http.ResponseWriter, _ *http.Request) {
	names, err := handler.service.ListBackups()
	if err != nil {
		handler.writeError(w, "list backups", err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, map[string]any{
		"backups": names,
		"total":   len(names),
	})
}

func (handler *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	restored, err := handler.service.Restore(r.Context(), name)
	if err != nil {
		handler.writeError(w, fmt.Sprintf("restore backup %s", name), err)
		return
	}

	pkg.WriteJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"restored": restored,
	})
}

// writeError maps service errors to status codes.
func (handler *Handler) writeError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNoteNotFound), errors.Is(err, ErrBackupNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmptyNote), errors.Is(err, ErrInvalidBackupName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoFreeID):
		log.Errorf("%s failed: %s", action, err)
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrBackupsDisabled):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, ErrParse):
		// damaged backup file
		log.Errorf("%s failed: %s", action, err)
		http.Error(w, "backup cannot be parsed", http.StatusUnprocessableEntity)
	default:
		log.Errorf("%s failed: %s", action, err)
		http.Error(w, fmt.Sprintf("error, %s failed", action), http.StatusInternalServerError)
	}
}

func noteIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "error, id invalid", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// parseNoteRequest accepts a JSON body or form values.
func parseNoteRequest(r *http.Request) (noteRequest, error) {
	var req noteRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == pkg.ContentType.JSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return noteRequest{}, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return noteRequest{}, err
	}
	req.Title = r.Form.Get("title")
	req.Content = r.Form.Get("content")

	return req, nil
}
