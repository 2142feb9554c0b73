package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/notequery"
	"github.com/starford/studynotes/internal/noteservice"
	"github.com/starford/studynotes/internal/sse"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

// Handler holds the note route handlers.
type Handler struct {
	svc    *noteservice.Service
	events *sse.Broker
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(svc *noteservice.Service, events *sse.Broker) *Handler {
	return &Handler{svc: svc, events: events}
}

func caller(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return id.UserID
	}
	return ""
}

// Upload handles POST /notes/upload.
//
//	@Summary		Upload a note file
//	@Tags			notes
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"Note file"
//	@Param			title		formData	string	true	"Title"
//	@Param			description	formData	string	false	"Description"
//	@Param			tags		formData	string	false	"Comma separated tags"
//	@Success		200			{object}	UploadResponse
//	@Failure		400			{object}	errResponse
//	@Failure		413			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, noteservice.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, apperr.WithDetail(apperr.ErrTooLarge, "file exceeds the %d MB limit", noteservice.MaxUploadBytes>>20))
			return
		}
		writeError(w, r, apperr.Invalid("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Invalid("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	note, err := h.svc.Upload(r.Context(), noteservice.UploadInput{
		Owner:       caller(r),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Tags:        r.FormValue("tags"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{Status: "success", Data: note})
}

// Search handles GET /notes/search.
//
//	@Summary		Search the caller's notes
//	@Tags			notes
//	@Produce		json
//	@Param			title			query		string	false	"Title substring"
//	@Param			tag				query		string	false	"Tag"
//	@Param			dateRange[from]	query		string	false	"Lower bound (ISO 8601)"
//	@Param			dateRange[to]	query		string	false	"Upper bound (ISO 8601)"
//	@Param			fileTypes[]		query		[]string	false	"File types"
//	@Param			sortField		query		string	false	"Sort field"	Enums(created_at, file_name, file_type, relevance)
//	@Param			sortOrder		query		string	false	"Sort order"	Enums(asc, desc)
//	@Success		200				{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/notes/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.Search(r.Context(), caller(r), notequery.ParseParams(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Success: true, Data: notes})
}

// ListByOwner handles GET /notes/user/{id}.
func (h *Handler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	notes, err := h.svc.ListByOwner(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NotesResponse{Data: notes})
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Data: note})
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Delete one of the caller's notes
//	@Tags			notes
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	DeleteResponse
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Success: true, Message: "Note deleted successfully"})
}

// Suggestions handles GET /notes/suggestions.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	titles, err := h.svc.Suggestions(r.Context(), caller(r), q.Get("query"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: titles})
}

// Events handles GET /notes/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("events are disabled"))
		return
	}
	h.events.Serve(w, r, caller(r))
}

// Health handles GET /notes/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		slog.Warn("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, errorBody("database unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
