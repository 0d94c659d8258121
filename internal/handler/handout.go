package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/service"
)

// HandoutHandler serves the shared PDF handout collection.
type HandoutHandler struct {
	handouts *service.HandoutService
	logger   *slog.Logger
}

func NewHandoutHandler(handouts *service.HandoutService, logger *slog.Logger) *HandoutHandler {
	return &HandoutHandler{handouts: handouts, logger: logger}
}

// HandleList returns every handout with a download URL.
//
// HTTP: GET /handouts
func (h *HandoutHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.handouts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"handouts": items})
}

// HandleGet returns one handout with its download URL.
//
// HTTP: GET /handouts/{id}
func (h *HandoutHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.handouts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleUpload stores a PDF.
//
// HTTP: POST /handouts/upload
// Auth: Required
// BODY: multipart form with "title", optional "description" and a "file" part.
func (h *HandoutHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeBadRequest(w, "Invalid form body")
		return
	}
	defer cleanupForm(r)

	in := service.HandoutUpload{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	file, header, err := formFile(r, "file")
	if err != nil {
		writeBadRequest(w, "Invalid file upload")
		return
	}
	if file != nil {
		defer file.Close()
		in.File = file
		in.Size = header.Size
		in.Filename = header.Filename
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	result, err := h.handouts.Upload(r.Context(), userID, in)
	if err != nil {
		writeFormError(w, err, map[string]string{"title": in.Title, "description": in.Description})
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
