package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/form"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/service"
)

// PostHandler serves the post catalog.
//
// The handler only parses requests and shapes responses. Ownership, paging
// and validation all live in service.PostService.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// PostResponse is returned after a post is created or updated.
type PostResponse struct {
	Post     *model.Post `json:"post"`
	Redirect string      `json:"redirect"`
}

// HandleList returns one page of all posts, newest first.
//
// HTTP: GET /?page=N  (page=last for the final page)
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.posts.List(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleListByUser returns one page of a single author's posts.
//
// HTTP: GET /user/{username}?page=N
func (h *PostHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.posts.ListByUser(r.Context(), chi.URLParam(r, "username"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGet returns a single post.
//
// HTTP: GET /post/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// HandleCreate publishes a post as the logged-in user.
//
// HTTP: POST /post/new
// BODY: {"title": "...", "content": "..."} or the same as form fields.
// Any author field in the body is ignored.
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := readPostInput(r)
	if err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Create(r.Context(), userID, in)
	if err != nil {
		writeFormError(w, err, map[string]string{"title": in.Title, "content": in.Content})
		return
	}

	writeJSON(w, http.StatusCreated, PostResponse{Post: post, Redirect: "/post/" + post.ID})
}

// HandleUpdate rewrites title and content of the requester's own post.
//
// HTTP: PUT /post/{id}/update  (POST accepted for HTML forms)
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	in, err := readPostInput(r)
	if err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	post, err := h.posts.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		writeFormError(w, err, map[string]string{"title": in.Title, "content": in.Content})
		return
	}

	writeJSON(w, http.StatusOK, PostResponse{Post: post, Redirect: "/post/" + post.ID})
}

// HandleDelete removes the requester's own post.
//
// HTTP: DELETE /post/{id}/delete  (POST accepted for HTML forms)
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	redirect, err := h.posts.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redirect)
}

// HandleAbout returns the static about page payload.
//
// HTTP: GET /about
func (h *PostHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"title": "About"})
}

func readPostInput(r *http.Request) (form.PostInput, error) {
	var in form.PostInput
	if isJSON(r) {
		err := decodeJSON(r, &in)
		return in, err
	}
	if err := parseForm(r); err != nil {
		return in, err
	}
	defer cleanupForm(r)
	in.Title = r.PostForm.Get("title")
	in.Content = r.PostForm.Get("content")
	return in, nil
}

// parsePage reads ?page=. Missing means 1 and "last" means the final page.
// Anything that is not a positive integer is a missing page.
func parsePage(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	switch raw {
	case "":
		return 1, nil
	case "last":
		return service.LastPage, nil
	}

	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, apperror.NotFound("page", raw)
	}
	return page, nil
}
