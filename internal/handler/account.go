package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/blog/internal/auth"
	"github.com/sakif/blog/internal/form"
	"github.com/sakif/blog/internal/service"
)

// AccountHandler serves sign-up and the requester's own profile page.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleRegister creates an account.
//
// HTTP: POST /register
// BODY: username, email, password1, password2 (JSON or form fields)
//
// On success the client is pointed at /login; nothing logs the new user in.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in form.Registration
	if isJSON(r) {
		if err := decodeJSON(r, &in); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
	} else {
		if err := parseForm(r); err != nil {
			writeBadRequest(w, "Invalid form body")
			return
		}
		defer cleanupForm(r)
		in = form.Registration{
			Username:  r.FormValue("username"),
			Email:     r.FormValue("email"),
			Password1: r.FormValue("password1"),
			Password2: r.FormValue("password2"),
		}
	}

	result, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		// Passwords are never echoed back.
		writeFormError(w, err, map[string]string{"username": in.Username, "email": in.Email})
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleProfile returns the requester's user and profile.
//
// HTTP: GET /profile
// Auth: Required
func (h *AccountHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	view, err := h.accounts.ViewProfile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdateProfile updates username, email and picture together.
//
// HTTP: POST /profile
// Auth: Required
// BODY: multipart form with optional "username", "email" and "image" parts,
// or JSON {"username": "...", "email": "..."} without a picture. Fields
// that are left out keep their current value.
//
// A validation failure changes nothing and echoes the form: current values
// overlaid with whatever was submitted.
func (h *AccountHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var update service.ProfileUpdate
	if isJSON(r) {
		if err := decodeJSON(r, &update.User); err != nil {
			writeBadRequest(w, "Invalid request body")
			return
		}
	} else {
		if err := parseForm(r); err != nil {
			writeBadRequest(w, "Invalid form body")
			return
		}
		defer cleanupForm(r)

		update.User = form.UserUpdate{
			Username: formPtr(r, "username"),
			Email:    formPtr(r, "email"),
		}

		file, header, err := formFile(r, "image")
		if err != nil {
			writeBadRequest(w, "Invalid image upload")
			return
		}
		if file != nil {
			defer file.Close()
			update.Image = &service.ImageUpload{File: file, Size: header.Size, Filename: header.Filename}
		}
	}

	result, err := h.accounts.UpdateProfile(r.Context(), userID, update)
	if err != nil {
		writeFormError(w, err, h.profileEcho(r, userID, update.User))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// profileEcho builds the form values shown back after a failed update.
func (h *AccountHandler) profileEcho(r *http.Request, userID string, submitted form.UserUpdate) map[string]string {
	echo := map[string]string{}
	if view, err := h.accounts.ViewProfile(r.Context(), userID); err == nil {
		echo["username"] = view.User.Username
		echo["email"] = view.User.Email
	}
	if submitted.Username != nil {
		echo["username"] = *submitted.Username
	}
	if submitted.Email != nil {
		echo["email"] = *submitted.Email
	}
	return echo
}
