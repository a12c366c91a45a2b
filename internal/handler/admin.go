package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/seed"
)

const maxFixtureBytes = 10 << 20

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.FixtureUser
	if !decode(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeMessage(w, r, http.StatusBadRequest, "InvalidInput")
		return
	}
	switch req.Role {
	case model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin:
	default:
		writeMessage(w, r, http.StatusBadRequest, "InvalidInput")
		return
	}

	id, err := seed.CreateUser(r.Context(), h.store, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, user)
}

// handleUploadFixture imports a fixture sent either as a multipart
// fixture_file or as a raw JSON body named by the name query parameter.
func (h *Handler) handleUploadFixture(w http.ResponseWriter, r *http.Request) {
	var (
		name string
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFixtureBytes); err != nil {
			writeMessage(w, r, http.StatusBadRequest, "BadRequest")
			return
		}
		file, header, err := r.FormFile("fixture_file")
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, "BadRequest")
			return
		}
		defer file.Close()
		name = header.Filename
		data, err = io.ReadAll(file)
		if err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		name = r.URL.Query().Get("name")
		if name == "" {
			writeMessage(w, r, http.StatusBadRequest, "BadRequest")
			return
		}
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxFixtureBytes))
		if err != nil {
			writeMessage(w, r, http.StatusBadRequest, "BadRequest")
			return
		}
	}

	res, err := seed.Fixture(r.Context(), h.store, name, data)
	if errors.Is(err, seed.ErrFileChanged) {
		writeMessage(w, r, http.StatusConflict, "FixtureChanged")
		return
	}
	if err != nil {
		slog.Warn("fixture import failed", "name", name, "error", err)
		writeMessage(w, r, http.StatusBadRequest, "InvalidInput")
		return
	}
	writeOK(w, http.StatusOK, res)
}
