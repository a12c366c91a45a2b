package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pavelanni/gradebook/internal/grading"
	appI18n "github.com/pavelanni/gradebook/internal/i18n"
	"github.com/pavelanni/gradebook/internal/model"
	"github.com/pavelanni/gradebook/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	grading *grading.Service
	config  model.Config
	now     func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, g *grading.Service, cfg model.Config) *Handler {
	return &Handler{store: s, grading: g, config: cfg, now: time.Now}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(middleware.AllowContentType("application/json", "multipart/form-data"))

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/me", h.handleMe)
		r.Get("/periods/current", h.handleCurrentPeriod)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher))

			r.Get("/assignments", h.handleListAssignments)
			r.Post("/assignments", h.handleCreateAssignment)
			r.Get("/assignments/{id}", h.handleGetAssignment)
			r.Delete("/assignments/{id}", h.handleDeleteAssignment)
			r.Post("/assignments/{id}/questions", h.handleAddQuestion)
			r.Post("/assignments/{id}/publish", h.handlePublishAssignment)
			r.Get("/assignments/{id}/submissions", h.handleListSubmissions)
			r.Delete("/assignment-questions/{id}", h.handleRemoveQuestion)

			r.Get("/submissions/{id}", h.handleGetSubmission)
			r.Post("/submissions/{id}/grade", h.handleGradeSubmission)
			r.Post("/submissions/{id}/publish", h.handlePublishResults)

			r.Post("/responses/{id}/grade", h.handleGradeResponse)
			r.Post("/responses/{id}/correct", h.handleCorrectResponse)
			r.Post("/responses/{id}/suggest", h.handleSuggestScore)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/fixtures", h.handleUploadFixture)
		})
	})
}

type envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Error   string   `json:"error,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeMessage sends a failure envelope with a localized message.
func writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, envelope{Error: appI18n.T(r.Context(), msgID)})
}

// writeError maps a service failure to its status and localized message.
// Anything that is not a domain failure is logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *grading.Error
	if !errors.As(err, &de) {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeMessage(w, r, http.StatusInternalServerError, "InternalError")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, grading.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, grading.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, grading.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, grading.ErrUnauthorized):
		status = http.StatusForbidden
		if de.MessageID == grading.MsgUnauthenticated {
			status = http.StatusUnauthorized
		}
	}

	body := envelope{Error: appI18n.Td(r.Context(), de.MessageID, de.Data)}
	if fields := grading.FieldErrors(err); len(fields) > 0 {
		body.Error += " " + appI18n.Tp(r.Context(), "InvalidFields", len(fields))
		body.Fields = fields
	}
	slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, body)
}

// decode reads a JSON body into dst, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		slog.Debug("bad request body", "path", r.URL.Path, "error", err)
		writeMessage(w, r, http.StatusBadRequest, "BadRequest")
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, r, http.StatusBadRequest, "BadRequest")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, model.UserFromContext(r.Context()))
}

// currentPeriod resolves the caller's school period once per request.
func (h *Handler) currentPeriod(r *http.Request) (*model.AcademicPeriod, error) {
	user := model.UserFromContext(r.Context())
	p, ok, err := h.store.CurrentPeriod(r.Context(), user.SchoolID, h.now())
	if err != nil {
		return nil, fmt.Errorf("resolve current period: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (h *Handler) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.currentPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if p == nil {
		writeMessage(w, r, http.StatusNotFound, grading.MsgNoCurrentPeriod)
		return
	}
	writeOK(w, http.StatusOK, p)
}
