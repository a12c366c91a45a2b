package handler

import (
	"net/http"
	"strconv"

	"github.com/pavelanni/gradebook/internal/grading"
	"github.com/pavelanni/gradebook/internal/model"
)

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	csID, err := strconv.ParseInt(r.URL.Query().Get("class_subject_id"), 10, 64)
	if err != nil || csID <= 0 {
		writeMessage(w, r, http.StatusBadRequest, "BadRequest")
		return
	}
	rows, err := h.grading.ListAssignments(r.Context(), model.UserFromContext(r.Context()), csID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []model.AssignmentSummary{}
	}
	writeOK(w, http.StatusOK, rows)
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var in grading.CreateAssignmentInput
	if !decode(w, r, &in) {
		return
	}
	period, err := h.currentPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.grading.CreateAssignment(r.Context(), model.UserFromContext(r.Context()), period, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, a)
}

func (h *Handler) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.grading.GetAssignment(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, view)
}

func (h *Handler) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.grading.DeleteAssignment(r.Context(), model.UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *Handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in grading.AddQuestionInput
	if !decode(w, r, &in) {
		return
	}
	lq, err := h.grading.AddQuestion(r.Context(), model.UserFromContext(r.Context()), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, lq)
}

func (h *Handler) handleRemoveQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.grading.RemoveQuestion(r.Context(), model.UserFromContext(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *Handler) handlePublishAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.grading.Publish(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, a)
}

func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	subs, err := h.grading.ListSubmissions(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	writeOK(w, http.StatusOK, subs)
}
