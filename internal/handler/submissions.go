package handler

import (
	"net/http"

	"github.com/pavelanni/gradebook/internal/model"
)

type gradeRequest struct {
	Score    *float64 `json:"score"`
	Feedback *string  `json:"feedback"`
}

type correctRequest struct {
	IsCorrect *bool    `json:"is_correct"`
	Score     *float64 `json:"score"`
	Feedback  *string  `json:"feedback"`
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	view, err := h.grading.GetSubmission(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, view)
}

func (h *Handler) handleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.grading.GradeSubmission(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (h *Handler) handlePublishResults(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	out, err := h.grading.PublishSubmissionResults(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (h *Handler) handleGradeResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req gradeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidInput")
		return
	}
	out, err := h.grading.GradeEssayQuestion(r.Context(), model.UserFromContext(r.Context()), id, *req.Score, req.Feedback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (h *Handler) handleCorrectResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req correctRequest
	if !decode(w, r, &req) {
		return
	}
	if req.IsCorrect == nil || req.Score == nil {
		writeMessage(w, r, http.StatusBadRequest, "InvalidInput")
		return
	}
	out, err := h.grading.CorrectObjectiveQuestion(r.Context(), model.UserFromContext(r.Context()), id, *req.IsCorrect, *req.Score, req.Feedback)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, out)
}

func (h *Handler) handleSuggestScore(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sg, err := h.grading.SuggestEssayScore(r.Context(), model.UserFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, sg)
}
