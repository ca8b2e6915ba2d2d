package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"surveychat/internal/model"
	"surveychat/internal/service"
	"surveychat/internal/validation"
)

// PublicHandler serves respondents; no authentication
type PublicHandler struct {
	surveySvc   *service.SurveyService
	responseSvc *service.ResponseService
	logger      *zap.Logger
}

func NewPublicHandler(surveySvc *service.SurveyService, responseSvc *service.ResponseService, logger *zap.Logger) *PublicHandler {
	return &PublicHandler{surveySvc: surveySvc, responseSvc: responseSvc, logger: logger}
}

// GetSurvey handles GET /v1/public/surveys/{oid}
func (h *PublicHandler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	survey, err := h.surveySvc.GetPublic(r.Context(), mux.Vars(r)["oid"])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, survey)
}

// CheckSubmission handles POST /v1/public/surveys/{oid}/check-submission
func (h *PublicHandler) CheckSubmission(w http.ResponseWriter, r *http.Request) {
	var req model.CheckSubmissionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	check, err := h.responseSvc.Check(r.Context(), mux.Vars(r)["oid"], req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

// Submit handles POST /v1/public/surveys/{oid}/responses
func (h *PublicHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.responseSvc.Submit(r.Context(), mux.Vars(r)["oid"], &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Response submitted successfully", result)
}

// GetSubmission handles GET /v1/public/submissions/{oid}
func (h *PublicHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.responseSvc.GetSubmission(r.Context(), mux.Vars(r)["oid"])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Transcript handles GET /v1/public/submissions/{oid}/transcript
func (h *PublicHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.responseSvc.Transcript(r.Context(), mux.Vars(r)["oid"])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
