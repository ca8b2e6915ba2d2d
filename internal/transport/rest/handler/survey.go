package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"surveychat/internal/model"
	"surveychat/internal/service"
	"surveychat/internal/transport/rest/middleware"
	"surveychat/internal/validation"
)

// SurveyHandler handles author survey endpoints
type SurveyHandler struct {
	surveySvc *service.SurveyService
	inviteSvc *service.InviteService
	logger    *zap.Logger
}

// NewSurveyHandler creates a new survey handler
func NewSurveyHandler(surveySvc *service.SurveyService, inviteSvc *service.InviteService, logger *zap.Logger) *SurveyHandler {
	return &SurveyHandler{
		surveySvc: surveySvc,
		inviteSvc: inviteSvc,
		logger:    logger,
	}
}

// Create handles POST /v1/surveys
func (h *SurveyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.SurveyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	survey, err := h.surveySvc.Create(r.Context(), middleware.GetAuthorID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusCreated, "Survey created", survey)
}

// List handles GET /v1/surveys
func (h *SurveyHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.surveySvc.List(r.Context(), middleware.GetAuthorID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /v1/surveys/{oid}
func (h *SurveyHandler) Get(w http.ResponseWriter, r *http.Request) {
	survey, err := h.surveySvc.Get(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, survey)
}

// Update handles PUT /v1/surveys/{oid}
func (h *SurveyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.SurveyInput
	if !decodeJSON(w, r, &req) {
		return
	}

	survey, err := h.surveySvc.Update(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"], &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Survey updated", survey)
}

// Delete handles DELETE /v1/surveys/{oid}
func (h *SurveyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.surveySvc.Delete(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"]); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Survey deleted", nil)
}

// Publish handles POST /v1/surveys/{oid}/publish
func (h *SurveyHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req model.PublishRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	survey, err := h.surveySvc.SetStatus(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"], req.Action)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Survey status updated", survey)
}

// Invite handles POST /v1/surveys/{oid}/invites
func (h *SurveyHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req model.InviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.inviteSvc.Send(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"], &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
