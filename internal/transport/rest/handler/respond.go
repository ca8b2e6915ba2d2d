package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"surveychat/internal/logging"
	"surveychat/internal/service"
	"surveychat/internal/validation"
)

const maxBodyBytes = 1 << 20

// envelope is the response shape of every API route
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, envelope{Error: message})
}

func writeErrorData(w http.ResponseWriter, status int, message string, data interface{}) {
	writeEnvelope(w, status, envelope{Error: message, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service and validation errors onto status codes
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var fieldErr *validation.FieldError
	var answerErr *service.AnswerError
	var conflict *service.ConflictError

	switch {
	case errors.As(err, &conflict):
		writeErrorData(w, http.StatusConflict, conflict.Error(), conflict.Info)
	case errors.As(err, &fieldErr):
		writeErrorData(w, http.StatusBadRequest, fieldErr.Error(), map[string]string{"field": fieldErr.Field})
	case errors.As(err, &answerErr):
		writeErrorData(w, http.StatusBadRequest, answerErr.Message, map[string]string{
			"question_key": answerErr.Key,
			"reason":       string(answerErr.Reason),
		})
	case errors.Is(err, service.ErrSurveyNotFound), errors.Is(err, service.ErrResponseNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSurveyNotActive), errors.Is(err, service.ErrNoQuestions):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSurveyHasResponses):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logging.FromContext(r.Context(), logger).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
