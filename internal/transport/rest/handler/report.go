package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"surveychat/internal/service"
	"surveychat/internal/transport/rest/middleware"
)

const defaultPageSize = 50

// ReportHandler handles author review endpoints
type ReportHandler struct {
	reportSvc   *service.ReportService
	responseSvc *service.ResponseService
	logger      *zap.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportSvc *service.ReportService, responseSvc *service.ResponseService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc, responseSvc: responseSvc, logger: logger}
}

// Responses handles GET /v1/surveys/{oid}/responses?limit=&offset=
func (h *ReportHandler) Responses(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)

	items, err := h.responseSvc.List(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"], limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Summary handles GET /v1/surveys/{oid}/summary
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reportSvc.Summary(r.Context(), middleware.GetAuthorID(r.Context()), mux.Vars(r)["oid"])
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func queryInt(r *http.Request, key string, def int64) int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
