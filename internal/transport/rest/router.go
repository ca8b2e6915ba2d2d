package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"surveychat/internal/service"
	"surveychat/internal/transport/rest/handler"
	"surveychat/internal/transport/rest/middleware"
	"surveychat/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService     *service.AuthService
	SurveyService   *service.SurveyService
	ResponseService *service.ResponseService
	ReportService   *service.ReportService
	InviteService   *service.InviteService
	WSHub           *ws.Hub
	AllowedOrigins  []string
	RateLimiter     *middleware.RateLimiter
	Logger          *zap.Logger
	// Health reports dependency status; nil means always healthy
	Health func(r *http.Request) error
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService, logger)
	surveyHandler := handler.NewSurveyHandler(c.SurveyService, c.InviteService, logger)
	publicHandler := handler.NewPublicHandler(c.SurveyService, c.ResponseService, logger)
	reportHandler := handler.NewReportHandler(c.ReportService, c.ResponseService, logger)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SurveyService, c.AllowedOrigins, logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)
	limiter := c.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(5, 10)
	}

	// CORS first so preflights never hit auth
	r.Use(middleware.CORS(c.AllowedOrigins))
	r.Use(middleware.RequestLogger(logger))

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if c.Health != nil {
			if err := c.Health(req); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Auth routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/token/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	v1.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	// Public respondent routes
	public := v1.PathPrefix("/public").Subrouter()
	public.HandleFunc("/surveys/{oid}", publicHandler.GetSurvey).Methods("GET", "OPTIONS")
	public.HandleFunc("/submissions/{oid}", publicHandler.GetSubmission).Methods("GET", "OPTIONS")
	public.HandleFunc("/submissions/{oid}/transcript", publicHandler.Transcript).Methods("GET", "OPTIONS")

	limited := public.NewRoute().Subrouter()
	limited.Use(limiter.Middleware)
	limited.HandleFunc("/surveys/{oid}/check-submission", publicHandler.CheckSubmission).Methods("POST", "OPTIONS")
	limited.HandleFunc("/surveys/{oid}/responses", publicHandler.Submit).Methods("POST", "OPTIONS")

	// WebSocket routes (token in query param)
	v1.HandleFunc("/ws/surveys/{oid}", wsHandler.SurveyWS).Methods("GET")

	// Author routes (require author auth)
	authorRoutes := v1.NewRoute().Subrouter()
	authorRoutes.Use(authMW.RequireAuthor)

	authorRoutes.HandleFunc("/surveys", surveyHandler.Create).Methods("POST", "OPTIONS")
	authorRoutes.HandleFunc("/surveys", surveyHandler.List).Methods("GET", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}", surveyHandler.Get).Methods("GET", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}", surveyHandler.Update).Methods("PUT", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}", surveyHandler.Delete).Methods("DELETE", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}/publish", surveyHandler.Publish).Methods("POST", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}/invites", surveyHandler.Invite).Methods("POST", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}/responses", reportHandler.Responses).Methods("GET", "OPTIONS")
	authorRoutes.HandleFunc("/surveys/{oid}/summary", reportHandler.Summary).Methods("GET", "OPTIONS")

	return r
}
