// Package api provides the HTTP REST API server for secqa.
//
// It exposes endpoints for ticker resolution, filing lookup, filing text
// retrieval, and filing question-answering.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/secqa/internal/config"
	"github.com/seenimoa/secqa/internal/edgar"
	"github.com/seenimoa/secqa/internal/infra"
	"github.com/seenimoa/secqa/internal/llm"
	"github.com/seenimoa/secqa/internal/qa"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	svc    *qa.Service
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc *qa.Service) *Server {
	s := &Server{cfg: cfg, svc: svc}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/ask/batch", s.handleAskBatch)

		r.Get("/companies/{ticker}", s.handleResolve)
		r.Get("/companies/{ticker}/filings", s.handleFilings)
		r.Get("/companies/{ticker}/filings/latest/text", s.handleFilingText)

		r.Get("/config/keys", s.handleConfigKeys)
	})

	return r
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope. Stage identifies which step
// failed (resolve, locate, download, inference) so clients can branch.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// AskBatchRequest is the body for POST /api/v1/ask/batch.
type AskBatchRequest struct {
	Question string   `json:"question"`
	Tickers  []string `json:"tickers"`
	FormType string   `json:"form_type,omitempty"`
	Year     int      `json:"year,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req qa.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Question == "" || req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "question and ticker are required", "")
		return
	}

	answer, err := s.svc.Ask(r.Context(), req)
	if err != nil {
		status, stage := classifyError(err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: answer})
}

func (s *Server) handleAskBatch(w http.ResponseWriter, r *http.Request) {
	var req AskBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Question == "" || len(req.Tickers) == 0 {
		writeError(w, http.StatusBadRequest, "question and tickers are required", "")
		return
	}

	results, err := s.svc.AskEach(r.Context(), req.Question, req.Tickers, req.FormType, req.Year, 0)
	if err != nil {
		status, stage := classifyError(err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: results})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	company, err := s.svc.Resolve(r.Context(), ticker)
	if err != nil {
		status, stage := classifyError(err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: company})
}

func (s *Server) handleFilings(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	form := r.URL.Query().Get("form")
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	filings, err := s.svc.Filings(r.Context(), ticker, form, limit)
	if err != nil {
		status, stage := classifyError(err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: filings})
}

func (s *Server) handleFilingText(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	form := r.URL.Query().Get("form")
	if form == "" {
		form = "10-Q"
	}
	year := 0
	if y := r.URL.Query().Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid year %q", y), "")
			return
		}
		year = n
	}

	doc, err := s.svc.FilingText(r.Context(), ticker, form, year)
	if err != nil {
		status, stage := classifyError(err)
		writeError(w, status, err.Error(), stage)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: doc})
}

func (s *Server) handleConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// ============================================================
// Helpers
// ============================================================

// classifyError maps an error to an HTTP status and the pipeline stage that
// produced it.
func classifyError(err error) (int, string) {
	var httpErr *infra.ErrHTTP
	switch {
	case errors.Is(err, edgar.ErrTickerNotFound):
		return http.StatusNotFound, "resolve"
	case errors.Is(err, edgar.ErrNoFilings):
		return http.StatusNotFound, "locate"
	case errors.Is(err, edgar.ErrEmptyDocument):
		return http.StatusBadGateway, "download"
	case errors.Is(err, llm.ErrRateLimit), errors.Is(err, llm.ErrProviderDown),
		errors.Is(err, llm.ErrContextLength), errors.Is(err, llm.ErrNoAPIKey):
		return http.StatusBadGateway, "inference"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "download"
	case errors.As(err, &httpErr):
		return http.StatusBadGateway, "download"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
		Stage:   stage,
	})
}
