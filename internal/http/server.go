// Package http exposes the ingest and read API for the pipeline.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/kartick026/trafficloud/internal/history"
	"github.com/kartick026/trafficloud/internal/models"
	"github.com/kartick026/trafficloud/internal/pipeline"
	"github.com/kartick026/trafficloud/internal/storage"
	"github.com/kartick026/trafficloud/internal/websocket"
)

// Server serves the trafficloud HTTP API.
type Server struct {
	coordinator *pipeline.Coordinator
	store       storage.AnalysisStore
	history     history.Aggregator
	hub         *websocket.Hub
	httpServer  *http.Server
	upgrader    gorillaws.Upgrader
}

// NewServer creates an API server over the pipeline and its stores. The
// hub may be nil; the websocket endpoint then returns 503.
func NewServer(coordinator *pipeline.Coordinator, store storage.AnalysisStore, hist history.Aggregator, hub *websocket.Hub) *Server {
	return &Server{
		coordinator: coordinator,
		store:       store,
		history:     hist,
		hub:         hub,
		upgrader: gorillaws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins serving and blocks until shutdown or listener failure.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analyses/recent", s.handleRecent)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.enableCORS(mux),
	}

	log.Printf("HTTP Server listening on: %s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server with a timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	log.Printf("Stopping HTTP server...")

	// 5 second timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	log.Printf("HTTP server stopped successfully")
	return nil
}

type framesRequest struct {
	Frames []models.FrameReference `json:"frames"`
}

// handleFrames accepts a batch of frame references and runs the pipeline
// over them. The response is non-2xx only when every item failed.
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	var req framesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Frames) == 0 {
		http.Error(w, "No frames in request", http.StatusBadRequest)
		return
	}

	result := s.coordinator.ProcessBatch(r.Context(), req.Frames)

	status := http.StatusOK
	if result.Failed() {
		status = http.StatusBadGateway
	}

	writeJSON(w, status, result)
}

type analyzeRequest struct {
	ImageData string `json:"image_data"`
	Location  string `json:"location"`
}

type analyzeResponse struct {
	Message string                 `json:"message"`
	Result  *models.AnalysisRecord `json:"result"`
}

// handleAnalyze runs one inline image through the pipeline - the direct
// invocation path, bypassing frame storage.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		http.Error(w, "image_data must be base64: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(imageBytes) == 0 {
		http.Error(w, "image_data is required", http.StatusBadRequest)
		return
	}

	record, err := s.coordinator.ProcessImage(r.Context(), imageBytes, req.Location)
	if record == nil {
		http.Error(w, "Analysis failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if err != nil {
		log.Printf("Analysis side effects failed for %s: %v", record.FrameID, err)
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Message: "Traffic analysis completed successfully",
		Result:  record,
	})
}

// handleRecent returns the latest analysis records, newest first.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := s.store.RecentAnalyses(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to query analyses: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"analyses": records})
}

// handleHistory returns one hourly aggregate bucket.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not supported", http.StatusMethodNotAllowed)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date is required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	hour, err := strconv.Atoi(r.URL.Query().Get("hour"))
	if err != nil || hour < 0 || hour > 23 {
		http.Error(w, "hour must be 0-23", http.StatusBadRequest)
		return
	}

	aggregate, err := s.history.Get(r.Context(), date, hour)
	if err != nil {
		if errors.Is(err, history.ErrBucketNotFound) {
			http.Error(w, "No data for requested bucket", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to query history: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, aggregate)
}

// handleWebsocket upgrades the connection and registers it with the hub.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "Live updates unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	s.hub.Register(conn)

	// Drain client frames so pings are answered; unregister on close.
	go func() {
		defer s.hub.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
