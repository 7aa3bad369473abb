package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kartick026/trafficloud/internal/alert"
	"github.com/kartick026/trafficloud/internal/analyzer"
	"github.com/kartick026/trafficloud/internal/framestore"
	"github.com/kartick026/trafficloud/internal/history"
	"github.com/kartick026/trafficloud/internal/models"
	"github.com/kartick026/trafficloud/internal/pipeline"
	"github.com/kartick026/trafficloud/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	detections []models.Detection
}

func (s *stubDetector) Detect(ctx context.Context, imageBytes []byte, threshold float64) ([]models.Detection, error) {
	return s.detections, nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestServer(t *testing.T, framesDir string, det pipeline.DetectionClient) (*Server, *storage.MemoryStore, *history.MemoryAggregator) {
	t.Helper()

	store := storage.NewMemoryStore()
	agg := history.NewMemoryAggregator()

	coordinator := pipeline.NewCoordinator(
		framestore.NewLocalStore(framesDir),
		det,
		analyzer.New(0.5),
		store,
		agg,
		alert.NewRouter(0.7),
		nil,
		nil,
		pipeline.Options{ConfidenceThreshold: 0.5, WorkerCount: 2},
	)

	return NewServer(coordinator, store, agg, nil), store, agg
}

func (s *Server) testHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/analyses/recent", s.handleRecent)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/health", s.handleHealth)
	return s.enableCORS(mux)
}

func TestHandleAnalyze(t *testing.T) {
	server, store, _ := newTestServer(t, t.TempDir(), &stubDetector{detections: []models.Detection{
		{Class: "car", Confidence: 0.9},
	}})

	body, err := json.Marshal(map[string]string{
		"image_data": base64.StdEncoding.EncodeToString(encodePNG(t, 640, 480)),
		"location":   "main-street",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body))
	server.testHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Traffic analysis completed successfully", resp.Message)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "main-street", resp.Result.Location)
	assert.Equal(t, 1, resp.Result.VehicleCounts.Cars)
	assert.Equal(t, 1, store.Len())
}

func TestHandleAnalyze_BadBase64(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze",
		strings.NewReader(`{"image_data":"%%%not-base64%%%","location":"x"}`))
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyze_MethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleFrames_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "main-street"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main-street", "ok.png"), encodePNG(t, 64, 64), 0o644))

	server, _, _ := newTestServer(t, dir, &stubDetector{})

	body := `{"frames":[{"bucket":"traffic","key":"main-street/ok.png"},{"bucket":"traffic","key":"main-street/missing.png"}]}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/frames", strings.NewReader(body))
	server.testHandler().ServeHTTP(rec, req)

	// One success keeps the batch 2xx.
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.BatchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Len(t, result.Errors, 1)
}

func TestHandleFrames_AllFailed(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	body := `{"frames":[{"key":"cam/missing.png"}]}`

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/frames", strings.NewReader(body))
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleFrames_EmptyBatch(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/frames", strings.NewReader(`{"frames":[]}`))
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecent(t *testing.T) {
	server, store, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	require.NoError(t, store.PutAnalysis(context.Background(), &models.AnalysisRecord{
		FrameID:   "main-street_1788186600",
		Timestamp: time.Now().UTC(),
		Location:  "main-street",
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analyses/recent?limit=5", nil)
	server.testHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Analyses []models.AnalysisRecord `json:"analyses"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Analyses, 1)
	assert.Equal(t, "main-street_1788186600", resp.Analyses[0].FrameID)
}

func TestHandleRecent_BadLimit(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analyses/recent?limit=zero", nil)
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHistory(t *testing.T) {
	server, _, agg := newTestServer(t, t.TempDir(), &stubDetector{})

	now := time.Now().UTC()
	require.NoError(t, agg.Accumulate(context.Background(), "2026-08-31", 14, 5, now))
	require.NoError(t, agg.Accumulate(context.Background(), "2026-08-31", 14, 3, now))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history?date=2026-08-31&hour=14", nil)
	server.testHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var aggregate models.HourlyAggregate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&aggregate))
	assert.Equal(t, 8, aggregate.TotalVehicles)
	assert.Equal(t, 2, aggregate.AnalysisCount)
}

func TestHandleHistory_MissingBucket(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history?date=2026-08-31&hour=3", nil)
	server.testHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHistory_Validation(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	for _, target := range []string{
		"/api/history",
		"/api/history?date=31-08-2026&hour=14",
		"/api/history?date=2026-08-31&hour=24",
		"/api/history?date=2026-08-31&hour=-1",
		"/api/history?date=2026-08-31",
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		server.testHandler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandleHealth(t *testing.T) {
	server, _, _ := newTestServer(t, t.TempDir(), &stubDetector{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.testHandler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
