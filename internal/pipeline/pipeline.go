// Package pipeline coordinates one end-to-end traffic analysis per frame
// and fans batches out over a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kartick026/trafficloud/internal/alert"
	"github.com/kartick026/trafficloud/internal/analyzer"
	"github.com/kartick026/trafficloud/internal/framestore"
	"github.com/kartick026/trafficloud/internal/history"
	"github.com/kartick026/trafficloud/internal/imagemeta"
	"github.com/kartick026/trafficloud/internal/models"
	"github.com/kartick026/trafficloud/internal/storage"
)

// ItemState tracks a frame's progress through the pipeline. ERROR is
// terminal and only reachable before persistence begins; persistence and
// notification failures are best-effort side effects that leave the item
// completed.
type ItemState string

const (
	StateReceived  ItemState = "RECEIVED"
	StateDetected  ItemState = "DETECTED"
	StateAnalyzed  ItemState = "ANALYZED"
	StatePersisted ItemState = "PERSISTED"
	StateNotified  ItemState = "NOTIFIED"
	StateDone      ItemState = "DONE"
	StateError     ItemState = "ERROR"
)

// DetectionClient obtains vehicle detections for a frame.
type DetectionClient interface {
	Detect(ctx context.Context, imageBytes []byte, confidenceThreshold float64) ([]models.Detection, error)
}

// AlertPublisher dispatches one alert message to its channel's destination.
type AlertPublisher interface {
	PublishAlert(alert models.AlertMessage) error
}

// RecordBroadcaster pushes processed records to live dashboard clients.
type RecordBroadcaster interface {
	BroadcastRecord(record *models.AnalysisRecord)
}

// Coordinator drives the analysis pipeline. All collaborators are injected;
// the coordinator holds no global state and items share nothing in-process.
type Coordinator struct {
	frames    framestore.FrameSource
	detector  DetectionClient
	analyzer  *analyzer.Analyzer
	store     storage.AnalysisStore
	history   history.Aggregator
	router    *alert.Router
	publisher AlertPublisher
	hub       RecordBroadcaster

	confidenceThreshold float64
	workerCount         int
	itemTimeout         time.Duration

	// now is swappable for tests; frame ids derive from it.
	now func() time.Time
}

// Options carries the pipeline tuning knobs.
type Options struct {
	ConfidenceThreshold float64
	WorkerCount         int
	ItemTimeout         time.Duration
}

// NewCoordinator wires a Coordinator from its collaborators. Publisher and
// hub may be nil; alerting and broadcasting then become no-ops.
func NewCoordinator(
	frames framestore.FrameSource,
	det DetectionClient,
	an *analyzer.Analyzer,
	store storage.AnalysisStore,
	hist history.Aggregator,
	router *alert.Router,
	publisher AlertPublisher,
	hub RecordBroadcaster,
	opts Options,
) *Coordinator {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 30 * time.Second
	}

	return &Coordinator{
		frames:              frames,
		detector:            det,
		analyzer:            an,
		store:               store,
		history:             hist,
		router:              router,
		publisher:           publisher,
		hub:                 hub,
		confidenceThreshold: opts.ConfidenceThreshold,
		workerCount:         opts.WorkerCount,
		itemTimeout:         opts.ItemTimeout,
		now:                 time.Now,
	}
}

// ProcessBatch analyses each referenced frame, up to workerCount at a time.
// Items are independent: one bad frame never aborts the batch, and each
// item runs under its own deadline so a hung inference call cannot stall
// the rest. Items whose record was computed count as processed even when a
// best-effort side effect failed; the side-effect error still lands in the
// error list.
func (c *Coordinator) ProcessBatch(ctx context.Context, refs []models.FrameReference) models.BatchResult {
	var (
		mu     sync.Mutex
		result models.BatchResult
		wg     sync.WaitGroup
	)

	sem := make(chan struct{}, c.workerCount)

	for _, ref := range refs {
		wg.Add(1)
		sem <- struct{}{}

		go func(ref models.FrameReference) {
			defer wg.Done()
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, c.itemTimeout)
			defer cancel()

			record, err := c.ProcessFrame(itemCtx, ref)

			mu.Lock()
			defer mu.Unlock()

			if record != nil {
				result.ProcessedCount++
			}
			if err != nil {
				log.Printf("Frame %s: %v", ref, err)
				result.Errors = append(result.Errors, models.ItemError{
					Reference: ref.String(),
					Message:   err.Error(),
				})
			}
		}(ref)
	}

	wg.Wait()

	log.Printf("Batch complete: %d processed, %d errors", result.ProcessedCount, len(result.Errors))
	return result
}

// ProcessFrame resolves one frame reference and analyses it.
func (c *Coordinator) ProcessFrame(ctx context.Context, ref models.FrameReference) (*models.AnalysisRecord, error) {
	imageBytes, err := c.frames.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch frame: %w", err)
	}

	return c.ProcessImage(ctx, imageBytes, framestore.LocationFromKey(ref.Key))
}

// ProcessImage runs one analysis end-to-end: detect, derive metrics,
// persist the record, fold it into hourly history, and dispatch alerts.
//
// A nil record means the item failed outright (ERROR state: fetch or
// detection). A non-nil record with a non-nil error means the analysis
// completed but a best-effort side effect (persistence, history,
// notification) failed; the record stands and the caller decides how to
// surface the error.
func (c *Coordinator) ProcessImage(ctx context.Context, imageBytes []byte, location string) (*models.AnalysisRecord, error) {
	if location == "" {
		location = "unknown"
	}

	detections, err := c.detector.Detect(ctx, imageBytes, c.confidenceThreshold)
	if err != nil {
		return nil, fmt.Errorf("detection failed (%s -> %s): %w", StateReceived, StateError, err)
	}

	width, height, dimErr := imagemeta.Dimensions(imageBytes)

	metrics, err := c.analyzer.Analyze(detections, width, height)
	if err != nil {
		// Degraded, not fatal: the neutral record is persisted so the gap
		// stays visible in history.
		log.Printf("WARNING: analysis degraded for %s: %v (image error: %v)", location, err, dimErr)
	}

	ts := c.now().UTC()
	record := &models.AnalysisRecord{
		FrameID:              models.NewFrameID(location, ts),
		Timestamp:            ts,
		Location:             location,
		ImageSizeBytes:       len(imageBytes),
		VehicleCounts:        metrics.VehicleCounts,
		CongestionScore:      metrics.CongestionScore,
		ClearanceTimeMinutes: metrics.ClearanceTimeMinutes,
		AmbulanceDetected:    metrics.AmbulanceDetected,
		DetectionConfidence:  metrics.DetectionConfidence,
	}

	state := StateAnalyzed
	var sideEffectErrs []error

	if err := c.store.PutAnalysis(ctx, record); err != nil {
		log.Printf("Error storing analysis %s: %v", record.FrameID, err)
		sideEffectErrs = append(sideEffectErrs, fmt.Errorf("persistence: %w", err))
	}

	date, hour := models.BucketOf(record.Timestamp)
	if err := c.history.Accumulate(ctx, date, hour, record.VehicleCounts.Total, record.Timestamp); err != nil {
		log.Printf("Error accumulating history for %s hour %d: %v", date, hour, err)
		sideEffectErrs = append(sideEffectErrs, fmt.Errorf("history: %w", err))
	}
	state = StatePersisted

	for _, msg := range c.router.Route(record) {
		if c.publisher == nil {
			break
		}
		if err := c.publisher.PublishAlert(msg); err != nil {
			log.Printf("Error publishing %s alert for %s: %v", msg.Channel, record.FrameID, err)
			sideEffectErrs = append(sideEffectErrs, fmt.Errorf("notification: %w", err))
		}
	}
	state = StateNotified

	if c.hub != nil {
		c.hub.BroadcastRecord(record)
	}
	state = StateDone

	log.Printf("Analysed frame %s: %d vehicles, congestion %.3f, clearance %dm, state %s",
		record.FrameID, record.VehicleCounts.Total, record.CongestionScore,
		record.ClearanceTimeMinutes, state)

	return record, errors.Join(sideEffectErrs...)
}
