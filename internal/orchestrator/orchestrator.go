// Package orchestrator wires the trafficloud service together.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"github.com/kartick026/trafficloud/internal/alert"
	"github.com/kartick026/trafficloud/internal/analyzer"
	"github.com/kartick026/trafficloud/internal/config"
	"github.com/kartick026/trafficloud/internal/detector"
	"github.com/kartick026/trafficloud/internal/eventbus"
	"github.com/kartick026/trafficloud/internal/framestore"
	"github.com/kartick026/trafficloud/internal/history"
	httpserver "github.com/kartick026/trafficloud/internal/http"
	"github.com/kartick026/trafficloud/internal/pipeline"
	"github.com/kartick026/trafficloud/internal/storage"
	"github.com/kartick026/trafficloud/internal/watch"
	"github.com/kartick026/trafficloud/internal/websocket"
)

// Orchestrator manages the service lifecycle and coordinates the analysis
// pipeline's collaborators.
//
// Lifecycle:
//  1. Start() - connects stores, event bus, and inference client, builds
//     the pipeline, HTTP server, hub, and watcher
//  2. Run() - serves the HTTP API until the context is cancelled
//  3. Stop() - gracefully closes all connections and resources
//
// The orchestrator implements graceful degradation:
//   - NATS failure: records are analysed and persisted but alerts are not
//     dispatched
//   - Watcher failure: spool ingestion unavailable, the HTTP API still works
//
// Store connections are required: without them the pipeline cannot honour
// its persistence contract, so their failure aborts startup.
type Orchestrator struct {
	config *config.Config

	store     storage.AnalysisStore
	history   history.Aggregator
	publisher *eventbus.Publisher
	hub       *websocket.Hub

	coordinator *pipeline.Coordinator
	httpServer  *httpserver.Server
	watcher     *watch.Watcher
}

// NewOrchestrator creates an Orchestrator with the provided configuration.
// Nothing is connected until Start() is called.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		config: cfg,
	}
}

// Start initialises all service connections and builds the pipeline.
// This method must be called before Run().
func (o *Orchestrator) Start(ctx context.Context) error {
	log.Printf("Starting trafficloud orchestrator...")

	store, err := storage.New(ctx, o.config.AnalysisStore, o.config.MongoURI, o.config.MongoDatabase)
	if err != nil {
		return fmt.Errorf("failed to initialise analysis store: %w", err)
	}
	o.store = store

	aggregator, err := history.New(o.config.HistoryStore, o.config.RedisAddr, o.config.RedisPassword, o.config.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to initialise history store: %w", err)
	}
	o.history = aggregator

	o.connectNATS() // Optional - warnings logged on failure

	o.hub = websocket.NewHub()
	go o.hub.Run()

	o.coordinator = pipeline.NewCoordinator(
		framestore.NewLocalStore(o.config.SpoolDir),
		o.buildDetectionClient(),
		analyzer.New(o.config.ConfidenceThreshold),
		o.store,
		o.history,
		alert.NewRouter(o.config.CongestionThreshold),
		o.alertPublisher(),
		o.hub,
		pipeline.Options{
			ConfidenceThreshold: o.config.ConfidenceThreshold,
			WorkerCount:         o.config.WorkerCount,
			ItemTimeout:         o.config.ItemTimeout,
		},
	)

	o.httpServer = httpserver.NewServer(o.coordinator, o.store, o.history, o.hub)

	if o.config.EnableWatcher {
		o.watcher = watch.New(o.config.SpoolDir, o.coordinator)
	}

	log.Printf("Orchestrator started successfully")
	return nil
}

func (o *Orchestrator) buildDetectionClient() *detector.Client {
	opts := []detector.Option{
		detector.WithTimeout(o.config.ItemTimeout),
		detector.WithRetry(o.config.RetryMax, o.config.RetryBackoff),
	}

	if o.config.AllowMockDetections {
		log.Printf("WARNING: mock detection fallback ENABLED - development mode only")
		opts = append(opts, detector.WithMockFallback())
	}

	return detector.NewClient(o.config.InferenceEndpoint, opts...)
}

// connectNATS establishes the alert publisher connection. Optional:
// failure logs a warning and alerts are dropped until restart.
func (o *Orchestrator) connectNATS() {
	if o.config.NatsURL == "" {
		log.Printf("NATS URL not configured, skipping connection")
		return
	}

	log.Printf("Connecting to NATS at: %s", o.config.NatsURL)

	publisher, err := eventbus.NewPublisher(o.config.NatsURL, o.config.SubjectHighPriority, o.config.SubjectCongestion)
	if err != nil {
		log.Printf("Warning: failed to connect NATS publisher: %v", err)
		log.Printf("Alerts will not be dispatched")
		return
	}

	o.publisher = publisher
}

// alertPublisher adapts the optional NATS connection to the pipeline's
// publisher dependency. A typed-nil *Publisher must not leak into the
// interface value.
func (o *Orchestrator) alertPublisher() pipeline.AlertPublisher {
	if o.publisher == nil {
		return nil
	}
	return o.publisher
}

// Run starts the watcher and HTTP server and blocks until the context is
// cancelled or the server fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.watcher != nil {
		if err := o.watcher.Backfill(ctx); err != nil {
			log.Printf("Warning: spool backfill failed: %v", err)
		}
		if err := o.watcher.Start(ctx); err != nil {
			log.Printf("Warning: failed to start spool watcher: %v", err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- o.httpServer.Start(":" + o.config.HTTPPort)
	}()

	log.Printf("trafficloud ready - accepting frames on port %s", o.config.HTTPPort)

	select {
	case <-ctx.Done():
		log.Printf("Shutdown signal received")
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully closes all connections and releases resources.
func (o *Orchestrator) Stop() error {
	log.Printf("Stopping orchestrator...")

	if o.httpServer != nil {
		if err := o.httpServer.Stop(); err != nil {
			log.Printf("Error stopping HTTP server: %v", err)
		}
	}

	if o.hub != nil {
		o.hub.Stop()
	}

	if o.publisher != nil {
		o.publisher.Close()
	}

	ctx := context.Background()

	if o.history != nil {
		if err := o.history.Close(); err != nil {
			log.Printf("Error closing history store: %v", err)
		}
	}

	if o.store != nil {
		if err := o.store.Close(ctx); err != nil {
			log.Printf("Error closing analysis store: %v", err)
		}
	}

	log.Printf("Orchestrator stopped successfully")
	return nil
}
