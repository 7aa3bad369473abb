// Package models defines the data types shared across the trafficloud pipeline.
package models

import (
	"fmt"
	"time"
)

// Detection is one identified object in a frame, as returned by the
// inference service. Immutable once decoded; discarded after being folded
// into an AnalysisRecord.
type Detection struct {
	Class       string     `json:"class"`
	Confidence  float64    `json:"confidence"`
	BoundingBox [4]float64 `json:"bbox"`
}

// VehicleCounts holds per-category vehicle tallies for one frame.
//
// Detections whose class matches no known category are counted into Total
// without incrementing any sub-category, so Total >= Cars+Trucks+Buses+
// Bikes+Ambulances, with equality when every class is recognised.
type VehicleCounts struct {
	Cars       int `json:"cars" bson:"cars"`
	Trucks     int `json:"trucks" bson:"trucks"`
	Buses      int `json:"buses" bson:"buses"`
	Bikes      int `json:"bikes" bson:"bikes"`
	Ambulances int `json:"ambulances" bson:"ambulances"`
	Total      int `json:"total" bson:"total"`
}

// AnalysisRecord is the unit of work output for one processed frame.
// Created once per image, immutable after creation, upserted into the
// point-in-time store keyed by FrameID.
type AnalysisRecord struct {
	FrameID              string        `json:"frame_id" bson:"frame_id"`
	Timestamp            time.Time     `json:"timestamp" bson:"timestamp"`
	Location             string        `json:"location" bson:"location"`
	ImageSizeBytes       int           `json:"image_size" bson:"image_size"`
	VehicleCounts        VehicleCounts `json:"vehicle_counts" bson:"vehicle_counts"`
	CongestionScore      float64       `json:"congestion_score" bson:"congestion_score"`
	ClearanceTimeMinutes int           `json:"clearance_time_minutes" bson:"clearance_time_minutes"`
	AmbulanceDetected    bool          `json:"ambulance_detected" bson:"ambulance_detected"`
	DetectionConfidence  float64       `json:"detection_confidence" bson:"detection_confidence"`
}

// NewFrameID builds the deterministic point-in-time store key for a frame.
// Second resolution - two frames from the same location within the same
// second share an id and the later upsert wins.
func NewFrameID(location string, ts time.Time) string {
	return fmt.Sprintf("%s_%d", location, ts.Unix())
}

// HourlyAggregate is the rolling per-hour rollup keyed by (Date, Hour).
// Created on the first record falling in the bucket, mutated additively by
// every subsequent record, never deleted by the pipeline.
type HourlyAggregate struct {
	Date          string    `json:"date"`
	Hour          int       `json:"hour"`
	TotalVehicles int       `json:"total_vehicles"`
	AnalysisCount int       `json:"analysis_count"`
	LastUpdated   time.Time `json:"last_updated"`
}

// BucketOf derives the aggregate bucket key from a record timestamp.
func BucketOf(ts time.Time) (date string, hour int) {
	utc := ts.UTC()
	return utc.Format("2006-01-02"), utc.Hour()
}

// AlertChannel selects the notification destination for an alert.
type AlertChannel string

const (
	ChannelHighPriority AlertChannel = "HIGH_PRIORITY"
	ChannelCongestion   AlertChannel = "CONGESTION"
)

// AlertMessage is an ephemeral notification payload. It exists only long
// enough to be handed to the publisher for its channel.
type AlertMessage struct {
	Channel              AlertChannel  `json:"-"`
	AlertType            string        `json:"alert_type"`
	Message              string        `json:"message"`
	Location             string        `json:"location"`
	Timestamp            time.Time     `json:"timestamp"`
	CongestionScore      float64       `json:"congestion_score"`
	ClearanceTimeMinutes int           `json:"clearance_time_minutes,omitempty"`
	VehicleCounts        VehicleCounts `json:"vehicle_counts"`
}

// FrameReference identifies one stored frame to analyse.
type FrameReference struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r FrameReference) String() string {
	if r.Bucket == "" {
		return r.Key
	}
	return r.Bucket + "/" + r.Key
}

// ItemError records a single failed item within a batch.
type ItemError struct {
	Reference string `json:"reference"`
	Message   string `json:"message"`
}

// BatchResult summarises one batch invocation.
type BatchResult struct {
	ProcessedCount int         `json:"processed_count"`
	Errors         []ItemError `json:"errors"`
}

// Failed reports whether every item in the batch failed.
func (b BatchResult) Failed() bool {
	return b.ProcessedCount == 0 && len(b.Errors) > 0
}
