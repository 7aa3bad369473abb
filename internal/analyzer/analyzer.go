// Package analyzer derives traffic metrics from raw vehicle detections.
package analyzer

import (
	"errors"
	"math"
	"strings"

	"github.com/kartick026/trafficloud/internal/models"
)

// Clearance-time regression constants. These form a fixed linear heuristic,
// not a calibrated model; changing them changes stored history semantics.
const (
	clearanceBaseMinutes    = 5.0
	clearancePerVehicle     = 0.5
	clearancePerCongestion  = 10.0
	clearanceCapMinutes     = 60
	congestionPixelsPerUnit = 10000.0
)

// ErrBadDimensions signals that the frame dimensions were unusable and a
// neutral zero Metrics was returned in place of computed values. Callers
// should log it as a warning and persist the neutral record anyway, so the
// gap stays visible in history.
var ErrBadDimensions = errors.New("analyzer: invalid image dimensions")

// Metrics is the analyser output for one frame, before the coordinator
// attaches identity fields (frame id, timestamp, location, size).
type Metrics struct {
	VehicleCounts        models.VehicleCounts
	CongestionScore      float64
	ClearanceTimeMinutes int
	AmbulanceDetected    bool
	DetectionConfidence  float64
}

// Analyzer turns detection lists into traffic metrics.
type Analyzer struct {
	confidenceThreshold float64
}

// New creates an Analyzer. Detections at or below the confidence threshold
// are not counted (strict greater-than comparison).
func New(confidenceThreshold float64) *Analyzer {
	return &Analyzer{
		confidenceThreshold: confidenceThreshold,
	}
}

// Analyze computes traffic metrics from detections and frame dimensions.
//
// The reported mean DetectionConfidence averages over the full detection
// list, including detections that fall below the counting threshold. Counts
// only include detections above it. This mismatch is intentional and matches
// the stored history produced by earlier deployments.
//
// When dimensions are unusable the returned Metrics is all-zero and the
// error is ErrBadDimensions; the frame is degraded, not fatal.
func (a *Analyzer) Analyze(detections []models.Detection, width, height int) (Metrics, error) {
	if width <= 0 || height <= 0 {
		return Metrics{}, ErrBadDimensions
	}

	var m Metrics

	for _, d := range detections {
		if d.Confidence <= a.confidenceThreshold {
			continue
		}

		switch strings.ToLower(d.Class) {
		case "car":
			m.VehicleCounts.Cars++
		case "truck":
			m.VehicleCounts.Trucks++
		case "bus":
			m.VehicleCounts.Buses++
		case "bike", "motorcycle":
			m.VehicleCounts.Bikes++
		case "ambulance":
			m.VehicleCounts.Ambulances++
			m.AmbulanceDetected = true
		}

		// Unrecognised classes still count towards the total.
		m.VehicleCounts.Total++
	}

	// Clearance derives from the raw score; only the stored score is
	// rounded for presentation.
	score := congestionScore(m.VehicleCounts.Total, width, height)
	m.CongestionScore = math.Round(score*1000) / 1000
	m.ClearanceTimeMinutes = predictClearanceTime(m.VehicleCounts.Total, score)
	m.DetectionConfidence = meanConfidence(detections)

	return m, nil
}

// congestionScore normalises vehicle density to [0,1]: one vehicle per
// 10,000 pixels of frame area saturates the scale.
func congestionScore(total, width, height int) float64 {
	frameArea := float64(width) * float64(height)
	return math.Min(float64(total)/(frameArea/congestionPixelsPerUnit), 1.0)
}

// predictClearanceTime estimates minutes until congestion resolves via the
// fixed linear regression, truncated to whole minutes and capped.
func predictClearanceTime(total int, congestion float64) int {
	predicted := clearanceBaseMinutes + float64(total)*clearancePerVehicle + congestion*clearancePerCongestion
	if minutes := int(predicted); minutes < clearanceCapMinutes {
		return minutes
	}
	return clearanceCapMinutes
}

// meanConfidence averages confidence over every detection in the list.
func meanConfidence(detections []models.Detection) float64 {
	if len(detections) == 0 {
		return 0
	}

	var sum float64
	for _, d := range detections {
		sum += d.Confidence
	}
	return sum / float64(len(detections))
}
