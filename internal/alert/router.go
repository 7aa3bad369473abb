// Package alert decides which notifications an analysis record triggers.
package alert

import (
	"fmt"

	"github.com/kartick026/trafficloud/internal/models"
)

// Router evaluates alert rules against analysis records. Stateless; the
// two rules are independent and both may fire for the same record.
type Router struct {
	congestionThreshold float64
}

// NewRouter creates a Router. A congestion alert fires when the record's
// score is strictly greater than the threshold.
func NewRouter(congestionThreshold float64) *Router {
	return &Router{
		congestionThreshold: congestionThreshold,
	}
}

// Route returns zero or more alert messages for the record. No
// deduplication and no priority suppression between rules.
func (r *Router) Route(record *models.AnalysisRecord) []models.AlertMessage {
	var alerts []models.AlertMessage

	if record.AmbulanceDetected {
		alerts = append(alerts, models.AlertMessage{
			Channel:         models.ChannelHighPriority,
			AlertType:       "HIGH_PRIORITY",
			Message:         fmt.Sprintf("Ambulance detected at %s", record.Location),
			Location:        record.Location,
			Timestamp:       record.Timestamp,
			CongestionScore: record.CongestionScore,
			VehicleCounts:   record.VehicleCounts,
		})
	}

	if record.CongestionScore > r.congestionThreshold {
		alerts = append(alerts, models.AlertMessage{
			Channel:              models.ChannelCongestion,
			AlertType:            "TRAFFIC_CONGESTION",
			Message:              fmt.Sprintf("High traffic congestion detected at %s", record.Location),
			Location:             record.Location,
			Timestamp:            record.Timestamp,
			CongestionScore:      record.CongestionScore,
			ClearanceTimeMinutes: record.ClearanceTimeMinutes,
			VehicleCounts:        record.VehicleCounts,
		})
	}

	return alerts
}
