package analyzer

import (
	"testing"

	"github.com/kartick026/trafficloud/internal/models"
	"github.com/stretchr/testify/assert"
)

func det(class string, confidence float64) models.Detection {
	return models.Detection{
		Class:       class,
		Confidence:  confidence,
		BoundingBox: [4]float64{100, 100, 200, 200},
	}
}

func TestAnalyze_CountsByCategory(t *testing.T) {
	a := New(0.5)

	detections := []models.Detection{
		det("car", 0.9),
		det("Car", 0.8),
		det("truck", 0.7),
		det("bus", 0.95),
		det("bike", 0.6),
		det("motorcycle", 0.6),
		det("ambulance", 0.85),
	}

	m, err := a.Analyze(detections, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 2, m.VehicleCounts.Cars)
	assert.Equal(t, 1, m.VehicleCounts.Trucks)
	assert.Equal(t, 1, m.VehicleCounts.Buses)
	assert.Equal(t, 2, m.VehicleCounts.Bikes)
	assert.Equal(t, 1, m.VehicleCounts.Ambulances)
	assert.Equal(t, 7, m.VehicleCounts.Total)
	assert.True(t, m.AmbulanceDetected)
}

func TestAnalyze_UnknownClassCountsTotalOnly(t *testing.T) {
	a := New(0.5)

	m, err := a.Analyze([]models.Detection{
		det("car", 0.9),
		det("pedestrian", 0.9),
		det("traffic_light", 0.8),
	}, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 1, m.VehicleCounts.Cars)
	assert.Equal(t, 3, m.VehicleCounts.Total)

	categorySum := m.VehicleCounts.Cars + m.VehicleCounts.Trucks + m.VehicleCounts.Buses +
		m.VehicleCounts.Bikes + m.VehicleCounts.Ambulances
	assert.GreaterOrEqual(t, m.VehicleCounts.Total, categorySum)
}

func TestAnalyze_ConfidenceFilterIsStrict(t *testing.T) {
	a := New(0.5)

	// Boundary value 0.5 itself is excluded.
	m, err := a.Analyze([]models.Detection{
		det("car", 0.5),
		det("car", 0.51),
	}, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 1, m.VehicleCounts.Cars)
	assert.Equal(t, 1, m.VehicleCounts.Total)
}

func TestAnalyze_LowConfidenceScenario(t *testing.T) {
	a := New(0.5)

	detections := []models.Detection{
		det("car", 0.51),
		det("ambulance", 0.51),
	}
	for i := 0; i < 8; i++ {
		detections = append(detections, det("car", 0.3))
	}

	m, err := a.Analyze(detections, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 1, m.VehicleCounts.Cars)
	assert.Equal(t, 1, m.VehicleCounts.Ambulances)
	assert.Equal(t, 2, m.VehicleCounts.Total)
	assert.True(t, m.AmbulanceDetected)
}

func TestAnalyze_AmbulanceBelowThresholdNotDetected(t *testing.T) {
	a := New(0.5)

	m, err := a.Analyze([]models.Detection{det("ambulance", 0.4)}, 1920, 1080)

	assert.NoError(t, err)
	assert.False(t, m.AmbulanceDetected)
	assert.Equal(t, 0, m.VehicleCounts.Ambulances)
}

func TestAnalyze_EmptyDetections(t *testing.T) {
	a := New(0.5)

	m, err := a.Analyze(nil, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 0, m.VehicleCounts.Total)
	assert.Equal(t, 0.0, m.CongestionScore)
	assert.Equal(t, 5, m.ClearanceTimeMinutes)
	assert.Equal(t, 0.0, m.DetectionConfidence)
	assert.False(t, m.AmbulanceDetected)
}

func TestAnalyze_CongestionScoreClamped(t *testing.T) {
	a := New(0.5)

	// Tiny frame, many vehicles: raw density far exceeds 1.0.
	detections := make([]models.Detection, 50)
	for i := range detections {
		detections[i] = det("car", 0.9)
	}

	m, err := a.Analyze(detections, 100, 100)

	assert.NoError(t, err)
	assert.Equal(t, 1.0, m.CongestionScore)
}

func TestAnalyze_CongestionScoreInRange(t *testing.T) {
	a := New(0.5)

	for _, n := range []int{0, 1, 5, 20, 100, 1000} {
		detections := make([]models.Detection, n)
		for i := range detections {
			detections[i] = det("car", 0.9)
		}

		m, err := a.Analyze(detections, 1920, 1080)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, m.CongestionScore, 0.0)
		assert.LessOrEqual(t, m.CongestionScore, 1.0)
	}
}

func TestAnalyze_ClearanceTimeBoundsAndMonotonicity(t *testing.T) {
	a := New(0.5)

	prev := 0
	for _, n := range []int{0, 1, 5, 20, 100, 500} {
		detections := make([]models.Detection, n)
		for i := range detections {
			detections[i] = det("car", 0.9)
		}

		m, err := a.Analyze(detections, 1920, 1080)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, m.ClearanceTimeMinutes, 0)
		assert.LessOrEqual(t, m.ClearanceTimeMinutes, 60)
		assert.GreaterOrEqual(t, m.ClearanceTimeMinutes, prev)
		prev = m.ClearanceTimeMinutes
	}
}

func TestAnalyze_ClearanceTimeTruncates(t *testing.T) {
	// 3 vehicles on a large frame: 5 + 1.5 + ~0 congestion = 6.5 -> 6.
	a := New(0.5)

	m, err := a.Analyze([]models.Detection{
		det("car", 0.9),
		det("car", 0.9),
		det("truck", 0.9),
	}, 4000, 4000)

	assert.NoError(t, err)
	assert.Equal(t, 6, m.ClearanceTimeMinutes)
}

func TestAnalyze_MeanConfidenceUsesFullList(t *testing.T) {
	a := New(0.5)

	// One above and one below the counting threshold; the mean covers both.
	m, err := a.Analyze([]models.Detection{
		det("car", 0.9),
		det("car", 0.1),
	}, 1920, 1080)

	assert.NoError(t, err)
	assert.Equal(t, 1, m.VehicleCounts.Total)
	assert.InDelta(t, 0.5, m.DetectionConfidence, 1e-9)
}

func TestAnalyze_BadDimensionsReturnsNeutralMetrics(t *testing.T) {
	a := New(0.5)

	for _, dims := range [][2]int{{0, 1080}, {1920, 0}, {-1, -1}} {
		m, err := a.Analyze([]models.Detection{det("car", 0.9)}, dims[0], dims[1])

		assert.ErrorIs(t, err, ErrBadDimensions)
		assert.Equal(t, Metrics{}, m)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New(0.5)

	detections := []models.Detection{
		det("car", 0.73),
		det("bus", 0.64),
		det("drone", 0.91),
	}

	first, err := a.Analyze(detections, 1280, 720)
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := a.Analyze(detections, 1280, 720)
		assert.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
