package detector

import (
	"math/rand"

	"github.com/kartick026/trafficloud/internal/models"
)

// mockDetections returns synthetic detections for development builds when
// the inference service is unreachable. Confidences are randomised, so this
// path is excluded from any determinism guarantee.
func mockDetections() []models.Detection {
	return []models.Detection{
		{
			Class:       "car",
			Confidence:  0.6 + rand.Float64()*0.3,
			BoundingBox: [4]float64{100, 100, 200, 200},
		},
		{
			Class:       "truck",
			Confidence:  0.7 + rand.Float64()*0.25,
			BoundingBox: [4]float64{300, 150, 450, 300},
		},
		{
			Class:       "ambulance",
			Confidence:  0.8 + rand.Float64()*0.15,
			BoundingBox: [4]float64{500, 200, 600, 350},
		},
	}
}
