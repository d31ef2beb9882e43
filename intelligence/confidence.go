package intelligence

import (
	"context"

	"outbreak-dashboard/database"
	"outbreak-dashboard/models"

	"github.com/shopspring/decimal"
)

// Scorer combines average AI confidence, average risk score and outbreak
// activity into a single filter-aware summary for the statistics endpoint.
type Scorer struct {
	db *database.Database
}

// NewScorer creates a new confidence scorer
func NewScorer(db *database.Database) *Scorer {
	return &Scorer{db: db}
}

// OutbreakConfidence computes the composite signal for the given filter. The
// cluster set is produced independently by the detector and passed in; absent
// data yields zeros, never failures.
func (s *Scorer) OutbreakConfidence(ctx context.Context, f *models.GeoFilter, clusters []models.OutbreakCluster) (*models.OutbreakConfidence, error) {
	avgConf, avgRisk, _, err := s.db.GetConfidenceAverages(ctx, f)
	if err != nil {
		return nil, err
	}

	return &models.OutbreakConfidence{
		AvgAIConfidence: ScaleConfidence(avgConf),
		AvgRiskScore:    RoundRisk(avgRisk),
		ActiveClusters:  ActiveClusterCount(f, clusters),
	}, nil
}

// ScaleConfidence maps a [0,1] confidence mean to a 0-100 integer.
func ScaleConfidence(avg float64) int {
	return int(decimal.NewFromFloat(avg * 100).Round(0).IntPart())
}

// RoundRisk rounds a risk-score mean to 2 decimal places.
func RoundRisk(avg float64) float64 {
	v, _ := decimal.NewFromFloat(avg).Round(2).Float64()
	return v
}

// ActiveClusterCount counts clusters scoped to the filter's district when one
// is set; otherwise the total cluster count is used unfiltered.
func ActiveClusterCount(f *models.GeoFilter, clusters []models.OutbreakCluster) int {
	if f == nil || f.District == nil {
		return len(clusters)
	}
	count := 0
	for _, c := range clusters {
		if c.District != nil && *c.District == *f.District {
			count++
		}
	}
	return count
}
