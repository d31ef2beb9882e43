package models

import (
	"time"
)

// AI classification labels written by the external analysis pipeline.
const (
	LabelInvasivePlant  = "invasive-plant"
	LabelInvasiveAnimal = "invasive-animal"
	LabelBenign         = "benign"
	LabelUnknown        = "unknown"
)

// IsInvasiveLabel reports whether a classification denotes an invasive sighting.
func IsInvasiveLabel(label string) bool {
	return label == LabelInvasivePlant || label == LabelInvasiveAnimal
}

// Report represents a row from the reports table (full projection).
// Classification fields are populated asynchronously by the analysis
// pipeline and are all nil until the report has been analysed.
type Report struct {
	ID        int64     `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Latitude  *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude *float64  `json:"longitude,omitempty" db:"longitude"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Country  *string `json:"country,omitempty" db:"country"`
	State    *string `json:"state,omitempty" db:"state"`
	District *string `json:"district,omitempty" db:"district"`

	AILabel      *string    `json:"ai_label,omitempty" db:"ai_label"`
	AIConfidence *float64   `json:"ai_confidence,omitempty" db:"ai_confidence"`
	AIRiskScore  *float64   `json:"ai_risk_score,omitempty" db:"ai_risk_score"`
	AITags       *string    `json:"ai_tags,omitempty" db:"ai_tags"`
	AIAnalysedAt *time.Time `json:"ai_analysed_at,omitempty" db:"ai_analysed_at"`
}

// Analysed reports whether the classification fields are fully populated.
// Classification is atomic: either all ai_* fields are set or none are.
func (r *Report) Analysed() bool {
	return r.AIAnalysedAt != nil && r.AILabel != nil && r.AIConfidence != nil &&
		r.AIRiskScore != nil && r.AITags != nil
}

// PartiallyAnalysed reports whether a row violates the classification
// atomicity invariant. Such rows are skipped as malformed.
func (r *Report) PartiallyAnalysed() bool {
	if r.Analysed() {
		return false
	}
	return r.AIAnalysedAt != nil || r.AILabel != nil || r.AIConfidence != nil ||
		r.AIRiskScore != nil || r.AITags != nil
}

// HasCoordinates reports whether plausible GPS coordinates were recorded.
// Out-of-range values are treated the same as missing ones.
func (r *Report) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil &&
		*r.Latitude >= -90 && *r.Latitude <= 90 &&
		*r.Longitude >= -180 && *r.Longitude <= 180
}

// Species returns the species name derived from ai_tags, or "" when the
// report is not analysed or its tags cannot be parsed.
func (r *Report) Species() string {
	if r.AITags == nil {
		return ""
	}
	tags, err := ParseTags(*r.AITags)
	if err != nil {
		return ""
	}
	return SpeciesFromTags(tags)
}

// PublicReport is the projection safe for unauthenticated callers.
// It excludes the submitter reference and any raw media fields.
type PublicReport struct {
	ID        int64     `json:"id"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Country  *string `json:"country,omitempty"`
	State    *string `json:"state,omitempty"`
	District *string `json:"district,omitempty"`

	AILabel      *string    `json:"ai_label,omitempty"`
	AIConfidence *float64   `json:"ai_confidence,omitempty"`
	AIRiskScore  *float64   `json:"ai_risk_score,omitempty"`
	Species      string     `json:"species,omitempty"`
	AIAnalysedAt *time.Time `json:"ai_analysed_at,omitempty"`
}

// GeoFilter narrows queries to a {country, state, district} hierarchy.
// A nil field is a full wildcard.
type GeoFilter struct {
	Country  *string `json:"country,omitempty"`
	State    *string `json:"state,omitempty"`
	District *string `json:"district,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f *GeoFilter) IsZero() bool {
	return f == nil || (f.Country == nil && f.State == nil && f.District == nil)
}

// OutbreakCluster is a derived group of spatio-temporally linked analysed
// reports. Clusters are recomputed from the current store on every request
// and carry no identity across calls.
type OutbreakCluster struct {
	CentroidLat   float64   `json:"centroid_lat"`
	CentroidLng   float64   `json:"centroid_lng"`
	MemberCount   int       `json:"member_count"`
	AILabel       string    `json:"ai_label"`
	Species       string    `json:"species,omitempty"`
	Country       *string   `json:"country,omitempty"`
	State         *string   `json:"state,omitempty"`
	District      *string   `json:"district,omitempty"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	AvgConfidence float64   `json:"avg_confidence"`
}

// OverviewStats summarizes report volume under a filter.
type OverviewStats struct {
	TotalReports    int            `json:"total_reports"`
	AnalysedReports int            `json:"analysed_reports"`
	ByLabel         map[string]int `json:"by_label"`
}

// RiskDistribution buckets analysed reports into risk tiers.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// DistrictRef identifies one district in the geography hierarchy.
type DistrictRef struct {
	Country  string `json:"country"`
	State    string `json:"state"`
	District string `json:"district"`
}

// DistrictCount is a district with its report count.
type DistrictCount struct {
	DistrictRef
	Count int `json:"count"`
}

// SpeciesCount is a species with its report count.
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// TrendPoint is one UTC calendar day in a time-trend series.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AlertReport is a recent invasive sighting for the alerts feed.
type AlertReport struct {
	ID           int64     `json:"id"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Country      *string   `json:"country,omitempty"`
	State        *string   `json:"state,omitempty"`
	District     *string   `json:"district,omitempty"`
	AILabel      string    `json:"ai_label"`
	AIConfidence float64   `json:"ai_confidence"`
	AIRiskScore  float64   `json:"ai_risk_score"`
	Species      string    `json:"species,omitempty"`
}

// OutbreakConfidence is the composite signal combining AI certainty,
// ecological risk and outbreak activity.
type OutbreakConfidence struct {
	AvgAIConfidence int     `json:"avg_ai_confidence"`
	AvgRiskScore    float64 `json:"avg_risk_score"`
	ActiveClusters  int     `json:"active_clusters"`
}

// DashboardStats is the composite payload of the statistics endpoint.
type DashboardStats struct {
	Overview   OverviewStats      `json:"overview"`
	Risk       RiskDistribution   `json:"risk_distribution"`
	Confidence OutbreakConfidence `json:"outbreak_confidence"`
}

// BroadcastMessage represents a message sent to WebSocket clients
type BroadcastMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// AlertBatch represents a batch of alerts to be broadcasted
type AlertBatch struct {
	Alerts []AlertReport `json:"alerts"`
	Count  int           `json:"count"`
	FromID int64         `json:"from_id"`
	ToID   int64         `json:"to_id"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
	LastBroadcastID  int64  `json:"last_broadcast_id"`
}
