package cluster

import (
	"math"
	"reflect"
	"sort"
	"testing"
	"time"

	"outbreak-dashboard/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testDetector() *Detector {
	return &Detector{
		RadiusKm:   5.0,
		Window:     7 * 24 * time.Hour,
		MinMembers: 2,
	}
}

// analysedReport builds a fully classified report at the given offset from
// baseTime. One degree of latitude is about 111 km, so 0.01 degrees is about
// 1.11 km.
func analysedReport(id int64, lat, lng float64, dayOffset int, label string, conf, risk float64, tags string) models.Report {
	created := baseTime.AddDate(0, 0, dayOffset)
	analysed := created.Add(time.Hour)
	return models.Report{
		ID:           id,
		UserID:       "user1",
		Latitude:     &lat,
		Longitude:    &lng,
		CreatedAt:    created,
		AILabel:      &label,
		AIConfidence: &conf,
		AIRiskScore:  &risk,
		AITags:       &tags,
		AIAnalysedAt: &analysed,
	}
}

func TestHaversineKm(t *testing.T) {
	testCases := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		expectedKm             float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: -27.47, lng1: 153.02, lat2: -27.47, lng2: 153.02,
			expectedKm: 0, tolerance: 1e-9,
		},
		{
			name: "short hop along latitude",
			lat1: -27.47, lng1: 153.02, lat2: -27.4439, lng2: 153.02,
			expectedKm: 2.9, tolerance: 0.05,
		},
		{
			name: "one degree of latitude",
			lat1: 0, lng1: 0, lat2: 1, lng2: 0,
			expectedKm: 111.19, tolerance: 0.5,
		},
	}

	for _, testCase := range testCases {
		got := haversineKm(testCase.lat1, testCase.lng1, testCase.lat2, testCase.lng2)
		if math.Abs(got-testCase.expectedKm) > testCase.tolerance {
			t.Errorf("%s: expected %.3f km, got %.3f km", testCase.name, testCase.expectedKm, got)
		}
	}
}

func TestDetectNearbyPairClusters(t *testing.T) {
	d := testDetector()

	// Two invasive-plant sightings about 2.9 km apart, one day apart.
	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
		analysedReport(2, -27.4439, 153.02, 1, models.LabelInvasivePlant, 0.8, 7.5, `["Lantana camara"]`),
	}

	clusters := d.Detect(reports)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}

	c := clusters[0]
	if c.MemberCount != 2 {
		t.Errorf("expected 2 members, got %d", c.MemberCount)
	}
	if c.AILabel != models.LabelInvasivePlant {
		t.Errorf("expected label %q, got %q", models.LabelInvasivePlant, c.AILabel)
	}
	if c.Species != "Lantana camara" {
		t.Errorf("expected species %q, got %q", "Lantana camara", c.Species)
	}
	if !c.FirstSeen.Equal(baseTime) {
		t.Errorf("expected first seen %v, got %v", baseTime, c.FirstSeen)
	}
	if !c.LastSeen.Equal(baseTime.AddDate(0, 0, 1)) {
		t.Errorf("expected last seen %v, got %v", baseTime.AddDate(0, 0, 1), c.LastSeen)
	}
	if c.AvgConfidence != 0.85 {
		t.Errorf("expected avg confidence 0.85, got %v", c.AvgConfidence)
	}

	// The centroid of a linked pair stays within the link radius of both
	// members.
	for _, r := range reports {
		if dist := haversineKm(c.CentroidLat, c.CentroidLng, *r.Latitude, *r.Longitude); dist > d.RadiusKm {
			t.Errorf("centroid %0.2f km from member %d, beyond link radius", dist, r.ID)
		}
	}
}

func TestDetectDistantReportsNeverCluster(t *testing.T) {
	d := testDetector()

	// About 80 km apart on the same day.
	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
		analysedReport(2, -28.19, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
	}

	if clusters := d.Detect(reports); len(clusters) != 0 {
		t.Errorf("expected no clusters for distant reports, got %d", len(clusters))
	}
}

func TestDetectTimeWindowGate(t *testing.T) {
	d := testDetector()

	// Same spot, nine days apart: outside the seven day window.
	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
		analysedReport(2, -27.47, 153.02, 9, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
	}

	if clusters := d.Detect(reports); len(clusters) != 0 {
		t.Errorf("expected no clusters across the time window, got %d", len(clusters))
	}
}

func TestDetectTransitiveChaining(t *testing.T) {
	d := testDetector()

	// A-B and B-C are each within 5 km, A-C is not. Single linkage joins all
	// three through B.
	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
		analysedReport(2, -27.434, 153.02, 1, models.LabelInvasivePlant, 0.8, 7.0, `["Lantana camara"]`),
		analysedReport(3, -27.398, 153.02, 2, models.LabelInvasiveAnimal, 0.7, 6.0, `["cane toad"]`),
	}

	if dist := haversineKm(-27.47, 153.02, -27.398, 153.02); dist <= 5.0 {
		t.Fatalf("test setup broken: endpoints only %.2f km apart", dist)
	}

	clusters := d.Detect(reports)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 chained cluster, got %d", len(clusters))
	}
	if clusters[0].MemberCount != 3 {
		t.Errorf("expected 3 members, got %d", clusters[0].MemberCount)
	}
}

func TestDetectSingletonsDiscarded(t *testing.T) {
	d := testDetector()

	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
	}

	if clusters := d.Detect(reports); len(clusters) != 0 {
		t.Errorf("expected lone sighting to be discarded, got %d clusters", len(clusters))
	}
}

func TestDetectIgnoresUnanalysedAndUnlocated(t *testing.T) {
	d := testDetector()

	located := analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`)
	partner := analysedReport(2, -27.471, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`)

	unanalysed := models.Report{
		ID:        3,
		Latitude:  located.Latitude,
		Longitude: located.Longitude,
		CreatedAt: baseTime,
	}
	unlocated := analysedReport(4, 0, 0, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`)
	unlocated.Latitude = nil
	unlocated.Longitude = nil
	impossible := analysedReport(5, 95.0, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`)

	clusters := d.Detect([]models.Report{located, partner, unanalysed, unlocated, impossible})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].MemberCount != 2 {
		t.Errorf("expected ineligible reports excluded, got %d members", clusters[0].MemberCount)
	}
}

func TestDetectDominantLabelTieBreak(t *testing.T) {
	d := testDetector()

	// Two labels with equal counts: the label of the earliest member wins.
	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasiveAnimal, 0.9, 8.0, `["cane toad"]`),
		analysedReport(2, -27.471, 153.02, 1, models.LabelInvasivePlant, 0.8, 7.0, `["Lantana camara"]`),
	}

	clusters := d.Detect(reports)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].AILabel != models.LabelInvasiveAnimal {
		t.Errorf("expected tie broken by earliest member (%q), got %q",
			models.LabelInvasiveAnimal, clusters[0].AILabel)
	}
}

func TestDetectIdempotent(t *testing.T) {
	d := testDetector()

	reports := []models.Report{
		analysedReport(1, -27.47, 153.02, 0, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`),
		analysedReport(2, -27.471, 153.02, 1, models.LabelInvasivePlant, 0.8, 7.5, `["Lantana camara"]`),
		analysedReport(3, -27.398, 153.05, 0, models.LabelInvasiveAnimal, 0.7, 6.0, `["cane toad"]`),
		analysedReport(4, -27.399, 153.05, 2, models.LabelInvasiveAnimal, 0.6, 5.5, `["cane toad"]`),
	}

	first := d.Detect(reports)
	second := d.Detect(reports)

	canonical := func(clusters []models.OutbreakCluster) {
		sort.Slice(clusters, func(i, j int) bool {
			return clusters[i].FirstSeen.Before(clusters[j].FirstSeen) ||
				(clusters[i].FirstSeen.Equal(clusters[j].FirstSeen) && clusters[i].CentroidLat < clusters[j].CentroidLat)
		})
	}
	canonical(first)
	canonical(second)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("detection not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	if len(first) != 2 {
		t.Errorf("expected 2 clusters, got %d", len(first))
	}
}

func TestDetectGridPruningMatchesPairwise(t *testing.T) {
	d := testDetector()

	// A spread of reports straddling S2 cell boundaries near the link
	// radius. The grid only prunes candidates, so component membership must
	// match a brute-force pairwise pass.
	var reports []models.Report
	id := int64(1)
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			reports = append(reports, analysedReport(id,
				-27.40-0.03*float64(i), 153.00+0.03*float64(j),
				i%5, models.LabelInvasivePlant, 0.9, 8.0, `["Lantana camara"]`))
			id++
		}
	}

	clusters := d.Detect(reports)

	// Brute force: union every linkable pair directly.
	uf := newUnionFind(len(reports))
	for i := range reports {
		for j := 0; j < i; j++ {
			if d.linked(&reports[i], &reports[j]) {
				uf.union(i, j)
			}
		}
	}
	expected := map[int]int{}
	for i := range reports {
		expected[uf.find(i)]++
	}
	var expectedSizes, gotSizes []int
	for _, n := range expected {
		if n >= d.MinMembers {
			expectedSizes = append(expectedSizes, n)
		}
	}
	for _, c := range clusters {
		gotSizes = append(gotSizes, c.MemberCount)
	}
	sort.Ints(expectedSizes)
	sort.Ints(gotSizes)

	if !reflect.DeepEqual(expectedSizes, gotSizes) {
		t.Errorf("grid-pruned components %v differ from pairwise components %v", gotSizes, expectedSizes)
	}
}

func TestCellLevelForRadius(t *testing.T) {
	level := cellLevelForRadius(5.0)
	if level < 0 || level > 30 {
		t.Fatalf("level %d out of range", level)
	}

	// Cells at the chosen level must be at least as wide as the radius.
	if cellLevelForRadius(5.0) > cellLevelForRadius(0.5) {
		t.Errorf("larger radius should not pick a deeper level")
	}
}
