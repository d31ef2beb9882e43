package cluster

import (
	"math"
	"sort"
	"time"

	"outbreak-dashboard/config"
	"outbreak-dashboard/models"

	"github.com/golang/geo/s2"
	"github.com/shopspring/decimal"
)

// Mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Detector identifies outbreak clusters: groups of analysed reports that are
// mutually close in both space and time. Two reports are linked when their
// haversine distance is within RadiusKm AND their submission times differ by
// at most Window; connected components of the link graph with at least
// MinMembers reports become clusters.
type Detector struct {
	RadiusKm   float64
	Window     time.Duration
	MinMembers int
}

// NewDetector creates a detector from service configuration
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		RadiusKm:   cfg.ClusterRadiusKm,
		Window:     time.Duration(cfg.ClusterWindowDays) * 24 * time.Hour,
		MinMembers: cfg.MinClusterSize,
	}
}

// Detect computes outbreak clusters from the given report set. The result is
// unordered; it is recomputed fresh on every call and carries no identity
// across calls. Reports that are not analysed or have no coordinates are
// ignored. An empty eligible set yields an empty result, not a failure.
func (d *Detector) Detect(reports []models.Report) []models.OutbreakCluster {
	eligible := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.Analysed() && r.HasCoordinates() {
			eligible = append(eligible, r)
		}
	}
	if len(eligible) < d.MinMembers {
		return []models.OutbreakCluster{}
	}

	// Deterministic member order: oldest first. Tie-breaks below depend on it.
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].CreatedAt.Equal(eligible[j].CreatedAt) {
			return eligible[i].CreatedAt.Before(eligible[j].CreatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	uf := newUnionFind(len(eligible))

	// Bucket reports into S2 cells at a level where the cell min width is at
	// least the link radius, so any linkable pair is in the same or an
	// adjacent cell. The exact haversine check below decides; the grid only
	// prunes candidate pairs.
	level := cellLevelForRadius(d.RadiusKm)
	buckets := make(map[s2.CellID][]int, len(eligible))
	cells := make([]s2.CellID, len(eligible))
	for i, r := range eligible {
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(*r.Latitude, *r.Longitude)).Parent(level)
		cells[i] = cell
		buckets[cell] = append(buckets[cell], i)
	}

	for i := range eligible {
		for _, cell := range append([]s2.CellID{cells[i]}, cells[i].AllNeighbors(level)...) {
			for _, j := range buckets[cell] {
				if j >= i {
					continue
				}
				if d.linked(&eligible[i], &eligible[j]) {
					uf.union(i, j)
				}
			}
		}
	}

	components := map[int][]int{}
	for i := range eligible {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	clusters := make([]models.OutbreakCluster, 0)
	for _, members := range components {
		if len(members) < d.MinMembers {
			// A lone sighting is not an outbreak.
			continue
		}
		clusters = append(clusters, buildCluster(eligible, members))
	}
	return clusters
}

// linked reports whether two eligible reports satisfy both link conditions.
func (d *Detector) linked(a, b *models.Report) bool {
	dt := a.CreatedAt.Sub(b.CreatedAt)
	if dt < 0 {
		dt = -dt
	}
	if dt > d.Window {
		return false
	}
	return haversineKm(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude) <= d.RadiusKm
}

// buildCluster derives the summary for one connected component. Member
// indices arrive in ascending creation-time order.
func buildCluster(reports []models.Report, members []int) models.OutbreakCluster {
	var (
		sumLat, sumLng, sumConf float64
		labels                  = make([]string, len(members))
		species                 = make([]string, len(members))
		countries               = make([]string, len(members))
		states                  = make([]string, len(members))
		districts               = make([]string, len(members))
	)

	first := reports[members[0]].CreatedAt
	last := first
	for k, idx := range members {
		r := reports[idx]
		sumLat += *r.Latitude
		sumLng += *r.Longitude
		sumConf += *r.AIConfidence
		labels[k] = *r.AILabel
		species[k] = r.Species()
		if r.Country != nil {
			countries[k] = *r.Country
		}
		if r.State != nil {
			states[k] = *r.State
		}
		if r.District != nil {
			districts[k] = *r.District
		}
		if r.CreatedAt.Before(first) {
			first = r.CreatedAt
		}
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}

	n := float64(len(members))
	avgConf, _ := decimal.NewFromFloat(sumConf / n).Round(3).Float64()

	return models.OutbreakCluster{
		CentroidLat:   sumLat / n,
		CentroidLng:   sumLng / n,
		MemberCount:   len(members),
		AILabel:       dominantValue(labels),
		Species:       dominantValue(species),
		Country:       optionalDominant(countries),
		State:         optionalDominant(states),
		District:      optionalDominant(districts),
		FirstSeen:     first,
		LastSeen:      last,
		AvgConfidence: avgConf,
	}
}

// dominantValue picks the most frequent non-empty value; ties are broken by
// the value belonging to the earliest member. Returns "" when all values are
// empty.
func dominantValue(values []string) string {
	counts := map[string]int{}
	firstIdx := map[string]int{}
	for i, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
		if _, seen := firstIdx[v]; !seen {
			firstIdx[v] = i
		}
	}

	best := ""
	for v, c := range counts {
		if best == "" || c > counts[best] || (c == counts[best] && firstIdx[v] < firstIdx[best]) {
			best = v
		}
	}
	return best
}

func optionalDominant(values []string) *string {
	v := dominantValue(values)
	if v == "" {
		return nil
	}
	return &v
}

// cellLevelForRadius picks the deepest S2 level whose cells are at least
// radiusKm wide, clamped to the valid level range.
func cellLevelForRadius(radiusKm float64) int {
	level := s2.MinWidthMetric.MaxLevel(radiusKm / earthRadiusKm)
	if level < 0 {
		return 0
	}
	if level > 30 {
		return 30
	}
	return level
}

// haversineKm computes the great-circle distance between two WGS-84 points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180.0

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// unionFind is connected components over report indices in a flat array,
// with path compression and union by size.
type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
}
