package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"outbreak-dashboard/models"

	"github.com/apex/log"
)

// The aggregation queries answer the dashboard's fixed question family. Each
// is a pure function of the current store state plus the optional geography
// filter; none keep cross-call state.

// GetOverviewStats returns total and analysed report counts plus counts by
// classification label, restricted by the filter.
func (d *Database) GetOverviewStats(ctx context.Context, f *models.GeoFilter) (*models.OverviewStats, error) {
	clause, args := geoFilterClause(f)

	stats := &models.OverviewStats{ByLabel: map[string]int{}}

	query := `
		SELECT COUNT(*), COUNT(ai_analysed_at)
		FROM reports
		WHERE 1=1` + clause
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalReports, &stats.AnalysedReports); err != nil {
		return nil, fmt.Errorf("%w: failed to count reports: %v", ErrStoreUnavailable, err)
	}

	labelQuery := `
		SELECT ai_label, COUNT(*)
		FROM reports
		WHERE ai_analysed_at IS NOT NULL` + clause + `
		GROUP BY ai_label`
	rows, err := d.db.QueryContext(ctx, labelQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count reports by label: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label sql.NullString
			count int
		)
		if err := rows.Scan(&label, &count); err != nil {
			log.Warnf("Skipping unscannable label count row: %v", err)
			continue
		}
		name := models.LabelUnknown
		if label.Valid && label.String != "" {
			name = label.String
		}
		stats.ByLabel[name] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating label counts: %v", ErrStoreUnavailable, err)
	}

	return stats, nil
}

// GetRiskDistribution buckets analysed reports into low/medium/high tiers by
// ai_risk_score against the configured thresholds, restricted by the filter.
func (d *Database) GetRiskDistribution(ctx context.Context, f *models.GeoFilter) (*models.RiskDistribution, error) {
	clause, filterArgs := geoFilterClause(f)

	query := `
		SELECT
			COALESCE(SUM(CASE WHEN ai_risk_score < ? THEN 1 ELSE 0 END), 0) AS low,
			COALESCE(SUM(CASE WHEN ai_risk_score >= ? AND ai_risk_score < ? THEN 1 ELSE 0 END), 0) AS medium,
			COALESCE(SUM(CASE WHEN ai_risk_score >= ? THEN 1 ELSE 0 END), 0) AS high
		FROM reports
		WHERE ai_analysed_at IS NOT NULL` + clause

	args := []interface{}{
		d.cfg.RiskMediumThreshold,
		d.cfg.RiskMediumThreshold, d.cfg.RiskHighThreshold,
		d.cfg.RiskHighThreshold,
	}
	args = append(args, filterArgs...)

	dist := &models.RiskDistribution{}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&dist.Low, &dist.Medium, &dist.High); err != nil {
		return nil, fmt.Errorf("%w: failed to compute risk distribution: %v", ErrStoreUnavailable, err)
	}
	return dist, nil
}

// GetDistrictList returns the global catalog of distinct geography tuples
// seen in the store. Not filtered: it populates selection UIs.
func (d *Database) GetDistrictList(ctx context.Context) ([]models.DistrictRef, error) {
	query := `
		SELECT DISTINCT country, state, district
		FROM reports
		WHERE district IS NOT NULL
		ORDER BY country ASC, state ASC, district ASC
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query district list: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	districts := make([]models.DistrictRef, 0)
	for rows.Next() {
		var (
			ref            models.DistrictRef
			country, state sql.NullString
		)
		if err := rows.Scan(&country, &state, &ref.District); err != nil {
			log.Warnf("Skipping unscannable district row: %v", err)
			continue
		}
		ref.Country = country.String
		ref.State = state.String
		districts = append(districts, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating district list: %v", ErrStoreUnavailable, err)
	}

	return districts, nil
}

// GetDistrictDistribution returns per-district report counts across the whole
// store, largest first.
func (d *Database) GetDistrictDistribution(ctx context.Context) ([]models.DistrictCount, error) {
	query := `
		SELECT country, state, district, COUNT(*) AS cnt
		FROM reports
		WHERE district IS NOT NULL
		GROUP BY country, state, district
		ORDER BY cnt DESC, district ASC
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query district distribution: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return collectDistrictCounts(rows)
}

// GetTopDistricts ranks districts by report count, optionally restricted to a
// single country. Ties are broken by district name ascending.
func (d *Database) GetTopDistricts(ctx context.Context, country *string, limit int) ([]models.DistrictCount, error) {
	query := `
		SELECT country, state, district, COUNT(*) AS cnt
		FROM reports
		WHERE district IS NOT NULL`
	args := make([]interface{}, 0, 2)
	if country != nil {
		query += `
		AND country = ?`
		args = append(args, *country)
	}
	query += `
		GROUP BY country, state, district
		ORDER BY cnt DESC, district ASC
		LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query top districts: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	return collectDistrictCounts(rows)
}

func collectDistrictCounts(rows *sql.Rows) ([]models.DistrictCount, error) {
	counts := make([]models.DistrictCount, 0)
	for rows.Next() {
		var (
			dc             models.DistrictCount
			country, state sql.NullString
		)
		if err := rows.Scan(&country, &state, &dc.District, &dc.Count); err != nil {
			log.Warnf("Skipping unscannable district count row: %v", err)
			continue
		}
		dc.Country = country.String
		dc.State = state.String
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating district counts: %v", ErrStoreUnavailable, err)
	}
	return counts, nil
}

// GetSpeciesByDistrict returns, for every district, the distinct species
// reported there with their counts, largest first. Records with unparseable
// ai_tags are skipped, never fatal.
func (d *Database) GetSpeciesByDistrict(ctx context.Context) (map[string][]models.SpeciesCount, error) {
	query := `
		SELECT district, ai_tags
		FROM reports
		WHERE ai_analysed_at IS NOT NULL
		AND district IS NOT NULL
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query species by district: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	perDistrict := map[string]map[string]int{}
	for rows.Next() {
		var district, rawTags string
		if err := rows.Scan(&district, &rawTags); err != nil {
			log.Warnf("Skipping unscannable species row: %v", err)
			continue
		}
		tags, perr := models.ParseTags(rawTags)
		if perr != nil {
			log.Warnf("Skipping report with malformed ai_tags in district %q: %v", district, perr)
			continue
		}
		species := models.SpeciesFromTags(tags)
		if species == "" {
			continue
		}
		if perDistrict[district] == nil {
			perDistrict[district] = map[string]int{}
		}
		perDistrict[district][species]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating species rows: %v", ErrStoreUnavailable, err)
	}

	result := make(map[string][]models.SpeciesCount, len(perDistrict))
	for district, counts := range perDistrict {
		list := make([]models.SpeciesCount, 0, len(counts))
		for species, count := range counts {
			list = append(list, models.SpeciesCount{Species: species, Count: count})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Count != list[j].Count {
				return list[i].Count > list[j].Count
			}
			return list[i].Species < list[j].Species
		})
		result[district] = list
	}
	return result, nil
}

// GetTimeTrends returns one count bucket per UTC calendar day for a trailing
// window of days, oldest first, with zero-count days filled in.
func (d *Database) GetTimeTrends(ctx context.Context, f *models.GeoFilter, days int) ([]models.TrendPoint, error) {
	clause, filterArgs := geoFilterClause(f)

	query := `
		SELECT DATE(created_at) AS day, COUNT(*) AS cnt
		FROM reports
		WHERE created_at >= ?` + clause + `
		GROUP BY day
		ORDER BY day ASC`

	now := time.Now().UTC()
	start := startOfDay(now).AddDate(0, 0, -(days - 1))

	args := append([]interface{}{start}, filterArgs...)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query time trends: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			day   string
			count int
		)
		if err := rows.Scan(&day, &count); err != nil {
			log.Warnf("Skipping unscannable trend row: %v", err)
			continue
		}
		// MySQL DATE() may come back as a datetime string depending on driver
		// settings; keep the date part only.
		if len(day) > 10 {
			day = day[:10]
		}
		counts[day] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating trend rows: %v", ErrStoreUnavailable, err)
	}

	return fillTrendSeries(counts, days, now), nil
}

// fillTrendSeries expands per-day counts into a gapless series of exactly
// `days` entries ending today, oldest first.
func fillTrendSeries(counts map[string]int, days int, now time.Time) []models.TrendPoint {
	series := make([]models.TrendPoint, 0, days)
	start := startOfDay(now.UTC()).AddDate(0, 0, -(days - 1))
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		series = append(series, models.TrendPoint{Date: day, Count: counts[day]})
	}
	return series
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetRecentAlerts returns the most recent analysed reports classified as
// invasive, newest first, capped at limit and restricted by the filter.
func (d *Database) GetRecentAlerts(ctx context.Context, f *models.GeoFilter, limit int) ([]models.AlertReport, error) {
	clause, filterArgs := geoFilterClause(f)

	query := `
		SELECT id, latitude, longitude, created_at, country, state, district,
			ai_label, ai_confidence, ai_risk_score, ai_tags
		FROM reports
		WHERE ai_analysed_at IS NOT NULL
		AND ai_label IN (?, ?)` + clause + `
		ORDER BY created_at DESC
		LIMIT ?`

	args := []interface{}{models.LabelInvasivePlant, models.LabelInvasiveAnimal}
	args = append(args, filterArgs...)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query recent alerts: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	alerts := make([]models.AlertReport, 0, limit)
	for rows.Next() {
		var (
			a        models.AlertReport
			lat, lng sql.NullFloat64
			country  sql.NullString
			state    sql.NullString
			district sql.NullString
			tags     sql.NullString
		)
		if err := rows.Scan(&a.ID, &lat, &lng, &a.CreatedAt,
			&country, &state, &district,
			&a.AILabel, &a.AIConfidence, &a.AIRiskScore, &tags); err != nil {
			log.Warnf("Skipping unscannable alert row: %v", err)
			continue
		}
		a.Latitude = nullFloat(lat)
		a.Longitude = nullFloat(lng)
		a.Country = nullString(country)
		a.State = nullString(state)
		a.District = nullString(district)
		if tags.Valid {
			if parsed, perr := models.ParseTags(tags.String); perr == nil {
				a.Species = models.SpeciesFromTags(parsed)
			} else {
				log.Warnf("Alert report %d has malformed ai_tags: %v", a.ID, perr)
			}
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating alert rows: %v", ErrStoreUnavailable, err)
	}

	return alerts, nil
}

// GetConfidenceAverages returns the mean ai_confidence and ai_risk_score over
// analysed reports matching the filter. Empty sets yield zeros.
func (d *Database) GetConfidenceAverages(ctx context.Context, f *models.GeoFilter) (avgConfidence, avgRisk float64, analysed int, err error) {
	clause, args := geoFilterClause(f)

	query := `
		SELECT
			COALESCE(AVG(ai_confidence), 0),
			COALESCE(AVG(ai_risk_score), 0),
			COUNT(*)
		FROM reports
		WHERE ai_analysed_at IS NOT NULL` + clause

	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&avgConfidence, &avgRisk, &analysed); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: failed to compute confidence averages: %v", ErrStoreUnavailable, err)
	}
	return avgConfidence, avgRisk, analysed, nil
}
