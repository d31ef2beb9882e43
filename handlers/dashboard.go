package handlers

import (
	"log"
	"net/http"
	"strconv"
	"sync"

	"outbreak-dashboard/models"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultTrendDays is the trend window when the caller does not pass one
	DefaultTrendDays = 30

	// DefaultTopDistricts is the top-districts page size when unspecified
	DefaultTopDistricts = 10
)

// GetOverviewStats returns report volume totals under an optional geography
// filter.
func (h *Handlers) GetOverviewStats(c *gin.Context) {
	f, err := parseGeoFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.db.GetOverviewStats(c.Request.Context(), f)
	if err != nil {
		log.Printf("Failed to get overview stats: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve overview"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetRiskDistribution returns the low/medium/high tier counts for analysed
// reports under an optional geography filter.
func (h *Handlers) GetRiskDistribution(c *gin.Context) {
	f, err := parseGeoFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dist, err := h.db.GetRiskDistribution(c.Request.Context(), f)
	if err != nil {
		log.Printf("Failed to get risk distribution: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve risk distribution"})
		return
	}

	c.JSON(http.StatusOK, dist)
}

// GetDistrictList returns every known (country, state, district) tuple.
func (h *Handlers) GetDistrictList(c *gin.Context) {
	districts, err := h.db.GetDistrictList(c.Request.Context())
	if err != nil {
		log.Printf("Failed to get district list: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve districts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"districts": districts,
		"count":     len(districts),
	})
}

// GetDistrictDistribution returns report counts per district, largest first.
func (h *Handlers) GetDistrictDistribution(c *gin.Context) {
	counts, err := h.db.GetDistrictDistribution(c.Request.Context())
	if err != nil {
		log.Printf("Failed to get district distribution: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve district distribution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"distribution": counts,
		"count":        len(counts),
	})
}

// GetSpeciesByDistrict returns the per-district species breakdown.
func (h *Handlers) GetSpeciesByDistrict(c *gin.Context) {
	breakdown, err := h.db.GetSpeciesByDistrict(c.Request.Context())
	if err != nil {
		log.Printf("Failed to get species breakdown: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve species breakdown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"species_by_district": breakdown,
		"count":               len(breakdown),
	})
}

// GetTopDistricts returns the n districts with the most reports, optionally
// restricted to one country.
func (h *Handlers) GetTopDistricts(c *gin.Context) {
	limit := DefaultTopDistricts
	if s := c.Query("n"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 || parsed > MaxAlertLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'n' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	var country *string
	if v, err := filterLabel(c.Query("country"), "country"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else {
		country = v
	}

	counts, err := h.db.GetTopDistricts(c.Request.Context(), country, limit)
	if err != nil {
		log.Printf("Failed to get top districts: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve top districts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"districts": counts,
		"count":     len(counts),
	})
}

// GetTimeTrends returns a daily report-count series over a trailing window.
// Days without reports appear with an explicit zero.
func (h *Handlers) GetTimeTrends(c *gin.Context) {
	days := DefaultTrendDays
	if s := c.Query("days"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 || parsed > MaxWindowDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'days' parameter. Must be a positive integer."})
			return
		}
		days = parsed
	}

	f, err := parseGeoFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trends, err := h.db.GetTimeTrends(c.Request.Context(), f, days)
	if err != nil {
		log.Printf("Failed to get time trends: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve trends"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"trends": trends,
		"days":   days,
	})
}

// GetRecentAlerts returns the most recent invasive sightings under an
// optional geography filter.
func (h *Handlers) GetRecentAlerts(c *gin.Context) {
	limit := h.cfg.AlertLimit
	if s := c.Query("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 || parsed > MaxAlertLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	f, err := parseGeoFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alerts, err := h.db.GetRecentAlerts(c.Request.Context(), f, limit)
	if err != nil {
		log.Printf("Failed to get recent alerts: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetDashboardStats returns the composite dashboard payload. The independent
// aggregates run concurrently; the first error wins.
func (h *Handlers) GetDashboardStats(c *gin.Context) {
	f, err := parseGeoFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error

		overview *models.OverviewStats
		risk     *models.RiskDistribution
		clusters []models.OutbreakCluster
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(3)

	go func() {
		defer wg.Done()
		v, err := h.db.GetOverviewStats(ctx, f)
		if err != nil {
			fail(err)
			return
		}
		overview = v
	}()

	go func() {
		defer wg.Done()
		v, err := h.db.GetRiskDistribution(ctx, f)
		if err != nil {
			fail(err)
			return
		}
		risk = v
	}()

	go func() {
		defer wg.Done()
		reports, err := h.db.GetAnalysedReportsWithin(ctx, h.cfg.ClusterWindowDays)
		if err != nil {
			fail(err)
			return
		}
		clusters = h.detector.Detect(reports)
	}()

	wg.Wait()

	if firstErr != nil {
		log.Printf("Failed to assemble dashboard stats: %v", firstErr)
		c.JSON(statusFor(firstErr), gin.H{"error": "Failed to retrieve dashboard stats"})
		return
	}

	confidence, err := h.scorer.OutbreakConfidence(ctx, f, clusters)
	if err != nil {
		log.Printf("Failed to compute outbreak confidence: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve dashboard stats"})
		return
	}

	c.JSON(http.StatusOK, models.DashboardStats{
		Overview:   *overview,
		Risk:       *risk,
		Confidence: *confidence,
	})
}
