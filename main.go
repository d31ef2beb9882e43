package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outbreak-dashboard/config"
	"outbreak-dashboard/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present (local development)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Set log level
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create service
	svc, err := service.NewService(cfg)
	if err != nil {
		log.Fatal("Failed to create service:", err)
	}

	// Start service
	if err := svc.Start(); err != nil {
		log.Fatal("Failed to start service:", err)
	}

	// Setup HTTP server
	router := setupRouter(svc)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop the service
	if err := svc.Stop(); err != nil {
		log.Printf("Error stopping service: %v", err)
	}

	// Shutdown the HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func setupRouter(svc *service.Service) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Get handlers
	h := svc.GetHandlers()

	// API routes
	api := router.Group("/api/v3")
	{
		// Public report feed
		api.GET("/reports/public", h.GetPublicReports)

		// Outbreak clusters
		api.GET("/clusters", h.GetOutbreakClusters)

		// Dashboard aggregates
		api.GET("/dashboard/overview", h.GetOverviewStats)
		api.GET("/dashboard/risk", h.GetRiskDistribution)
		api.GET("/dashboard/districts", h.GetDistrictList)
		api.GET("/dashboard/district-distribution", h.GetDistrictDistribution)
		api.GET("/dashboard/species-by-district", h.GetSpeciesByDistrict)
		api.GET("/dashboard/top-districts", h.GetTopDistricts)
		api.GET("/dashboard/trends", h.GetTimeTrends)
		api.GET("/dashboard/alerts", h.GetRecentAlerts)
		api.GET("/dashboard/stats", h.GetDashboardStats)

		// WebSocket endpoint for live alerts
		api.GET("/alerts/listen", h.ListenAlerts)

		// Health check endpoint
		api.GET("/health", h.HealthCheck)
	}

	// Root health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "outbreak-dashboard",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	return router
}
