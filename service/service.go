package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"outbreak-dashboard/cluster"
	"outbreak-dashboard/config"
	"outbreak-dashboard/database"
	"outbreak-dashboard/handlers"
	"outbreak-dashboard/intelligence"
	"outbreak-dashboard/models"
	"outbreak-dashboard/rabbitmq"
	"outbreak-dashboard/websocket"
)

// Service manages outbreak watching and broadcasting
type Service struct {
	config    *config.Config
	db        *database.Database
	hub       *websocket.Hub
	detector  *cluster.Detector
	publisher *rabbitmq.Publisher
	handlers  *handlers.Handlers

	// State tracking
	lastSeenID int64
	mu         sync.RWMutex

	// Control channels
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a new outbreak dashboard service
func NewService(cfg *config.Config) (*Service, error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub()
	detector := cluster.NewDetector(cfg)
	scorer := intelligence.NewScorer(db)

	// The AMQP bridge is optional; an empty URL disables it.
	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
	}

	service := &Service{
		config:    cfg,
		db:        db,
		hub:       hub,
		detector:  detector,
		publisher: publisher,
		handlers:  handlers.NewHandlers(hub, db, detector, scorer, cfg),
		stopChan:  make(chan struct{}),
	}

	return service, nil
}

// Start starts the service
func (s *Service) Start() error {
	log.Printf("Starting outbreak dashboard service...")

	// Start the WebSocket hub
	go s.hub.Run()

	// Initialize the watch cursor from the newest analysed report
	if err := s.initializeLastSeenID(); err != nil {
		return err
	}

	// Start the watch loop
	s.wg.Add(1)
	go s.watchLoop()

	log.Printf("Outbreak dashboard service started successfully")
	return nil
}

// Stop stops the service gracefully
func (s *Service) Stop() error {
	log.Printf("Stopping outbreak dashboard service...")

	// Signal stop
	close(s.stopChan)

	// Wait for goroutines to finish
	s.wg.Wait()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("Error closing publisher: %v", err)
		}
	}

	// Close database connection
	if err := s.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Printf("Outbreak dashboard service stopped")
	return nil
}

// GetHandlers returns the HTTP handlers
func (s *Service) GetHandlers() *handlers.Handlers {
	return s.handlers
}

// GetStats returns current service statistics
func (s *Service) GetStats() (int, int64, int64) {
	connectedClients, lastBroadcastID := s.hub.GetStats()
	s.mu.RLock()
	lastSeenID := s.lastSeenID
	s.mu.RUnlock()
	return connectedClients, lastBroadcastID, lastSeenID
}

// initializeLastSeenID positions the watch cursor at the newest analysed
// report so a restart does not replay historical alerts. The store is
// read-only for this service, so the cursor lives in memory only.
func (s *Service) initializeLastSeenID() error {
	latestID, err := s.db.GetLatestAnalysedID(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get latest analysed report id: %w", err)
	}

	s.mu.Lock()
	s.lastSeenID = latestID
	s.mu.Unlock()

	log.Printf("Initialized watch cursor at report id %d", latestID)
	return nil
}

// watchLoop polls for freshly analysed reports and pushes alerts and
// recomputed clusters to subscribers
func (s *Service) watchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.processNewReports(); err != nil {
				log.Printf("Error processing new reports: %v", err)
			}
		}
	}
}

// processNewReports advances the watch cursor, broadcasts invasive
// sightings, and republishes the cluster set when anything changed
func (s *Service) processNewReports() error {
	ctx := context.Background()

	s.mu.RLock()
	lastID := s.lastSeenID
	s.mu.RUnlock()

	reports, err := s.db.GetAnalysedReportsSince(ctx, lastID)
	if err != nil {
		return err
	}

	if len(reports) == 0 {
		return nil
	}

	alerts := invasiveAlerts(reports)
	if len(alerts) > 0 {
		s.hub.BroadcastAlerts(alerts)
	}

	s.mu.Lock()
	s.lastSeenID = reports[len(reports)-1].ID
	s.mu.Unlock()

	// New analysed reports can change the cluster picture
	if err := s.refreshClusters(ctx); err != nil {
		log.Printf("Warning: cluster refresh failed: %v", err)
	}

	log.Printf("Processed %d new analysed reports (%d invasive)", len(reports), len(alerts))
	return nil
}

// refreshClusters recomputes the cluster set and fans it out to WebSocket
// subscribers and the AMQP exchange
func (s *Service) refreshClusters(ctx context.Context) error {
	reports, err := s.db.GetAnalysedReportsWithin(ctx, s.config.ClusterWindowDays)
	if err != nil {
		return err
	}

	clusters := s.detector.Detect(reports)
	if len(clusters) == 0 {
		return nil
	}

	s.hub.BroadcastClusters(clusters)

	if s.publisher != nil {
		if err := s.publisher.PublishClusters(clusters); err != nil {
			return fmt.Errorf("failed to publish clusters: %w", err)
		}
	}
	return nil
}

// invasiveAlerts converts invasive analysed reports into the alert
// projection, preserving store order
func invasiveAlerts(reports []models.Report) []models.AlertReport {
	var alerts []models.AlertReport
	for i := range reports {
		r := &reports[i]
		if r.AILabel == nil || !models.IsInvasiveLabel(*r.AILabel) {
			continue
		}

		alert := models.AlertReport{
			ID:        r.ID,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			CreatedAt: r.CreatedAt,
			Country:   r.Country,
			State:     r.State,
			District:  r.District,
			AILabel:   *r.AILabel,
			Species:   r.Species(),
		}
		if r.AIConfidence != nil {
			alert.AIConfidence = *r.AIConfidence
		}
		if r.AIRiskScore != nil {
			alert.AIRiskScore = *r.AIRiskScore
		}
		alerts = append(alerts, alert)
	}
	return alerts
}
