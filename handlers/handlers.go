package handlers

import (
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"outbreak-dashboard/cluster"
	"outbreak-dashboard/config"
	"outbreak-dashboard/database"
	"outbreak-dashboard/intelligence"
	"outbreak-dashboard/models"
	ws "outbreak-dashboard/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

const (
	// MaxWindowDays caps the public report feed window
	MaxWindowDays = 365

	// MaxAlertLimit caps the recent-alerts page size
	MaxAlertLimit = 100
)

// Handlers contains all HTTP handlers
type Handlers struct {
	hub      *ws.Hub
	db       *database.Database
	detector *cluster.Detector
	scorer   *intelligence.Scorer
	cfg      *config.Config
}

// NewHandlers creates a new handlers instance
func NewHandlers(hub *ws.Hub, db *database.Database, detector *cluster.Detector, scorer *intelligence.Scorer, cfg *config.Config) *Handlers {
	return &Handlers{
		hub:      hub,
		db:       db,
		detector: detector,
		scorer:   scorer,
		cfg:      cfg,
	}
}

// GetPublicReports returns reports from a trailing window in the public
// projection (no submitter reference, no raw media fields).
func (h *Handlers) GetPublicReports(c *gin.Context) {
	windowDays := h.cfg.PublicWindowDays
	if s := c.Query("window_days"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 || parsed > MaxWindowDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'window_days' parameter. Must be a positive integer."})
			return
		}
		windowDays = parsed
	}

	reports, err := h.db.GetPublicReports(c.Request.Context(), windowDays)
	if err != nil {
		log.Printf("Failed to get public reports (window %d days): %v", windowDays, err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve reports"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":     reports,
		"count":       len(reports),
		"window_days": windowDays,
	})
}

// GetOutbreakClusters recomputes outbreak clusters from the current analysed
// report window and returns them sorted for display.
func (h *Handlers) GetOutbreakClusters(c *gin.Context) {
	reports, err := h.db.GetAnalysedReportsWithin(c.Request.Context(), h.cfg.ClusterWindowDays)
	if err != nil {
		log.Printf("Failed to get analysed reports for clustering: %v", err)
		c.JSON(statusFor(err), gin.H{"error": "Failed to retrieve reports"})
		return
	}

	clusters := h.detector.Detect(reports)

	// The detector output is unordered; order by size for display.
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].MemberCount != clusters[j].MemberCount {
			return clusters[i].MemberCount > clusters[j].MemberCount
		}
		return clusters[i].LastSeen.After(clusters[j].LastSeen)
	})

	c.JSON(http.StatusOK, gin.H{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ListenAlerts handles WebSocket connections for live alert listening
func (h *Handlers) ListenAlerts(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	log.Printf("WebSocket connection established")
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	connectedClients, lastBroadcastID := h.hub.GetStats()

	response := models.HealthResponse{
		Status:           "healthy",
		Service:          "outbreak-dashboard",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: connectedClients,
		LastBroadcastID:  lastBroadcastID,
	}

	c.JSON(http.StatusOK, response)
}
