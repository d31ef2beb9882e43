package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"outbreak-dashboard/models"
)

// Hub manages WebSocket connections and broadcasting
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to all clients
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Mutex for thread-safe operations
	mutex sync.RWMutex

	// Statistics
	lastBroadcastID  int64
	connectedClients int
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client connected. Total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.Printf("Client disconnected. Total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
		}
	}
}

// BroadcastAlerts broadcasts a batch of invasive sighting alerts to all
// connected clients.
func (h *Hub) BroadcastAlerts(alerts []models.AlertReport) {
	if len(alerts) == 0 {
		return
	}

	batch := models.AlertBatch{
		Alerts: alerts,
		Count:  len(alerts),
		FromID: alerts[0].ID,
		ToID:   alerts[len(alerts)-1].ID,
	}

	h.mutex.Lock()
	h.lastBroadcastID = batch.ToID
	h.mutex.Unlock()

	h.send("alerts", batch)
	log.Printf("Broadcasted %d alerts (id %d-%d) to %d clients",
		len(alerts), batch.FromID, batch.ToID, h.connectedClients)
}

// BroadcastClusters broadcasts the current outbreak cluster set to all
// connected clients.
func (h *Hub) BroadcastClusters(clusters []models.OutbreakCluster) {
	if len(clusters) == 0 {
		return
	}

	h.send("clusters", clusterPayload{
		Clusters: clusters,
		Count:    len(clusters),
	})
	log.Printf("Broadcasted %d clusters to %d clients", len(clusters), h.connectedClients)
}

type clusterPayload struct {
	Clusters []models.OutbreakCluster `json:"clusters"`
	Count    int                      `json:"count"`
}

func (h *Hub) send(msgType string, data interface{}) {
	message := models.BroadcastMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.broadcast <- payload
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() (int, int64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastBroadcastID
}
