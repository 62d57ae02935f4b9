// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rig-service/internal/model"
	"rig-service/internal/utils"
)

// WebSocketHandler is the monitoring surface: relayed module traffic,
// drained analog batches and status snapshots stream out to connected
// clients. It implements service.Broadcaster, so the session service pushes
// into it without knowing about WebSockets.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	eventBus    *EventBus
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(logger *zap.Logger) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Monitoring panels run on the local network
			return true
		},
	}

	handler := &WebSocketHandler{
		upgrader:    upgrader,
		connections: NewConnectionManager(),
		eventBus:    NewEventBus(logger),
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}

	go handler.eventBus.Start()
	go handler.forwardEvents()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Analog sample stream
	router.GET("/analog", h.handleConnection("analog"))

	// Relayed module traffic
	router.GET("/modules", h.handleConnection("modules"))

	// Everything, including status snapshots
	router.GET("/events", h.handleConnection("events"))
}

// handleConnection upgrades one monitoring connection of the given type
func (h *WebSocketHandler) handleConnection(clientType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
			return
		}

		client := &Client{
			ID:          uuid.New().String(),
			Connection:  conn,
			Send:        make(chan []byte, 256),
			Type:        clientType,
			UserAgent:   c.Request.UserAgent(),
			RemoteAddr:  c.Request.RemoteAddr,
			ConnectedAt: time.Now(),
		}

		h.connections.Register(client)
		h.logger.Info("Monitoring client connected",
			zap.String("client_id", client.ID),
			zap.String("type", clientType),
			zap.String("remote_addr", client.RemoteAddr),
		)

		go h.handleClientRead(client)
		go h.handleClientWrite(client)
	}
}

// BroadcastAnalogBatch pushes one drained analog batch to the bus
func (h *WebSocketHandler) BroadcastAnalogBatch(batch model.AnalogBatch) {
	h.eventBus.Publish(Event{
		Type:   EventAnalogBatch,
		Source: "analog-streamer",
		Data: map[string]interface{}{
			"session_id": batch.SessionID,
			"samples":    batch.Samples,
		},
		Timestamp: time.Now(),
	})
}

// BroadcastModuleBytes pushes one chunk of relayed module traffic to the bus
func (h *WebSocketHandler) BroadcastModuleBytes(moduleName string, data []byte) {
	h.eventBus.Publish(Event{
		Type:   EventModuleTraffic,
		Source: "module-relay",
		Data: map[string]interface{}{
			"module": moduleName,
			"data":   data, // base64 on the wire
		},
		Timestamp: time.Now(),
	})
}

// BroadcastStatus pushes a runtime status snapshot to the bus
func (h *WebSocketHandler) BroadcastStatus(flags model.RuntimeFlags) {
	h.eventBus.Publish(Event{
		Type:   EventStatus,
		Source: "status-registry",
		Data: map[string]interface{}{
			"flags": flags,
		},
		Timestamp: time.Now(),
	})
}

// forwardEvents fans bus events out to the matching client types
func (h *WebSocketHandler) forwardEvents() {
	analog := h.eventBus.Subscribe(EventAnalogBatch)
	modules := h.eventBus.Subscribe(EventModuleTraffic)
	status := h.eventBus.Subscribe(EventStatus)

	for {
		select {
		case event := <-analog:
			h.broadcastToClients(h.connections.GetClientsByType("analog", "events"), &event)
		case event := <-modules:
			h.broadcastToClients(h.connections.GetClientsByType("modules", "events"), &event)
		case event := <-status:
			h.broadcastToClients(h.connections.GetAllClients(), &event)
		}
	}
}

// broadcastToClients sends one event to the given clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, event *Event) {
	message := &WebSocketMessage{
		Type:      event.Type,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// handleClientRead drains inbound frames; the monitoring surface is
// one-directional apart from ping
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			continue
		}

		if message.Type == "ping" {
			h.sendMessage(client, &WebSocketMessage{
				Type:      "pong",
				Timestamp: time.Now(),
			})
		}
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
