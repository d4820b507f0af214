package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ac360/backend/services/hourly-cache-service/internal/service"
)

// Hub fans recalculation results out to connected dashboards.
type Hub struct {
	mu           sync.RWMutex
	connections  map[uint64]*Connection
	nextID       atomic.Uint64
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	baseCtx      context.Context
}

// NewHub builds hub. Connections are torn down when ctx is cancelled.
func NewHub(ctx context.Context, writeTimeout time.Duration, logger *zap.Logger) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		connections:  make(map[uint64]*Connection),
		logger:       logger,
		writeTimeout: writeTimeout,
		baseCtx:      ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Publish implements service.Notifier.
func (h *Hub) Publish(result service.RecalculationResult) {
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		service.RecalculationResult
	}{Type: "hourly_totals.recalculated", RecalculationResult: result})
	if err != nil {
		h.logger.Warn("failed to encode recalculation event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.connections {
		if conn.Wants(result.MachineSerial) {
			conn.Send(payload)
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *Hub) add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID()] = conn
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, id)
}

// HandleWS is HTTP handler for the dashboard feed. machine_serial narrows the feed to one machine.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	var serial int64
	if raw := r.URL.Query().Get("machine_serial"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid machine_serial", http.StatusBadRequest)
			return
		}
		serial = parsed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(h.baseCtx)
	connection := NewConnection(h.nextID.Add(1), serial, conn, h.writeTimeout, h.logger, func(id uint64) {
		h.remove(id)
		cancel()
	})
	h.add(connection)

	go connection.Start(ctx)
	h.logger.Info("dashboard subscribed", zap.Uint64("conn_id", connection.ID()), zap.Int64("machine_serial", serial))
}
