// Package ws streams engine lifecycle events to devtools clients over
// a websocket connection.
package ws

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ereojs/devtrace/internal/infrastructure/monitoring"
	"github.com/ereojs/devtrace/internal/tracing"
)

// sendBuffer bounds the per-client queue; a client that cannot keep up
// loses events instead of stalling the synchronous bus.
const sendBuffer = 256

// Handler bridges the tracer's event bus to websocket clients.
type Handler struct {
	tracer   *tracing.Tracer
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
}

// NewHandler creates a stream handler.
func NewHandler(tracer *tracing.Tracer, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracer:  tracer,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			// The overlay connects from the application's own origin,
			// which differs per project.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type helloFrame struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

// HandleConnection upgrades the request and forwards lifecycle events
// until the client disconnects. Frames are encoded inside the bus
// callback, synchronously with the engine operation that produced the
// event, so the payload can never race with later span mutation.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	queue := make(chan []byte, sendBuffer)

	// The gauge is decremented after the bus subscription is torn down,
	// so a zero gauge means the bus no longer reaches this client.
	if h.metrics != nil {
		h.metrics.StreamClients.Inc()
		defer h.metrics.StreamClients.Dec()
	}

	unsubscribe := h.tracer.Subscribe(func(evt tracing.Event) {
		frame, err := sonic.Marshal(evt)
		if err != nil {
			return
		}
		select {
		case queue <- frame:
		default:
			if h.metrics != nil {
				h.metrics.StreamDropped.Inc()
			}
		}
	})
	defer unsubscribe()
	h.logger.Debug("stream client connected", zap.String("client_id", clientID))

	hello, _ := sonic.Marshal(helloFrame{Type: "connected", ClientID: clientID})
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	// Reader goroutine: we never expect client frames, but reading is
	// how gorilla surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case frame := <-queue:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("stream client write failed",
					zap.String("client_id", clientID), zap.Error(err))
				return
			}
		case <-done:
			h.logger.Debug("stream client disconnected", zap.String("client_id", clientID))
			return
		}
	}
}
