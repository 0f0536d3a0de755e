package ws

import (
	"net/http"

	"doorprize/internal/models"
	"doorprize/internal/services"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/google/logger"
)

const (
	// DisplayRoom holds every connected display.
	DisplayRoom = "display"

	EventState = "draw:state"
	EventStart = "draw:start"
)

// Hub pushes the draw state to connected displays over Socket.IO.
type Hub struct {
	service    *services.LotteryService
	allowStart bool
}

// New creates a hub for service. allowStart lets display clients trigger a
// draw themselves; keep it off when operator routes are protected.
func New(service *services.LotteryService, allowStart bool) *Hub {
	return &Hub{service: service, allowStart: allowStart}
}

// Payload is what displays receive on every change.
func (h *Hub) Payload(st models.DrawState) gin.H {
	return gin.H{"state": st, "settings": h.service.Settings()}
}

// Mount attaches the Socket.IO server to r and subscribes it to the service.
func (h *Hub) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.Join(DisplayRoom)
		s.Emit(EventState, h.Payload(h.service.State()))
		logger.Infof("Display connected: %s", s.ID())
		return nil
	})

	io.OnEvent("/", EventStart, func(s socketio.Conn) map[string]any {
		return h.start()
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		if s == nil {
			logger.Errorf("Socket error: %v", e)
			return
		}
		logger.Errorf("Socket error on %s: %v", s.ID(), e)
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		logger.Infof("Display disconnected: %s (%s)", s.ID(), reason)
	})

	h.service.Subscribe(func(st models.DrawState) {
		io.BroadcastToRoom("/", DisplayRoom, EventState, h.Payload(st))
	})

	go func() {
		if err := io.Serve(); err != nil {
			logger.Errorf("Socket server stopped: %v", err)
		}
	}()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (h *Hub) start() map[string]any {
	if !h.allowStart {
		return map[string]any{"error": "drawing is started from the operator screen"}
	}
	if err := h.service.StartDraw(); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"ok": true}
}
