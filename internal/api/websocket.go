package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"triarb-core/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Read-only status feed; same policy as the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// handleWebsocket streams book updates and edge signals to a dashboard
// client. The bus drops on backpressure, so a stalled client loses frames
// rather than stalling publishers.
func (s *Server) handleWebsocket(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event bus disabled"})
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubBooks := s.bus.Subscribe(events.EventBookUpdate, 64)
	defer unsubBooks()
	signals, unsubSignals := s.bus.Subscribe(events.EventEdgeSignal, 16)
	defer unsubSignals()

	// Drain reads so close frames and pings are processed.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		var payload any
		select {
		case payload = <-updates:
		case payload = <-signals:
		case <-readClosed:
			return
		case <-c.Request.Context().Done():
			return
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			return
		}
	}
}
