package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Зрители карты подключаются с произвольных фронтендов
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary Live incident event stream
// @Description Upgrade to a websocket delivering incident lifecycle events (new_incident, incident_approved, incident_flagged, incident_removed, alert_sent). No historical replay: only events published after the connection.
// @Tags Incidents
// @Success 101 "Switching Protocols"
// @Router /ws [get]
func (h *Handler) eventStream(c *gin.Context) {
	log := h.logger.WithField("method", "eventStream")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	sub := h.events.Subscribe()
	defer sub.Close()
	defer conn.Close()
	log.Info("Viewer connected to event stream")

	// Читающая горутина нужна только для обработки pong и закрытия соединения
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.WithError(err).Debug("Failed to write event to viewer, dropping connection")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Info("Viewer disconnected from event stream")
			return
		}
	}
}
