package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scribber/internal/notify"
	"scribber/internal/repository"
	"scribber/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from any origin; ownership is checked
	// against the user identity below.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn serializes writes: the hub, the keepalive ticker and the read
// loop replies all write to the same socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// projectWebSocket handles GET /ws/projects/:id. The caller identifies
// itself with the X-User-ID header or a user_id query parameter (the
// browser WebSocket API cannot set headers). After the handshake the
// server pushes the current state, then every transition until the
// client disconnects.
func (a *API) projectWebSocket(c *gin.Context) {
	idStr := c.Param("id")
	projectID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || projectID <= 0 {
		utils.Error(c, http.StatusBadRequest, "invalid id format")
		return
	}

	uidStr := c.GetHeader("X-User-ID")
	if uidStr == "" {
		uidStr = c.Query("user_id")
	}
	uid, err := strconv.ParseInt(uidStr, 10, 64)
	if err != nil || uid <= 0 {
		utils.Error(c, http.StatusUnauthorized, "user identity is required")
		return
	}

	proj, err := a.repos.Projects.GetOwned(c.Request.Context(), projectID, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "project not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, "failed to load project")
		return
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	a.hub.Subscribe(conn, uid, projectID)
	defer a.hub.Unsubscribe(conn, uid, projectID)

	// Push the current state right away so the client never misses a
	// transition that happened between its HTTP poll and the handshake.
	if err := conn.WriteJSON(notify.EventFromProject(proj)); err != nil {
		return
	}

	raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	for {
		_, msg, err := raw.ReadMessage()
		if err != nil {
			return
		}
		switch strings.TrimSpace(string(msg)) {
		case "ping":
			if err := conn.WriteJSON(gin.H{"type": "pong"}); err != nil {
				return
			}
		case "status":
			p, err := a.repos.Projects.GetOwned(c.Request.Context(), projectID, uid)
			if err != nil {
				continue
			}
			if err := conn.WriteJSON(notify.EventFromProject(p)); err != nil {
				return
			}
		}
	}
}
