package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/notifications"
	"github.com/vigil-app/vigil/internal/services"
	"github.com/vigil-app/vigil/pkg/logger"
	"github.com/vigil-app/vigil/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// NotificationHandler exposes the inbox and the live stream endpoints.
type NotificationHandler struct {
	service  *services.NotificationService
	hub      *notifications.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(db *gorm.DB, hub *notifications.Hub) (*NotificationHandler, error) {
	service, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	return &NotificationHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Access is bearer-token authenticated, not cookie-based,
			// so cross-origin upgrades carry no ambient credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.WithModule("stream"),
	}, nil
}

// List returns the caller's inbox, defaulting to unread entries.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, err := intQuery(c, "limit", 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := services.StatusFilter(strings.TrimSpace(c.DefaultQuery("status", string(services.StatusUnread))))

	entries, err := h.service.ListForUser(c.Request.Context(), services.ListInboxInput{
		UserID: userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, entries, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Count:  len(entries),
	})
}

// MarkRead flags one inbox entry as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	entryID := strings.TrimSpace(c.Param("id"))
	if err := h.service.MarkRead(c.Request.Context(), userID, entryID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Delete soft-deletes one inbox entry.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	entryID := strings.TrimSpace(c.Param("id"))
	if err := h.service.SoftDelete(c.Request.Context(), userID, entryID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stream holds the connection open as a server-sent event stream and forwards
// every payload published for the caller. The session registers its channel
// on entry and deregisters exactly once on any exit path.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ch := h.hub.Register(userID)
	defer h.hub.Deregister(userID, ch)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	c.SSEvent("connected", gin.H{})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case payload, open := <-ch.Receive():
			if !open {
				return
			}
			c.SSEvent("notification", payload)
			c.Writer.Flush()
		}
	}
}

type wsFrame struct {
	Event string                 `json:"event"`
	Data  *notifications.Payload `json:"data,omitempty"`
}

// StreamWS is the WebSocket flavour of Stream for clients that prefer a
// bidirectional transport. Payload semantics are identical; inbound messages
// are drained and discarded.
func (h *NotificationHandler) StreamWS(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ch := h.hub.Register(userID)
	defer func() {
		h.hub.Deregister(userID, ch)
		_ = conn.Close()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// The read loop only exists to observe the peer closing.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(wsFrame{Event: "connected"}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-readerDone:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case payload, open := <-ch.Receive():
			if !open {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsFrame{Event: "notification", Data: &payload}); err != nil {
				return
			}
		}
	}
}
