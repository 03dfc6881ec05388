package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"projectnest/internal/services"
	"projectnest/internal/utils"
)

type RealtimeHandler struct {
	broker    *services.Broker
	presence  *services.Presence
	keepAlive time.Duration
}

func NewRealtimeHandler(broker *services.Broker, presence *services.Presence) *RealtimeHandler {
	return &RealtimeHandler{broker: broker, presence: presence, keepAlive: 25 * time.Second}
}

// Stream pushes the user's events as server-sent events until the client
// goes away.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	user := actor(c)
	sub := h.broker.Subscribe(user.ID)
	defer h.broker.Unsubscribe(sub)
	h.presence.Connect(user.ID)
	defer h.presence.Disconnect(user.ID)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{"user_id": user.ID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-sub.Events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

// Presence answers ?ids=1,2,3 with the online state of each user.
func (h *RealtimeHandler) Presence(c *gin.Context) {
	var ids []uint
	for _, part := range strings.Split(c.Query("ids"), ",") {
		if id, ok := utils.ParseID(strings.TrimSpace(part)); ok {
			ids = append(ids, id)
		}
	}
	c.JSON(http.StatusOK, h.presence.Online(ids))
}
