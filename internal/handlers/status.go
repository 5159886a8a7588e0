package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rmitchellscott/creativeforge/internal/logging"
)

const (
	statusStreamTimeout = 10 * time.Minute
	statusWriteTimeout  = 5 * time.Second
)

// Status returns the current state of a tracked job.
func (h *Handlers) Status(c *gin.Context) {
	if job, ok := h.Jobs.Get(c.Param("id")); ok {
		c.JSON(http.StatusOK, job)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
}

// StatusStream pushes job updates over a websocket until the job reaches a
// terminal state. The job does not need to exist yet: clients usually
// connect before posting the request that creates it.
func (h *Handlers) StatusStream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.Config.WSOriginPatterns,
	})
	if err != nil {
		logging.Warnf("[STATUS] Websocket upgrade failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(c.Request.Context())
	updates, unsubscribe := h.Jobs.Subscribe(c.Param("id"))
	defer unsubscribe()

	timeout := time.NewTimer(statusStreamTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout.C:
			conn.Close(websocket.StatusGoingAway, "timeout")
			return
		case job, ok := <-updates:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
			err := wsjson.Write(wctx, conn, job)
			cancel()
			if err != nil {
				return
			}
			if job.Terminal() {
				conn.Close(websocket.StatusNormalClosure, job.Status)
				return
			}
		}
	}
}
