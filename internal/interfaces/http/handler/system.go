package handler

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports how many storefronts are live
type SessionCounter interface {
	Len() int
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	sessions  SessionCounter
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name string, sessions SessionCounter) *SystemHandler {
	return &SystemHandler{
		name:      name,
		sessions:  sessions,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Name      string `json:"name"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Sessions  int    `json:"sessions"`
}

// Health reports liveness and the number of live sessions.
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "ok",
		Name:      h.name,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.sessions != nil {
		resp.Sessions = h.sessions.Len()
	}
	h.Success(c, resp)
}
