package handler

import (
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/gin-gonic/gin"
)

// NotificationsHandler hands pending toasts to the client
type NotificationsHandler struct {
	BaseHandler
}

// NewNotificationsHandler creates a new NotificationsHandler
func NewNotificationsHandler() *NotificationsHandler {
	return &NotificationsHandler{}
}

// Drain returns and removes the session's pending notifications, oldest first.
// GET /notifications
func (h *NotificationsHandler) Drain(c *gin.Context) {
	sf, ok := h.storefront(c)
	if !ok {
		return
	}
	items := []notify.Notification{}
	if inbox := sf.Inbox(); inbox != nil {
		if drained := inbox.Drain(); len(drained) > 0 {
			items = drained
		}
	}
	h.Success(c, items)
}
