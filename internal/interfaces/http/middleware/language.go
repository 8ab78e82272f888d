package middleware

import (
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// LanguageKey is the gin context key holding the negotiated language.Tag
const LanguageKey = "language"

// Language negotiates the notification language from the lang query
// parameter or the Accept-Language header and applies it to the session
// inbox. A request carrying neither keeps the inbox's current language.
func Language() gin.HandlerFunc {
	return func(c *gin.Context) {
		requested := c.Query("lang")
		if requested == "" {
			requested = c.GetHeader("Accept-Language")
		}

		sf, ok := GetStorefront(c)
		var inbox *notify.Inbox
		if ok {
			inbox = sf.Inbox()
		}

		var tag language.Tag
		switch {
		case requested != "":
			tag = notify.MatchLanguage(requested)
			if inbox != nil {
				inbox.SetLanguage(tag)
			}
		case inbox != nil:
			tag = inbox.Language()
		default:
			tag = notify.Arabic
		}

		c.Set(LanguageKey, tag)
		c.Header("Content-Language", tag.String())
		c.Next()
	}
}
