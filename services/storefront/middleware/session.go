package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	SessionCookie = "sid"
	sessionKey    = "sessionId"
	sessionMaxAge = 30 * 24 * time.Hour
)

// NewSessionMiddleware makes sure every request carries a session id,
// issuing a fresh cookie when the client has none or a malformed one.
func NewSessionMiddleware(secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies(SessionCookie)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(sessionKey, sid)
		return c.Next()
	}
}

// SessionID returns the id stored by the session middleware.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(sessionKey).(string)
	return sid
}
