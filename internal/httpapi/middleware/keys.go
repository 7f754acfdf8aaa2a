package middleware

import "github.com/gin-gonic/gin"

const (
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
	RequestIDKey = "request_id"
)

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}

// SessionID returns the anonymous session id set by GuestSession.
func SessionID(c *gin.Context) string {
	return c.GetString(SessionIDKey)
}
