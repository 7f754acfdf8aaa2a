package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/suPer8Hu/yieldwise/internal/common"
)

const SessionCookie = "yw_session"

// GuestSession gives every client an opaque session id cookie. Guest quota
// state is keyed by it, so its lifetime is the quota's lifetime.
func GuestSession(ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || !validSessionID(sid) {
			sid, err = common.NewULID()
			if err != nil {
				common.Abort(c, http.StatusInternalServerError, 50001, "internal error")
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid, int(ttl/time.Second), "/", "", secure, true)
		}
		c.Set(SessionIDKey, sid)
		c.Next()
	}
}

func validSessionID(s string) bool {
	if len(s) != ulid.EncodedSize {
		return false
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
