package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/common"
	"github.com/suPer8Hu/yieldwise/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Identity is the rate limit key: the user id when authenticated, else the
// client address.
func Identity(c *gin.Context) string {
	if uid, ok := UserID(c); ok {
		return "user:" + strconv.FormatUint(uid, 10)
	}
	return "ip:" + c.ClientIP()
}

// RateLimit rejects a request with 429 once any rule is exhausted for the
// caller's identity. A refused request uses up none of the rules. Limiter
// errors are logged and the request is let through.
func RateLimit(lim ratelimit.Limiter, scope string, log *zap.Logger, rules ...ratelimit.Rule) gin.HandlerFunc {
	// an unreachable limiter would otherwise log on every request
	warn := &rate.Sometimes{First: 1, Interval: 30 * time.Second}

	return func(c *gin.Context) {
		key := scope + ":" + Identity(c)
		d, err := lim.Allow(c.Request.Context(), key, rules...)
		if err != nil {
			warn.Do(func() {
				log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			})
			c.Next()
			return
		}
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			common.Abort(c, http.StatusTooManyRequests, 42901, "Rate limit exceeded. Please try again later.")
			return
		}
		c.Next()
	}
}
