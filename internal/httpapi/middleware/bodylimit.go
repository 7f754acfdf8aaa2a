package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/yieldwise/internal/common"
)

const MaxBodyBytes = 16 << 20

const TooLargeMessage = "File too large. Maximum size is 16MB."

// BodyLimit caps request bodies. Declared oversize bodies are rejected up
// front; undeclared ones fail on read with *http.MaxBytesError.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			common.Abort(c, http.StatusRequestEntityTooLarge, 41301, TooLargeMessage)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
