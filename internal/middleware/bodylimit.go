package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// BodySizeLimit caps the request body. Attachment uploads carry the
// mailbox ceiling; everything else gets a small JSON-sized cap from the
// router.
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Request body too large",
				"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
				"size":    c.Request.ContentLength,
			})
			c.Abort()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()

		if c.Errors != nil {
			for _, err := range c.Errors {
				if err.Err != nil && err.Err.Error() == "http: request body too large" {
					c.JSON(http.StatusRequestEntityTooLarge, gin.H{
						"error":   "Request body too large",
						"message": fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytes),
						"limit":   maxBytes,
					})
					return
				}
			}
		}
	}
}
