package apiserver

import (
	"errors"
	"net/http"
	"syscall"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/go-cs-lib/trace"
)

// clientGone reports whether a panic value only means the client hung up.
func clientGone(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}

	return errors.Is(err, http.ErrAbortHandler) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// Recovery turns a handler panic into a 500 and a stack trace file.
func Recovery(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}

			clog := logger.WithFields(log.Fields{
				"client": c.ClientIP(),
				"route":  c.FullPath(),
			})

			if clientGone(v) {
				clog.Warningf("client disconnected: %v", v)
				c.Abort()

				return
			}

			filename, err := trace.WriteStackTrace(v)
			if err != nil {
				clog.Errorf("panic in handler: %v (stack trace not written: %s)", v, err)
			} else {
				clog.Errorf("panic in handler: %v, stack trace in %s", v, filename)
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		}()

		c.Next()
	}
}
