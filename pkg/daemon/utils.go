package daemon

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/controller"
	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/sweep"
)

// Logger is the logrus logger handler
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// other handler can change c.Path so:
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()
		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}

		entry := logger.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latency":    latency, // time to process
			"method":     c.Request.Method,
			"path":       path,
			"dataLength": dataLength,
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else {
			msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, statusCode, latency)
			//nolint:gocritic
			if statusCode >= http.StatusInternalServerError {
				entry.Error(msg)
			} else if statusCode >= http.StatusBadRequest {
				entry.Warn(msg)
			} else {
				entry.Debug(msg)
			}
		}
	}
}

// httpStatusOf maps domain rejections onto HTTP statuses: conflicts for
// state that forbids the operation right now, bad request for impossible
// asks, internal error for everything else.
func httpStatusOf(err error) int {
	switch {
	case errors.Is(err, sweep.ErrActive),
		errors.Is(err, sweep.ErrNotRunning),
		errors.Is(err, mapping.ErrUncalibrated),
		errors.Is(err, mapping.ErrCurveIncomplete),
		errors.Is(err, mapping.ErrFitDiverged),
		errors.Is(err, mapping.ErrNonInvertible):
		return http.StatusConflict
	case errors.Is(err, controller.ErrOutOfBounds),
		errors.Is(err, controller.ErrNoSwitch),
		errors.Is(err, controller.ErrNoMeter),
		errors.Is(err, mapping.ErrOutOfRange):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := httpStatusOf(err)
	if code >= http.StatusInternalServerError {
		logrus.Errorf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}
