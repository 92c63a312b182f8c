package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/scribe/version"
)

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// Info returns a handler that reports service version and build information.
// extra is merged into the response, e.g. the capability profile summary.
func Info(serviceName string, extra func() gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		body := gin.H{
			"service":    serviceName,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"is_release": v.IsRelease,
			"uptime":     time.Since(startTime).String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		}
		if extra != nil {
			for k, val := range extra() {
				body[k] = val
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
