package v1

import (
	"net/http"
	"time"

	"github.com/alexliesenfeld/health"
	"github.com/gin-gonic/gin"

	"github.com/crowdsecurity/go-cs-lib/version"
)

const readinessTimeout = 5 * time.Second

type HealthController struct {
	startedAt time.Time
	engine    Engine
}

func NewHealthController(eng Engine) *HealthController {
	return &HealthController{
		startedAt: time.Now().UTC(),
		engine:    eng,
	}
}

type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Running       bool   `json:"running"`
}

// GetHealth does not touch the store.
func (c *HealthController) GetHealth(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Version:       version.String(),
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Running:       c.engine.Status().Running,
	})
}

// NewReadinessHandler answers 200 when the store is reachable and 503
// otherwise. Stopped listeners do not make the service unready, they can be
// restarted through the API.
func NewReadinessHandler(eng Engine) http.Handler {
	checker := health.NewChecker(
		health.WithTimeout(readinessTimeout),
		health.WithCheck(health.Check{
			Name:  "database",
			Check: eng.Ping,
		}),
		health.WithInfo(map[string]any{"version": version.String()}),
	)

	return health.NewHandler(checker)
}
