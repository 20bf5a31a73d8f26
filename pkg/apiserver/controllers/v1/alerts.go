package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListAlerts returns the alerts not yet acknowledged, newest first.
func (c *Controller) ListAlerts(gctx *gin.Context) {
	limit, ok := limitParam(gctx)
	if !ok {
		return
	}

	gctx.JSON(http.StatusOK, c.Engine.Alerts(gctx.Request.Context(), limit))
}

func (c *Controller) AcknowledgeAlert(gctx *gin.Context) {
	id, ok := idParam(gctx)
	if !ok {
		return
	}

	found, err := c.Engine.AcknowledgeAlert(gctx.Request.Context(), id)
	if err != nil {
		c.Log.Errorf("acknowledge alert %d: %s", id, err)
		abortWithMessage(gctx, http.StatusInternalServerError, "unable to acknowledge alert")

		return
	}

	if !found {
		abortWithMessage(gctx, http.StatusNotFound, fmt.Sprintf("alert %d not found", id))
		return
	}

	gctx.JSON(http.StatusOK, gin.H{"id": id, "is_acknowledged": true})
}
