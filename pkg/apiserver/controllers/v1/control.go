package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinelhq/sentinel/pkg/engine"
)

type StartRequest struct {
	Ports        []int `json:"ports"`
	HighPortMode *bool `json:"high_port_mode"`
}

func (c *Controller) GetStatus(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, c.Engine.Status())
}

func (c *Controller) StartHoneypot(gctx *gin.Context) {
	var req StartRequest

	// an empty body starts the default ports
	if err := gctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithMessage(gctx, http.StatusBadRequest, err.Error())
		return
	}

	for _, port := range req.Ports {
		if port < 0 || port > 65535 {
			abortWithMessage(gctx, http.StatusBadRequest, "invalid port")
			return
		}
	}

	highPortMode := c.HighPortMode
	if req.HighPortMode != nil {
		highPortMode = *req.HighPortMode
	}

	err := c.Engine.Start(gctx.Request.Context(), req.Ports, highPortMode)

	switch {
	case err == nil:
		gctx.JSON(http.StatusOK, c.Engine.Status())
	case errors.Is(err, engine.ErrAlreadyRunning):
		abortWithMessage(gctx, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrPermissionDenied):
		abortWithMessage(gctx, http.StatusForbidden, err.Error())
	default:
		c.Log.Errorf("start failed: %s", err)
		abortWithMessage(gctx, http.StatusInternalServerError, err.Error())
	}
}

func (c *Controller) StopHoneypot(gctx *gin.Context) {
	err := c.Engine.Stop()

	switch {
	case err == nil:
		gctx.JSON(http.StatusOK, c.Engine.Status())
	case errors.Is(err, engine.ErrNotRunning):
		abortWithMessage(gctx, http.StatusConflict, err.Error())
	default:
		c.Log.Errorf("stop failed: %s", err)
		abortWithMessage(gctx, http.StatusInternalServerError, err.Error())
	}
}

func (c *Controller) ClearAll(gctx *gin.Context) {
	if err := c.Engine.ClearAll(gctx.Request.Context()); err != nil {
		c.Log.Errorf("clear failed: %s", err)
		abortWithMessage(gctx, http.StatusInternalServerError, "unable to clear data")

		return
	}

	gctx.JSON(http.StatusOK, gin.H{"message": "all data cleared"})
}
