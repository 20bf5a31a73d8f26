package v1

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelhq/sentinel/pkg/database"
)

func (c *Controller) GetStatistics(gctx *gin.Context) {
	gctx.JSON(http.StatusOK, c.Engine.Statistics(gctx.Request.Context()))
}

// ListAttacks returns the newest events, optionally only those of source_ip.
func (c *Controller) ListAttacks(gctx *gin.Context) {
	limit, ok := limitParam(gctx)
	if !ok {
		return
	}

	if ip := gctx.Query("source_ip"); ip != "" {
		gctx.JSON(http.StatusOK, c.Engine.EventsBySource(gctx.Request.Context(), ip, limit))
		return
	}

	gctx.JSON(http.StatusOK, c.Engine.RecentEvents(gctx.Request.Context(), limit))
}

func (c *Controller) GetAttack(gctx *gin.Context) {
	id, ok := idParam(gctx)
	if !ok {
		return
	}

	evt := c.Engine.Event(gctx.Request.Context(), id)
	if evt == nil {
		abortWithMessage(gctx, http.StatusNotFound, fmt.Sprintf("attack %d not found", id))
		return
	}

	gctx.JSON(http.StatusOK, evt)
}

func (c *Controller) DeleteAttack(gctx *gin.Context) {
	id, ok := idParam(gctx)
	if !ok {
		return
	}

	found, err := c.Engine.DeleteEvent(gctx.Request.Context(), id)
	if err != nil {
		c.Log.Errorf("delete attack %d: %s", id, err)
		abortWithMessage(gctx, http.StatusInternalServerError, "unable to delete attack")

		return
	}

	if !found {
		abortWithMessage(gctx, http.StatusNotFound, fmt.Sprintf("attack %d not found", id))
		return
	}

	gctx.Status(http.StatusNoContent)
}

func (c *Controller) Export(gctx *gin.Context) {
	format := gctx.DefaultQuery("format", database.FormatJSON)

	data, err := c.Engine.ExportAll(gctx.Request.Context(), format)
	if err != nil {
		if errors.Is(err, database.ErrUnknownFormat) {
			abortWithMessage(gctx, http.StatusBadRequest, err.Error())
			return
		}

		abortWithMessage(gctx, http.StatusInternalServerError, err.Error())

		return
	}

	contentType := "application/json"
	if format == database.FormatCSV {
		contentType = "text/csv"
	}

	filename := fmt.Sprintf("attacks_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	gctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	gctx.Data(http.StatusOK, contentType, data)
}
