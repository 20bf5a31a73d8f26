package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinelhq/sentinel/pkg/types"
)

type IPDetail struct {
	*types.IPRecord
	Enrichment *types.IPEnrichment `json:"enrichment,omitempty"`
	Recent     []types.AttackEvent `json:"recent_attacks"`
}

// ListIPs returns the tracked source addresses, most active first.
func (c *Controller) ListIPs(gctx *gin.Context) {
	limit, ok := limitParam(gctx)
	if !ok {
		return
	}

	gctx.JSON(http.StatusOK, c.Engine.IPRecords(gctx.Request.Context(), limit))
}

func (c *Controller) GetIP(gctx *gin.Context) {
	ip := gctx.Param("ip")
	ctx := gctx.Request.Context()

	rec := c.Engine.IPRecord(ctx, ip)
	if rec == nil {
		abortWithMessage(gctx, http.StatusNotFound, "ip "+ip+" not found")
		return
	}

	gctx.JSON(http.StatusOK, IPDetail{
		IPRecord:   rec,
		Enrichment: c.Engine.IPEnrichment(ctx, ip),
		Recent:     c.Engine.EventsBySource(ctx, ip, defaultLimit),
	})
}
