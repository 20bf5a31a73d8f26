package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func abortWithMessage(gctx *gin.Context, status int, msg string) {
	gctx.AbortWithStatusJSON(status, gin.H{"message": msg})
}

// default page size of the list routes
const defaultLimit = 50

// limitParam reads the optional "limit" query parameter, defaultLimit when absent.
func limitParam(gctx *gin.Context) (int, bool) {
	raw := gctx.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		abortWithMessage(gctx, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}

	return limit, true
}

func idParam(gctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(gctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithMessage(gctx, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}

	return id, true
}
