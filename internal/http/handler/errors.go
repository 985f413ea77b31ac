package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/service"
	"basegraph.app/assist/internal/store"
)

// respondError maps domain errors onto status codes. Anything unrecognized is a 500
// with a generic message; the cause is logged, not returned.
func respondError(c *gin.Context, err error, msg string) {
	ctx := c.Request.Context()

	var (
		validation  *model.ValidationError
		parsing     *model.ParsingError
		state       *model.ReviewStateError
		inspection  *model.InspectionError
		unavailable *model.ServiceUnavailableError
	)
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error(), "field": validation.Field})
	case errors.As(err, &parsing):
		c.JSON(http.StatusBadRequest, gin.H{"error": parsing.Error()})
	case errors.As(err, &state):
		c.JSON(http.StatusConflict, gin.H{"error": state.Error(), "state": state.From})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.As(err, &inspection):
		slog.WarnContext(ctx, msg, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "inspection unavailable, no dimension could be scored"})
	case errors.As(err, &unavailable):
		slog.WarnContext(ctx, msg, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": unavailable.Service + " service unavailable"})
	case errors.Is(err, service.ErrBatchUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		c.Status(499)
	default:
		slog.ErrorContext(ctx, msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func bindError(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return 0, false
	}
	return id, true
}
