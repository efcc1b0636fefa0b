package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"ragchat/internal/core"
	"ragchat/internal/usage"
)

const (
	defaultUsageDays = 7
	maxUsageDays     = 365
)

type usageResponse struct {
	Since time.Time       `json:"since"`
	Usage []usage.Summary `json:"usage"`
}

// Usage handles GET /api/usage?days=N with per provider and model totals.
func (h *Handler) Usage(c echo.Context) error {
	if h.deps.Reader == nil {
		return handleError(c, core.NewNotFoundError("usage tracking is disabled"))
	}

	days := defaultUsageDays
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxUsageDays {
			return handleError(c, core.NewInvalidRequestError("days must be an integer between 1 and 365", err))
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	summary, err := h.deps.Reader.Summary(c.Request().Context(), since)
	if err != nil {
		return handleError(c, core.NewInternalError("failed to read usage", err))
	}
	return c.JSON(http.StatusOK, usageResponse{Since: since, Usage: summary})
}
