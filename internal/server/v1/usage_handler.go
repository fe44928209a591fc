package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modelrelay/relay/internal/usage"
	"github.com/modelrelay/relay/pkg/schema"
)

// UsageHandler exposes the persisted accounting records to operators.
type UsageHandler struct {
	reader usage.Reader
}

func NewUsageHandler(reader usage.Reader) *UsageHandler {
	return &UsageHandler{reader: reader}
}

// RecentUsage returns the latest records, newest first. ?limit caps the
// page, defaulting to 50.
func (h *UsageHandler) RecentUsage(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	records, err := h.reader.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
			"failed to read usage records"))
		return
	}
	if records == nil {
		records = []usage.Record{}
	}
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   records,
	})
}

// DailyUsage returns per-provider daily aggregates over the last ?days
// days, defaulting to 7.
func (h *UsageHandler) DailyUsage(c *gin.Context) {
	days := intQuery(c, "days", 7)
	stats, err := h.reader.DailyStats(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(schema.NewError(http.StatusInternalServerError, schema.ErrTypeInternal,
			"failed to aggregate usage records"))
		return
	}
	if stats == nil {
		stats = []usage.DailyStat{}
	}
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   stats,
	})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
