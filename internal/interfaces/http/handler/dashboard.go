package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/wakfboard/backend/internal/application/dcb"
)

// DashboardHandler handles the board-level DCB dashboard endpoints
type DashboardHandler struct {
	BaseHandler
	stats *dcb.AggregationService
}

// NewDashboardHandler creates a new DashboardHandler
func NewDashboardHandler(stats *dcb.AggregationService) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// RegisterRoutes registers dashboard routes
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/dashboard")
	{
		group.GET("/stats", h.Stats)
		group.GET("/rankings", h.Rankings)
		group.GET("/entries", h.Entries)
		group.GET("/districts/:district/entries", h.DistrictEntries)
		group.GET("/districts/:district/institutions/:gazette_no", h.InstitutionEntry)
		group.GET("/institution-count", h.InstitutionCount)
	}
}

// dashboardQuery holds the query parameters shared by dashboard endpoints
type dashboardQuery struct {
	// VerifiedOnly restricts figures to confirmed collections
	VerifiedOnly bool `form:"verified_only"`
}

// Stats returns the board-wide demand/collection/balance headline figures.
// Totals are exact sums pushed down to each district partition; districts
// whose partition is unavailable are listed as skipped.
func (h *DashboardHandler) Stats(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	stats, err := h.stats.HeadlineStats(c.Request.Context(), q.VerifiedOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// Rankings returns districts ordered by collected amount
func (h *DashboardHandler) Rankings(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	ranked, skipped, err := h.stats.DistrictRankings(c.Request.Context(), q.VerifiedOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"rankings": ranked, "skipped": skipped})
}

// Entries returns a row-capped sweep of every district partition, for the
// drill-down browsing view. Headline totals come from Stats, never from this
// capped read.
func (h *DashboardHandler) Entries(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.stats.DetailRows(c.Request.Context(), q.VerifiedOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DistrictEntries returns one district's ledger rows
func (h *DashboardHandler) DistrictEntries(c *gin.Context) {
	var q dashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entries, err := h.stats.DistrictRows(c.Request.Context(), c.Param("district"), q.VerifiedOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// InstitutionEntry returns one institution's ledger row by gazette number
func (h *DashboardHandler) InstitutionEntry(c *gin.Context) {
	entry, err := h.stats.InstitutionEntry(c.Request.Context(), c.Param("district"), c.Param("gazette_no"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if entry == nil {
		h.NotFound(c, "No ledger entry for this gazette number")
		return
	}
	h.Success(c, entry)
}

// InstitutionCount returns the number of distinct institutions across all
// partitions. Counted from row-capped reads, so it is a floor, not an exact
// census.
func (h *DashboardHandler) InstitutionCount(c *gin.Context) {
	count, skipped, err := h.stats.CountInstitutions(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"count": count, "skipped": skipped})
}
