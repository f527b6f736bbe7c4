package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundprediction/trama"
	"github.com/soundprediction/trama/pkg/server/dto"
	"github.com/soundprediction/trama/pkg/types"
)

// defaultSearchLimit applies when a search request omits the limit.
const defaultSearchLimit = 10

// SearchHandler handles hybrid search queries.
type SearchHandler struct {
	client trama.Trama
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(client trama.Trama) *SearchHandler {
	return &SearchHandler{client: client}
}

// Search handles POST /search.
func (h *SearchHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultSearchLimit
	}

	results, err := h.client.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	if results == nil {
		results = []types.FusedResult{}
	}

	c.JSON(http.StatusOK, dto.SearchResponse{
		Query:   req.Query,
		Results: results,
		Total:   len(results),
	})
}

// AdminHandler handles topology inspection and maintenance jobs.
type AdminHandler struct {
	client trama.Trama
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(client trama.Trama) *AdminHandler {
	return &AdminHandler{client: client}
}

// TopologyStats handles GET /topology/stats.
func (h *AdminHandler) TopologyStats(c *gin.Context) {
	stats, err := h.client.TopologyStats(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "stats_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RelinkAll handles POST /jobs/relink-all. It runs synchronously and
// reports per-document failures without aborting the sweep.
func (h *AdminHandler) RelinkAll(c *gin.Context) {
	errs := h.client.RelinkAll(c.Request.Context())

	failures := make([]string, 0, len(errs))
	for _, err := range errs {
		failures = append(failures, err.Error())
	}

	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{
		"status":   "completed",
		"failures": failures,
	})
}

// CommunityBridge handles POST /jobs/community-bridge.
func (h *AdminHandler) CommunityBridge(c *gin.Context) {
	var req dto.BridgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	report, err := h.client.RunCommunityBridgePass(c.Request.Context(), req.Force)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "bridge_pass_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
