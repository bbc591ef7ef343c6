package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"aliscan/pkg/logger"
)

// GetProduct fetches one product through the MTOP session. The id segment
// may be a bare id; full item URLs are accepted via ?url=.
//
// With ?view=result only data.result is returned.
func (h *HandlerService) GetProduct(c *gin.Context) {
	input := c.Param("id")
	if u := strings.TrimSpace(c.Query("url")); u != "" {
		input = u
	}
	if strings.TrimSpace(input) == "" {
		HandleError(c, NewBadRequestError("product id is required", nil))
		return
	}

	ctx := logger.WithProductID(c.Request.Context(), input)
	resp, err := h.client.FetchProduct(ctx, input)
	if err != nil {
		HandleError(c, err)
		return
	}

	if c.Query("view") == "result" {
		c.JSON(http.StatusOK, gin.H{
			"product_id": resp.ProductID,
			"trace_id":   resp.TraceID,
			"cached":     resp.Cached,
			"result":     resp.Result(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}
