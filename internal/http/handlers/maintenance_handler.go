// Maintenance HTTP handlers.
//
//   - POST /maintenance/tokens/purge  (delete expired idempotency tokens)
//
// The periodic sweeper runs the same operation in the background.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PurgeTokensResponse reports how many ledger entries were deleted.
type PurgeTokensResponse struct {
	Purged int64 `json:"purged" example:"12"`
}

// PurgeExpiredTokens godoc
// @ID          purgeExpiredTokens
// @Summary     Purge expired idempotency tokens
// @Tags        Maintenance
// @Produce     json
// @Success     200  {object}  handlers.PurgeTokensResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /maintenance/tokens/purge [post]
func (h *Handlers) PurgeExpiredTokens(c *gin.Context) {
	n, err := h.maintSvc.PurgeExpiredTokens(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, PurgeTokensResponse{Purged: n})
}
