package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-signup-backend/internal/http/middleware"
	"github.com/tbourn/go-signup-backend/internal/storage"
)

// GetImage godoc
// @ID          getImage
// @Summary     Download a stored sign-up image
// @Tags        Images
// @Produce     image/png,image/jpeg,image/webp,application/octet-stream
// @Param       key  path  string  true  "Object key"
// @Success     200  {file}    binary
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /images/{key} [get]
func (h *Handlers) GetImage(c *gin.Context) {
	data, ct, err := h.images.Get(c.Request.Context(), c.Param("key"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "image not found")
		return
	case err != nil:
		middleware.LoggerFrom(c).Error().Err(err).Str("key", c.Param("key")).Msg("image read failed")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
		return
	}
	// Keys are random and never rewritten.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, ct, data)
}
