package reward

import (
	"net/http"

	"swaply-rewards/pkg/config"
	"swaply-rewards/pkg/errutil"
	"swaply-rewards/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(e *gin.Engine, cfg *config.Config, h *Handler) {
	g := e.Group("/v1/rewards", middleware.Error(), middleware.Auth(cfg.Auth.JWTSecret))
	g.POST("/listing-published", h.ListingPublished)
	g.GET("/state", h.State)
}

func (h *Handler) ListingPublished(c *gin.Context) {
	var in PublishInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.ValidationFailed("listing_id is required", err))
		return
	}

	result, err := h.svc.RecordQualifyingEvent(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) State(c *gin.Context) {
	result, err := h.svc.CenterState(c.Request.Context(), middleware.UserID(c), c.Query("campaign_code"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
