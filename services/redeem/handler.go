package redeem

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
	g.POST("/airtime-redeem", h.AirtimeRedeem)
}

func (h *Handler) AirtimeRedeem(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(errutil.ValidationFailed("phone and points are required", err))
		return
	}

	result, err := h.svc.Redeem(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
