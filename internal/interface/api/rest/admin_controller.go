package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dropshare-api/internal/application/ports"
	"dropshare-api/internal/infrastructure/jwt"
	"dropshare-api/internal/interface/api/rest/middleware"
)

type AdminController struct {
	sweeper ports.Sweeper
	logger  *zap.Logger
}

func NewAdminController(
	r *gin.Engine,
	sweeper ports.Sweeper,
	logger *zap.Logger,
	jwtService *jwt.Service,
) *AdminController {
	ac := &AdminController{
		sweeper: sweeper,
		logger:  logger,
	}

	r.POST(RouteSweep,
		middleware.AuthMiddleware(jwtService),
		middleware.RequireRole(jwt.RoleOperator),
		ac.SweepHandler,
	)

	return ac
}

// SweepHandler runs one sweep synchronously. It only ever reclaims
// containers that are already expired.
func (ac *AdminController) SweepHandler(c *gin.Context) {
	res := ac.sweeper.RunOnce(c.Request.Context())

	ac.logger.Info("manual sweep",
		zap.String("operator", c.GetString(middleware.CtxOperatorEmail)),
		zap.Bool("skipped", res.Skipped),
		zap.Int("reclaimed", res.Reclaimed),
		zap.Int("failed", res.Failed),
	)

	if res.Skipped {
		c.JSON(http.StatusConflict, gin.H{"error": "a sweep is already running on another instance"})
		return
	}

	c.JSON(http.StatusOK, res)
}
