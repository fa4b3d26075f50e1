package apiv1

import (
	"net/http"

	"github.com/docsift/docsift/pkg/repository"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type HealthGroup struct {
	repo        repository.CredentialRepository
	routerGroup *echo.Group
}

func NewHealthGroup(g *echo.Group, repo repository.CredentialRepository) *HealthGroup {
	group := &HealthGroup{routerGroup: g, repo: repo}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	err := h.repo.Ping(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "not ok",
			"error":  err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
