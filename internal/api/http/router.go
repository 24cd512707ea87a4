package http

import (
	"github.com/gin-gonic/gin"

	"github.com/fleetware/registrar/internal/api/http/handler"
	"github.com/fleetware/registrar/internal/api/http/middleware"
	"github.com/fleetware/registrar/internal/registration"
)

type Services struct {
	Pipeline *registration.Pipeline
	Stats    *registration.Stats
}

func SetupRoute(engine *gin.Engine, srvs *Services) {
	engine.Use(middleware.RequestLogger())

	healthHandler := handler.NewHealthHandler()
	engine.GET("/health", healthHandler.Check)

	v1 := engine.Group("/api/v1")
	{
		registrationsHandler := handler.NewRegistrationsHandler(srvs.Pipeline)
		v1.POST("/registrations", registrationsHandler.Register)

		statsHandler := handler.NewStatsHandler(srvs.Stats)
		v1.GET("/stats", statsHandler.Snapshot)
	}
}
