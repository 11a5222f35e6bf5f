package api

import (
	"net/http"

	v1 "github.com/giropos/fiscal/internal/api/v1"
	"github.com/giropos/fiscal/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Emission    *v1.EmissionHandler
	Contingency *v1.ContingencyHandler
	Health      *v1.HealthHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	// Emission routes
	emissions := router.Group("/emissions")
	{
		emissions.POST("", handlers.Emission.EmitReceipt)
	}

	// Contingency queue routes
	contingency := router.Group("/contingency")
	{
		contingency.GET("/pending", handlers.Contingency.ListPending)
		contingency.POST("/retransmit", handlers.Contingency.RetransmitPending)
		contingency.POST("/:access_key/retransmit", handlers.Contingency.Retransmit)
	}

	// Authority health routes
	authority := router.Group("/authority")
	{
		authority.GET("/status", handlers.Health.AuthorityStatus)
	}
}
