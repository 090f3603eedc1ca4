package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes wires the agent surface plus liveness and metrics.
func (s *Server) setupRoutes() {
	a := s.router.Group("/api/agent")
	{
		a.POST("/start", s.handleStart)
		a.POST("/stop", s.handleStop)
		a.POST("/pause", s.handlePause)
		a.POST("/resume", s.handleResume)

		a.GET("/status", s.handleStatus)
		a.GET("/orders", s.handleOrders)
		a.GET("/versions", s.handleVersions)
		a.GET("/simulations", s.handleSimulations)
		a.GET("/full-status", s.handleFullStatus)
		a.GET("/brain", s.handleBrain)

		a.GET("/events", s.handleEvents)
		a.GET("/events/latest", s.handleEventsLatest)
		a.GET("/events/stats", s.handleEventsStats)
		a.DELETE("/events", s.handleEventsClear)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
