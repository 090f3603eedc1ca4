package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quantlabhq/tradelab/internal/agent"
	"github.com/quantlabhq/tradelab/internal/events"
	"github.com/quantlabhq/tradelab/internal/trader"
)

type startRequest struct {
	Symbol         string  `json:"symbol"`
	InitialCapital float64 `json:"initial_capital"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if req.InitialCapital <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initial_capital must be positive"})
		return
	}

	id, err := s.manager.Start(c.Request.Context(), req.Symbol, req.InitialCapital)
	if err != nil {
		if errors.Is(err, agent.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "started", "agent_id": id})
}

func (s *Server) handleStop(c *gin.Context) {
	if err := s.manager.Stop(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handlePause(c *gin.Context) {
	if err := s.manager.Pause(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) handleResume(c *gin.Context) {
	if err := s.manager.Resume(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.agentStatus())
}

func (s *Server) handleOrders(c *gin.Context) {
	var orders []trader.Order
	if a, ok := s.manager.Agent(); ok {
		orders = a.Orders()
	}
	if orders == nil {
		orders = []trader.Order{}
	}

	active, closed := 0, 0
	for _, o := range orders {
		if o.Status == trader.StatusOpen {
			active++
		} else {
			closed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"active": active,
		"closed": closed,
		"total":  len(orders),
	})
}

func (s *Server) handleVersions(c *gin.Context) {
	a, ok := s.manager.Agent()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"versions": []any{}, "current_version": nil, "total": 0})
		return
	}

	versions := a.Versions()
	resp := gin.H{"versions": versions, "total": len(versions), "current_version": nil}
	if current, ok := a.CurrentVersion(); ok {
		resp["current_version"] = current
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSimulations(c *gin.Context) {
	var sims []agent.SimulationResult
	if a, ok := s.manager.Agent(); ok {
		sims = a.Simulations(0)
	}
	if sims == nil {
		sims = []agent.SimulationResult{}
	}
	c.JSON(http.StatusOK, gin.H{"simulations": sims, "total": len(sims)})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	eventType := events.Type(c.Query("event_type"))

	c.JSON(http.StatusOK, gin.H{
		"events": s.bus.Get(limit, eventType, time.Time{}),
		"stats":  s.bus.Stats(),
	})
}

func (s *Server) handleEventsLatest(c *gin.Context) {
	count, _ := strconv.Atoi(c.DefaultQuery("count", "20"))

	c.JSON(http.StatusOK, gin.H{
		"events":       s.bus.Latest(count),
		"agent_status": s.agentStatus(),
	})
}

func (s *Server) handleEventsStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.bus.Stats())
}

func (s *Server) handleEventsClear(c *gin.Context) {
	s.bus.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) handleFullStatus(c *gin.Context) {
	resp := gin.H{
		"agent":       s.agentStatus(),
		"events":      s.bus.Latest(30),
		"event_stats": s.bus.Stats(),
		"brain":       s.advisor.Stats(),
		"versions":    []any{},
		"simulations": []agent.SimulationResult{},
		"orders":      []trader.Order{},
		"symbol":      "",
		"price":       0.0,
	}

	a, ok := s.manager.Agent()
	if !ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	resp["symbol"] = a.Symbol()
	resp["versions"] = a.Versions()
	resp["simulations"] = a.Simulations(10)

	orders := a.Orders()
	if len(orders) > 20 {
		orders = orders[len(orders)-20:]
	}
	resp["orders"] = orders

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if price, err := a.CurrentPrice(ctx); err == nil {
		resp["price"] = price
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBrain(c *gin.Context) {
	c.JSON(http.StatusOK, s.advisor.Stats())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// agentStatus projects the current agent, or an idle placeholder when
// none has been started yet.
func (s *Server) agentStatus() agent.Status {
	if a, ok := s.manager.Agent(); ok {
		return a.Status()
	}
	return agent.Status{State: agent.StateIdle}
}
