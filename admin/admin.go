// Package admin exposes a small gin HTTP surface for operational
// inspection: breaker states, a manual reset, and the aggregator
// buffer size. Grounded on trade_executor.go's HandleExecuteRequest
// (Quentinlac-poly) for the handler shape (context, JSON response,
// success/error branching) even though the underlying operations here
// are read-only introspection rather than trade execution.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/aggregator"
	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/breaker"
)

// Server wires the admin routes to a breaker registry and aggregator.
type Server struct {
	Breakers   *breaker.Registry
	Aggregator *aggregator.Aggregator
}

// New constructs an admin Server.
func New(breakers *breaker.Registry, agg *aggregator.Aggregator) *Server {
	return &Server{Breakers: breakers, Aggregator: agg}
}

// Register mounts the admin routes on an existing gin engine.
func (s *Server) Register(router *gin.Engine) {
	router.GET("/admin/breakers", s.handleGetAllStates)
	router.POST("/admin/breakers/reset", s.handleResetAll)
	router.GET("/admin/aggregator", s.handleAggregatorStatus)
}

func (s *Server) handleGetAllStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"breakers": s.Breakers.GetAllStates()})
}

func (s *Server) handleResetAll(c *gin.Context) {
	s.Breakers.ResetAll()
	c.JSON(http.StatusOK, gin.H{"breakers": s.Breakers.GetAllStates()})
}

func (s *Server) handleAggregatorStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bufferSize": s.Aggregator.GetAggregationBufferSize()})
}
