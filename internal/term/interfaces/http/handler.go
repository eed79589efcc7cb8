// Package http exposes the service configuration to the officer console.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slpk/loandocs/internal/term/application"
	"github.com/slpk/loandocs/internal/term/domain"
)

// Handler serves the service configuration endpoints.
type Handler struct {
	resolver *application.Resolver
}

// NewHandler registers the configuration routes.
func NewHandler(r *gin.Engine, resolver *application.Resolver) {
	h := &Handler{resolver: resolver}

	g := r.Group("/api/v1/officer/service-config")
	{
		g.GET("", h.get)
		g.PUT("", h.put)
	}
	r.GET("/api/v1/term", h.currentTerm)
}

func (h *Handler) get(c *gin.Context) {
	cfg, err := h.resolver.Config(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *Handler) put(c *gin.Context) {
	var cfg domain.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg.UpdatedBy = c.GetHeader("X-Officer-ID")

	if err := h.resolver.SaveConfig(c.Request.Context(), cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// currentTerm tells clients which term is accepting documents and whether
// the window is open right now.
func (h *Handler) currentTerm(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"term":       h.resolver.CurrentTerm(ctx),
		"windowOpen": h.resolver.WindowOpen(ctx),
	})
}
