// Package http exposes the questionnaire wizard over HTTP.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slpk/loandocs/internal/survey/application"
	"github.com/slpk/loandocs/internal/survey/domain"
)

// Handler serves the survey endpoints.
type Handler struct {
	app *application.Service
}

// NewHandler registers the survey routes.
func NewHandler(r *gin.Engine, app *application.Service) {
	h := &Handler{app: app}

	g := r.Group("/api/v1/survey")
	{
		g.GET("", h.state)
		g.POST("/answers", h.answer)
		g.POST("/back", h.back)
		g.POST("/reset", h.reset)
		g.GET("/requirements", h.requirements)
	}
}

func studentID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Student-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Student-ID header is required"})
		return "", false
	}
	return id, true
}

func (h *Handler) state(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	st, err := h.app.State(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

type answerRequest struct {
	Option domain.Option `json:"option" binding:"required"`
}

func (h *Handler) answer(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.app.Answer(c.Request.Context(), id, req.Option)
	if err != nil {
		var invalid *domain.InvalidOptionError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
		case errors.Is(err, domain.ErrFlowComplete):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) back(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	st, err := h.app.Back(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) reset(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	st, err := h.app.Reset(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) requirements(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	reqs, err := h.app.Requirements(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requirements": reqs})
}
