// Package http exposes the post-approval processing workflow to students
// and the officer console.
package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slpk/loandocs/internal/processing/application"
	"github.com/slpk/loandocs/internal/processing/domain"
)

// Handler serves the processing endpoints.
type Handler struct {
	app *application.Service
}

// NewHandler registers the processing routes.
func NewHandler(r *gin.Engine, app *application.Service) {
	h := &Handler{app: app}

	student := r.Group("/api/v1/processing")
	{
		student.GET("", h.get)
		student.GET("/watch", h.watch)
	}

	officer := r.Group("/api/v1/officer/processing")
	{
		officer.GET("", h.board)
		officer.PUT("/:studentId/stages", h.advance)
		officer.POST("/advance-bulk", h.advanceBulk)
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

func officerID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-Officer-ID")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Officer-ID header is required"})
		return "", false
	}
	return id, true
}

func (h *Handler) get(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	w, err := h.app.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrWorkflowNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handler) board(c *gin.Context) {
	entries, err := h.app.Board(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": entries})
}

func (h *Handler) advance(c *gin.Context) {
	officer, ok := officerID(c)
	if !ok {
		return
	}
	var in application.AdvanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.app.AdvanceStage(c.Request.Context(), c.Param("studentId"), officer, in)
	if err != nil {
		switch {
		case errors.Is(err, application.ErrNotApproved):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrUnknownStage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, w)
}

type advanceBulkRequest struct {
	StudentIDs []string                 `json:"studentIds" binding:"required"`
	Change     application.AdvanceInput `json:"change" binding:"required"`
}

func (h *Handler) advanceBulk(c *gin.Context) {
	officer, ok := officerID(c)
	if !ok {
		return
	}
	var req advanceBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.app.AdvanceStageForMany(c.Request.Context(), req.StudentIDs, officer, req.Change)
	c.JSON(http.StatusOK, res)
}

// watch streams workflow changes as server-sent events.
func (h *Handler) watch(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	ch, err := h.app.Watch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrWorkflowNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case wf, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("workflow", wf)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
