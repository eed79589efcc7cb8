// Package http exposes the submission lifecycle: student draft and submit
// endpoints, the live status stream, and the officer review console.
package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/slpk/loandocs/internal/submission/application"
	"github.com/slpk/loandocs/internal/submission/domain"
	termdomain "github.com/slpk/loandocs/internal/term/domain"
)

// maxUploadBytes caps one uploaded file at 15 MiB, matching the mobile
// client's image compression ceiling with headroom.
const maxUploadBytes = 15 << 20

// Handler serves the submission endpoints.
type Handler struct {
	app *application.Service
}

// NewHandler registers the student and officer submission routes.
func NewHandler(r *gin.Engine, app *application.Service) {
	h := &Handler{app: app}

	student := r.Group("/api/v1/documents")
	{
		student.GET("/status", h.status)
		student.GET("/stats", h.stats)
		student.GET("/watch", h.watch)
		student.POST("/drafts/:requirementId", h.attachDraft)
		student.DELETE("/drafts/:requirementId/:index", h.removeDraft)
		student.POST("/submit", h.submit)
		student.POST("/reset", h.reset)
		student.POST("/reupload/:requirementId", h.reUpload)
		student.POST("/verify", h.verify)
	}

	officer := r.Group("/api/v1/officer/submissions")
	{
		officer.GET("", h.listByTerm)
		officer.GET("/:studentId/documents/:requirementId/files/:index/url", h.fileURL)
		officer.PUT("/:studentId/documents/:requirementId", h.review)
		officer.PUT("/:studentId/documents", h.reviewMany)
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

func termFromQuery(c *gin.Context) (termdomain.Term, bool) {
	t := termdomain.Term{
		AcademicYear: c.Query("year"),
		Number:       c.Query("term"),
	}
	if t.AcademicYear == "" || t.Number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and term query parameters are required"})
		return termdomain.Term{}, false
	}
	return t, true
}

func readUpload(fh *multipart.FileHeader) (application.DraftInput, error) {
	f, err := fh.Open()
	if err != nil {
		return application.DraftInput{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return application.DraftInput{}, err
	}
	if len(data) > maxUploadBytes {
		return application.DraftInput{}, errors.New("file exceeds the upload size limit")
	}
	return application.DraftInput{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handler) status(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	view, err := h.app.Status(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) stats(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	stats, err := h.app.Stats(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) attachDraft(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}
	in, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, err := h.app.AttachDraft(c.Request.Context(), id, c.Param("requirementId"), in)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (h *Handler) removeDraft(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}
	if err := h.app.RemoveDraft(c.Request.Context(), id, c.Param("requirementId"), index); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) submit(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	rec, err := h.app.Submit(c.Request.Context(), id)
	if err != nil {
		var missing *domain.MissingRequiredError
		var aborted *domain.SubmitError
		switch {
		case errors.As(err, &missing):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   missing.Error(),
				"missing": missing.Missing,
			})
		case errors.As(err, &aborted):
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    aborted.Error(),
				"failures": aborted.Failures,
			})
		case errors.Is(err, domain.ErrAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrWindowClosed):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrSurveyIncomplete):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) reset(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	if err := h.app.Reset(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) reUpload(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var files []application.DraftInput
	for _, fh := range form.File["files"] {
		in, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = append(files, in)
	}

	err = h.app.ReUpload(c.Request.Context(), id, c.Param("requirementId"), files)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrNotRejected):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) verify(c *gin.Context) {
	if _, ok := studentID(c); !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
		return
	}
	in, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	keywords := c.PostFormArray("keywords")

	check := h.app.VerifyDocument(c.Request.Context(), in.Name, in.Data, keywords)
	c.JSON(http.StatusOK, check)
}

// watch streams submission record changes as server-sent events.
func (h *Handler) watch(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		return
	}

	ch, err := h.app.Watch(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
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
		case rec, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("submission", gin.H{
				"record":          rec,
				"aggregateStatus": rec.AggregateStatus(),
			})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) listByTerm(c *gin.Context) {
	t, ok := termFromQuery(c)
	if !ok {
		return
	}
	recs, err := h.app.ListByTerm(c.Request.Context(), t)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type row struct {
		domain.Record
		AggregateStatus domain.AggregateStatus `json:"aggregateStatus"`
	}
	rows := make([]row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, row{Record: r, AggregateStatus: r.AggregateStatus()})
	}
	c.JSON(http.StatusOK, gin.H{"submissions": rows})
}

func (h *Handler) fileURL(c *gin.Context) {
	if _, ok := officerID(c); !ok {
		return
	}
	t, ok := termFromQuery(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be a number"})
		return
	}

	url, err := h.app.FileURL(c.Request.Context(), t, c.Param("studentId"), c.Param("requirementId"), index)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) review(c *gin.Context) {
	officer, ok := officerID(c)
	if !ok {
		return
	}
	t, ok := termFromQuery(c)
	if !ok {
		return
	}
	var in application.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in.RequirementID = c.Param("requirementId")

	if err := h.app.Review(c.Request.Context(), t, c.Param("studentId"), officer, in); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type reviewManyRequest struct {
	Decisions []application.ReviewInput `json:"decisions" binding:"required"`
}

func (h *Handler) reviewMany(c *gin.Context) {
	officer, ok := officerID(c)
	if !ok {
		return
	}
	t, ok := termFromQuery(c)
	if !ok {
		return
	}
	var req reviewManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.app.ReviewMany(c.Request.Context(), t, c.Param("studentId"), officer, req.Decisions); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
