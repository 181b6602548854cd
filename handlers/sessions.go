package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/internal/session"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/middleware"
)

const defaultMaxUpload = 50 << 20

// SessionHandler exposes editing sessions to the browser UI.
type SessionHandler struct {
	reg       *session.Registry
	store     resource.Store
	maxUpload int64
}

func NewSessionHandler(reg *session.Registry, store resource.Store, maxUpload int64) *SessionHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &SessionHandler{reg: reg, store: store, maxUpload: maxUpload}
}

// Register routes under /sessions and /resources
func (h *SessionHandler) Register(rg *gin.RouterGroup) {
	s := rg.Group("/sessions")
	s.POST("", h.Create)
	s.GET("/:id", h.withSession(h.Get))
	s.DELETE("/:id", h.Delete)
	s.POST("/:id/upload", h.withSession(h.Upload))
	s.PUT("/:id/page", h.withSession(h.SetPage))
	s.PUT("/:id/geometry", h.withSession(h.SetGeometry))
	s.POST("/:id/placing", h.withSession(h.BeginPlacing))
	s.DELETE("/:id/placing", h.withSession(h.CancelPlacing))
	s.POST("/:id/clicks", h.withSession(h.Click))
	s.GET("/:id/edits", h.withSession(h.Edits))
	s.DELETE("/:id/edits/:edit", h.withSession(h.RemoveEdit))
	s.DELETE("/:id/pages/:page/edits/:index", h.withSession(h.RemoveAt))
	s.PUT("/:id/metadata", h.withSession(h.SetMetadata))
	s.GET("/:id/preview", h.withSession(h.Preview))
	s.POST("/:id/apply-edits", h.withSession(h.ApplyEdits))
	s.POST("/:id/apply-metadata", h.withSession(h.ApplyMetadata))
	s.GET("/:id/export/:format", h.withSession(h.Export))

	rg.GET("/resources/:ref", h.Resource)
}

type sessionFunc func(c *gin.Context, ctrl *session.Controller)

func (h *SessionHandler) withSession(fn sessionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, err := h.reg.Get(c.Param("id"), middleware.Subject(c))
		if err != nil {
			writeError(c, err)
			return
		}
		fn(c, ctrl)
	}
}

// statusOf maps session errors to HTTP status codes. Anything not listed
// came from the document service or the resource store.
func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrEditNotFound),
		errors.Is(err, resource.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotPDF):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrEmptyText),
		errors.Is(err, session.ErrPageOutOfRange),
		errors.Is(err, session.ErrNoEdits),
		errors.Is(err, session.ErrUnknownFormat),
		errors.Is(err, geometry.ErrInvalidScale):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrNotPlacing),
		errors.Is(err, session.ErrGeometryNotReady),
		errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone
	}
	return http.StatusBadGateway
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Warnf("sessions: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// Create starts a session for the caller
func (h *SessionHandler) Create(c *gin.Context) {
	id, ctrl := h.reg.Create(middleware.Subject(c))
	c.JSON(http.StatusCreated, gin.H{"id": id, "session": ctrl.Snapshot()})
}

func (h *SessionHandler) Get(c *gin.Context, ctrl *session.Controller) {
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.reg.Delete(c.Request.Context(), c.Param("id"), middleware.Subject(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload replaces the session's document with the uploaded PDF
func (h *SessionHandler) Upload(c *gin.Context, ctrl *session.Controller) {
	fh, err := c.FormFile(pdfapi.UploadField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if fh.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.Upload(c.Request.Context(), fh.Filename, data); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type pageRequest struct {
	Page int `json:"page" binding:"required"`
}

func (h *SessionHandler) SetPage(c *gin.Context, ctrl *session.Controller) {
	var req pageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.SetPage(c.Request.Context(), req.Page); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type geometryRequest struct {
	NaturalWidth  float64 `json:"naturalWidth" binding:"required"`
	NaturalHeight float64 `json:"naturalHeight" binding:"required"`
}

// SetGeometry records the page size reported by the UI's renderer
func (h *SessionHandler) SetGeometry(c *gin.Context, ctrl *session.Controller) {
	var req geometryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := ctrl.SetPageGeometry(req.NaturalWidth, req.NaturalHeight); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type placingRequest struct {
	Text string `json:"text"`
}

func (h *SessionHandler) BeginPlacing(c *gin.Context, ctrl *session.Controller) {
	var req placingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ctrl.BeginPlacing(req.Text); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) CancelPlacing(c *gin.Context, ctrl *session.Controller) {
	ctrl.CancelPlacing()
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// clickRequest is a click in display pixels together with the top-left
// corner of the rendered page in the same coordinate system.
type clickRequest struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	OriginX float64 `json:"originX"`
	OriginY float64 `json:"originY"`
}

// Click places the pending text. When the preview could not be refreshed
// the edit is still recorded; the response is 502 and carries both.
func (h *SessionHandler) Click(c *gin.Context, ctrl *session.Controller) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := ctrl.Place(c.Request.Context(),
		geometry.Point{X: req.X, Y: req.Y},
		geometry.Point{X: req.OriginX, Y: req.OriginY})
	if err != nil && e.ID == "" {
		writeError(c, err)
		return
	}
	body := gin.H{"edit": e, "session": ctrl.Snapshot()}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusBadGateway, body)
		return
	}
	c.JSON(http.StatusCreated, body)
}

// Edits lists the edits of ?page= (default: the current page)
func (h *SessionHandler) Edits(c *gin.Context, ctrl *session.Controller) {
	page := 0
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = n
	}
	c.JSON(http.StatusOK, gin.H{"edits": ctrl.Edits(page)})
}

func (h *SessionHandler) RemoveEdit(c *gin.Context, ctrl *session.Controller) {
	h.afterRemove(c, ctrl, ctrl.RemoveEdit(c.Request.Context(), c.Param("edit")))
}

func (h *SessionHandler) RemoveAt(c *gin.Context, ctrl *session.Controller) {
	page, perr := strconv.Atoi(c.Param("page"))
	index, ierr := strconv.Atoi(c.Param("index"))
	if perr != nil || ierr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page or index"})
		return
	}
	h.afterRemove(c, ctrl, ctrl.RemoveAt(c.Request.Context(), page, index))
}

func (h *SessionHandler) afterRemove(c *gin.Context, ctrl *session.Controller, err error) {
	if errors.Is(err, session.ErrEditNotFound) || errors.Is(err, session.ErrNoDocument) {
		writeError(c, err)
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": ctrl.Snapshot()})
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func (h *SessionHandler) SetMetadata(c *gin.Context, ctrl *session.Controller) {
	var md pdfapi.Metadata
	if err := c.ShouldBindJSON(&md); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl.SetMetadata(md)
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Preview streams the document currently displayed
func (h *SessionHandler) Preview(c *gin.Context, ctrl *session.Controller) {
	b, _, err := ctrl.Display(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", b)
}

func (h *SessionHandler) ApplyEdits(c *gin.Context, ctrl *session.Controller) {
	d, err := ctrl.ApplyEdits(c.Request.Context())
	download(c, d, err)
}

func (h *SessionHandler) ApplyMetadata(c *gin.Context, ctrl *session.Controller) {
	d, err := ctrl.ApplyMetadata(c.Request.Context())
	download(c, d, err)
}

func (h *SessionHandler) Export(c *gin.Context, ctrl *session.Controller) {
	d, err := ctrl.Export(c.Request.Context(), pdfapi.Format(c.Param("format")))
	download(c, d, err)
}

func download(c *gin.Context, d session.Download, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+d.FileName+`"`)
	c.Data(http.StatusOK, d.ContentType, d.Data)
}

// Resource serves preview bytes by reference, the server-side counterpart
// of a browser object URL.
func (h *SessionHandler) Resource(c *gin.Context) {
	b, err := h.store.Open(c.Request.Context(), resource.Ref(c.Param("ref")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", b)
}
