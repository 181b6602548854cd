package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/pdf-annotator/internal/docservice/service"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
)

// DefaultMaxUpload bounds the size of an uploaded PDF.
const DefaultMaxUpload = 50 << 20

// RegisterRoutes mounts the document endpoints on r, which is expected to be
// the /api group.
func RegisterRoutes(r gin.IRoutes, svc *service.Service, maxUpload int64) {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}

	r.POST(pdfapi.PathUpload, func(c *gin.Context) {
		fh, err := c.FormFile(pdfapi.UploadField)
		if err != nil {
			fail(c, "upload", http.StatusBadRequest, "No file uploaded")
			return
		}
		if fh.Size > maxUpload {
			fail(c, "upload", http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		f, err := fh.Open()
		if err != nil {
			fail(c, "upload", http.StatusBadRequest, err.Error())
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
		if err != nil {
			fail(c, "upload", http.StatusBadRequest, err.Error())
			return
		}
		u, err := svc.Upload(c.Request.Context(), fh.Filename, data)
		if err != nil {
			serviceError(c, "upload", err)
			return
		}
		logger.Infof("docservice: stored %s (%d pages, %d bytes)", u.FilePath, u.Pages, u.Size)
		ok(c, "upload")
		c.JSON(http.StatusOK, pdfapi.UploadResponse{FilePath: u.FilePath})
	})

	r.POST(pdfapi.PathPreview, func(c *gin.Context) {
		var req pdfapi.PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.FilePath == "" {
			fail(c, "preview", http.StatusBadRequest, "filePath is required")
			return
		}
		binary(c, "preview", func(ctx context.Context) ([]byte, error) {
			return svc.Document(ctx, req.FilePath)
		})
	})

	r.POST(pdfapi.PathEditText, func(c *gin.Context) {
		var req pdfapi.EditTextRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.FilePath == "" {
			fail(c, "edit_text", http.StatusBadRequest, "filePath and edits are required")
			return
		}
		binary(c, "edit_text", func(ctx context.Context) ([]byte, error) {
			return svc.EditText(ctx, req.FilePath, req.Edits)
		})
	})

	r.POST(pdfapi.PathEditMetadata, func(c *gin.Context) {
		var req pdfapi.EditMetadataRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.FilePath == "" {
			fail(c, "edit_metadata", http.StatusBadRequest, "filePath and metadata are required")
			return
		}
		binary(c, "edit_metadata", func(ctx context.Context) ([]byte, error) {
			return svc.EditMetadata(ctx, req.FilePath, req.Metadata)
		})
	})

	r.GET(pdfapi.PathExport+":format", func(c *gin.Context) {
		format, err := pdfapi.ParseFormat(c.Param("format"))
		if err != nil {
			fail(c, "export", http.StatusBadRequest, err.Error())
			return
		}
		filePath := c.Query("filePath")
		if filePath == "" {
			fail(c, "export", http.StatusBadRequest, "filePath is required")
			return
		}
		b, err := svc.Export(c.Request.Context(), filePath, format)
		if err != nil {
			serviceError(c, "export", err)
			return
		}
		ok(c, "export")
		c.Header("Content-Disposition", `attachment; filename="document.`+format.Extension()+`"`)
		c.Data(http.StatusOK, "application/pdf", b)
	})
}

func binary(c *gin.Context, op string, fn func(ctx context.Context) ([]byte, error)) {
	b, err := fn(c.Request.Context())
	if err != nil {
		serviceError(c, op, err)
		return
	}
	ok(c, op)
	c.Data(http.StatusOK, "application/pdf", b)
}

func serviceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		fail(c, op, http.StatusNotFound, "File not found")
	case errors.Is(err, service.ErrInvalidPDF), errors.Is(err, service.ErrInvalidEdits):
		fail(c, op, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnsupportedFormat):
		fail(c, op, http.StatusNotImplemented, err.Error())
	default:
		logger.Errorf("docservice: %s: %v", op, err)
		fail(c, op, http.StatusInternalServerError, "Processing failed: "+err.Error())
	}
}

func ok(c *gin.Context, op string) {
	metrics.DocServiceOps.WithLabelValues(op, "ok").Inc()
}

func fail(c *gin.Context, op string, status int, msg string) {
	metrics.DocServiceOps.WithLabelValues(op, "error").Inc()
	c.JSON(status, gin.H{"error": msg})
}
