// Package pdfapi defines the wire contract between the annotation engine and
// the document-processing service.
package pdfapi

import (
	"fmt"
	"strings"

	"github.com/gogotex/pdf-annotator/internal/ledger"
)

const (
	PathUpload       = "/pdf/upload"
	PathPreview      = "/pdf/preview"
	PathEditText     = "/pdf/edit-text"
	PathEditMetadata = "/pdf/edit-metadata"
	PathExport       = "/pdf/export/" // + format, ?filePath=

	// UploadField is the multipart field carrying the uploaded file.
	UploadField = "file"
)

// Format is an export target.
type Format string

const (
	FormatPDF    Format = "pdf"
	FormatDOCX   Format = "docx"
	FormatImages Format = "images"
)

// ParseFormat accepts pdf, docx or images (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPDF, FormatDOCX, FormatImages:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Extension is the file extension of an export; images come back zipped.
func (f Format) Extension() string {
	if f == FormatImages {
		return "zip"
	}
	return string(f)
}

// Metadata is the document information applied at export time.
type Metadata struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Subject string `json:"subject"`
}

type UploadResponse struct {
	FilePath string `json:"filePath"`
}

type PreviewRequest struct {
	FilePath string `json:"filePath" binding:"required"`
}

// EditTextRequest carries the complete edit set grouped by page. JSON
// object keys are the page numbers.
type EditTextRequest struct {
	FilePath string                     `json:"filePath" binding:"required"`
	Edits    map[int][]ledger.Placement `json:"edits"`
}

type EditMetadataRequest struct {
	FilePath string   `json:"filePath" binding:"required"`
	Metadata Metadata `json:"metadata"`
}

// ErrorResponse is the JSON body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}
