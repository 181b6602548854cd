package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/gin-gonic/gin"
	"github.com/gogotex/pdf-annotator/internal/docclient"
	dshandler "github.com/gogotex/pdf-annotator/internal/docservice/handler"
	"github.com/gogotex/pdf-annotator/internal/docservice/service"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlan(t *testing.T) {
	p, err := loadPlan(strings.NewReader(`
metadata: {title: Report, author: Ada}
placements:
  - {page: 1, text: Approved, x: 300, y: 396}
  - {page: 2, text: Later, x: 10, y: 20, originX: 5, originY: 5}
exports: [edits, metadata, PDF]
`))
	require.NoError(t, err)
	require.Len(t, p.Placements, 2)
	assert.Equal(t, "Report", p.Metadata.Title)
	assert.Equal(t, 5.0, p.Placements[1].OriginX)
	assert.Equal(t, []string{"edits", "metadata", "PDF"}, p.Exports)

	p, err = loadPlan(strings.NewReader("placements: []\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"edits"}, p.Exports)
}

func TestLoadPlan_Rejects(t *testing.T) {
	cases := map[string]string{
		"page":    "placements:\n  - {page: 0, text: x}\n",
		"text":    "placements:\n  - {page: 1}\n",
		"format":  "exports: [tiff]\n",
		"unknown": "placemnts: []\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadPlan(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestRun_AgainstDocService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ds := gin.New()
	dshandler.RegisterRoutes(ds.Group("/api"), service.NewMemoryService(), 0)
	srv := httptest.NewServer(ds)
	defer srv.Close()

	pdf := fpdf.New("P", "pt", "", "")
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	store := resource.NewMemoryStore()
	ctrl := session.NewController(docclient.New(srv.URL+"/api"), store, session.Options{})
	plan := &Plan{
		Placements: []Placement{{Page: 1, Text: "Approved", X: 300, Y: 396}},
		Exports:    []string{exportEdits, exportMetadata, "pdf"},
	}
	out := t.TempDir()
	ctx := context.Background()

	written, err := run(ctx, ctrl, "report.pdf", buf.Bytes(), plan, out)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, session.NameEdited),
		filepath.Join(out, session.NameEditedWithMetadata),
		filepath.Join(out, "document.pdf"),
	}, written)
	for _, w := range written {
		b, err := os.ReadFile(w)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")), w)
	}

	edits := ctrl.Edits(1)
	require.Len(t, edits, 1)
	assert.InDelta(t, 306, edits[0].X, 0.01)
	assert.InDelta(t, 396, edits[0].Y, 0.01)

	ctrl.Close(ctx)
	assert.Equal(t, 0, store.Len())
}

func TestRun_UploadRejected(t *testing.T) {
	ctrl := session.NewController(docclient.New("http://127.0.0.1:1"), resource.NewMemoryStore(), session.Options{})
	_, err := run(context.Background(), ctrl, "notes.txt", []byte("hello"), &Plan{}, t.TempDir())
	require.ErrorIs(t, err, session.ErrNotPDF)
}
