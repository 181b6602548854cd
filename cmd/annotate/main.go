// Command annotate replays a YAML plan of display-space clicks against a PDF
// through an editing session and writes the requested downloads.
//
//	annotate -in report.pdf -plan plan.yaml -out ./out
//
// A plan looks like:
//
//	metadata: {title: Report, author: Ada}
//	placements:
//	  - {page: 1, text: Approved, x: 300, y: 396}
//	exports: [edits, metadata, pdf]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gogotex/pdf-annotator/internal/config"
	"github.com/gogotex/pdf-annotator/internal/docclient"
	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/internal/session"
	"github.com/gogotex/pdf-annotator/internal/tokens"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Plan is the content of a placements file.
type Plan struct {
	Metadata   *pdfapi.Metadata `yaml:"metadata"`
	Placements []Placement      `yaml:"placements"`
	Exports    []string         `yaml:"exports"`
}

// Placement is one click at display coordinates, optionally relative to an
// origin, as a browser would report it.
type Placement struct {
	Page    int     `yaml:"page"`
	Text    string  `yaml:"text"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	OriginX float64 `yaml:"originX"`
	OriginY float64 `yaml:"originY"`
}

const (
	exportEdits    = "edits"
	exportMetadata = "metadata"
)

func loadPlan(r io.Reader) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	for i, pl := range p.Placements {
		if pl.Page < 1 {
			return nil, fmt.Errorf("placement %d: page must be >= 1", i+1)
		}
		if pl.Text == "" {
			return nil, fmt.Errorf("placement %d: text is empty", i+1)
		}
	}
	if len(p.Exports) == 0 {
		p.Exports = []string{exportEdits}
	}
	for _, e := range p.Exports {
		if e == exportEdits || e == exportMetadata {
			continue
		}
		if _, err := pdfapi.ParseFormat(e); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// run uploads the document, replays the plan and writes every export into
// outDir, returning the written paths.
func run(ctx context.Context, ctrl *session.Controller, name string, data []byte, plan *Plan, outDir string) ([]string, error) {
	if err := ctrl.Upload(ctx, name, data); err != nil {
		return nil, err
	}
	for i, p := range plan.Placements {
		if err := ctrl.SetPage(ctx, p.Page); err != nil {
			return nil, fmt.Errorf("placement %d: %w", i+1, err)
		}
		if err := ctrl.BeginPlacing(p.Text); err != nil {
			return nil, fmt.Errorf("placement %d: %w", i+1, err)
		}
		e, err := ctrl.Place(ctx, geometry.Point{X: p.X, Y: p.Y}, geometry.Point{X: p.OriginX, Y: p.OriginY})
		if err != nil {
			return nil, fmt.Errorf("placement %d: %w", i+1, err)
		}
		logger.Infof("placed %q on page %d at (%.2f, %.2f)", e.Text, e.Page, e.X, e.Y)
	}
	if plan.Metadata != nil {
		ctrl.SetMetadata(*plan.Metadata)
	}

	var written []string
	for _, ex := range plan.Exports {
		var (
			d   session.Download
			err error
		)
		switch ex {
		case exportEdits:
			d, err = ctrl.ApplyEdits(ctx)
		case exportMetadata:
			d, err = ctrl.ApplyMetadata(ctx)
		default:
			d, err = ctrl.Export(ctx, pdfapi.Format(ex))
		}
		if err != nil {
			return written, err
		}
		out := filepath.Join(outDir, d.FileName)
		if err := os.WriteFile(out, d.Data, 0o644); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	in := flag.String("in", "", "PDF to annotate")
	planFile := flag.String("plan", "", "YAML placements file")
	outDir := flag.String("out", ".", "directory for the downloads")
	baseURL := flag.String("docservice", cfg.DocService.URL, "document service base URL")
	width := flag.Float64("width", cfg.Editor.DisplayWidth, "display width the clicks were recorded at")
	flag.Parse()
	if *in == "" || *planFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(*planFile)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	plan, err := loadPlan(f)
	_ = f.Close()
	if err != nil {
		logger.Fatalf("%v", err)
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatalf("%v", err)
	}

	opts := []docclient.Option{docclient.WithHTTPClient(&http.Client{Timeout: cfg.DocService.Timeout})}
	if cfg.ServiceToken.Secret != "" {
		ts, err := tokens.NewService(cfg.ServiceToken.Secret, cfg.ServiceToken.Issuer, cfg.ServiceToken.TTL)
		if err != nil {
			logger.Fatalf("service tokens: %v", err)
		}
		opts = append(opts, docclient.WithTokenSource(ts.TokenSource("annotate")))
	}
	ctrl := session.NewController(docclient.New(*baseURL, opts...), resource.NewMemoryStore(), session.Options{DisplayWidth: *width})

	ctx := context.Background()
	written, err := run(ctx, ctrl, filepath.Base(*in), data, plan, *outDir)
	ctrl.Close(ctx)
	for _, w := range written {
		fmt.Println(w)
	}
	if err != nil {
		logger.Fatalf("%s", docclient.Message(err))
	}
}
