package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/gogotex/pdf-annotator/internal/docservice"
	"github.com/gogotex/pdf-annotator/internal/docservice/repository"
	"github.com/gogotex/pdf-annotator/internal/geometry"
	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/internal/pdfops"
	"github.com/gogotex/pdf-annotator/internal/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrInvalidPDF        = errors.New("invalid PDF")
	ErrInvalidEdits      = errors.New("invalid edits")
	ErrUnsupportedFormat = errors.New("export format not supported by this service")
)

// Repository indexes uploads by file path.
type Repository interface {
	Create(ctx context.Context, u *docservice.Upload) error
	Get(ctx context.Context, filePath string) (*docservice.Upload, error)
	List(ctx context.Context) ([]*docservice.Upload, error)
	Delete(ctx context.Context, filePath string) error
}

// Service implements the document operations behind the HTTP handlers.
// Generated documents are returned, not stored: a client that wants to keep
// working on one uploads it again.
type Service struct {
	repo   Repository
	blobs  storage.Blobs
	writer *pdfops.Writer
	now    func() time.Time
}

func New(repo Repository, blobs storage.Blobs) *Service {
	return &Service{repo: repo, blobs: blobs, writer: pdfops.New(), now: time.Now}
}

// NewMemoryService returns a Service with in-memory index and storage.
func NewMemoryService() *Service {
	return New(repository.NewMemoryRepo(), storage.NewMemoryStorage())
}

func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// stripMarks is built per call; a chained transformer carries state.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// cleanName keeps the base name of an uploaded file, restricted to a safe
// character set. Accents are dropped rather than replaced.
func cleanName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if folded, _, err := transform.String(stripMarks(), name); err == nil {
		name = folded
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), ".")
	if s == "" {
		return "document.pdf"
	}
	return s
}

// Upload validates and stores a PDF.
func (s *Service) Upload(ctx context.Context, name string, data []byte) (*docservice.Upload, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidPDF)
	}
	if err := api.Validate(bytes.NewReader(data), geometry.PDFConfig()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	pages, err := geometry.PageCount(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	id := newID()
	u := &docservice.Upload{
		ID:        id,
		FilePath:  "uploads/" + id + "/" + cleanName(name),
		Name:      name,
		Size:      int64(len(data)),
		Pages:     pages,
		CreatedAt: s.now(),
	}
	if err := s.blobs.Put(ctx, u.FilePath, data, "application/pdf"); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		_ = s.blobs.Delete(ctx, u.FilePath)
		return nil, err
	}
	return u, nil
}

// Document returns the stored bytes of an upload.
func (s *Service) Document(ctx context.Context, filePath string) ([]byte, error) {
	if filePath == "" {
		return nil, ErrNotFound
	}
	if _, err := s.repo.Get(ctx, filePath); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b, err := s.blobs.Get(ctx, filePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

// EditText renders edits over the stored upload. Every call starts from the
// upload as stored, so repeating a call with the same edits yields the same
// document.
func (s *Service) EditText(ctx context.Context, filePath string, edits map[int][]ledger.Placement) ([]byte, error) {
	src, err := s.Document(ctx, filePath)
	if err != nil {
		return nil, err
	}
	out, err := s.writer.InjectText(src, edits)
	if errors.Is(err, pdfops.ErrPageOutOfRange) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEdits, err)
	}
	return out, err
}

func (s *Service) EditMetadata(ctx context.Context, filePath string, md pdfapi.Metadata) ([]byte, error) {
	src, err := s.Document(ctx, filePath)
	if err != nil {
		return nil, err
	}
	return s.writer.SetMetadata(src, md)
}

// Export converts an upload. Only pdf is produced here; other formats need
// a converter this service does not ship.
func (s *Service) Export(ctx context.Context, filePath string, format pdfapi.Format) ([]byte, error) {
	src, err := s.Document(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if format != pdfapi.FormatPDF {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return src, nil
}

func (s *Service) List(ctx context.Context) ([]*docservice.Upload, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, filePath string) error {
	if err := s.repo.Delete(ctx, filePath); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.blobs.Delete(ctx, filePath)
}
