// Package docclient talks to the remote document-processing service.
//
// Every call either returns the raw bytes produced by the service or an
// error. Failed calls are surfaced as *APIError when the service supplied a
// structured body; binary endpoints are checked for JSON error bodies even
// on a 2xx status, because the service reports some failures that way.
package docclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gogotex/pdf-annotator/internal/ledger"
	"github.com/gogotex/pdf-annotator/internal/pdfapi"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
)

// APIError is a failure reported by the document service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("document service returned %d", e.Status)
	}
	return fmt.Sprintf("document service returned %d: %s", e.Status, e.Message)
}

// Message returns the text to show a user for err: the service's own error
// field when present, otherwise the transport error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ae *APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// TokenSource returns a bearer token for the next request. An empty token
// means the request is sent without Authorization.
type TokenSource func() (string, error)

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// New creates a client for the service rooted at baseURL, e.g.
// "http://localhost:7200/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Upload stores a file on the service and returns its server path.
func (c *Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, pdfapi.UploadField, name))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, "upload", http.MethodPost, pdfapi.PathUpload, mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", decodeError(resp.StatusCode, b)
	}
	var ur pdfapi.UploadResponse
	if err := json.Unmarshal(b, &ur); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if ur.FilePath == "" {
		return "", decodeError(resp.StatusCode, b)
	}
	return ur.FilePath, nil
}

// Preview fetches the stored document as PDF bytes.
func (c *Client) Preview(ctx context.Context, serverPath string) ([]byte, error) {
	return c.postBinary(ctx, "preview", pdfapi.PathPreview, pdfapi.PreviewRequest{FilePath: serverPath})
}

// EditText regenerates the document with the complete edit set applied.
func (c *Client) EditText(ctx context.Context, serverPath string, edits map[int][]ledger.Placement) ([]byte, error) {
	return c.postBinary(ctx, "edit_text", pdfapi.PathEditText, pdfapi.EditTextRequest{FilePath: serverPath, Edits: edits})
}

// EditMetadata returns the document with its title, author and subject replaced.
func (c *Client) EditMetadata(ctx context.Context, serverPath string, md pdfapi.Metadata) ([]byte, error) {
	return c.postBinary(ctx, "edit_metadata", pdfapi.PathEditMetadata, pdfapi.EditMetadataRequest{FilePath: serverPath, Metadata: md})
}

// Export converts the stored document. Images come back as a zip archive.
func (c *Client) Export(ctx context.Context, serverPath string, format pdfapi.Format) ([]byte, error) {
	p := pdfapi.PathExport + url.PathEscape(string(format)) + "?filePath=" + url.QueryEscape(serverPath)
	resp, err := c.do(ctx, "export", http.MethodGet, p, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readBinary(resp)
}

func (c *Client) postBinary(ctx context.Context, op, path string, payload interface{}) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, op, http.MethodPost, path, "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readBinary(resp)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return nil, fmt.Errorf("service token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warnf("docclient: %s %s failed: %v", method, path, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Debugf("docclient: %s %s -> %d", method, path, resp.StatusCode)
	return resp, nil
}

// readBinary returns the body of a binary response, or the error it encodes.
func readBinary(resp *http.Response) ([]byte, error) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || isJSON(resp.Header.Get("Content-Type"), b) {
		return nil, decodeError(resp.StatusCode, b)
	}
	return b, nil
}

func isJSON(contentType string, body []byte) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return true
	}
	t := bytes.TrimSpace(body)
	return len(t) > 0 && t[0] == '{' && json.Valid(t)
}

func decodeError(status int, body []byte) error {
	var er pdfapi.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return &APIError{Status: status, Message: er.Error}
	}
	return &APIError{Status: status}
}
