// Package backend is the boundary adapter for the knowledge-backend HTTP
// surface. It owns all request building and all success/error sniffing so
// the session core never inspects status codes or `success` flags itself.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	endpointEnvVar     = "RAGDESK_BACKEND"
	defaultEndpoint    = "http://127.0.0.1:8080"
	defaultHTTPTimeout = 90 * time.Second
	maxErrorBodyBytes  = 2048
)

// Document is one entry in the remote knowledge store.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size"`
	AddedAt    time.Time `json:"added"`
	ChunkCount int       `json:"chunk_count"`
	SourceType string    `json:"source_type"`
}

// Chunk is a retrieval-indexed fragment produced by the backend at upload
// time. Read-only on this side of the wire.
type Chunk struct {
	ID       json.Number       `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// File is the payload handed to Upload.
type File struct {
	Name     string
	Bytes    []byte
	MimeType string
}

// Config describes how to build a backend client.
type Config struct {
	Endpoint   string
	HTTPClient *http.Client
}

// Client talks to one knowledge backend.
type Client struct {
	host   string
	client *http.Client
}

// New builds a client from explicit configuration.
func New(cfg Config) *Client {
	host := strings.TrimRight(cfg.Endpoint, "/")
	if host == "" {
		host = defaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{host: host, client: httpClient}
}

// NewFromEnv falls back to RAGDESK_BACKEND when no endpoint is given.
func NewFromEnv(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = os.Getenv(endpointEnvVar)
	}
	return New(cfg)
}

// Host reports the configured backend address, for display.
func (c *Client) Host() string {
	return c.host
}

// envelope covers the status fields the observed backends disagree on.
// Some report failure via HTTP status, some via success:false, one via
// status:"error".
type envelope struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Content string `json:"content"`
}

func (e envelope) failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.Status == "error"
}

func (e envelope) message(fallback string) string {
	for _, s := range []string{e.Detail, e.Message, e.Error, e.Content} {
		if s != "" {
			return s
		}
	}
	return fallback
}

// ListDocuments fetches the current store inventory.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	body, err := c.getJSON(ctx, "/knowledge/files")
	if err != nil {
		return nil, err
	}
	var parsed struct {
		envelope
		Files []json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, transportErr("list documents", err)
	}
	if parsed.failed() {
		return nil, &QueryError{Message: parsed.message("listing failed")}
	}
	docs := make([]Document, 0, len(parsed.Files))
	for _, raw := range parsed.Files {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, transportErr("list documents", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// decodeDocument accepts both the object form and the bare-filename form
// the observed backends return.
func decodeDocument(raw json.RawMessage) (Document, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return Document{ID: name, Name: name, SourceType: sourceTypeOf(name)}, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("undecodable file entry: %w", err)
	}
	if doc.ID == "" {
		doc.ID = doc.Name
	}
	if doc.SourceType == "" {
		doc.SourceType = sourceTypeOf(doc.Name)
	}
	return doc, nil
}

func sourceTypeOf(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return strings.ToLower(name[idx+1:])
	}
	return ""
}

// Upload submits one file for ingestion and returns the created document
// plus the full chunk list. Allow-list validation happens in the session
// layer before this call; here the file is transmitted as-is.
func (c *Client) Upload(ctx context.Context, file File) (Document, []Chunk, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return Document{}, nil, transportErr("upload", err)
	}
	if _, err := part.Write(file.Bytes); err != nil {
		return Document{}, nil, transportErr("upload", err)
	}
	if err := writer.Close(); err != nil {
		return Document{}, nil, transportErr("upload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/upload", &buf)
	if err != nil {
		return Document{}, nil, transportErr("upload", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return Document{}, nil, transportErr("upload", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Document{}, nil, transportErr("upload", err)
	}

	var parsed struct {
		envelope
		Chunks []Chunk           `json:"chunks"`
		Files  []json.RawMessage `json:"files"`
	}
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode >= 400 || (decodeErr == nil && parsed.failed()) {
		fallback := fmt.Sprintf("%s (%s)", resp.Status, clip(body, maxErrorBodyBytes))
		return Document{}, nil, &UploadError{Message: parsed.message(fallback)}
	}
	if decodeErr != nil {
		return Document{}, nil, transportErr("upload", decodeErr)
	}

	doc := Document{
		ID:         file.Name,
		Name:       file.Name,
		SizeBytes:  int64(len(file.Bytes)),
		AddedAt:    time.Now(),
		ChunkCount: len(parsed.Chunks),
		SourceType: sourceTypeOf(file.Name),
	}
	// Prefer the server's own record when it echoes one back.
	for _, raw := range parsed.Files {
		candidate, err := decodeDocument(raw)
		if err != nil {
			continue
		}
		if candidate.Name == file.Name || len(parsed.Files) == 1 {
			if candidate.ID != "" {
				doc.ID = candidate.ID
			}
			if candidate.ChunkCount > 0 {
				doc.ChunkCount = candidate.ChunkCount
			}
			if !candidate.AddedAt.IsZero() {
				doc.AddedAt = candidate.AddedAt
			}
			break
		}
	}
	return doc, parsed.Chunks, nil
}

// RemoveDocument deletes one document from the store.
func (c *Client) RemoveDocument(ctx context.Context, id string) error {
	target := c.host + "/knowledge/files/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return transportErr("delete", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return transportErr("delete", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	var parsed envelope
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.failed() {
		msg := parsed.message("delete failed")
		if strings.Contains(strings.ToLower(msg), "not found") {
			return fmt.Errorf("delete %s: %w", id, ErrNotFound)
		}
		return &QueryError{Message: msg}
	}
	if resp.StatusCode >= 400 {
		return &QueryError{Message: fmt.Sprintf("%s (%s)", resp.Status, clip(body, maxErrorBodyBytes))}
	}
	return nil
}

// Query runs a retrieval-augmented query. The decoded payload is returned
// raw; shape classification belongs to the normalizer.
func (c *Client) Query(ctx context.Context, query string) (json.RawMessage, error) {
	return c.postJSON(ctx, "/knowledge/query", map[string]string{"query": query})
}

// Chat runs a direct model chat without retrieval.
func (c *Client) Chat(ctx context.Context, model, content string) (json.RawMessage, error) {
	payload := map[string]string{"content": content, "role": model}
	return c.postJSON(ctx, "/chat/"+url.PathEscape(model), payload)
}

// Health probes the backend. Advisory only; callers surface failures as a
// notice, never as a fatal error.
func (c *Client) Health(ctx context.Context) error {
	body, err := c.getJSON(ctx, "/health")
	if err != nil {
		return err
	}
	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return transportErr("health", err)
	}
	if parsed.Status != "ok" {
		return &QueryError{Message: fmt.Sprintf("backend unhealthy: %q", parsed.Status)}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, transportErr(path, err)
	}
	return c.roundTrip(req, path)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, transportErr(path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(buf))
	if err != nil {
		return nil, transportErr(path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(req, path)
}

func (c *Client) roundTrip(req *http.Request, path string) (json.RawMessage, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportErr(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(path, err)
	}
	if resp.StatusCode >= 400 {
		var parsed envelope
		_ = json.Unmarshal(body, &parsed)
		fallback := fmt.Sprintf("%s (%s)", resp.Status, clip(body, maxErrorBodyBytes))
		return nil, &QueryError{Message: parsed.message(fallback)}
	}
	var parsed envelope
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.failed() {
		return nil, &QueryError{Message: parsed.message("backend reported failure")}
	}
	return json.RawMessage(body), nil
}

func clip(body []byte, limit int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
