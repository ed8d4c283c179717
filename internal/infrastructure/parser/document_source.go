package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"SurveyInsights/internal/loader"
	"SurveyInsights/internal/ports"
)

// DocumentSource implements ports.DocumentSource via registered format loaders.
type DocumentSource struct {
	registry *loader.Registry
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.DocumentSource = (*DocumentSource)(nil)

// NewDocumentSource wires the loader registry with an HTTP client for remote documents.
func NewDocumentSource(reg *loader.Registry, client *http.Client, log *slog.Logger) *DocumentSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if log != nil {
		log = log.With("component", "documents")
	}
	return &DocumentSource{
		registry: reg,
		client:   client,
		logger:   log,
	}
}

// NewDefaultRegistry registers the PDF, HTML and plain-text loaders.
func NewDefaultRegistry() *loader.Registry {
	return loader.NewRegistry(PDFLoader{}, HTMLLoader{}, TextLoader{})
}

// Load reads location, a local path or an http(s) URL, with the loader matching its extension.
func (s *DocumentSource) Load(ctx context.Context, location string) (string, error) {
	if s.registry == nil {
		return "", fmt.Errorf("loader registry is not configured")
	}

	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return s.fetch(ctx, u)
	}

	l, err := s.registry.Resolve(location)
	if err != nil {
		return "", err
	}

	f, err := os.Open(location)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", location, err)
	}
	defer f.Close()

	s.debug("load file", "path", location)
	text, err := l.Load(ctx, f)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", location, err)
	}
	return text, nil
}

func (s *DocumentSource) fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SurveyInsights/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s returned %s", u.Host, resp.Status)
	}

	name := path.Base(u.Path)
	if path.Ext(name) == "" {
		name = nameForContentType(resp.Header.Get("Content-Type"))
	}
	l, err := s.registry.Resolve(name)
	if err != nil {
		return "", err
	}

	s.debug("fetch document", "url", u.String(), "loader", name)
	text, err := l.Load(ctx, resp.Body)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", u.String(), err)
	}
	return text, nil
}

func nameForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "application/pdf"):
		return "document.pdf"
	case strings.Contains(contentType, "text/plain"):
		return "document.txt"
	default:
		return "document.html"
	}
}

func (s *DocumentSource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
