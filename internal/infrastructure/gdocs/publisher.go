package gdocs

import (
	"context"
	"fmt"

	"google.golang.org/api/docs/v1"
	"google.golang.org/api/option"

	"SurveyInsights/internal/config"
	"SurveyInsights/internal/domain"
	"SurveyInsights/internal/ports"
)

const documentURLFormat = "https://docs.google.com/document/d/%s/edit"

// Publisher creates one Google Doc per insight report.
type Publisher struct {
	svc *docs.Service
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher authenticates with the configured service-account file. Extra options
// are appended after the configured ones.
func NewPublisher(ctx context.Context, cfg config.GoogleDocsConfig, opts ...option.ClientOption) (*Publisher, error) {
	var all []option.ClientOption
	if cfg.CredentialsFile != "" {
		all = append(all, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		all = append(all, option.WithEndpoint(cfg.Endpoint))
	}
	all = append(all, opts...)
	if len(all) == 0 {
		return nil, fmt.Errorf("google docs publisher misconfigured")
	}

	svc, err := docs.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create docs service: %w", err)
	}
	return &Publisher{svc: svc}, nil
}

// Publish creates the document, writes the report body and returns the edit URL.
func (p *Publisher) Publish(ctx context.Context, report domain.InsightReport) (string, error) {
	if p == nil || p.svc == nil {
		return "", fmt.Errorf("google docs publisher misconfigured")
	}

	doc, err := p.svc.Documents.Create(&docs.Document{Title: report.Title()}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	if doc.DocumentId == "" {
		return "", fmt.Errorf("create document: empty id: %w", ports.ErrMalformedResponse)
	}

	// one insert at the start of the body keeps the reading order intact
	req := &docs.BatchUpdateDocumentRequest{
		Requests: []*docs.Request{{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: 1},
				Text:     report.Body(),
			},
		}},
	}
	if _, err := p.svc.Documents.BatchUpdate(doc.DocumentId, req).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write document %s: %w", doc.DocumentId, err)
	}

	return fmt.Sprintf(documentURLFormat, doc.DocumentId), nil
}
