package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"SurveyInsights/internal/ports"
)

// TextLoader passes plain text and markdown through with normalised line endings.
type TextLoader struct{}

var _ ports.DocumentLoader = TextLoader{}

// Extensions lists the plain-text file types.
func (TextLoader) Extensions() []string { return []string{".txt", ".md"} }

// Load returns the content of r.
func (TextLoader) Load(ctx context.Context, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.ReplaceAll(string(raw), "\r\n", "\n"), nil
}
