// Package loader maps questionnaire file formats to their document loaders.
package loader

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"SurveyInsights/internal/ports"
)

// Registry keeps a mapping from file extensions to loader implementations.
type Registry struct {
	loaders map[string]ports.DocumentLoader
}

// NewRegistry builds a registry holding the given loaders.
func NewRegistry(loaders ...ports.DocumentLoader) *Registry {
	r := &Registry{loaders: map[string]ports.DocumentLoader{}}
	for _, l := range loaders {
		r.Register(l)
	}
	return r
}

// Register adds or replaces a loader for every extension it declares.
func (r *Registry) Register(l ports.DocumentLoader) {
	if r.loaders == nil {
		r.loaders = map[string]ports.DocumentLoader{}
	}
	for _, ext := range l.Extensions() {
		r.loaders[normalizeExt(ext)] = l
	}
}

// Resolve returns the loader for the extension of name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.DocumentLoader, error) {
	ext := normalizeExt(filepath.Ext(name))
	if l, ok := r.loaders[ext]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("no loader registered for %q (supported: %s)", ext, strings.Join(r.Extensions(), ", "))
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
