package loader

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	name string
	exts []string
}

func (f fakeLoader) Extensions() []string { return f.exts }

func (f fakeLoader) Load(context.Context, io.Reader) (string, error) { return f.name, nil }

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(fakeLoader{name: "pdf", exts: []string{".pdf"}}, fakeLoader{name: "html", exts: []string{"HTML", ".htm"}})

	l, err := reg.Resolve("/tmp/Questionnaire.PDF")
	require.NoError(t, err)
	got, _ := l.Load(context.Background(), nil)
	assert.Equal(t, "pdf", got)

	l, err = reg.Resolve("index.html")
	require.NoError(t, err)
	got, _ = l.Load(context.Background(), nil)
	assert.Equal(t, "html", got)

	assert.Equal(t, []string{".htm", ".html", ".pdf"}, reg.Extensions())
}

func TestRegistryReplaceAndMissing(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(fakeLoader{name: "old", exts: []string{".txt"}})
	reg.Register(fakeLoader{name: "new", exts: []string{".txt"}})

	l, err := reg.Resolve("notes.txt")
	require.NoError(t, err)
	got, _ := l.Load(context.Background(), nil)
	assert.Equal(t, "new", got)

	_, err = reg.Resolve("tables.xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".xlsx")
}
