package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/storyweb/pkg/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{"id": "a1", "language": "eng", "title": "One", "sentences": [{"text": "Hi.", "entities": [{"text": "Jane Doe", "label": "PERSON"}]}]}

not json
{"title": "no id"}
{"id": "a2", "language": "deu", "title": "Zwei"}
{"id": "a3", "language": "eng", "title": "Three"}
`

type stringSource map[string]string

func (s stringSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	body, ok := s[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestArticleFile_Each(t *testing.T) {
	f := ArticleFile{Path: "articles.jsonl", Source: stringSource{"articles.jsonl": sample}}

	var ids []string
	stats, err := f.Each(context.Background(), func(a extract.RawArticle) error {
		ids = append(ids, a.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, ids)
	assert.Equal(t, Stats{Lines: 6, Articles: 3, Invalid: 2}, stats)
}

func TestArticleFile_Languages(t *testing.T) {
	f := ArticleFile{
		Path:      "articles.jsonl",
		Source:    stringSource{"articles.jsonl": sample},
		Languages: []string{"eng"},
	}

	var first extract.RawArticle
	stats, err := f.Each(context.Background(), func(a extract.RawArticle) error {
		if first.ID == "" {
			first = a
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Articles)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, first.Sentences, 1)
	assert.Equal(t, "PERSON", first.Sentences[0].Entities[0].Label)
}

func TestArticleFile_Stop(t *testing.T) {
	f := ArticleFile{Path: "articles.jsonl", Source: stringSource{"articles.jsonl": sample}}
	calls := 0
	stats, err := f.Each(context.Background(), func(extract.RawArticle) error {
		calls++
		return ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stats.Articles)
}

func TestArticleFile_CallbackError(t *testing.T) {
	f := ArticleFile{Path: "articles.jsonl", Source: stringSource{"articles.jsonl": sample}}
	boom := errors.New("boom")
	_, err := f.Each(context.Background(), func(extract.RawArticle) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a1")
}

func TestArticleFile_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	stats, err := ArticleFile{Path: path}.Each(context.Background(), func(extract.RawArticle) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Articles)

	_, err = ArticleFile{Path: filepath.Join(t.TempDir(), "missing")}.Each(context.Background(), func(extract.RawArticle) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}
