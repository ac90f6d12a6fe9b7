// Package loader streams raw articles from JSON lines files.
//
// Files are opened through a Source, so the same reader serves local paths
// and objects in S3.
package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/storyweb/pkg/extract"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"
)

// maxLineSize bounds a single article. Long articles with sentence and
// entity lists can exceed bufio's default 64 KiB token size.
const maxLineSize = 32 << 20

// ErrStop can be returned from the callback of Each to end reading early
// without an error.
var ErrStop = errors.New("stop reading")

// Source opens the file at path for reading.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// FileSource reads from the local filesystem.
type FileSource struct{}

func (FileSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// ArticleFile is one JSON lines file of extract.RawArticle records.
type ArticleFile struct {
	Path   string
	Source Source
	// Languages restricts the articles passed on. Empty accepts all.
	Languages []string
}

type Stats struct {
	Lines    int
	Articles int
	Skipped  int
	Invalid  int
}

// Each decodes the file line by line and calls fn for every accepted
// article. Lines that do not decode, or carry no id, are logged and counted
// as invalid; reading continues.
func (f ArticleFile) Each(ctx context.Context, fn func(extract.RawArticle) error) (Stats, error) {
	var stats Stats
	src := f.Source
	if src == nil {
		src = FileSource{}
	}

	r, err := src.Open(ctx, f.Path)
	if err != nil {
		return stats, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var article extract.RawArticle
		if err := json.Unmarshal([]byte(line), &article); err != nil {
			logger.Warn("[Loader] Invalid article line", "path", f.Path, "line", stats.Lines, "err", err)
			stats.Invalid++
			continue
		}
		if article.ID == "" {
			logger.Warn("[Loader] Article without id", "path", f.Path, "line", stats.Lines)
			stats.Invalid++
			continue
		}
		if len(f.Languages) > 0 && !slices.Contains(f.Languages, article.Language) {
			stats.Skipped++
			continue
		}

		stats.Articles++
		if err := fn(article); err != nil {
			if errors.Is(err, ErrStop) {
				return stats, nil
			}
			return stats, fmt.Errorf("article %s: %w", article.ID, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}
	return stats, nil
}
