package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/biterate/socialagent/internal/notion"
)

// DocumentSource reads documents and database rows from the workspace
type DocumentSource interface {
	FetchPlainText(ctx context.Context, pageID string) (string, error)
	ListDatabaseEntries(ctx context.Context, databaseID string, limit int) ([]notion.Entry, error)
	GetEntry(ctx context.Context, pageID string) (notion.Entry, error)
}

// FileSource reads local markdown or text documents matched by a glob
type FileSource struct {
	Pattern string // doublestar pattern such as "docs/**/*.md"
}

// List walks the pattern's static prefix and returns matching files in
// lexical order. Hidden directories are skipped.
func (f FileSource) List() ([]string, error) {
	if f.Pattern == "" {
		return nil, nil
	}
	pattern := filepath.ToSlash(f.Pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid docs glob %q", f.Pattern)
	}
	base, rest := doublestar.SplitPattern(pattern)

	var paths []string
	err := filepath.WalkDir(filepath.FromSlash(base), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != filepath.FromSlash(base) && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(base), path)
		if err != nil {
			return nil
		}
		if matched, _ := doublestar.Match(rest, filepath.ToSlash(rel)); matched {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Read returns a file's content
func (f FileSource) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EntryDocument combines a database row's properties with its page body
func EntryDocument(e notion.Entry, body string) string {
	props := e.Text()
	switch {
	case props == "":
		return body
	case body == "":
		return props
	default:
		return props + "\n\n" + body
	}
}
