package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ScannedFile is an indexable file found under the docs root.
type ScannedFile struct {
	Name      string // relative path from the docs root, forward slashes; doubles as the document name
	AbsPath   string
	SizeBytes int64
}

// Scanner finds markdown and plain-text files under a docs directory.
type Scanner struct {
	root string
}

func NewScanner(root string) *Scanner {
	return &Scanner{root: root}
}

// Scan walks the docs root and returns every .md and .txt file. Hidden
// directories are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]ScannedFile, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, fmt.Errorf("failed to access docs directory %s: %w", s.root, err)
	}

	var files []ScannedFile
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}

		files = append(files, ScannedFile{
			Name:      filepath.ToSlash(relPath),
			AbsPath:   path,
			SizeBytes: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
