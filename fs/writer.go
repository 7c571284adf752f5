// Package fs writes generated sitemaps to the local filesystem.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fwojciec/sitemapgen"
)

// Ensure SitemapWriter implements sitemapgen.SitemapWriter at compile time.
var _ sitemapgen.SitemapWriter = (*SitemapWriter)(nil)

// SitemapWriter writes a sitemap set into a directory with atomic replace
// semantics. Files are written to baseDir/name.tmp and moved to
// baseDir/name once every file has been written.
type SitemapWriter struct {
	baseDir string
	name    string
}

// NewSitemapWriter creates a SitemapWriter for baseDir/name.
func NewSitemapWriter(baseDir, name string) *SitemapWriter {
	return &SitemapWriter{
		baseDir: baseDir,
		name:    name,
	}
}

// Dir returns the final output directory.
func (w *SitemapWriter) Dir() string {
	return filepath.Join(w.baseDir, w.name)
}

func (w *SitemapWriter) tempDir() string {
	return filepath.Join(w.baseDir, w.name+".tmp")
}

// WriteSitemaps writes every document in set, index first, then replaces
// the output directory. On failure the output directory is left untouched.
func (w *SitemapWriter) WriteSitemaps(ctx context.Context, set *sitemapgen.SitemapSet) error {
	if err := os.RemoveAll(w.tempDir()); err != nil {
		return err
	}
	if err := os.MkdirAll(w.tempDir(), 0755); err != nil {
		return err
	}

	if err := w.writeFiles(ctx, set); err != nil {
		_ = w.abort()
		return err
	}
	return w.commit()
}

func (w *SitemapWriter) writeFiles(ctx context.Context, set *sitemapgen.SitemapSet) error {
	for _, doc := range set.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !validFilename(doc.Name) {
			return sitemapgen.Errorf(sitemapgen.EINVALID, "invalid sitemap file name: %q", doc.Name)
		}
		if err := os.WriteFile(filepath.Join(w.tempDir(), doc.Name), []byte(doc.Content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", doc.Name, err)
		}
	}
	return nil
}

// validFilename rejects names that would escape the output directory.
func validFilename(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

func (w *SitemapWriter) commit() error {
	if err := os.RemoveAll(w.Dir()); err != nil {
		return err
	}
	return os.Rename(w.tempDir(), w.Dir())
}

func (w *SitemapWriter) abort() error {
	return os.RemoveAll(w.tempDir())
}
