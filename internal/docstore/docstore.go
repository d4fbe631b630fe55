// Package docstore persists each PROCESSED page's raw HTML as a
// Markdown document on local disk, one file per page, alongside the
// project's error reports. This is a supplement beyond the base crawl
// contract: the original crawler writes a converted document per page
// (not just an in-memory record), and a stored body is the natural form
// for later chunking/embedding even though that step itself stays
// external to this module.
//
// Image references left in that Markdown are resolved too: assetResolver
// downloads each one under the project's assets/images directory,
// deduplicates by content hash, and rewrites the reference to the local
// copy, consistent with the page content itself being stored locally.
package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/net/html"

	"github.com/behemotion/docbro/internal/mdconvert"
	"github.com/behemotion/docbro/internal/metadata"
	"github.com/behemotion/docbro/internal/model"
	"github.com/behemotion/docbro/pkg/failure"
	"github.com/behemotion/docbro/pkg/fileutil"
	"github.com/behemotion/docbro/pkg/hashutil"
)

// PageSink is the interface the crawl engine consumes. A nil PageSink is a
// valid "don't persist Markdown" configuration.
type PageSink interface {
	WritePage(page model.Page) (path string, err error)
}

// DocWriter converts a Page's raw HTML to Markdown via internal/mdconvert
// and writes it under baseDir/projects/<project>/pages/.
type DocWriter struct {
	baseDir      string
	projectDir   string
	rule         mdconvert.ConvertRule
	metadataSink metadata.MetadataSink
	assets       *assetResolver
}

func NewDocWriter(baseDir string, project model.Project, metadataSink metadata.MetadataSink) *DocWriter {
	if metadataSink == nil {
		metadataSink = metadata.NoopSink{}
	}
	return &DocWriter{
		baseDir:      baseDir,
		projectDir:   sanitizeProjectDir(project.Name()),
		rule:         mdconvert.NewRule(metadataSink),
		metadataSink: metadataSink,
		assets:       newAssetResolver(metadataSink, defaultAssetUserAgent),
	}
}

// WritePage renders page's raw HTML to Markdown and writes it to
// <page-id>-<content-hash8>.md. The trailing hash segment is a blake3
// digest of the rendered Markdown, not the SHA-256 dedup key the engine
// uses for content-equality: it exists only to make the filename stable
// and collision-resistant across re-crawls of the same page id.
func (d *DocWriter) WritePage(page model.Page) (string, error) {
	doc, err := html.Parse(strings.NewReader(page.RawHTML()))
	if err != nil {
		return "", &DocError{Message: err.Error(), Retryable: false, Cause: ErrCauseParseFailed, Path: page.URL()}
	}

	result, cerr := d.rule.Convert(doc)
	if cerr != nil {
		return "", &DocError{Message: cerr.Error(), Retryable: false, Cause: ErrCauseConvertFailed, Path: page.URL()}
	}

	dir := filepath.Join(d.baseDir, "projects", d.projectDir, "pages")
	if eerr := fileutil.EnsureDir(dir); eerr != nil {
		return "", &DocError{Message: eerr.Error(), Retryable: false, Cause: ErrCauseWriteFailed, Path: dir}
	}

	markdown := result.GetMarkdownContent()
	assetsDir := filepath.Join(d.baseDir, "projects", d.projectDir, "assets", "images")
	markdown = d.assets.resolve(page.URL(), markdown, assetsDir)

	digest, herr := hashutil.HashBytes(markdown, hashutil.HashAlgoBLAKE3)
	if herr != nil {
		return "", &DocError{Message: herr.Error(), Retryable: false, Cause: ErrCauseWriteFailed, Path: page.ID()}
	}

	name := fmt.Sprintf("%s-%s.md", page.ID(), digest[:8])
	path := filepath.Join(dir, name)

	if werr := os.WriteFile(path, markdown, 0644); werr != nil {
		cause := ErrCauseWriteFailed
		retryable := false
		if errors.Is(werr, syscall.ENOSPC) {
			retryable = true
		}
		return "", &DocError{Message: werr.Error(), Retryable: retryable, Cause: cause, Path: path}
	}

	d.metadataSink.RecordArtifact(path)
	return path, nil
}

func sanitizeProjectDir(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}

var _ PageSink = (*DocWriter)(nil)
var _ failure.ClassifiedError = (*DocError)(nil)
