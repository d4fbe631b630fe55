package docstore

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/behemotion/docbro/internal/metadata"
	"github.com/behemotion/docbro/pkg/fileutil"
	"github.com/behemotion/docbro/pkg/hashutil"
	"github.com/behemotion/docbro/pkg/urlutil"
)

const (
	defaultAssetUserAgent = "docbro/1.0"
	assetFetchTimeout     = 15 * time.Second
	maxAssetSize          = 10 << 20 // missing assets are reported, not fatal; oversized ones are just skipped
)

// imageRegex matches Markdown image syntax: ![alt](url).
var imageRegex = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

var unsafeAssetChars = regexp.MustCompile(`[/\\:*?"<>|\s]`)

// assetResolver downloads the images a converted page's Markdown references,
// deduplicates them by content hash, and rewrites the Markdown to point at
// the local copies. It is long-lived for one DocWriter: the dedup maps
// persist across every page of a crawl, so the same logo fetched from a
// dozen pages is written to disk exactly once.
//
// A missing or unreachable asset is recorded via the metadata sink and the
// reference is left pointing at its original URL -- assets are never
// allowed to fail a page write.
type assetResolver struct {
	httpClient   *http.Client
	userAgent    string
	metadataSink metadata.MetadataSink

	mu            sync.Mutex
	writtenAssets map[string]string // canonicalized source URL -> relative Markdown path
	hashToPath    map[string]string // content hash -> relative Markdown path
}

func newAssetResolver(metadataSink metadata.MetadataSink, userAgent string) *assetResolver {
	if userAgent == "" {
		userAgent = defaultAssetUserAgent
	}
	return &assetResolver{
		httpClient:    &http.Client{Timeout: assetFetchTimeout},
		userAgent:     userAgent,
		metadataSink:  metadataSink,
		writtenAssets: make(map[string]string),
		hashToPath:    make(map[string]string),
	}
}

// resolve rewrites every image reference in markdown to a path relative to
// the page's own Markdown file, fetching and writing new assets under
// assetsDir as it goes.
func (r *assetResolver) resolve(pageURL string, markdown []byte, assetsDir string) []byte {
	base, err := url.Parse(pageURL)
	if err != nil {
		return markdown
	}

	return imageRegex.ReplaceAllFunc(markdown, func(match []byte) []byte {
		sub := imageRegex.FindSubmatch(match)
		if sub == nil {
			return match
		}
		alt, ref := string(sub[1]), string(sub[2])
		localRef, ok := r.fetchAsset(base, ref, assetsDir)
		if !ok {
			return match
		}
		return []byte(fmt.Sprintf("![%s](%s)", alt, localRef))
	})
}

func (r *assetResolver) fetchAsset(base *url.URL, ref string, assetsDir string) (string, bool) {
	if strings.HasPrefix(ref, "data:") {
		return "", false
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(refURL)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	canonical := urlutil.Canonicalize(*resolved)
	sourceKey := canonical.String()

	r.mu.Lock()
	if existing, ok := r.writtenAssets[sourceKey]; ok {
		r.mu.Unlock()
		return existing, true
	}
	r.mu.Unlock()

	now := time.Now().UTC()
	data, contentType, err := r.download(resolved.String())
	if err != nil {
		r.metadataSink.RecordError(now, "docstore", "resolveAsset", metadata.CauseNetworkFailure, err.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrAssetURL, resolved.String()),
		})
		return "", false
	}

	digest, herr := hashutil.HashBytes(data, hashutil.HashAlgoBLAKE3)
	if herr != nil {
		r.metadataSink.RecordError(now, "docstore", "resolveAsset", metadata.CauseStorageFailure, herr.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrAssetURL, resolved.String()),
		})
		return "", false
	}

	r.mu.Lock()
	if existing, ok := r.hashToPath[digest]; ok {
		r.writtenAssets[sourceKey] = existing
		r.mu.Unlock()
		return existing, true
	}
	r.mu.Unlock()

	if eerr := fileutil.EnsureDir(assetsDir); eerr != nil {
		r.metadataSink.RecordError(now, "docstore", "resolveAsset", metadata.CauseStorageFailure, eerr.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrAssetURL, resolved.String()),
		})
		return "", false
	}

	filename := buildAssetFilename(resolved.Path, digest, contentType)
	fullPath := filepath.Join(assetsDir, filename)
	if werr := writeAssetFile(fullPath, data); werr != nil {
		r.metadataSink.RecordError(now, "docstore", "resolveAsset", metadata.CauseStorageFailure, werr.Error(), []metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, fullPath),
		})
		return "", false
	}
	r.metadataSink.RecordArtifact(fullPath)

	// assetsDir is "<project>/assets/images"; pages live in the sibling
	// "<project>/pages" directory, so Markdown references climb out one level.
	localRef := path.Join("..", "assets", "images", filename)

	r.mu.Lock()
	r.writtenAssets[sourceKey] = localRef
	r.hashToPath[digest] = localRef
	r.mu.Unlock()
	return localRef, true
}

func (r *assetResolver) download(target string) (data []byte, contentType string, err error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("asset fetch: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxAssetSize {
		return nil, "", fmt.Errorf("asset fetch: exceeds max size of %d bytes", maxAssetSize)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func writeAssetFile(fullPath string, data []byte) error {
	return os.WriteFile(fullPath, data, 0644)
}

func buildAssetFilename(originalPath, digest, contentType string) string {
	ext := fileutil.GetFileExtension(originalPath)
	base := strings.TrimSuffix(path.Base(originalPath), "."+ext)
	if ext == "" {
		ext = extensionFromContentType(contentType)
	}
	base = sanitizeAssetName(base)
	if base == "" || base == "." || base == "_" {
		base = "asset"
	}
	if ext == "" {
		return fmt.Sprintf("%s-%s", base, digest[:7])
	}
	return fmt.Sprintf("%s-%s.%s", base, digest[:7], ext)
}

func extensionFromContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "jpg"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "svg"):
		return "svg"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

// sanitizeAssetName replaces characters unsafe for a filename and caps
// length, mirroring the convention pages already use for their own names.
func sanitizeAssetName(name string) string {
	name = unsafeAssetChars.ReplaceAllString(name, "_")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
