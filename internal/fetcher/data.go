package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

type FetchResult struct {
	url       url.URL
	body      []byte
	meta      ResponseMeta
	fetchedAt time.Time

	title       string
	text        string
	contentHash string
	links       []string
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.body))
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

func (f *FetchResult) Title() string {
	return f.title
}

func (f *FetchResult) Text() string {
	return f.text
}

func (f *FetchResult) ContentHash() string {
	return f.contentHash
}

func (f *FetchResult) Links() []string {
	return append([]string(nil), f.links...)
}

type ResponseMeta struct {
	statusCode      int
	responseHeaders map[string]string
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	statusCode int,
	contentType string,
	responseHeaders map[string]string,
	fetchedAt time.Time,
) FetchResult {
	return FetchResult{
		url:       url,
		body:      body,
		fetchedAt: fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			responseHeaders: responseHeaders,
		},
	}
}

// NewFetchResultWithContentForTest is NewFetchResultForTest plus the
// extracted-content fields (title, text, content hash, discovered links)
// callers outside this package need to exercise dedup and link-discovery
// logic without a real HTML fetch.
func NewFetchResultWithContentForTest(
	url url.URL,
	body []byte,
	statusCode int,
	responseHeaders map[string]string,
	fetchedAt time.Time,
	title, text, contentHash string,
	links []string,
) FetchResult {
	return FetchResult{
		url:       url,
		body:      body,
		fetchedAt: fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			responseHeaders: responseHeaders,
		},
		title:       title,
		text:        text,
		contentHash: contentHash,
		links:       links,
	}
}
