package robots_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behemotion/docbro/internal/robots"
)

func TestIsAllowed_DisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := robots.NewRobotsCache()
	allowedURL, err := url.Parse(srv.URL + "/a")
	require.NoError(t, err)
	disallowedURL, err := url.Parse(srv.URL + "/private/x")
	require.NoError(t, err)

	assert.True(t, c.IsAllowed(allowedURL, "docbro/1.0"))
	assert.False(t, c.IsAllowed(disallowedURL, "docbro/1.0"))
}

func TestIsAllowed_404MeansAllowAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := robots.NewRobotsCache()
	target, err := url.Parse(srv.URL + "/anything")
	require.NoError(t, err)

	assert.True(t, c.IsAllowed(target, "docbro/1.0"))
}

func TestIsAllowed_NonRobotsBodyMeansAllowAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>404 not found</body></html>"))
	}))
	defer srv.Close()

	c := robots.NewRobotsCache()
	target, err := url.Parse(srv.URL + "/x")
	require.NoError(t, err)

	assert.True(t, c.IsAllowed(target, "docbro/1.0"))
}

func TestIsAllowed_FetchesOncePerOrigin(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	c := robots.NewRobotsCache()
	a, _ := url.Parse(srv.URL + "/a")
	b, _ := url.Parse(srv.URL + "/b")

	c.IsAllowed(a, "docbro/1.0")
	c.IsAllowed(b, "docbro/1.0")
	c.IsAllowed(a, "docbro/1.0")

	assert.Equal(t, 1, fetches)
}
