package http_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/fwojciec/sitemapgen"
	sitemaphttp "github.com/fwojciec/sitemapgen/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns HTML body from server", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>Hello World</body></html>"))
		}))
		defer server.Close()

		resp, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, resp.IsHTML())
		assert.Equal(t, server.URL, resp.URL)
		assert.Equal(t, "<html><body>Hello World</body></html>", string(resp.Body))
	})

	t.Run("decodes legacy charsets to UTF-8", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("<p>caf\xe9</p>"))
		}))
		defer server.Close()

		resp, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, "<p>café</p>", string(resp.Body))
	})

	t.Run("does not read non-HTML bodies", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		}))
		defer server.Close()

		resp, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.False(t, resp.IsHTML())
		assert.Empty(t, resp.Body)
	})

	t.Run("fails with FetchError on client and server errors", func(t *testing.T) {
		t.Parallel()

		for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			_, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL)
			server.Close()

			var fetchErr *sitemapgen.FetchError
			require.True(t, errors.As(err, &fetchErr), "status %d", status)
			assert.Equal(t, server.URL, fetchErr.URL)
			assert.Contains(t, fetchErr.Error(), "HTTP")
		}
	})

	t.Run("follows up to five redirects", func(t *testing.T) {
		t.Parallel()

		server := redirectChain(t, 5)

		resp, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL+"/hop/0")

		require.NoError(t, err)
		assert.Equal(t, "done", string(resp.Body))
		assert.Equal(t, server.URL+"/hop/5", resp.URL)
	})

	t.Run("returns an empty body for an empty HTML page", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
		}))
		defer server.Close()

		resp, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.True(t, resp.IsHTML())
		assert.Empty(t, resp.Body)
	})

	t.Run("fails after more than five redirects", func(t *testing.T) {
		t.Parallel()

		server := redirectChain(t, 6)

		_, err := sitemaphttp.NewFetcher().Fetch(context.Background(), server.URL+"/hop/0")

		var fetchErr *sitemapgen.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Contains(t, err.Error(), "redirects")
	})

	t.Run("sends the configured user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
		}))
		defer server.Close()

		_, err := sitemaphttp.NewFetcher(sitemaphttp.WithUserAgent("TestBot/1.0")).Fetch(context.Background(), server.URL)

		require.NoError(t, err)
		assert.Equal(t, "TestBot/1.0", gotUA)
	})

	t.Run("respects custom timeout option", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte("response"))
		}))
		defer server.Close()

		fetcher := sitemaphttp.NewFetcher(sitemaphttp.WithTimeout(10 * time.Millisecond))

		_, err := fetcher.Fetch(context.Background(), server.URL)
		require.Error(t, err)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := sitemaphttp.NewFetcher().Fetch(ctx, server.URL)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("returns error for non-existent host", func(t *testing.T) {
		t.Parallel()

		fetcher := sitemaphttp.NewFetcher(sitemaphttp.WithTimeout(100 * time.Millisecond))

		_, err := fetcher.Fetch(context.Background(), "http://non-existent-host.invalid/page")
		require.Error(t, err)
	})
}

// redirectChain serves /hop/0 to /hop/n-1, each redirecting to the next,
// and /hop/n as the final HTML page.
func redirectChain(t *testing.T, n int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/hop/{i}", func(w http.ResponseWriter, r *http.Request) {
		hop, _ := strconv.Atoi(r.PathValue("i"))
		if hop >= n {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("done"))
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", hop+1), http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
