package eleconomista

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>Telefónica</html>"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(0))

	body, err := c.Fetch(context.Background(), srv.URL+"/empresa/TELEFONICA")
	require.NoError(t, err)

	assert.Equal(t, "<html>Telefónica</html>", body)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Contains(t, gotLang, "es-ES")
}

func TestFetch_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte{'E', 'n', 'a', 'g', 0xe1, 's'})
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(0))

	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Enagás", body)
}

func TestFetch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(0))

	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "503")
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(0), WithTimeout(20*time.Millisecond))

	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetch_CancelledContextStopsAtLimiter(t *testing.T) {
	c := NewClient(WithRateLimit(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "http://127.0.0.1:1")
	require.Error(t, err)
}

func TestFetchListing_UsesConfiguredPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("<table></table>"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/"), WithListingPath("calendario.php"), WithRateLimit(0))

	_, err := c.FetchListing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/calendario.php", gotPath)
	assert.Equal(t, srv.URL, c.BaseURL())
}

func TestRateLimit_SpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(WithRateLimit(10))

	start := time.Now()
	for i := 0; i < 12; i++ {
		_, err := c.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// burst of 10, then two more at 10/s
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
