package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<h1>Fall Syllabi</h1>
<a href="/files/intro.pdf">Introduction to Comparative Politics</a>
<a href="/files/theory.PDF">Political Theory Survey Course</a>
<a href="/about">About the department</a>
<table>
  <tr>
    <td>POS 2041</td>
    <td>American Federal Government</td>
    <td><a href="/files/pos2041.pdf">PDF</a></td>
  </tr>
</table>
<iframe src="/files/embedded.pdf" title="Embedded Syllabus"></iframe>
<a href="/files/intro.pdf">Intro (updated)</a>
</body></html>`

func newDiscoverer() *Discoverer {
	return New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second}, zap.NewNop())
}

func TestDiscover_FindsAndDeduplicatesPDFLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, refs, 4)

	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.URL)
	}
	require.Contains(t, urls, srv.URL+"/files/intro.pdf")
	require.Contains(t, urls, srv.URL+"/files/theory.PDF")
	require.Contains(t, urls, srv.URL+"/files/pos2041.pdf")
	require.Contains(t, urls, srv.URL+"/files/embedded.pdf")

	// The duplicate anchor keeps the URL once with the newer title.
	require.Equal(t, "Intro (updated)", refs[0].Title)
}

func TestDiscover_TableRowContextBecomesTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.NoError(t, err)

	var rowTitle string
	for _, ref := range refs {
		if ref.URL == srv.URL+"/files/pos2041.pdf" {
			rowTitle = ref.Title
		}
	}
	require.Contains(t, rowTitle, "POS 2041")
	require.Contains(t, rowTitle, "American Federal Government")
}

func TestDiscover_IframeTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.NoError(t, err)

	var iframeTitle string
	for _, ref := range refs {
		if ref.URL == srv.URL+"/files/embedded.pdf" {
			iframeTitle = ref.Title
		}
	}
	require.Equal(t, "Embedded Syllabus", iframeTitle)
}

func TestDiscover_NoPDFLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/about">nothing here</a></body></html>`))
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestDiscover_UnreachablePage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.Error(t, err)
	require.Nil(t, refs)
}

func TestDiscover_MalformedHTMLDoesNotPanic(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/a.pdf">broken<table><tr><td>`))
	}))
	defer srv.Close()

	refs, err := newDiscoverer().Discover(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, refs, 1)
}
