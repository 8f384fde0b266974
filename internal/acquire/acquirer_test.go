package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

func pdfBody() []byte {
	body := make([]byte, 2048)
	copy(body, []byte("%PDF-1.4\n"))
	return body
}

func pdfServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdfBody())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAcquirer(workers int) *Acquirer {
	return New(Config{Workers: workers, Timeout: 5 * time.Second}, zap.NewNop())
}

func refsFor(srv *httptest.Server, n int) []pipeline.DocumentRef {
	refs := make([]pipeline.DocumentRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, pipeline.DocumentRef{
			URL:   fmt.Sprintf("%s/files/doc%d.pdf", srv.URL, i),
			Title: fmt.Sprintf("Course Syllabus Number %d", i),
		})
	}
	return refs
}

func TestAcquire_DownloadsAllReferences(t *testing.T) {
	t.Parallel()

	srv := pdfServer(t, nil)
	dir := t.TempDir()

	outcome := newAcquirer(3).Acquire(context.Background(), refsFor(srv, 4), dir, "", 0, nil)
	require.Equal(t, 4, outcome.Attempted)
	require.Equal(t, 4, outcome.Succeeded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestAcquire_CapLimitsAttempts(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)
	dir := t.TempDir()

	outcome := newAcquirer(3).Acquire(context.Background(), refsFor(srv, 7), dir, "", 5, nil)
	require.Equal(t, 5, outcome.Attempted)
	require.Equal(t, 5, outcome.Succeeded)
	require.LessOrEqual(t, hits.Load(), int64(5))
}

func TestAcquire_UniqueFilenamesUnderConcurrency(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 3, 10} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			t.Parallel()

			srv := pdfServer(t, nil)
			dir := t.TempDir()

			// Same title for every reference forces filename collisions.
			refs := make([]pipeline.DocumentRef, 6)
			for i := range refs {
				refs[i] = pipeline.DocumentRef{
					URL:   fmt.Sprintf("%s/files/doc%d.pdf", srv.URL, i),
					Title: "American Political Thought",
				}
			}

			outcome := newAcquirer(workers).Acquire(context.Background(), refs, dir, "", 0, nil)
			require.Equal(t, 6, outcome.Succeeded)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 6)
			seen := map[string]struct{}{}
			for _, e := range entries {
				require.True(t, strings.HasPrefix(e.Name(), "American Political Thought"))
				seen[e.Name()] = struct{}{}
			}
			require.Len(t, seen, 6)
		})
	}
}

func TestAcquire_ExistingFileSkippedAndCounted(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := pdfServer(t, &hits)
	dir := t.TempDir()

	ref := pipeline.DocumentRef{URL: srv.URL + "/files/doc.pdf", Title: "Existing Course Syllabus"}
	name := DeriveFilename(ref, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), pdfBody(), 0o600))

	outcome := newAcquirer(1).Acquire(context.Background(), []pipeline.DocumentRef{ref}, dir, "", 0, nil)
	require.Equal(t, 1, outcome.Succeeded)
	require.True(t, outcome.Results[0].Skipped)
	require.Zero(t, hits.Load(), "existing file must not be re-fetched")
}

func TestAcquire_RejectsSmallNonPDF(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not found</html>"))
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	ref := pipeline.DocumentRef{URL: srv.URL + "/files/doc.pdf", Title: "Broken Course Syllabus"}
	outcome := newAcquirer(1).Acquire(context.Background(), []pipeline.DocumentRef{ref}, dir, "", 0, nil)
	require.Zero(t, outcome.Succeeded)
	require.Error(t, outcome.Results[0].Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAcquire_FailureDoesNotAbortSiblings(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bad") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdfBody())
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	refs := []pipeline.DocumentRef{
		{URL: srv.URL + "/files/good1.pdf", Title: "Good Course Syllabus One"},
		{URL: srv.URL + "/files/bad.pdf", Title: "Bad Course Syllabus"},
		{URL: srv.URL + "/files/good2.pdf", Title: "Good Course Syllabus Two"},
	}

	outcome := newAcquirer(3).Acquire(context.Background(), refs, dir, "", 0, nil)
	require.Equal(t, 2, outcome.Succeeded)
	require.NoError(t, outcome.Results[0].Err)
	require.Error(t, outcome.Results[1].Err)
	require.NoError(t, outcome.Results[2].Err)
}

func TestAcquire_ProgressCountsOnlyConfirmedSuccesses(t *testing.T) {
	t.Parallel()

	srv := pdfServer(t, nil)
	dir := t.TempDir()

	var (
		mu        sync.Mutex
		snapshots []Progress
	)
	outcome := newAcquirer(2).Acquire(context.Background(), refsFor(srv, 3), dir, "", 0, func(p Progress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	})
	require.Equal(t, 3, outcome.Succeeded)
	require.NotEmpty(t, snapshots)

	last := snapshots[len(snapshots)-1]
	require.Equal(t, 3, last.Completed)
	require.Equal(t, 3, last.Succeeded)
	for _, p := range snapshots {
		require.LessOrEqual(t, p.Succeeded, p.Completed)
		require.LessOrEqual(t, p.Completed, p.Total)
	}
}
