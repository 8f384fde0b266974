package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/acquire"
	"github.com/campuslib/syllabus-analyzer/internal/catalog"
	"github.com/campuslib/syllabus-analyzer/internal/discovery"
	"github.com/campuslib/syllabus-analyzer/internal/extract"
	"github.com/campuslib/syllabus-analyzer/internal/orchestrator"
	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
	queuemem "github.com/campuslib/syllabus-analyzer/internal/queue/memory"
	"github.com/campuslib/syllabus-analyzer/internal/storage/local"
	"github.com/campuslib/syllabus-analyzer/internal/storage/memory"
)

type idSequence struct {
	n int
}

func (g *idSequence) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("pipeline-job-%d", g.n), nil
}

// mapTextSource serves canned text keyed by filename, standing in for PDF
// decoding so the rest of the chain runs for real.
type mapTextSource map[string]string

func (m mapTextSource) Text(_ context.Context, path string) (string, error) {
	text, ok := m[filepath.Base(path)]
	if !ok {
		return "", fmt.Errorf("no text for %s", filepath.Base(path))
	}
	return text, nil
}

// scriptedModelStrategy acts as the primary extractor but rejects one
// particular document, forcing it down the heuristic path.
type scriptedModelStrategy struct{}

func (scriptedModelStrategy) Name() string { return "model" }

func (scriptedModelStrategy) Extract(_ context.Context, text string) (map[string]any, error) {
	if strings.Contains(text, "Political Theory Seminar") {
		return nil, errors.New("model overloaded")
	}
	return map[string]any{
		"class_name": "Modeled Course",
		"year":       "2025",
		pipeline.FieldReadingMaterials: []any{
			map[string]any{
				"title":       "The Prince",
				"creator":     "Niccolo Machiavelli",
				"requirement": "required",
				"type":        "book",
			},
		},
	}, nil
}

type singleMatchCatalog struct{}

func (singleMatchCatalog) Lookup(_ context.Context, title, _ string) ([]pipeline.CatalogMatch, error) {
	return []pipeline.CatalogMatch{{Title: title, Availability: pipeline.AvailabilityAvailable}}, nil
}

func awaitJob(t *testing.T, jobs *memory.JobStore, jobID string, ready func(pipeline.Job) bool) pipeline.Job {
	t.Helper()
	var job pipeline.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.GetJob(context.Background(), jobID)
		return err == nil && ready(job)
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

// TestPipelineRunsAllStages drives discovery, extraction, and library
// matching through the real orchestrator, queue, worker, and stores: a
// page with 7 PDF links and a download cap of 5 yields exactly 5 transfer
// attempts; one document's primary extraction fails and falls back to the
// heuristic strategy; the final artifact carries catalog results for all 5
// records with matches for the 4 that list reading materials.
func TestPipelineRunsAllStages(t *testing.T) {
	t.Parallel()

	pdfBody := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("syllabus content "), 128)...)

	var attempts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/courses", func(w http.ResponseWriter, _ *http.Request) {
		var page strings.Builder
		page.WriteString("<html><body>")
		for i := 1; i <= 7; i++ {
			fmt.Fprintf(&page, `<p><a href="/files/syllabus%d.pdf">PDF</a></p>`, i)
		}
		page.WriteString("</body></html>")
		_, _ = w.Write([]byte(page.String()))
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdfBody)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	texts := mapTextSource{
		"syllabus3.pdf": "Political Theory Seminar\nPOS 3734\nFall 2025\nUniversity of Florida\nInstructor: Dr. Jane Mercer",
	}
	for _, name := range []string{"syllabus1.pdf", "syllabus2.pdf", "syllabus4.pdf", "syllabus5.pdf"} {
		texts[name] = "Course Overview\nSpring 2025\nRequired Texts: The Prince by Niccolo Machiavelli"
	}

	dir := t.TempDir()
	artifacts, err := local.New(local.Config{BaseDir: filepath.Join(dir, "results")})
	require.NoError(t, err)
	jobs := memory.NewJobStore()
	queue := queuemem.NewQueue(8)
	tracker := orchestrator.NewTracker()
	orch := orchestrator.New(
		orchestrator.Config{DownloadsDir: filepath.Join(dir, "downloads")},
		jobs,
		artifacts,
		queue,
		&idSequence{},
		fakeClock{},
		tracker,
		zap.NewNop(),
	)

	chain := extract.NewChain(texts, []pipeline.MetadataStrategy{
		scriptedModelStrategy{},
		extract.NewHeuristicStrategy(),
		extract.NewSentinelStrategy(),
	}, zap.NewNop())

	w := New(
		queue,
		jobs,
		artifacts,
		discovery.New(discovery.Config{UserAgent: "pipeline-test", Timeout: 5 * time.Second}, zap.NewNop()),
		acquire.New(acquire.Config{Workers: 3, UserAgent: "pipeline-test", Timeout: 5 * time.Second}, zap.NewNop()),
		chain,
		catalog.NewChecker(singleMatchCatalog{}, zap.NewNop()),
		tracker,
		nil,
		fakeClock{},
		Config{DownloadsDir: filepath.Join(dir, "downloads"), MaxDownloads: 5},
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Discovery and acquisition: 7 links found, cap of 5 enforced.
	job, err := orch.StartDiscovery(ctx, pipeline.JobParameters{
		SourceURL: srv.URL + "/courses",
		Category:  pipeline.CategoryArts,
	})
	require.NoError(t, err)

	done := awaitJob(t, jobs, job.ID, func(j pipeline.Job) bool {
		return j.Status == pipeline.JobStatusCompleted && strings.Contains(j.Message, "Successfully downloaded")
	})
	require.Equal(t, "Successfully downloaded 5 of 5 files", done.Message)
	require.Equal(t, int64(5), attempts.Load())
	require.NotNil(t, done.Counters.FilesFound)
	require.Equal(t, 7, *done.Counters.FilesFound)
	require.NotNil(t, done.Counters.FilesDownloaded)
	require.Equal(t, 5, *done.Counters.FilesDownloaded)

	// Extraction: one document rejected by the model lands on the
	// heuristic path; all five produce records.
	require.NoError(t, orch.StartExtraction(ctx, job.ID,
		[]string{"class_name", "year", pipeline.FieldReadingMaterials}))
	awaitJob(t, jobs, job.ID, func(j pipeline.Job) bool {
		return j.Status == pipeline.JobStatusCompleted && strings.Contains(j.Message, "Metadata extraction complete")
	})

	metadata, err := artifacts.Get(ctx, job.ID, pipeline.ArtifactMetadata)
	require.NoError(t, err)
	require.Len(t, metadata, 5)

	byName := make(map[string]pipeline.DocumentResult, len(metadata))
	for _, record := range metadata {
		byName[record.Filename] = record
	}
	heuristic := byName["syllabus3.pdf"]
	require.Equal(t, "Political Theory Seminar", heuristic.Metadata["class_name"])
	require.Equal(t, "2025", heuristic.Metadata["year"])
	require.Empty(t, heuristic.Metadata[pipeline.FieldReadingMaterials])
	for _, name := range []string{"syllabus1.pdf", "syllabus2.pdf", "syllabus4.pdf", "syllabus5.pdf"} {
		require.Equal(t, "Modeled Course", byName[name].Metadata["class_name"], name)
		require.Len(t, byName[name].Metadata[pipeline.FieldReadingMaterials], 1, name)
	}

	// Library matching: the four records with materials match; the
	// heuristic record short-circuits without a lookup.
	require.NoError(t, orch.StartCrossReference(ctx, job.ID))
	final := awaitJob(t, jobs, job.ID, func(j pipeline.Job) bool {
		return j.Status == pipeline.JobStatusCompleted && strings.Contains(j.Message, "Library matching complete")
	})
	require.Equal(t, "Library matching complete! Found matches for 4/5 syllabi", final.Message)

	results, err := artifacts.Get(ctx, job.ID, pipeline.ArtifactPrimoResults)
	require.NoError(t, err)
	require.Len(t, results, 5)

	matched := 0
	for _, record := range results {
		require.NotNil(t, record.PrimoCheck, record.Filename)
		if record.PrimoCheck.Found {
			matched++
			require.Len(t, record.LibraryMatches, 1, record.Filename)
		}
	}
	require.Equal(t, 4, matched)

	for _, record := range results {
		if record.Filename != "syllabus3.pdf" {
			continue
		}
		require.False(t, record.PrimoCheck.Found)
		require.Equal(t, "no reading materials found in metadata", record.PrimoCheck.Error)
	}
}
