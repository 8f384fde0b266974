package acquire

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// A completed transfer that is not a PDF and is smaller than this is
// treated as a failed download (error pages, redirects to HTML).
const minPDFBytes = 1024

// Config controls Acquirer behavior. Workers is a small fixed bound kept
// low to avoid hammering the source server.
type Config struct {
	Workers   int
	UserAgent string
	Timeout   time.Duration
}

// Progress is a snapshot passed to the progress callback. Started moves at
// claim time for smoother observed progress; Succeeded only moves on
// confirmed completion.
type Progress struct {
	Total     int
	Started   int
	Completed int
	Succeeded int
	Title     string
}

// ProgressFunc receives progress snapshots as transfers claim and complete.
type ProgressFunc func(Progress)

// Result is the per-reference outcome of an acquisition run.
type Result struct {
	Ref      pipeline.DocumentRef
	Filename string
	Skipped  bool
	Err      error
}

// Outcome aggregates an acquisition run.
type Outcome struct {
	Results   []Result
	Attempted int
	Succeeded int
}

// Acquirer downloads document references to local storage with bounded
// parallelism and a shared filename-uniqueness registry.
type Acquirer struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds an Acquirer.
func New(cfg Config, logger *zap.Logger) *Acquirer {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 15 * time.Second,
				MaxIdleConns:        32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// Acquire downloads at most maxDownloads of refs into destDir, prefixing
// derived filenames with prefix. A single reference's failure never aborts
// sibling transfers; the Outcome reports per-reference success and the
// confirmed success count.
func (a *Acquirer) Acquire(
	ctx context.Context,
	refs []pipeline.DocumentRef,
	destDir string,
	prefix string,
	maxDownloads int,
	onProgress ProgressFunc,
) Outcome {
	if maxDownloads > 0 && len(refs) > maxDownloads {
		refs = refs[:maxDownloads]
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	registry := NewRegistry()
	outcome := Outcome{
		Results:   make([]Result, len(refs)),
		Attempted: len(refs),
	}

	var (
		mu       sync.Mutex
		progress = Progress{Total: len(refs)}
	)
	report := func(mutate func(*Progress)) {
		mu.Lock()
		mutate(&progress)
		snapshot := progress
		mu.Unlock()
		onProgress(snapshot)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, ref := range refs {
		g.Go(func() error {
			res := a.fetchOne(gctx, registry, destDir, prefix, ref, report)
			mu.Lock()
			outcome.Results[i] = res
			if res.Err == nil {
				outcome.Succeeded++
			}
			mu.Unlock()
			report(func(p *Progress) {
				p.Completed++
				if res.Err == nil {
					p.Succeeded++
				}
			})
			// Errors are recorded per reference, never propagated, so one
			// bad transfer cannot cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	return outcome
}

func (a *Acquirer) fetchOne(
	ctx context.Context,
	registry *Registry,
	destDir string,
	prefix string,
	ref pipeline.DocumentRef,
	report func(func(*Progress)),
) Result {
	base := DeriveFilename(ref, prefix)
	name, exists := registry.Claim(destDir, base)
	report(func(p *Progress) {
		p.Started++
		p.Title = ref.Title
	})

	res := Result{Ref: ref, Filename: name}
	if exists {
		a.logger.Debug("skipping existing file", zap.String("filename", name))
		res.Skipped = true
		return res
	}

	data, contentType, err := a.download(ctx, ref.URL)
	if err != nil {
		registry.Release(name)
		a.logger.Warn("download failed", zap.String("url", ref.URL), zap.Error(err))
		res.Err = err
		return res
	}

	if !strings.Contains(strings.ToLower(contentType), "application/pdf") && len(data) < minPDFBytes {
		registry.Release(name)
		a.logger.Warn("rejected non-PDF response",
			zap.String("url", ref.URL),
			zap.String("content_type", contentType),
			zap.Int("bytes", len(data)),
		)
		res.Err = fmt.Errorf("not a valid PDF (content-type %q, %d bytes)", contentType, len(data))
		return res
	}

	if err := os.WriteFile(filepath.Join(destDir, name), data, 0o600); err != nil {
		registry.Release(name)
		res.Err = fmt.Errorf("write file: %w", err)
		return res
	}

	a.logger.Info("downloaded document",
		zap.String("filename", name),
		zap.Int("bytes", len(data)),
	)
	return res
}

func (a *Acquirer) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if a.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", a.cfg.UserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
