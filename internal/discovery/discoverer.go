// Package discovery extracts candidate document references from a source page.
package discovery

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Discoverer implements pipeline.Discoverer using the Colly collector. It
// scans anchors, table rows, and iframes for PDF links and deduplicates
// candidates by URL.
type Discoverer struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

const maxRowTitleLen = 100

// New builds a Discoverer.
func New(cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Discoverer{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Discover fetches pageURL and returns the deduplicated PDF references it
// links to, in first-seen order. A later duplicate of a URL keeps its
// position but takes the newer title.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) ([]pipeline.DocumentRef, error) {
	collector := d.baseCollector.Clone()
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}
	timeout := d.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		refs     []pipeline.DocumentRef
		seen     = make(map[string]int)
		fetchErr error
	)

	record := func(url, title string) {
		if title == "" {
			title = "Untitled"
		}
		if idx, ok := seen[url]; ok {
			refs[idx].Title = title
			return
		}
		seen[url] = len(refs)
		refs = append(refs, pipeline.DocumentRef{URL: url, Title: title})
	}

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !isPDFLink(href) {
			return
		}
		title := strings.TrimSpace(e.Text)
		// Anchors inside tables often sit next to course context; prefer
		// the whole row's text when it carries more than the link label.
		if row := e.DOM.ParentsFiltered("tr").First(); row.Length() > 0 {
			rowText := collapseWhitespace(row.Text())
			if len(rowText) > len(title) {
				title = truncate(rowText, maxRowTitleLen)
			}
		}
		record(e.Request.AbsoluteURL(href), title)
	})

	collector.OnHTML("iframe[src]", func(e *colly.HTMLElement) {
		src := e.Attr("src")
		if !isPDFLink(src) {
			return
		}
		title := strings.TrimSpace(e.Attr("title"))
		if title == "" {
			title = "Embedded PDF"
		}
		record(e.Request.AbsoluteURL(src), title)
	})

	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := d.visit(ctx, collector, pageURL); err != nil {
		d.logger.Warn("discovery page scan failed", zap.String("url", pageURL), zap.Error(err))
		return nil, err
	}
	if fetchErr != nil {
		d.logger.Warn("discovery page fetch failed", zap.String("url", pageURL), zap.Error(fetchErr))
		return nil, fmt.Errorf("fetch discovery page: %w", fetchErr)
	}

	d.logger.Info("discovery scan complete",
		zap.String("url", pageURL),
		zap.Int("pdf_links", len(refs)),
	)
	return refs, nil
}

func (d *Discoverer) visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("discovery canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit discovery page: %w", err)
		}
		return nil
	}
}

func isPDFLink(href string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), ".pdf")
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
