// Package extract turns downloaded documents into metadata records via an
// ordered chain of fallback strategies.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// PDFTextSource extracts plain text and table renderings from PDF files
// using pdfcpu content extraction.
type PDFTextSource struct {
	conf   *model.Configuration
	logger *zap.Logger
}

// NewPDFTextSource builds a PDFTextSource with relaxed validation, since
// scraped syllabi are frequently produced by sloppy generators.
func NewPDFTextSource(logger *zap.Logger) *PDFTextSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFTextSource{conf: conf, logger: logger}
}

// Text extracts the document's full text. An unreadable or empty document
// yields an error so the caller can skip it.
func (s *PDFTextSource) Text(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("text extraction canceled: %w", err)
	}

	if _, err := api.PageCountFile(path); err != nil {
		return "", fmt.Errorf("read pdf %s: %w", filepath.Base(path), err)
	}

	// pdfcpu extracts page content streams to files; collect and decode
	// them from a scratch directory rather than assuming output names.
	tmpDir, err := os.MkdirTemp("", "syllabus-content-*")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := api.ExtractContentFile(path, tmpDir, nil, s.conf); err != nil {
		return "", fmt.Errorf("extract content %s: %w", filepath.Base(path), err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			s.logger.Debug("skipping unreadable content page", zap.String("page", name), zap.Error(err))
			continue
		}
		if page := DecodeContentText(raw); page != "" {
			b.WriteString(page)
			b.WriteString("\n")
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text in %s", filepath.Base(path))
	}
	return text, nil
}
