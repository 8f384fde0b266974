// Package local implements a local filesystem artifact store.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Config captures the parameters for the local artifact store.
type Config struct {
	// BaseDir is the directory where stage artifacts are written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ArtifactStore persists per-stage result artifacts as JSON files named
// <jobID>_<stage>.json under a base directory.
type ArtifactStore struct {
	baseDir string
}

// New creates the artifact store, creating the base directory if needed
// and verifying it is writable.
func New(cfg Config) (*ArtifactStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &ArtifactStore{baseDir: cfg.BaseDir}, nil
}

// Put writes the stage artifact and returns the file path.
func (s *ArtifactStore) Put(_ context.Context, jobID, stage string, results []pipeline.DocumentResult) (string, error) {
	path, err := s.artifactPath(jobID, stage)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Get reads a stage artifact back.
func (s *ArtifactStore) Get(_ context.Context, jobID, stage string) ([]pipeline.DocumentResult, error) {
	path, err := s.artifactPath(jobID, stage)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var results []pipeline.DocumentResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", filepath.Base(path), err)
	}
	return results, nil
}

// Exists reports whether a stage artifact is present on disk.
func (s *ArtifactStore) Exists(jobID, stage string) bool {
	path, err := s.artifactPath(jobID, stage)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Path returns the on-disk location a stage artifact would use, without
// checking for its presence.
func (s *ArtifactStore) Path(jobID, stage string) (string, error) {
	return s.artifactPath(jobID, stage)
}

// artifactPath builds the artifact file path, rejecting IDs or stages
// that would escape the base directory.
func (s *ArtifactStore) artifactPath(jobID, stage string) (string, error) {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(stage) == "" {
		return "", fmt.Errorf("job id and stage are required")
	}
	name := fmt.Sprintf("%s_%s.json", jobID, stage)
	fullPath := filepath.Join(s.baseDir, name)

	cleanBase := filepath.Clean(s.baseDir)
	cleanFull := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFull, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return cleanFull, nil
}
