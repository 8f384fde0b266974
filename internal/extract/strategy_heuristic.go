package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// HeuristicStrategy extracts metadata with regular expressions over the
// document text. It backs up the LLM strategy when the model is down or
// returns garbage; recall is low but it never hallucinates.
type HeuristicStrategy struct{}

// NewHeuristicStrategy returns the regex-based fallback strategy.
func NewHeuristicStrategy() *HeuristicStrategy { return &HeuristicStrategy{} }

// Name identifies the strategy in logs and fallback messages.
func (s *HeuristicStrategy) Name() string { return "heuristic" }

var (
	yearPattern       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	semesterPattern   = regexp.MustCompile(`(?i)\b(fall|spring|summer|winter)\b`)
	classNumPattern   = regexp.MustCompile(`\b[A-Z]{2,4}\s?\d{3,4}[A-Z]?\b`)
	instructorPattern = regexp.MustCompile(`(?i)(?:instructor|professor|taught by|lecturer)\s*[:\-]?\s*((?:Dr\.|Prof\.)?\s*[A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+){0,2})`)
	universityPattern = regexp.MustCompile(`(?i)\b((?:[A-Z][a-zA-Z'\-]+\s+){0,3}(?:University|College|Institute)(?:\s+of\s+[A-Z][a-zA-Z'\-]+)?)`)
	readingPattern    = regexp.MustCompile(`(?i)^(?:required|recommended|optional)?\s*(?:texts?|readings?|textbooks?|books?)\s*[:\-]?\s*$`)
	bookLinePattern   = regexp.MustCompile(`^(.{4,120}?)\s+(?:by|,)\s+([A-Z][a-zA-Z'\-\.]+(?:\s+[A-Z][a-zA-Z'\-\.]+){0,3})\s*$`)
)

// Extract scans the text for the fields it has patterns for and leaves
// everything else to the Unknown fill-in downstream.
func (s *HeuristicStrategy) Extract(_ context.Context, text string) (map[string]any, error) {
	fields := map[string]any{}

	if m := yearPattern.FindString(text); m != "" {
		fields["year"] = m
	}
	if m := semesterPattern.FindString(text); m != "" {
		fields["semester"] = strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
	}
	if m := classNumPattern.FindString(text); m != "" {
		fields["class_number"] = m
	}
	if m := instructorPattern.FindStringSubmatch(text); len(m) > 1 {
		fields["instructor"] = strings.TrimSpace(m[1])
	}
	if m := universityPattern.FindString(text); m != "" {
		fields["university"] = strings.TrimSpace(m)
	}

	// The first non-empty line is usually the course title.
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			fields["class_name"] = line
			break
		}
	}

	if materials := scanReadingList(text); len(materials) > 0 {
		fields[pipeline.FieldReadingMaterials] = materials
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields matched")
	}
	return fields, nil
}

// scanReadingList looks for a "Required Texts:"-style heading and collects
// "Title by Author" lines from the paragraph that follows it.
func scanReadingList(text string) []any {
	lines := strings.Split(text, "\n")
	var (
		materials []any
		inList    bool
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if readingPattern.MatchString(trimmed) {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		if trimmed == "" {
			inList = false
			continue
		}
		if m := bookLinePattern.FindStringSubmatch(trimmed); len(m) > 2 {
			materials = append(materials, map[string]any{
				"title":       strings.TrimSpace(strings.Trim(m[1], `"'`)),
				"creator":     strings.TrimSpace(m[2]),
				"requirement": "required",
				"type":        "book",
			})
		}
	}
	return materials
}
