package acquire

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

const (
	genericFilename = "syllabus.pdf"
	maxFilenameLen  = 200
	minUsefulTitle  = 10
)

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename strips filesystem-invalid characters, collapses
// whitespace, and caps the length for cross-platform safety.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "_")
	name = strings.Join(strings.Fields(name), " ")
	runes := []rune(name)
	if len(runes) > maxFilenameLen {
		name = string(runes[:maxFilenameLen])
	}
	return name
}

// DeriveFilename chooses a local filename for a reference. A non-trivial
// title (longer than 10 characters and not itself a URL) wins; otherwise
// the URL's path segment; otherwise a fixed generic name. The category
// prefix keeps filenames from different sources apart in a shared folder.
func DeriveFilename(ref pipeline.DocumentRef, prefix string) string {
	var base string

	title := strings.TrimSpace(ref.Title)
	if utf8.RuneCountInString(title) > minUsefulTitle && !strings.HasPrefix(strings.ToLower(title), "http") {
		base = SanitizeFilename(title)
		if !strings.HasSuffix(strings.ToLower(base), ".pdf") {
			base += ".pdf"
		}
	} else {
		base = filenameFromURL(ref.URL)
	}

	if prefix != "" && !strings.HasPrefix(strings.ToLower(base), strings.ToLower(prefix)) {
		base = prefix + base
	}
	return base
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return genericFilename
	}
	name := path.Base(u.Path)
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return genericFilename
	}
	return SanitizeFilename(name)
}
