// Package acquire implements the concurrent, deduplicating document downloader.
package acquire

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Registry guards filename uniqueness for one job's destination folder.
// The claim-and-check sequence runs under a single lock so no two
// concurrent workers can commit the same filename.
type Registry struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{claimed: make(map[string]struct{})}
}

// Claim reserves a unique filename derived from base, suffixing a counter
// (name_1.ext, name_2.ext, ...) on collision. It returns the claimed name
// and whether the destination path already exists on disk, in which case
// the transfer should be skipped and counted as success.
func (r *Registry) Claim(destDir, base string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := base
	for counter := 1; ; counter++ {
		if _, taken := r.claimed[name]; !taken {
			break
		}
		ext := filepath.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		name = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}

	r.claimed[name] = struct{}{}
	if _, err := os.Stat(filepath.Join(destDir, name)); err == nil {
		return name, true
	}
	return name, false
}

// Release frees a claimed name after a failed transfer so a retry may
// reuse it. Successful transfers keep their entries for the life of the
// registry.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, name)
}

// Claimed reports whether name is currently held.
func (r *Registry) Claimed(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.claimed[name]
	return ok
}
