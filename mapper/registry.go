package mapper

import (
	"fmt"
	"sync"
)

// localProject is the bucket key for references into the mapper's own project.
const localProject = ""

// LocalToken returns the placeholder token written into the output tree for
// an unresolved reference to a local item.
func LocalToken(identifier string) string {
	return fmt.Sprintf("[REFERENCED-ITEM-%s]", identifier)
}

// RemoteToken returns the placeholder token for an unresolved reference to an
// item in a configured remote project.
func RemoteToken(identifier string) string {
	return fmt.Sprintf("[REFERENCED-REMOTE-ITEM-%s]", identifier)
}

// Registry accumulates cross-document references encountered during one
// recursive mapping pass. Entries are keyed by (project, identifier); the
// value is every output-tree path at which that identifier was requested.
//
// Registering never fetches. It is pure bookkeeping, safe for the concurrent
// sibling-field mapping within one request, and a Registry lives exactly as
// long as its owning Mapper.
type Registry struct {
	mu sync.Mutex
	// buckets maps project ID (localProject for the own project) to
	// identifier to the paths registered for it.
	buckets map[string]map[string][]Path
	// knownRemotes guards the remote namespace: only configured remote
	// project IDs get a remote bucket.
	knownRemotes map[string]bool
}

// NewRegistry creates a Registry accepting the given remote project IDs.
func NewRegistry(remoteIDs []string) *Registry {
	known := make(map[string]bool, len(remoteIDs))
	for _, id := range remoteIDs {
		known[id] = true
	}
	return &Registry{
		buckets:      make(map[string]map[string][]Path),
		knownRemotes: known,
	}
}

// Register records that identifier was referenced at path and returns the
// placeholder token to write there. When remoteProjectID names a configured
// remote project the reference lands in that project's bucket; otherwise —
// including an unrecognized remote ID — it falls back to the local bucket.
// The same identifier registered at several paths accumulates paths under a
// single entry.
func (r *Registry) Register(identifier string, path Path, remoteProjectID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	project := localProject
	if remoteProjectID != "" && r.knownRemotes[remoteProjectID] {
		project = remoteProjectID
	}

	bucket, ok := r.buckets[project]
	if !ok {
		bucket = make(map[string][]Path)
		r.buckets[project] = bucket
	}
	bucket[identifier] = append(bucket[identifier], path)

	if project == localProject {
		return LocalToken(identifier)
	}
	return RemoteToken(identifier)
}

// Drain returns all registered references grouped by project and resets the
// registry. A second Drain without intervening registrations returns an empty
// map, which is what makes re-resolving an already-resolved tree a no-op.
func (r *Registry) Drain() map[string]map[string][]Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	buckets := r.buckets
	r.buckets = make(map[string]map[string][]Path)
	return buckets
}
