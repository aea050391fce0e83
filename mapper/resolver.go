package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/veldt-cms/veldt/caas"
	"github.com/veldt-cms/veldt/query"
)

// ReferenceChunkSize bounds how many identifiers one batched resolution fetch
// may carry. Chunking keeps query strings within upstream limits.
const ReferenceChunkSize = 30

// Resolve walks the reference registry and, per originating project, batch
// fetches every registered identifier, maps the fetched items, and splices
// them into tree at every path where they were requested. Identifiers that
// cannot be resolved — unknown upstream, pointing back to an ancestor, or
// past the depth bound — stay as explicit placeholder tokens.
//
// Project passes run concurrently and fail independently: a fetch failure in
// one project is reported in the returned error while the other projects'
// references still resolve. The returned tree is always usable; invoking
// Resolve again on it is a no-op because the registry has been drained.
func (m *Mapper) Resolve(ctx context.Context, tree any) (any, error) {
	buckets := m.registry.Drain()
	if len(buckets) == 0 {
		return tree, nil
	}

	type spliceOp struct {
		path  Path
		value any
	}

	var (
		mu   sync.Mutex
		ops  []spliceOp
		errs []error
	)

	var wg sync.WaitGroup
	for projectID, refs := range buckets {
		wg.Add(1)
		go func(projectID string, refs map[string][]Path) {
			defer wg.Done()
			resolved, err := m.resolveProject(ctx, projectID, refs)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				name := "local"
				if projectID != localProject {
					name = projectID
				}
				errs = append(errs, fmt.Errorf("resolving references for project %s: %w", name, err))
				return
			}
			for id, paths := range refs {
				value, ok := resolved[id]
				if !ok {
					// Not fetched: ancestor cycle or unknown upstream. Write
					// the token explicitly so every registered path is
					// populated even when the splice target was overwritten.
					value = tokenFor(projectID, id)
				}
				for _, p := range paths {
					ops = append(ops, spliceOp{path: p, value: value})
				}
			}
		}(projectID, refs)
	}
	wg.Wait()

	// Splice only after every project pass has completed; partial results
	// are never written.
	for _, op := range ops {
		tree = SetAt(tree, op.path, op.value)
	}

	if len(errs) > 0 {
		return tree, errors.Join(errs...)
	}
	return tree, nil
}

// resolveProject fetches and maps every identifier registered for one
// project. The returned map holds the fully mapped (and, below the depth
// bound, recursively resolved) item per identifier; excluded or missing
// identifiers are absent.
func (m *Mapper) resolveProject(ctx context.Context, projectID string, refs map[string][]Path) (map[string]any, error) {
	ids := make([]string, 0, len(refs))
	for id := range refs {
		if m.closesCycle(id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]any{}, nil
	}
	sort.Strings(ids)

	locale := m.locale
	if projectID != localProject {
		if remote, ok := m.remoteByID[projectID]; ok && remote.Locale != "" {
			locale = remote.Locale
		}
	}

	// Fetch all chunks concurrently; the splice step only runs after every
	// chunk has returned, so partial batches are never observed.
	chunks := chunkIDs(ids, ReferenceChunkSize)
	results := make([][]map[string]any, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			values := make([]any, len(chunk))
			for j, id := range chunk {
				values[j] = id
			}
			page, err := m.api.FetchByFilter(gctx, caas.Params{
				Filters:   []query.Filter{query.In("identifier", values...)},
				Locale:    locale,
				Page:      1,
				Pagesize:  len(chunk),
				ProjectID: projectID,
			})
			if err != nil {
				return err
			}
			results[i] = page.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []map[string]any
	for _, r := range results {
		items = append(items, r...)
	}

	// Fetched items map one resolution hop deeper, with the current tree's
	// own identifiers appended to the ancestor chain.
	childAncestors := m.childAncestors()

	resolved := make(map[string]any, len(ids))
	for _, id := range ids {
		raw := findItem(items, id)
		if raw == nil {
			continue
		}
		child := m.child(childAncestors)
		tree, err := child.mapItem(ctx, raw, Path{})
		if err != nil {
			return nil, err
		}
		if child.depth < m.maxDepth {
			tree, err = child.Resolve(ctx, tree)
			if err != nil {
				return nil, err
			}
		}
		resolved[id] = tree
	}
	return resolved, nil
}

// closesCycle reports whether fetching id would re-enter the current
// resolution chain. "Ancestor" means strict graph ancestor: a reference back
// to an item above the current tree is left as its placeholder token, while
// a direct self-reference keeps expanding and is bounded by the reference
// depth alone.
func (m *Mapper) closesCycle(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, self := range m.selfIDs {
		if self == id {
			return false
		}
	}
	for _, ancestor := range m.ancestors {
		if ancestor == id {
			return true
		}
	}
	return false
}

// childAncestors builds the ancestor chain for items fetched from the
// current tree: the inherited chain plus the tree's own identifiers.
func (m *Mapper) childAncestors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.ancestors)+len(m.selfIDs))
	out = append(out, m.ancestors...)
	for _, id := range m.selfIDs {
		seen := false
		for _, a := range out {
			if a == id {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, id)
		}
	}
	return out
}

// tokenFor returns the placeholder token for an identifier in the given
// project bucket.
func tokenFor(projectID, identifier string) string {
	if projectID == localProject {
		return LocalToken(identifier)
	}
	return RemoteToken(identifier)
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// findItem locates the fetched item for an identifier, matching the mapped
// identifier first and the raw document ID as a fallback.
func findItem(items []map[string]any, identifier string) map[string]any {
	for _, item := range items {
		if str(item, "identifier") == identifier || str(item, "_id") == identifier {
			return item
		}
	}
	return nil
}
