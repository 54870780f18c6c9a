package sources

import (
	"context"
	"sync"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
)

// Registry manages bibliographic sources and coordinates concurrent searches.
// It provides thread-safe registration and retrieval of sources, as well as
// concurrent search operations across multiple sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]Source

	// perSourceTimeout bounds each source's individual search during a
	// fan-out. Zero means the fan-out context's deadline applies alone.
	perSourceTimeout time.Duration
}

// NewRegistry creates a new source registry with an empty source map.
// perSourceTimeout bounds each provider call during fan-outs; pass 0 to rely
// on the caller's context deadline only.
func NewRegistry(perSourceTimeout time.Duration) *Registry {
	return &Registry{
		sources:          make(map[domain.SourceType]Source),
		perSourceTimeout: perSourceTimeout,
	}
}

// Register adds a source to the registry.
// If a source with the same type already exists, it will be replaced.
// This method is thread-safe.
func (r *Registry) Register(source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(sourceType domain.SourceType) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns all registered sources.
// The returned slice is a snapshot and is safe to iterate even if
// sources are added or removed concurrently.
func (r *Registry) AllSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, source := range r.sources {
		out = append(out, source)
	}
	return out
}

// EnabledSources returns only sources whose IsEnabled() reports true.
// The returned slice is a snapshot and is safe to iterate even if
// sources are added or removed concurrently.
func (r *Registry) EnabledSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			out = append(out, source)
		}
	}
	return out
}

// SearchAll searches all enabled sources concurrently.
func (r *Registry) SearchAll(ctx context.Context, query Query) []SourceResult {
	return r.SearchSources(ctx, query, nil)
}

// SearchSources searches specific sources concurrently.
// If sourceTypes is nil or empty, searches all enabled sources; an explicit
// source list is honored even for disabled sources. Returns one result per
// source searched, errors included; the caller decides how to handle
// per-source failures. A requested source type that is not registered is
// skipped. The search respects context cancellation: if the context is
// canceled, in-flight searches are interrupted and their errors returned.
// This method is thread-safe.
func (r *Registry) SearchSources(ctx context.Context, query Query, sourceTypes []domain.SourceType) []SourceResult {
	var selected []Source

	if len(sourceTypes) == 0 {
		selected = r.EnabledSources()
	} else {
		r.mu.RLock()
		selected = make([]Source, 0, len(sourceTypes))
		for _, st := range sourceTypes {
			if source, ok := r.sources[st]; ok {
				selected = append(selected, source)
			}
		}
		r.mu.RUnlock()
	}

	if len(selected) == 0 {
		return nil
	}

	resultChan := make(chan SourceResult, len(selected))
	var wg sync.WaitGroup

	for _, source := range selected {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()

			callCtx := ctx
			if r.perSourceTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.perSourceTimeout)
				defer cancel()
			}

			start := time.Now()
			candidates, err := s.Search(callCtx, query)
			resultChan <- SourceResult{
				Source:     s.SourceType(),
				Candidates: candidates,
				Err:        err,
				Duration:   time.Since(start),
			}
		}(source)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, len(selected))
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}
