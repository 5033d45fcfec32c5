package search

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/index"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	titleMatchScore   = 10
	contentMatchScore = 5

	defaultLimit = 20
)

// Snapshotter gives access to the currently published index generation.
type Snapshotter interface {
	Snapshot() *index.Snapshot
}

type Observer interface {
	ObserveSearch(scope string, duration time.Duration, cacheHit bool)
}

type Options struct {
	// DefaultLimit applies when a request carries no limit.
	DefaultLimit int
	// CacheSize of zero disables the result cache.
	CacheSize int
	CacheTTL  time.Duration
	Observer  Observer
}

type Service struct {
	logger       logger.Logger
	index        Snapshotter
	cache        *lru.LRU[cacheKey, *Response]
	observer     Observer
	defaultLimit int
}

// cacheKey carries the generation, so results of an older index can never be served.
type cacheKey struct {
	generation   uint64
	query        string
	kind         index.Kind
	repositories string
	limit        int
	offset       int
}

func New(logger logger.Logger, idx Snapshotter, opts Options) *Service {
	service := &Service{
		logger:       logger,
		index:        idx,
		observer:     opts.Observer,
		defaultLimit: opts.DefaultLimit,
	}

	if service.defaultLimit <= 0 {
		service.defaultLimit = defaultLimit
	}

	if opts.CacheSize > 0 {
		service.cache = lru.NewLRU[cacheKey, *Response](opts.CacheSize, nil, opts.CacheTTL)
	}

	return service
}

// Search matches the lowercased query as a substring of each entry's title and content. A title
// hit scores 10, a content-only hit 5. Results are ordered by score, then id.
func (s *Service) Search(request Request) *Response {
	start := time.Now()

	if strings.TrimSpace(request.Query) == "" {
		response := emptyResponse(request.Query)
		response.ExecutionTime = elapsedMilliseconds(start)
		return response
	}

	query := strings.ToLower(request.Query)
	snapshot := s.index.Snapshot()
	kind, restricted := kindForScope(request.Scope)
	allowed := allowedRepositories(request.Filters.Repositories)
	limit, offset := s.window(request.Limit, request.Offset)

	key := cacheKey{
		generation:   snapshot.Generation(),
		query:        query,
		kind:         kind,
		repositories: strings.Join(sortedKeys(allowed), "\x00"),
		limit:        limit,
		offset:       offset,
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			response := *cached
			response.Query = request.Query
			response.ExecutionTime = elapsedMilliseconds(start)
			s.observe(request.Scope, start, true)
			return &response
		}
	}

	entries := snapshot.Entries()
	matches := make([]Result, 0)
	for i := range entries {
		entry := &entries[i]
		if restricted && entry.Kind != kind {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[entry.Repository]; !ok {
				continue
			}
		}

		score := scoreEntry(entry, query)
		if score == 0 {
			continue
		}
		matches = append(matches, newResult(entry, score))
	}

	slices.SortFunc(matches, func(a, b Result) int {
		if a.Score != b.Score {
			return cmp.Compare(b.Score, a.Score)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	response := emptyResponse(request.Query)
	response.TotalCount = len(matches)
	response.Facets = computeFacets(matches)
	if offset < len(matches) {
		response.Results = matches[offset:min(offset+limit, len(matches))]
	}

	if s.cache != nil {
		s.cache.Add(key, response)
		copied := *response
		response = &copied
	}

	response.ExecutionTime = elapsedMilliseconds(start)
	s.observe(request.Scope, start, false)
	return response
}

func scoreEntry(entry *index.Entry, lowerQuery string) int {
	switch {
	case entry.TitleContains(lowerQuery):
		return titleMatchScore
	case entry.ContentContains(lowerQuery):
		return contentMatchScore
	}
	return 0
}

func newResult(entry *index.Entry, score int) Result {
	return Result{
		ID:         entry.ID,
		Type:       entry.Kind,
		Title:      entry.Title,
		Repository: entry.Repository,
		Path:       entry.Path,
		Score:      score,
		Highlights: []string{},
		Metadata:   entry.Metadata,
	}
}

// kindForScope maps a scope to the kind it restricts to. Unknown scopes do not restrict.
func kindForScope(scope string) (index.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(scope)) {
	case ScopeRepositories:
		return index.KindRepository, true
	case ScopeDocumentation:
		return index.KindDocument, true
	case ScopeAPIs:
		return index.KindAPI, true
	}
	return "", false
}

// allowedRepositories returns nil when no repository filter applies.
func allowedRepositories(repositories []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(repositories))
	for _, repository := range repositories {
		if repository = strings.TrimSpace(repository); repository != "" {
			allowed[repository] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// window resolves the page bounds. A missing limit takes the default; an explicit zero returns
// no results. Negative values count as zero.
func (s *Service) window(limit *int, offset int) (int, int) {
	resolved := s.defaultLimit
	if limit != nil {
		resolved = max(*limit, 0)
	}
	return resolved, max(offset, 0)
}

func computeFacets(matches []Result) Facets {
	repositories := map[string]int{}
	apiTypes := map[string]int{}
	for _, match := range matches {
		repositories[match.Repository]++
		if apiType, ok := match.Metadata[index.MetadataAPIType]; ok {
			apiTypes[apiType]++
		}
	}

	facets := emptyFacets()
	facets.Repositories = facetValues(repositories)
	facets.APITypes = facetValues(apiTypes)
	return facets
}

// facetValues orders by descending count, then by value.
func facetValues(counts map[string]int) []FacetValue {
	values := make([]FacetValue, 0, len(counts))
	for value, count := range counts {
		values = append(values, FacetValue{Value: value, Count: count})
	}
	slices.SortFunc(values, func(a, b FacetValue) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return values
}

func (s *Service) observe(scope string, start time.Time, cacheHit bool) {
	if s.observer == nil {
		return
	}
	if _, restricted := kindForScope(scope); !restricted {
		scope = ScopeAll
	}
	s.observer.ObserveSearch(strings.ToLower(strings.TrimSpace(scope)), time.Since(start), cacheHit)
}

func elapsedMilliseconds(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
