package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/archcatalog/catalog/services/index"
	"github.com/stretchr/testify/require"
)

var demoCorpus = map[string]string{
	"demo-repo/README.md":               "# Demo\n\nUrban mobility platform with an api gateway.",
	"demo-repo/docs/openapi.yaml":       "openapi: 3.0.0\ninfo:\n  title: Demo API\n  version: 1.0.0\n",
	"demo-repo/schema/schema.graphql":   "type Query { ok: Boolean }",
	"empty-repo/src/main.go":            "package main",
	"payments-api/README.md":            "Payments service",
	"payments-api/proto/payments.proto": "syntax = \"proto3\";\npackage payments.v1;\nservice PaymentService {}\n",
}

type countingObserver struct {
	searches  int
	cacheHits int
	scopes    []string
}

func (c *countingObserver) ObserveSearch(scope string, _ time.Duration, cacheHit bool) {
	c.searches++
	c.scopes = append(c.scopes, scope)
	if cacheHit {
		c.cacheHits++
	}
}

type searchFixture struct {
	service *Service
	builder *index.Builder
	index   *index.Index
}

func newSearchFixture(t *testing.T, files map[string]string, opts Options, builderOpts index.BuilderOptions) *searchFixture {
	t.Helper()

	root := t.TempDir()
	for relPath, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(relPath))
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}

	accessor := corpus.New(logger.Discard(), root, nil)
	idx := index.New()
	builder := index.NewBuilder(logger.Discard(), accessor, apis.New(logger.Discard(), accessor, 1<<20), idx, builderOpts)
	_, err := builder.Rebuild(context.Background())
	require.NoError(t, err)

	return &searchFixture{service: New(logger.Discard(), idx, opts), builder: builder, index: idx}
}

func limitOf(n int) *int {
	return &n
}

func resultIDs(response *Response) []string {
	ids := make([]string, 0, len(response.Results))
	for _, result := range response.Results {
		ids = append(ids, result.ID)
	}
	return ids
}

func TestSearchScenarios(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	mobility := service.Search(Request{Query: "mobility"})
	assert.Equal([]string{"file:demo-repo/README.md"}, resultIDs(mobility))
	assert.Equal(5, mobility.Results[0].Score)

	demoAPI := service.Search(Request{Query: "Demo API"})
	assert.Len(demoAPI.Results, 1)
	assert.True(strings.HasPrefix(demoAPI.Results[0].ID, "api:demo-repo/"))
	assert.Equal(10, demoAPI.Results[0].Score)
	assert.Equal(index.KindAPI, demoAPI.Results[0].Type)
	assert.Equal("docs/openapi.yaml", demoAPI.Results[0].Path)

	emptyRepo := service.Search(Request{Query: "empty-repo"})
	assert.Equal([]string{"repo:empty-repo"}, resultIDs(emptyRepo))
	assert.Equal(1, emptyRepo.TotalCount)

	scoped := service.Search(Request{Query: "api", Scope: ScopeRepositories})
	assert.NotEmpty(scoped.Results)
	for _, result := range scoped.Results {
		assert.Equal(index.KindRepository, result.Type)
	}
}

var emptyQueryTestCases = []string{"", "   ", "\t\n"}

func TestSearchEmptyQuery(t *testing.T) {
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	for _, query := range emptyQueryTestCases {
		t.Run("query "+strings.TrimSpace(query), func(t *testing.T) {
			assert := require.New(t)
			response := service.Search(Request{Query: query})
			assert.Empty(response.Results)
			assert.NotNil(response.Results)
			assert.Equal(0, response.TotalCount)
			assert.Equal(emptyFacets(), response.Facets)
			assert.NotNil(response.Suggestions)
			assert.GreaterOrEqual(response.ExecutionTime, float64(0))
		})
	}
}

func TestSearchScoringOrderingAndFacets(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	response := service.Search(Request{Query: "API"})
	assert.Equal([]string{
		"api:demo-repo/docs/openapi.yaml",
		"repo:payments-api",
		"file:demo-repo/README.md",
	}, resultIDs(response))
	assert.Equal([]int{10, 10, 5}, []int{response.Results[0].Score, response.Results[1].Score, response.Results[2].Score})
	assert.Equal(3, response.TotalCount)
	assert.Equal("API", response.Query)

	assert.Equal([]FacetValue{{Value: "demo-repo", Count: 2}, {Value: "payments-api", Count: 1}}, response.Facets.Repositories)
	assert.Equal([]FacetValue{{Value: "rest", Count: 1}}, response.Facets.APITypes)
	assert.Empty(response.Facets.Languages)
	assert.NotNil(response.Facets.Languages)
	assert.NotNil(response.Facets.FileTypes)
	assert.NotNil(response.Facets.Topics)
	assert.NotNil(response.Results[0].Highlights)
	assert.Equal(map[string]string{index.MetadataAPIType: "rest", index.MetadataVersion: "1.0.0"}, response.Results[0].Metadata)
}

var scopeAndFilterTestCases = []struct {
	name        string
	request     Request
	expectedIDs []string
}{
	{
		name:    "Repository filter",
		request: Request{Query: "pay", Filters: Filters{Repositories: []string{"payments-api"}}},
		expectedIDs: []string{
			"api:payments-api/proto/payments.proto",
			"repo:payments-api",
			"file:payments-api/README.md",
		},
	},
	{
		name:        "Repository filter excludes other repositories",
		request:     Request{Query: "pay", Filters: Filters{Repositories: []string{"demo-repo"}}},
		expectedIDs: []string{},
	},
	{
		name:        "Scope and filter are combined",
		request:     Request{Query: "pay", Scope: ScopeAPIs, Filters: Filters{Repositories: []string{"payments-api"}}},
		expectedIDs: []string{"api:payments-api/proto/payments.proto"},
	},
	{
		name:        "Documentation scope",
		request:     Request{Query: "readme", Scope: ScopeDocumentation},
		expectedIDs: []string{"file:demo-repo/README.md", "file:payments-api/README.md"},
	},
	{
		name:        "Scope is case insensitive",
		request:     Request{Query: "schema", Scope: "APIs"},
		expectedIDs: []string{"api:demo-repo/schema/schema.graphql"},
	},
	{
		name:        "Blank repository filter does not restrict",
		request:     Request{Query: "empty", Filters: Filters{Repositories: []string{" "}}},
		expectedIDs: []string{"repo:empty-repo"},
	},
}

func TestSearchScopesAndFilters(t *testing.T) {
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	for _, testCase := range scopeAndFilterTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.expectedIDs, resultIDs(service.Search(testCase.request)))
		})
	}
}

func TestSearchUnknownScopeDoesNotRestrict(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	all := service.Search(Request{Query: "e", Scope: ScopeAll})
	unknown := service.Search(Request{Query: "e", Scope: "everything"})
	missing := service.Search(Request{Query: "e"})

	assert.Equal(resultIDs(all), resultIDs(unknown))
	assert.Equal(resultIDs(all), resultIDs(missing))
}

func TestSearchPagination(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	all := service.Search(Request{Query: "e", Limit: limitOf(100)})
	total := all.TotalCount
	assert.Greater(total, 3)

	for limit := 0; limit <= total+1; limit++ {
		for offset := 0; offset <= total+1; offset++ {
			response := service.Search(Request{Query: "e", Limit: limitOf(limit), Offset: offset})
			assert.Equal(total, response.TotalCount)
			assert.Len(response.Results, min(limit, max(0, total-offset)), "limit %d offset %d", limit, offset)
			if offset < total && limit > 0 {
				assert.Equal(all.Results[offset].ID, response.Results[0].ID)
			}
		}
	}

	negative := service.Search(Request{Query: "e", Limit: limitOf(2), Offset: -3})
	assert.Equal(resultIDs(all)[:2], resultIDs(negative))
}

func TestSearchLimitDefaults(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{DefaultLimit: 2}, index.BuilderOptions{}).service

	total := service.Search(Request{Query: "e", Limit: limitOf(100)}).TotalCount
	assert.Greater(total, 3)

	type limitTestCase struct {
		name     string
		limit    *int
		expected int
	}

	testCases := []limitTestCase{
		{name: "Missing limit takes the default", limit: nil, expected: 2},
		{name: "Explicit zero returns nothing", limit: limitOf(0), expected: 0},
		{name: "Negative limit counts as zero", limit: limitOf(-1), expected: 0},
		{name: "Limit above the default is honored", limit: limitOf(3), expected: 3},
		{name: "Limit above the total returns everything", limit: limitOf(total + 50), expected: total},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			response := service.Search(Request{Query: "e", Limit: tc.limit})
			assert.Len(response.Results, tc.expected)
			assert.Equal(total, response.TotalCount)
		})
	}
}

func TestSearchQueryIsNotTrimmed(t *testing.T) {
	assert := require.New(t)
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	// "demo-repo" contains "demo" but never "demo " with a trailing space
	assert.Contains(resultIDs(service.Search(Request{Query: "demo"})), "repo:demo-repo")
	assert.NotContains(resultIDs(service.Search(Request{Query: "demo "})), "repo:demo-repo")

	blank := service.Search(Request{Query: "   "})
	assert.Empty(blank.Results)
	assert.Equal(0, blank.TotalCount)
}

func TestSearchAPITypeFacetSum(t *testing.T) {
	service := newSearchFixture(t, demoCorpus, Options{}, index.BuilderOptions{}).service

	for _, query := range []string{"a", "e", "pay", "schema", "demo", "service"} {
		t.Run(query, func(t *testing.T) {
			assert := require.New(t)
			response := service.Search(Request{Query: query, Limit: limitOf(100)})

			withAPIType := 0
			for _, result := range response.Results {
				if _, ok := result.Metadata[index.MetadataAPIType]; ok {
					withAPIType++
				}
			}

			facetSum := 0
			for _, facet := range response.Facets.APITypes {
				facetSum += facet.Count
			}
			assert.Equal(withAPIType, facetSum)

			repositorySum := 0
			for _, facet := range response.Facets.Repositories {
				repositorySum += facet.Count
			}
			assert.Equal(response.TotalCount, repositorySum)
		})
	}
}

func TestSearchCacheIsScopedToGeneration(t *testing.T) {
	assert := require.New(t)
	observer := &countingObserver{}
	fixture := newSearchFixture(t, demoCorpus, Options{CacheSize: 8, CacheTTL: time.Minute, Observer: observer}, index.BuilderOptions{})

	first := fixture.service.Search(Request{Query: "demo"})
	second := fixture.service.Search(Request{Query: "DEMO"})
	assert.Equal(resultIDs(first), resultIDs(second))
	assert.Equal("DEMO", second.Query)
	assert.Equal(1, observer.cacheHits)

	_, err := fixture.builder.Rebuild(context.Background())
	assert.NoError(err)

	fixture.service.Search(Request{Query: "demo"})
	assert.Equal(1, observer.cacheHits)
	assert.Equal(3, observer.searches)
	assert.Equal([]string{ScopeAll, ScopeAll, ScopeAll}, observer.scopes)
}

func TestSearchEmptyIndex(t *testing.T) {
	assert := require.New(t)
	service := New(logger.Discard(), index.New(), Options{})

	response := service.Search(Request{Query: "anything"})
	assert.Empty(response.Results)
	assert.Equal(0, response.TotalCount)
	assert.Equal([]string{}, service.Suggest("an"))
}
