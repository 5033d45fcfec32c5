package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var searchHandlerTestCases = []testCase{
	{
		name:           "QueryTooLong",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": strings.Repeat("a", 1001)},
		expectedStatus: http.StatusNotAcceptable,
		expectedResponse: map[string]any{
			"data":   nil,
			"errors": []any{"value or length of field 'query' is not in the expected range"},
		},
	},
	{
		name:           "QueryWithNullByte",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo\x00"},
		expectedStatus: http.StatusNotAcceptable,
		expectedResponse: map[string]any{
			"errors": []any{"invalid query"},
		},
	},
	{
		name:           "NegativeLimitIsClamped",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo", "limit": -1},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
			"results":    []any{},
		},
	},
	{
		name:           "NegativeOffsetIsClamped",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo", "offset": -5},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
		},
	},
	{
		name:           "ExplicitZeroLimit",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo", "limit": 0},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
			"results":    []any{},
		},
	},
	{
		name:           "ApisScope",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "api", "scope": "apis"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(1),
		},
	},
	{
		name:           "RepositoryFilterRestricts",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "api", "filters": map[string]any{"repositories": []string{"demo-repo"}}},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(2),
		},
	},
	{
		name:           "ScopeOfWrongType",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "api", "scope": 5},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
		},
	},
	{
		name:           "RepositoryFilterOfWrongType",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "api", "filters": map[string]any{"repositories": "demo-repo"}},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
		},
	},
	{
		name:           "FiltersOfWrongType",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "api", "filters": []any{"demo-repo"}},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
		},
	},
	{
		name:           "LimitOfWrongType",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo", "limit": "ten"},
		expectedStatus: http.StatusUnprocessableEntity,
	},
	{
		name:           "EmptyQuery",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": ""},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"query":       "",
			"results":     []any{},
			"totalCount":  float64(0),
			"suggestions": []any{},
		},
	},
	{
		name:           "ReadmeContent",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "mobility"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"query":      "mobility",
			"totalCount": float64(1),
		},
	},
	{
		name:           "RepositoriesScope",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "repo", "scope": "repositories"},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(2),
		},
	},
	{
		name:           "RepositoryFilter",
		requestHeaders: defaultTestRequestHeaders,
		requestBody:    map[string]any{"query": "demo", "filters": map[string]any{"repositories": []string{"demo-repo"}}},
		expectedStatus: http.StatusOK,
		expectedResponse: map[string]any{
			"totalCount": float64(3),
			"facets": map[string]any{
				"repositories": []any{map[string]any{"value": "demo-repo", "count": float64(3)}},
			},
		},
	},
}

func TestSearchHandler(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	for _, tc := range searchHandlerTestCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/api/search", tc.requestHeaders, tc.requestBody, tc.queryParams)
			assert.Equal(tc.expectedStatus, w.Code, w.Body.String())
			if tc.expectedResponse != nil {
				assertSubset(assert, tc.expectedResponse, decodeResponse(assert, w))
			}
		})
	}
}

func TestSearchHandlerPagination(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	w := makeTestHTTPRequest(server.router, assert, http.MethodPost, "/api/search", defaultTestRequestHeaders,
		map[string]any{"query": "repo", "scope": "repositories", "limit": 1, "offset": 1}, nil)
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("2", w.Header().Get(HeaderPaginationTotalCount))

	body := decodeResponse(assert, w)
	results, ok := body["results"].([]any)
	assert.True(ok)
	assert.Len(results, 1)
	assert.Equal("repo:empty-repo", results[0].(map[string]any)["id"])
}

func TestSearchHandlerMalformedBody(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	req, err := http.NewRequest(http.MethodPost, "/api/search", strings.NewReader("{not json"))
	assert.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	assert.Equal(http.StatusUnprocessableEntity, w.Code)
	assertSubset(assert, map[string]any{"errors": []any{"failed to extract request body parameters"}}, decodeResponse(assert, w))
}

func TestSuggestionsHandler(t *testing.T) {
	assert := require.New(t)
	server := setupTestServer(t, assert)

	type suggestionsTestCase struct {
		name        string
		queryParams map[string]string
		expected    []string
	}

	testCases := []suggestionsTestCase{
		{name: "ShortPrefix", queryParams: map[string]string{"q": "d"}, expected: []string{}},
		{name: "NoPrefix", queryParams: map[string]string{}, expected: []string{}},
		{name: "RepositoryPrefix", queryParams: map[string]string{"q": "pay"}, expected: []string{"payments-api", "PaymentService"}},
		{name: "NoMatch", queryParams: map[string]string{"q": "zzz"}, expected: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, http.MethodGet, "/api/search/suggestions", nil, nil, tc.queryParams)
			assert.Equal(http.StatusOK, w.Code, w.Body.String())

			var suggestions []string
			assert.NoError(json.Unmarshal(w.Body.Bytes(), &suggestions))
			assert.Equal(tc.expected, suggestions)
		})
	}
}
