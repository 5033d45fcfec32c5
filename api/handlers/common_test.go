// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/archcatalog/catalog/config"
	"github.com/archcatalog/catalog/db/kvdb"
	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/archcatalog/catalog/services/index"
	"github.com/archcatalog/catalog/services/search"
	"github.com/archcatalog/catalog/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

var testRepositories = map[string]string{
	"demo-repo/README.md":               "# Demo\n\nUrban mobility platform with an api gateway.",
	"demo-repo/docs/openapi.yaml":       "openapi: 3.0.0\ninfo:\n  title: Demo API\n  version: 1.0.0\n",
	"demo-repo/schema/schema.graphql":   "type Query { ok: Boolean }",
	"empty-repo/src/main.go":            "package main",
	"payments-api/README.md":            "Payments service",
	"payments-api/proto/payments.proto": "syntax = \"proto3\";\npackage payments.v1;\nservice PaymentService {}\n",
}

type testCase struct {
	name             string
	endpoint         string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

type testServer struct {
	router  *gin.Engine
	index   *index.Index
	builder *index.Builder
	history *index.History
	corpus  *corpus.Accessor
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

func writeTestRepositories(assert *require.Assertions, root string, files map[string]string) {
	for relPath, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(relPath))
		err := os.MkdirAll(filepath.Dir(fullPath), 0755)
		assert.NoError(err, "could not create test sub-directory")
		err = os.WriteFile(fullPath, []byte(content), 0644)
		assert.NoError(err, "could not write test file")
	}
}

// setupTestServer writes the test repositories into a temporary corpus, builds the first index
// generation and registers every handler on a test router.
func setupTestServer(t *testing.T, assert *require.Assertions) *testServer {

	tempDir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("CORPUS_ROOT", filepath.Join(tempDir, "repositories"))
	t.Setenv("KVDB_PATH", filepath.Join(tempDir, "catalog.db"))

	cfg, err := config.Load("")
	assert.NoError(err, "could not load config")

	writeTestRepositories(assert, cfg.GetCorpusRoot(), testRepositories)

	testLogger := newTestLogger()

	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	t.Cleanup(func() {
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	accessor := corpus.New(testLogger, cfg.GetCorpusRoot(), cfg.GetCorpusExcludes())
	classifier := apis.New(testLogger, accessor, cfg.GetMaxSpecBytes())
	idx := index.New()
	history := index.NewHistory(testLogger, kvDB)
	builder := index.NewBuilder(testLogger, accessor, classifier, idx, index.BuilderOptions{
		ReadmeMaxChars: cfg.GetReadmeMaxChars(),
		Workers:        cfg.GetIndexWorkers(),
		History:        history,
	})
	_, err = builder.Rebuild(context.Background())
	assert.NoError(err, "could not build the first index")

	searchService := search.New(testLogger, idx, search.Options{
		DefaultLimit: cfg.GetDefaultLimit(),
		CacheSize:    cfg.GetCacheSize(),
		CacheTTL:     cfg.GetCacheTTL(),
	})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.UseRawPath = true

	SetupSearch(router, testLogger, searchService, validator)
	SetupRebuild(router, testLogger, builder, history, idx, validator)
	SetupAPIs(router, testLogger, classifier, accessor, validator)
	SetupRepositories(router, testLogger, accessor, validator)

	return &testServer{router: router, index: idx, builder: builder, history: history, corpus: accessor}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		endpoint = endpoint + "?"
		for key, value := range queryParams {
			if endpoint[len(endpoint)-1] != '?' {
				endpoint = endpoint + "&"
			}
			endpoint = endpoint + key + "=" + value
		}
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

func decodeResponse(assert *require.Assertions, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &body), "could not decode response body %q", w.Body.String())
	return body
}

// assertSubset checks that every key in expected is present in actual with the same value.
// Nested maps are compared recursively; everything else must match exactly.
func assertSubset(assert *require.Assertions, expected map[string]any, actual map[string]any) {
	for key, expectedValue := range expected {
		actualValue, ok := actual[key]
		assert.True(ok, "missing key %q in %v", key, actual)

		expectedMap, isMap := expectedValue.(map[string]any)
		if isMap {
			actualMap, ok := actualValue.(map[string]any)
			assert.True(ok, "key %q is not an object", key)
			assertSubset(assert, expectedMap, actualMap)
			continue
		}
		assert.Equal(expectedValue, actualValue, "unexpected value for key %q", key)
	}
}
