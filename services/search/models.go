package search

import "github.com/archcatalog/catalog/services/index"

const (
	ScopeAll           = "all"
	ScopeRepositories  = "repositories"
	ScopeDocumentation = "documentation"
	ScopeAPIs          = "apis"
)

type Filters struct {
	Repositories []string `json:"repositories,omitempty"`
}

type Request struct {
	Query   string  `json:"query"`
	Scope   string  `json:"scope,omitempty"`
	Filters Filters `json:"filters"`
	// Limit is nil when the caller did not ask for a page size.
	Limit   *int    `json:"limit,omitempty"`
	Offset  int     `json:"offset,omitempty"`
}

type Result struct {
	ID         string            `json:"id"`
	Type       index.Kind        `json:"type"`
	Title      string            `json:"title"`
	Repository string            `json:"repository"`
	Path       string            `json:"path"`
	Score      int               `json:"score"`
	Highlights []string          `json:"highlights"`
	Metadata   map[string]string `json:"metadata"`
}

type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets always serializes every bucket as an array. Languages, FileTypes and Topics are
// reserved and stay empty.
type Facets struct {
	Repositories []FacetValue `json:"repositories"`
	Languages    []FacetValue `json:"languages"`
	APITypes     []FacetValue `json:"apiTypes"`
	FileTypes    []FacetValue `json:"fileTypes"`
	Topics       []FacetValue `json:"topics"`
}

type Response struct {
	Query       string   `json:"query"`
	Results     []Result `json:"results"`
	TotalCount  int      `json:"totalCount"`
	Facets      Facets   `json:"facets"`
	Suggestions []string `json:"suggestions"`
	// ExecutionTime is in milliseconds.
	ExecutionTime float64 `json:"executionTime"`
}

func emptyFacets() Facets {
	return Facets{
		Repositories: []FacetValue{},
		Languages:    []FacetValue{},
		APITypes:     []FacetValue{},
		FileTypes:    []FacetValue{},
		Topics:       []FacetValue{},
	}
}

func emptyResponse(query string) *Response {
	return &Response{
		Query:       query,
		Results:     []Result{},
		Facets:      emptyFacets(),
		Suggestions: []string{},
	}
}
