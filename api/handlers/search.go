package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/search"
	"github.com/archcatalog/catalog/validation"
	"github.com/gin-gonic/gin"
)

type Searcher interface {
	Search(request search.Request) *search.Response
	Suggest(prefix string) []string
}

// SearchRequest keeps scope and filters raw: a value of the wrong shape means no restriction
// rather than a rejected request. Negative limit and offset are clamped by the engine.
type SearchRequest struct {
	Query   string          `json:"query" validate:"valid_query,max=1000"`
	Scope   json.RawMessage `json:"scope"`
	Filters json.RawMessage `json:"filters"`
	Limit   *int            `json:"limit"`
	Offset  int             `json:"offset"`
}

type SuggestionsRequest struct {
	Query string `form:"q" validate:"valid_query,max=1000"`
}

func SetupSearch(router gin.IRouter, logger logger.Logger, service Searcher, validator *validation.Validator) {
	router.POST("/api/search", handleSearch(service, logger, validator))
	router.GET("/api/search/suggestions", handleSuggestions(service, logger, validator))
}

func handleSearch(service Searcher, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract request body parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		response := service.Search(search.Request{
			Query:   request.Query,
			Scope:   decodeScope(request.Scope),
			Filters: decodeFilters(request.Filters),
			Limit:   request.Limit,
			Offset:  request.Offset,
		})

		c.Header(HeaderPaginationTotalCount, strconv.Itoa(response.TotalCount))
		c.JSON(http.StatusOK, response)
	}
}

func decodeScope(raw json.RawMessage) string {
	var scope string
	if err := json.Unmarshal(raw, &scope); err != nil {
		return ""
	}
	return scope
}

func decodeFilters(raw json.RawMessage) search.Filters {
	var fields struct {
		Repositories json.RawMessage `json:"repositories"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return search.Filters{}
	}

	var repositories []string
	if err := json.Unmarshal(fields.Repositories, &repositories); err != nil {
		return search.Filters{}
	}
	return search.Filters{Repositories: repositories}
}

func handleSuggestions(service Searcher, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SuggestionsRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from suggestions request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract query parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate suggestions request", "err", err.Error())
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}

		c.JSON(http.StatusOK, service.Suggest(request.Query))
	}
}
