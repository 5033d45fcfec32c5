package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/archcatalog/catalog/validation"
	"github.com/gin-gonic/gin"
)

type RepositoryReader interface {
	RepositoryChecker
	ListRepositories() ([]string, error)
	ReadFile(repository string, relativePath string) ([]byte, error)
}

type ListRepositoriesResponse struct {
	Repositories []string `json:"repositories"`
	Count        int      `json:"count"`
}

type ReadFileRequest struct {
	Repository string `uri:"repository" validate:"valid_repository"`
	Path       string `uri:"path"`
}

func SetupRepositories(router gin.IRouter, logger logger.Logger, reader RepositoryReader, validator *validation.Validator) {
	router.GET("/api/repositories", handleListRepositories(reader, logger))
	router.GET("/api/repositories/:repository/files/*path", handleReadFile(reader, logger, validator))
}

func handleListRepositories(reader RepositoryReader, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		repositories, err := reader.ListRepositories()
		if err != nil {
			if !errors.Is(err, corpus.ErrCorpusUnavailable) {
				logger.Error("could not list repositories", "err", err.Error())
				writeError(c, http.StatusInternalServerError, "failed to list repositories")
				return
			}
			logger.Warn("corpus unavailable, listing no repositories", "err", err.Error())
			repositories = []string{}
		}

		c.JSON(http.StatusOK, ListRepositoriesResponse{Repositories: repositories, Count: len(repositories)})
	}
}

func handleReadFile(reader RepositoryReader, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := ReadFileRequest{}
		if err := c.ShouldBindUri(&request); err != nil {
			logger.Warn("could not extract file path from request", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract path parameters")
			return
		}

		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}

		// the catch-all parameter keeps the separating slash
		relativePath := strings.TrimPrefix(request.Path, "/")

		data, err := reader.ReadFile(request.Repository, relativePath)
		if err != nil {
			switch {
			case errors.Is(err, corpus.ErrInvalidPath):
				writeError(c, http.StatusBadRequest, err.Error())
			case errors.Is(err, corpus.ErrNotFound):
				writeError(c, http.StatusNotFound, "file not found")
			case errors.Is(err, corpus.ErrCorpusUnavailable):
				writeError(c, http.StatusServiceUnavailable, "corpus unavailable")
			default:
				logger.Error("could not read file", "repository", request.Repository, "path", relativePath, "err", err.Error())
				writeError(c, http.StatusInternalServerError, "failed to read file")
			}
			return
		}

		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	}
}
