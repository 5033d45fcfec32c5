package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/index"
	"github.com/archcatalog/catalog/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Rebuilder interface {
	Rebuild(ctx context.Context) (*index.RebuildResult, error)
}

type RebuildHistory interface {
	Get(id string) (*index.RebuildResult, error)
	Latest() (*index.RebuildResult, error)
}

type IndexReader interface {
	Snapshot() *index.Snapshot
}

type RebuildResponse struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	Entries      int    `json:"entries"`
	Repositories int    `json:"repositories"`
	SkippedFiles int    `json:"skippedFiles"`
	Generation   uint64 `json:"generation"`
}

type StatusResponse struct {
	Generation  uint64               `json:"generation"`
	Entries     int                  `json:"entries"`
	BuiltAt     *time.Time           `json:"builtAt"`
	LastRebuild *index.RebuildResult `json:"lastRebuild"`
}

type GetRebuildRequest struct {
	ID string `uri:"id" validate:"required"`
}

func SetupRebuild(router gin.IRouter, logger logger.Logger, builder Rebuilder, history RebuildHistory, idx IndexReader, validator *validation.Validator) {
	router.POST("/api/search/rebuild", handleRebuild(builder, logger))
	router.GET("/api/search/rebuilds/:id", handleGetRebuild(history, logger, validator))
	router.GET("/api/search/status", handleStatus(idx, history, logger))
}

func handleRebuild(builder Rebuilder, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// A rebuild runs to completion even if the caller goes away.
		result, err := builder.Rebuild(context.WithoutCancel(c.Request.Context()))
		if err != nil {
			if errors.Is(err, index.ErrRebuildInProgress) {
				writeError(c, http.StatusConflict, err.Error())
				return
			}
			logger.Error("rebuild failed", "err", err.Error())
			writeError(c, http.StatusInternalServerError, "failed to rebuild search index")
			return
		}

		c.JSON(http.StatusOK, RebuildResponse{
			ID:           result.ID,
			Message:      rebuildMessage(result),
			Entries:      result.Entries,
			Repositories: result.Repositories,
			SkippedFiles: result.SkippedFiles,
			Generation:   result.Generation,
		})
	}
}

func rebuildMessage(result *index.RebuildResult) string {
	if !result.CorpusAvailable {
		return "corpus unavailable, 0 repositories indexed"
	}
	return fmt.Sprintf("search index rebuilt with %d entries from %d repositories", result.Entries, result.Repositories)
}

func handleGetRebuild(history RebuildHistory, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := GetRebuildRequest{}
		if err := c.ShouldBindUri(&request); err != nil {
			logger.Warn("could not extract rebuild id", "err", err.Error())
			writeError(c, http.StatusUnprocessableEntity, "failed to extract path parameters")
			return
		}
		if err := validator.Validate(request); err != nil {
			writeError(c, http.StatusNotAcceptable, err.Error())
			return
		}
		if _, err := uuid.Parse(request.ID); err != nil {
			writeError(c, http.StatusNotAcceptable, "invalid rebuild id")
			return
		}

		result, err := history.Get(request.ID)
		if err != nil {
			if errors.Is(err, index.ErrRebuildNotFound) {
				writeError(c, http.StatusNotFound, "rebuild not found")
				return
			}
			logger.Error("could not read rebuild history", "rebuild_id", request.ID, "err", err.Error())
			writeError(c, http.StatusInternalServerError, "failed to read rebuild history")
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func handleStatus(idx IndexReader, history RebuildHistory, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := idx.Snapshot()
		response := StatusResponse{
			Generation: snapshot.Generation(),
			Entries:    snapshot.Len(),
		}
		if builtAt := snapshot.BuiltAt(); !builtAt.IsZero() {
			response.BuiltAt = &builtAt
		}

		latest, err := history.Latest()
		switch {
		case err == nil:
			response.LastRebuild = latest
		case !errors.Is(err, index.ErrRebuildNotFound):
			logger.Warn("could not read latest rebuild", "err", err.Error())
		}

		c.JSON(http.StatusOK, response)
	}
}
