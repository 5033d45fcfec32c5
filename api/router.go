package api

import (
	"net/http"

	"github.com/archcatalog/catalog/api/handlers"
	"github.com/archcatalog/catalog/logger"
	"github.com/gin-gonic/gin"
)

type corpusChecker interface {
	Check() error
}

func setupRoutes(router *gin.Engine, logger logger.Logger, deps *Dependencies) {
	router.GET("/health", health(deps.Corpus, logger))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	handlers.SetupSearch(router, logger, deps.Search, deps.Validator)
	handlers.SetupRebuild(router, logger, deps.Builder, deps.History, deps.Index, deps.Validator)
	handlers.SetupAPIs(router, logger, deps.Classifier, deps.Corpus, deps.Validator)
	handlers.SetupRepositories(router, logger, deps.Corpus, deps.Validator)
}

func health(corpus corpusChecker, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := corpus.Check(); err != nil {
			logger.Warn("health check failed", "err", err.Error())
			c.String(http.StatusServiceUnavailable, "corpus unavailable")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

func newRouter() *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())

	return router
}
