package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/archcatalog/catalog/config"
	"github.com/archcatalog/catalog/logger"
	"github.com/gin-gonic/gin"
)

type server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       *Dependencies
	logger     logger.Logger

	background     sync.WaitGroup
	stopBackground context.CancelFunc
}

func Run(ctx context.Context, cfg *config.Config, logger logger.Logger) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	s := &server{
		cfg:    cfg,
		logger: logger,
	}
	if err := s.setupDependencies(); err != nil {
		return err
	}
	s.setupRouter()
	serveErr := s.setupHTTPServer()
	s.rebuildOnStart(ctx)

	return s.setupGracefulShutdown(ctx, serveErr)
}

func (s *server) setupDependencies() error {
	deps, err := NewDependencies(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.deps = deps

	if err := deps.Corpus.Check(); err != nil {
		s.logger.Warn("corpus is unavailable, serving an empty catalog until it appears", "root", deps.Corpus.Root(), "err", err.Error())
	}

	return nil
}

func (s *server) setupRouter() {
	router := newRouter()

	router.Use(loggingMiddleware(s.logger))
	router.Use(metricsMiddleware(s.deps.Metrics))

	setupRoutes(router, s.logger, s.deps)

	s.router = router
}

func (s *server) setupHTTPServer() <-chan error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped unexpectedly", "err", err.Error())
			serveErr <- err
		}
		close(serveErr)
	}()

	return serveErr
}

// rebuildOnStart builds the first index in the background. Until it finishes, searches
// answer from the empty generation-zero snapshot.
func (s *server) rebuildOnStart(ctx context.Context) {
	if !s.cfg.GetRebuildOnStart() {
		return
	}

	ctx, s.stopBackground = context.WithCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.deps.Builder.Rebuild(ctx); err != nil {
			s.logger.Warn("initial rebuild did not complete", "err", err.Error())
		}
	}()
}

// waitForBackground cancels background work and blocks until it has returned, so nothing
// touches the dependencies once they are closed.
func (s *server) waitForBackground() {
	if s.stopBackground != nil {
		s.stopBackground()
	}
	s.background.Wait()
}

func (s *server) setupGracefulShutdown(ctx context.Context, serveErr <-chan error) error {
	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}

	s.logger.Info("starting to shut down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error shutting down http server", "err", err.Error())
		runErr = errors.Join(runErr, err)
	}
	s.waitForBackground()
	if err := s.deps.Close(); err != nil {
		s.logger.Error("error releasing dependencies", "err", err.Error())
		runErr = errors.Join(runErr, err)
	}

	if runErr == nil {
		s.logger.Info("shut down http server successfully")
	}
	return runErr
}
