package api

import (
	"errors"

	"github.com/archcatalog/catalog/config"
	"github.com/archcatalog/catalog/db/kvdb"
	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/metrics"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/archcatalog/catalog/services/index"
	"github.com/archcatalog/catalog/services/search"
	"github.com/archcatalog/catalog/validation"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies is the fully wired catalog: the corpus, the classifier, the index with its
// builder and history, and the search engine on top of it.
type Dependencies struct {
	KVDB       kvdb.DB
	Corpus     *corpus.Accessor
	Classifier *apis.Classifier
	Index      *index.Index
	History    *index.History
	Builder    *index.Builder
	Search     *search.Service
	Metrics    *metrics.Metrics
	Validator  *validation.Validator
}

func NewDependencies(cfg *config.Config, logger logger.Logger) (*Dependencies, error) {
	d := &Dependencies{}

	var err error
	d.KVDB, err = kvdb.New(logger, cfg)
	if err != nil {
		logger.Error("error creating kvDB", "err", err.Error())
		return nil, err
	}

	d.Validator, err = validation.New(logger)
	if err != nil {
		logger.Error("error creating validator", "err", err.Error())
		d.KVDB.Close()
		return nil, err
	}

	d.Metrics = metrics.NewWithRuntimeCollectors(prometheus.NewRegistry())
	d.Corpus = corpus.New(logger, cfg.GetCorpusRoot(), cfg.GetCorpusExcludes())
	d.Classifier = apis.New(logger, d.Corpus, cfg.GetMaxSpecBytes())
	d.Index = index.New()
	d.History = index.NewHistory(logger, d.KVDB)
	d.Builder = index.NewBuilder(logger, d.Corpus, d.Classifier, d.Index, index.BuilderOptions{
		ReadmeMaxChars: cfg.GetReadmeMaxChars(),
		Workers:        cfg.GetIndexWorkers(),
		History:        d.History,
		Observer:       d.Metrics,
	})
	d.Search = search.New(logger, d.Index, search.Options{
		DefaultLimit: cfg.GetDefaultLimit(),
		CacheSize:    cfg.GetCacheSize(),
		CacheTTL:     cfg.GetCacheTTL(),
		Observer:     d.Metrics,
	})

	return d, nil
}

// Close releases the key-value store and the suggestion dictionary of the live snapshot.
func (d *Dependencies) Close() error {
	var errs []error
	if titles := d.Index.Snapshot().Titles(); titles != nil {
		errs = append(errs, titles.Close())
	}
	errs = append(errs, d.KVDB.Close())
	return errors.Join(errs...)
}
