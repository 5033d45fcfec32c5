package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/archcatalog/catalog/db/searchdb"
	"github.com/archcatalog/catalog/logger"
	"github.com/archcatalog/catalog/services/apis"
	"github.com/archcatalog/catalog/services/corpus"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"

	defaultReadmeMaxChars = 1000
	defaultWorkers        = 4
)

var ErrRebuildInProgress = errors.New("rebuild already in progress")

// Corpus is the part of the corpus accessor the builder reads from.
type Corpus interface {
	ListRepositories() ([]string, error)
	ReadFileHead(repository string, relativePath string, limit int64) ([]byte, bool, error)
}

type Classifier interface {
	Report(ctx context.Context, repository string) (apis.Report, error)
}

type RebuildObserver interface {
	ObserveRebuild(status string, duration time.Duration, entries int, skippedFiles int)
}

type TitlesFactory func(titles []string) (searchdb.Dictionary, error)

type BuilderOptions struct {
	ReadmeMaxChars int
	Workers        int
	History        *History
	Observer       RebuildObserver
	Titles         TitlesFactory
}

type RebuildResult struct {
	ID              string        `json:"id"`
	Status          string        `json:"status"`
	Generation      uint64        `json:"generation"`
	Entries         int           `json:"entries"`
	Repositories    int           `json:"repositories"`
	APIs            int           `json:"apis"`
	SkippedFiles    int           `json:"skippedFiles"`
	CorpusAvailable bool          `json:"corpusAvailable"`
	StartedAt       time.Time     `json:"startedAt"`
	FinishedAt      time.Time     `json:"finishedAt"`
	Duration        time.Duration `json:"durationNs"`
	Error           string        `json:"error,omitempty"`
}

// Builder is the only writer of an Index. Rebuilds are serialized; a rebuild requested while
// another one runs fails fast with ErrRebuildInProgress.
type Builder struct {
	mu             sync.Mutex
	corpus         Corpus
	classifier     Classifier
	index          *Index
	history        *History
	observer       RebuildObserver
	titles         TitlesFactory
	readmeMaxChars int
	workers        int
	logger         logger.Logger
}

type repositoryEntries struct {
	entries      []Entry
	apis         int
	skippedFiles int
}

func NewBuilder(logger logger.Logger, corpus Corpus, classifier Classifier, index *Index, opts BuilderOptions) *Builder {
	builder := &Builder{
		corpus:         corpus,
		classifier:     classifier,
		index:          index,
		history:        opts.History,
		observer:       opts.Observer,
		titles:         opts.Titles,
		readmeMaxChars: opts.ReadmeMaxChars,
		workers:        opts.Workers,
		logger:         logger,
	}

	if builder.readmeMaxChars <= 0 {
		builder.readmeMaxChars = defaultReadmeMaxChars
	}
	if builder.workers <= 0 {
		builder.workers = defaultWorkers
	}
	if builder.titles == nil {
		builder.titles = func(titles []string) (searchdb.Dictionary, error) {
			return searchdb.NewTitleDict(logger, titles)
		}
	}

	return builder
}

// Rebuild reads the whole corpus into a new snapshot and publishes it with a single swap. An
// unavailable corpus publishes an empty snapshot. A cancelled context publishes nothing and
// leaves the previous snapshot in place.
func (b *Builder) Rebuild(ctx context.Context) (*RebuildResult, error) {
	if !b.mu.TryLock() {
		b.logger.Warn("request to rebuild while a rebuild is already in progress")
		return nil, ErrRebuildInProgress
	}
	defer b.mu.Unlock()

	result := &RebuildResult{
		ID:              uuid.NewString(),
		StartedAt:       time.Now().UTC(),
		CorpusAvailable: true,
	}
	b.logger.Info("rebuilding search index", "rebuild_id", result.ID)

	entries, err := b.collect(ctx, result)
	if err != nil {
		b.finish(result, err)
		return nil, err
	}

	titles := make([]string, 0, len(entries))
	for i := range entries {
		titles = append(titles, entries[i].Title)
	}
	dict, err := b.titles(titles)
	if err != nil {
		b.logger.Warn("could not build title dictionary, suggestions fall back to a scan", "rebuild_id", result.ID, "err", err.Error())
		dict = nil
	}

	// a cancellation that arrived while the dictionary was built still wins
	if err := ctx.Err(); err != nil {
		if dict != nil {
			dict.Close()
		}
		b.finish(result, err)
		return nil, err
	}

	result.Generation = b.index.Generation() + 1
	result.Entries = len(entries)

	previous := b.index.publish(newSnapshot(result.Generation, time.Now().UTC(), entries, dict))
	if previous != nil && previous.titles != nil {
		if err := previous.titles.Close(); err != nil {
			b.logger.Warn("could not release previous title dictionary", "generation", previous.generation, "err", err.Error())
		}
	}

	b.finish(result, nil)
	b.logger.Info("search index rebuilt", "rebuild_id", result.ID, "generation", result.Generation,
		"entries", result.Entries, "repositories", result.Repositories, "apis", result.APIs,
		"skipped_files", result.SkippedFiles, "corpus_available", result.CorpusAvailable)

	return result, nil
}

func (b *Builder) collect(ctx context.Context, result *RebuildResult) ([]Entry, error) {
	repositories, err := b.corpus.ListRepositories()
	if err != nil {
		b.logger.Warn("corpus unavailable, publishing an empty index", "rebuild_id", result.ID, "err", err.Error())
		result.CorpusAvailable = false
		repositories = nil
	}
	result.Repositories = len(repositories)

	perRepository := make([]repositoryEntries, len(repositories))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.workers)
	for i, repository := range repositories {
		group.Go(func() error {
			collected, err := b.collectRepository(groupCtx, repository)
			if err != nil {
				return err
			}
			perRepository[i] = collected
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(repositories)*2)
	seen := make(map[string]struct{}, len(repositories)*2)
	for _, collected := range perRepository {
		result.APIs += collected.apis
		result.SkippedFiles += collected.skippedFiles

		for _, entry := range collected.entries {
			if _, duplicate := seen[entry.ID]; duplicate {
				b.logger.Warn("dropping duplicate index entry", "rebuild_id", result.ID, "id", entry.ID)
				continue
			}
			seen[entry.ID] = struct{}{}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (b *Builder) collectRepository(ctx context.Context, repository string) (repositoryEntries, error) {
	if err := ctx.Err(); err != nil {
		return repositoryEntries{}, err
	}

	collected := repositoryEntries{entries: []Entry{newRepositoryEntry(repository)}}

	readme, err := b.readReadme(repository)
	switch {
	case err == nil:
		collected.entries = append(collected.entries, newReadmeEntry(repository, readme))
	case errors.Is(err, corpus.ErrNotFound):
	default:
		b.logger.Warn("could not read README", "repository", repository, "err", err.Error())
		collected.skippedFiles++
	}

	report, err := b.classifier.Report(ctx, repository)
	if err != nil {
		return repositoryEntries{}, err
	}
	collected.skippedFiles += report.SkippedFiles
	collected.apis = len(report.Files)
	for _, file := range report.Files {
		collected.entries = append(collected.entries, newAPIEntry(file))
	}

	return collected, nil
}

// readReadme returns at most readmeMaxChars runes of the root README.
func (b *Builder) readReadme(repository string) (string, error) {
	data, _, err := b.corpus.ReadFileHead(repository, readmePath, int64(b.readmeMaxChars*utf8.UTFMax))
	if err != nil {
		return "", err
	}
	return truncateRunes(strings.ToValidUTF8(string(data), ""), b.readmeMaxChars), nil
}

func truncateRunes(text string, maxRunes int) string {
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}

	count := 0
	for i := range text {
		if count == maxRunes {
			return text[:i]
		}
		count++
	}
	return text
}

func (b *Builder) finish(result *RebuildResult, err error) {
	result.FinishedAt = time.Now().UTC()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	switch {
	case err == nil:
		result.Status = StatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		result.Status = StatusCancelled
		result.Error = err.Error()
		b.logger.Warn("rebuild cancelled, keeping the previous index", "rebuild_id", result.ID, "err", err.Error())
	default:
		result.Status = StatusFailed
		result.Error = err.Error()
		b.logger.Error("rebuild failed", "rebuild_id", result.ID, "err", err.Error())
	}

	if b.observer != nil {
		b.observer.ObserveRebuild(result.Status, result.Duration, result.Entries, result.SkippedFiles)
	}

	if b.history != nil {
		if err := b.history.Save(result); err != nil {
			b.logger.Warn("could not record rebuild", "rebuild_id", result.ID, "err", err.Error())
		}
	}
}
