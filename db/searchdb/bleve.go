package searchdb

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/archcatalog/catalog/logger"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

const indexingBatchSize = 100

const indexFieldTitle = "title"

type titleDocument struct {
	Title string `json:"title"`
}

// TitleDict is an in-memory bleve index holding one keyword term per lowercase title form.
// Prefix walks the term dictionary, so results come back in lexical order of the lowercase form;
// titles differing only in case share a term and keep the order they were added in.
type TitleDict struct {
	mu     sync.RWMutex
	closed bool
	index  bleve.Index
	titles map[string][]string
	size   int
	logger logger.Logger
}

func NewTitleDict(logger logger.Logger, titles []string) (*TitleDict, error) {
	index, err := bleve.NewMemOnly(createTitleMapping())
	if err != nil {
		logger.Error("could not create title index", "err", err.Error())
		return nil, fmt.Errorf("could not create title index: %w", err)
	}

	dict := &TitleDict{index: index, titles: make(map[string][]string, len(titles)), logger: logger}

	batch := index.NewBatch()
	for _, title := range titles {
		term := strings.ToLower(strings.TrimSpace(title))
		if term == "" {
			continue
		}
		originals, exists := dict.titles[term]
		if slices.Contains(originals, title) {
			continue
		}
		dict.titles[term] = append(originals, title)
		dict.size++
		if exists {
			continue
		}

		if err := batch.Index(term, titleDocument{Title: term}); err != nil {
			logger.Error("could not index title", "title", title, "err", err.Error())
			index.Close()
			return nil, err
		}

		if batch.Size() >= indexingBatchSize {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, err
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			logger.Error("could not index titles", "err", err.Error())
			index.Close()
			return nil, err
		}
	}

	return dict, nil
}

func createTitleMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Title field - not analyzed, one term per title
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = keyword.Name
	titleFieldMapping.Store = false
	titleFieldMapping.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(indexFieldTitle, titleFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Prefix returns up to limit original titles whose lowercase form starts with the lowercase prefix.
func (d *TitleDict) Prefix(prefix string, limit int) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}

	matches := []string{}
	if limit <= 0 {
		return matches, nil
	}

	fieldDict, err := d.index.FieldDictPrefix(indexFieldTitle, []byte(strings.ToLower(prefix)))
	if err != nil {
		d.logger.Error("could not read title dictionary", "err", err.Error())
		return nil, fmt.Errorf("could not read title dictionary: %w", err)
	}
	defer fieldDict.Close()

	for len(matches) < limit {
		entry, err := fieldDict.Next()
		if err != nil {
			return nil, fmt.Errorf("could not iterate title dictionary: %w", err)
		}
		if entry == nil {
			break
		}

		originals := d.titles[entry.Term]
		matches = append(matches, originals[:min(len(originals), limit-len(matches))]...)
	}

	return matches, nil
}

// Size is the number of distinct titles.
func (d *TitleDict) Size() int {
	return d.size
}

// Close waits for in-flight lookups and releases the index. Later lookups return ErrClosed.
func (d *TitleDict) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.index.Close(); err != nil {
		d.logger.Error("could not close title index", "err", err.Error())
		return err
	}
	return nil
}
