package index

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/archcatalog/catalog/db/kvdb"
	"github.com/archcatalog/catalog/logger"
)

const latestRebuildKey = "__latest_rebuild__"

var ErrRebuildNotFound = errors.New("rebuild not found")

// History keeps a record of every rebuild, keyed by rebuild id.
type History struct {
	store  MetadataStore
	logger logger.Logger
}

func NewHistory(logger logger.Logger, store MetadataStore) *History {
	return &History{store: store, logger: logger}
}

func (h *History) Save(result *RebuildResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("failed to marshal rebuild result", "rebuild_id", result.ID, "err", err.Error())
		return fmt.Errorf("failed to marshal rebuild result %s: %w", result.ID, err)
	}

	if err := h.store.Set(kvdb.RebuildsBucket, result.ID, data); err != nil {
		h.logger.Error("failed to save rebuild result", "rebuild_id", result.ID, "err", err.Error())
		return err
	}

	if err := h.store.Set(kvdb.RebuildsBucket, latestRebuildKey, []byte(result.ID)); err != nil {
		h.logger.Error("failed to save latest rebuild id", "rebuild_id", result.ID, "err", err.Error())
		return err
	}

	return nil
}

func (h *History) Get(id string) (*RebuildResult, error) {
	if id == latestRebuildKey {
		return nil, fmt.Errorf("%w: %s", ErrRebuildNotFound, id)
	}

	data, err := h.store.Get(kvdb.RebuildsBucket, id)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) || errors.Is(err, kvdb.ErrInvalidKey) {
			return nil, fmt.Errorf("%w: %s", ErrRebuildNotFound, id)
		}
		return nil, err
	}

	var result RebuildResult
	if err := json.Unmarshal(data, &result); err != nil {
		h.logger.Error("failed to unmarshal rebuild result", "rebuild_id", id, "err", err.Error())
		return nil, fmt.Errorf("failed to unmarshal rebuild result %s: %w", id, err)
	}

	return &result, nil
}

// Latest returns the most recently saved rebuild, or ErrRebuildNotFound before the first one.
func (h *History) Latest() (*RebuildResult, error) {
	id, err := h.store.Get(kvdb.RebuildsBucket, latestRebuildKey)
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return nil, ErrRebuildNotFound
		}
		return nil, err
	}

	return h.Get(string(id))
}

// Count returns the number of stored rebuild records.
func (h *History) Count() (int, error) {
	keys, err := h.store.Keys(kvdb.RebuildsBucket)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		if key != latestRebuildKey {
			count++
		}
	}
	return count, nil
}
