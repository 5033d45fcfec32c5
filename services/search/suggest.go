package search

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/archcatalog/catalog/db/searchdb"
	"github.com/archcatalog/catalog/services/index"
)

const (
	maxSuggestions      = 5
	minSuggestionPrefix = 2
	suggestAttempts     = 3
)

// Suggest returns up to five distinct titles whose lowercase form starts with the lowercase
// prefix, in lexical order of that lowercase form.
func (s *Service) Suggest(prefix string) []string {
	if utf8.RuneCountInString(prefix) < minSuggestionPrefix {
		return []string{}
	}

	var snapshot *index.Snapshot
	for range suggestAttempts {
		snapshot = s.index.Snapshot()
		titles := snapshot.Titles()
		if titles == nil {
			break
		}

		suggestions, err := titles.Prefix(prefix, maxSuggestions)
		if err == nil {
			return suggestions
		}
		// a rebuild retired this generation, retry on the new one
		if errors.Is(err, searchdb.ErrClosed) {
			continue
		}

		s.logger.Warn("title dictionary lookup failed, scanning entries", "generation", snapshot.Generation(), "err", err.Error())
		break
	}

	return scanSuggestions(snapshot, prefix)
}

func scanSuggestions(snapshot *index.Snapshot, prefix string) []string {
	lowerPrefix := strings.ToLower(prefix)
	titles := map[string][]string{}

	entries := snapshot.Entries()
	for i := range entries {
		title := entries[i].Title
		lowerTitle := strings.ToLower(strings.TrimSpace(title))
		if lowerTitle == "" || !strings.HasPrefix(lowerTitle, lowerPrefix) {
			continue
		}
		if !slices.Contains(titles[lowerTitle], title) {
			titles[lowerTitle] = append(titles[lowerTitle], title)
		}
	}

	lowerTitles := make([]string, 0, len(titles))
	for lowerTitle := range titles {
		lowerTitles = append(lowerTitles, lowerTitle)
	}
	slices.Sort(lowerTitles)

	suggestions := []string{}
	for _, lowerTitle := range lowerTitles {
		for _, title := range titles[lowerTitle] {
			if len(suggestions) == maxSuggestions {
				return suggestions
			}
			suggestions = append(suggestions, title)
		}
	}
	return suggestions
}
