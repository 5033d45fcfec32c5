package index

import (
	"strings"

	"github.com/archcatalog/catalog/services/apis"
)

type Kind string

const (
	KindRepository Kind = "repository"
	KindDocument   Kind = "document"
	KindAPI        Kind = "api"
)

const (
	MetadataAPIType = "apiType"
	MetadataVersion = "version"
)

const readmePath = "README.md"

// Entry is one searchable unit. Entries are immutable once published in a Snapshot.
type Entry struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Repository string            `json:"repository"`
	Title      string            `json:"title"`
	Content    string            `json:"content"`
	Path       string            `json:"path"`
	Metadata   map[string]string `json:"metadata"`

	titleLower   string
	contentLower string
}

func RepositoryID(repository string) string {
	return "repo:" + repository
}

func DocumentID(repository string, relPath string) string {
	return "file:" + repository + "/" + relPath
}

func APIID(repository string, relPath string) string {
	return "api:" + repository + "/" + relPath
}

func newEntry(id string, kind Kind, repository string, title string, content string, relPath string, metadata map[string]string) Entry {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Entry{
		ID:           id,
		Kind:         kind,
		Repository:   repository,
		Title:        title,
		Content:      content,
		Path:         relPath,
		Metadata:     metadata,
		titleLower:   strings.ToLower(title),
		contentLower: strings.ToLower(content),
	}
}

func newRepositoryEntry(repository string) Entry {
	return newEntry(RepositoryID(repository), KindRepository, repository, repository, repository, "", nil)
}

func newReadmeEntry(repository string, content string) Entry {
	return newEntry(DocumentID(repository, readmePath), KindDocument, repository, readmePath, content, readmePath, nil)
}

func newAPIEntry(file apis.DetectedFile) Entry {
	metadata := map[string]string{MetadataAPIType: string(file.Type)}
	if file.Version != "" {
		metadata[MetadataVersion] = file.Version
	}
	return newEntry(APIID(file.Repository, file.Path), KindAPI, file.Repository, file.Title, "", file.Path, metadata)
}

// TitleContains expects an already lowercased query.
func (e *Entry) TitleContains(lowerQuery string) bool {
	return strings.Contains(e.titleLower, lowerQuery)
}

// ContentContains expects an already lowercased query.
func (e *Entry) ContentContains(lowerQuery string) bool {
	return strings.Contains(e.contentLower, lowerQuery)
}
