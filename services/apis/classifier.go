package apis

import (
	"context"
	"iter"
	"path"
	"strings"

	"github.com/archcatalog/catalog/logger"
)

const sizeLimitReason = "specification exceeds the size limit"

// FileReader is the read-only view of the corpus the classifier needs.
type FileReader interface {
	Walk(repository string) iter.Seq[string]
	ReadFileHead(repository string, relativePath string, limit int64) ([]byte, bool, error)
}

type Classifier struct {
	reader       FileReader
	maxSpecBytes int64
	logger       logger.Logger
}

// Report is the outcome of classifying one repository. SkippedFiles counts API files whose body
// could not be read or parsed; they are still classified, with a title derived from the filename.
type Report struct {
	Files        []DetectedFile
	SkippedFiles int
}

func New(logger logger.Logger, reader FileReader, maxSpecBytes int64) *Classifier {
	return &Classifier{reader: reader, maxSpecBytes: maxSpecBytes, logger: logger}
}

// Classify returns the API specification files of a repository in walk order.
func (c *Classifier) Classify(repository string) []DetectedFile {
	report, _ := c.Report(context.Background(), repository)
	return report.Files
}

func (c *Classifier) Detect(repository string) Detected {
	detected := Detected{REST: []DetectedFile{}, GraphQL: []DetectedFile{}, GRPC: []DetectedFile{}}
	for _, file := range c.Classify(repository) {
		switch file.Type {
		case TypeREST:
			detected.REST = append(detected.REST, file)
		case TypeGraphQL:
			detected.GraphQL = append(detected.GraphQL, file)
		case TypeGRPC:
			detected.GRPC = append(detected.GRPC, file)
		}
	}
	return detected
}

// Report classifies a repository and stops early, returning the context error, when ctx is done.
func (c *Classifier) Report(ctx context.Context, repository string) (Report, error) {
	report := Report{Files: []DetectedFile{}}

	for relPath := range c.reader.Walk(repository) {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		file, matched, skipped := c.classifyFile(repository, relPath)
		if skipped {
			report.SkippedFiles++
		}
		if matched {
			c.logger.Debug("detected api specification", "repository", repository, "path", relPath, "type", string(file.Type))
			report.Files = append(report.Files, file)
		}
	}

	return report, nil
}

// classifyFile applies REST, then GraphQL, then gRPC rules. The first rule whose extension matches
// decides the outcome.
func (c *Classifier) classifyFile(repository string, relPath string) (DetectedFile, bool, bool) {
	switch {
	case hasOpenAPIExtension(relPath):
		return c.classifyREST(repository, relPath)
	case isGraphQLFile(relPath):
		return newDetectedFile(repository, relPath, TypeGraphQL), true, false
	case isProtoFile(relPath):
		return c.classifyGRPC(repository, relPath)
	}
	return DetectedFile{}, false, false
}

func (c *Classifier) classifyREST(repository string, relPath string) (DetectedFile, bool, bool) {
	nameHint := nameSuggestsOpenAPI(relPath)
	if !nameHint && extension(relPath) != ".json" {
		return DetectedFile{}, false, false
	}

	data, truncated, err := c.reader.ReadFileHead(repository, relPath, c.maxSpecBytes)
	if err != nil {
		c.logger.Warn("could not read api specification", "repository", repository, "path", relPath, "err", err.Error())
		if !nameHint {
			return DetectedFile{}, false, true
		}
		return newDetectedFile(repository, relPath, TypeREST), true, true
	}

	if !nameHint && (truncated || !hasOpenAPIRootKey(data)) {
		return DetectedFile{}, false, false
	}

	var parsed ParsedSpec = Unparsed{Reason: sizeLimitReason}
	if !truncated {
		parsed = ParseOpenAPI(relPath, data)
	}

	file := newDetectedFile(repository, relPath, TypeREST)
	info, ok := parsed.(OpenAPIInfo)
	if !ok {
		c.logUnparsed(repository, relPath, parsed)
		return file, true, true
	}

	if info.Title != "" {
		file.Title = info.Title
	}
	file.Version = info.Version
	file.Description = info.Description
	return file, true, false
}

func (c *Classifier) classifyGRPC(repository string, relPath string) (DetectedFile, bool, bool) {
	file := newDetectedFile(repository, relPath, TypeGRPC)

	data, truncated, err := c.reader.ReadFileHead(repository, relPath, c.maxSpecBytes)
	if err != nil {
		c.logger.Warn("could not read proto file", "repository", repository, "path", relPath, "err", err.Error())
		return file, true, true
	}

	var parsed ParsedSpec = Unparsed{Reason: sizeLimitReason}
	if !truncated {
		parsed = ParseProto(relPath, data)
	}

	info, ok := parsed.(ProtoInfo)
	if !ok {
		c.logUnparsed(repository, relPath, parsed)
		return file, true, true
	}

	switch {
	case len(info.Services) > 0:
		file.Title = info.Services[0]
		file.Description = "gRPC services: " + strings.Join(info.Services, ", ")
	case info.Package != "":
		file.Title = info.Package
	}
	file.Version = protoPackageVersion(info.Package)
	return file, true, false
}

func (c *Classifier) logUnparsed(repository string, relPath string, parsed ParsedSpec) {
	reason := ""
	if unparsed, ok := parsed.(Unparsed); ok {
		reason = unparsed.Reason
	}
	c.logger.Debug("falling back to filename title", "repository", repository, "path", relPath, "reason", reason)
}

func newDetectedFile(repository string, relPath string, apiType Type) DetectedFile {
	return DetectedFile{
		Repository: repository,
		Path:       relPath,
		Name:       path.Base(relPath),
		Type:       apiType,
		Title:      TitleFromFilename(relPath),
	}
}
