package apis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/bufbuild/protocompile/parser"
	"github.com/bufbuild/protocompile/reporter"
	"gopkg.in/yaml.v3"
)

var protoVersionSegment = regexp.MustCompile(`^v\d+([a-z]+\d*)?$`)

// specString accepts any scalar, so that "version: 1.0" or "version": 2 still produce text.
// Non-scalar values are ignored.
type specString string

type openAPIDocument struct {
	OpenAPI *specString       `json:"openapi" yaml:"openapi"`
	Swagger *specString       `json:"swagger" yaml:"swagger"`
	Info    *openAPIInfoBlock `json:"info" yaml:"info"`
}

type openAPIInfoBlock struct {
	Title       specString `json:"title" yaml:"title"`
	Version     specString `json:"version" yaml:"version"`
	Description specString `json:"description" yaml:"description"`
}

func (s *specString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*s = specString(node.Value)
	}
	return nil
}

func (s *specString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return nil
	case trimmed[0] == '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*s = specString(value)
	case trimmed[0] == '{', trimmed[0] == '[':
		return nil
	default:
		*s = specString(trimmed)
	}
	return nil
}

// ParseOpenAPI extracts the info block of an OpenAPI or Swagger document. JSON files are decoded as
// JSON, everything else as YAML. It returns Unparsed for malformed bodies or documents that carry
// neither an info block nor an openapi/swagger key.
func ParseOpenAPI(filePath string, data []byte) (parsed ParsedSpec) {
	defer func() {
		if r := recover(); r != nil {
			parsed = Unparsed{Reason: fmt.Sprintf("openapi decoder panicked: %v", r)}
		}
	}()

	if len(bytes.TrimSpace(data)) == 0 {
		return Unparsed{Reason: "empty document"}
	}

	var document openAPIDocument
	var err error
	if extension(filePath) == ".json" {
		err = json.Unmarshal(data, &document)
	} else {
		err = yaml.Unmarshal(data, &document)
	}
	if err != nil {
		return Unparsed{Reason: err.Error()}
	}

	info := OpenAPIInfo{}
	switch {
	case document.OpenAPI != nil:
		info.Dialect, info.DialectVersion = "openapi", strings.TrimSpace(string(*document.OpenAPI))
	case document.Swagger != nil:
		info.Dialect, info.DialectVersion = "swagger", strings.TrimSpace(string(*document.Swagger))
	}

	if document.Info == nil {
		if info.Dialect == "" {
			return Unparsed{Reason: "document has no openapi metadata"}
		}
		return info
	}

	info.Title = strings.TrimSpace(string(document.Info.Title))
	info.Version = strings.TrimSpace(string(document.Info.Version))
	info.Description = strings.TrimSpace(string(document.Info.Description))
	return info
}

// ParseProto reads the package and service names of a .proto file. Imports are not resolved.
func ParseProto(filePath string, data []byte) (parsed ParsedSpec) {
	defer func() {
		if r := recover(); r != nil {
			parsed = Unparsed{Reason: fmt.Sprintf("proto parser panicked: %v", r)}
		}
	}()

	handler := reporter.NewHandler(nil)
	fileNode, err := parser.Parse(filePath, bytes.NewReader(data), handler)
	if err != nil {
		return Unparsed{Reason: err.Error()}
	}

	result, err := parser.ResultFromAST(fileNode, false, handler)
	if err != nil {
		return Unparsed{Reason: err.Error()}
	}

	descriptor := result.FileDescriptorProto()
	info := ProtoInfo{Package: descriptor.GetPackage()}
	for _, service := range descriptor.GetService() {
		info.Services = append(info.Services, service.GetName())
	}
	return info
}

// protoPackageVersion returns the last version-looking segment of a package, e.g. "v1" for
// "acme.billing.v1".
func protoPackageVersion(protoPackage string) string {
	segments := strings.Split(protoPackage, ".")
	for i := len(segments) - 1; i >= 0; i-- {
		if protoVersionSegment.MatchString(segments[i]) {
			return segments[i]
		}
	}
	return ""
}

// TitleFromFilename turns "user-service_api.v2.json" into "User Service Api V2".
func TitleFromFilename(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	name := strings.TrimSuffix(base, path.Ext(base))

	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return base
	}

	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
