package apis

type Type string

const (
	TypeREST    Type = "rest"
	TypeGraphQL Type = "graphql"
	TypeGRPC    Type = "grpc"
)

// DetectedFile is one file of a repository classified as an API specification.
type DetectedFile struct {
	Repository  string `json:"repository"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Type        Type   `json:"type"`
	Title       string `json:"title"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

type Detected struct {
	REST    []DetectedFile `json:"rest"`
	GraphQL []DetectedFile `json:"graphql"`
	GRPC    []DetectedFile `json:"grpc"`
}

func (d Detected) HasAny() bool {
	return len(d.REST)+len(d.GraphQL)+len(d.GRPC) > 0
}

// ParsedSpec is the result of reading metadata out of a specification body. It is one of
// OpenAPIInfo, ProtoInfo or Unparsed.
type ParsedSpec interface {
	parsedSpec()
}

type OpenAPIInfo struct {
	// Dialect is "openapi" or "swagger", empty when the document names neither.
	Dialect        string
	DialectVersion string
	Title          string
	Version        string
	Description    string
}

type ProtoInfo struct {
	Package  string
	Services []string
}

type Unparsed struct {
	Reason string
}

func (OpenAPIInfo) parsedSpec() {}
func (ProtoInfo) parsedSpec()   {}
func (Unparsed) parsedSpec()    {}
