package apis

import (
	"encoding/json"
	"path"
	"strings"
)

func extension(filePath string) string {
	return strings.ToLower(path.Ext(filePath))
}

func hasOpenAPIExtension(filePath string) bool {
	switch extension(filePath) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func nameSuggestsOpenAPI(filePath string) bool {
	name := strings.ToLower(path.Base(filePath))
	return strings.Contains(name, "openapi") || strings.Contains(name, "swagger")
}

// hasOpenAPIRootKey reports whether data is a JSON object with a top-level openapi or swagger key.
// Package manifests and other plain JSON fail this check.
func hasOpenAPIRootKey(data []byte) bool {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return false
	}
	_, isOpenAPI := root["openapi"]
	_, isSwagger := root["swagger"]
	return isOpenAPI || isSwagger
}

func isGraphQLFile(filePath string) bool {
	switch extension(filePath) {
	case ".graphql", ".gql":
		return true
	}
	return false
}

func isProtoFile(filePath string) bool {
	return extension(filePath) == ".proto"
}
