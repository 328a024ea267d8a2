package hydrate

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a format from the file extension. Unknown extensions
// are treated as YAML, which also accepts JSON documents.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Parse decodes data into a generic payload map.
func Parse(data []byte, format Format) (map[string]any, error) {
	var payload map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if payload == nil {
		return nil, fmt.Errorf("document is empty")
	}
	return payload, nil
}
