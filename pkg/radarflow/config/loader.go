package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Format is a supported document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", rferrors.InvalidArgument("load settings", "path",
			fmt.Sprintf("unsupported config file extension %q", ext))
	}
}

// FromFile loads a document, choosing the format by extension
// (.yaml, .yml or .json).
func FromFile(path string) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data, format)
}

// Parse decodes data as format. An empty document yields an empty Config.
func Parse(data []byte, format Format) (Config, error) {
	var (
		m   map[string]any
		err error
	)
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	case FormatJSON:
		if len(strings.TrimSpace(string(data))) > 0 {
			err = json.Unmarshal(data, &m)
		}
	default:
		return Config{}, rferrors.InvalidArgument("parse config", "format",
			fmt.Sprintf("unknown format %q", format))
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(m), nil
}

// FromYAML parses a YAML document.
func FromYAML(data []byte) (Config, error) { return Parse(data, FormatYAML) }

// FromJSON parses a JSON document.
func FromJSON(data []byte) (Config, error) { return Parse(data, FormatJSON) }
