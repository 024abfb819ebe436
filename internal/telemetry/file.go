package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// Format is a report encoding.
type Format string

// Report encodings.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (valid: json, yaml)", s)
	}
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode renders the report. YAML output uses the JSON field names.
func Encode(r *Report, f Format) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if f == FormatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to convert report to YAML: %w", err)
		}
		return data, nil
	}
	return append(data, '\n'), nil
}

// FileSink writes the report to a local file. An empty Format is derived
// from the file extension.
type FileSink struct {
	Path   string
	Format Format
}

// Name implements Sink.
func (s FileSink) Name() string { return "file " + s.Path }

// Write implements Sink.
func (s FileSink) Write(_ context.Context, r *Report) error {
	format := s.Format
	if format == "" {
		format = FormatForPath(s.Path)
	}
	data, err := Encode(r, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
