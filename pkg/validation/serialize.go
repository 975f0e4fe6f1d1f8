package validation

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Marshal encodes spec in the given format. Field types and symbolic defaults
// are written as their string tags and JSON object keys are sorted.
func Marshal(spec *schema.AppSpec, format schema.Format) ([]byte, error) {
	if spec == nil {
		return nil, &schema.ArgumentError{Arg: "spec", Reason: "is nil"}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return nil, fmt.Errorf("validation: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("validation: encode yaml: %w", err)
	}

	switch format {
	case schema.FormatYAML:
		return buf.Bytes(), nil
	case schema.FormatJSON:
		// Round-trip through YAML so omitempty and text marshaling follow the
		// same rules in both formats.
		var generic any
		if err := yaml.Unmarshal(buf.Bytes(), &generic); err != nil {
			return nil, fmt.Errorf("validation: re-read yaml: %w", err)
		}
		out, err := json.MarshalIndent(generic, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("validation: encode json: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, &schema.ArgumentError{Arg: "format", Reason: fmt.Sprintf("unsupported format %q", format)}
	}
}

// Serialize writes spec to path, picking YAML for .yaml/.yml and JSON for
// .json. Parent directories are created as needed.
func Serialize(spec *schema.AppSpec, path string) error {
	format, ok := schema.FormatFromPath(path)
	if !ok {
		return &schema.ArgumentError{Input: path, Arg: "path", Reason: "extension must be .yaml, .yml or .json"}
	}
	data, err := Marshal(spec, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("validation: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("validation: write %s: %w", path, err)
	}
	return nil
}
