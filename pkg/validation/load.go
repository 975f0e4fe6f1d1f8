package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formkit/internal/loader"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Loader fetches raw canonical documents.
type Loader interface {
	Load(ctx context.Context, src schema.Source) (schema.Document, error)
}

var defaultLoader Loader = loader.New(loader.Options{AllowHTTP: true})

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

// LoadRaw reads src with the default loader and decodes it into generic data.
// A missing input yields *schema.NotFoundError; malformed content or a root
// that is not a mapping yields *schema.ParseError.
func LoadRaw(ctx context.Context, src schema.Source) (map[string]any, error) {
	return LoadRawWith(ctx, defaultLoader, src)
}

// LoadRawFile is LoadRaw for a file path.
func LoadRawFile(ctx context.Context, path string) (map[string]any, error) {
	return LoadRaw(ctx, schema.SourceFromFile(path))
}

// LoadRawWith is LoadRaw with an explicit loader.
func LoadRawWith(ctx context.Context, l Loader, src schema.Source) (map[string]any, error) {
	if l == nil {
		return nil, errors.New("validation: loader is nil")
	}
	doc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return DecodeDocument(doc)
}

// DecodeDocument turns a loaded document into generic data.
func DecodeDocument(doc schema.Document) (map[string]any, error) {
	raw := doc.Raw()
	var (
		out any
		err error
	)
	if doc.Format() == schema.FormatJSON {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		err = dec.Decode(&out)
		if err == nil {
			out = normalizeNumbers(out)
		}
	} else {
		err = yaml.Unmarshal(raw, &out)
	}
	if err != nil {
		return nil, &schema.ParseError{Input: doc.Location(), Line: lineOf(err), Cause: err}
	}

	root, ok := out.(map[string]any)
	if !ok {
		return nil, &schema.ParseError{
			Input: doc.Location(),
			Cause: fmt.Errorf("document root must be a mapping, got %s", typeName(out)),
		}
	}
	return root, nil
}

func lineOf(err error) int {
	var yerr *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &yerr) && len(yerr.Errors) > 0 {
		msg = yerr.Errors[0]
	}
	if m := yamlLinePattern.FindStringSubmatch(msg); m != nil {
		line, _ := strconv.Atoi(m[1])
		return line
	}
	return 0
}

// normalizeNumbers converts json.Number values into int64 when integral and
// float64 otherwise, so JSON and YAML inputs decode alike.
func normalizeNumbers(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		for k, item := range typed {
			typed[k] = normalizeNumbers(item)
		}
		return typed
	case []any:
		for i, item := range typed {
			typed[i] = normalizeNumbers(item)
		}
		return typed
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i
		}
		if f, err := typed.Float64(); err == nil {
			return f
		}
		return typed.String()
	default:
		return v
	}
}
