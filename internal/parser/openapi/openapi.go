// Package openapi derives forms from the object schemas declared under
// components.schemas of an OpenAPI 3 document.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// Name is the registry key.
const Name = "openapi"

// Vendor extensions understood on schemas and properties.
const (
	ExtPrimaryKey = "x-formkit-primary-key"
	ExtUnique     = "x-formkit-unique"
	ExtReferences = "x-formkit-references"
	ExtTable      = "x-formkit-table"
	ExtType       = "x-formkit-type"
	ExtDefault    = "x-formkit-default"
	ExtSkip       = "x-formkit-skip"
)

// textAreaThreshold is the maxLength above which strings become TEXTAREA.
const textAreaThreshold = 255

// Parser implements parser.Parser over kin-openapi.
type Parser struct {
	logger *zap.Logger
}

// New constructs the parser. A nil logger discards output.
func New(logger *zap.Logger) *Parser {
	return &Parser{logger: logging.OrNop(logger)}
}

func (p *Parser) Name() string { return Name }

// Extensions is empty: OpenAPI files share .yaml/.json with canonical
// documents, so the parser is only picked by name.
func (p *Parser) Extensions() []string { return nil }

// Parse reads the OpenAPI document at input. Extra["schemas"] restricts the
// converted schemas to a comma separated list of names.
func (p *Parser) Parse(ctx context.Context, input string, opts parser.Options) (*schema.AppSpec, error) {
	raw, err := os.ReadFile(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &schema.NotFoundError{Path: input, Err: err}
		}
		return nil, fmt.Errorf("openapi: read %s: %w", input, err)
	}
	return p.ParseBytes(ctx, input, raw, opts)
}

// ParseBytes converts an in-memory document.
func (p *Parser) ParseBytes(ctx context.Context, input string, raw []byte, opts parser.Options) (*schema.AppSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	loader := &openapi3.Loader{
		Context:               ctx,
		IsExternalRefsAllowed: false,
	}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, &schema.ParseError{Input: input, Cause: fmt.Errorf("load document: %w", err)}
	}
	if doc.Components == nil || len(doc.Components.Schemas) == 0 {
		return nil, schema.NewParseError(input, 0, "document declares no components.schemas")
	}

	order, err := declarationOrder(raw)
	if err != nil {
		return nil, &schema.ParseError{Input: input, Cause: err}
	}

	selected, err := selectSchemas(doc.Components.Schemas, order.schemas, opts.ExtraValue("schemas"))
	if err != nil {
		return nil, &schema.ArgumentError{Input: input, Arg: "schemas", Reason: err.Error()}
	}

	title, version := "", ""
	if doc.Info != nil {
		title, version = doc.Info.Title, doc.Info.Version
	}
	app := &schema.AppSpec{
		Version: opts.VersionOr(version),
		Metadata: schema.Metadata{
			AppID:   firstNonEmpty(opts.AppID, naming.Identifier(title, "app")),
			AppName: firstNonEmpty(opts.AppName, title),
		},
	}
	if app.Metadata.AppID == "" {
		return nil, &schema.ArgumentError{Input: input, Arg: "app_id", Reason: "not set by options or info.title"}
	}

	conv := converter{
		schemas: doc.Components.Schemas,
		order:   order,
		logger:  p.logger.With(zap.String("input", input)),
	}
	for _, name := range selected {
		form, ok := conv.form(name, doc.Components.Schemas[name].Value)
		if !ok {
			continue
		}
		app.Forms = append(app.Forms, form)
	}
	if len(app.Forms) == 1 {
		f := &app.Forms[0]
		f.ID = firstNonEmpty(opts.FormID, f.ID)
		f.Name = firstNonEmpty(opts.FormName, f.Name)
		f.Table = firstNonEmpty(opts.Table, f.Table)
	}
	return parser.Finish(app, input, opts)
}

func selectSchemas(all openapi3.Schemas, order []string, filter string) ([]string, error) {
	names := orderedKeys(all, order)
	if strings.TrimSpace(filter) == "" {
		return names, nil
	}
	var out []string
	for _, name := range strings.Split(filter, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := all[name]; !ok {
			return nil, fmt.Errorf("schema %q not found in components.schemas", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// orderedKeys returns map keys in declaration order, appending any keys the
// order misses alphabetically.
func orderedKeys[V any](m map[string]V, order []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, key := range order {
		if _, ok := m[key]; ok {
			out = append(out, key)
			seen[key] = struct{}{}
		}
	}
	var rest []string
	for key := range m {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
