package validation

import (
	"fmt"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/goliatone/go-formkit/pkg/schema"
)

const (
	draft202012  = "https://json-schema.org/draft/2020-12/schema"
	documentID   = "https://formkit.goliat.one/schema/app-spec.json"
	identPattern = "^[A-Za-z][A-Za-z0-9_]*$"
	versionRegex = `^v?\d+(\.\d+){0,2}([-+][0-9A-Za-z.-]+)?$`
)

var (
	resolvedOnce sync.Once
	resolved     *jsonschema.Resolved
	resolveErr   error
)

// fieldTypePattern accepts what schema.ParseFieldType accepts: any case,
// surrounding whitespace, and hyphens or spaces for underscores.
func fieldTypePattern() string {
	names := schema.FieldTypeNames()
	alts := make([]string, len(names))
	for i, name := range names {
		alts[i] = strings.ReplaceAll(name, "_", "[_ -]")
	}
	return `^\s*(?i:` + strings.Join(alts, "|") + `)\s*$`
}

// DocumentSchema describes the canonical document as JSON Schema draft
// 2020-12. It covers structure, types and closed enums; cross-field
// invariants are left to Validate.
func DocumentSchema() *jsonschema.Schema {
	zero := 0.0
	one := 1

	str := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", Description: desc}
	}
	scalar := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Types: []string{"string", "number", "boolean"}, Description: desc}
	}
	closed := func(s *jsonschema.Schema) *jsonschema.Schema {
		s.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
		return s
	}

	option := &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			scalar("bare option value"),
			closed(&jsonschema.Schema{
				Type:     "object",
				Required: []string{"value"},
				Properties: map[string]*jsonschema.Schema{
					"value": scalar("stored value"),
					"label": scalar("display label, defaults to value"),
				},
			}),
		},
	}

	reference := closed(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"form", "field"},
		Properties: map[string]*jsonschema.Schema{
			"form":        {Type: "string", Pattern: identPattern},
			"field":       str("referenced key column"),
			"label_field": str("column shown to users, defaults to field"),
		},
	})

	field := closed(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "type"},
		Properties: map[string]*jsonschema.Schema{
			"id":          {Type: "string", Pattern: identPattern},
			"type":        {Type: "string", Pattern: fieldTypePattern(), Description: "one of " + strings.Join(schema.FieldTypeNames(), ", ")},
			"label":       scalar("display label"),
			"placeholder": scalar("placeholder text"),
			"default":     scalar("literal or symbolic default ($uuid, $current_user, $current_timestamp, $current_date)"),
			"size":        {Type: "integer", Minimum: &zero},
			"required":    {Type: "boolean"},
			"unique":      {Type: "boolean"},
			"primary_key": {Type: "boolean"},
			"readonly":    {Type: "boolean"},
			"options":     {Type: "array", Items: option},
			"references":  reference,
		},
	})

	index := closed(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"fields"},
		Properties: map[string]*jsonschema.Schema{
			"fields": {Type: "array", MinItems: &one, Items: &jsonschema.Schema{Type: "string"}},
			"unique": {Type: "boolean"},
		},
	})

	form := closed(&jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "name", "table", "fields"},
		Properties: map[string]*jsonschema.Schema{
			"id":          {Type: "string", Pattern: identPattern},
			"name":        str("form display name"),
			"table":       str("backing table"),
			"description": str("free text"),
			"fields":      {Type: "array", MinItems: &one, Items: field},
			"indexes":     {Type: "array", Items: index},
		},
	})

	return closed(&jsonschema.Schema{
		Schema:      draft202012,
		ID:          documentID,
		Title:       "formkit application",
		Description: "Canonical application description consumed by formkit builders.",
		Type:        "object",
		Required:    []string{"version", "metadata", "forms"},
		Properties: map[string]*jsonschema.Schema{
			"version": {
				AnyOf: []*jsonschema.Schema{
					{Type: "string", Pattern: versionRegex},
					{Type: "number"},
				},
			},
			"metadata": closed(&jsonschema.Schema{
				Type:     "object",
				Required: []string{"app_id"},
				Properties: map[string]*jsonschema.Schema{
					"app_id":   {Type: "string", Pattern: identPattern},
					"app_name": str("display name, defaults to app_id"),
				},
			}),
			"forms": {Type: "array", MinItems: &one, Items: form},
		},
	})
}

// ValidateDocument checks raw data against DocumentSchema. It is a structural
// pre-check; a nil result does not imply Validate succeeds.
func ValidateDocument(data map[string]any) error {
	resolvedOnce.Do(func() {
		resolved, resolveErr = DocumentSchema().Resolve(&jsonschema.ResolveOptions{})
	})
	if resolveErr != nil {
		return fmt.Errorf("validation: resolve document schema: %w", resolveErr)
	}

	// The validator expects JSON values (float64 numbers, []any, map[string]any).
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("validation: encode document: %w", err)
	}
	var instance any
	if err := json.Unmarshal(payload, &instance); err != nil {
		return fmt.Errorf("validation: decode document: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("validation: document schema: %w", err)
	}
	return nil
}

// DocumentSchemaJSON renders DocumentSchema as indented JSON.
func DocumentSchemaJSON() ([]byte, error) {
	out, err := json.MarshalIndent(DocumentSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("validation: encode document schema: %w", err)
	}
	return append(out, '\n'), nil
}
