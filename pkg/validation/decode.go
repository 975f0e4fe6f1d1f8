package validation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formkit/pkg/schema"
)

var (
	appKeys       = []string{"version", "metadata", "forms"}
	metadataKeys  = []string{"app_id", "app_name"}
	formKeys      = []string{"id", "name", "table", "description", "fields", "indexes"}
	fieldKeys     = []string{"id", "type", "label", "placeholder", "default", "size", "required", "unique", "primary_key", "readonly", "options", "references"}
	optionKeys    = []string{"value", "label"}
	referenceKeys = []string{"form", "field", "label_field"}
	indexKeys     = []string{"fields", "unique"}
)

// decoder walks generic data into an AppSpec, recording every mismatch with
// the path it was found at.
type decoder struct {
	issues schema.Issues
}

func (d *decoder) add(path, rule, format string, args ...any) {
	d.issues = append(d.issues, schema.Issue{Path: path, Rule: rule, Message: fmt.Sprintf(format, args...)})
}

func join(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func index(base string, i int) string {
	return fmt.Sprintf("%s[%d]", base, i)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int64, uint64, float64:
		return "number"
	case time.Time:
		return "timestamp"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func (d *decoder) object(path string, v any, allowed []string) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		d.add(path, schema.RuleInvalidType, "expected mapping, got %s", typeName(v))
		return nil, false
	}
	known := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		known[key] = struct{}{}
	}
	var unknown []string
	for key := range m {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		d.add(join(path, key), schema.RuleUnknownKey, "unknown key %q", key)
	}
	return m, true
}

func (d *decoder) list(path string, v any) ([]any, bool) {
	items, ok := v.([]any)
	if !ok {
		d.add(path, schema.RuleInvalidType, "expected list, got %s", typeName(v))
		return nil, false
	}
	return items, true
}

// str decodes a string-only attribute.
func (d *decoder) str(path string, m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.add(join(path, key), schema.RuleInvalidType, "expected string, got %s", typeName(v))
		return ""
	}
	return s
}

// scalar decodes attributes where YAML authors commonly write bare numbers or
// booleans (option values, defaults, versions).
func (d *decoder) scalar(path string, m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case uint64:
		return strconv.FormatUint(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case time.Time:
		return formatTimestamp(typed)
	default:
		d.add(join(path, key), schema.RuleInvalidType, "expected scalar, got %s", typeName(v))
		return ""
	}
}

// formatTimestamp restores the text of an unquoted YAML date or timestamp.
func formatTimestamp(t time.Time) string {
	h, m, sec := t.Clock()
	if h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0 && t.Location() == time.UTC {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339Nano)
}

func (d *decoder) boolean(path string, m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.add(join(path, key), schema.RuleInvalidType, "expected boolean, got %s", typeName(v))
		return false
	}
	return b
}

func (d *decoder) integer(path string, m map[string]any, key string) int {
	v, ok := m[key]
	if !ok || v == nil {
		return 0
	}
	switch typed := v.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case uint64:
		if typed <= math.MaxInt32 {
			return int(typed)
		}
	case float64:
		if typed == math.Trunc(typed) && math.Abs(typed) <= math.MaxInt32 {
			return int(typed)
		}
	}
	d.add(join(path, key), schema.RuleInvalidType, "expected integer, got %s", typeName(v))
	return 0
}

func (d *decoder) app(data map[string]any) *schema.AppSpec {
	app := &schema.AppSpec{}
	root, _ := d.object("", data, appKeys)

	if _, ok := root["version"]; !ok {
		d.add("version", schema.RuleRequired, "version is required")
	}
	app.Version = d.scalar("", root, "version")

	if raw, ok := root["metadata"]; !ok {
		d.add("metadata", schema.RuleRequired, "metadata is required")
	} else if meta, ok := d.object("metadata", raw, metadataKeys); ok {
		app.Metadata.AppID = d.str("metadata", meta, "app_id")
		app.Metadata.AppName = d.str("metadata", meta, "app_name")
	}

	raw, ok := root["forms"]
	if !ok {
		d.add("forms", schema.RuleRequired, "forms is required")
		return app
	}
	items, ok := d.list("forms", raw)
	if !ok {
		return app
	}
	app.Forms = make([]schema.FormSpec, 0, len(items))
	for i, item := range items {
		app.Forms = append(app.Forms, d.form(index("forms", i), item))
	}
	return app
}

func (d *decoder) form(path string, v any) schema.FormSpec {
	var form schema.FormSpec
	m, ok := d.object(path, v, formKeys)
	if !ok {
		return form
	}
	form.ID = d.str(path, m, "id")
	form.Name = d.str(path, m, "name")
	form.Table = d.str(path, m, "table")
	form.Description = d.str(path, m, "description")

	if raw, ok := m["fields"]; ok {
		if items, ok := d.list(join(path, "fields"), raw); ok {
			form.Fields = make([]schema.FieldSpec, 0, len(items))
			for i, item := range items {
				form.Fields = append(form.Fields, d.field(index(join(path, "fields"), i), item))
			}
		}
	}
	if raw, ok := m["indexes"]; ok {
		if items, ok := d.list(join(path, "indexes"), raw); ok {
			for i, item := range items {
				form.Indexes = append(form.Indexes, d.index(index(join(path, "indexes"), i), item))
			}
		}
	}
	return form
}

func (d *decoder) field(path string, v any) schema.FieldSpec {
	var field schema.FieldSpec
	m, ok := d.object(path, v, fieldKeys)
	if !ok {
		return field
	}
	field.ID = d.str(path, m, "id")
	if rawType := d.str(path, m, "type"); rawType != "" {
		typ, err := schema.ParseFieldType(rawType)
		if err != nil {
			d.add(join(path, "type"), schema.RuleInvalidEnum, "unknown field type %q (want one of %s)", rawType, strings.Join(schema.FieldTypeNames(), ", "))
		}
		field.Type = typ
	}
	field.Label = d.scalar(path, m, "label")
	field.Placeholder = d.scalar(path, m, "placeholder")
	if _, ok := m["default"]; ok {
		field.Default = schema.ParseDefault(d.scalar(path, m, "default"))
	}
	field.Size = d.integer(path, m, "size")
	field.Required = d.boolean(path, m, "required")
	field.Unique = d.boolean(path, m, "unique")
	field.PrimaryKey = d.boolean(path, m, "primary_key")
	field.ReadOnly = d.boolean(path, m, "readonly")

	if raw, ok := m["options"]; ok && raw != nil {
		if items, ok := d.list(join(path, "options"), raw); ok {
			for i, item := range items {
				field.Options = append(field.Options, d.option(index(join(path, "options"), i), item))
			}
		}
	}
	if raw, ok := m["references"]; ok && raw != nil {
		refPath := join(path, "references")
		if ref, ok := d.object(refPath, raw, referenceKeys); ok {
			field.References = &schema.ForeignKeyRef{
				Form:       d.str(refPath, ref, "form"),
				Field:      d.str(refPath, ref, "field"),
				LabelField: d.str(refPath, ref, "label_field"),
			}
		}
	}
	return field
}

// option accepts {value, label} mappings or a bare scalar value.
func (d *decoder) option(path string, v any) schema.SelectOption {
	if _, ok := v.(map[string]any); !ok {
		holder := map[string]any{"value": v}
		return schema.SelectOption{Value: d.scalar(path, holder, "value")}
	}
	m, _ := d.object(path, v, optionKeys)
	return schema.SelectOption{
		Value: d.scalar(path, m, "value"),
		Label: d.scalar(path, m, "label"),
	}
}

func (d *decoder) index(path string, v any) schema.IndexSpec {
	var idx schema.IndexSpec
	m, ok := d.object(path, v, indexKeys)
	if !ok {
		return idx
	}
	if raw, ok := m["fields"]; ok {
		if items, ok := d.list(join(path, "fields"), raw); ok {
			for i, item := range items {
				name, ok := item.(string)
				if !ok {
					d.add(index(join(path, "fields"), i), schema.RuleInvalidType, "expected string, got %s", typeName(item))
					continue
				}
				idx.Fields = append(idx.Fields, name)
			}
		}
	}
	idx.Unique = d.boolean(path, m, "unique")
	return idx
}
