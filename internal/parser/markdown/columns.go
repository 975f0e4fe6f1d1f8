package markdown

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

type column int

const (
	colID column = iota
	colLabel
	colType
	colRequired
	colSize
	colDefault
	colPlaceholder
	colUnique
	colPrimaryKey
	colReadOnly
	colOptions
	colReferences
)

// positional is the column order assumed when no header is recognized.
var positional = []column{colID, colLabel, colType, colRequired, colSize, colDefault}

var headerAliases = map[string]column{
	"id": colID, "field": colID, "field_id": colID, "field_name": colID, "column": colID, "name": colID, "key_name": colID,
	"label": colLabel, "title": colLabel, "caption": colLabel, "display_name": colLabel,
	"type": colType, "field_type": colType, "data_type": colType, "kind": colType,
	"required": colRequired, "mandatory": colRequired, "req": colRequired,
	"size": colSize, "length": colSize, "max_length": colSize, "width": colSize,
	"default": colDefault, "default_value": colDefault,
	"placeholder": colPlaceholder, "hint": colPlaceholder,
	"unique":      colUnique,
	"primary_key": colPrimaryKey, "pk": colPrimaryKey, "primary": colPrimaryKey,
	"readonly": colReadOnly, "read_only": colReadOnly,
	"options": colOptions, "choices": colOptions, "values": colOptions,
	"references": colReferences, "reference": colReferences, "ref": colReferences, "lookup": colReferences, "foreign_key": colReferences, "fk": colReferences,
}

var typeAliases = map[string]schema.FieldType{
	"": schema.FieldTypeText, "string": schema.FieldTypeText, "str": schema.FieldTypeText, "varchar": schema.FieldTypeText, "char": schema.FieldTypeText, "text": schema.FieldTypeText, "email": schema.FieldTypeText, "phone": schema.FieldTypeText, "url": schema.FieldTypeText,
	"textarea": schema.FieldTypeTextArea, "longtext": schema.FieldTypeTextArea, "memo": schema.FieldTypeTextArea, "multiline": schema.FieldTypeTextArea, "paragraph": schema.FieldTypeTextArea,
	"number": schema.FieldTypeNumber, "int": schema.FieldTypeNumber, "integer": schema.FieldTypeNumber, "decimal": schema.FieldTypeNumber, "float": schema.FieldTypeNumber, "double": schema.FieldTypeNumber, "numeric": schema.FieldTypeNumber, "money": schema.FieldTypeNumber, "currency": schema.FieldTypeNumber,
	"select": schema.FieldTypeSelect, "dropdown": schema.FieldTypeSelect, "enum": schema.FieldTypeSelect, "list": schema.FieldTypeSelect, "choice": schema.FieldTypeSelect,
	"radio": schema.FieldTypeRadio, "radio_button": schema.FieldTypeRadio,
	"checkbox": schema.FieldTypeCheckbox, "check": schema.FieldTypeCheckbox, "bool": schema.FieldTypeCheckbox, "boolean": schema.FieldTypeCheckbox, "multi_select": schema.FieldTypeCheckbox,
	"date":     schema.FieldTypeDate,
	"datetime": schema.FieldTypeDateTime, "date_time": schema.FieldTypeDateTime, "timestamp": schema.FieldTypeDateTime,
	"time": schema.FieldTypeTime,
	"file": schema.FieldTypeFile, "upload": schema.FieldTypeFile, "attachment": schema.FieldTypeFile, "image": schema.FieldTypeFile,
	"foreign_key": schema.FieldTypeForeignKey, "fk": schema.FieldTypeForeignKey, "lookup": schema.FieldTypeForeignKey, "reference": schema.FieldTypeForeignKey, "ref": schema.FieldTypeForeignKey,
	"hidden": schema.FieldTypeHidden,
}

// mapHeader returns the column each cell position carries. All-recognized
// headers map by name; all-unrecognized headers map by position; anything in
// between is ambiguous.
func mapHeader(input string, tbl *table) ([]column, error) {
	cols := make([]column, len(tbl.header))
	var unknown []string
	seen := make(map[column]string, len(tbl.header))
	for i, cell := range tbl.header {
		col, ok := headerAliases[normalizeKey(cell)]
		if !ok {
			unknown = append(unknown, cell)
			continue
		}
		if prev, dup := seen[col]; dup {
			return nil, schema.NewParseError(input, tbl.line, "columns %q and %q map to the same attribute", prev, cell)
		}
		seen[col] = cell
		cols[i] = col
	}

	switch {
	case len(unknown) == 0:
		if _, ok := seen[colID]; !ok {
			return nil, schema.NewParseError(input, tbl.line, "table has no field id column")
		}
		return cols, nil
	case len(unknown) == len(tbl.header):
		if len(tbl.header) > len(positional) {
			return nil, schema.NewParseError(input, tbl.line, "cannot map %d unnamed columns by position (at most %d)", len(tbl.header), len(positional))
		}
		return positional[:len(tbl.header)], nil
	default:
		return nil, schema.NewParseError(input, tbl.line, "ambiguous header: unrecognized columns %s", strings.Join(quoteAll(unknown), ", "))
	}
}

func buildForm(input, title string, sec *section, opts parser.Options) (schema.FormSpec, error) {
	name := firstNonEmpty(opts.FormName, sec.meta["name"], sec.heading, title)
	form := schema.FormSpec{
		ID:          firstNonEmpty(opts.FormID, sec.meta["id"], naming.Identifier(name, "form")),
		Name:        name,
		Description: sec.meta["description"],
	}
	form.Table = firstNonEmpty(opts.Table, sec.meta["table"], form.ID)

	cols, err := mapHeader(input, sec.table)
	if err != nil {
		return schema.FormSpec{}, err
	}
	for _, r := range sec.table.rows {
		field, err := buildField(input, r, cols)
		if err != nil {
			return schema.FormSpec{}, err
		}
		form.Fields = append(form.Fields, field)
	}
	return form, nil
}

func buildField(input string, r row, cols []column) (schema.FieldSpec, error) {
	var (
		field   schema.FieldSpec
		typeRaw string
	)
	fail := func(format string, args ...any) (schema.FieldSpec, error) {
		return schema.FieldSpec{}, schema.NewParseError(input, r.line, format, args...)
	}

	for i, cell := range r.cells {
		var err error
		switch cols[i] {
		case colID:
			field.ID = cell
		case colLabel:
			field.Label = cell
		case colType:
			typeRaw = cell
		case colRequired:
			field.Required, err = parseBool(cell)
		case colSize:
			field.Size, err = parseSize(cell)
		case colDefault:
			if cell != "" {
				field.Default = schema.ParseDefault(cell)
			}
		case colPlaceholder:
			field.Placeholder = cell
		case colUnique:
			field.Unique, err = parseBool(cell)
		case colPrimaryKey:
			field.PrimaryKey, err = parseBool(cell)
		case colReadOnly:
			field.ReadOnly, err = parseBool(cell)
		case colOptions:
			field.Options = parseOptions(cell)
		case colReferences:
			field.References, err = parseReference(cell)
		}
		if err != nil {
			return fail("field %q: %v", field.ID, err)
		}
	}

	if field.ID == "" {
		return fail("field id is empty")
	}
	if !naming.IsIdentifier(field.ID) {
		field.ID = naming.Identifier(field.ID, "f")
	}

	typ, ok := typeAliases[normalizeKey(typeRaw)]
	if !ok {
		parsed, err := schema.ParseFieldType(typeRaw)
		if err != nil {
			return fail("field %q: unknown type %q", field.ID, typeRaw)
		}
		typ = parsed
	}
	// A reference column turns a plain text field into a lookup.
	if field.References != nil && !typ.IsChoice() {
		typ = schema.FieldTypeForeignKey
	}
	field.Type = typ
	if field.PrimaryKey {
		field.Required = true
	}
	return field, nil
}

func parseBool(cell string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "no", "n", "false", "0", "-", "optional":
		return false, nil
	case "yes", "y", "true", "1", "x", "✓", "✔", "required", "mandatory":
		return true, nil
	default:
		return false, fmt.Errorf("cannot read %q as yes/no", cell)
	}
}

func parseSize(cell string) (int, error) {
	if cell == "" || cell == "-" {
		return 0, nil
	}
	n, err := strconv.Atoi(cell)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("size %q is not a non-negative integer", cell)
	}
	return n, nil
}

// parseOptions reads "a, b" or "a=Label A, b=Label B".
func parseOptions(cell string) []schema.SelectOption {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	var out []schema.SelectOption
	for _, item := range strings.Split(cell, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		value, label, _ := strings.Cut(item, "=")
		out = append(out, schema.SelectOption{Value: strings.TrimSpace(value), Label: strings.TrimSpace(label)})
	}
	return out
}

// parseReference reads "form", "form.field" or "form.field.label_field".
func parseReference(cell string) (*schema.ForeignKeyRef, error) {
	if strings.TrimSpace(cell) == "" || cell == "-" {
		return nil, nil
	}
	parts := strings.Split(cell, ".")
	if len(parts) > 3 {
		return nil, fmt.Errorf("reference %q has more than three parts", cell)
	}
	ref := &schema.ForeignKeyRef{Form: strings.TrimSpace(parts[0]), Field: "id"}
	if len(parts) > 1 {
		ref.Field = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		ref.LabelField = strings.TrimSpace(parts[2])
	}
	if ref.Form == "" || ref.Field == "" {
		return nil, fmt.Errorf("reference %q is incomplete", cell)
	}
	return ref, nil
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Quote(v)
	}
	return out
}
