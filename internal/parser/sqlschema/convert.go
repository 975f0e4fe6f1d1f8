package sqlschema

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// textAreaThreshold is the declared length above which text columns become
// TEXTAREA.
const textAreaThreshold = 255

var (
	lengthPattern = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*\d+\s*)?\)`)
	castPattern   = regexp.MustCompile(`::[A-Za-z_ ]+(\[\])?$`)
	numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// formFromTable maps one table onto a form. The id column is dropped: the
// platform stores its own record id.
func formFromTable(t table, logger *zap.Logger) schema.FormSpec {
	id := naming.Identifier(t.name, "form")
	form := schema.FormSpec{
		ID:    id,
		Name:  naming.Title(t.name),
		Table: id,
	}

	fieldIDs := make(map[string]string, len(t.columns))
	uniqueCols := map[string]bool{}
	for _, idx := range t.indexes {
		if idx.unique && len(idx.columns) == 1 {
			uniqueCols[idx.columns[0]] = true
		}
	}

	for _, col := range t.columns {
		if strings.EqualFold(col.name, "id") {
			continue
		}
		field := schema.FieldSpec{
			ID:         naming.Identifier(col.name, "f"),
			Required:   col.notNull || col.pk,
			PrimaryKey: col.pk,
			Unique:     uniqueCols[col.name] && !col.pk,
			Size:       col.size,
		}
		if col.def != nil {
			field.Default = parseDefault(*col.def)
		}
		switch {
		case col.ref != nil:
			field.Type = schema.FieldTypeForeignKey
			field.References = &schema.ForeignKeyRef{
				Form:  naming.Identifier(col.ref.table, "form"),
				Field: naming.Identifier(col.ref.column, "f"),
			}
		case len(col.enum) > 0:
			field.Type = schema.FieldTypeSelect
			for _, v := range col.enum {
				field.Options = append(field.Options, schema.SelectOption{Value: v})
			}
		default:
			typ, size := mapType(col.dataType)
			if field.Size == 0 {
				field.Size = size
			}
			if typ == schema.FieldTypeText && field.Size > textAreaThreshold {
				typ = schema.FieldTypeTextArea
			}
			field.Type = typ
			if typ == schema.FieldTypeCheckbox {
				field.Options = []schema.SelectOption{{Value: "true", Label: naming.Title(col.name)}}
			}
		}
		if field.Type == schema.FieldTypeTextArea || field.Type == schema.FieldTypeNumber {
			field.Size = 0
		}
		fieldIDs[col.name] = field.ID
		form.Fields = append(form.Fields, field)
	}

	for _, idx := range t.indexes {
		if idx.unique && len(idx.columns) == 1 {
			continue
		}
		spec := schema.IndexSpec{Unique: idx.unique}
		for _, c := range idx.columns {
			fid, ok := fieldIDs[c]
			if !ok {
				spec.Fields = nil
				break
			}
			spec.Fields = append(spec.Fields, fid)
		}
		if len(spec.Fields) == 0 {
			logger.Debug("dropping index on columns outside the form",
				zap.String("table", t.name),
				zap.String("index", idx.name),
			)
			continue
		}
		form.Indexes = append(form.Indexes, spec)
	}
	return form
}

// mapType reads a declared column type, returning the field type and the
// declared character length when there is one.
func mapType(declared string) (schema.FieldType, int) {
	lower := strings.ToLower(strings.TrimSpace(declared))
	size := 0
	if m := lengthPattern.FindStringSubmatch(lower); m != nil {
		size, _ = strconv.Atoi(m[1])
	}
	base := strings.TrimSpace(lengthPattern.ReplaceAllString(lower, ""))

	switch {
	case base == "" || strings.HasSuffix(base, "[]"):
		return schema.FieldTypeText, size
	case strings.Contains(base, "bool"):
		return schema.FieldTypeCheckbox, 0
	case strings.HasPrefix(base, "timestamp"), strings.HasPrefix(base, "datetime"):
		return schema.FieldTypeDateTime, 0
	case base == "date":
		return schema.FieldTypeDate, 0
	case strings.HasPrefix(base, "time"):
		return schema.FieldTypeTime, 0
	case strings.Contains(base, "int"), strings.Contains(base, "serial"),
		strings.HasPrefix(base, "numeric"), strings.HasPrefix(base, "decimal"),
		strings.HasPrefix(base, "real"), strings.HasPrefix(base, "double"),
		strings.HasPrefix(base, "float"), base == "money":
		return schema.FieldTypeNumber, 0
	case strings.Contains(base, "blob"), base == "bytea":
		return schema.FieldTypeFile, 0
	case strings.Contains(base, "char"):
		if size == 0 {
			return schema.FieldTypeText, 0
		}
		if size > textAreaThreshold {
			return schema.FieldTypeTextArea, 0
		}
		return schema.FieldTypeText, size
	case base == "text", strings.Contains(base, "clob"), strings.HasPrefix(base, "json"), base == "xml":
		return schema.FieldTypeTextArea, 0
	default:
		return schema.FieldTypeText, size
	}
}

// parseDefault maps column default expressions onto defaults. Expressions
// other than the well-known clock and uuid functions are ignored.
func parseDefault(expr string) schema.DefaultValue {
	e := strings.TrimSpace(expr)
	e = strings.TrimSpace(castPattern.ReplaceAllString(e, ""))
	for strings.HasPrefix(e, "(") && strings.HasSuffix(e, ")") {
		e = strings.TrimSpace(e[1 : len(e)-1])
	}
	lower := strings.ToLower(e)
	switch lower {
	case "current_timestamp", "now()", "localtimestamp", "datetime('now')", "datetime('now', 'localtime')":
		return schema.Symbolic(schema.DefaultCurrentTimestamp)
	case "current_date", "date('now')":
		return schema.Symbolic(schema.DefaultCurrentDate)
	case "gen_random_uuid()", "uuid_generate_v4()":
		return schema.Symbolic(schema.DefaultUUID)
	case "current_user", "session_user":
		return schema.Symbolic(schema.DefaultCurrentUser)
	case "null", "":
		return schema.DefaultValue{}
	}
	if len(e) >= 2 && e[0] == '\'' && e[len(e)-1] == '\'' {
		return schema.Literal(strings.ReplaceAll(e[1:len(e)-1], "''", "'"))
	}
	if numberPattern.MatchString(e) || lower == "true" || lower == "false" {
		return schema.Literal(lower)
	}
	return schema.DefaultValue{}
}
