package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formkit/internal/naming"
	"github.com/goliatone/go-formkit/pkg/schema"
)

const componentPrefix = "#/components/schemas/"

type converter struct {
	schemas openapi3.Schemas
	order   order
	logger  *zap.Logger
}

func (c converter) form(name string, s *openapi3.Schema) (schema.FormSpec, bool) {
	if s == nil || !isObject(s) {
		c.logger.Debug("skipping non-object schema", zap.String("schema", name))
		return schema.FormSpec{}, false
	}
	if flag(s.Extensions, ExtSkip) {
		return schema.FormSpec{}, false
	}

	id := naming.Identifier(name, "form")
	form := schema.FormSpec{
		ID:          id,
		Name:        firstNonEmpty(s.Title, naming.Title(name)),
		Table:       firstNonEmpty(stringExt(s.Extensions, ExtTable), id),
		Description: s.Description,
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	for _, prop := range orderedKeys(s.Properties, c.order.properties[name]) {
		ref := s.Properties[prop]
		if ref == nil || ref.Value == nil {
			continue
		}
		if flag(ref.Value.Extensions, ExtSkip) {
			continue
		}
		if strings.EqualFold(prop, "id") && !flag(ref.Value.Extensions, ExtPrimaryKey) {
			continue
		}
		field, ok := c.field(name, prop, ref, required[prop])
		if !ok {
			continue
		}
		form.Fields = append(form.Fields, field)
	}
	return form, true
}

func (c converter) field(owner, prop string, ref *openapi3.SchemaRef, required bool) (schema.FieldSpec, bool) {
	s := ref.Value
	label := s.Title
	if ref.Ref != "" {
		// The title belongs to the referenced component.
		label = ""
	}
	field := schema.FieldSpec{
		ID:         naming.Identifier(prop, "f"),
		Label:      label,
		Required:   required,
		ReadOnly:   s.ReadOnly,
		Unique:     flag(s.Extensions, ExtUnique),
		PrimaryKey: flag(s.Extensions, ExtPrimaryKey),
	}
	if field.PrimaryKey {
		field.Required = true
	}
	if raw := stringExt(s.Extensions, ExtDefault); raw != "" {
		field.Default = schema.ParseDefault(raw)
	} else if s.Default != nil {
		field.Default = schema.Literal(fmt.Sprint(s.Default))
	}
	if s.MaxLength != nil && *s.MaxLength <= uint64(^uint32(0)>>1) {
		field.Size = int(*s.MaxLength)
	}

	if explicit := stringExt(s.Extensions, ExtReferences); explicit != "" || mapExt(s.Extensions, ExtReferences) != nil {
		field.References = referenceFromExtension(s.Extensions[ExtReferences])
	} else if target, ok := c.refTarget(ref); ok {
		field.References = &schema.ForeignKeyRef{
			Form:  naming.Identifier(target, "form"),
			Field: c.primaryKeyOf(target),
		}
	}

	typ, ok := c.fieldType(s, field.References != nil)
	if !ok {
		c.logger.Warn("skipping property without a form mapping",
			zap.String("schema", owner),
			zap.String("property", prop),
			zap.Strings("type", s.Type.Slice()),
		)
		return schema.FieldSpec{}, false
	}
	if forced := stringExt(s.Extensions, ExtType); forced != "" {
		parsed, err := schema.ParseFieldType(forced)
		if err != nil {
			c.logger.Warn("ignoring invalid type override", zap.String("property", prop), zap.Error(err))
		} else {
			typ = parsed
		}
	}
	field.Type = typ

	if typ.IsChoice() && field.References == nil {
		field.Options = enumOptions(s)
		if typ == schema.FieldTypeCheckbox && len(field.Options) == 0 {
			field.Options = []schema.SelectOption{{Value: "true", Label: firstNonEmpty(s.Title, naming.Title(prop))}}
		}
	}
	return field, true
}

func (c converter) fieldType(s *openapi3.Schema, hasRef bool) (schema.FieldType, bool) {
	if hasRef {
		return schema.FieldTypeForeignKey, true
	}
	if len(s.Enum) > 0 {
		return schema.FieldTypeSelect, true
	}
	switch firstType(s) {
	case "boolean":
		return schema.FieldTypeCheckbox, true
	case "integer", "number":
		return schema.FieldTypeNumber, true
	case "array":
		if s.Items != nil && s.Items.Value != nil && len(s.Items.Value.Enum) > 0 {
			return schema.FieldTypeCheckbox, true
		}
		return 0, false
	case "object":
		return 0, false
	}
	switch strings.ToLower(s.Format) {
	case "date":
		return schema.FieldTypeDate, true
	case "date-time":
		return schema.FieldTypeDateTime, true
	case "time":
		return schema.FieldTypeTime, true
	case "binary", "byte":
		return schema.FieldTypeFile, true
	case "textarea", "markdown", "html":
		return schema.FieldTypeTextArea, true
	}
	if s.MaxLength != nil && *s.MaxLength > textAreaThreshold {
		return schema.FieldTypeTextArea, true
	}
	return schema.FieldTypeText, true
}

// refTarget reports the component name a property points at when that
// component is an object schema.
func (c converter) refTarget(ref *openapi3.SchemaRef) (string, bool) {
	if !strings.HasPrefix(ref.Ref, componentPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref.Ref, componentPrefix)
	target, ok := c.schemas[name]
	if !ok || target == nil || target.Value == nil || !isObject(target.Value) {
		return "", false
	}
	return name, true
}

func (c converter) primaryKeyOf(component string) string {
	target := c.schemas[component]
	for _, prop := range orderedKeys(target.Value.Properties, c.order.properties[component]) {
		if p := target.Value.Properties[prop]; p != nil && p.Value != nil && flag(p.Value.Extensions, ExtPrimaryKey) {
			return naming.Identifier(prop, "f")
		}
	}
	return "id"
}

func enumOptions(s *openapi3.Schema) []schema.SelectOption {
	values := s.Enum
	if len(values) == 0 && s.Items != nil && s.Items.Value != nil {
		values = s.Items.Value.Enum
	}
	out := make([]schema.SelectOption, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		out = append(out, schema.SelectOption{Value: fmt.Sprint(v)})
	}
	return out
}

// referenceFromExtension reads "form.field[.label_field]" or a mapping with
// form, field and label_field keys.
func referenceFromExtension(raw any) *schema.ForeignKeyRef {
	switch v := raw.(type) {
	case string:
		parts := strings.Split(v, ".")
		ref := &schema.ForeignKeyRef{Form: parts[0], Field: "id"}
		if len(parts) > 1 {
			ref.Field = parts[1]
		}
		if len(parts) > 2 {
			ref.LabelField = parts[2]
		}
		return ref
	case map[string]any:
		ref := &schema.ForeignKeyRef{Field: "id"}
		if s, ok := v["form"].(string); ok {
			ref.Form = s
		}
		if s, ok := v["field"].(string); ok && s != "" {
			ref.Field = s
		}
		if s, ok := v["label_field"].(string); ok {
			ref.LabelField = s
		}
		return ref
	default:
		return nil
	}
}

func isObject(s *openapi3.Schema) bool {
	return firstType(s) == "object" || (s.Type == nil && len(s.Properties) > 0)
}

func firstType(s *openapi3.Schema) string {
	for _, t := range s.Type.Slice() {
		if t != "null" {
			return t
		}
	}
	return ""
}

func flag(ext map[string]any, key string) bool {
	v, ok := ext[key].(bool)
	return ok && v
}

func stringExt(ext map[string]any, key string) string {
	v, _ := ext[key].(string)
	return strings.TrimSpace(v)
}

func mapExt(ext map[string]any, key string) map[string]any {
	v, _ := ext[key].(map[string]any)
	return v
}

// order records declaration order, which kin-openapi's maps drop.
type order struct {
	schemas    []string
	properties map[string][]string
}

func declarationOrder(raw []byte) (order, error) {
	out := order{properties: map[string][]string{}}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return out, fmt.Errorf("read declaration order: %w", err)
	}
	if len(root.Content) == 0 {
		return out, nil
	}
	schemas := lookup(lookup(root.Content[0], "components"), "schemas")
	if schemas == nil || schemas.Kind != yaml.MappingNode {
		return out, nil
	}
	for i := 0; i+1 < len(schemas.Content); i += 2 {
		name := schemas.Content[i].Value
		out.schemas = append(out.schemas, name)
		props := lookup(schemas.Content[i+1], "properties")
		if props == nil || props.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(props.Content); j += 2 {
			out.properties[name] = append(out.properties[name], props.Content[j].Value)
		}
	}
	return out, nil
}

func lookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
