package joget

import (
	"strconv"

	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/widgets"
)

type elementBuilder func(a *assembly, field schema.FieldSpec) map[string]any

// elementBuilders is the static widget name to element table.
var elementBuilders = map[string]elementBuilder{
	widgets.WidgetTextField:      textField,
	widgets.WidgetNumber:         textField,
	widgets.WidgetTextArea:       textArea,
	widgets.WidgetSelect:         choice(ClassSelectBox),
	widgets.WidgetLookup:         choice(ClassSelectBox),
	widgets.WidgetRadio:          choice(ClassRadio),
	widgets.WidgetCheckbox:       choice(ClassCheckBox),
	widgets.WidgetDatePicker:     datePicker("yyyy-MM-dd", ""),
	widgets.WidgetDateTimePicker: datePicker("yyyy-MM-dd HH:mm:ss", "dateTime"),
	widgets.WidgetTimePicker:     datePicker("HH:mm", "timeOnly"),
	widgets.WidgetFileUpload:     fileUpload,
	widgets.WidgetHidden:         hiddenField,
}

// Hash variables the platform expands when a new record is opened.
var hashVariables = map[schema.DefaultKind]string{
	schema.DefaultUUID:             "#uuid#",
	schema.DefaultCurrentUser:      "#currentUser.username#",
	schema.DefaultCurrentTimestamp: "#date.yyyy-MM-dd HH:mm:ss#",
	schema.DefaultCurrentDate:      "#date.yyyy-MM-dd#",
}

func defaultValue(d schema.DefaultValue) string {
	if v, ok := hashVariables[d.Kind]; ok {
		return v
	}
	return d.Literal
}

func flag(v bool) string {
	if v {
		return "true"
	}
	return ""
}

// baseProperties are shared by every visible input.
func baseProperties(a *assembly, field schema.FieldSpec) map[string]any {
	label := field.Label
	if label == "" {
		label = field.ID
	}
	return map[string]any{
		"id":               field.ID,
		"label":            a.text(field.ID, "label", label),
		"value":            defaultValue(field.Default),
		"readonly":         flag(field.ReadOnly),
		"readonlyLabel":    "",
		"validator":        validator(a.form.ID, field),
		"workflowVariable": "",
	}
}

func element(className string, properties map[string]any) map[string]any {
	return map[string]any{
		"className":  className,
		"properties": properties,
	}
}

func textField(a *assembly, field schema.FieldSpec) map[string]any {
	props := baseProperties(a, field)
	props["placeholder"] = a.text(field.ID, "placeholder", field.Placeholder)
	props["maxlength"] = ""
	if field.Size > 0 && field.Type != schema.FieldTypeNumber {
		props["maxlength"] = strconv.Itoa(field.Size)
	}
	props["size"] = ""
	props["encryption"] = ""
	props["style"] = ""
	return element(ClassTextField, props)
}

func textArea(a *assembly, field schema.FieldSpec) map[string]any {
	props := baseProperties(a, field)
	props["placeholder"] = a.text(field.ID, "placeholder", field.Placeholder)
	props["rows"] = "5"
	props["cols"] = "20"
	return element(ClassTextArea, props)
}

func choice(className string) elementBuilder {
	return func(a *assembly, field schema.FieldSpec) map[string]any {
		props := baseProperties(a, field)
		props["controlField"] = ""
		if className == ClassSelectBox {
			props["multiple"] = ""
			props["size"] = ""
		}
		options, binder := optionSource(a, field)
		props["options"] = options
		props["optionsBinder"] = binder
		return element(className, props)
	}
}

// optionSource returns the literal options and the options binder for a
// choice field. References bind options from the referenced form and leave
// the literal list empty; static options are embedded with an empty binder.
func optionSource(a *assembly, field schema.FieldSpec) ([]any, map[string]any) {
	if ref := field.References; ref != nil {
		labelColumn := ref.LabelField
		if labelColumn == "" {
			labelColumn = ref.Field
		}
		return []any{}, plugin(ClassOptionsBinder, map[string]any{
			"formDefId":      ref.Form,
			"idColumn":       ref.Field,
			"labelColumn":    labelColumn,
			"groupingColumn": "",
			"extraCondition": "",
			"addEmptyOption": "true",
			"emptyLabel":     "",
			"useAjax":        "",
		})
	}

	options := make([]any, 0, len(field.Options))
	for _, opt := range field.Options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		options = append(options, map[string]any{
			"value":    opt.Value,
			"label":    a.text(field.ID, "option label", label),
			"grouping": "",
		})
	}
	return options, plugin("", nil)
}

func datePicker(format, pickerType string) elementBuilder {
	return func(a *assembly, field schema.FieldSpec) map[string]any {
		props := baseProperties(a, field)
		props["format"] = format
		props["dataFormat"] = format
		props["datePickerType"] = pickerType
		props["allowManual"] = ""
		props["startDateFieldId"] = ""
		props["endDateFieldId"] = ""
		return element(ClassDatePicker, props)
	}
}

func fileUpload(a *assembly, field schema.FieldSpec) map[string]any {
	props := baseProperties(a, field)
	props["value"] = ""
	props["size"] = ""
	props["maxSize"] = ""
	props["fileType"] = ""
	props["multiple"] = ""
	props["attachment"] = ""
	return element(ClassFileUpload, props)
}

func hiddenField(_ *assembly, field schema.FieldSpec) map[string]any {
	return element(ClassHiddenField, map[string]any{
		"id":                  field.ID,
		"value":               defaultValue(field.Default),
		"useDefaultWhenEmpty": "",
		"workflowVariable":    "",
	})
}

// validator derives the validator slot. Required, unique and primary key
// fields are mandatory; unique and primary key fields also get a duplicate
// check against the deployed table, combined through a MultiValidator.
func validator(formID string, field schema.FieldSpec) map[string]any {
	mandatory := field.Required || field.Unique || field.PrimaryKey
	numeric := field.Type == schema.FieldTypeNumber
	if !mandatory && !numeric {
		return plugin("", nil)
	}

	base := plugin(ClassDefaultValid, map[string]any{
		"mandatory": flag(mandatory),
		"type":      numericType(numeric),
		"message":   "",
	})
	if !field.Unique && !field.PrimaryKey {
		return base
	}

	duplicate := plugin(ClassDuplicateVal, map[string]any{
		"formDefId":    formID,
		"fieldId":      field.ID,
		"mandatory":    "true",
		"errorMessage": "",
	})
	return plugin(ClassMultiValid, map[string]any{
		"validators": []any{base, duplicate},
	})
}

func numericType(numeric bool) string {
	if numeric {
		return "numeric"
	}
	return ""
}
