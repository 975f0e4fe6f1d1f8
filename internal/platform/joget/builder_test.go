package joget

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/testsupport"
	"github.com/goliatone/go-formkit/pkg/widgets"
)

func customerForm(t *testing.T) schema.FormSpec {
	t.Helper()
	app := testsupport.LoadAppSpec(t, filepath.Join("testdata", "crm.yaml"))
	form, ok := app.Form("customer")
	require.True(t, ok)
	return *form
}

// elementsOf returns the widgets inside the single section and column.
func elementsOf(t *testing.T, tree map[string]any) []map[string]any {
	t.Helper()
	section := tree["elements"].([]any)[0].(map[string]any)
	column := section["elements"].([]any)[0].(map[string]any)
	var out []map[string]any
	for _, el := range column["elements"].([]any) {
		out = append(out, el.(map[string]any))
	}
	return out
}

func props(el map[string]any) map[string]any {
	return el["properties"].(map[string]any)
}

func TestBuildForm_Golden(t *testing.T) {
	artifact, err := NewBuilder().BuildForm(customerForm(t))
	require.NoError(t, err)
	assert.Empty(t, artifact.Warnings)
	assert.Equal(t, "customer.json", artifact.FileName())

	data, err := artifact.JSON()
	require.NoError(t, err)
	testsupport.AssertGolden(t, filepath.Join("testdata", "customer.json"), data)
}

func TestBuildForm_Idempotent(t *testing.T) {
	b := NewBuilder()
	form := customerForm(t)

	first, err := b.BuildForm(form)
	require.NoError(t, err)
	second, err := b.BuildForm(form)
	require.NoError(t, err)

	a, err := first.JSON()
	require.NoError(t, err)
	c, err := second.JSON()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, c))
}

func TestBuildForm_TopLevelShape(t *testing.T) {
	artifact, err := NewBuilder().BuildForm(customerForm(t))
	require.NoError(t, err)

	tree := artifact.Tree
	assert.Equal(t, ClassForm, tree["className"])
	formProps := props(tree)
	for _, key := range []string{"id", "name", "description", "tableName", "loadBinder", "storeBinder", "permission", "postProcessor", "noPermissionMessage", "postProcessorRunOn"} {
		assert.Contains(t, formProps, key)
	}
	assert.Equal(t, "crm_customer", formProps["tableName"])

	sections := tree["elements"].([]any)
	require.Len(t, sections, 1)
	assert.Equal(t, ClassSection, sections[0].(map[string]any)["className"])

	ids := []string{}
	for _, el := range elementsOf(t, tree) {
		ids = append(ids, props(el)["id"].(string))
	}
	assert.Equal(t, []string{"code", "name", "email", "notes", "credit_limit", "tier", "region", "parent",
		"active", "since", "last_contact", "call_time", "contract", "ref", "created_by"}, ids)
}

func TestBuildForm_TableNameWarning(t *testing.T) {
	field := schema.NewField("code", schema.FieldTypeText, schema.WithLabel("Code"))

	short := schema.NewForm("orders", "Orders", "exactly_twenty_chars", field)
	artifact, err := NewBuilder().BuildForm(short)
	require.NoError(t, err)
	assert.Empty(t, artifact.Warnings)

	long := schema.NewForm("orders", "Orders", "twenty_one_characters", field)
	artifact, err = NewBuilder().BuildForm(long)
	require.NoError(t, err)
	require.Len(t, artifact.Warnings, 1)
	assert.Equal(t, builder.WarnTableNameTooLong, artifact.Warnings[0].Code)
	assert.NotEmpty(t, elementsOf(t, artifact.Tree))
	assert.Equal(t, "twenty_one_characters", props(artifact.Tree)["tableName"])

	artifact, err = NewBuilder(WithTableNameLimit(30)).BuildForm(long)
	require.NoError(t, err)
	assert.Empty(t, artifact.Warnings)
}

func TestBuildForm_OptionSources(t *testing.T) {
	artifact, err := NewBuilder().BuildForm(customerForm(t))
	require.NoError(t, err)

	byID := map[string]map[string]any{}
	for _, el := range elementsOf(t, artifact.Tree) {
		byID[props(el)["id"].(string)] = el
	}

	parent := props(byID["parent"])
	assert.Equal(t, ClassSelectBox, byID["parent"]["className"])
	binder := parent["optionsBinder"].(map[string]any)
	assert.Equal(t, ClassOptionsBinder, binder["className"])
	assert.Equal(t, map[string]any{
		"formDefId":      "customer",
		"idColumn":       "code",
		"labelColumn":    "code",
		"groupingColumn": "",
		"extraCondition": "",
		"addEmptyOption": "true",
		"emptyLabel":     "",
		"useAjax":        "",
	}, binder["properties"])
	assert.Empty(t, parent["options"])

	region := props(byID["region"])
	assert.Equal(t, ClassRadio, byID["region"]["className"])
	assert.Equal(t, "name", region["optionsBinder"].(map[string]any)["properties"].(map[string]any)["labelColumn"])

	tier := props(byID["tier"])
	assert.Equal(t, "", tier["optionsBinder"].(map[string]any)["className"])
	assert.Equal(t, []any{
		map[string]any{"value": "gold", "label": "Gold", "grouping": ""},
		map[string]any{"value": "silver", "label": "silver", "grouping": ""},
	}, tier["options"])
}

func TestBuildForm_Validators(t *testing.T) {
	form := schema.NewForm("person", "Person", "person",
		schema.NewField("name", schema.FieldTypeText, schema.Required()),
		schema.NewField("age", schema.FieldTypeNumber),
		schema.NewField("nickname", schema.FieldTypeText),
		schema.NewField("email", schema.FieldTypeText, schema.Unique()),
	)
	artifact, err := NewBuilder().BuildForm(form)
	require.NoError(t, err)
	els := elementsOf(t, artifact.Tree)

	name := props(els[0])["validator"].(map[string]any)
	assert.Equal(t, ClassDefaultValid, name["className"])
	assert.Equal(t, "true", name["properties"].(map[string]any)["mandatory"])

	age := props(els[1])["validator"].(map[string]any)
	assert.Equal(t, map[string]any{"mandatory": "", "type": "numeric", "message": ""}, age["properties"])

	assert.Equal(t, "", props(els[2])["validator"].(map[string]any)["className"])

	email := props(els[3])["validator"].(map[string]any)
	assert.Equal(t, ClassMultiValid, email["className"])
	validators := email["properties"].(map[string]any)["validators"].([]any)
	require.Len(t, validators, 2)
	dup := validators[1].(map[string]any)
	assert.Equal(t, ClassDuplicateVal, dup["className"])
	assert.Equal(t, "person", dup["properties"].(map[string]any)["formDefId"])
	assert.Equal(t, "email", dup["properties"].(map[string]any)["fieldId"])
}

func TestBuildForm_UnmappedFieldIsOmitted(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg := widgets.NewRegistry()
	reg.Register("star-rating", 200, func(field schema.FieldSpec) bool {
		return field.Type == schema.FieldTypeNumber
	})

	form := schema.NewForm("review", "Review", "review",
		schema.NewField("title", schema.FieldTypeText),
		schema.NewField("score", schema.FieldTypeNumber),
	)
	artifact, err := NewBuilder(WithWidgets(reg), WithLogger(zap.New(core))).BuildForm(form)
	require.NoError(t, err)

	els := elementsOf(t, artifact.Tree)
	require.Len(t, els, 1)
	assert.Equal(t, "title", props(els[0])["id"])

	require.Len(t, artifact.Warnings, 1)
	assert.Equal(t, builder.WarnUnmappedFieldType, artifact.Warnings[0].Code)
	assert.Equal(t, "score", artifact.Warnings[0].Field)
	assert.Equal(t, 1, logs.FilterMessage("build warning").FilterField(zap.String("field", "score")).Len())
}

func TestBuildForm_NoMappableFields(t *testing.T) {
	form := schema.NewForm("empty", "Empty", "empty", schema.NewField("x", schema.FieldTypeText))
	_, err := NewBuilder(WithWidgets(widgets.NewEmptyRegistry())).BuildForm(form)
	assert.ErrorContains(t, err, "no mappable fields")

	_, err = NewBuilder().BuildForm(schema.FormSpec{})
	assert.Error(t, err)
}

func TestBuildForm_SanitizesMarkup(t *testing.T) {
	form := schema.NewForm("note", "<i>Note</i>", "note",
		schema.NewField("body", schema.FieldTypeText, schema.WithLabel(`Body<script>alert(1)</script>`)),
	)
	form.Description = `Internal <img src=x onerror=alert(1)>notes`

	artifact, err := NewBuilder().BuildForm(form)
	require.NoError(t, err)

	assert.Equal(t, "Note", props(artifact.Tree)["name"])
	assert.NotContains(t, props(artifact.Tree)["description"], "onerror")
	assert.Equal(t, "Body", props(elementsOf(t, artifact.Tree)[0])["label"])

	codes := map[string]int{}
	for _, w := range artifact.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 3, codes[builder.WarnMarkupSanitized])
}
