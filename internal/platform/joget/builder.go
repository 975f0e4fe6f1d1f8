// Package joget targets Joget DX: it builds form definition JSON from
// canonical forms and deploys it through the form creator API.
package joget

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/sanitize"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/widgets"
)

// Platform is the name both the builder and the deployer register under.
const Platform = "joget"

// Class names understood by the platform.
const (
	ClassForm          = "org.joget.apps.form.model.Form"
	ClassSection       = "org.joget.apps.form.model.Section"
	ClassColumn        = "org.joget.apps.form.model.Column"
	ClassTextField     = "org.joget.apps.form.lib.TextField"
	ClassTextArea      = "org.joget.apps.form.lib.TextArea"
	ClassSelectBox     = "org.joget.apps.form.lib.SelectBox"
	ClassRadio         = "org.joget.apps.form.lib.Radio"
	ClassCheckBox      = "org.joget.apps.form.lib.CheckBox"
	ClassDatePicker    = "org.joget.apps.form.lib.DatePicker"
	ClassFileUpload    = "org.joget.apps.form.lib.FileUpload"
	ClassHiddenField   = "org.joget.apps.form.lib.HiddenField"
	ClassDefaultValid  = "org.joget.apps.form.lib.DefaultValidator"
	ClassDuplicateVal  = "org.joget.plugin.enterprise.DuplicateValueValidator"
	ClassMultiValid    = "org.joget.plugin.enterprise.MultiValidator"
	ClassOptionsBinder = "org.joget.apps.form.lib.FormOptionsBinder"
	ClassFormBinder    = "org.joget.apps.form.lib.WorkflowFormBinder"
)

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for build warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithWidgets replaces the widget registry used to pick an element per field.
// Widgets the registry resolves to but the builder has no element for are
// reported as unmapped.
func WithWidgets(reg *widgets.Registry) Option {
	return func(b *Builder) {
		if reg != nil {
			b.widgets = reg
		}
	}
}

// WithTableNameLimit overrides the table name length that triggers a
// warning. Non-positive values keep the default.
func WithTableNameLimit(limit int) Option {
	return func(b *Builder) {
		if limit > 0 {
			b.tableLimit = limit
		}
	}
}

// Builder produces Joget form definitions.
type Builder struct {
	logger     *zap.Logger
	widgets    *widgets.Registry
	tableLimit int
}

// NewBuilder constructs a builder with the built-in widget registry.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		logger:     zap.NewNop(),
		widgets:    widgets.NewRegistry(),
		tableLimit: builder.DefaultTableNameLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *Builder) Platform() string { return Platform }

// BuildForm maps form onto a Form > Section > Column tree with one element
// per field, in field order. Fields without an element are omitted and
// reported as warnings; a form left with no elements is an error.
func (b *Builder) BuildForm(form schema.FormSpec) (*builder.Artifact, error) {
	if form.ID == "" {
		return nil, fmt.Errorf("joget: form id is required")
	}

	asm := &assembly{form: form}
	if w, ok := builder.CheckTableName(form, b.tableLimit); ok {
		asm.warnings = append(asm.warnings, w)
	}

	elements := make([]any, 0, len(form.Fields))
	for _, field := range form.Fields {
		widget, ok := b.widgets.Resolve(field)
		build, known := elementBuilders[widget]
		if !ok || !known {
			asm.warn(field.ID, builder.WarnUnmappedFieldType,
				fmt.Sprintf("no element for field type %s (widget %q), field omitted", field.Type, widget))
			continue
		}
		elements = append(elements, build(asm, field))
	}
	if len(elements) == 0 {
		return nil, fmt.Errorf("joget: form %s has no mappable fields", form.ID)
	}

	tree := asm.formTree(elements)
	for _, w := range asm.warnings {
		b.logger.Warn("build warning",
			zap.String("form", w.FormID),
			zap.String("field", w.Field),
			zap.String("code", w.Code),
			zap.String("message", w.Message),
		)
	}

	return &builder.Artifact{
		FormID:   form.ID,
		Platform: Platform,
		Tree:     tree,
		Warnings: asm.warnings,
	}, nil
}

// assembly carries per-form state while elements are built.
type assembly struct {
	form     schema.FormSpec
	warnings []builder.BuildWarning
}

func (a *assembly) warn(field, code, message string) {
	a.warnings = append(a.warnings, builder.BuildWarning{
		FormID:  a.form.ID,
		Field:   field,
		Code:    code,
		Message: message,
	})
}

// text strips markup from a user-authored string, noting when it had any.
func (a *assembly) text(field, what, raw string) string {
	clean, changed := sanitize.Text(raw)
	if changed {
		a.warn(field, builder.WarnMarkupSanitized, fmt.Sprintf("markup removed from %s", what))
	}
	return clean
}

func (a *assembly) formTree(elements []any) map[string]any {
	table := a.form.Table
	if table == "" {
		table = a.form.ID
	}
	description, changed := sanitize.Markup(a.form.Description)
	if changed {
		a.warn("", builder.WarnMarkupSanitized, "unsafe markup removed from description")
	}

	column := map[string]any{
		"className": ClassColumn,
		"elements":  elements,
		"properties": map[string]any{
			"width": "100%",
		},
	}
	section := map[string]any{
		"className": ClassSection,
		"elements":  []any{column},
		"properties": map[string]any{
			"id":                "section1",
			"label":             "",
			"comment":           "",
			"readonly":          "",
			"readonlyLabel":     "",
			"visibilityControl": "",
			"visibilityValue":   "",
			"permission":        plugin("", nil),
		},
	}
	return map[string]any{
		"className": ClassForm,
		"elements":  []any{section},
		"properties": map[string]any{
			"id":                  a.form.ID,
			"name":                a.text("", "form name", a.form.Name),
			"description":         description,
			"tableName":           table,
			"loadBinder":          plugin(ClassFormBinder, nil),
			"storeBinder":         plugin(ClassFormBinder, nil),
			"permission":          plugin("", nil),
			"postProcessor":       plugin("", nil),
			"noPermissionMessage": "",
			"postProcessorRunOn":  "create",
		},
	}
}

// plugin is the {className, properties} pair used for every pluggable slot.
func plugin(className string, properties map[string]any) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	return map[string]any{
		"className":  className,
		"properties": properties,
	}
}
