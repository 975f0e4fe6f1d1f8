package schema

// NewAppSpec assembles, normalizes and validates an AppSpec. It never returns
// a spec that violates a constraint.
func NewAppSpec(version string, meta Metadata, forms ...FormSpec) (*AppSpec, error) {
	app := &AppSpec{
		Version:  version,
		Metadata: meta,
		Forms:    append([]FormSpec(nil), forms...),
	}
	app.Normalize()
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return app, nil
}

// NewForm is a convenience constructor for a FormSpec.
func NewForm(id, name, table string, fields ...FieldSpec) FormSpec {
	return FormSpec{
		ID:     id,
		Name:   name,
		Table:  table,
		Fields: append([]FieldSpec(nil), fields...),
	}
}

// FieldOption customises a FieldSpec built by NewField.
type FieldOption func(*FieldSpec)

// NewField builds a FieldSpec of the given type.
func NewField(id string, typ FieldType, opts ...FieldOption) FieldSpec {
	field := FieldSpec{ID: id, Type: typ}
	for _, opt := range opts {
		if opt != nil {
			opt(&field)
		}
	}
	return field
}

// WithLabel sets the display label.
func WithLabel(label string) FieldOption {
	return func(f *FieldSpec) { f.Label = label }
}

// WithPlaceholder sets the placeholder text.
func WithPlaceholder(placeholder string) FieldOption {
	return func(f *FieldSpec) { f.Placeholder = placeholder }
}

// WithDefault sets the default value.
func WithDefault(value DefaultValue) FieldOption {
	return func(f *FieldSpec) { f.Default = value }
}

// WithSize sets the maximum length.
func WithSize(size int) FieldOption {
	return func(f *FieldSpec) { f.Size = size }
}

// Required marks the field mandatory.
func Required() FieldOption {
	return func(f *FieldSpec) { f.Required = true }
}

// Unique marks the field unique.
func Unique() FieldOption {
	return func(f *FieldSpec) { f.Unique = true }
}

// PrimaryKey marks the field as the form's primary key. Primary keys are
// always required.
func PrimaryKey() FieldOption {
	return func(f *FieldSpec) {
		f.PrimaryKey = true
		f.Required = true
	}
}

// ReadOnly marks the field read-only.
func ReadOnly() FieldOption {
	return func(f *FieldSpec) { f.ReadOnly = true }
}

// WithOptions sets static choices.
func WithOptions(options ...SelectOption) FieldOption {
	return func(f *FieldSpec) { f.Options = append([]SelectOption(nil), options...) }
}

// WithReference points the field at another form.
func WithReference(form, field, labelField string) FieldOption {
	return func(f *FieldSpec) {
		f.References = &ForeignKeyRef{Form: form, Field: field, LabelField: labelField}
	}
}
