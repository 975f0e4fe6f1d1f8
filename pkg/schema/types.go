package schema

// AppSpec is the root of the canonical description: one application made of
// one or more forms.
type AppSpec struct {
	Version  string     `json:"version" yaml:"version"`
	Metadata Metadata   `json:"metadata" yaml:"metadata"`
	Forms    []FormSpec `json:"forms" yaml:"forms"`
}

// Metadata identifies the target application on the remote platform.
type Metadata struct {
	AppID   string `json:"app_id" yaml:"app_id"`
	AppName string `json:"app_name,omitempty" yaml:"app_name,omitempty"`
}

// FormSpec describes one data-entry form backed by one table.
type FormSpec struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Table       string      `json:"table" yaml:"table"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
	Indexes     []IndexSpec `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

// FieldSpec describes a single input.
type FieldSpec struct {
	ID          string         `json:"id" yaml:"id"`
	Type        FieldType      `json:"type" yaml:"type"`
	Label       string         `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string         `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default     DefaultValue   `json:"default,omitempty" yaml:"default,omitempty"`
	Size        int            `json:"size,omitempty" yaml:"size,omitempty"`
	Required    bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Unique      bool           `json:"unique,omitempty" yaml:"unique,omitempty"`
	PrimaryKey  bool           `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	ReadOnly    bool           `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Options     []SelectOption `json:"options,omitempty" yaml:"options,omitempty"`
	References  *ForeignKeyRef `json:"references,omitempty" yaml:"references,omitempty"`
}

// SelectOption is one static choice.
type SelectOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ForeignKeyRef points a choice field at rows of another form.
type ForeignKeyRef struct {
	Form       string `json:"form" yaml:"form"`
	Field      string `json:"field" yaml:"field"`
	LabelField string `json:"label_field,omitempty" yaml:"label_field,omitempty"`
}

// IndexSpec is a secondary index over fields of the same form. Indexes are
// carried through serialization but never deployed.
type IndexSpec struct {
	Fields []string `json:"fields" yaml:"fields,flow"`
	Unique bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Form returns the form with the given id.
func (a *AppSpec) Form(id string) (*FormSpec, bool) {
	if a == nil {
		return nil, false
	}
	for i := range a.Forms {
		if a.Forms[i].ID == id {
			return &a.Forms[i], true
		}
	}
	return nil, false
}

// FormIDs returns form ids in declaration order.
func (a *AppSpec) FormIDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, len(a.Forms))
	for i, form := range a.Forms {
		ids[i] = form.ID
	}
	return ids
}

// Field returns the field with the given id.
func (f *FormSpec) Field(id string) (*FieldSpec, bool) {
	if f == nil {
		return nil, false
	}
	for i := range f.Fields {
		if f.Fields[i].ID == id {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// PrimaryKey returns the first field flagged as primary key.
func (f *FormSpec) PrimaryKey() (*FieldSpec, bool) {
	if f == nil {
		return nil, false
	}
	for i := range f.Fields {
		if f.Fields[i].PrimaryKey {
			return &f.Fields[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers can mutate without touching the
// original.
func (a *AppSpec) Clone() *AppSpec {
	if a == nil {
		return nil
	}
	out := *a
	out.Forms = make([]FormSpec, len(a.Forms))
	for i, form := range a.Forms {
		out.Forms[i] = form.Clone()
	}
	return &out
}

// Clone returns a deep copy of the form.
func (f FormSpec) Clone() FormSpec {
	out := f
	out.Fields = make([]FieldSpec, len(f.Fields))
	for i, field := range f.Fields {
		out.Fields[i] = field.Clone()
	}
	if f.Indexes != nil {
		out.Indexes = make([]IndexSpec, len(f.Indexes))
		for i, idx := range f.Indexes {
			out.Indexes[i] = IndexSpec{Fields: append([]string(nil), idx.Fields...), Unique: idx.Unique}
		}
	}
	return out
}

// Clone returns a deep copy of the field.
func (f FieldSpec) Clone() FieldSpec {
	out := f
	if f.Options != nil {
		out.Options = append([]SelectOption(nil), f.Options...)
	}
	if f.References != nil {
		ref := *f.References
		out.References = &ref
	}
	return out
}
