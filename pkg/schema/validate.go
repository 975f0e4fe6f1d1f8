package schema

import (
	"fmt"
	"regexp"

	"github.com/goliatone/go-formkit/internal/naming"
)

var versionPattern = regexp.MustCompile(`^v?\d+(\.\d+){0,2}([-+][0-9A-Za-z.-]+)?$`)

// CheckOptions tunes constraint checking.
type CheckOptions struct {
	// StrictReferences turns references to forms absent from the AppSpec into
	// violations instead of advisory warnings.
	StrictReferences bool
}

// Validate checks every constraint and returns a *SchemaValidationError
// listing all of them, or nil. References to unknown forms are advisory.
func (a *AppSpec) Validate() error {
	return a.ValidateWith(CheckOptions{})
}

// ValidateWith is Validate with explicit options.
func (a *AppSpec) ValidateWith(opts CheckOptions) error {
	issues := a.Violations(opts)
	if len(issues) == 0 {
		return nil
	}
	input := ""
	if a != nil {
		input = a.Metadata.AppID
	}
	return &SchemaValidationError{Input: input, Issues: issues}
}

// Violations returns every violated constraint in document order.
func (a *AppSpec) Violations(opts CheckOptions) Issues {
	if a == nil {
		return Issues{{Path: "", Rule: RuleRequired, Message: "app spec is nil"}}
	}
	var issues Issues
	add := func(path, rule, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case a.Version == "":
		add("version", RuleRequired, "version is required")
	case !versionPattern.MatchString(a.Version):
		add("version", RulePattern, "version %q is not semver-like", a.Version)
	}

	switch {
	case a.Metadata.AppID == "":
		add("metadata.app_id", RuleRequired, "app_id is required")
	case !naming.IsIdentifier(a.Metadata.AppID):
		add("metadata.app_id", RulePattern, "app_id %q must start with a letter and contain only letters, digits and underscores", a.Metadata.AppID)
	}

	if len(a.Forms) == 0 {
		add("forms", emptyRule(a.Forms), "at least one form is required")
	}

	seenForms := make(map[string]int, len(a.Forms))
	for i := range a.Forms {
		form := &a.Forms[i]
		base := fmt.Sprintf("forms[%d]", i)
		if form.ID != "" {
			if first, dup := seenForms[form.ID]; dup {
				add(base+".id", RuleDuplicate, "form id %q already used by forms[%d]", form.ID, first)
			} else {
				seenForms[form.ID] = i
			}
		}
		issues = append(issues, form.violations(base)...)
	}

	if opts.StrictReferences {
		issues = append(issues, UnresolvedReferences(a)...)
	}
	return issues
}

// emptyRule is required for an absent collection and invariant for an empty one.
func emptyRule[T any](items []T) string {
	if items == nil {
		return RuleRequired
	}
	return RuleInvariant
}

func (f *FormSpec) violations(base string) Issues {
	var issues Issues
	add := func(path, rule, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case f.ID == "":
		add(base+".id", RuleRequired, "form id is required")
	case !naming.IsIdentifier(f.ID):
		add(base+".id", RulePattern, "form id %q must match ^[A-Za-z][A-Za-z0-9_]*$", f.ID)
	}
	if f.Name == "" {
		add(base+".name", RuleRequired, "form name is required")
	}
	if f.Table == "" {
		add(base+".table", RuleRequired, "table is required")
	}
	if len(f.Fields) == 0 {
		add(base+".fields", emptyRule(f.Fields), "at least one field is required")
	}

	seen := make(map[string]int, len(f.Fields))
	for i := range f.Fields {
		field := &f.Fields[i]
		path := fmt.Sprintf("%s.fields[%d]", base, i)
		if field.ID != "" {
			if first, dup := seen[field.ID]; dup {
				add(path+".id", RuleDuplicate, "field id %q already used by fields[%d]", field.ID, first)
			} else {
				seen[field.ID] = i
			}
		}
		issues = append(issues, field.violations(path)...)
	}

	for i, idx := range f.Indexes {
		path := fmt.Sprintf("%s.indexes[%d]", base, i)
		if len(idx.Fields) == 0 {
			add(path+".fields", RuleRequired, "index must name at least one field")
		}
		for j, name := range idx.Fields {
			if _, ok := seen[name]; !ok {
				add(fmt.Sprintf("%s.fields[%d]", path, j), RuleReference, "index field %q does not exist in form %q", name, f.ID)
			}
		}
	}
	return issues
}

func (f *FieldSpec) violations(path string) Issues {
	var issues Issues
	add := func(p, rule, format string, args ...any) {
		issues = append(issues, Issue{Path: p, Rule: rule, Message: fmt.Sprintf(format, args...)})
	}

	if f.ID == "" {
		add(path+".id", RuleRequired, "field id is required")
	} else if !naming.IsIdentifier(f.ID) {
		add(path+".id", RulePattern, "field id %q must match ^[A-Za-z][A-Za-z0-9_]*$", f.ID)
	}
	if !f.Type.Valid() {
		if f.Type == FieldTypeInvalid {
			add(path+".type", RuleRequired, "field type is required")
		} else {
			add(path+".type", RuleInvalidEnum, "unknown field type %d", int(f.Type))
		}
	}
	if f.Size < 0 {
		add(path+".size", RuleRange, "size must be >= 0, got %d", f.Size)
	}

	hasOptions := len(f.Options) > 0
	hasRef := f.References != nil
	switch {
	case f.Type == FieldTypeForeignKey && !hasRef:
		add(path+".references", RuleRequired, "FOREIGN_KEY field requires references")
	case f.Type.IsChoice() && hasOptions && hasRef:
		add(path, RuleInvariant, "%s field may set options or references, not both", f.Type)
	case f.Type.Valid() && !f.Type.IsChoice() && (hasOptions || hasRef):
		add(path, RuleInvariant, "%s field cannot carry options or references", f.Type)
	}

	for i, opt := range f.Options {
		if opt.Value == "" {
			add(fmt.Sprintf("%s.options[%d].value", path, i), RuleRequired, "option value is required")
		}
	}
	if hasRef {
		if f.References.Form == "" {
			add(path+".references.form", RuleRequired, "referenced form is required")
		}
		if f.References.Field == "" {
			add(path+".references.field", RuleRequired, "referenced field is required")
		}
	}
	return issues
}

// UnresolvedReferences reports references to forms that are not declared in
// app. The result is advisory unless strict checking is requested.
func UnresolvedReferences(app *AppSpec) Issues {
	if app == nil {
		return nil
	}
	known := make(map[string]struct{}, len(app.Forms))
	for _, form := range app.Forms {
		known[form.ID] = struct{}{}
	}
	var issues Issues
	for i, form := range app.Forms {
		for j, field := range form.Fields {
			if field.References == nil || field.References.Form == "" {
				continue
			}
			if _, ok := known[field.References.Form]; ok {
				continue
			}
			issues = append(issues, Issue{
				Path:    fmt.Sprintf("forms[%d].fields[%d].references.form", i, j),
				Rule:    RuleReference,
				Message: fmt.Sprintf("form %q is not declared in this app", field.References.Form),
			})
		}
	}
	return issues
}

// Normalize fills derived attributes in place: app_name from app_id, field
// labels from ids, option labels from values and label_field from field.
func (a *AppSpec) Normalize() {
	if a == nil {
		return
	}
	if a.Metadata.AppName == "" {
		a.Metadata.AppName = a.Metadata.AppID
	}
	for i := range a.Forms {
		a.Forms[i].Normalize()
	}
}

// Normalize fills derived attributes of every field.
func (f *FormSpec) Normalize() {
	for i := range f.Fields {
		f.Fields[i].Normalize()
	}
}

// Normalize fills the derived attributes of one field.
func (f *FieldSpec) Normalize() {
	if f.Label == "" {
		f.Label = naming.Title(f.ID)
	}
	for i := range f.Options {
		if f.Options[i].Label == "" {
			f.Options[i].Label = f.Options[i].Value
		}
	}
	if f.References != nil && f.References.LabelField == "" {
		f.References.LabelField = f.References.Field
	}
}
