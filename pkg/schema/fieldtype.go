package schema

import (
	"fmt"
	"strings"
)

// FieldType is the closed set of canonical field kinds. The zero value is
// invalid so a missing type never silently decodes as TEXT.
type FieldType int

const (
	FieldTypeInvalid FieldType = iota
	FieldTypeText
	FieldTypeTextArea
	FieldTypeNumber
	FieldTypeSelect
	FieldTypeRadio
	FieldTypeCheckbox
	FieldTypeDate
	FieldTypeDateTime
	FieldTypeTime
	FieldTypeFile
	FieldTypeForeignKey
	FieldTypeHidden
)

var fieldTypeNames = [...]string{
	FieldTypeInvalid:    "",
	FieldTypeText:       "TEXT",
	FieldTypeTextArea:   "TEXTAREA",
	FieldTypeNumber:     "NUMBER",
	FieldTypeSelect:     "SELECT",
	FieldTypeRadio:      "RADIO",
	FieldTypeCheckbox:   "CHECKBOX",
	FieldTypeDate:       "DATE",
	FieldTypeDateTime:   "DATETIME",
	FieldTypeTime:       "TIME",
	FieldTypeFile:       "FILE",
	FieldTypeForeignKey: "FOREIGN_KEY",
	FieldTypeHidden:     "HIDDEN",
}

// FieldTypes lists every valid field type in declaration order.
func FieldTypes() []FieldType {
	out := make([]FieldType, 0, len(fieldTypeNames)-1)
	for t := FieldTypeText; t <= FieldTypeHidden; t++ {
		out = append(out, t)
	}
	return out
}

// FieldTypeNames returns the string tags of every valid field type.
func FieldTypeNames() []string {
	types := FieldTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}

// String returns the canonical tag (TEXT, FOREIGN_KEY, ...).
func (t FieldType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
	return fieldTypeNames[t]
}

// Valid reports whether t belongs to the closed set.
func (t FieldType) Valid() bool {
	return t > FieldTypeInvalid && int(t) < len(fieldTypeNames)
}

// IsChoice reports whether the type offers a set of values to pick from and
// may therefore carry options or references.
func (t FieldType) IsChoice() bool {
	switch t {
	case FieldTypeSelect, FieldTypeRadio, FieldTypeCheckbox, FieldTypeForeignKey:
		return true
	default:
		return false
	}
}

// ParseFieldType decodes a tag against the closed set. Matching ignores case
// and surrounding whitespace; hyphens and spaces are read as underscores.
func ParseFieldType(raw string) (FieldType, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if key == "" {
		return FieldTypeInvalid, fmt.Errorf("schema: field type is empty")
	}
	for t := FieldTypeText; t <= FieldTypeHidden; t++ {
		if fieldTypeNames[t] == key {
			return t, nil
		}
	}
	return FieldTypeInvalid, fmt.Errorf("schema: unknown field type %q (want one of %s)", raw, strings.Join(FieldTypeNames(), ", "))
}

// MarshalText encodes the type as its string tag.
func (t FieldType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("schema: cannot encode invalid field type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a string tag, rejecting values outside the set.
func (t *FieldType) UnmarshalText(text []byte) error {
	parsed, err := ParseFieldType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
