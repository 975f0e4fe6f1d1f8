package schema

import (
	"strings"
)

// DefaultKind distinguishes literal defaults from the closed set of symbolic
// defaults resolved by the target platform at runtime.
type DefaultKind int

const (
	DefaultLiteral DefaultKind = iota
	DefaultUUID
	DefaultCurrentUser
	DefaultCurrentTimestamp
	DefaultCurrentDate
)

// Symbolic default tags as written in canonical documents.
const (
	TagUUID             = "$uuid"
	TagCurrentUser      = "$current_user"
	TagCurrentTimestamp = "$current_timestamp"
	TagCurrentDate      = "$current_date"
)

var defaultTags = map[DefaultKind]string{
	DefaultUUID:             TagUUID,
	DefaultCurrentUser:      TagCurrentUser,
	DefaultCurrentTimestamp: TagCurrentTimestamp,
	DefaultCurrentDate:      TagCurrentDate,
}

// defaultAliases maps lower-cased tags and human phrases to their kind.
var defaultAliases = map[string]DefaultKind{
	TagUUID:              DefaultUUID,
	"generate unique id": DefaultUUID,
	"unique id":          DefaultUUID,
	TagCurrentUser:       DefaultCurrentUser,
	"current user":       DefaultCurrentUser,
	TagCurrentTimestamp:  DefaultCurrentTimestamp,
	"current timestamp":  DefaultCurrentTimestamp,
	"current datetime":   DefaultCurrentTimestamp,
	TagCurrentDate:       DefaultCurrentDate,
	"current date":       DefaultCurrentDate,
	"today":              DefaultCurrentDate,
}

// DefaultValue is either a literal string or a symbolic default.
type DefaultValue struct {
	Kind    DefaultKind
	Literal string
}

// Literal returns a literal default.
func Literal(value string) DefaultValue {
	return DefaultValue{Kind: DefaultLiteral, Literal: value}
}

// Symbolic returns a symbolic default of the given kind.
func Symbolic(kind DefaultKind) DefaultValue {
	return DefaultValue{Kind: kind}
}

// ParseDefault interprets raw as a symbolic tag or phrase (case-insensitive),
// falling back to a literal. Surrounding whitespace is kept for literals.
func ParseDefault(raw string) DefaultValue {
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if kind, ok := defaultAliases[key]; ok {
		return DefaultValue{Kind: kind}
	}
	return DefaultValue{Kind: DefaultLiteral, Literal: raw}
}

// IsZero reports an absent default.
func (d DefaultValue) IsZero() bool {
	return d.Kind == DefaultLiteral && d.Literal == ""
}

// IsSymbolic reports whether d is resolved by the platform at runtime.
func (d DefaultValue) IsSymbolic() bool {
	_, ok := defaultTags[d.Kind]
	return ok
}

// String returns the tag for symbolic defaults and the literal otherwise.
func (d DefaultValue) String() string {
	if tag, ok := defaultTags[d.Kind]; ok {
		return tag
	}
	return d.Literal
}

// MarshalText always writes the tag form for symbolic defaults.
func (d DefaultValue) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts a tag, a human phrase or a literal.
func (d *DefaultValue) UnmarshalText(text []byte) error {
	*d = ParseDefault(string(text))
	return nil
}
