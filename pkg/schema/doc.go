// Package schema defines the canonical, platform-independent description of an
// application: an AppSpec made of FormSpecs made of FieldSpecs. Parsers produce
// it, the validation package decodes and serializes it, and platform builders
// consume it read-only.
//
// Values are meant to be produced through NewAppSpec (or the validation
// package), which normalizes derived attributes and rejects any instance that
// violates a constraint with a *SchemaValidationError listing every issue.
package schema
