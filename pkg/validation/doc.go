// Package validation loads canonical documents into generic data, decodes and
// validates them into *schema.AppSpec values, and serializes specs back to
// YAML or JSON.
//
// Validate is the strict entry point: it returns a *schema.SchemaValidationError
// carrying every violation (wrong types, unknown keys, enum values outside the
// closed sets and structural invariants). Check runs the same pipeline and
// returns the violations as "<path>: <message>" strings instead.
package validation
