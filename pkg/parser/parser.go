// Package parser defines the contract every input format implements to
// produce a canonical *schema.AppSpec, plus a name-keyed registry used to pick
// one by name or by file extension.
package parser

import (
	"context"
	"errors"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Parser turns one input into a validated AppSpec. Implementations return
// *schema.NotFoundError, *schema.ParseError, *schema.ArgumentError or
// *schema.SchemaValidationError and never a partial spec.
type Parser interface {
	Name() string
	// Extensions lists the lower-case file extensions (with the dot) the
	// parser claims for Detect.
	Extensions() []string
	Parse(ctx context.Context, input string, opts Options) (*schema.AppSpec, error)
}

// Options carries caller-supplied overrides. Which fields apply depends on
// the parser; unused fields are ignored.
type Options struct {
	AppID    string
	AppName  string
	Version  string
	FormID   string
	FormName string
	Table    string
	// StrictReferences rejects references to forms absent from the result.
	StrictReferences bool
	// Extra holds parser-specific settings, for example "tables" for the
	// database parsers or "schemas" for openapi.
	Extra map[string]string
}

// DefaultVersion is used when neither the input nor Options name a version.
const DefaultVersion = "1.0.0"

// VersionOr returns o.Version, falling back to fallback and then to
// DefaultVersion.
func (o Options) VersionOr(fallback string) string {
	switch {
	case o.Version != "":
		return o.Version
	case fallback != "":
		return fallback
	default:
		return DefaultVersion
	}
}

// ExtraValue returns Extra[key] or "".
func (o Options) ExtraValue(key string) string {
	if o.Extra == nil {
		return ""
	}
	return o.Extra[key]
}

// Finish normalizes and validates an assembled spec on behalf of parsers.
func Finish(app *schema.AppSpec, input string, opts Options) (*schema.AppSpec, error) {
	app.Normalize()
	if err := app.ValidateWith(schema.CheckOptions{StrictReferences: opts.StrictReferences}); err != nil {
		var verr *schema.SchemaValidationError
		if errors.As(err, &verr) {
			verr.Input = input
		}
		return nil, err
	}
	return app, nil
}
