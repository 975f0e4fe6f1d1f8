// Package identity re-reads canonical YAML or JSON documents through the
// validator.
package identity

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// Name is the registry key.
const Name = "identity"

// Parser loads and validates canonical documents.
type Parser struct {
	loader validation.Loader
	logger *zap.Logger
}

// Option customises the parser.
type Option func(*Parser)

// WithLoader swaps the document loader, for example to read from an fs.FS.
func WithLoader(l validation.Loader) Option {
	return func(p *Parser) { p.loader = l }
}

// WithLogger sets the logger used for advisory warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// New constructs the parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

func (p *Parser) Name() string { return Name }

func (p *Parser) Extensions() []string { return []string{".yaml", ".yml", ".json"} }

// Parse loads input (a path or http(s) URL) and validates it strictly.
func (p *Parser) Parse(ctx context.Context, input string, opts parser.Options) (*schema.AppSpec, error) {
	src, err := schema.ParseSource(input)
	if err != nil {
		return nil, &schema.ArgumentError{Input: input, Arg: "input", Reason: err.Error()}
	}

	var data map[string]any
	if p.loader != nil {
		data, err = validation.LoadRawWith(ctx, p.loader, src)
	} else {
		data, err = validation.LoadRaw(ctx, src)
	}
	if err != nil {
		return nil, err
	}

	return validation.Validate(data, validation.Options{
		Input:            input,
		StrictReferences: opts.StrictReferences,
		Logger:           p.logger.With(zap.String("parser", Name)),
	})
}
