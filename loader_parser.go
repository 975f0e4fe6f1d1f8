package formkit

import (
	"io/fs"
	"time"

	"github.com/goliatone/go-formkit/internal/loader"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/validation"
)

// NewLoader constructs a document loader using the internal implementation
// while keeping the concrete type hidden from consumers. fsys backs
// fs-sourced documents and may be nil; timeout bounds HTTP fetches, which
// are enabled when it is positive.
func NewLoader(fsys fs.FS, timeout time.Duration) validation.Loader {
	return loader.New(loader.Options{
		FileSystem:     fsys,
		AllowHTTP:      timeout > 0,
		RequestTimeout: timeout,
	})
}

// NewParser returns the built-in parser registered under name.
func NewParser(name string) (parser.Parser, error) {
	return orchestrator.New().Parsers().Get(name)
}
