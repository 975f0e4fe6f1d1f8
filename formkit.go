// Package formkit turns markdown, CSV, YAML, OpenAPI or live database
// descriptions of data-entry forms into platform form definitions and pushes
// them to the remote form creator. The root package re-exports the common
// entry points; pkg/orchestrator holds the pipeline itself.
package formkit

import (
	"context"
	"io"
	"io/fs"

	"github.com/goliatone/go-formkit/internal/report"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// AppSpec aliases the canonical application spec.
type AppSpec = schema.AppSpec

// FormSpec aliases the canonical form spec.
type FormSpec = schema.FormSpec

// FieldSpec aliases the canonical field spec.
type FieldSpec = schema.FieldSpec

// ParseOptions carries parser overrides.
type ParseOptions = parser.Options

// Artifact is a built platform form definition.
type Artifact = builder.Artifact

// DeployParams describe where an artifact is deployed.
type DeployParams = deployer.Params

// DeploySettings configure a platform deployer.
type DeploySettings = deployer.Settings

// ReportData is what Report summarises.
type ReportData = report.Data

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// Parse reads input with the parser detected from its extension, or the one
// named by parserName.
func Parse(ctx context.Context, input, parserName string, opts ParseOptions, options ...orchestrator.Option) (*AppSpec, error) {
	return orchestrator.New(options...).Parse(ctx, orchestrator.ParseRequest{
		Input:   input,
		Parser:  parserName,
		Options: opts,
	})
}

// BuildToDir parses input and writes one artifact per form into dir.
func BuildToDir(ctx context.Context, input, dir string, overwrite bool, options ...orchestrator.Option) (*builder.AppResult, error) {
	orch := orchestrator.New(options...)
	app, err := orch.Parse(ctx, orchestrator.ParseRequest{Input: input})
	if err != nil {
		return nil, err
	}
	return orch.Build(ctx, orchestrator.BuildRequest{
		App:       app,
		Sink:      builder.NewDirSink(dir),
		Overwrite: overwrite,
	})
}

// Deploy sends already built artifacts to the default platform.
func Deploy(ctx context.Context, artifacts []*Artifact, settings DeploySettings, params DeployParams, options ...orchestrator.Option) (*deployer.ManyResult, error) {
	return orchestrator.New(options...).Deploy(ctx, orchestrator.DeployRequest{
		Settings:  settings,
		Params:    params,
		Artifacts: artifacts,
	})
}

// Report writes the markdown summary of data to w. templates and name
// select a replacement template; pass nil to use the built-in one.
func Report(w io.Writer, data ReportData, templates fs.FS, name string) error {
	r, err := report.New(report.WithTemplatesFS(templates, name))
	if err != nil {
		return err
	}
	return r.Render(w, data)
}
