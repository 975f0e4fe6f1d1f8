package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	csvparser "github.com/goliatone/go-formkit/internal/parser/csv"
	"github.com/goliatone/go-formkit/internal/parser/identity"
	"github.com/goliatone/go-formkit/internal/parser/markdown"
	openapiparser "github.com/goliatone/go-formkit/internal/parser/openapi"
	"github.com/goliatone/go-formkit/internal/parser/sqlschema"
	"github.com/goliatone/go-formkit/internal/platform/joget"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/parser"
	"github.com/goliatone/go-formkit/pkg/schema"
)

// DefaultPlatform is used when a request names no platform.
const DefaultPlatform = joget.Platform

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithParsers replaces the parser registry. Defaults are not registered into
// a supplied registry.
func WithParsers(reg *parser.Registry) Option {
	return func(o *Orchestrator) {
		o.parsers = reg
	}
}

// WithBuilders replaces the builder registry.
func WithBuilders(reg *builder.Registry) Option {
	return func(o *Orchestrator) {
		o.builders = reg
	}
}

// WithDeployers replaces the deployer factory registry.
func WithDeployers(reg *deployer.Registry) Option {
	return func(o *Orchestrator) {
		o.deployers = reg
	}
}

// WithLogger sets the logger handed to the default parsers, builders and
// deployers.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTableNameLimit configures the default joget builder.
func WithTableNameLimit(limit int) Option {
	return func(o *Orchestrator) {
		o.tableNameLimit = limit
	}
}

// WithMetrics attaches deployer metrics to every deployer the orchestrator
// creates.
func WithMetrics(m *deployer.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// Orchestrator coordinates parse, build and deploy. Registries left unset are
// filled with the built-in implementations.
type Orchestrator struct {
	parsers        *parser.Registry
	builders       *builder.Registry
	deployers      *deployer.Registry
	logger         *zap.Logger
	metrics        *deployer.Metrics
	tableNameLimit int
	initialiseErr  error
}

// New constructs an Orchestrator applying any provided options.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{logger: zap.NewNop()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Parsers exposes the parser registry.
func (o *Orchestrator) Parsers() *parser.Registry { return o.parsers }

// Builders exposes the builder registry.
func (o *Orchestrator) Builders() *builder.Registry { return o.builders }

// Deployers exposes the deployer registry.
func (o *Orchestrator) Deployers() *deployer.Registry { return o.deployers }

// ParseRequest selects a parser and its input.
type ParseRequest struct {
	Input string
	// Parser names the parser. When empty it is detected from the input
	// extension.
	Parser  string
	Options parser.Options
}

// BuildRequest turns an AppSpec into artifacts written to Sink.
type BuildRequest struct {
	App       *schema.AppSpec
	Platform  string
	Sink      builder.Sink
	Overwrite bool
}

// DeployRequest pushes artifacts to a platform.
type DeployRequest struct {
	Platform    string
	Settings    deployer.Settings
	Params      deployer.Params
	Artifacts   []*builder.Artifact
	StopOnError bool
}

// RunRequest chains the three stages. Deploy is skipped when SkipDeploy is
// set.
type RunRequest struct {
	Parse       ParseRequest
	Platform    string
	Sink        builder.Sink
	Overwrite   bool
	SkipDeploy  bool
	Settings    deployer.Settings
	Params      deployer.Params
	StopOnError bool
}

// RunResult collects the output of every stage that ran.
type RunResult struct {
	App    *schema.AppSpec
	Build  *builder.AppResult
	Deploy *deployer.ManyResult
}

// Parse runs the selected parser.
func (o *Orchestrator) Parse(ctx context.Context, req ParseRequest) (*schema.AppSpec, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	if req.Input == "" {
		return nil, &schema.ArgumentError{Arg: "input", Reason: "is required"}
	}

	var (
		p   parser.Parser
		err error
	)
	if req.Parser != "" {
		p, err = o.parsers.Get(req.Parser)
	} else {
		p, err = o.parsers.Detect(req.Input)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	started := time.Now()
	app, err := p.Parse(ctx, req.Input, req.Options)
	if err != nil {
		return nil, err
	}
	o.logger.Info("spec parsed",
		zap.String("parser", p.Name()),
		zap.String("input", req.Input),
		zap.Int("forms", len(app.Forms)),
		zap.Duration("took", time.Since(started)),
	)
	return app, nil
}

// Build runs the platform builder over every form of req.App.
func (o *Orchestrator) Build(ctx context.Context, req BuildRequest) (*builder.AppResult, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	if req.App == nil {
		return nil, &schema.ArgumentError{Arg: "app", Reason: "is required"}
	}
	sink := req.Sink
	if sink == nil {
		sink = builder.NewMemorySink()
	}
	b, err := o.builders.Get(platformOr(req.Platform))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return builder.BuildApp(ctx, b, req.App, sink, builder.AppOptions{
		Overwrite: req.Overwrite,
		Logger:    o.logger,
	})
}

// Deploy creates the platform deployer from req.Settings and sends every
// artifact in order.
func (o *Orchestrator) Deploy(ctx context.Context, req DeployRequest) (*deployer.ManyResult, error) {
	if err := o.ready(ctx); err != nil {
		return nil, err
	}
	settings := req.Settings
	if settings.Logger == nil {
		settings.Logger = o.logger
	}
	if settings.Metrics == nil {
		settings.Metrics = o.metrics
	}
	d, err := o.deployers.New(platformOr(req.Platform), settings)
	if err != nil {
		return nil, err
	}
	return deployer.DeployMany(ctx, d, req.Artifacts, req.Params, deployer.ManyOptions{
		StopOnError: req.StopOnError,
		Logger:      o.logger,
	})
}

// Run parses, builds and (unless SkipDeploy) deploys. The result carries
// every completed stage even when a later one fails. Build errors on single
// forms do not stop the deploy of the forms that did build.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	out := &RunResult{}

	app, err := o.Parse(ctx, req.Parse)
	if err != nil {
		return out, err
	}
	out.App = app

	params := req.Params
	if params.AppID == "" {
		params.AppID = app.Metadata.AppID
	}

	built, err := o.Build(ctx, BuildRequest{
		App:       app,
		Platform:  req.Platform,
		Sink:      req.Sink,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		return out, err
	}
	out.Build = built

	if req.SkipDeploy {
		return out, built.Err()
	}
	if len(built.Artifacts) == 0 {
		return out, errors.Join(built.Err(), errors.New("orchestrator: nothing to deploy"))
	}

	deployed, err := o.Deploy(ctx, DeployRequest{
		Platform:    req.Platform,
		Settings:    req.Settings,
		Params:      params,
		Artifacts:   built.Artifacts,
		StopOnError: req.StopOnError,
	})
	out.Deploy = deployed
	if err != nil {
		return out, err
	}
	return out, errors.Join(built.Err(), deployed.Err())
}

func (o *Orchestrator) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.initialiseErr
}

func platformOr(name string) string {
	if name == "" {
		return DefaultPlatform
	}
	return name
}

func (o *Orchestrator) applyDefaults() {
	if o.parsers == nil {
		o.parsers = parser.NewRegistry()
		for _, p := range []parser.Parser{
			identity.New(identity.WithLogger(o.logger)),
			markdown.New(o.logger),
			csvparser.New(o.logger),
			openapiparser.New(o.logger),
			sqlschema.NewSQLite(o.logger),
			sqlschema.NewPostgres(o.logger),
		} {
			if err := o.parsers.Register(p); err != nil {
				o.initialiseErr = fmt.Errorf("orchestrator: default parsers: %w", err)
				return
			}
		}
	}
	if o.builders == nil {
		o.builders = builder.NewRegistry()
		opts := []joget.Option{joget.WithLogger(o.logger)}
		if o.tableNameLimit > 0 {
			opts = append(opts, joget.WithTableNameLimit(o.tableNameLimit))
		}
		if err := o.builders.Register(joget.NewBuilder(opts...)); err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default builder: %w", err)
			return
		}
	}
	if o.deployers == nil {
		o.deployers = deployer.NewRegistry()
		if err := o.deployers.Register(joget.Platform, joget.NewDeployerFactory()); err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default deployer: %w", err)
		}
	}
}
