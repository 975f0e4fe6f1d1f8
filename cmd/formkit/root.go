package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
	"github.com/goliatone/go-formkit/internal/prompt"
	"github.com/goliatone/go-formkit/internal/storage/s3sink"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/config"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
	"github.com/goliatone/go-formkit/pkg/parser"
)

// cli carries global flags and the state every subcommand shares.
type cli struct {
	cfgFile     string
	logLevel    string
	interactive bool

	out    io.Writer
	errOut io.Writer
	driver prompt.Driver
	logger *zap.Logger

	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *deployer.Metrics
}

func newRootCmd(c *cli) *cobra.Command {
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.errOut == nil {
		c.errOut = os.Stderr
	}

	root := &cobra.Command{
		Use:   "formkit",
		Short: "Turn form descriptions into platform form definitions and deploy them",
		Long: `formkit reads markdown tables, CSV headers, canonical YAML/JSON, OpenAPI
component schemas or live database tables, builds one platform form
definition per form and pushes it to the remote form creator.

Quick start:
  formkit validate app.yaml         # check a canonical spec
  formkit build app.md --out build  # write <formId>.json artifacts
  formkit deploy build/             # push artifacts to the server
  formkit run app.md                # parse, build and deploy
  formkit sandbox                   # local form creator for rehearsals`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.teardown()
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.cfgFile, "config", "c", "formkit.yaml", "config file path (falls back to FORMKIT_* variables when absent)")
	flags.StringVar(&c.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.BoolVarP(&c.interactive, "interactive", "i", false, "prompt for settings the configuration leaves empty")

	root.AddCommand(
		newParseCmd(c),
		newValidateCmd(c),
		newSchemaCmd(c),
		newBuildCmd(c),
		newDeployCmd(c),
		newRunCmd(c),
		newReportCmd(c),
		newSandboxCmd(c),
	)
	return root
}

func (c *cli) setup(*cobra.Command, []string) error {
	cfg, err := config.LoadWithFallback(c.cfgFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.cfg = cfg

	if c.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		c.logger = logger
	}

	if cfg.Metrics.Enabled {
		c.registry = prometheus.NewRegistry()
		metrics, err := deployer.NewMetrics(c.registry)
		if err != nil {
			return err
		}
		c.metrics = metrics
	}
	if c.interactive && c.driver == nil {
		c.driver = prompt.NewSurveyDriver()
	}
	return nil
}

func (c *cli) teardown() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(c.cfg.Metrics.Textfile, c.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func (c *cli) orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(
		orchestrator.WithLogger(c.logger),
		orchestrator.WithTableNameLimit(c.cfg.Build.TableNameLimit),
		orchestrator.WithMetrics(c.metrics),
	)
}

// parseFlags are shared by every command that reads an input spec.
type parseFlags struct {
	parser   string
	appID    string
	appName  string
	version  string
	formID   string
	formName string
	table    string
	extra    []string
	strict   bool
}

func (f *parseFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.parser, "parser", "p", "", "parser name (detected from the extension when empty)")
	fl.StringVar(&f.appID, "app-id", "", "override the app id")
	fl.StringVar(&f.appName, "app-name", "", "override the app name")
	fl.StringVar(&f.version, "version", "", "override the spec version")
	fl.StringVar(&f.formID, "form-id", "", "override the form id (single-form inputs)")
	fl.StringVar(&f.formName, "form-name", "", "override the form name (single-form inputs)")
	fl.StringVar(&f.table, "table", "", "override the table name (single-form inputs)")
	fl.StringArrayVar(&f.extra, "set", nil, "parser specific key=value setting, e.g. tables=customer,invoice")
	fl.BoolVar(&f.strict, "strict", false, "reject references to forms missing from the result")
}

func (c *cli) parseRequest(ctx context.Context, orch *orchestrator.Orchestrator, input string, f *parseFlags) (orchestrator.ParseRequest, error) {
	extra := make(map[string]string, len(f.extra))
	for _, kv := range f.extra {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return orchestrator.ParseRequest{}, fmt.Errorf("--set %q: expected key=value", kv)
		}
		extra[strings.TrimSpace(key)] = value
	}
	req := orchestrator.ParseRequest{
		Input:  input,
		Parser: f.parser,
		Options: parser.Options{
			AppID:            f.appID,
			AppName:          f.appName,
			Version:          f.version,
			FormID:           f.formID,
			FormName:         f.formName,
			Table:            f.table,
			StrictReferences: f.strict || c.cfg.Parser.StrictReferences,
			Extra:            extra,
		},
	}
	if req.Parser == "" && c.driver != nil {
		if _, err := orch.Parsers().Detect(input); err != nil {
			name, err := prompt.ChooseParser(ctx, c.driver, input, orch.Parsers().List())
			if err != nil {
				return req, err
			}
			req.Parser = name
		}
	}
	return req, nil
}

// sink returns the artifact destination configured by build.storage. dir
// overrides build.output_dir for directory storage.
func (c *cli) sink(ctx context.Context, dir string) (builder.Sink, error) {
	switch c.cfg.Build.Storage {
	case config.StorageS3:
		s3 := c.cfg.Build.S3
		return s3sink.NewFromOptions(ctx, s3sink.Options{
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			PathStyle: s3.PathStyle,
		})
	default:
		if dir == "" {
			dir = c.cfg.Build.OutputDir
		}
		return builder.NewDirSink(dir), nil
	}
}

// deployTarget finalises deploy settings, prompting for missing values in
// interactive mode.
func (c *cli) deployTarget(ctx context.Context, fallbackAppID string) (deployer.Settings, deployer.Params, error) {
	if c.driver != nil {
		if err := prompt.FillDeploy(ctx, c.driver, c.cfg, fallbackAppID); err != nil {
			return deployer.Settings{}, deployer.Params{}, err
		}
	}
	if err := c.cfg.ValidateDeploy(); err != nil {
		return deployer.Settings{}, deployer.Params{}, err
	}
	cfg := c.cfg
	delay := cfg.Retry.Delay
	if delay == 0 {
		delay = deployer.NoRetryDelay
	}
	settings := deployer.Settings{
		BaseURL:         cfg.Server.BaseURL,
		APIKey:          cfg.Server.APIKey,
		CreatorPath:     cfg.Server.CreatorPath,
		RefererTemplate: cfg.Server.RefererTemplate,
		Timeout:         cfg.Server.Timeout,
		Retry: deployer.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       delay,
		},
		Logger:  c.logger,
		Metrics: c.metrics,
	}
	params := deployer.Params{
		AppID:             cfg.App.AppID,
		AppVersion:        cfg.App.AppVersion,
		APIID:             cfg.Server.APIID,
		CreateAPIEndpoint: cfg.App.CreateAPIEndpoint,
		APIName:           cfg.App.APIName,
		CreateCRUD:        cfg.App.CreateCRUD,
	}
	return settings, params, nil
}

// readArtifacts loads artifacts from files and directories; directories
// contribute their *.json files in name order.
func readArtifacts(platform string, paths []string) ([]*builder.Artifact, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no artifacts found in %s", strings.Join(paths, ", "))
	}

	out := make([]*builder.Artifact, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		a, err := builder.ParseArtifact(platform, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func printBuild(w io.Writer, res *builder.AppResult) {
	for _, loc := range res.Created {
		fmt.Fprintf(w, "  created  %s\n", loc)
	}
	for _, loc := range res.Skipped {
		fmt.Fprintf(w, "  skipped  %s (exists)\n", loc)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  warning  %s\n", warn.Error())
	}
	for _, err := range res.Errors {
		fmt.Fprintf(w, "  error    %s\n", err.Error())
	}
}

func printDeploy(w io.Writer, res *deployer.ManyResult) {
	if res == nil {
		return
	}
	for _, r := range res.Results {
		fmt.Fprintf(w, "  %-8s %s (attempts %d, status %d)\n", strings.ToLower(string(r.State)), r.FormID, r.Attempts, r.StatusCode)
	}
	for _, id := range res.Skipped {
		fmt.Fprintf(w, "  skipped  %s\n", id)
	}
}
