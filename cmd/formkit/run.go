package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/internal/report"
	"github.com/goliatone/go-formkit/pkg/builder"
	"github.com/goliatone/go-formkit/pkg/deployer"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		pf          parseFlags
		out         string
		overwrite   bool
		dryRun      bool
		stopOnError bool
		reportPath  string
	)
	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Parse, build and deploy in one go",
		Long: `Run the whole pipeline. Artifacts are written like build does; --dry-run
keeps them in memory and skips the deploy. --report writes a markdown
summary of the spec and of both stages.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch := c.orchestrator()
			req, err := c.parseRequest(ctx, orch, args[0], &pf)
			if err != nil {
				return err
			}

			var sink builder.Sink = builder.NewMemorySink()
			if !dryRun {
				if sink, err = c.sink(ctx, out); err != nil {
					return err
				}
			}

			var (
				settings deployer.Settings
				params   deployer.Params
			)
			if !dryRun {
				if settings, params, err = c.deployTarget(ctx, pf.appID); err != nil {
					return err
				}
			}

			res, runErr := orch.Run(ctx, orchestrator.RunRequest{
				Parse:       req,
				Platform:    c.cfg.Platform,
				Sink:        sink,
				Overwrite:   overwrite || c.cfg.Build.Overwrite,
				SkipDeploy:  dryRun,
				Settings:    settings,
				Params:      params,
				StopOnError: stopOnError,
			})
			if res.Build != nil {
				printBuild(c.out, res.Build)
			}
			printDeploy(c.out, res.Deploy)

			if reportPath != "" && res.App != nil {
				if err := writeReport(reportPath, report.Data{
					App:         res.App,
					Build:       res.Build,
					Deploy:      res.Deploy,
					GeneratedAt: time.Now(),
				}); err != nil {
					return errors.Join(runErr, err)
				}
				fmt.Fprintf(c.out, "report written to %s\n", reportPath)
			}
			return runErr
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default build.output_dir)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "replace existing artifacts")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "build in memory and skip the deploy")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "leave remaining forms unattempted after the first failure")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a markdown report to this file")
	return cmd
}

func writeReport(path string, data report.Data) error {
	r, err := report.New(reportGlobals())
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
