package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/prompt"
	"github.com/goliatone/go-formkit/internal/watch"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
)

func newBuildCmd(c *cli) *cobra.Command {
	var (
		pf        parseFlags
		out       string
		overwrite bool
		watching  bool
	)
	cmd := &cobra.Command{
		Use:   "build <input>",
		Short: "Build one platform artifact per form",
		Long: `Parse the input and write <formId>.json for every form to build.output_dir
(or --out), or to S3 when build.storage is s3. Existing artifacts are kept
unless --overwrite is set. --watch rebuilds, overwriting, whenever the input
changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := args[0]
			orch := c.orchestrator()
			sink, err := c.sink(ctx, out)
			if err != nil {
				return err
			}
			overwrite = overwrite || c.cfg.Build.Overwrite
			if !overwrite && !watching && c.driver != nil {
				if overwrite, err = prompt.ConfirmOverwrite(ctx, c.driver, sink.Location("")); err != nil {
					return err
				}
			}

			build := func(ctx context.Context, overwrite bool) error {
				req, err := c.parseRequest(ctx, orch, input, &pf)
				if err != nil {
					return err
				}
				app, err := orch.Parse(ctx, req)
				if err != nil {
					return err
				}
				res, err := orch.Build(ctx, orchestrator.BuildRequest{
					App:       app,
					Platform:  c.cfg.Platform,
					Sink:      sink,
					Overwrite: overwrite,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s: %d form(s)\n", input, len(app.Forms))
				printBuild(c.out, res)
				return res.Err()
			}

			if !watching {
				return build(ctx, overwrite)
			}
			if err := build(ctx, overwrite); err != nil {
				c.logger.Error("initial build failed", zap.Error(err))
			}
			w, err := watch.New([]string{input}, func(ctx context.Context, _ []string) error {
				return build(ctx, true)
			}, watch.Options{Logger: c.logger})
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default build.output_dir)")
	cmd.Flags().BoolVarP(&overwrite, "overwrite", "f", false, "replace existing artifacts")
	cmd.Flags().BoolVarP(&watching, "watch", "w", false, "rebuild when the input changes")
	return cmd
}
