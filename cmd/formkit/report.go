package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/internal/report"
	"github.com/goliatone/go-formkit/pkg/orchestrator"
)

func newReportCmd(c *cli) *cobra.Command {
	var (
		pf        parseFlags
		output    string
		templates string
		name      string
		withBuild bool
	)
	cmd := &cobra.Command{
		Use:   "report <input>",
		Short: "Summarise a spec as markdown",
		Long: `Render a markdown summary of the forms, fields and indexes of the input.
--build includes the warnings of an in-memory build. --templates and
--template select a replacement pongo2 template.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			orch := c.orchestrator()
			req, err := c.parseRequest(ctx, orch, args[0], &pf)
			if err != nil {
				return err
			}
			app, err := orch.Parse(ctx, req)
			if err != nil {
				return err
			}
			data := report.Data{App: app, GeneratedAt: time.Now()}
			if withBuild {
				if data.Build, err = orch.Build(ctx, orchestrator.BuildRequest{App: app, Platform: c.cfg.Platform}); err != nil {
					return err
				}
			}

			opts := []report.Option{reportGlobals()}
			if templates != "" {
				opts = append(opts, report.WithTemplatesFS(os.DirFS(templates), name))
			}
			r, err := report.New(opts...)
			if err != nil {
				return err
			}
			if output == "" {
				return r.Render(c.out, data)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := r.Render(f, data); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&withBuild, "build", false, "include build warnings")
	cmd.Flags().StringVar(&templates, "templates", "", "directory holding a replacement template")
	cmd.Flags().StringVar(&name, "template", report.DefaultTemplate, "template file name inside --templates")
	return cmd
}

func reportGlobals() report.Option {
	return report.WithGlobalData(map[string]any{"generator": "formkit"})
}
