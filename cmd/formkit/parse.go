package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/schema"
	"github.com/goliatone/go-formkit/pkg/validation"
)

func newParseCmd(c *cli) *cobra.Command {
	var (
		pf     parseFlags
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "parse <input>",
		Short: "Parse an input into a canonical spec",
		Long: `Parse an input with the parser detected from its extension (or --parser)
and print the canonical spec. With --output the spec is written to a .yaml,
.yml or .json file instead.

Database parsers take a DSN or file path as input:
  formkit parse crm.db --set tables=customer
  formkit parse "postgres://user@localhost/crm" --parser postgres`,
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
			if output != "" {
				if err := validation.Serialize(app, output); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "wrote %s (%d forms)\n", output, len(app.Forms))
				return nil
			}
			data, err := validation.Marshal(app, schema.Format(format))
			if err != nil {
				return err
			}
			_, err = c.out.Write(data)
			return err
		},
	}
	pf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the spec to this .yaml/.yml/.json file")
	cmd.Flags().StringVar(&format, "format", string(schema.FormatYAML), "stdout format: yaml or json")
	return cmd
}
