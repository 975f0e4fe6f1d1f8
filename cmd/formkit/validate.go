package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/validation"
)

func newValidateCmd(c *cli) *cobra.Command {
	var (
		strict     bool
		jsonSchema bool
	)
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a canonical YAML/JSON spec",
		Long: `Validate a canonical spec file and list every violation as
"<path>: <message>". --json-schema additionally checks the raw document
against the published JSON Schema.

Examples:
  formkit validate app.yaml
  formkit validate app.json --strict --json-schema`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			raw, err := validation.LoadRawFile(cmd.Context(), path)
			if err != nil {
				return err
			}

			problems := validation.Check(raw, validation.Options{
				Input:            path,
				StrictReferences: strict || c.cfg.Parser.StrictReferences,
				Logger:           c.logger,
			})
			if jsonSchema {
				if err := validation.ValidateDocument(raw); err != nil {
					problems = append(problems, err.Error())
				}
			}
			if len(problems) > 0 {
				for _, p := range problems {
					fmt.Fprintf(c.out, "  x %s\n", p)
				}
				return fmt.Errorf("%s: %d problem(s)", path, len(problems))
			}

			app, err := validation.Validate(raw, validation.Options{Input: path, Logger: c.logger})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s is valid: app %s, %d form(s)\n", path, app.Metadata.AppID, len(app.Forms))
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat references to undeclared forms as errors")
	cmd.Flags().BoolVar(&jsonSchema, "json-schema", false, "also validate against the document JSON Schema")
	return cmd
}

func newSchemaCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of the canonical document",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			data, err := validation.DocumentSchemaJSON()
			if err != nil {
				return err
			}
			_, err = c.out.Write(data)
			return err
		},
	}
}
