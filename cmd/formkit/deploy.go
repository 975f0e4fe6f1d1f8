package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/pkg/orchestrator"
)

func newDeployCmd(c *cli) *cobra.Command {
	var stopOnError bool
	cmd := &cobra.Command{
		Use:   "deploy <artifact.json|dir>...",
		Short: "Push built artifacts to the form creator",
		Long: `Deploy artifacts one at a time, in order. Directories contribute their
*.json files sorted by name. Server errors are retried per retry.max_attempts
and retry.delay; authentication and missing-endpoint errors are not.

Examples:
  formkit deploy build/
  formkit deploy build/customer.json --stop-on-error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			artifacts, err := readArtifacts(c.cfg.Platform, args)
			if err != nil {
				return err
			}
			settings, params, err := c.deployTarget(ctx, "")
			if err != nil {
				return err
			}
			res, err := c.orchestrator().Deploy(ctx, orchestrator.DeployRequest{
				Platform:    c.cfg.Platform,
				Settings:    settings,
				Params:      params,
				Artifacts:   artifacts,
				StopOnError: stopOnError,
			})
			printDeploy(c.out, res)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deployed %d of %d form(s)\n", len(res.Successful), len(artifacts))
			return res.Err()
		},
	}
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "leave remaining forms unattempted after the first failure")
	return cmd
}
