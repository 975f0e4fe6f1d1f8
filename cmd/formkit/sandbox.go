package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formkit/internal/sandbox"
)

func newSandboxCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a local form creator for rehearsals",
		Long: `Start an HTTP server that accepts form creator requests the way the
remote server does: it checks the api_id/api_key headers and the userview
Referer, stores each form it receives and exposes them under /sandbox/forms.
Point server.base_url at http://<addr>/jw to deploy against it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = c.cfg.Sandbox.Addr
			}
			sb := sandbox.New(sandbox.Options{
				APIID:  c.cfg.Sandbox.APIID,
				APIKey: c.cfg.Sandbox.APIKey,
				Logger: c.logger,
			})
			fmt.Fprintf(c.out, "sandbox on http://%s (base_url http://%s/jw, api_id %s)\n", addr, addr, c.cfg.Sandbox.APIID)
			return sb.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default sandbox.addr)")
	return cmd
}
