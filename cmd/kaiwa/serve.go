package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-kaiwa/internal/log"
	"github.com/teslashibe/go-kaiwa/pkg/kaiwa"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the speech server",
		Long:  "serve waits for the synthesis backend, then serves the /speech websocket and the persona control API until interrupted. It exits non-zero when the backend never becomes available.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			defer log.Close()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			app, err := kaiwa.New(cfg, log.L())
			if err != nil {
				return err
			}
			if err := app.Init(cmd.Context()); err != nil {
				log.Error("startup failed", "error", err)
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
