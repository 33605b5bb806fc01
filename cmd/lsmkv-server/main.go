// Command lsmkv-server exposes an embedded LSM key-value store over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nyasuto/lsmkv/internal/api"
	"github.com/nyasuto/lsmkv/internal/lsm"
)

func main() {
	var path, port string

	root := &cobra.Command{
		Use:   "lsmkv-server",
		Short: "HTTP API server for an embedded LSM key-value store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			opts := lsm.DefaultOptions()
			opts.Logger = logger

			server, err := api.NewServer(path, port, opts)
			if err != nil {
				return fmt.Errorf("lsmkv-server: %w", err)
			}
			defer server.Close()
			return server.Start()
		},
	}
	root.Flags().StringVar(&path, "path", "lsmkv-data", "data directory")
	root.Flags().StringVar(&port, "port", "8080", "HTTP listen port")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
