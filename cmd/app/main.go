package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"CoinRadar/internal/di"
	"CoinRadar/pkg/config"
	"CoinRadar/pkg/server"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "coinradar",
		Short:        "Crypto opportunity radar: discovery, scoring and signal feedback",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty to use defaults and env only)")

	serve := serveCmd(&configPath)
	root.AddCommand(serve, scanCmd(&configPath), retrainCmd(&configPath))
	root.RunE = serve.RunE
	return root
}

// bootstrap loads config and wires the application.
func bootstrap(configPath string) (*server.App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app initialization failed: %w", err)
	}
	return app, cleanup, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scan loop, retrain job and HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()
			return app.Run(cmd.Context())
		},
	}
}

func scanCmd(configPath *string) *cobra.Command {
	var emit bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one discovery and analysis cycle and print the ranking",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.ScanOnce(cmd.Context(), emit)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&emit, "emit", false, "create signals for qualifying results")
	return cmd
}

func retrainCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "retrain",
		Short: "Retrain scoring weights from recorded feedback",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := app.RetrainOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
