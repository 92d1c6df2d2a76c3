package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dispatch/internal/config"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Event dispatch engine control tool",
		Long:  "dispatchctl runs and inspects the event processing and handler dispatch engine",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(handlersCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
