// Package main provides the checklist binary entry point.
// It runs the accessory host with the checklist platform and a HomeKit
// bridge, and offers client commands for the checklist HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/checklist/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "checklist"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

// loadConfig loads the layered configuration and applies --log-level.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(slog.Default()).Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, nil
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	var noBridge bool

	cmd := &cobra.Command{
		Use:   "checklist",
		Short: "Checklist switches for HomeKit",
		Long: `Checklist exposes a checklist as HomeKit switches, one per item.

The checklist lives in checklist.json under the storage path and is
served over HTTP at /checklist for other tools. Without a subcommand
the bridge is started.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), g, noBridge, cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&noBridge, "no-bridge", false, "Run without the HomeKit bridge")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checklist bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), g, noBridge, cmd.OutOrStdout())
		},
	}
	serveCmd.Flags().BoolVar(&noBridge, "no-bridge", false, "Run without the HomeKit bridge")

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(clientCmds()...)
	cmd.AddCommand(validateCmd(g))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serve(ctx context.Context, g *globalFlags, noBridge bool, out io.Writer) error {
	printBanner(out)

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if ctx == nil {
		ctx = context.Background()
	}
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	app, err := NewApp(cfg, logger, !noBridge)
	if err != nil {
		return err
	}

	slog.Info("Checklist ready",
		"version", Version,
		"storage_path", cfg.StoragePath)

	return app.Run(signalCtx)
}

func printBanner(out io.Writer) {
	fmt.Fprintln(out, "╔═══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║             Checklist v"+Version+"                  ║")
	fmt.Fprintln(out, "║      Checklist switches for HomeKit           ║")
	fmt.Fprintln(out, "╚═══════════════════════════════════════════════╝")
}
