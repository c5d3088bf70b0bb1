package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/termctl/internal/config"
	"github.com/loykin/termctl/internal/gateway"
	"github.com/loykin/termctl/internal/history"
	"github.com/loykin/termctl/internal/history/factory"
	"github.com/loykin/termctl/internal/logger"
	"github.com/loykin/termctl/internal/metrics"
	"github.com/loykin/termctl/internal/nvim"
	"github.com/loykin/termctl/internal/registry"
	"github.com/loykin/termctl/internal/server"
	"github.com/loykin/termctl/internal/session"
	"github.com/loykin/termctl/internal/tools"
)

// GlobalFlags holds the persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:           "termctl",
		Short:         "Control server for terminal-emulator instances",
		Long:          "termctl exposes a line-oriented control protocol for discovering, spawning, and driving terminal-emulator instances on the local machine.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "path to TOML config file")

	root.AddCommand(
		createServeCommand(flags),
		createVersionCommand(),
	)
	return root
}

func createServeCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the control protocol on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	log := logger.Setup(cfg.Log)
	metrics.MustRegisterDefault()

	sinks := make([]history.Sink, 0, len(cfg.History.DSNs))
	for _, dsn := range cfg.History.DSNs {
		sink, err := factory.NewSinkFromDSN(dsn)
		if err != nil {
			return fmt.Errorf("history sink %q: %w", dsn, err)
		}
		sinks = append(sinks, sink)
	}

	gw := gateway.NewSystem(cfg.Terminal.Command)
	reg := registry.New(gw, cfg.RegistryOptions())
	reg.SetLogger(log)
	reg.SetHistorySinks(sinks...)

	disp := tools.NewDispatcher(reg, gw, nvim.NewExtractor(gw.Proc))
	sess := session.New(disp)
	sess.SetLogger(log)

	if cfg.Debug.Enabled {
		dbg := server.NewDebug(cfg.Debug.Listen)
		srv := dbg.Start()
		defer func() { _ = srv.Close() }()
		log.Info("debug endpoint listening", "addr", cfg.Debug.Listen)
	}

	log.Info("termctl serving", "terminal", cfg.Terminal.Command)
	stdio := server.NewStdio(sess, os.Stdin, os.Stdout)
	stdio.SetLogger(log)
	if err := stdio.Serve(cmd.Context()); err != nil {
		log.Error("transport loop failed", "error", err)
		return err
	}
	slog.Info("stdin closed, shutting down")
	return nil
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s (protocol %s)\n", session.ServerName, session.ServerVersion, session.ProtocolVersion)
		},
	}
}
