// Command spot-outlet switches a power outlet on when electricity is cheap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/sweeney/spot-outlet/internal/app"
	"github.com/sweeney/spot-outlet/internal/config"
	"github.com/sweeney/spot-outlet/internal/logging"
	"github.com/sweeney/spot-outlet/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	logLevel   string
	printState bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "spot-outlet",
		Short:         "Switch an outlet by the hourly electricity price",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			if opts.printState {
				return a.PrintState(cmd.Context(), cmd.OutOrStdout())
			}
			return runUntilSignal(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override log level defined in config")
	cmd.Flags().BoolVar(&opts.printState, "print-state", false, "Print current price and decision, then exit")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newApp(opts rootOptions) (*app.App, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return app.New(cfg, logging.NewLogger(cfg.Logging))
}

// runUntilSignal runs a until SIGINT or SIGTERM, passing the signal on as the
// cancellation cause.
func runUntilSignal(parent context.Context, a *app.App) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case s := <-sigCh:
			cancel(app.SignalError{Signal: s})
		case <-ctx.Done():
		}
	}()
	return a.Run(ctx)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\n", version.Version, version.Commit)
		},
	}
}
