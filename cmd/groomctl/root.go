package main

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/spf13/cobra"

	"github.com/wolfman30/grooming-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/grooming-booking/internal/config"
	"github.com/wolfman30/grooming-booking/pkg/logging"
)

// env carries the process-level hooks the commands build on.
type env struct {
	loadConfig func() *appconfig.Config
	awsLoader  func(*appconfig.Config) func(context.Context) (aws.Config, error)
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "groomctl",
		Short:        "Operate the grooming booking service",
		SilenceUsage: true,
	}
	cmd.AddCommand(newPricesCmd())
	cmd.AddCommand(newQuoteCmd())
	cmd.AddCommand(newERPPingCmd(e))
	cmd.AddCommand(newERPPricesCmd(e))
	cmd.AddCommand(newSyncSweepCmd(e))
	cmd.AddCommand(newBookingCmd(e))
	return cmd
}

// newLogger writes to w (stderr) so stdout stays parseable.
func newLogger(cfg *appconfig.Config, w io.Writer) *logging.Logger {
	return logging.NewWithWriter(cfg.LogLevel, w)
}

func (e *env) app(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg := e.loadConfig()
	var loadAWS func(context.Context) (aws.Config, error)
	if e.awsLoader != nil {
		loadAWS = e.awsLoader(cfg)
	}
	return bootstrap.New(cmd.Context(), cfg, newLogger(cfg, cmd.ErrOrStderr()), bootstrap.Options{LoadAWS: loadAWS})
}
