package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driveline/driveline/config"
	"github.com/driveline/driveline/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &adminApp{
		out:     os.Stdout,
		logger:  logger,
		load:    bootstrap.LoadConfig,
		connect: connectAdmin,
	}
	if err := newRootCommand(app).ExecuteContext(ctx); err != nil {
		logger.ErrorContext(ctx, "command failed", "error", err)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

// adminApp carries what every subcommand needs. connect is swapped in tests.
type adminApp struct {
	out     io.Writer
	logger  *slog.Logger
	load    func() (config.AppConfig, error)
	connect func(ctx context.Context, req connectRequest) (*adminServices, error)
}

// open loads configuration and connects what a command needs. Migrations
// only need the database; everything else needs the full service graph.
func (a *adminApp) open(ctx context.Context, wantServices bool) (*adminServices, error) {
	cfg, err := a.load()
	if err != nil {
		return nil, err
	}
	return a.connect(ctx, connectRequest{
		Config:       &cfg,
		Logger:       a.logger,
		WantServices: wantServices,
	})
}

func newRootCommand(app *adminApp) *cobra.Command {
	cobra.EnableCommandSorting = false
	root := &cobra.Command{
		Use:           "driveline-admin",
		Short:         "Operator tooling for the driveline upload pipeline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(app.out)

	root.AddCommand(newMigrateCommand(app))
	root.AddCommand(newListFailedCommand(app))
	root.AddCommand(newRetryFailedCommand(app))
	root.AddCommand(newPurgeLedgerCommand(app))
	root.AddCommand(newSyncFoldersCommand(app))
	return root
}
