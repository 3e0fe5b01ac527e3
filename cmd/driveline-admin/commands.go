package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/driveline/driveline/internal/domain/model"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultWindowHours      = 24
	defaultRetentionDays    = 7
)

// withServices opens the connections a command needs, runs fn and closes them.
func (a *adminApp) withServices(ctx context.Context, wantServices bool, fn func(*adminServices) error) error {
	svc, err := a.open(ctx, wantServices)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := svc.Close(); closeErr != nil {
			a.logger.WarnContext(ctx, "close connections failed", "error", closeErr)
		}
	}()
	return fn(svc)
}

func requireRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", errors.New("--recipient is required")
	}
	return recipient, nil
}

func newMigrateCommand(app *adminApp) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return app.withServices(ctx, false, func(svc *adminServices) error {
				app.logger.InfoContext(ctx, "running database migrations")
				if err := svc.Migrate(ctx); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				app.logger.InfoContext(ctx, "migrations completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "maximum time to wait for migrations")
	return cmd
}

func newListFailedCommand(app *adminApp) *cobra.Command {
	var (
		recipient string
		hours     int
	)
	cmd := &cobra.Command{
		Use:   "list-failed",
		Short: "List a recipient's failed uploads inside a trailing window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := requireRecipient(recipient)
			if err != nil {
				return err
			}
			return app.withServices(cmd.Context(), true, func(svc *adminServices) error {
				rows, err := svc.Ledger.ListFailed(cmd.Context(), id, hours)
				if err != nil {
					return fmt.Errorf("list failed uploads: %w", err)
				}
				return printFailedUploads(cmd.OutOrStdout(), rows, time.Now())
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient user id")
	cmd.Flags().IntVar(&hours, "hours", defaultWindowHours, "trailing window in hours")
	return cmd
}

func newRetryFailedCommand(app *adminApp) *cobra.Command {
	var (
		recipient string
		hours     int
	)
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-drive a recipient's failed uploads, updating their ledger rows in place",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := requireRecipient(recipient)
			if err != nil {
				return err
			}
			return app.withServices(cmd.Context(), true, func(svc *adminServices) error {
				summary, err := svc.Ledger.RetryFailed(cmd.Context(), id, hours)
				if err != nil {
					return fmt.Errorf("retry failed uploads: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(),
					"found=%d succeeded=%d failed=%d missing=%d\n",
					summary.Found, summary.Succeeded, summary.Failed, summary.Missing,
				)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient user id")
	cmd.Flags().IntVar(&hours, "hours", defaultWindowHours, "trailing window in hours")
	return cmd
}

func newPurgeLedgerCommand(app *adminApp) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge-ledger",
		Short: "Delete ledger rows older than the given number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withServices(cmd.Context(), true, func(svc *adminServices) error {
				removed, err := svc.Ledger.PurgeLedger(cmd.Context(), days)
				if err != nil {
					return fmt.Errorf("purge ledger: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %s rows older than %d days\n", humanize.Comma(removed), days)
				return err
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", defaultRetentionDays, "retention in days")
	return cmd
}

func newSyncFoldersCommand(app *adminApp) *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "sync-folders",
		Short: "Reconcile a recipient's cloud folders with current chat names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := requireRecipient(recipient)
			if err != nil {
				return err
			}
			return app.withServices(cmd.Context(), true, func(svc *adminServices) error {
				report, err := svc.Folders.Sync(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("sync folders: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(),
					"checked=%d renamed=%d missing=%d unchanged=%d errors=%d\n",
					report.Checked, report.Renamed, report.Missing, report.Unchanged, report.Errors,
				)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "recipient user id")
	return cmd
}

func printFailedUploads(w io.Writer, rows []model.UploadAttempt, now time.Time) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "no failed uploads")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ID\tSTATUS\tFILE\tCONTEXT\tUPDATED"); err != nil {
		return err
	}
	for _, row := range rows {
		name := row.ContextName
		if name == "" {
			name = row.ContextID
		}
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s %s\t%s\n",
			row.ID,
			row.Status,
			row.BlobName,
			row.ContextKind,
			name,
			humanize.RelTime(row.UpdatedAt, now, "ago", "from now"),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}
