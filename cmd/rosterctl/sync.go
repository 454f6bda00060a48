package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dayroster/internal/core"
)

type syncOptions struct {
	file  string
	apply bool
	actor string
}

func newSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the registry against a roster workbook (dry-run unless --apply)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Roster .xlsx file (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to the registry (default is dry-run)")
	cmd.Flags().StringVar(&opts.actor, "actor", "", "Name recorded as the triggering actor (default: OS user)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSync(cmd *cobra.Command, opts syncOptions) error {
	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, runErr := app.Service.RunSync(cmd.Context(), f, core.SyncOptions{
		DryRun:      !opts.apply,
		Source:      core.SourceManual,
		TriggeredBy: actorName(opts.actor),
	})
	if err := printJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if runErr != nil {
		return core.NewUserError(runErr)
	}
	return nil
}

func actorName(flag string) string {
	if flag != "" {
		return flag
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "rosterctl"
}
