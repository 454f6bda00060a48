// Command rosterctl is the operator CLI for the roster sync service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dayroster/internal/application"
	"github.com/JonMunkholm/dayroster/internal/config"
	"github.com/JonMunkholm/dayroster/internal/core"
	"github.com/JonMunkholm/dayroster/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints the operator message and, for mapped errors, the
// technical cause underneath it.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", err)
	var userErr *core.UserError
	if errors.As(err, &userErr) {
		fmt.Fprintln(w, "cause:", userErr.Technical)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rosterctl",
		Short:         "Day-hospital roster sync operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSyncCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// openApp loads configuration and connects. Logs go to stderr so stdout
// carries only command output.
func openApp(cmd *cobra.Command) (*application.App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	return application.Open(cmd.Context(), cfg)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
