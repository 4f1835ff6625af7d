package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ksfraser/ksf-reports/internal/app"
)

// globals is filled before any subcommand runs.
type globals struct {
	cfg    *app.Config
	logger *slog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "ksf-reports",
		Short: "Hierarchical financial reports over a FrontAccounting general ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.logger = app.NewLoggerTo(cfg, cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.AddCommand(
		newServeCommand(g),
		newListCommand(),
		newRunCommand(g),
		newVerifyCommand(g),
		newEnqueueCommand(g),
		newQueueCommand(g),
		newSeedCommand(g),
	)
	return rootCmd
}
