package cli

import (
	"github.com/couchcryptid/hazard-sync/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Deactivate stale alerts",
	Long:  "Deactivate every active alert not rewritten within STALE_AFTER (default 72h).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		reaper := pipeline.NewReaper(store, cfg.StaleAfter, commandLogger(), commandMetrics(), clockwork.NewRealClock())
		n, err := reaper.CleanupStaleAlerts(ctx)
		if err != nil {
			return err
		}
		success(cmd.OutOrStdout(), "Deactivated %d stale alert(s)", n)
		return nil
	},
}
