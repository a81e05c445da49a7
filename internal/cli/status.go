package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source sync state",
	Long:  "Show each source's watermark, backoff and most recent ingestion attempt.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		watermarks, err := store.ListWatermarks(ctx)
		if err != nil {
			return err
		}
		latest := make(map[string]domain.IngestionLogEntry, len(watermarks))
		for _, wm := range watermarks {
			logs, err := store.RecentIngestionLogs(ctx, wm.Source, 1)
			if err != nil {
				return err
			}
			if len(logs) > 0 {
				latest[wm.Source] = logs[0]
			}
		}

		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"watermarks": watermarks, "latest": latest})
		}
		renderStatus(cmd.OutOrStdout(), watermarks, latest, time.Now())
		return nil
	},
}

func renderStatus(w io.Writer, watermarks []domain.SourceWatermark, latest map[string]domain.IngestionLogEntry, now time.Time) {
	if len(watermarks) == 0 {
		info(w, "No source has been synced yet")
		return
	}

	t := newTable("SOURCE", "STATE", "ERRORS", "LAST SUCCESS", "LAST RUN", "RECORDS", "MESSAGE")
	for _, wm := range watermarks {
		state := plain("ok")
		switch {
		case wm.InBackoff(now):
			state = cell{text: "backoff " + wm.BackoffUntil.Sub(now).Round(time.Second).String(), color: warnColor}
		case wm.ErrorCount > 0:
			state = cell{text: "retrying", color: warnColor}
		default:
			state.color = successColor
		}

		errs := plain(fmt.Sprintf("%d", wm.ErrorCount))
		if wm.ErrorCount > 0 {
			errs.color = errorColor
		}

		lastSuccess := "never"
		if wm.LastTimestamp != nil {
			lastSuccess = ago(now, *wm.LastTimestamp)
		}

		lastRun, records, message := "-", "-", ""
		if l, ok := latest[wm.Source]; ok {
			lastRun = fmt.Sprintf("%s (%s)", l.Status, ago(now, l.CreatedAt))
			records = fmt.Sprintf("%d", l.RecordsSynced)
			if l.ErrorMessage != nil {
				message = truncate(*l.ErrorMessage, 60)
			}
		}

		t.addRow(plain(wm.Source), state, errs, plain(lastSuccess), plain(lastRun), plain(records), cell{text: message, color: color.New(color.Faint)})
	}
	t.render(w)
}

func ago(now, t time.Time) string {
	d := now.Sub(t).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String() + " ago"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
