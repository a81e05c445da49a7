package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/couchcryptid/hazard-sync/internal/app"
	"github.com/couchcryptid/hazard-sync/internal/config"
	"github.com/couchcryptid/hazard-sync/internal/domain"
	"github.com/couchcryptid/hazard-sync/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [source...]",
	Short: "Sync sources once",
	Long: `Run one sync attempt for each named source, or for every configured
source when none is named. Sources in backoff are skipped.

Examples:
  hazardctl sync
  hazardctl sync gfs who
  hazardctl sync convergence_engine`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := commandLogger()
	metrics := commandMetrics()
	clock := clockwork.NewRealClock()

	catalog, err := config.LoadSources(cfg.SourcesFile, cfg.SyncInterval)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	geocoder := app.NewGeocoder(cfg, logger, metrics)
	sources, err := app.BuildSources(cfg, catalog, store, geocoder, logger, clock)
	if err != nil {
		return err
	}
	defer sources.Close() //nolint:errcheck // process exits next

	selected, err := selectSources(sources.List, args)
	if err != nil {
		return err
	}

	syncer := pipeline.NewSyncer(store, logger, metrics, clock)
	outcomes, err := syncAll(ctx, syncer, selected)
	if outputFormat == "json" {
		if jerr := writeJSON(cmd.OutOrStdout(), outcomeViews(outcomes)); jerr != nil {
			return jerr
		}
	} else {
		printOutcomes(cmd.OutOrStdout(), outcomes)
	}
	return err
}

// selectSources returns the named sources in catalog order, or all of them
// when names is empty.
func selectSources(all []pipeline.Source, names []string) ([]pipeline.Source, error) {
	if len(names) == 0 {
		return all, nil
	}
	var out []pipeline.Source
	for _, s := range all {
		if slices.Contains(names, s.Name) {
			out = append(out, s)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(out, func(s pipeline.Source) bool { return s.Name == n }) {
			return nil, fmt.Errorf("unknown source %q", n)
		}
	}
	return out, nil
}

// syncAll runs one attempt per source in order. Bookkeeping errors do not
// stop later sources; they are joined into the returned error.
func syncAll(ctx context.Context, syncer *pipeline.Syncer, sources []pipeline.Source) ([]pipeline.Outcome, error) {
	outcomes := make([]pipeline.Outcome, 0, len(sources))
	var errs []error
	for _, s := range sources {
		outcome, err := syncer.SyncHazardSource(ctx, s.Name, s.Fetcher)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, errors.Join(errs...)
}

type outcomeView struct {
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	RecordsSynced int        `json:"records_synced"`
	LatencyMS     int64      `json:"latency_ms"`
	Error         string     `json:"error,omitempty"`
	BackoffUntil  *time.Time `json:"backoff_until,omitempty"`
}

func outcomeViews(outcomes []pipeline.Outcome) []outcomeView {
	views := make([]outcomeView, 0, len(outcomes))
	for _, o := range outcomes {
		v := outcomeView{
			Source:        o.Source,
			Status:        string(o.Status),
			RecordsSynced: o.RecordsSynced,
			LatencyMS:     o.Latency.Milliseconds(),
			BackoffUntil:  o.BackoffUntil,
		}
		if o.Err != nil {
			v.Error = o.Err.Error()
		}
		views = append(views, v)
	}
	return views
}

func printOutcomes(w io.Writer, outcomes []pipeline.Outcome) {
	if len(outcomes) == 0 {
		info(w, "No sources configured")
		return
	}
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusSuccess:
			success(w, "%s: %d record(s) in %s", o.Source, o.RecordsSynced, o.Latency.Round(time.Millisecond))
		case domain.StatusSkipped:
			warn(w, "%s: in backoff until %s", o.Source, o.BackoffUntil.Format(time.RFC3339))
		default:
			msg := "bookkeeping failed"
			if o.Err != nil {
				msg = o.Err.Error()
			}
			errorf(w, "%s: %s", o.Source, msg)
		}
	}
}
