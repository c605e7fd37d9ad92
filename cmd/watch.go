package cmd

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/conneroisu/jsxsite/internal/config"
	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/site"
	"github.com/conneroisu/jsxsite/internal/types"
	"github.com/conneroisu/jsxsite/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Build, then rebuild on every source change",
	Long: `Build the site, then watch the pages directory, the data directory and
the configured watch targets. Each batch of changes resets the affected asset
freshness and runs a new build.

Examples:
  jsxsite watch                   # Watch the default targets
  jsxsite watch -l debug          # Log every change batch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.Close()

	return watchSite(sess.ctx, sess.site, sess.logger, nil)
}

// watchSite runs an initial clean build, then rebuilds s for every debounced
// batch until ctx is done. notify, when set, receives the outcome of every
// pass.
func watchSite(ctx context.Context, s *site.Site, logger logging.Logger, notify func(types.BuildEvent)) error {
	cfg := s.Config()
	rb := &rebuilder{site: s, logger: logger, notify: notify}

	if err := s.Clean(); err != nil {
		return err
	}
	rb.build(ctx, nil)

	fw, err := newSiteWatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()
	fw.AddHandler(rb.handle)

	if err := fw.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "Watching for changes", "directories", len(fw.WatchList()))

	<-ctx.Done()
	logger.Info(context.Background(), "Stopping watcher")
	return nil
}

// newSiteWatcher watches every target of cfg and ignores generated files.
func newSiteWatcher(cfg *config.Config, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExcludeDirFilter(cfg.OutputDir()))
	fw.AddFilter(watcher.ExcludeDirFilter(cfg.TempDir()))

	for _, target := range watchTargets(cfg) {
		if err := fw.AddRecursive(target); err != nil {
			fw.Stop()
			return nil, err
		}
	}
	return fw, nil
}

// watchTargets returns the absolute directories to watch, deduplicated and
// sorted.
func watchTargets(cfg *config.Config) []string {
	seen := map[string]bool{}
	var targets []string
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			targets = append(targets, dir)
		}
	}

	add(cfg.InputDir())
	add(cfg.DataDir())
	add(cfg.Path(cfg.Assets.Styles.Source))
	add(cfg.Path(cfg.Assets.Scripts.Source))
	for _, t := range cfg.Watch.Targets {
		add(cfg.Path(t))
	}

	sort.Strings(targets)
	return targets
}

// rebuilder turns change batches into build passes.
type rebuilder struct {
	site   *site.Site
	logger logging.Logger
	notify func(types.BuildEvent)
}

func (r *rebuilder) handle(ctx context.Context, events []watcher.ChangeEvent) error {
	changed := watcher.Paths(events)
	r.logger.Info(ctx, "Files changed", "count", len(changed))
	for _, e := range events {
		r.logger.Debug(ctx, "change", "type", string(e.Type), "path", e.Path)
	}

	r.site.PreWatch(changed)
	r.build(ctx, changed)
	return nil
}

// build runs one pass and reports it. Build errors are logged, not returned,
// so the watch loop keeps going.
func (r *rebuilder) build(ctx context.Context, changed []string) {
	report, err := r.site.Build(ctx)

	event := types.BuildEvent{Changed: changed, Err: err}
	if err != nil {
		r.logger.Error(ctx, err, "Build failed")
	} else {
		event.Pages = len(report.Pages)
	}

	if r.notify != nil {
		r.notify(event)
	}
}
