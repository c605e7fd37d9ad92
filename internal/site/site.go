// Package site runs whole-site builds.
//
// A Site owns every long-lived piece of the build: the dependency tracker,
// the component cache, the compiler and its temporary artifacts, the render
// pipeline and the asset builder. Build passes are serialised; Close tears
// everything down.
package site

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/jsxsite/internal/build"
	"github.com/conneroisu/jsxsite/internal/cache"
	"github.com/conneroisu/jsxsite/internal/compiler"
	"github.com/conneroisu/jsxsite/internal/config"
	"github.com/conneroisu/jsxsite/internal/deps"
	"github.com/conneroisu/jsxsite/internal/errors"
	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/renderer"
)

// PageExtension is the extension of page sources.
const PageExtension = ".jsx"

// Report summarises one build pass.
type Report struct {
	// Pages lists written page outputs, relative to the output directory.
	Pages []string
	// Unchanged counts pages whose output already held the rendered markup.
	Unchanged int
	// Copied counts passthrough files written.
	Copied   int
	Assets   *build.Result
	Duration time.Duration
}

// Site builds one project.
type Site struct {
	cfg    *config.Config
	logger logging.Logger

	mu        sync.Mutex
	tracker   *deps.Tracker
	artifacts *compiler.Artifacts
	cache     *cache.ComponentCache
	renderer  *renderer.Renderer
	assets    *build.Builder
	closed    bool
}

// New wires a Site from cfg.
func New(cfg *config.Config, logger logging.Logger) (*Site, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "resolving project root", err)
	}
	resolved := *cfg
	resolved.Root = root
	cfg = &resolved

	tracker := deps.NewTracker(root)
	artifacts := compiler.NewArtifacts(cfg.TempDir())
	comp := compiler.New(compiler.Options{
		Root:            root,
		JSXImportSource: cfg.Render.JSXImportSource,
		Minify:          cfg.Render.Minify,
	}, tracker, artifacts, logger)

	var c *cache.ComponentCache
	if cfg.Render.EnableCache {
		c = cache.New(cfg.Render.CacheSize, tracker)
	}

	out := cfg.OutputDir()
	assets := build.New(build.Options{
		StyleSource:  cfg.Path(cfg.Assets.Styles.Source),
		StyleOutput:  filepath.Join(out, cfg.Assets.Styles.Output),
		ScriptSource: cfg.Path(cfg.Assets.Scripts.Source),
		ScriptOutput: filepath.Join(out, cfg.Assets.Scripts.Output),
		SassBinary:   cfg.Assets.SassBinary,
	}, logger)

	return &Site{
		cfg:       cfg,
		logger:    logger.WithComponent("site"),
		tracker:   tracker,
		artifacts: artifacts,
		cache:     c,
		renderer: renderer.New(renderer.Options{
			Root:        root,
			EnableCache: cfg.Render.EnableCache,
		}, comp, tracker, c, logger),
		assets: assets,
	}, nil
}

// Config returns the resolved configuration.
func (s *Site) Config() *config.Config { return s.cfg }

// Cache returns the component cache, or nil when caching is off.
func (s *Site) Cache() *cache.ComponentCache { return s.cache }

// Tracker returns the dependency tracker.
func (s *Site) Tracker() *deps.Tracker { return s.tracker }

// PreBuild runs one asset pass.
func (s *Site) PreBuild(ctx context.Context) (*build.Result, error) {
	return s.assets.Build(ctx)
}

// PreWatch resets asset freshness for the kinds of files in changed, so the
// next pass rebuilds them even when their own mtime did not move. Changed
// files that no longer exist lose their recorded dependencies and cached
// components, as do the templates that imported them.
func (s *Site) PreWatch(changed []string) {
	if len(changed) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var styles, scripts bool
	for _, path := range changed {
		if abs := s.cfg.Path(path); !exists(abs) {
			s.forget(abs)
		}
		rel := s.relSlash(path)
		styles = styles || isStyleChange(rel, s.styleDirs())
		scripts = scripts || isScriptChange(rel, s.scriptDirs())
	}

	if styles {
		s.assets.ClearStyles()
	}
	if scripts {
		s.assets.ClearScripts()
	}
}

// forget drops what is known about the removed file abs.
func (s *Site) forget(abs string) {
	owners := append(s.tracker.Dependents(abs), abs)
	s.tracker.Forget(abs)
	if s.cache == nil {
		return
	}
	for _, owner := range owners {
		if n := s.cache.Remove(owner); n > 0 {
			s.logger.Debug(context.Background(), "dropped cached component", "path", s.relSlash(owner), "entries", n)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

func (s *Site) styleDirs() []string {
	return []string{filepath.ToSlash(s.cfg.Assets.Styles.Source), "src/styles", "src/components"}
}

func (s *Site) scriptDirs() []string {
	return []string{filepath.ToSlash(s.cfg.Assets.Scripts.Source), "src/scripts"}
}

func isStyleChange(rel string, dirs []string) bool {
	switch filepath.Ext(rel) {
	case ".scss", ".sass", ".css":
		return true
	}
	return underAny(rel, dirs)
}

func isScriptChange(rel string, dirs []string) bool {
	if filepath.Ext(rel) == ".js" {
		return true
	}
	return underAny(rel, dirs)
}

func underAny(rel string, dirs []string) bool {
	for _, d := range dirs {
		d = strings.TrimSuffix(d, "/")
		if d != "" && strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}

// Build runs a full pass: assets, global data, passthrough copies, then
// every page. The first failure aborts the pass.
func (s *Site) Build(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "site is closed", nil)
	}

	start := time.Now()
	report := &Report{}

	assets, err := s.PreBuild(ctx)
	if err != nil {
		return nil, err
	}
	report.Assets = assets

	global, err := LoadData(s.cfg.DataDir())
	if err != nil {
		return nil, err
	}

	copied, err := s.copyPassthrough(ctx)
	if err != nil {
		return nil, err
	}
	report.Copied = copied

	pages, err := s.Pages()
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := s.pageInfo(page)
		written, err := s.renderPage(ctx, page, info, global)
		if err != nil {
			s.logger.Error(ctx, err, "page build failed", "page", info.InputPath)
			return nil, err
		}
		if written {
			report.Pages = append(report.Pages, info.OutputPath)
		} else {
			report.Unchanged++
		}
	}

	report.Duration = time.Since(start)
	s.logger.Info(ctx, fmt.Sprintf("Built %d page(s) in %dms", len(pages), report.Duration.Milliseconds()),
		"written", len(report.Pages), "unchanged", report.Unchanged, "copied", report.Copied)

	return report, nil
}

func (s *Site) renderPage(ctx context.Context, page string, info PageInfo, global map[string]any) (bool, error) {
	data := make(map[string]any, len(global)+1)
	for k, v := range global {
		data[k] = v
	}
	data["page"] = info.Map()

	html, err := s.renderer.Render(ctx, page, data)
	if err != nil {
		return false, err
	}

	out := filepath.Join(s.cfg.OutputDir(), filepath.FromSlash(info.OutputPath))
	written, err := build.WriteIfChanged(out, []byte(html))
	if err != nil {
		return false, errors.NewIOError(errors.ErrCodeWriteFailed, "writing page", err).
			WithLocation(info.OutputPath, 0, 0)
	}
	return written, nil
}

// Pages lists every page source under the pages directory, sorted.
func (s *Site) Pages() ([]string, error) {
	dir := s.cfg.InputDir()
	var pages []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == PageExtension && d.Type().IsRegular() {
			pages = append(pages, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotFound, "listing pages", err)
	}

	sort.Strings(pages)
	return pages, nil
}

// Clean removes everything inside the output directory.
func (s *Site) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.cfg.OutputDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewIOError(errors.ErrCodeWriteFailed, "reading output directory", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return errors.NewIOError(errors.ErrCodeWriteFailed, "cleaning output directory", err)
		}
	}
	s.logger.Info(context.Background(), "Cleaned output directory", "dir", dir)
	return nil
}

// Close removes leftover temporary artifacts, drops cached components and
// stops the Sass compiler. It is safe to call more than once.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if n := s.artifacts.Sweep(); n > 0 {
		s.logger.Debug(context.Background(), "removed temporary artifacts", "count", n)
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	s.tracker.Clear()

	return s.assets.Close()
}

func (s *Site) relSlash(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	if rel, err := filepath.Rel(s.cfg.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}
