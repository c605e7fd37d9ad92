// Package renderer turns page sources into HTML.
//
// A Renderer sits in front of the compiler: it drops stale cache entries,
// reuses a cached component when the page and everything it imports are
// unchanged, compiles on a miss, invokes the component with the page data,
// and passes the markup through a post-processor.
package renderer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/jsxsite/internal/cache"
	"github.com/conneroisu/jsxsite/internal/deps"
	"github.com/conneroisu/jsxsite/internal/errors"
	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/types"
)

// Doctype is prepended to documents rooted at <html>.
const Doctype = "<!DOCTYPE html>"

// Compiler produces components from page sources.
type Compiler interface {
	Compile(ctx context.Context, path string) (types.Component, error)
}

// PostProcessor transforms rendered markup. Its errors are returned to the
// caller unchanged.
type PostProcessor func(markup string, data map[string]any) (string, error)

// DocumentPostProcessor adds a doctype to full documents.
func DocumentPostProcessor(markup string, _ map[string]any) (string, error) {
	if strings.HasPrefix(strings.TrimLeft(markup, " \t\r\n"), "<html") {
		return Doctype + markup, nil
	}
	return markup, nil
}

// Options configures a Renderer.
type Options struct {
	// Root resolves relative page paths.
	Root string
	// EnableCache turns on component caching and stale sweeps.
	EnableCache bool
	// PostProcess runs on every rendered page. Nil means
	// DocumentPostProcessor.
	PostProcess PostProcessor
}

// Renderer renders pages. It is not safe for concurrent use.
type Renderer struct {
	opts     Options
	compiler Compiler
	tracker  *deps.Tracker
	cache    *cache.ComponentCache
	logger   logging.Logger
}

// New creates a renderer. cache may be nil when caching is disabled.
func New(opts Options, compiler Compiler, tracker *deps.Tracker, c *cache.ComponentCache, logger logging.Logger) *Renderer {
	if opts.PostProcess == nil {
		opts.PostProcess = DocumentPostProcessor
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	if c == nil {
		opts.EnableCache = false
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Renderer{
		opts:     opts,
		compiler: compiler,
		tracker:  tracker,
		cache:    c,
		logger:   logger.WithComponent("renderer"),
	}
}

// Cache returns the component cache, or nil when caching is off.
func (r *Renderer) Cache() *cache.ComponentCache {
	if !r.opts.EnableCache {
		return nil
	}
	return r.cache
}

// Render renders the page at path with data.
func (r *Renderer) Render(ctx context.Context, path string, data map[string]any) (string, error) {
	abs := r.abs(path)
	name := filepath.Base(abs)

	component, err := r.component(ctx, abs, name)
	if err != nil {
		return "", err
	}

	markup, err := component.Render(data)
	if err != nil {
		if !errors.IsExecutionError(err) {
			err = errors.NewExecutionError(r.rel(abs), err)
		}
		return "", err
	}

	return r.opts.PostProcess(markup, data)
}

func (r *Renderer) component(ctx context.Context, abs, name string) (types.Component, error) {
	timer := logging.StartTimer(r.logger, "render")

	if r.opts.EnableCache {
		if n := r.cache.InvalidateStale(); n > 0 {
			r.logger.Stats(ctx, fmt.Sprintf("Cleaned %d stale cache entries", n))
		}
		if component, ok := r.cache.Get(abs); ok {
			timer.End(ctx, fmt.Sprintf("Cache hit for %s (%dms)", name, timer.Elapsed().Milliseconds()),
				"path", r.rel(abs))
			return component, nil
		}
	}

	// The key is taken before the sources are read, so an edit landing
	// mid-compile leaves the entry older than the files and it is dropped on
	// the next render. A first compile keys on the previously recorded set,
	// which may cost one extra compile once the real set is known.
	fingerprint := r.tracker.Fingerprint(abs)

	component, err := r.compiler.Compile(ctx, abs)
	if err != nil {
		return nil, err
	}

	if r.opts.EnableCache {
		r.cache.Put(abs, fingerprint, component)
	}
	timer.End(ctx, fmt.Sprintf("Compiled %s (%dms)", name, timer.Elapsed().Milliseconds()),
		"path", r.rel(abs))

	return component, nil
}

func (r *Renderer) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.opts.Root, path)
}

func (r *Renderer) rel(abs string) string {
	if rel, err := filepath.Rel(r.opts.Root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return abs
}
