// Package compiler turns a JSX page source into a callable component.
//
// A compile reads the source, transpiles the JSX with esbuild, makes sure the
// module has a default export, bundles it together with everything it
// imports, records the bundle's inputs with the dependency tracker, and
// loads the bundle into a fresh goja VM through a temporary CommonJS module.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/tidwall/gjson"

	"github.com/conneroisu/jsxsite/internal/deps"
	"github.com/conneroisu/jsxsite/internal/errors"
	"github.com/conneroisu/jsxsite/internal/jsx"
	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/types"
)

// Options configures a Compiler.
type Options struct {
	// Root is the project root; bundler paths are resolved against it.
	Root string
	// JSXImportSource is the module the automatic JSX runtime imports from.
	JSXImportSource string
	// Minify minifies the bundle before loading it.
	Minify bool
}

// Compiler compiles page sources. It is not safe for concurrent use.
type Compiler struct {
	opts      Options
	tracker   *deps.Tracker
	artifacts *Artifacts
	logger    logging.Logger
}

// New creates a compiler that records dependencies in tracker and loads
// modules through artifacts.
func New(opts Options, tracker *deps.Tracker, artifacts *Artifacts, logger logging.Logger) *Compiler {
	if opts.JSXImportSource == "" {
		opts.JSXImportSource = "preact"
	}
	if abs, err := filepath.Abs(opts.Root); err == nil {
		opts.Root = abs
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compiler{
		opts:      opts,
		tracker:   tracker,
		artifacts: artifacts,
		logger:    logger.WithComponent("compiler"),
	}
}

// Compile produces a Component for the page at path. Failures are
// compilation or no-export errors.
func (c *Compiler) Compile(ctx context.Context, path string) (types.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := c.abs(path)
	source, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.NewCompilationError(errors.ErrCodeFileNotFound, "failed to read source", err).
			WithLocation(path, 0, 0)
	}

	code, err := c.Transpile(abs, string(source))
	if err != nil {
		return nil, err
	}

	code, name, ok := EnsureDefaultExport(code)
	if !ok {
		// imports are still tracked so that fixing one of them triggers a
		// rebuild of this page
		if _, inputs, berr := c.Bundle(abs, code); berr == nil {
			c.record(ctx, abs, inputs)
		}
		return nil, errors.NewNoExportError(c.rel(abs),
			"no default export and no top-level function, const, let or var declaration")
	}
	if name != "" {
		c.logger.Debug(ctx, "added default export", "path", c.rel(abs), "binding", name)
	}

	bundle, inputs, err := c.Bundle(abs, code)
	if err != nil {
		return nil, err
	}
	c.record(ctx, abs, inputs)

	return c.load(ctx, abs, bundle)
}

func (c *Compiler) record(ctx context.Context, abs string, inputs []string) {
	c.tracker.Record(abs, inputs)
	c.logger.Stats(ctx, fmt.Sprintf("Dependencies for %s: %s", filepath.Base(abs), baseNames(c.tracker.Dependencies(abs))),
		"path", c.rel(abs))
}

func (c *Compiler) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.opts.Root, path)
}

func (c *Compiler) rel(abs string) string {
	if r, err := filepath.Rel(c.opts.Root, abs); err == nil && !strings.HasPrefix(r, "..") {
		return filepath.ToSlash(r)
	}
	return abs
}

// Transpile compiles JSX syntax in source to plain JavaScript, leaving ES
// module syntax in place.
func (c *Compiler) Transpile(path, source string) (string, error) {
	result := api.Transform(source, api.TransformOptions{
		Loader:          api.LoaderJSX,
		JSX:             api.JSXAutomatic,
		JSXImportSource: c.opts.JSXImportSource,
		Sourcefile:      c.rel(path),
		Target:          api.ESNext,
		LogLevel:        api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return "", messageError(errors.ErrCodeTranspileFailed, c.rel(path), result.Errors)
	}
	return string(result.Code), nil
}

// Bundle inlines everything code imports into one CommonJS module and
// returns it with the absolute paths of every input file the bundler read.
func (c *Compiler) Bundle(path, code string) ([]byte, []string, error) {
	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   code,
			ResolveDir: filepath.Dir(path),
			Sourcefile: c.rel(path),
			Loader:     api.LoaderJS,
		},
		AbsWorkingDir:     c.opts.Root,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		Format:            api.FormatCommonJS,
		Platform:          api.PlatformNeutral,
		MainFields:        []string{"module", "main"},
		Target:            api.ES2015,
		Sourcemap:         api.SourceMapNone,
		TreeShaking:       api.TreeShakingTrue,
		MinifyWhitespace:  c.opts.Minify,
		MinifyIdentifiers: c.opts.Minify,
		MinifySyntax:      c.opts.Minify,
		JSX:               api.JSXAutomatic,
		JSXImportSource:   c.opts.JSXImportSource,
		External:          jsx.Externals(c.opts.JSXImportSource),
		Loader: map[string]api.Loader{
			".js":  api.LoaderJSX,
			".jsx": api.LoaderJSX,
		},
		Define: map[string]string{
			"process.env.NODE_ENV": `"production"`,
		},
		LogLevel: api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, nil, messageError(errors.ErrCodeBundleFailed, c.rel(path), result.Errors)
	}
	if len(result.OutputFiles) == 0 {
		return nil, nil, errors.NewCompilationError(errors.ErrCodeBundleFailed, "bundler produced no output", nil).
			WithLocation(c.rel(path), 0, 0)
	}

	return result.OutputFiles[0].Contents, c.metafileInputs(result.Metafile), nil
}

// metafileInputs lists the bundle inputs as absolute paths, skipping
// pseudo-paths such as <stdin> and namespaced entries.
func (c *Compiler) metafileInputs(metafile string) []string {
	var inputs []string
	gjson.Get(metafile, "inputs").ForEach(func(key, _ gjson.Result) bool {
		name := key.String()
		if name == "" || strings.HasPrefix(name, "<") || (strings.Contains(name, ":") && !filepath.IsAbs(name)) {
			return true
		}
		inputs = append(inputs, c.abs(filepath.FromSlash(name)))
		return true
	})
	return inputs
}

func (c *Compiler) load(ctx context.Context, path string, bundle []byte) (types.Component, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	rt, err := jsx.NewRuntime(vm, c.opts.JSXImportSource, c.logger)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to create jsx runtime", err)
	}
	registry := require.NewRegistry()
	rt.Register(registry)
	req := registry.Enable(vm)
	rt.EnableConsole()

	artifact, err := c.artifacts.Create(bundle)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "failed to write temp module", err)
	}
	defer func() {
		if err := c.artifacts.Remove(artifact); err != nil {
			c.logger.Debug(ctx, "failed to remove temp module", "artifact", artifact, "error", err.Error())
		}
	}()

	exports, err := req.Require(artifact)
	if err != nil {
		return nil, errors.NewCompilationError(errors.ErrCodeLoadFailed, "failed to load module", err).
			WithLocation(c.rel(path), 0, 0)
	}

	var entry goja.Value
	if obj, ok := exports.(*goja.Object); ok {
		entry = obj.Get("default")
	}
	if _, ok := goja.AssertFunction(entry); entry == nil || !ok {
		return nil, errors.NewNoExportError(c.rel(path), "default export is not a component function")
	}

	return &Component{path: c.rel(path), rt: rt, entry: entry}, nil
}

func messageError(code, path string, msgs []api.Message) *errors.SiteError {
	first := msgs[0]
	err := errors.NewCompilationError(code, first.Text, nil)
	if len(msgs) > 1 {
		err.WithContext("additional_errors", len(msgs)-1)
	}
	if loc := first.Location; loc != nil {
		file := loc.File
		if file == "" || file == "<stdin>" {
			file = path
		}
		err.WithLocation(file, loc.Line, loc.Column+1)
		if loc.LineText != "" {
			err.WithContext("line_text", loc.LineText)
		}
	} else {
		err.WithLocation(path, 0, 0)
	}
	return err
}

func baseNames(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, ", ")
}
