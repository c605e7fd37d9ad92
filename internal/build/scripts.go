package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/jsxsite/internal/errors"
)

// buildScripts bundles every changed script concurrently. After the first
// failure no new bundles start; running ones finish before Wait returns.
func (b *Builder) buildScripts(ctx context.Context, res *Result) error {
	names, err := sources(b.opts.ScriptSource, ".js")
	if err != nil {
		return assetError(errors.ErrCodeScriptFailed, b.opts.ScriptSource, err)
	}
	if len(names) == 0 {
		return nil
	}
	if err := os.MkdirAll(b.opts.ScriptOutput, 0o755); err != nil {
		return assetError(errors.ErrCodeWriteFailed, b.opts.ScriptOutput, err)
	}

	var (
		mu    sync.Mutex
		built []string
	)
	g, gctx := errgroup.WithContext(ctx)

	for _, name := range names {
		in := filepath.Join(b.opts.ScriptSource, name)
		out := filepath.Join(b.opts.ScriptOutput, name)

		rebuild, mtime, err := needsBuild(b.scripts, name, in, out)
		if err != nil {
			return assetError(errors.ErrCodeScriptFailed, in, err)
		}
		if !rebuild {
			res.Skipped++
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			code, err := bundleScript(in, out, isMinified(name))
			if err != nil {
				b.logger.Error(gctx, err, fmt.Sprintf("Script build error in %s", name))
				return assetError(errors.ErrCodeScriptFailed, in, err)
			}
			if _, err := b.writer.write(out, code); err != nil {
				return assetError(errors.ErrCodeWriteFailed, out, err)
			}

			b.scripts.set(name, mtime)
			mu.Lock()
			built = append(built, name)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(built) > 0 {
		b.logger.Info(ctx, fmt.Sprintf("Compiled %d script file(s)", len(built)))
	}
	res.Scripts = append(res.Scripts, sortedCopy(built)...)
	return nil
}

func bundleScript(in, out string, minify bool) ([]byte, error) {
	result := api.Build(api.BuildOptions{
		EntryPoints:       []string{in},
		Outfile:           out,
		Bundle:            true,
		Write:             false,
		Platform:          api.PlatformBrowser,
		Target:            api.ES2020,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         api.SourceMapNone,
		MinifyWhitespace:  minify,
		MinifySyntax:      minify,
		MinifyIdentifiers: minify,
		LogLevel:          api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, messagesError(result.Errors)
	}
	for _, f := range result.OutputFiles {
		if filepath.Clean(f.Path) == filepath.Clean(out) {
			return f.Contents, nil
		}
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("esbuild produced no output for %s", in)
	}
	return result.OutputFiles[0].Contents, nil
}
