package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bep/godartsass/v2"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/jsxsite/internal/errors"
)

var styleExtensions = []string{".sass", ".scss", ".css"}

// StyleOutputName maps a style source name to its output name.
func StyleOutputName(name string) string {
	for _, ext := range styleExtensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext) + ".css"
		}
	}
	return name
}

func (b *Builder) buildStyles(ctx context.Context, res *Result) error {
	names, err := sources(b.opts.StyleSource, styleExtensions...)
	if err != nil {
		return assetError(errors.ErrCodeStyleFailed, b.opts.StyleSource, err)
	}
	if len(names) == 0 {
		return nil
	}
	if err := os.MkdirAll(b.opts.StyleOutput, 0o755); err != nil {
		return assetError(errors.ErrCodeWriteFailed, b.opts.StyleOutput, err)
	}

	built := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		in := filepath.Join(b.opts.StyleSource, name)
		out := filepath.Join(b.opts.StyleOutput, StyleOutputName(name))

		rebuild, mtime, err := needsBuild(b.styles, name, in, out)
		if err != nil {
			return assetError(errors.ErrCodeStyleFailed, in, err)
		}
		if !rebuild {
			res.Skipped++
			continue
		}

		css, err := b.compileStyle(in, name)
		if err != nil {
			b.logger.Error(ctx, err, fmt.Sprintf("Style compilation error in %s", name))
			return assetError(errors.ErrCodeStyleFailed, in, err)
		}
		if _, err := b.writer.write(out, css); err != nil {
			return assetError(errors.ErrCodeWriteFailed, out, err)
		}

		b.styles.set(name, mtime)
		res.Styles = append(res.Styles, name)
		built++
	}

	if built > 0 {
		b.logger.Info(ctx, fmt.Sprintf("Compiled %d style file(s)", built))
	}
	return nil
}

// compileStyle turns one style source into CSS. Sass sources go through Dart
// Sass first; the result is printed by esbuild, minified for .min sources.
func (b *Builder) compileStyle(in, name string) ([]byte, error) {
	source, err := os.ReadFile(in)
	if err != nil {
		return nil, err
	}
	minify := isMinified(name)

	css := string(source)
	switch filepath.Ext(name) {
	case ".scss", ".sass":
		css, err = b.compileSass(in, css, filepath.Ext(name) == ".sass", minify)
		if err != nil {
			return nil, err
		}
	}

	result := api.Transform(css, api.TransformOptions{
		Loader:            api.LoaderCSS,
		Sourcefile:        name,
		MinifyWhitespace:  minify,
		MinifySyntax:      minify,
		MinifyIdentifiers: minify,
		LegalComments:     api.LegalCommentsEndOfFile,
	})
	if len(result.Errors) > 0 {
		return nil, messagesError(result.Errors)
	}
	return result.Code, nil
}

func (b *Builder) compileSass(in, source string, indented, minify bool) (string, error) {
	t, err := b.transpiler()
	if err != nil {
		return "", err
	}

	args := godartsass.Args{
		Source:       source,
		URL:          "file://" + filepath.ToSlash(in),
		IncludePaths: []string{filepath.Dir(in)},
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: godartsass.SourceSyntaxSCSS,
	}
	if minify {
		args.OutputStyle = godartsass.OutputStyleCompressed
	}
	if indented {
		args.SourceSyntax = godartsass.SourceSyntaxSASS
	}

	res, err := t.Execute(args)
	if err != nil {
		return "", err
	}
	return res.CSS, nil
}

// transpiler starts Dart Sass on first use.
func (b *Builder) transpiler() (*godartsass.Transpiler, error) {
	b.sassMu.Lock()
	defer b.sassMu.Unlock()
	if b.sass != nil {
		return b.sass, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: b.opts.SassBinary,
		LogEventHandler: func(e godartsass.LogEvent) {
			b.logger.Debug(context.Background(), "sass", "message", e.Message)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting dart sass: %w", err)
	}
	b.sass = t
	return t, nil
}

func messagesError(msgs []api.Message) error {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			lines = append(lines, fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column+1, m.Text))
			continue
		}
		lines = append(lines, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}
