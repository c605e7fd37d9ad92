package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jsxsite/internal/errors"
)

type project struct {
	root    string
	opts    Options
	builder *Builder
}

func newProject(t *testing.T) *project {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		StyleSource:  filepath.Join(root, "src/assets/css"),
		StyleOutput:  filepath.Join(root, "dist/assets/css"),
		ScriptSource: filepath.Join(root, "src/assets/js"),
		ScriptOutput: filepath.Join(root, "dist/assets/js"),
	}
	b := New(opts, nil)
	t.Cleanup(func() { _ = b.Close() })
	return &project{root: root, opts: opts, builder: b}
}

func (p *project) write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func bump(t *testing.T, path string) {
	t.Helper()
	future := time.Now().Add(3 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestBuildStyles(t *testing.T) {
	p := newProject(t)
	p.write(t, filepath.Join(p.opts.StyleSource, "main.css"), "a { color: red }\n")
	p.write(t, filepath.Join(p.opts.StyleSource, "site.min.css"), "body {\n  margin: 0;\n  padding: 0;\n}\n")
	p.write(t, filepath.Join(p.opts.StyleSource, "notes.txt"), "ignored")

	res, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.css", "site.min.css"}, res.Styles)

	pretty := read(t, filepath.Join(p.opts.StyleOutput, "main.css"))
	assert.Contains(t, pretty, "color: red;")
	assert.Contains(t, pretty, "\n")

	minified := read(t, filepath.Join(p.opts.StyleOutput, "site.min.css"))
	assert.Equal(t, "body{margin:0;padding:0}", strings.TrimSpace(minified))

	_, err = os.Stat(filepath.Join(p.opts.StyleOutput, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

// requireSass skips unless a Dart Sass with the embedded protocol is on PATH.
func requireSass(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("sass not found on PATH")
	}
	tr, err := godartsass.Start(godartsass.Options{})
	if err != nil {
		t.Skipf("sass does not support the embedded protocol: %v", err)
	}
	_ = tr.Close()
}

func TestBuildSassStyles(t *testing.T) {
	requireSass(t)
	p := newProject(t)
	p.write(t, filepath.Join(p.opts.StyleSource, "main.scss"), "$c: red;\nnav {\n  a { color: $c; }\n}\n")
	p.write(t, filepath.Join(p.opts.StyleSource, "site.min.scss"), "$m: 0;\nbody {\n  margin: $m;\n  padding: $m;\n}\n")
	p.write(t, filepath.Join(p.opts.StyleSource, "theme.sass"), "$bg: blue\nbody\n  background: $bg\n")

	res, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.scss", "site.min.scss", "theme.sass"}, res.Styles)

	expanded := read(t, filepath.Join(p.opts.StyleOutput, "main.css"))
	assert.Contains(t, expanded, "nav a {")
	assert.Contains(t, expanded, "color: red;")
	assert.Contains(t, expanded, "\n")

	compressed := read(t, filepath.Join(p.opts.StyleOutput, "site.min.css"))
	assert.Equal(t, "body{margin:0;padding:0}", strings.TrimSpace(compressed))

	indented := read(t, filepath.Join(p.opts.StyleOutput, "theme.css"))
	assert.Contains(t, indented, "background: blue;")
}

func TestBuildSassFailure(t *testing.T) {
	requireSass(t)
	p := newProject(t)
	bad := p.write(t, filepath.Join(p.opts.StyleSource, "broken.scss"), "body {\n  color: ;\n")
	p.write(t, filepath.Join(p.opts.ScriptSource, "main.js"), "console.log('boot');\n")

	res, err := p.builder.Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsAssetBuildError(err))

	var se *errors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeStyleFailed, se.Code)
	assert.Equal(t, bad, se.FilePath)

	assert.NoFileExists(t, filepath.Join(p.opts.ScriptOutput, "main.js"))
	_, ok := p.builder.styles.get("broken.scss")
	assert.False(t, ok)
}

func TestBuildSassUnavailable(t *testing.T) {
	root := t.TempDir()
	opts := Options{
		StyleSource:  filepath.Join(root, "src/assets/css"),
		StyleOutput:  filepath.Join(root, "dist/assets/css"),
		ScriptSource: filepath.Join(root, "src/assets/js"),
		ScriptOutput: filepath.Join(root, "dist/assets/js"),
		SassBinary:   filepath.Join(root, "no-such-sass"),
	}
	b := New(opts, nil)
	t.Cleanup(func() { _ = b.Close() })
	p := &project{root: root, opts: opts, builder: b}

	in := p.write(t, filepath.Join(opts.StyleSource, "main.scss"), "a { color: red; }\n")
	p.write(t, filepath.Join(opts.ScriptSource, "main.js"), "console.log('boot');\n")

	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsAssetBuildError(err))

	var se *errors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeStyleFailed, se.Code)
	assert.Equal(t, in, se.FilePath)
	assert.NoFileExists(t, filepath.Join(opts.ScriptOutput, "main.js"))
}

func TestStyleOutputName(t *testing.T) {
	tests := map[string]string{
		"main.css":       "main.css",
		"main.scss":      "main.css",
		"theme.sass":     "theme.css",
		"app.min.scss":   "app.min.css",
		"vendor.min.css": "vendor.min.css",
	}
	for in, want := range tests {
		assert.Equal(t, want, StyleOutputName(in), in)
	}
}

func TestBuildSkipsUnchanged(t *testing.T) {
	p := newProject(t)
	css := p.write(t, filepath.Join(p.opts.StyleSource, "main.css"), "a { color: red }\n")
	p.write(t, filepath.Join(p.opts.ScriptSource, "main.js"), "console.log('hello');\n")

	res, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Built())

	res, err = p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Built())
	assert.Equal(t, 2, res.Skipped)

	t.Run("changed mtime rebuilds", func(t *testing.T) {
		p.write(t, css, "a { color: blue }\n")
		bump(t, css)

		res, err := p.builder.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"main.css"}, res.Styles)
		assert.Empty(t, res.Scripts)
		assert.Contains(t, read(t, filepath.Join(p.opts.StyleOutput, "main.css")), "blue")
	})

	t.Run("missing output rebuilds", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(p.opts.ScriptOutput, "main.js")))

		res, err := p.builder.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"main.js"}, res.Scripts)
		assert.Contains(t, read(t, filepath.Join(p.opts.ScriptOutput, "main.js")), "hello")
	})

	t.Run("clear forces rebuild", func(t *testing.T) {
		p.builder.ClearStyles()
		res, err := p.builder.Build(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"main.css"}, res.Styles)
		assert.Empty(t, res.Scripts)

		p.builder.ClearScripts()
		res, err = p.builder.Build(context.Background())
		require.NoError(t, err)
		assert.Empty(t, res.Styles)
		assert.Equal(t, []string{"main.js"}, res.Scripts)
	})
}

func TestBuildScriptsBundlesImports(t *testing.T) {
	p := newProject(t)
	p.write(t, filepath.Join(p.opts.ScriptSource, "lib", "greet.js"),
		"export function greet(name) { return 'hello ' + name; }\nexport function unused() { return 'tree-shaken-away'; }\n")
	p.write(t, filepath.Join(p.opts.ScriptSource, "main.js"),
		"import { greet } from './lib/greet.js';\ndocument.title = greet('world');\n")
	p.write(t, filepath.Join(p.opts.ScriptSource, "app.min.js"),
		"const message = 'minified output';\nconsole.log(message);\n")

	res, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app.min.js", "main.js"}, res.Scripts)

	main := read(t, filepath.Join(p.opts.ScriptOutput, "main.js"))
	assert.Contains(t, main, "hello ")
	assert.NotContains(t, main, "tree-shaken-away")
	assert.NotContains(t, main, "import ")

	minified := read(t, filepath.Join(p.opts.ScriptOutput, "app.min.js"))
	assert.Contains(t, minified, "minified output")
	assert.NotContains(t, minified, "const message")

	_, err = os.Stat(filepath.Join(p.opts.ScriptOutput, "lib"))
	assert.True(t, os.IsNotExist(err), "only top-level scripts are entry points")
}

func TestBuildScriptFailure(t *testing.T) {
	p := newProject(t)
	p.write(t, filepath.Join(p.opts.ScriptSource, "ok.js"), "console.log('ok');\n")
	bad := p.write(t, filepath.Join(p.opts.ScriptSource, "bad.js"), "import './missing.js';\n")

	res, err := p.builder.Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsAssetBuildError(err))

	var se *errors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeScriptFailed, se.Code)
	assert.Equal(t, bad, se.FilePath)

	_, ok := p.builder.scripts.get("bad.js")
	assert.False(t, ok)
}

func TestBuildMissingSourceDirs(t *testing.T) {
	p := newProject(t)

	res, err := p.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Built())

	_, err = os.Stat(p.opts.StyleOutput)
	assert.True(t, os.IsNotExist(err))
}

func TestBuildCancelled(t *testing.T) {
	p := newProject(t)
	p.write(t, filepath.Join(p.opts.StyleSource, "main.css"), "a { color: red }\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.builder.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriterSkipsIdenticalContent(t *testing.T) {
	w := newWriter()
	path := filepath.Join(t.TempDir(), "out", "a.css")

	wrote, err := w.write(path, []byte("a{}"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = w.write(path, []byte("a{}"))
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = w.write(path, []byte("b{}"))
	require.NoError(t, err)
	assert.True(t, wrote)

	require.NoError(t, os.Remove(path))
	wrote, err = w.write(path, []byte("b{}"))
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.html")

	wrote, err := WriteIfChanged(path, []byte("<p>a</p>"))
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = WriteIfChanged(path, []byte("<p>a</p>"))
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = WriteIfChanged(path, []byte("<p>b</p>"))
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "<p>b</p>", read(t, path))
}

func TestIsMinified(t *testing.T) {
	assert.True(t, isMinified("a.min.js"))
	assert.True(t, isMinified("a.min.scss"))
	assert.False(t, isMinified("a.js"))
	assert.False(t, isMinified("admin.js"))
	assert.False(t, isMinified("min.js"))
}
