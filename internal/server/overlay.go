package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const overlayStyle = `body{margin:0;font-family:ui-monospace,monospace;background:#1e1e1e;color:#eee}` +
	`main{padding:2rem}h1{color:#ff6b6b;font-size:1.25rem}` +
	`pre{white-space:pre-wrap;background:#2b2b2b;padding:1rem;border-left:4px solid #ff6b6b}`

// ErrorOverlay renders the page shown while the last build is failing.
func ErrorOverlay(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Build failed</title><style>`+
			overlayStyle+`</style></head><body><main><h1>Build failed</h1><pre>`); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(message)); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</pre><p>The page reloads after the next successful build.</p></main></body></html>`)
		return err
	})
}
