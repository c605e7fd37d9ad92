package compiler

import (
	"sync"

	"github.com/dop251/goja"

	"github.com/conneroisu/jsxsite/internal/errors"
	"github.com/conneroisu/jsxsite/internal/jsx"
)

// Component is a loaded page module. It owns its VM; calls are serialised.
type Component struct {
	mu    sync.Mutex
	path  string
	rt    *jsx.Runtime
	entry goja.Value
}

// Path returns the source path the component was compiled from.
func (c *Component) Path() string { return c.path }

// Render invokes the default export with data as props and renders the
// result. Anything thrown by the component is an execution error.
func (c *Component) Render(data map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.rt.RenderToString(c.rt.Element(c.entry, data))
	if err != nil {
		return "", errors.NewExecutionError(c.path, err)
	}
	return out, nil
}
