// Package types provides common type definitions shared by the compiler,
// cache, and render pipeline. It exists to avoid circular dependencies
// between those packages.
package types

// Component is a compiled page template. Render invokes it with the page
// data and returns its markup. Implementations must be safe to call from
// multiple goroutines.
type Component interface {
	Render(data map[string]any) (string, error)
}

// ComponentFunc adapts a plain function to Component.
type ComponentFunc func(data map[string]any) (string, error)

// Render calls f.
func (f ComponentFunc) Render(data map[string]any) (string, error) { return f(data) }

// EventType represents the kind of source change seen by the watch loop.
type EventType string

const (
	EventTypeAdded   EventType = "added"
	EventTypeUpdated EventType = "updated"
	EventTypeRemoved EventType = "removed"
)

// BuildEvent reports the outcome of one build pass to listeners such as the
// dev server.
type BuildEvent struct {
	// Changed lists the files that triggered the pass; empty for a full build.
	Changed []string
	// Pages is the number of pages written.
	Pages int
	// Err is the first error of the pass, if any.
	Err error
}
