// Package jsx provides the element factory that compiled pages import
// (jsx, jsxs, h, createElement, Fragment and a minimal set of hooks) and a
// renderer that turns the resulting element tree into an HTML string.
//
// The factory is registered as native CommonJS modules on a goja runtime
// under the configured import source, and under "preact" and "react", so
// that "preact/jsx-runtime", "react", "preact/hooks" and friends all resolve
// to the same implementation.
package jsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/conneroisu/jsxsite/internal/logging"
)

// ElementMarker tags objects created by the factory.
const ElementMarker = "jsxsite.element"

const (
	contextIDKey    = "__jsxsiteContext"
	contextValueKey = "_defaultValue"
)

var subpaths = []string{"", "/jsx-runtime", "/jsx-dev-runtime", "/hooks"}

// Bases returns the distinct module bases served by the runtime.
func Bases(importSource string) []string {
	bases := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, b := range []string{importSource, "preact", "react"} {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		bases = append(bases, b)
	}
	return bases
}

// ModuleNames returns every module specifier the runtime answers to.
func ModuleNames(importSource string) []string {
	var names []string
	for _, b := range Bases(importSource) {
		for _, s := range subpaths {
			names = append(names, b+s)
		}
	}
	return names
}

// Externals returns bundler external patterns that keep runtime imports
// out of the bundle.
func Externals(importSource string) []string {
	var ext []string
	for _, b := range Bases(importSource) {
		ext = append(ext, b, b+"/*")
	}
	return ext
}

// Runtime is the element factory bound to one goja VM. It is not safe for
// concurrent use.
type Runtime struct {
	vm           *goja.Runtime
	importSource string
	logger       logging.Logger

	exports *goja.Object

	nextContext int64
	contexts    map[int64][]goja.Value
}

// NewRuntime builds the factory exports on vm.
func NewRuntime(vm *goja.Runtime, importSource string, logger logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runtime{
		vm:           vm,
		importSource: importSource,
		logger:       logger,
		contexts:     make(map[int64][]goja.Value),
	}
	if err := r.buildExports(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register installs the factory modules and a console that forwards to the
// logger.
func (r *Runtime) Register(registry *require.Registry) {
	for _, name := range ModuleNames(r.importSource) {
		registry.RegisterNativeModule(name, func(_ *goja.Runtime, module *goja.Object) {
			_ = module.Set("exports", r.exports)
		})
	}
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&consolePrinter{logger: r.logger}))
}

// EnableConsole exposes the console global. Register must have been called
// and the registry enabled on the VM.
func (r *Runtime) EnableConsole() {
	console.Enable(r.vm)
}

// componentBase evaluates a Component base class that class components
// can extend.
const componentBase = `(function () {
	function Component(props, context) {
		this.props = props;
		this.context = context;
		this.state = {};
	}
	Component.prototype.setState = function (update) {
		var next = typeof update === "function" ? update(this.state, this.props) : update;
		this.state = Object.assign({}, this.state, next);
	};
	Component.prototype.forceUpdate = function () {};
	return Component;
})()`

func (r *Runtime) buildExports() error {
	vm := r.vm
	exports := vm.NewObject()

	component, err := vm.RunString(componentBase)
	if err != nil {
		return fmt.Errorf("jsx runtime: component base: %w", err)
	}

	fragment := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		props := call.Argument(0)
		if obj, ok := props.(*goja.Object); ok {
			return obj.Get("children")
		}
		return goja.Undefined()
	})

	set := func(name string, v interface{}) {
		if err == nil {
			err = exports.Set(name, v)
		}
	}

	set("jsx", r.jsxFactory)
	set("jsxs", r.jsxFactory)
	set("jsxDEV", r.jsxFactory)
	set("h", r.createElement)
	set("createElement", r.createElement)
	set("Fragment", fragment)
	set("Component", component)
	set("PureComponent", component)
	set("isValidElement", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(r.IsElement(call.Argument(0)))
	})
	set("cloneElement", r.cloneElement)
	set("createContext", r.createContext)
	set("useContext", r.useContext)
	set("useState", r.useState)
	set("useReducer", r.useReducer)
	set("useEffect", noop)
	set("useLayoutEffect", noop)
	set("useInsertionEffect", noop)
	set("useImperativeHandle", noop)
	set("useMemo", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		v, callErr := fn(goja.Undefined())
		if callErr != nil {
			r.throw(callErr)
		}
		return v
	})
	set("useCallback", func(call goja.FunctionCall) goja.Value { return call.Argument(0) })
	set("useRef", func(call goja.FunctionCall) goja.Value {
		ref := vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		return ref
	})
	set("useId", r.useID)
	if err != nil {
		return fmt.Errorf("jsx runtime: exports: %w", err)
	}

	fragmentObj := fragment.(*goja.Object)
	_ = fragmentObj.Set("displayName", "Fragment")

	r.exports = exports
	return nil
}

func noop(goja.FunctionCall) goja.Value { return goja.Undefined() }

// throw rethrows err inside the VM from a native function.
func (r *Runtime) throw(err error) {
	if ex, ok := err.(*goja.Exception); ok {
		panic(ex.Value())
	}
	panic(r.vm.NewGoError(err))
}

func (r *Runtime) newElement(typ, props, key goja.Value) *goja.Object {
	el := r.vm.NewObject()
	_ = el.Set("$$typeof", ElementMarker)
	_ = el.Set("type", typ)
	_ = el.Set("props", props)
	if key == nil || goja.IsUndefined(key) {
		key = goja.Null()
	}
	_ = el.Set("key", key)
	return el
}

// jsxFactory implements the automatic runtime: jsx(type, props, key).
func (r *Runtime) jsxFactory(call goja.FunctionCall) goja.Value {
	props, ok := call.Argument(1).(*goja.Object)
	if !ok {
		props = r.vm.NewObject()
	}
	r.applyDefaultProps(call.Argument(0), props)
	return r.newElement(call.Argument(0), props, call.Argument(2))
}

// createElement implements the classic runtime: h(type, config, ...children).
func (r *Runtime) createElement(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)
	props := r.vm.NewObject()
	key := goja.Undefined()

	if cfg, ok := call.Argument(1).(*goja.Object); ok {
		for _, k := range cfg.Keys() {
			switch k {
			case "key":
				key = cfg.Get(k)
			case "ref":
			default:
				_ = props.Set(k, cfg.Get(k))
			}
		}
	}

	if len(call.Arguments) > 2 {
		children := call.Arguments[2:]
		if len(children) == 1 {
			_ = props.Set("children", children[0])
		} else {
			items := make([]interface{}, len(children))
			for i, c := range children {
				items[i] = c
			}
			_ = props.Set("children", r.vm.NewArray(items...))
		}
	}

	r.applyDefaultProps(typ, props)
	return r.newElement(typ, props, key)
}

func (r *Runtime) cloneElement(call goja.FunctionCall) goja.Value {
	el, ok := call.Argument(0).(*goja.Object)
	if !ok || !r.IsElement(el) {
		return call.Argument(0)
	}
	props := r.vm.NewObject()
	if old, ok := el.Get("props").(*goja.Object); ok {
		for _, k := range old.Keys() {
			_ = props.Set(k, old.Get(k))
		}
	}
	key := el.Get("key")
	if cfg, ok := call.Argument(1).(*goja.Object); ok {
		for _, k := range cfg.Keys() {
			if k == "key" {
				key = cfg.Get(k)
				continue
			}
			_ = props.Set(k, cfg.Get(k))
		}
	}
	if len(call.Arguments) > 2 {
		_ = props.Set("children", call.Arguments[2])
	}
	return r.newElement(el.Get("type"), props, key)
}

func (r *Runtime) applyDefaultProps(typ goja.Value, props *goja.Object) {
	obj, ok := typ.(*goja.Object)
	if !ok {
		return
	}
	defaults, ok := obj.Get("defaultProps").(*goja.Object)
	if !ok {
		return
	}
	for _, k := range defaults.Keys() {
		if v := props.Get(k); v == nil || goja.IsUndefined(v) {
			_ = props.Set(k, defaults.Get(k))
		}
	}
}

// IsElement reports whether v was produced by the factory.
func (r *Runtime) IsElement(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	marker := obj.Get("$$typeof")
	return marker != nil && marker.String() == ElementMarker
}

func (r *Runtime) createContext(call goja.FunctionCall) goja.Value {
	vm := r.vm
	r.nextContext++
	id := r.nextContext

	ctx := vm.NewObject()
	_ = ctx.Set(contextIDKey, id)
	_ = ctx.Set(contextValueKey, call.Argument(0))

	provider := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if props, ok := call.Argument(0).(*goja.Object); ok {
			return props.Get("children")
		}
		return goja.Undefined()
	}).(*goja.Object)
	_ = provider.Set(contextIDKey, id)

	consumer := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		props, ok := call.Argument(0).(*goja.Object)
		if !ok {
			return goja.Undefined()
		}
		fn, ok := goja.AssertFunction(props.Get("children"))
		if !ok {
			return goja.Undefined()
		}
		v, err := fn(goja.Undefined(), r.contextValue(ctx))
		if err != nil {
			r.throw(err)
		}
		return v
	})

	_ = ctx.Set("Provider", provider)
	_ = ctx.Set("Consumer", consumer)
	return ctx
}

func contextID(v goja.Value) (int64, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return 0, false
	}
	id := obj.Get(contextIDKey)
	if id == nil || goja.IsUndefined(id) {
		return 0, false
	}
	return id.ToInteger(), true
}

func (r *Runtime) contextValue(ctx goja.Value) goja.Value {
	id, ok := contextID(ctx)
	if !ok {
		return goja.Undefined()
	}
	if stack := r.contexts[id]; len(stack) > 0 {
		return stack[len(stack)-1]
	}
	return ctx.(*goja.Object).Get(contextValueKey)
}

func (r *Runtime) pushContext(id int64, v goja.Value) {
	r.contexts[id] = append(r.contexts[id], v)
}

func (r *Runtime) popContext(id int64) {
	stack := r.contexts[id]
	if len(stack) > 0 {
		r.contexts[id] = stack[:len(stack)-1]
	}
}

func (r *Runtime) useContext(call goja.FunctionCall) goja.Value {
	return r.contextValue(call.Argument(0))
}

func (r *Runtime) initialValue(v goja.Value) goja.Value {
	if fn, ok := goja.AssertFunction(v); ok {
		out, err := fn(goja.Undefined())
		if err != nil {
			r.throw(err)
		}
		return out
	}
	return v
}

// useState returns the initial value; setters are inert during a
// server render.
func (r *Runtime) useState(call goja.FunctionCall) goja.Value {
	return r.vm.NewArray(r.initialValue(call.Argument(0)), r.vm.ToValue(noop))
}

func (r *Runtime) useReducer(call goja.FunctionCall) goja.Value {
	state := call.Argument(1)
	if init, ok := goja.AssertFunction(call.Argument(2)); ok {
		v, err := init(goja.Undefined(), state)
		if err != nil {
			r.throw(err)
		}
		state = v
	}
	return r.vm.NewArray(state, r.vm.ToValue(noop))
}

func (r *Runtime) useID(goja.FunctionCall) goja.Value {
	r.nextContext++
	return r.vm.ToValue(fmt.Sprintf("jsx-%d", r.nextContext))
}

type consolePrinter struct {
	logger logging.Logger
}

func (p *consolePrinter) Log(s string) {
	p.logger.Info(context.Background(), strings.TrimRight(s, "\n"), "source", "console")
}

func (p *consolePrinter) Warn(s string) {
	p.logger.Warn(context.Background(), nil, strings.TrimRight(s, "\n"), "source", "console")
}

func (p *consolePrinter) Error(s string) {
	p.logger.Error(context.Background(), nil, strings.TrimRight(s, "\n"), "source", "console")
}
