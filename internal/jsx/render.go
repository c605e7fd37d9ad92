package jsx

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/dop251/goja"
)

// MaxDepth bounds element nesting during a render.
const MaxDepth = 512

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var attrAliases = map[string]string{
	"className":      "class",
	"htmlFor":        "for",
	"httpEquiv":      "http-equiv",
	"acceptCharset":  "accept-charset",
	"xlinkHref":      "xlink:href",
	"defaultValue":   "value",
	"defaultChecked": "checked",
}

var skippedProps = map[string]bool{
	"children":                true,
	"key":                     true,
	"ref":                     true,
	"dangerouslySetInnerHTML": true,
	"__self":                  true,
	"__source":                true,
}

var unitless = map[string]bool{
	"animationIterationCount": true, "aspectRatio": true, "borderImageOutset": true,
	"borderImageSlice": true, "borderImageWidth": true, "boxFlex": true,
	"boxFlexGroup": true, "boxOrdinalGroup": true, "columnCount": true,
	"columns": true, "flex": true, "flexGrow": true, "flexPositive": true,
	"flexShrink": true, "flexNegative": true, "flexOrder": true, "gridArea": true,
	"gridRow": true, "gridRowEnd": true, "gridRowSpan": true, "gridRowStart": true,
	"gridColumn": true, "gridColumnEnd": true, "gridColumnSpan": true,
	"gridColumnStart": true, "fontWeight": true, "lineClamp": true,
	"lineHeight": true, "opacity": true, "order": true, "orphans": true,
	"tabSize": true, "widows": true, "zIndex": true, "zoom": true,
	"fillOpacity": true, "floodOpacity": true, "stopOpacity": true,
	"strokeDasharray": true, "strokeDashoffset": true, "strokeMiterlimit": true,
	"strokeOpacity": true, "strokeWidth": true,
}

var (
	validTag  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9:._-]*$`)
	validAttr = regexp.MustCompile(`^[a-zA-Z_:@][a-zA-Z0-9_:.@-]*$`)
	upperRun  = regexp.MustCompile(`[A-Z]`)
)

// Element creates an element of typ with a copy of props, the same way
// h(typ, props) would.
func (r *Runtime) Element(typ goja.Value, props map[string]interface{}) goja.Value {
	obj := r.vm.NewObject()
	for k, v := range props {
		_ = obj.Set(k, v)
	}
	r.applyDefaultProps(typ, obj)
	return r.newElement(typ, obj, goja.Undefined())
}

// RenderToString renders node, an element tree or any renderable value,
// to HTML.
func (r *Runtime) RenderToString(node goja.Value) (string, error) {
	var sb strings.Builder
	if err := r.render(&sb, node, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Runtime) render(sb *strings.Builder, node goja.Value, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("render depth exceeded %d", MaxDepth)
	}
	if node == nil || goja.IsUndefined(node) || goja.IsNull(node) {
		return nil
	}

	obj, isObj := node.(*goja.Object)
	if !isObj {
		if _, isBool := node.Export().(bool); isBool {
			return nil
		}
		sb.WriteString(templ.EscapeString(node.String()))
		return nil
	}

	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		for i := 0; i < n; i++ {
			if err := r.render(sb, obj.Get(strconv.Itoa(i)), depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if !r.IsElement(obj) {
		if _, isFn := goja.AssertFunction(obj); isFn {
			return nil
		}
		sb.WriteString(templ.EscapeString(obj.String()))
		return nil
	}

	typ := obj.Get("type")
	props, ok := obj.Get("props").(*goja.Object)
	if !ok {
		props = r.vm.NewObject()
	}

	if tag, ok := typ.Export().(string); ok {
		return r.renderTag(sb, tag, props, depth)
	}

	if id, ok := contextID(typ); ok {
		r.pushContext(id, props.Get("value"))
		defer r.popContext(id)
		return r.render(sb, props.Get("children"), depth+1)
	}

	out, err := r.invoke(typ, props)
	if err != nil {
		return err
	}
	return r.render(sb, out, depth+1)
}

// invoke calls a function or class component with props.
func (r *Runtime) invoke(typ goja.Value, props *goja.Object) (goja.Value, error) {
	fn, ok := goja.AssertFunction(typ)
	if !ok {
		return nil, fmt.Errorf("invalid element type %q", typ.String())
	}

	typObj := typ.(*goja.Object)
	if proto, ok := typObj.Get("prototype").(*goja.Object); ok {
		if render, ok := goja.AssertFunction(proto.Get("render")); ok {
			inst, err := r.vm.New(typ, props)
			if err != nil {
				return nil, err
			}
			_ = inst.Set("props", props)
			state := inst.Get("state")
			if state == nil || goja.IsUndefined(state) {
				state = r.vm.NewObject()
				_ = inst.Set("state", state)
			}
			return render(inst, props, state)
		}
	}

	return fn(goja.Undefined(), props)
}

func (r *Runtime) renderTag(sb *strings.Builder, tag string, props *goja.Object, depth int) error {
	if !validTag.MatchString(tag) {
		return fmt.Errorf("invalid tag name %q", tag)
	}

	sb.WriteByte('<')
	sb.WriteString(tag)

	for _, key := range props.Keys() {
		if skippedProps[key] {
			continue
		}
		value := props.Get(key)
		if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
			continue
		}
		if _, isFn := goja.AssertFunction(value); isFn {
			continue
		}
		name := key
		if alias, ok := attrAliases[key]; ok {
			name = alias
		}
		if !validAttr.MatchString(name) {
			continue
		}

		if b, isBool := value.Export().(bool); isBool {
			if b {
				sb.WriteByte(' ')
				sb.WriteString(name)
			}
			continue
		}

		var text string
		if styleObj, ok := value.(*goja.Object); ok && name == "style" {
			text = styleToCSS(styleObj)
			if text == "" {
				continue
			}
		} else {
			text = value.String()
		}

		sb.WriteByte(' ')
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(templ.EscapeString(text))
		sb.WriteByte('"')
	}

	if voidElements[strings.ToLower(tag)] {
		sb.WriteString("/>")
		return nil
	}
	sb.WriteByte('>')

	if inner, ok := props.Get("dangerouslySetInnerHTML").(*goja.Object); ok {
		if html := inner.Get("__html"); html != nil && !goja.IsUndefined(html) && !goja.IsNull(html) {
			sb.WriteString(html.String())
		}
	} else if err := r.render(sb, props.Get("children"), depth+1); err != nil {
		return err
	}

	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
	return nil
}

func styleToCSS(style *goja.Object) string {
	var parts []string
	for _, key := range style.Keys() {
		v := style.Get(key)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			continue
		}
		if _, isBool := v.Export().(bool); isBool {
			continue
		}
		value := v.String()
		switch v.Export().(type) {
		case int64, float64:
			if !unitless[key] && !strings.HasPrefix(key, "--") && value != "0" {
				value += "px"
			}
		}
		parts = append(parts, cssProperty(key)+":"+value)
	}
	return strings.Join(parts, ";")
}

func cssProperty(key string) string {
	if strings.HasPrefix(key, "--") {
		return key
	}
	prop := upperRun.ReplaceAllStringFunc(key, func(s string) string {
		return "-" + strings.ToLower(s)
	})
	if strings.HasPrefix(prop, "ms-") {
		prop = "-" + prop
	}
	return prop
}
