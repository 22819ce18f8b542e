// Package render is the reference code-emission backend. It turns an action
// list into C++-like setup code, a defines header and sdkconfig options.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/timzifer/threadgen/action"
)

// Output is a rendered action list.
type Output struct {
	Globals   []string
	Setup     []string
	Defines   []string
	SDKConfig []string
}

type renderer struct {
	out     Output
	locals  map[string]bool
	defined map[string]bool
	options map[string]int
}

// Render translates actions in order. A Raise action cannot be rendered and
// fails the whole output.
func Render(actions []action.Action) (*Output, error) {
	r := &renderer{
		locals:  make(map[string]bool),
		defined: make(map[string]bool),
		options: make(map[string]int),
	}
	for i, a := range actions {
		if err := r.add(a); err != nil {
			return nil, fmt.Errorf("render action %d (%s): %w", i, a, err)
		}
	}
	return &r.out, nil
}

func (r *renderer) add(a action.Action) error {
	switch v := a.(type) {
	case action.Construct:
		if v.Local {
			r.locals[v.ID] = true
			r.setup("%s %s = %s();", v.Type, v.ID, v.Type)
			return nil
		}
		r.out.Globals = append(r.out.Globals, fmt.Sprintf("%s *%s;", v.Type, v.ID))
		r.setup("%s = new %s();", v.ID, v.Type)
	case action.SetField:
		value, ok := cppValue(v.Value)
		if !ok {
			r.setup("// %s.%s is handled by a later pass", v.Target, v.Field)
			return nil
		}
		r.setup("%s%s%s(%s);", v.Target, r.accessor(v.Target), method(v.Field), value)
	case action.DefineFlag:
		r.define(v)
	case action.RegisterComponent:
		r.setup("App.register_component(%s);", v.Target)
	case action.Checkpoint:
		r.setup("// checkpoint: %s", v.Name)
	case action.Raise:
		return fmt.Errorf("%s: %s", v.ErrorKind, v.Message)
	default:
		return fmt.Errorf("unsupported action kind %s", a.Kind())
	}
	return nil
}

func (r *renderer) setup(format string, args ...any) {
	r.out.Setup = append(r.out.Setup, fmt.Sprintf(format, args...))
}

func (r *renderer) accessor(target string) string {
	if r.locals[target] {
		return "."
	}
	return "->"
}

// define records a flag. Source defines are emitted once; a repeated
// sdkconfig option keeps its first position and takes the latest value.
func (r *renderer) define(d action.DefineFlag) {
	if d.Scope == action.ScopeSDKConfig {
		line := fmt.Sprintf("%s=y", d.Name)
		if !d.Value {
			line = fmt.Sprintf("# %s is not set", d.Name)
		}
		if idx, ok := r.options[d.Name]; ok {
			r.out.SDKConfig[idx] = line
			return
		}
		r.options[d.Name] = len(r.out.SDKConfig)
		r.out.SDKConfig = append(r.out.SDKConfig, line)
		return
	}
	if r.defined[d.Name] {
		return
	}
	r.defined[d.Name] = true
	if d.Value {
		r.out.Defines = append(r.out.Defines, "#define "+d.Name)
	} else {
		r.out.Defines = append(r.out.Defines, "#undef "+d.Name)
	}
}

func method(field string) string {
	if strings.HasPrefix(field, "add_") {
		return field
	}
	return "set_" + field
}

func cppValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "nullptr", true
	case action.Ref:
		return string(val), true
	case string:
		return strconv.Quote(val), true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64) + "f", true
	default:
		return "", false
	}
}

// WriteSource writes the rendered output as one file with sections for
// defines, globals, setup code and sdkconfig options.
func (o *Output) WriteSource(w io.Writer) error {
	var b strings.Builder
	b.WriteString("// Generated by threadgen. Do not edit.\n")
	section(&b, "", o.Defines)
	if len(o.Globals) > 0 {
		b.WriteString("\n")
		for _, line := range o.Globals {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nvoid setup() {\n")
	for _, line := range o.Setup {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	section(&b, "// sdkconfig\n", prefixed("// ", o.SDKConfig))
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSDKConfig writes the sdkconfig options in Kconfig format.
func (o *Output) WriteSDKConfig(w io.Writer) error {
	var b strings.Builder
	for _, line := range o.SDKConfig {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(header)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

func prefixed(prefix string, lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return out
}

// Source renders actions and writes them as one source file.
func Source(w io.Writer, actions []action.Action) error {
	out, err := Render(actions)
	if err != nil {
		return err
	}
	return out.WriteSource(w)
}
