// Package schema validates raw configuration subtrees and normalizes them
// into typed configuration values.
//
// Validation runs in two passes. A CUE definition checks structure, types and
// closedness and fills declared defaults. Refiners written in Go then apply
// the predicates CUE cannot express with the required diagnostics (minimum
// lengths, address parsing, generated identifiers, uniqueness).
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/timzifer/threadgen/config"
)

// Path locates a field inside a configuration subtree. Sequence indexes are
// rendered as plain elements, e.g. networks.1.tlvs.
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Child returns a copy of p extended by elems.
func (p Path) Child(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, elems...)
}

// Index extends p by a sequence index.
func (p Path) Index(i int) Path {
	return p.Child(fmt.Sprint(i))
}

// ValidationError reports a field that failed its declared type or
// constraint.
type ValidationError struct {
	Path    Path
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Invalid builds a ValidationError for path.
func Invalid(path Path, format string, args ...any) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// Refiner post-processes the CUE-decoded value. raw is a private copy of the
// input tree and may be read but must not be retained.
type Refiner[T any] func(out *T, raw config.Node) error

// Spec couples a CUE definition with the refiners producing T.
type Spec[T any] struct {
	name    string
	ctx     *cue.Context
	def     cue.Value
	prepare func(raw config.Node) error
	refine  []Refiner[T]
}

// Compile builds a Spec from CUE source. definition names the definition
// the configuration is unified with, e.g. "#Radio".
func Compile[T any](name, source, definition string, refiners ...Refiner[T]) (*Spec[T], error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	def := val.LookupPath(cue.ParsePath(definition))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup %s in %s schema: %w", definition, name, err)
	}
	return &Spec[T]{name: name, ctx: ctx, def: def, refine: refiners}, nil
}

// MustCompile is like Compile but panics on error. It is meant for schemas
// declared as package constants.
func MustCompile[T any](name, source, definition string, refiners ...Refiner[T]) *Spec[T] {
	spec, err := Compile[T](name, source, definition, refiners...)
	if err != nil {
		panic(err)
	}
	return spec
}

// Name returns the schema name.
func (s *Spec[T]) Name() string { return s.name }

// WithPrepare returns a copy of the spec that rewrites the raw tree before
// the CUE pass, e.g. to turn empty mappings into {} or fold key aliases.
func (s *Spec[T]) WithPrepare(fn func(raw config.Node) error) *Spec[T] {
	clone := *s
	clone.prepare = fn
	return &clone
}

// WithRefiners returns a copy of the spec with additional refiners appended.
func (s *Spec[T]) WithRefiners(refiners ...Refiner[T]) *Spec[T] {
	clone := *s
	clone.refine = append(append([]Refiner[T](nil), s.refine...), refiners...)
	return &clone
}

// Validate checks raw against spec and returns the normalized value. The
// input tree is never modified. Failures are reported as *ValidationError.
func Validate[T any](raw config.Node, spec *Spec[T]) (*T, error) {
	if spec == nil {
		return nil, errors.New("schema must not be nil")
	}
	tree := raw.Clone()
	if tree == nil {
		tree = config.Node{}
	}
	if spec.prepare != nil {
		if err := spec.prepare(tree); err != nil {
			return nil, err
		}
	}

	data := spec.ctx.Encode(plain(tree))
	if err := data.Err(); err != nil {
		return nil, Invalid(nil, "unsupported value: %v", err)
	}
	unified := spec.def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, firstCUEError(err)
	}

	var out T
	if err := unified.Decode(&out); err != nil {
		return nil, Invalid(nil, "decode %s: %v", spec.name, err)
	}
	for _, refine := range spec.refine {
		if err := refine(&out, tree); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

// firstCUEError converts CUE diagnostics into a ValidationError. The first
// error by path order is reported so results are deterministic.
func firstCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return Invalid(nil, "%v", err)
	}
	converted := make([]*ValidationError, 0, len(list))
	for _, e := range list {
		format, args := e.Msg()
		converted = append(converted, &ValidationError{
			Path:    trimDefinition(e.Path()),
			Message: fmt.Sprintf(format, args...),
		})
	}
	sort.SliceStable(converted, func(i, j int) bool {
		return converted[i].Path.String() < converted[j].Path.String()
	})
	return converted[0]
}

func trimDefinition(path []string) Path {
	out := make(Path, 0, len(path))
	for _, elem := range path {
		if strings.HasPrefix(elem, "#") {
			continue
		}
		out = append(out, elem)
	}
	return out
}

// plain strips named map types so the CUE encoder sees built-in kinds only.
func plain(v any) any {
	switch val := v.(type) {
	case config.Node:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = plain(val[i])
		}
		return out
	default:
		return val
	}
}
