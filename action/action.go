package action

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a build action variant.
type Kind int

const (
	KindConstruct Kind = iota
	KindSetField
	KindDefineFlag
	KindRegisterComponent
	KindRaise
	KindCheckpoint
)

func (k Kind) String() string {
	switch k {
	case KindConstruct:
		return "construct"
	case KindSetField:
		return "set_field"
	case KindDefineFlag:
		return "define_flag"
	case KindRegisterComponent:
		return "register_component"
	case KindRaise:
		return "raise"
	case KindCheckpoint:
		return "checkpoint"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Action is one discrete, ordered instruction for a code-emission backend.
//
// The set of implementations is closed; backends switch on the concrete type.
type Action interface {
	Kind() Kind
	String() string
	isAction()
}

// Ref names another generated object when it is passed as a setter value.
type Ref string

// Construct instantiates an object of Type under the identifier ID. Local
// objects are scoped to the generated setup block instead of being heap
// allocated globals.
type Construct struct {
	ID    string
	Type  string
	Local bool
}

func (Construct) Kind() Kind { return KindConstruct }
func (Construct) isAction()  {}

func (c Construct) String() string {
	if c.Local {
		return fmt.Sprintf("Construct(%s, %s, local)", c.ID, c.Type)
	}
	return fmt.Sprintf("Construct(%s, %s)", c.ID, c.Type)
}

// SetField assigns Value to Field on the object identified by Target.
type SetField struct {
	Target string
	Field  string
	Value  any
}

func (SetField) Kind() Kind { return KindSetField }
func (SetField) isAction()  {}

func (s SetField) String() string {
	return fmt.Sprintf("SetField(%s, %s, %s)", s.Target, s.Field, FormatValue(s.Value))
}

// FlagScope tells the backend where a flag ends up.
type FlagScope int

const (
	// ScopeDefine emits a preprocessor define into the generated sources.
	ScopeDefine FlagScope = iota
	// ScopeSDKConfig emits an option into the SDK configuration of the build.
	ScopeSDKConfig
)

func (s FlagScope) String() string {
	if s == ScopeSDKConfig {
		return "sdkconfig"
	}
	return "define"
}

// DefineFlag sets a compile-time flag.
type DefineFlag struct {
	Name  string
	Value bool
	Scope FlagScope
}

func (DefineFlag) Kind() Kind { return KindDefineFlag }
func (DefineFlag) isAction()  {}

func (d DefineFlag) String() string {
	if d.Scope == ScopeSDKConfig {
		return fmt.Sprintf("DefineFlag(%s, %t, sdkconfig)", d.Name, d.Value)
	}
	return fmt.Sprintf("DefineFlag(%s, %t)", d.Name, d.Value)
}

// RegisterComponent hands the constructed object to the application. It is
// the commit point of a compile unit.
type RegisterComponent struct {
	Target string
	Config any
}

func (RegisterComponent) Kind() Kind { return KindRegisterComponent }
func (RegisterComponent) isAction()  {}

func (r RegisterComponent) String() string {
	return fmt.Sprintf("RegisterComponent(%s)", r.Target)
}

// Raise aborts the build with the given error kind.
type Raise struct {
	ErrorKind string
	Message   string
}

func (Raise) Kind() Kind { return KindRaise }
func (Raise) isAction()  {}

func (r Raise) String() string {
	return fmt.Sprintf("Raise(%s, %q)", r.ErrorKind, r.Message)
}

// Checkpoint marks that every preceding action is ordered before the named
// checkpoint logic runs.
type Checkpoint struct {
	Name string
}

func (Checkpoint) Kind() Kind { return KindCheckpoint }
func (Checkpoint) isAction()  {}

func (c Checkpoint) String() string {
	return fmt.Sprintf("Checkpoint(%s)", c.Name)
}

// SafeMode is the checkpoint after which rollback logic may run.
const SafeMode = "safe_mode"

// YieldsAfter reports whether an orchestrator may interleave other compile
// units directly after a.
func YieldsAfter(a Action) bool {
	switch a.Kind() {
	case KindRegisterComponent, KindCheckpoint:
		return true
	default:
		return false
	}
}

// FormatValue renders a setter value the way it appears in action listings.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case Ref:
		return string(val)
	case string:
		return strconv.Quote(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Describe renders a sequence one action per line.
func Describe(actions []Action) string {
	var b strings.Builder
	for _, a := range actions {
		b.WriteString(a.String())
		b.WriteByte('\n')
	}
	return b.String()
}
