package action

// Builder appends actions to an ordered sequence.
type Builder struct {
	actions []Action
}

func (b *Builder) Add(a Action) *Builder {
	b.actions = append(b.actions, a)
	return b
}

func (b *Builder) Construct(id, typ string) *Builder {
	return b.Add(Construct{ID: id, Type: typ})
}

func (b *Builder) ConstructLocal(id, typ string) *Builder {
	return b.Add(Construct{ID: id, Type: typ, Local: true})
}

func (b *Builder) Set(target, field string, value any) *Builder {
	return b.Add(SetField{Target: target, Field: field, Value: value})
}

func (b *Builder) Define(name string) *Builder {
	return b.Add(DefineFlag{Name: name, Value: true})
}

func (b *Builder) SDKConfig(name string, value bool) *Builder {
	return b.Add(DefineFlag{Name: name, Value: value, Scope: ScopeSDKConfig})
}

func (b *Builder) Register(target string, cfg any) *Builder {
	return b.Add(RegisterComponent{Target: target, Config: cfg})
}

func (b *Builder) Raise(kind, message string) *Builder {
	return b.Add(Raise{ErrorKind: kind, Message: message})
}

func (b *Builder) Checkpoint(name string) *Builder {
	return b.Add(Checkpoint{Name: name})
}

// Append adds a sequence produced elsewhere, preserving its order.
func (b *Builder) Append(actions ...Action) *Builder {
	b.actions = append(b.actions, actions...)
	return b
}

// Actions returns a copy of the sequence built so far.
func (b *Builder) Actions() []Action {
	out := make([]Action, len(b.actions))
	copy(out, b.actions)
	return out
}

// Find returns the index of the first action matching pred, or -1.
func Find(actions []Action, pred func(Action) bool) int {
	for i, a := range actions {
		if pred(a) {
			return i
		}
	}
	return -1
}
