package ioc

// BuildState is the position of a bean in its construction lifecycle.
type BuildState int

const (
	// StateUnbuilt is the initial state; no instance exists yet.
	StateUnbuilt BuildState = iota
	// StateConstructed means the builder produced a raw instance.
	StateConstructed
	// StatePropertiesBound means every declared property has been applied.
	StatePropertiesBound
	// StateThreadAssigned means the instance lives on its target execution context.
	StateThreadAssigned
	// StateCompleted means the bean may be served to callers and references.
	StateCompleted
	// StateError is absorbing; the bean's build chain failed.
	StateError
)

var buildStateNames = map[BuildState]string{
	StateUnbuilt:         "unbuilt",
	StateConstructed:     "constructed",
	StatePropertiesBound: "properties_bound",
	StateThreadAssigned:  "thread_assigned",
	StateCompleted:       "completed",
	StateError:           "error",
}

func (s BuildState) String() string {
	if name, ok := buildStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HasInstance reports whether a raw instance exists in this state.
func (s BuildState) HasInstance() bool {
	return s >= StateConstructed && s <= StateCompleted
}

// InProgress reports whether the state lies strictly between Unbuilt and Completed.
func (s BuildState) InProgress() bool {
	return s >= StateConstructed && s < StateCompleted
}

// canAdvance reports whether moving from s to next is a legal transition.
func (s BuildState) canAdvance(next BuildState) bool {
	if next == StateError {
		return s < StateCompleted
	}
	return next == s+1 && next <= StateCompleted
}
