package trace

// Variable is a named storage location owned by a function or module.
type Variable struct {
	Name  string
	Owner string // function or module that owns the variable

	// Shared variables are visible to foreign code (closure cells and
	// module globals), so an unknown call may rebind them.
	Shared bool
}

// NewVariable creates a variable.
func NewVariable(owner, name string, shared bool) *Variable {
	return &Variable{Name: name, Owner: owner, Shared: shared}
}

func (v *Variable) String() string {
	if v.Owner == "" {
		return v.Name
	}
	return v.Owner + "." + v.Name
}
