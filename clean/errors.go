package clean

import "fmt"

// PreconditionError reports that an operator's precondition was not met
// currently only raised by
// interpolate when map_match has not yet been run. The operator returns
// without mutating the trace.
type PreconditionError struct {
	Operator     string
	Precondition string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition not met: %s", e.Operator, e.Precondition)
}

// InvariantError reports that applying an operator's result would have
// violated an invariant of the cleaned trace. This indicates a bug in
// the operator itself: the trace is left exactly as it was before the call.
type InvariantError struct {
	Operator  string
	Invariant string
	Detail    string
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("%s: would violate %s: %s", e.Operator, e.Invariant, e.Detail)
}
