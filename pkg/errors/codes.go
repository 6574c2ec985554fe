package errors

// Code represents a machine-readable error code. Codes are stable once
// assigned and are safe to use in log queries and test assertions.
type Code string

const (
	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required value is missing.
	CodeValidationRequired Code = "VAL_002"

	// CodeValidationRange indicates a value is outside its accepted range.
	CodeValidationRange Code = "VAL_004"

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// CodeNotFoundAgent indicates the agent has no action queue attached,
	// either because it was never attached or because it was despawned
	// and torn down.
	CodeNotFoundAgent Code = "NF_002"

	// CodeConflict indicates the operation conflicts with current state.
	CodeConflict Code = "CONF_001"

	// CodeConflictReentrant indicates an immediate modification was
	// requested for an agent while one of that agent's action callbacks
	// is still executing. Such edits must go through the deferred surface.
	CodeConflictReentrant Code = "CONF_002"

	// CodeTimeout indicates an operation was canceled or its deadline
	// passed before it could run.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeUnavailable indicates the component is not in a state to serve
	// the request, such as a tick loop that is not running.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalConfiguration indicates configuration could not be
	// loaded or parsed.
	CodeInternalConfiguration Code = "INT_003"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "NF").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
