// Package errors provides the structured error type used across the
// seqactions module. Errors carry a machine-readable code, a message, an
// optional cause, and optional structured details so that misuse of the
// action queue (modifying an agent from inside its own callback, touching
// an agent that was never attached) can be logged and asserted on without
// string matching.
//
// # Error Codes
//
// Codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier and XXX a numeric suffix:
//
//	VAL_xxx  - invalid input (bad configuration values, negative counts)
//	NF_xxx   - an agent or action could not be resolved
//	CONF_xxx - the operation conflicts with the current queue state
//	TIMEOUT_xxx - the caller's context ended before the operation ran
//	UNAVAIL_xxx - the tick loop is not running
//	INT_xxx  - unexpected internal failures and configuration loading
//
// # Usage
//
//	err := errors.Newf(errors.CodeNotFoundAgent, "actions: agent %d is not attached", agent)
//
//	if errors.IsReentrant(err) {
//	    // a callback tried to modify its own queue synchronously
//	}
package errors
