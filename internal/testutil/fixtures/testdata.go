// Package fixtures provides shared test data and recording actions for the
// seqactions test suite.
//
// Using common constants and a shared [Recorder] keeps callback
// expectations readable and consistent across packages.
package fixtures

// Standard configuration values used in config loader tests.
const (
	// TestEnvPrefix is the default environment variable prefix for config tests.
	TestEnvPrefix = "TESTAPP"

	// TestConfigYAML is a minimal valid YAML driver configuration.
	TestConfigYAML = `strict_reentrancy: true
max_starts_per_advance: 16
max_deferred_per_flush: 64
`

	// TestConfigJSON is a minimal valid JSON driver configuration.
	TestConfigJSON = `{
  "strict_reentrancy": true,
  "max_starts_per_advance": 16,
  "max_deferred_per_flush": 64
}`
)

// Action names used by queue tests.
const (
	ActionA = "A"
	ActionB = "B"
	ActionC = "C"
	ActionD = "D"
)
