// Package conformance runs YAML-described end-to-end scenarios: each case
// compiles a source snippet, round-trips the bytecode through the codec,
// executes it, and checks the observable outcome.
package conformance

// TestSuite represents a complete YAML test file.
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite.
type TestCase struct {
	Name     string      `yaml:"name"`
	Source   string      `yaml:"source"`
	Features *FeatureSet `yaml:"features,omitempty"`
	Expect   Expectation `yaml:"expect"`
}

// FeatureSet toggles compiler features for a test case.
type FeatureSet struct {
	Enable  []string `yaml:"enable,omitempty"`
	Disable []string `yaml:"disable,omitempty"`
}

// Expectation defines what outcome is expected from a test. Exactly one of
// the fields is typically set.
type Expectation struct {
	// Output is the exact expected standard output.
	Output *string `yaml:"output,omitempty"`

	// Diagnostic is a substring expected in a compile-time diagnostic.
	Diagnostic string `yaml:"diagnostic,omitempty"`

	// Fault is the expected runtime fault kind (e.g. "TypeError").
	Fault string `yaml:"fault,omitempty"`
}
