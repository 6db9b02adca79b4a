// Package harness provides test harness infrastructure for validating the analyzer against program descriptions.
package harness

// RunConfiguration represents one way of driving the type inference worklist.
type RunConfiguration struct {
	Name       string `yaml:"name"`
	Sequential bool   `yaml:"sequential"`
	Workers    int    `yaml:"workers,omitempty"`
	Skip       bool   `yaml:"skip,omitempty"`
	Reason     string `yaml:"reason,omitempty"`
}

// defaultConfigurations are used by cases that do not list their own. Every
// case must converge to the same result under each of them.
var defaultConfigurations = []RunConfiguration{
	{Name: "sequential", Sequential: true},
	{Name: "single-worker", Workers: 1},
	{Name: "concurrent", Workers: 4},
}
