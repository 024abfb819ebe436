// Package config defines the scenario file model consumed by the chaos
// orchestrator.
//
// A scenario file holds one or more [ScenarioEntry] values under the
// top-level node_scenarios key. Each entry names a cloud backend, a node
// target (explicit names or label selectors), an ordered list of actions
// and the timing parameters for their dual confirmation waits. [LoadFile]
// reads, defaults and validates a file in one step.
package config
