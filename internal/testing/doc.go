// Package testing provides test utilities, builders, and fakes for unit and
// integration tests of the chaos engine.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ScenarioBuilder: Fluent builder for scenario entries
//   - FakeCluster: In-memory ClusterProbe with label matching and scripted conditions
//   - FakeBackend: In-memory CloudBackend and VolumeManager with failure injection
//   - FakeRemote: Recording RemoteExecutor
//   - MockBackend: testify mock of CloudBackend for call assertions
//
// Usage:
//
//	entry := testing.NewScenarioBuilder().
//	    WithLabelSelector("role=worker").
//	    WithActions(config.ActionStopStart).
//	    Build()
//
//	cluster := testing.NewFakeCluster().AddWorkers(5, map[string]string{"role": "worker"})
//	backend := testing.NewFakeBackend(cluster.NodeNames()...)
package testing
