// Package chaos implements the node lifecycle chaos engine.
//
// An [Orchestrator] executes one scenario entry at a time. For every
// configured action it asks the [Selector] for target nodes and dispatches
// the action to a [NodeScenario], sequentially or with one worker per node.
//
// Every action-iteration follows the same state machine:
//
//	initial -> mutation_issued -> cloud_state_confirmed -> cluster_state_confirmed -> recorded
//
// with terminal failures cloud_timeout, backend_error and cluster_timeout.
// The cloud state is observed through a [CloudBackend]; the cluster state
// through a [ClusterProbe]. Kubelet, crash and sysfs disk actions run shell
// commands through a [RemoteExecutor].
//
// Each iteration is appended to a [Ledger], failed ones included, so a
// failed entry still reports what it did. Cluster-health timeouts abort
// kubelet actions but are only logged for cloud power actions.
package chaos
