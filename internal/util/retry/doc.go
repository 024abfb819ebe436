// Package retry provides exponential backoff retry logic for transient
// failures and a clock-driven Poll loop.
//
// [WithExponentialBackoff] is used by cloud provider adapters and the SSH
// executor for transport-level errors such as rate limiting. [Poll] drives
// every cloud-state and cluster-state wait in the chaos engine; it takes a
// clock so tests can run timeouts in simulated time.
package retry
