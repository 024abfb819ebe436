// Package aws implements the chaos cloud backend for Amazon EC2.
//
// Nodes are matched to instances by private DNS name, which is how EKS and
// kOps name their nodes, with a fallback to the Name tag. Waiting for an
// instance state uses the SDK's EC2 waiters. EC2 has no hard reset, so a
// hard reboot is issued as a regular reboot.
//
// Credentials and region come from the default AWS configuration chain
// (environment, shared config, instance role); a region set on the scenario
// entry overrides it.
package aws
