// Package ssh runs shell commands on cluster nodes over SSH.
//
// A [Runner] resolves the node's address through the Kubernetes API and
// connects with key-based authentication, optionally hopping through a
// helper (bastion) host. It implements the remote command interface used by
// kubelet, crash and sysfs disk chaos actions.
package ssh
