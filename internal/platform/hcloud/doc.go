// Package hcloud implements the chaos cloud backend for Hetzner Cloud.
//
// Instance IDs are the decimal server IDs. Kubernetes node names are mapped
// to servers by name, which matches how Hetzner-provisioned clusters name
// their nodes.
//
// # Actions
//
//   - start: power on
//   - stop: hard power off
//   - reboot: ACPI reboot when soft, reset otherwise
//   - terminate: delete the server
//   - disk detach/attach: every attached volume (servers boot from local disk,
//     so no volume is ever the root device)
//
// Each mutation waits for the returned action to finish. Locked resources and
// rate limiting are retried with exponential backoff; every other API error
// is returned immediately.
//
// # Configuration
//
// The token is read from HCLOUD_TOKEN by the caller. Per-call timeouts and
// retry settings come from config.LoadTimeouts:
//
//   - NODECHAOS_API_TIMEOUT (default: 60s)
//   - NODECHAOS_RETRY_MAX_ATTEMPTS (default: 5)
//   - NODECHAOS_RETRY_INITIAL_DELAY (default: 1s)
package hcloud
