// Package updater implements the fleet configuration update run: the
// per-host backup/apply/verify/rollback workflow, the coordinator that fans
// it out across all targets with bounded concurrency, and the CLI entry
// point that wires configuration, inventory and credentials together.
package updater
