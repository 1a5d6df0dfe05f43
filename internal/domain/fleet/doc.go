// Package fleet holds the domain model of a fleet configuration update:
// targets, the edit specification, per-host results and the run summary.
//
// The types carry no I/O; loading inventories, talking to hosts and
// persisting reports live in their own packages.
package fleet
