// Package remote abstracts the command-execution channel to a single host.
//
// The Session interface exposes one primitive, Execute, which reports the
// remote exit status and combined output while keeping transport failures
// distinct. The production implementation dials SSH with key or agent
// authentication; tests substitute in-memory fakes.
package remote
