// Package report persists run summaries as YAML files so automated
// pipelines can consume the per-host outcome of the last run.
package report
