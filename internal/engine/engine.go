// Package engine orchestrates package builds.
//
// An Orchestrator discovers packages and runs one PackageBuilder per package.
// Each builder streams its source tree through a staged pipeline
// (enumerate, load, route, write), reports to the shared completion tracker
// when the initial stream drains, and then optionally consumes watch events
// for single-file rebuilds.
//
// Files:
//   - orchestrator.go: discovery and the per-package fan-out
//   - builder.go: the per-package state machine and watch loop
//   - pipeline.go: the bounded-channel stages of an initial build
//   - factory.go: default dependencies from configuration
//   - safegroup.go: panic-safe errgroup
package engine
