// Package main hosts the bookpub CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into publishing
// runs: CSV imports, single-book publishes, session inspection and repair,
// preflight checks, and configuration scaffolding. It centralizes config
// resolution, logger setup, and the wiring of the chain client, storage
// coordinator, and pipeline stages so subcommands can focus on output.
//
// Keep this package lean: new behavior belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
