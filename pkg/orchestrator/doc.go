// Package orchestrator wires the parse → build → deploy pipeline behind a
// single entry point, dispatching by parser name and platform name.
package orchestrator
