// Package errors provides the structured error type used across the
// bridge: every error carries the processing phase it occurred in and a
// machine-matchable kind, so callers can branch on (Phase, Kind) pairs
// with errors.Is without string matching.
package errors
