// Package loader coordinates module transformation at load time.
//
// The Coordinator sits between a host's load pipeline and the rewrite
// pass: it filters excluded identities, deduplicates repeated loads,
// pre-scans for legacy markers and runs the full decode-rewrite-encode
// cycle only on candidates. Any failure inside the cycle falls back to
// the original bytes, so a broken or exotic module loads exactly as it
// would without the bridge.
//
// Attach registers the coordinator with whatever hook surface the host
// offers. Hosts exposing their resident modules additionally get a
// sweep: modules loaded before attach are retransformed in place.
package loader
