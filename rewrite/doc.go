// Package rewrite performs the per-module transformation: a cheap
// byte scan decides whether a binary references the legacy host API at
// all, and the visitor pass redirects every qualifying import to its
// bridge replacement.
//
// The pass follows a three-tier policy per imported function, global
// and exception tag: an exact redirect-table hit wins, then plain
// namespace substitution, then descriptor-only rewriting for imports
// that merely mention legacy types. Anything else is left untouched.
//
// Invocation-kind overrides and tag merging change the function,
// global or tag index spaces. When that happens a renumbering pass
// updates every reference in the same transformation: call sites,
// ref.func, element segments, init expressions, exports, the start
// function, the name section and the signature section.
package rewrite
