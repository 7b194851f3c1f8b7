// Package redirect holds the static mapping from legacy host API
// references to their bridge replacements.
//
// Two pieces cooperate. The Table answers exact (owner, member,
// descriptor) lookups for members that need more than a namespace
// change, including invocation-kind overrides. The Rewriter handles the
// common case: pure textual substitution of legacy namespaces inside
// descriptor strings, memoized per input.
//
// Both are immutable after construction and safe for concurrent use
// from any number of module rewrites.
package redirect
