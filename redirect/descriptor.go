package redirect

import (
	"strings"
	"sync"
)

// legacyMarker is the substring every legacy reference contains. Its
// absence proves a descriptor (or a whole binary) needs no work.
const legacyMarker = "legacy:"

// ownerMap is the namespace substitution applied by tier two of the
// rewrite policy. mouse becomes pointer and sys becomes clock; the
// remaining namespaces keep their name at the new version.
var ownerMap = map[string]string{
	"legacy:display@1.0":  "bridge:display@2.0",
	"legacy:keyboard@1.0": "bridge:keyboard@2.0",
	"legacy:mouse@1.0":    "bridge:pointer@2.0",
	"legacy:audio@1.0":    "bridge:audio@2.0",
	"legacy:sys@1.0":      "bridge:clock@2.0",
	"legacy:buffers@1.0":  "bridge:buffers@2.0",
}

// The fault tag has no clock analog; it maps to the generic runtime
// failure tag at throw sites and catch clauses alike.
const (
	FaultOwner    = "legacy:sys@1.0"
	FaultMember   = "fault"
	FailureOwner  = "bridge:runtime@2.0"
	FailureMember = "failure"
)

// LegacyNamespaces returns the namespaces subject to redirection, for
// use as scanner markers.
func LegacyNamespaces() []string {
	out := make([]string, 0, len(ownerMap))
	for ns := range ownerMap {
		out = append(out, ns)
	}
	return out
}

// Rewriter substitutes legacy namespaces inside descriptor strings.
// Rewrites are pure, so the memoization cache tolerates duplicate
// computation under races.
type Rewriter struct {
	cache sync.Map // string -> string
}

// NewRewriter returns an empty-cache rewriter.
func NewRewriter() *Rewriter {
	return &Rewriter{}
}

// RewriteOwner maps a single namespace identifier. Unknown namespaces
// pass through unchanged.
func (rw *Rewriter) RewriteOwner(ns string) string {
	if mapped, ok := ownerMap[ns]; ok {
		return mapped
	}
	return ns
}

// RewriteDescriptor substitutes every legacy namespace occurring in a
// descriptor string. Strings with no legacy marker are returned as the
// same reference without touching the cache. The operation is
// idempotent: rewriting an already-rewritten descriptor is a no-op.
func (rw *Rewriter) RewriteDescriptor(desc string) string {
	if !strings.Contains(desc, legacyMarker) {
		return desc
	}
	if cached, ok := rw.cache.Load(desc); ok {
		return cached.(string)
	}

	out := desc
	for from, to := range ownerMap {
		out = strings.ReplaceAll(out, from, to)
	}
	rw.cache.Store(desc, out)
	return out
}

// CacheLen reports the number of memoized descriptors.
func (rw *Rewriter) CacheLen() int {
	n := 0
	rw.cache.Range(func(_, _ any) bool { n++; return true })
	return n
}
