package rewrite

import (
	"bytes"

	"github.com/wippyai/wasm-bridge/redirect"
)

// markers are the byte sequences whose presence marks a candidate
// module. Computed once; Scan itself allocates nothing.
var markers = func() [][]byte {
	namespaces := redirect.LegacyNamespaces()
	out := make([][]byte, len(namespaces))
	for i, ns := range namespaces {
		out[i] = []byte(ns)
	}
	return out
}()

// Scan reports whether raw can contain legacy references. A marker
// byte sequence anywhere in the binary flags it, so unrelated data
// segments can produce false positives; those cost one wasted decode
// in the full pass. False negatives are impossible: every legacy
// import carries its namespace verbatim in the import section.
func Scan(raw []byte) bool {
	for _, m := range markers {
		if bytes.Contains(raw, m) {
			return true
		}
	}
	return false
}
