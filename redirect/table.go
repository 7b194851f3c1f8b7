package redirect

import (
	"sync/atomic"

	"github.com/wippyai/wasm-bridge/errors"
)

// KindOverride selects how a redirected member is reached after rewrite.
type KindOverride int

const (
	// KindKeep preserves the member's original invocation kind.
	KindKeep KindOverride = iota
	// KindToFunc turns an imported global into an imported nullary func.
	KindToFunc
	// KindToGlobal turns an imported nullary func into an imported global.
	KindToGlobal
)

// Rule maps one legacy member to its bridge replacement.
type Rule struct {
	Owner         string // legacy namespace, e.g. "legacy:display@1.0"
	Member        string // import name within the namespace
	Descriptor    string // signature the rule applies to ("" matches any)
	NewOwner      string
	NewMember     string
	NewDescriptor string // "" means derive via namespace substitution
	Kind          KindOverride
}

type tableKey struct {
	owner      string
	member     string
	descriptor string
}

// Table is the exact-match redirect lookup. Immutable after NewTable.
type Table struct {
	rules map[tableKey]*Rule

	funcHits   atomic.Uint64
	globalHits atomic.Uint64
	tagHits    atomic.Uint64
}

// NewTable validates and indexes a rule set. Duplicate keys are
// rejected, as are kind overrides on members whose descriptor is not
// zero-argument single-result (the only shape where call and global.get
// leave the same operand stack).
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: make(map[tableKey]*Rule, len(rules))}

	for i := range rules {
		r := &rules[i]
		key := tableKey{owner: r.Owner, member: r.Member, descriptor: r.Descriptor}
		if _, dup := t.rules[key]; dup {
			return nil, errors.Conflict(errors.PhaseRewrite,
				"duplicate redirect rule for %s#%s %q", r.Owner, r.Member, r.Descriptor)
		}
		if r.Kind != KindKeep {
			if err := checkSwappable(r); err != nil {
				return nil, err
			}
		}
		t.rules[key] = r
	}
	return t, nil
}

func checkSwappable(r *Rule) error {
	if r.Descriptor == "" {
		return errors.InvalidInput(errors.PhaseRewrite,
			"kind override for "+r.Owner+"#"+r.Member+" requires an explicit descriptor")
	}
	shape, err := CoreShape(r.Descriptor)
	if err != nil {
		return err
	}
	if len(shape.Params) != 0 || len(shape.Results) != 1 {
		return errors.InvalidInput(errors.PhaseRewrite,
			"kind override for "+r.Owner+"#"+r.Member+" needs shape () -> (one value), have "+shape.String())
	}
	return nil
}

// Lookup returns the rule for an exact (owner, member, descriptor)
// match, falling back to the rule registered with an empty descriptor.
func (t *Table) Lookup(owner, member, descriptor string) (*Rule, bool) {
	if r, ok := t.rules[tableKey{owner: owner, member: member, descriptor: descriptor}]; ok {
		return r, true
	}
	r, ok := t.rules[tableKey{owner: owner, member: member}]
	return r, ok
}

// CountFunc records a redirected function reference.
func (t *Table) CountFunc() { t.funcHits.Add(1) }

// CountGlobal records a redirected global reference.
func (t *Table) CountGlobal() { t.globalHits.Add(1) }

// CountTag records a redirected exception tag reference.
func (t *Table) CountTag() { t.tagHits.Add(1) }

// Counts returns the per-kind redirect counters.
func (t *Table) Counts() (funcs, globals, tags uint64) {
	return t.funcHits.Load(), t.globalHits.Load(), t.tagHits.Load()
}

// Len reports the number of indexed rules.
func (t *Table) Len() int { return len(t.rules) }
