package rewrite

import (
	"strings"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/redirect"
	"github.com/wippyai/wasm-bridge/wasm"
)

const legacyPrefix = "legacy:"

// Result counts what the pass changed, per reference kind.
type Result struct {
	Funcs       int
	Globals     int
	Tags        int
	Descriptors int
	KindSwaps   int
	Changed     bool
}

// swapEntry marks one import whose invocation kind flips during
// renumbering. valType is the single result of the member's shape.
type swapEntry struct {
	importIdx int
	to        redirect.KindOverride
	valType   wasm.ValType
}

// Rewrite redirects every legacy reference in a decoded module.
//
// Per imported function, global and tag the policy is: exact redirect
// table hit, else namespace substitution for legacy owners, else
// descriptor-only rewrite when only the signature mentions legacy
// types. Imports matching no tier stay untouched. The table may be
// nil, which disables tier one.
//
// The module is modified in place. On error the module state is
// undefined and the caller must discard it; the coordinator keeps the
// original bytes for exactly that case.
func Rewrite(mod *wasm.Module, table *redirect.Table, rw *redirect.Rewriter) (Result, error) {
	var res Result

	var sigs *Sigs
	if data, ok := mod.CustomSection(SigSectionName); ok {
		var err error
		if sigs, err = DecodeSigs(data); err != nil {
			return res, err
		}
	}

	var swaps []swapEntry
	sigsChanged := false

	var funcPos, globalPos, tagPos uint32
	for i := range mod.Imports {
		imp := &mod.Imports[i]

		var kindPos uint32
		var sigKind byte
		switch imp.Kind {
		case wasm.KindFunc:
			kindPos, sigKind = funcPos, SigFunc
			funcPos++
		case wasm.KindGlobal:
			kindPos, sigKind = globalPos, SigGlobal
			globalPos++
		case wasm.KindTag:
			kindPos, sigKind = tagPos, SigTag
			tagPos++
		default:
			continue
		}

		desc, hasSig := "", false
		if sigs != nil {
			desc, hasSig = sigs.Lookup(sigKind, kindPos)
		}
		if !hasSig {
			desc = renderedDescriptor(mod, imp, kindPos)
		}

		setDesc := func(newDesc string) {
			if hasSig && newDesc != desc {
				sigs.Set(sigKind, kindPos, newDesc)
				sigsChanged = true
				res.Descriptors++
			}
		}

		// Tier one: exact redirect.
		if table != nil {
			if rule, ok := table.Lookup(imp.Module, imp.Name, desc); ok {
				if err := applyRule(imp, rule); err != nil {
					return res, err
				}
				newDesc := rule.NewDescriptor
				if newDesc == "" {
					newDesc = rw.RewriteDescriptor(desc)
				}
				setDesc(newDesc)
				if rule.Kind != redirect.KindKeep {
					shape, err := redirect.CoreShape(rule.Descriptor)
					if err != nil {
						return res, err
					}
					swaps = append(swaps, swapEntry{importIdx: i, to: rule.Kind, valType: shape.Results[0]})
					res.KindSwaps++
				}
				countKind(&res, table, imp.Kind)
				res.Changed = true
				continue
			}
		}

		// The fault tag maps to the generic runtime failure tag, not to
		// the clock namespace its owner would otherwise land in.
		if imp.Kind == wasm.KindTag && imp.Module == redirect.FaultOwner && imp.Name == redirect.FaultMember {
			imp.Module, imp.Name = redirect.FailureOwner, redirect.FailureMember
			setDesc(rw.RewriteDescriptor(desc))
			res.Tags++
			res.Changed = true
			continue
		}

		// Tier two: namespace substitution.
		if strings.HasPrefix(imp.Module, legacyPrefix) {
			if mapped := rw.RewriteOwner(imp.Module); mapped != imp.Module {
				imp.Module = mapped
				setDesc(rw.RewriteDescriptor(desc))
				countKind(&res, nil, imp.Kind)
				res.Changed = true
			}
			continue
		}

		// Tier three: the signature mentions legacy types but the owner
		// is already current.
		if hasSig && strings.Contains(desc, legacyPrefix) {
			setDesc(rw.RewriteDescriptor(desc))
			res.Changed = true
		}
	}

	dropTags := duplicateTagImports(mod)

	if len(swaps) > 0 || len(dropTags) > 0 {
		if err := applyRenumber(mod, swaps, dropTags, sigs); err != nil {
			return res, err
		}
		sigsChanged = sigs != nil
		res.Changed = true
	}

	if sigsChanged {
		mod.SetCustomSection(SigSectionName, sigs.Encode())
	}
	return res, nil
}

func applyRule(imp *wasm.Import, rule *redirect.Rule) error {
	switch rule.Kind {
	case redirect.KindToFunc:
		if imp.Kind != wasm.KindGlobal {
			return errors.Conflict(errors.PhaseRewrite,
				"rule %s#%s converts to func but import is not a global", rule.Owner, rule.Member)
		}
	case redirect.KindToGlobal:
		if imp.Kind != wasm.KindFunc {
			return errors.Conflict(errors.PhaseRewrite,
				"rule %s#%s converts to global but import is not a func", rule.Owner, rule.Member)
		}
	}
	imp.Module = rule.NewOwner
	imp.Name = rule.NewMember
	return nil
}

func countKind(res *Result, table *redirect.Table, kind byte) {
	switch kind {
	case wasm.KindFunc:
		res.Funcs++
		if table != nil {
			table.CountFunc()
		}
	case wasm.KindGlobal:
		res.Globals++
		if table != nil {
			table.CountGlobal()
		}
	case wasm.KindTag:
		res.Tags++
		if table != nil {
			table.CountTag()
		}
	}
}

// renderedDescriptor falls back to the core shape when no signature
// entry exists for an import.
func renderedDescriptor(mod *wasm.Module, imp *wasm.Import, kindPos uint32) string {
	switch imp.Kind {
	case wasm.KindFunc:
		if ft := mod.FuncTypeAt(kindPos); ft != nil {
			return redirect.Shape{Params: ft.Params, Results: ft.Results}.String()
		}
	case wasm.KindGlobal:
		if imp.Global != nil {
			return imp.Global.Type.String()
		}
	case wasm.KindTag:
		if imp.Tag != nil && int(imp.Tag.TypeIdx) < len(mod.Types) {
			ft := &mod.Types[imp.Tag.TypeIdx]
			return redirect.Shape{Params: ft.Params, Results: ft.Results}.String()
		}
	}
	return ""
}

// duplicateTagImports finds tag imports made identical by renaming.
// Maps the import list position of each duplicate to the tag index of
// the first occurrence.
func duplicateTagImports(mod *wasm.Module) map[int]uint32 {
	var dups map[int]uint32
	seen := make(map[wasm.Import]uint32)

	tagIdx := uint32(0)
	for i := range mod.Imports {
		if mod.Imports[i].Kind != wasm.KindTag {
			continue
		}
		key := wasm.Import{
			Module:  mod.Imports[i].Module,
			Name:    mod.Imports[i].Name,
			Kind:    wasm.KindTag,
			TypeIdx: mod.Imports[i].Tag.TypeIdx,
		}
		if first, ok := seen[key]; ok {
			if dups == nil {
				dups = make(map[int]uint32)
			}
			dups[i] = first
		} else {
			seen[key] = tagIdx
		}
		tagIdx++
	}
	return dups
}
