package rewrite

import (
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/wasm"
)

// renumberState carries the old-to-new index maps across one
// renumbering. A -1 entry means the index left its space through an
// invocation-kind swap; the cross-space maps hold its new home.
type renumberState struct {
	funcMap   []int64
	globalMap []int64
	tagMap    []int64

	funcToGlobal map[uint32]uint32
	globalToFunc map[uint32]uint32
}

// applyRenumber rebuilds the import list with kind swaps and duplicate
// tag removal applied, then updates every index reference in the
// module: code bodies, init expressions, element segments, exports,
// the start function, the name section and the signature section.
func applyRenumber(mod *wasm.Module, swaps []swapEntry, dropTags map[int]uint32, sigs *Sigs) error {
	swapAt := make(map[int]swapEntry, len(swaps))
	for _, sw := range swaps {
		swapAt[sw.importIdx] = sw
	}

	st := &renumberState{
		funcMap:      newIndexMap(mod.NumImportedFuncs() + len(mod.Funcs)),
		globalMap:    newIndexMap(mod.NumImportedGlobals() + len(mod.Globals)),
		tagMap:       newIndexMap(mod.NumImportedTags() + len(mod.Tags)),
		funcToGlobal: make(map[uint32]uint32),
		globalToFunc: make(map[uint32]uint32),
	}

	type origin struct {
		pos  uint32
		kind byte
	}

	newImports := make([]wasm.Import, 0, len(mod.Imports))
	origins := make([]origin, 0, len(mod.Imports))
	var droppedTagPos []uint32

	var funcPos, globalPos, tagPos uint32
	for i := range mod.Imports {
		imp := mod.Imports[i]
		switch imp.Kind {
		case wasm.KindFunc:
			pos := funcPos
			funcPos++
			if sw, ok := swapAt[i]; ok {
				newImports = append(newImports, wasm.Import{
					Module: imp.Module,
					Name:   imp.Name,
					Kind:   wasm.KindGlobal,
					Global: &wasm.GlobalType{Type: sw.valType},
				})
				origins = append(origins, origin{kind: wasm.KindFunc, pos: pos})
				continue
			}
			newImports = append(newImports, imp)
			origins = append(origins, origin{kind: wasm.KindFunc, pos: pos})

		case wasm.KindGlobal:
			pos := globalPos
			globalPos++
			if sw, ok := swapAt[i]; ok {
				typeIdx := mod.AddType(wasm.FuncType{Results: []wasm.ValType{sw.valType}})
				newImports = append(newImports, wasm.Import{
					Module:  imp.Module,
					Name:    imp.Name,
					Kind:    wasm.KindFunc,
					TypeIdx: typeIdx,
				})
				origins = append(origins, origin{kind: wasm.KindGlobal, pos: pos})
				continue
			}
			newImports = append(newImports, imp)
			origins = append(origins, origin{kind: wasm.KindGlobal, pos: pos})

		case wasm.KindTag:
			pos := tagPos
			tagPos++
			if _, drop := dropTags[i]; drop {
				droppedTagPos = append(droppedTagPos, pos)
				continue
			}
			newImports = append(newImports, imp)
			origins = append(origins, origin{kind: wasm.KindTag, pos: pos})

		default:
			newImports = append(newImports, imp)
			origins = append(origins, origin{kind: imp.Kind})
		}
	}

	// Assign new per-kind positions in import list order.
	var nf, ng, nt uint32
	for j := range newImports {
		o := origins[j]
		switch newImports[j].Kind {
		case wasm.KindFunc:
			if o.kind == wasm.KindFunc {
				st.funcMap[o.pos] = int64(nf)
			} else {
				st.globalToFunc[o.pos] = nf
			}
			nf++
		case wasm.KindGlobal:
			if o.kind == wasm.KindGlobal {
				st.globalMap[o.pos] = int64(ng)
			} else {
				st.funcToGlobal[o.pos] = ng
			}
			ng++
		case wasm.KindTag:
			st.tagMap[o.pos] = int64(nt)
			nt++
		}
	}

	// Defined entries follow all imports in each space.
	oldImpFuncs := uint32(mod.NumImportedFuncs())
	oldImpGlobals := uint32(mod.NumImportedGlobals())
	oldImpTags := uint32(mod.NumImportedTags())
	for j := range mod.Funcs {
		st.funcMap[oldImpFuncs+uint32(j)] = int64(nf + uint32(j))
	}
	for j := range mod.Globals {
		st.globalMap[oldImpGlobals+uint32(j)] = int64(ng + uint32(j))
	}
	for j := range mod.Tags {
		st.tagMap[oldImpTags+uint32(j)] = int64(nt + uint32(j))
	}

	// Merged tags land on their surviving twin.
	dupIdx := 0
	for i := range mod.Imports {
		if mod.Imports[i].Kind != wasm.KindTag {
			continue
		}
		if kept, ok := dropTags[i]; ok {
			st.tagMap[droppedTagPos[dupIdx]] = st.tagMap[kept]
			dupIdx++
		}
	}

	mod.Imports = newImports

	for i := range mod.Code {
		code, changed, err := st.remapExpr(mod.Code[i].Code, false)
		if err != nil {
			return err
		}
		if changed {
			mod.Code[i].Code = code
		}
	}
	for i := range mod.Globals {
		init, changed, err := st.remapExpr(mod.Globals[i].Init, true)
		if err != nil {
			return err
		}
		if changed {
			mod.Globals[i].Init = init
		}
	}
	for i := range mod.Elements {
		el := &mod.Elements[i]
		if len(el.Offset) > 0 {
			off, changed, err := st.remapExpr(el.Offset, true)
			if err != nil {
				return err
			}
			if changed {
				el.Offset = off
			}
		}
		for j, fi := range el.FuncIdxs {
			ni, err := st.mapFunc(fi)
			if err != nil {
				return err
			}
			el.FuncIdxs[j] = ni
		}
	}
	for i := range mod.Data {
		if len(mod.Data[i].Offset) == 0 {
			continue
		}
		off, changed, err := st.remapExpr(mod.Data[i].Offset, true)
		if err != nil {
			return err
		}
		if changed {
			mod.Data[i].Offset = off
		}
	}

	if err := st.remapExports(mod); err != nil {
		return err
	}
	if mod.Start != nil {
		ni, err := st.mapFunc(*mod.Start)
		if err != nil {
			return err
		}
		*mod.Start = ni
	}
	if err := st.remapNames(mod); err != nil {
		return err
	}
	st.remapSigs(sigs)
	return nil
}

func newIndexMap(n int) []int64 {
	m := make([]int64, n)
	for i := range m {
		m[i] = -1
	}
	return m
}

func (st *renumberState) mapFunc(old uint32) (uint32, error) {
	if int(old) >= len(st.funcMap) {
		return 0, errors.New(errors.PhaseRewrite, errors.KindInvalidData, "function index %d out of range", old)
	}
	ni := st.funcMap[old]
	if ni < 0 {
		return 0, errors.Unsupported(errors.PhaseRewrite, "reference to function converted to a state cell")
	}
	return uint32(ni), nil
}

func (st *renumberState) mapGlobal(old uint32) (uint32, error) {
	if int(old) >= len(st.globalMap) {
		return 0, errors.New(errors.PhaseRewrite, errors.KindInvalidData, "global index %d out of range", old)
	}
	ni := st.globalMap[old]
	if ni < 0 {
		return 0, errors.Unsupported(errors.PhaseRewrite, "reference to state cell converted to a function")
	}
	return uint32(ni), nil
}

func (st *renumberState) mapTag(old uint32) (uint32, error) {
	if int(old) >= len(st.tagMap) {
		return 0, errors.New(errors.PhaseRewrite, errors.KindInvalidData, "tag index %d out of range", old)
	}
	return uint32(st.tagMap[old]), nil
}

// remapExpr rewrites one instruction stream. constExpr restricts the
// rewrite to plain index renumbering, since init expressions cannot
// hold calls.
func (st *renumberState) remapExpr(code []byte, constExpr bool) ([]byte, bool, error) {
	instrs, err := wasm.DecodeInstrs(code)
	if err != nil {
		return nil, false, errors.Wrap(errors.PhaseRewrite, errors.KindInvalidData, err, "decode bytecode")
	}

	changed := false
	for k := range instrs {
		in := &instrs[k]
		switch imm := in.Imm.(type) {
		case wasm.CallImm:
			if g, ok := st.funcToGlobal[imm.FuncIdx]; ok {
				if in.Op != wasm.OpCall {
					return nil, false, errors.Unsupported(errors.PhaseRewrite, "tail call to a member converted to a state cell")
				}
				in.Op = wasm.OpGlobalGet
				in.Imm = wasm.GlobalImm{GlobalIdx: g}
				changed = true
				continue
			}
			ni, err := st.mapFunc(imm.FuncIdx)
			if err != nil {
				return nil, false, err
			}
			if ni != imm.FuncIdx {
				in.Imm = wasm.CallImm{FuncIdx: ni}
				changed = true
			}

		case wasm.GlobalImm:
			if f, ok := st.globalToFunc[imm.GlobalIdx]; ok {
				if constExpr || in.Op == wasm.OpGlobalSet {
					return nil, false, errors.Unsupported(errors.PhaseRewrite, "unsupported reference to a member converted to a function")
				}
				in.Op = wasm.OpCall
				in.Imm = wasm.CallImm{FuncIdx: f}
				changed = true
				continue
			}
			ni, err := st.mapGlobal(imm.GlobalIdx)
			if err != nil {
				return nil, false, err
			}
			if ni != imm.GlobalIdx {
				in.Imm = wasm.GlobalImm{GlobalIdx: ni}
				changed = true
			}

		case wasm.RefFuncImm:
			ni, err := st.mapFunc(imm.FuncIdx)
			if err != nil {
				return nil, false, err
			}
			if ni != imm.FuncIdx {
				in.Imm = wasm.RefFuncImm{FuncIdx: ni}
				changed = true
			}

		case wasm.TagImm:
			ni, err := st.mapTag(imm.TagIdx)
			if err != nil {
				return nil, false, err
			}
			if ni != imm.TagIdx {
				in.Imm = wasm.TagImm{TagIdx: ni}
				changed = true
			}

		case wasm.TryTableImm:
			for c := range imm.Catches {
				cl := &imm.Catches[c]
				if cl.Kind != wasm.CatchKindCatch && cl.Kind != wasm.CatchKindCatchRef {
					continue
				}
				ni, err := st.mapTag(cl.TagIdx)
				if err != nil {
					return nil, false, err
				}
				if ni != cl.TagIdx {
					cl.TagIdx = ni
					changed = true
				}
			}
			in.Imm = imm
		}
	}

	if !changed {
		return code, false, nil
	}
	return wasm.EncodeInstrs(instrs), true, nil
}

func (st *renumberState) remapExports(mod *wasm.Module) error {
	for i := range mod.Exports {
		e := &mod.Exports[i]
		switch e.Kind {
		case wasm.KindFunc:
			if g, ok := st.funcToGlobal[e.Idx]; ok {
				e.Kind = wasm.KindGlobal
				e.Idx = g
				continue
			}
			ni, err := st.mapFunc(e.Idx)
			if err != nil {
				return err
			}
			e.Idx = ni
		case wasm.KindGlobal:
			if f, ok := st.globalToFunc[e.Idx]; ok {
				e.Kind = wasm.KindFunc
				e.Idx = f
				continue
			}
			ni, err := st.mapGlobal(e.Idx)
			if err != nil {
				return err
			}
			e.Idx = ni
		case wasm.KindTag:
			ni, err := st.mapTag(e.Idx)
			if err != nil {
				return err
			}
			e.Idx = ni
		}
	}
	return nil
}

// remapNames keeps function and local debug names attached to the
// functions they describe. Names of members that left the function
// space are dropped.
func (st *renumberState) remapNames(mod *wasm.Module) error {
	data, ok := mod.CustomSection(wasm.NameSectionName)
	if !ok {
		return nil
	}
	ns, err := wasm.DecodeNameSection(data)
	if err != nil {
		return errors.Wrap(errors.PhaseRewrite, errors.KindInvalidData, err, "decode name section")
	}

	if len(ns.Funcs) > 0 {
		funcs := make(map[uint32]string, len(ns.Funcs))
		for old, name := range ns.Funcs {
			if int(old) < len(st.funcMap) && st.funcMap[old] >= 0 {
				funcs[uint32(st.funcMap[old])] = name
			}
		}
		ns.Funcs = funcs
	}
	if len(ns.Locals) > 0 {
		locals := make(map[uint32]map[uint32]string, len(ns.Locals))
		for old, names := range ns.Locals {
			if int(old) < len(st.funcMap) && st.funcMap[old] >= 0 {
				locals[uint32(st.funcMap[old])] = names
			}
		}
		ns.Locals = locals
	}

	mod.SetCustomSection(wasm.NameSectionName, ns.Encode())
	return nil
}

// remapSigs moves signature entries to their new kinds and positions.
// Import positions equal full-space indices because imports precede
// every defined entry.
func (st *renumberState) remapSigs(sigs *Sigs) {
	if sigs == nil {
		return
	}
	for k := range sigs.Entries {
		e := &sigs.Entries[k]
		switch e.Kind {
		case SigFunc:
			if g, ok := st.funcToGlobal[e.Index]; ok {
				e.Kind = SigGlobal
				e.Index = g
				continue
			}
			if int(e.Index) < len(st.funcMap) && st.funcMap[e.Index] >= 0 {
				e.Index = uint32(st.funcMap[e.Index])
			}
		case SigGlobal:
			if f, ok := st.globalToFunc[e.Index]; ok {
				e.Kind = SigFunc
				e.Index = f
				continue
			}
			if int(e.Index) < len(st.globalMap) && st.globalMap[e.Index] >= 0 {
				e.Index = uint32(st.globalMap[e.Index])
			}
		case SigTag:
			if int(e.Index) < len(st.tagMap) && st.tagMap[e.Index] >= 0 {
				e.Index = uint32(st.tagMap[e.Index])
			}
		}
	}
}
