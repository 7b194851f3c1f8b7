package redirect

import (
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/wasm"
)

// Shape is the core-level rendering of a descriptor: the value types a
// reference pushes and pops, independent of whether it is reached by
// call or global.get.
type Shape struct {
	Params  []wasm.ValType
	Results []wasm.ValType
}

// String renders the shape as "(i32, i32) -> (i32)".
func (s Shape) String() string {
	var b strings.Builder
	writeList := func(types []wasm.ValType) {
		b.WriteByte('(')
		for i, vt := range types {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(vt.String())
		}
		b.WriteByte(')')
	}
	writeList(s.Params)
	b.WriteString(" -> ")
	writeList(s.Results)
	return b.String()
}

// Matches reports whether the shape equals a core function type.
func (s Shape) Matches(ft *wasm.FuncType) bool {
	if len(s.Params) != len(ft.Params) || len(s.Results) != len(ft.Results) {
		return false
	}
	for i, p := range s.Params {
		if p != ft.Params[i] {
			return false
		}
	}
	for i, r := range s.Results {
		if r != ft.Results[i] {
			return false
		}
	}
	return true
}

// CoreShape derives the core shape of a descriptor. Function
// descriptors look like "func(width: u32, height: u32) -> u32"; a bare
// atom describes a readable state cell and becomes () -> (atom).
func CoreShape(desc string) (Shape, error) {
	desc = strings.TrimSpace(desc)

	if !strings.HasPrefix(desc, "func(") {
		vt, err := atomValType(desc)
		if err != nil {
			return Shape{}, err
		}
		return Shape{Results: []wasm.ValType{vt}}, nil
	}

	close := matchingParen(desc, len("func"))
	if close < 0 {
		return Shape{}, errors.InvalidInput(errors.PhaseRewrite, "unbalanced parens in descriptor "+desc)
	}
	var shape Shape

	for _, part := range splitTopLevel(desc[len("func("):close]) {
		vt, err := atomValType(paramType(part))
		if err != nil {
			return Shape{}, err
		}
		shape.Params = append(shape.Params, vt)
	}

	rest := strings.TrimSpace(desc[close+1:])
	if rest == "" {
		return shape, nil
	}
	if !strings.HasPrefix(rest, "->") {
		return Shape{}, errors.InvalidInput(errors.PhaseRewrite, "malformed descriptor "+desc)
	}
	rest = strings.TrimSpace(rest[2:])
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		for _, part := range splitTopLevel(rest) {
			vt, err := atomValType(strings.TrimSpace(part))
			if err != nil {
				return Shape{}, err
			}
			shape.Results = append(shape.Results, vt)
		}
		return shape, nil
	}
	vt, err := atomValType(rest)
	if err != nil {
		return Shape{}, err
	}
	shape.Results = []wasm.ValType{vt}
	return shape, nil
}

// atomValType maps one descriptor atom to its core value type. Handles
// lower to i32 indices regardless of the resource they point at.
func atomValType(atom string) (wasm.ValType, error) {
	if strings.HasPrefix(atom, "handle<") && strings.HasSuffix(atom, ">") {
		return wasm.ValI32, nil
	}

	t, err := wit.ParseType(atom)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseRewrite, errors.KindInvalidData, err, "parse descriptor atom "+atom)
	}
	switch t.(type) {
	case wit.Bool, wit.S8, wit.U8, wit.S16, wit.U16, wit.S32, wit.U32, wit.Char:
		return wasm.ValI32, nil
	case wit.S64, wit.U64:
		return wasm.ValI64, nil
	case wit.F32:
		return wasm.ValF32, nil
	case wit.F64:
		return wasm.ValF64, nil
	default:
		return 0, errors.Unsupported(errors.PhaseRewrite, "descriptor atom "+atom)
	}
}

// paramType strips the "name:" prefix of a parameter. The split is on
// the first colon outside angle brackets, so namespaced resource
// handles stay intact.
func paramType(part string) string {
	depth := 0
	for i := 0; i < len(part); i++ {
		switch part[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 {
				return strings.TrimSpace(part[i+1:])
			}
		}
	}
	return strings.TrimSpace(part)
}

// matchingParen returns the index of the ')' closing the '(' at open.
func matchingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on commas not nested inside parens or angle
// brackets.
func splitTopLevel(s string) []string {
	var out []string
	var current strings.Builder
	depth := 0

	for _, ch := range s {
		switch ch {
		case '(', '<':
			depth++
			current.WriteRune(ch)
		case ')', '>':
			depth--
			current.WriteRune(ch)
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(current.String()); part != "" {
					out = append(out, part)
				}
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}
	if part := strings.TrimSpace(current.String()); part != "" {
		out = append(out, part)
	}
	return out
}
