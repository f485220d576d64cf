package ir

import (
	"fmt"
	"io"

	"mokair/internal/classfile"
)

// MethodResult pairs one lifted method with its outcome. Err is set when the
// method could not be lifted; IR is nil in that case.
type MethodResult struct {
	Method *classfile.Method
	IR     *Method
	Err    error
}

// LiftClass lifts every method of c that carries code. Abstract and native
// methods are skipped. A failing method does not stop the others.
func LiftClass(c *classfile.Class, opts Options) []MethodResult {
	var out []MethodResult
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Code == nil {
			continue
		}
		ir, err := Lift(m, c.Pool, opts)
		if ir != nil {
			ir.Class = c.ThisClass
		}
		out = append(out, MethodResult{Method: m, IR: ir, Err: err})
	}
	return out
}

// Dump writes a readable block-by-block listing of the lifted method.
func (m *Method) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s.%s%s\n", m.Class, m.Name, m.Descriptor.Raw)
	for i := range m.Graph.Blocks {
		b := &m.Graph.Blocks[i]
		blk := &m.Blocks[i]
		if len(blk.Phis) == 0 && len(blk.Insts) == 0 {
			continue
		}
		fmt.Fprintf(w, "b%d:  ; [%d, %d)\n", b.ID, b.Start, b.End)
		for _, phi := range blk.Phis {
			fmt.Fprintf(w, "    %s\n", phi)
		}
		for _, ins := range blk.Insts {
			fmt.Fprintf(w, "%5d: %s\n", ins.Offset, ins)
		}
	}
}
