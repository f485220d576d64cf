// Package irgraph maps lifted methods onto lattice graph types so the
// render package can emit DOT for control-flow and call graphs.
package irgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"mokair/internal/bytecode"
	"mokair/internal/cfg"
	"mokair/internal/ir"
)

// MethodLabel names a method node: Class.name(descriptor).
func MethodLabel(m *ir.Method) string {
	return fmt.Sprintf("%s.%s%s", m.Class, m.Name, m.Descriptor.Raw)
}

// BuildFuncCFG converts one lifted method into a lattice.FuncCFG. Block
// boundaries are bytecode offsets; call sites come from the method's invoke
// instructions.
func BuildFuncCFG(m *ir.Method) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: MethodLabel(m)}
	for i := range m.Graph.Blocks {
		b := &m.Graph.Blocks[i]
		last := m.Graph.Last(b)
		lb := &lattice.BasicBlock{
			ID:    int(b.ID),
			Start: b.Start,
			End:   b.End,
			Term:  last.Op.IsTerminator(),
		}
		for _, e := range b.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: int(e.To),
				Cond:    condLabel(last.Op, e.Kind),
			})
		}
		for _, ins := range m.Blocks[i].Insts {
			if ins.Op != ir.OpInvoke {
				continue
			}
			callee := ins.Method.Class
			if callee == "" {
				callee = "<indy>"
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: ins.Offset,
				Callee: callee + "." + ins.Method.Name,
			})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

// condLabel maps an edge onto the renderer's condition convention: "" for
// unconditional flow, "T" for the taken leg of a conditional (switch cases
// and exceptional transfers included), "F" for its fallthrough leg.
func condLabel(last bytecode.Op, kind cfg.EdgeKind) string {
	switch kind {
	case cfg.Exceptional:
		return "T"
	case cfg.Branch:
		if last.IsConditionalBranch() || last.IsSwitch() {
			return "T"
		}
		return ""
	default:
		if last.IsConditionalBranch() {
			return "F"
		}
		return ""
	}
}

// BuildCFG bundles the given methods into one lattice.CFGGraph.
func BuildCFG(methods []*ir.Method) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, m := range methods {
		cg.Funcs = append(cg.Funcs, BuildFuncCFG(m))
	}
	return cg
}

// BuildCallGraph constructs a class-level call graph. Each lifted method
// becomes a node; each invoke site becomes an edge to its static callee.
func BuildCallGraph(methods []*ir.Method) *lattice.Graph {
	g := &lattice.Graph{}
	for _, m := range methods {
		caller := MethodLabel(m)
		g.Nodes = append(g.Nodes, caller)
		for i := range m.Blocks {
			for _, ins := range m.Blocks[i].Insts {
				if ins.Op != ir.OpInvoke || ins.Method.Class == "" {
					continue
				}
				g.Edges = append(g.Edges, lattice.Edge{
					Caller: caller,
					Callee: ins.Method.Class + "." + ins.Method.Name,
				})
			}
		}
	}
	g.Dedup()
	return g
}
