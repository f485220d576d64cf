package irgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"mokair/internal/classfile"
	"mokair/internal/ir"
)

// testPool carries Foo.g()V at index 6 for invokestatic.
func testPool() *classfile.ConstPool {
	return classfile.NewConstPool(
		classfile.Utf8Entry{Value: "Foo"},                            // 1
		classfile.ClassEntry{NameIndex: 1},                           // 2
		classfile.Utf8Entry{Value: "g"},                              // 3
		classfile.Utf8Entry{Value: "()V"},                            // 4
		classfile.NameAndTypeEntry{NameIndex: 3, DescriptorIndex: 4}, // 5
		classfile.MethodrefEntry{ClassIndex: 2, NameAndTypeIndex: 5}, // 6
	)
}

func liftCaller(t *testing.T) *ir.Method {
	t.Helper()
	md, err := classfile.ParseMethodDescriptor("()V")
	require.NoError(t, err)
	m := &classfile.Method{
		AccessFlags: classfile.AccStatic,
		Name:        "f",
		Descriptor:  md,
		Code: &classfile.Code{
			MaxStack:  0,
			MaxLocals: 0,
			// invokestatic #6; return
			Bytecode: []byte{0xb8, 0x00, 0x06, 0xb1},
		},
	}
	out, err := ir.Lift(m, testPool(), ir.Options{})
	require.NoError(t, err)
	out.Class = "Foo"
	return out
}

func TestBuildFuncCFG(t *testing.T) {
	m := liftCaller(t)
	fc := BuildFuncCFG(m)

	require.Equal(t, "Foo.f()V", fc.Name)
	require.Len(t, fc.Blocks, 1)

	b := fc.Blocks[0]
	require.Equal(t, 0, b.Start)
	require.Equal(t, 4, b.End)
	require.True(t, b.Term)
	require.Empty(t, b.Succs)
	require.Len(t, b.Calls, 1)
	require.Equal(t, lattice.CallSite{Offset: 0, Callee: "Foo.g"}, b.Calls[0])
}

func liftMethod(t *testing.T, code []byte, desc string, handlers []classfile.ExceptionHandler) *ir.Method {
	t.Helper()
	md, err := classfile.ParseMethodDescriptor(desc)
	require.NoError(t, err)
	m := &classfile.Method{
		AccessFlags: classfile.AccStatic,
		Name:        "f",
		Descriptor:  md,
		Code: &classfile.Code{
			MaxStack:       2,
			MaxLocals:      2,
			Bytecode:       code,
			ExceptionTable: handlers,
		},
	}
	out, err := ir.Lift(m, testPool(), ir.Options{})
	require.NoError(t, err)
	out.Class = "Foo"
	return out
}

func TestBuildFuncCFGBranchLabels(t *testing.T) {
	// static int f(int x):
	//   0: iload_0
	//   1: ifeq 8
	//   4: iconst_1
	//   5: goto 9
	//   8: iconst_2
	//   9: ireturn
	m := liftMethod(t, []byte{0x1a, 0x99, 0x00, 0x07, 0x04, 0xa7, 0x00, 0x04, 0x05, 0xac}, "(I)I", nil)
	fc := BuildFuncCFG(m)
	require.Len(t, fc.Blocks, 4)

	// The conditional labels its taken edge "T" and its fallthrough "F".
	require.Equal(t, []lattice.Successor{
		{BlockID: 2, Cond: "T"},
		{BlockID: 1, Cond: "F"},
	}, fc.Blocks[0].Succs)

	// goto and plain fallthrough are unconditional.
	require.Equal(t, []lattice.Successor{{BlockID: 3}}, fc.Blocks[1].Succs)
	require.Equal(t, []lattice.Successor{{BlockID: 3}}, fc.Blocks[2].Succs)

	require.Empty(t, fc.Blocks[3].Succs)
	require.True(t, fc.Blocks[3].Term)
}

func TestBuildFuncCFGExceptionalEdge(t *testing.T) {
	// aconst_null athrow | astore_0 iconst_0 ireturn, handler covers [0, 2).
	m := liftMethod(t, []byte{0x01, 0xbf, 0x4b, 0x03, 0xac}, "()I",
		[]classfile.ExceptionHandler{{Start: 0, End: 2, Handler: 2}})
	fc := BuildFuncCFG(m)
	require.Len(t, fc.Blocks, 2)
	require.Equal(t, []lattice.Successor{{BlockID: 1, Cond: "T"}}, fc.Blocks[0].Succs)
	require.True(t, fc.Blocks[0].Term)
}

func TestBuildCallGraph(t *testing.T) {
	m := liftCaller(t)
	g := BuildCallGraph([]*ir.Method{m})

	require.Equal(t, []string{"Foo.f()V"}, g.Nodes)
	require.Equal(t, []lattice.Edge{{Caller: "Foo.f()V", Callee: "Foo.g"}}, g.Edges)

	dot := render.DOT(g, "Foo call graph")
	require.NotEmpty(t, dot)
}

func TestDOTCFGRenders(t *testing.T) {
	m := liftCaller(t)
	cg := BuildCFG([]*ir.Method{m})
	require.Len(t, cg.Funcs, 1)

	dot := render.DOTCFG(cg, "Foo CFG")
	require.NotEmpty(t, dot)
}
