package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mokair/internal/bytecode"
	"mokair/internal/cfg"
	"mokair/internal/classfile"
)

func method(t *testing.T, name, desc string, flags, maxStack, maxLocals uint16,
	code []byte, handlers []classfile.ExceptionHandler) *classfile.Method {
	t.Helper()
	md, err := classfile.ParseMethodDescriptor(desc)
	require.NoError(t, err)
	return &classfile.Method{
		AccessFlags: flags,
		Name:        name,
		Descriptor:  md,
		Code: &classfile.Code{
			MaxStack:       maxStack,
			MaxLocals:      maxLocals,
			Bytecode:       code,
			ExceptionTable: handlers,
		},
	}
}

func lift(t *testing.T, m *classfile.Method, opts Options) *Method {
	t.Helper()
	out, err := Lift(m, classfile.NewConstPool(), opts)
	require.NoError(t, err)
	return out
}

func TestLiftStraightLineAdd(t *testing.T) {
	// static int add(int, int): iload_0 iload_1 iadd ireturn
	m := method(t, "add", "(II)I", classfile.AccStatic, 2, 2,
		[]byte{0x1a, 0x1b, 0x60, 0xac}, nil)
	out := lift(t, m, Options{})

	require.Len(t, out.Params, 2)
	require.Equal(t, Int, out.Params[0].Type)
	require.Len(t, out.Graph.Blocks, 1)

	blk := out.Blocks[0]
	require.Empty(t, blk.Phis)
	require.Len(t, blk.Insts, 2)

	add := blk.Insts[0]
	require.Equal(t, OpBinary, add.Op)
	require.Equal(t, bytecode.Iadd, add.Src)
	require.Equal(t, []*Value{out.Params[0], out.Params[1]}, add.Args)
	require.Equal(t, Int, add.Result.Type)

	ret := blk.Insts[1]
	require.Equal(t, OpReturn, ret.Op)
	require.Equal(t, []*Value{add.Result}, ret.Args)
}

func TestLiftReceiverSlot(t *testing.T) {
	// Instance method: aload_0 pushes the receiver.
	m := method(t, "self", "()V", 0, 1, 1, []byte{0x2a, 0x57, 0xb1}, nil)
	out := lift(t, m, Options{})
	require.Len(t, out.Params, 1)
	require.Equal(t, Ref, out.Params[0].Type)
	require.Equal(t, 0, out.Params[0].Param)
}

func TestLiftLoopPhi(t *testing.T) {
	// static int count(int n):
	//   0: iconst_0
	//   1: istore_1
	//   2: iload_1       <- loop header
	//   3: iload_0
	//   4: if_icmpge 13
	//   7: iinc 1 1
	//  10: goto 2
	//  13: iload_1
	//  14: ireturn
	m := method(t, "count", "(I)I", classfile.AccStatic, 2, 2,
		[]byte{0x03, 0x3c, 0x1b, 0x1a, 0xa2, 0x00, 0x09, 0x84, 0x01, 0x01, 0xa7, 0xff, 0xf8, 0x1b, 0xac}, nil)
	out := lift(t, m, Options{})
	require.Len(t, out.Graph.Blocks, 4)

	// Exactly one phi survives: the counter in local 1. The untouched
	// parameter in local 0 merges with itself and is elided.
	var phis []*Phi
	for _, b := range out.Blocks {
		phis = append(phis, b.Phis...)
	}
	require.Len(t, phis, 1)
	phi := phis[0]

	header, ok := out.Graph.BlockAt(2)
	require.True(t, ok)
	require.Equal(t, header, phi.Block)
	require.Equal(t, Int, phi.Value.Type)
	require.Len(t, phi.Operands, len(out.Graph.Blocks[header].Preds))

	// One operand is the initial constant, the other the increment result.
	var kinds []Op
	for _, op := range phi.Operands {
		require.NotNil(t, op.Val.Def)
		kinds = append(kinds, op.Val.Def.Op)
	}
	require.ElementsMatch(t, []Op{OpConst, OpBinary}, kinds)

	// The increment consumes the phi itself.
	inc := out.Blocks[2].Insts[1]
	require.Equal(t, OpBinary, inc.Op)
	require.Equal(t, phi.Value, inc.Args[0])

	// The exit block returns the phi value.
	exit := out.Blocks[3]
	require.Equal(t, OpReturn, exit.Insts[0].Op)
	require.Equal(t, []*Value{phi.Value}, exit.Insts[0].Args)

	// The conditional branch compares the phi against the parameter.
	branch := out.Blocks[1].Insts[0]
	require.Equal(t, OpBranch, branch.Op)
	require.Equal(t, []*Value{phi.Value, out.Params[0]}, branch.Args)
}

func TestLiftMaxNoPhi(t *testing.T) {
	// static int max(int a, int b): both branches return directly, so no
	// merge block exists and no phi is needed.
	//   0: iload_0
	//   1: iload_1
	//   2: if_icmple 7
	//   5: iload_0
	//   6: ireturn
	//   7: iload_1
	//   8: ireturn
	m := method(t, "max", "(II)I", classfile.AccStatic, 2, 2,
		[]byte{0x1a, 0x1b, 0xa4, 0x00, 0x05, 0x1a, 0xac, 0x1b, 0xac}, nil)
	out := lift(t, m, Options{})
	require.Len(t, out.Graph.Blocks, 3)

	for _, b := range out.Graph.Blocks {
		for _, e := range b.Succs {
			require.NotEqual(t, cfg.Exceptional, e.Kind)
		}
	}
	for _, b := range out.Blocks {
		require.Empty(t, b.Phis)
	}
	require.Equal(t, []*Value{out.Params[0]}, out.Blocks[1].Insts[0].Args)
	require.Equal(t, []*Value{out.Params[1]}, out.Blocks[2].Insts[0].Args)
}

func TestLiftDiamondStackPhi(t *testing.T) {
	// static int pick(int x):
	//   0: iload_0
	//   1: ifeq 8
	//   4: iconst_1
	//   5: goto 9
	//   8: iconst_2
	//   9: ireturn       <- merges two stack values
	m := method(t, "pick", "(I)I", classfile.AccStatic, 1, 1,
		[]byte{0x1a, 0x99, 0x00, 0x07, 0x04, 0xa7, 0x00, 0x04, 0x05, 0xac}, nil)
	out := lift(t, m, Options{})

	join, ok := out.Graph.BlockAt(9)
	require.True(t, ok)
	phis := out.Blocks[join].Phis
	require.Len(t, phis, 1)
	phi := phis[0]
	require.True(t, phi.StackSlot)
	require.Equal(t, Int, phi.Value.Type)
	require.Len(t, phi.Operands, len(out.Graph.Blocks[join].Preds))

	var consts []int32
	for _, op := range phi.Operands {
		require.Equal(t, OpConst, op.Val.Def.Op)
		consts = append(consts, op.Val.Def.Const.Int)
	}
	require.ElementsMatch(t, []int32{1, 2}, consts)

	ret := out.Blocks[join].Insts[0]
	require.Equal(t, OpReturn, ret.Op)
	require.Equal(t, []*Value{phi.Value}, ret.Args)
}

func TestLiftHandlerEntry(t *testing.T) {
	// static int f():
	//   0: aconst_null
	//   1: athrow
	//   2: astore_0       <- handler entry, stack is exactly [caught]
	//   3: iconst_0
	//   4: ireturn
	m := method(t, "f", "()I", classfile.AccStatic, 1, 1,
		[]byte{0x01, 0xbf, 0x4b, 0x03, 0xac},
		[]classfile.ExceptionHandler{{Start: 0, End: 2, Handler: 2}})
	out := lift(t, m, Options{})
	require.Len(t, out.Graph.Blocks, 2)

	// The protected block throws.
	b0 := out.Blocks[0]
	require.Len(t, b0.Insts, 2)
	require.Equal(t, OpThrow, b0.Insts[1].Op)

	// Handler body: astore_0 emits nothing, then const and return.
	b1 := out.Blocks[1]
	require.Empty(t, b1.Phis)
	require.Len(t, b1.Insts, 2)
	require.Equal(t, OpConst, b1.Insts[0].Op)
	require.Equal(t, OpReturn, b1.Insts[1].Op)

	// A single synthetic caught value exists, typed as the wildcard.
	var caught *Value
	for _, v := range out.Values {
		if v.Kind == ValCaught {
			require.Nil(t, caught, "more than one caught value")
			caught = v
		}
	}
	require.NotNil(t, caught)
	require.Equal(t, Ref, caught.Type)
	require.Equal(t, "java/lang/Throwable", caught.RefName)
}

func TestLiftHandlerSeesEarlierLocals(t *testing.T) {
	// static int f(): a local bound before the protected range starts is
	// visible in the handler.
	//   0: iconst_0
	//   1: istore_1
	//   2: aconst_null   <- protected range [2, 4)
	//   3: athrow
	//   4: astore_2       <- handler entry
	//   5: iload_1
	//   6: ireturn
	m := method(t, "f", "()I", classfile.AccStatic, 1, 3,
		[]byte{0x03, 0x3c, 0x01, 0xbf, 0x4d, 0x1b, 0xac},
		[]classfile.ExceptionHandler{{Start: 2, End: 4, Handler: 4}})
	out := lift(t, m, Options{})
	require.Len(t, out.Graph.Blocks, 2)

	c := out.Blocks[0].Insts[0]
	require.Equal(t, OpConst, c.Op)

	h := out.Blocks[1]
	require.Len(t, h.Insts, 1)
	require.Equal(t, OpReturn, h.Insts[0].Op)
	require.Equal(t, []*Value{c.Result}, h.Insts[0].Args)
}

func TestLiftHandlerHidesUnstableLocals(t *testing.T) {
	// Same body, but the store now sits inside the protected range: the
	// handler may run before or after it, so the slot is not visible.
	m := method(t, "f", "()I", classfile.AccStatic, 1, 3,
		[]byte{0x03, 0x3c, 0x01, 0xbf, 0x4d, 0x1b, 0xac},
		[]classfile.ExceptionHandler{{Start: 0, End: 4, Handler: 4}})
	_, err := Lift(m, classfile.NewConstPool(), Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "undefined")
}

func TestLiftDupInt(t *testing.T) {
	// static int f(): iconst_0 dup iadd ireturn
	m := method(t, "f", "()I", classfile.AccStatic, 2, 0,
		[]byte{0x03, 0x59, 0x60, 0xac}, nil)
	out := lift(t, m, Options{})

	blk := out.Blocks[0]
	require.Len(t, blk.Insts, 3)
	c := blk.Insts[0]
	require.Equal(t, OpConst, c.Op)

	add := blk.Insts[1]
	require.Equal(t, OpBinary, add.Op)
	require.Equal(t, []*Value{c.Result, c.Result}, add.Args)
}

func TestLiftDupLong(t *testing.T) {
	// static long f(): lconst_0 dup2 ladd lreturn
	m := method(t, "f", "()J", classfile.AccStatic, 4, 0,
		[]byte{0x09, 0x5c, 0x61, 0xad}, nil)
	out := lift(t, m, Options{})

	blk := out.Blocks[0]
	require.Len(t, blk.Insts, 3)
	c := blk.Insts[0]
	require.Equal(t, OpConst, c.Op)
	require.Equal(t, Long, c.Result.Type)

	add := blk.Insts[1]
	require.Equal(t, OpBinary, add.Op)
	require.Equal(t, []*Value{c.Result, c.Result}, add.Args)
	require.Equal(t, Long, add.Result.Type)
}

func TestLiftDynamicConstantType(t *testing.T) {
	// static long f(): ldc2_w of a dynamically computed long, lreturn.
	pool := classfile.NewConstPool(
		classfile.Utf8Entry{Value: "value"},                          // 1
		classfile.Utf8Entry{Value: "J"},                              // 2
		classfile.NameAndTypeEntry{NameIndex: 1, DescriptorIndex: 2}, // 3
		classfile.DynamicEntry{NameAndTypeIndex: 3},                  // 4
	)
	m := method(t, "f", "()J", classfile.AccStatic, 2, 0,
		[]byte{0x14, 0x00, 0x04, 0xad}, nil)
	out, err := Lift(m, pool, Options{})
	require.NoError(t, err)

	c := out.Blocks[0].Insts[0]
	require.Equal(t, OpConst, c.Op)
	require.Equal(t, Long, c.Result.Type)
	ret := out.Blocks[0].Insts[1]
	require.Equal(t, OpReturn, ret.Op)
	require.Equal(t, []*Value{c.Result}, ret.Args)
}

func TestLiftStrictMaxStack(t *testing.T) {
	// Two ints on a stack declared one slot deep.
	m := method(t, "f", "()I", classfile.AccStatic, 1, 0,
		[]byte{0x03, 0x04, 0x60, 0xac}, nil)

	if _, err := Lift(m, classfile.NewConstPool(), Options{}); err != nil {
		t.Fatalf("lenient mode: %v", err)
	}
	_, err := Lift(m, classfile.NewConstPool(), Options{Strict: true})
	var lErr *LiftError
	require.ErrorAs(t, err, &lErr)
	require.Contains(t, lErr.Reason, "max_stack")
}

func TestLiftErrors(t *testing.T) {
	tests := []struct {
		name string
		desc string
		code []byte
		want string
	}{
		{"undefined local", "()I", []byte{0x1a, 0xac}, "undefined"},
		{"stack underflow", "()I", []byte{0xac}, "underflow"},
		{"pop on empty stack", "()V", []byte{0x57, 0xb1}, "underflow"},
		{"pop splits a long", "()J", []byte{0x09, 0x57, 0xad}, "category-1"},
		{"type clash", "(I)V", []byte{0x1a, 0xbf}, "expected ref"},
		{"jsr", "()V", []byte{0xa8, 0x00, 0x03, 0xb1}, "subroutines"},
		// Merge with different depths on each path:
		//   0: iconst_0, 1: ifeq 5, 4: iconst_1, 5: return
		{"depth mismatch", "()V", []byte{0x03, 0x99, 0x00, 0x04, 0x04, 0xb1}, "depth mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := method(t, "f", tt.desc, classfile.AccStatic, 4, 4, tt.code, nil)
			_, err := Lift(m, classfile.NewConstPool(), Options{})
			require.Error(t, err)
			require.Contains(t, strings.ToLower(err.Error()), tt.want)
		})
	}
}

func TestLiftDeterministic(t *testing.T) {
	m := method(t, "count", "(I)I", classfile.AccStatic, 2, 2,
		[]byte{0x03, 0x3c, 0x1b, 0x1a, 0xa2, 0x00, 0x09, 0x84, 0x01, 0x01, 0xa7, 0xff, 0xf8, 0x1b, 0xac}, nil)

	var first string
	for i := 0; i < 5; i++ {
		out := lift(t, m, Options{})
		var sb strings.Builder
		out.Dump(&sb)
		if i == 0 {
			first = sb.String()
			continue
		}
		require.Equal(t, first, sb.String())
	}
}

func TestLiftEveryValueDefinedOnce(t *testing.T) {
	m := method(t, "count", "(I)I", classfile.AccStatic, 2, 2,
		[]byte{0x03, 0x3c, 0x1b, 0x1a, 0xa2, 0x00, 0x09, 0x84, 0x01, 0x01, 0xa7, 0xff, 0xf8, 0x1b, 0xac}, nil)
	out := lift(t, m, Options{})

	seen := map[*Value]bool{}
	for _, b := range out.Blocks {
		for _, phi := range b.Phis {
			require.False(t, seen[phi.Value], "phi value defined twice")
			seen[phi.Value] = true
			require.Equal(t, ValPhi, phi.Value.Kind)
		}
		for _, ins := range b.Insts {
			if ins.Result == nil {
				continue
			}
			require.False(t, seen[ins.Result], "result defined twice")
			seen[ins.Result] = true
			require.Same(t, ins, ins.Result.Def)
		}
	}
	// Every consumed value has a definition among params, phis and results.
	defined := map[*Value]bool{}
	for _, v := range out.Values {
		defined[v] = true
	}
	for _, b := range out.Blocks {
		for _, phi := range b.Phis {
			for _, op := range phi.Operands {
				require.True(t, defined[op.Val], "phi operand %s undefined", op.Val)
			}
		}
		for _, ins := range b.Insts {
			for _, a := range ins.Args {
				require.True(t, defined[a], "argument %s undefined", a)
			}
		}
	}
}
