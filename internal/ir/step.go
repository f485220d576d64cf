package ir

import (
	"fmt"

	"mokair/internal/bytecode"
	"mokair/internal/cfg"
	"mokair/internal/classfile"
)

var atypeNames = map[int32]string{
	4: "boolean", 5: "char", 6: "float", 7: "double",
	8: "byte", 9: "short", 10: "int", 11: "long",
}

func (l *lifter) errAt(off int, format string, args ...any) error {
	return &LiftError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

func (l *lifter) emit(block cfg.BlockID, ins *Instruction) {
	if ins.Result != nil {
		ins.Result.Def = ins
	}
	l.out.Blocks[block].Insts = append(l.out.Blocks[block].Insts, ins)
}

func (l *lifter) popT(f *frame, off int, want CompType) (*Value, error) {
	v, ok := f.pop()
	if !ok {
		return nil, l.errAt(off, "operand stack underflow")
	}
	if v.Type != want {
		return nil, l.errAt(off, "expected %s on stack, found %s", want, v.Type)
	}
	return v, nil
}

func (l *lifter) emitConst(block cfg.BlockID, f *frame, off int, c classfile.Constant) {
	r := l.newValue(constType(c), ValDef)
	l.emit(block, &Instruction{Op: OpConst, Offset: off, Const: c, Result: r})
	f.push(r)
}

// step lifts one bytecode instruction, mutating the frame and emitting zero
// or more IR instructions into the current block.
func (l *lifter) step(block cfg.BlockID, f *frame, in *bytecode.Instruction) error {
	op := in.Op
	off := in.Offset

	switch {
	case op == bytecode.Nop:

	case op == bytecode.AconstNull:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstNull})
	case op >= bytecode.IconstM1 && op <= bytecode.Iconst5:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstInt, Int: in.Value})
	case op == bytecode.Lconst0 || op == bytecode.Lconst1:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstLong, Long: int64(op - bytecode.Lconst0)})
	case op >= bytecode.Fconst0 && op <= bytecode.Fconst2:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstFloat, Float: float32(op - bytecode.Fconst0)})
	case op == bytecode.Dconst0 || op == bytecode.Dconst1:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstDouble, Double: float64(op - bytecode.Dconst0)})
	case op == bytecode.Bipush || op == bytecode.Sipush:
		l.emitConst(block, f, off, classfile.Constant{Kind: classfile.ConstInt, Int: in.Value})
	case op == bytecode.Ldc || op == bytecode.LdcW || op == bytecode.Ldc2W:
		l.emitConst(block, f, off, in.Const)

	default:
		return l.stepOther(block, f, in)
	}
	return nil
}

func (l *lifter) stepOther(block cfg.BlockID, f *frame, in *bytecode.Instruction) error {
	op := in.Op
	off := in.Offset

	if t, ok := loadType(op); ok {
		v, defined := f.local(in.Local)
		if !defined {
			return l.errAt(off, "local %d is undefined here", in.Local)
		}
		if v.Type != t {
			return l.errAt(off, "local %d holds %s, %s expects %s", in.Local, v.Type, op.Mnemonic(), t)
		}
		f.push(v)
		return nil
	}
	if t, ok := storeType(op); ok {
		v, err := l.popT(f, off, t)
		if err != nil {
			return err
		}
		return l.bindLocal(f, off, in.Local, v)
	}
	if elem, ok := arrayLoadElem[op]; ok {
		idx, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		arr, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		r := l.newValue(elem, ValDef)
		l.emit(block, &Instruction{Op: OpArrayLoad, Src: op, Offset: off, Args: []*Value{arr, idx}, Result: r})
		f.push(r)
		return nil
	}
	if elem, ok := arrayStoreElem[op]; ok {
		v, err := l.popT(f, off, elem)
		if err != nil {
			return err
		}
		idx, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		arr, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpArrayStore, Src: op, Offset: off, Args: []*Value{arr, idx, v}})
		return nil
	}
	if sig, ok := binarySigs[op]; ok {
		b, err := l.popT(f, off, sig.b)
		if err != nil {
			return err
		}
		a, err := l.popT(f, off, sig.a)
		if err != nil {
			return err
		}
		r := l.newValue(sig.r, ValDef)
		l.emit(block, &Instruction{Op: OpBinary, Src: op, Offset: off, Args: []*Value{a, b}, Result: r})
		f.push(r)
		return nil
	}
	if t, ok := unarySigs[op]; ok {
		v, err := l.popT(f, off, t)
		if err != nil {
			return err
		}
		r := l.newValue(t, ValDef)
		l.emit(block, &Instruction{Op: OpUnary, Src: op, Offset: off, Args: []*Value{v}, Result: r})
		f.push(r)
		return nil
	}
	if sig, ok := convSigs[op]; ok {
		v, err := l.popT(f, off, sig.from)
		if err != nil {
			return err
		}
		r := l.newValue(sig.to, ValDef)
		l.emit(block, &Instruction{Op: OpConvert, Src: op, Offset: off, Args: []*Value{v}, Result: r})
		f.push(r)
		return nil
	}
	if t, ok := returnTypes[op]; ok {
		v, err := l.popT(f, off, t)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpReturn, Src: op, Offset: off, Args: []*Value{v}})
		return nil
	}

	switch op {
	case bytecode.Pop:
		if len(f.stack) == 0 {
			return l.errAt(off, "operand stack underflow")
		}
		if _, ok := f.rawSlots(1); !ok {
			return l.errAt(off, "pop needs a category-1 value on top")
		}
	case bytecode.Pop2:
		if len(f.stack) < 2 {
			return l.errAt(off, "operand stack underflow")
		}
		if _, ok := f.rawSlots(2); !ok {
			return l.errAt(off, "pop2 cannot split a category-2 value")
		}
	case bytecode.Dup:
		return l.dup(f, off, 1, 0)
	case bytecode.DupX1:
		return l.dup(f, off, 1, 1)
	case bytecode.DupX2:
		return l.dup(f, off, 1, 2)
	case bytecode.Dup2:
		return l.dup(f, off, 2, 0)
	case bytecode.Dup2X1:
		return l.dup(f, off, 2, 1)
	case bytecode.Dup2X2:
		return l.dup(f, off, 2, 2)
	case bytecode.Swap:
		a, ok := f.rawSlots(1)
		if !ok {
			return l.errAt(off, "swap needs category-1 values")
		}
		b, ok := f.rawSlots(1)
		if !ok {
			return l.errAt(off, "swap needs category-1 values")
		}
		f.pushSlots(a)
		f.pushSlots(b)

	case bytecode.Iinc:
		v, defined := f.local(in.Local)
		if !defined {
			return l.errAt(off, "local %d is undefined here", in.Local)
		}
		if v.Type != Int {
			return l.errAt(off, "iinc on non-int local %d", in.Local)
		}
		c := l.newValue(Int, ValDef)
		l.emit(block, &Instruction{Op: OpConst, Offset: off, Const: classfile.Constant{Kind: classfile.ConstInt, Int: in.IncDelta}, Result: c})
		r := l.newValue(Int, ValDef)
		l.emit(block, &Instruction{Op: OpBinary, Src: bytecode.Iadd, Offset: off, Args: []*Value{v, c}, Result: r})
		return l.bindLocal(f, off, in.Local, r)

	case bytecode.Ifeq, bytecode.Ifne, bytecode.Iflt, bytecode.Ifge, bytecode.Ifgt, bytecode.Ifle:
		v, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpBranch, Src: op, Offset: off, Args: []*Value{v}, Target: in.Target})
	case bytecode.Ifnull, bytecode.Ifnonnull:
		v, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpBranch, Src: op, Offset: off, Args: []*Value{v}, Target: in.Target})
	case bytecode.IfIcmpeq, bytecode.IfIcmpne, bytecode.IfIcmplt, bytecode.IfIcmpge, bytecode.IfIcmpgt, bytecode.IfIcmple:
		b, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		a, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpBranch, Src: op, Offset: off, Args: []*Value{a, b}, Target: in.Target})
	case bytecode.IfAcmpeq, bytecode.IfAcmpne:
		b, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		a, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpBranch, Src: op, Offset: off, Args: []*Value{a, b}, Target: in.Target})

	case bytecode.Goto, bytecode.GotoW:
		// Control transfer only; the edge is already in the graph.
	case bytecode.Jsr, bytecode.JsrW, bytecode.Ret:
		return l.errAt(off, "jsr/ret subroutines are not supported")

	case bytecode.Tableswitch, bytecode.Lookupswitch:
		v, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpSwitch, Src: op, Offset: off, Args: []*Value{v}})

	case bytecode.Return:
		l.emit(block, &Instruction{Op: OpReturn, Src: op, Offset: off})

	case bytecode.Getstatic, bytecode.Getfield:
		ft, err := classfile.ParseFieldType(in.Field.Descriptor)
		if err != nil {
			return err
		}
		irOp := OpGetStatic
		var args []*Value
		if op == bytecode.Getfield {
			obj, err := l.popT(f, off, Ref)
			if err != nil {
				return err
			}
			irOp, args = OpGetField, []*Value{obj}
		}
		r := l.newValue(compTypeOf(ft), ValDef)
		l.emit(block, &Instruction{Op: irOp, Src: op, Offset: off, Field: in.Field, Args: args, Result: r})
		f.push(r)
	case bytecode.Putstatic, bytecode.Putfield:
		ft, err := classfile.ParseFieldType(in.Field.Descriptor)
		if err != nil {
			return err
		}
		v, err := l.popT(f, off, compTypeOf(ft))
		if err != nil {
			return err
		}
		irOp, args := OpPutStatic, []*Value{v}
		if op == bytecode.Putfield {
			obj, err := l.popT(f, off, Ref)
			if err != nil {
				return err
			}
			irOp, args = OpPutField, []*Value{obj, v}
		}
		l.emit(block, &Instruction{Op: irOp, Src: op, Offset: off, Field: in.Field, Args: args})

	case bytecode.Invokevirtual, bytecode.Invokespecial, bytecode.Invokestatic,
		bytecode.Invokeinterface, bytecode.Invokedynamic:
		return l.invoke(block, f, in)

	case bytecode.New:
		r := l.newValue(Ref, ValDef)
		r.RefName = in.ClassName
		l.emit(block, &Instruction{Op: OpNew, Src: op, Offset: off, Type: in.ClassName, Result: r})
		f.push(r)
	case bytecode.Newarray, bytecode.Anewarray:
		n, err := l.popT(f, off, Int)
		if err != nil {
			return err
		}
		elem := in.ClassName
		if op == bytecode.Newarray {
			elem = atypeNames[in.Value]
		}
		r := l.newValue(Ref, ValDef)
		l.emit(block, &Instruction{Op: OpNewArray, Src: op, Offset: off, Type: elem, Dims: 1, Args: []*Value{n}, Result: r})
		f.push(r)
	case bytecode.Multianewarray:
		counts := make([]*Value, in.Dims)
		for i := in.Dims - 1; i >= 0; i-- {
			n, err := l.popT(f, off, Int)
			if err != nil {
				return err
			}
			counts[i] = n
		}
		r := l.newValue(Ref, ValDef)
		l.emit(block, &Instruction{Op: OpNewArray, Src: op, Offset: off, Type: in.ClassName, Dims: in.Dims, Args: counts, Result: r})
		f.push(r)
	case bytecode.Arraylength:
		arr, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		r := l.newValue(Int, ValDef)
		l.emit(block, &Instruction{Op: OpArrayLength, Src: op, Offset: off, Args: []*Value{arr}, Result: r})
		f.push(r)

	case bytecode.Athrow:
		v, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		l.emit(block, &Instruction{Op: OpThrow, Src: op, Offset: off, Args: []*Value{v}})

	case bytecode.Checkcast:
		v, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		r := l.newValue(Ref, ValDef)
		r.RefName = in.ClassName
		l.emit(block, &Instruction{Op: OpCheckCast, Src: op, Offset: off, Type: in.ClassName, Args: []*Value{v}, Result: r})
		f.push(r)
	case bytecode.Instanceof:
		v, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		r := l.newValue(Int, ValDef)
		l.emit(block, &Instruction{Op: OpInstanceOf, Src: op, Offset: off, Type: in.ClassName, Args: []*Value{v}, Result: r})
		f.push(r)

	case bytecode.Monitorenter, bytecode.Monitorexit:
		v, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		irOp := OpMonitorEnter
		if op == bytecode.Monitorexit {
			irOp = OpMonitorExit
		}
		l.emit(block, &Instruction{Op: irOp, Src: op, Offset: off, Args: []*Value{v}})

	default:
		return l.errAt(off, "cannot lift opcode %s", op.Mnemonic())
	}
	return nil
}

// dup duplicates the top n word slots beneath the m slots below them, the
// shared shape of the whole dup family.
func (l *lifter) dup(f *frame, off, n, m int) error {
	top, ok := f.rawSlots(n)
	if !ok {
		return l.errAt(off, "%s would split a category-2 value", mnemonicForDup(n, m))
	}
	below, ok := f.rawSlots(m)
	if !ok {
		f.pushSlots(top)
		return l.errAt(off, "%s would split a category-2 value", mnemonicForDup(n, m))
	}
	f.pushSlots(top)
	f.pushSlots(below)
	f.pushSlots(top)
	return nil
}

func mnemonicForDup(n, m int) string {
	s := "dup"
	if n == 2 {
		s = "dup2"
	}
	if m > 0 {
		s = fmt.Sprintf("%s_x%d", s, m)
	}
	return s
}

// bindLocal writes a value into the locals, enforcing max_locals in strict
// mode.
func (l *lifter) bindLocal(f *frame, off, slot int, v *Value) error {
	if l.opts.Strict {
		need := slot + v.Type.Category()
		if need > int(l.method.Code.MaxLocals) {
			return l.errAt(off, "local %d is past max_locals %d", slot, l.method.Code.MaxLocals)
		}
	}
	f.setLocal(slot, v)
	return nil
}

// invoke pops arguments per the callee descriptor, plus the receiver for
// instance dispatch, and pushes the result for non-void callees.
func (l *lifter) invoke(block cfg.BlockID, f *frame, in *bytecode.Instruction) error {
	off := in.Offset
	md, err := classfile.ParseMethodDescriptor(in.Method.Descriptor)
	if err != nil {
		return err
	}
	args := make([]*Value, len(md.Params))
	for i := len(md.Params) - 1; i >= 0; i-- {
		v, err := l.popT(f, off, compTypeOf(md.Params[i]))
		if err != nil {
			return err
		}
		args[i] = v
	}
	if in.Op != bytecode.Invokestatic && in.Op != bytecode.Invokedynamic {
		recv, err := l.popT(f, off, Ref)
		if err != nil {
			return err
		}
		args = append([]*Value{recv}, args...)
	}
	ins := &Instruction{Op: OpInvoke, Src: in.Op, Offset: off, Method: in.Method, Args: args}
	if md.Return != nil {
		ins.Result = l.newValue(compTypeOf(*md.Return), ValDef)
	}
	l.emit(block, ins)
	if ins.Result != nil {
		f.push(ins.Result)
	}
	return nil
}
