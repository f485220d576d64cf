package ir

import (
	"fmt"
	"strings"

	"mokair/internal/bytecode"
	"mokair/internal/classfile"
)

// Op classifies an IR instruction. The originating bytecode opcode is kept on
// the instruction for the exact arithmetic/comparison/conversion variant.
type Op uint8

const (
	OpConst Op = iota
	OpUnary
	OpBinary
	OpConvert
	OpArrayLoad
	OpArrayStore
	OpArrayLength
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic
	OpInvoke
	OpNew
	OpNewArray
	OpCheckCast
	OpInstanceOf
	OpMonitorEnter
	OpMonitorExit
	OpBranch
	OpSwitch
	OpReturn
	OpThrow
)

func (o Op) String() string {
	switch o {
	case OpConst:
		return "const"
	case OpUnary:
		return "unary"
	case OpBinary:
		return "binary"
	case OpConvert:
		return "convert"
	case OpArrayLoad:
		return "aload"
	case OpArrayStore:
		return "astore"
	case OpArrayLength:
		return "arraylength"
	case OpGetField:
		return "getfield"
	case OpPutField:
		return "putfield"
	case OpGetStatic:
		return "getstatic"
	case OpPutStatic:
		return "putstatic"
	case OpInvoke:
		return "invoke"
	case OpNew:
		return "new"
	case OpNewArray:
		return "newarray"
	case OpCheckCast:
		return "checkcast"
	case OpInstanceOf:
		return "instanceof"
	case OpMonitorEnter:
		return "monitorenter"
	case OpMonitorExit:
		return "monitorexit"
	case OpBranch:
		return "branch"
	case OpSwitch:
		return "switch"
	case OpReturn:
		return "return"
	case OpThrow:
		return "throw"
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Instruction is one MokaIR instruction. Operands are SSA values; Result is
// nil for instructions that produce nothing.
type Instruction struct {
	Op     Op
	Src    bytecode.Op // originating bytecode opcode
	Offset int         // bytecode offset this was lifted from
	Args   []*Value
	Result *Value

	// Payloads, populated per Op.
	Const  classfile.Constant // OpConst
	Field  classfile.FieldRef // field ops
	Method classfile.MethodRef
	Type   string // class or element type name
	Dims   int    // OpNewArray with multiple dimensions
	Target int    // OpBranch: taken-branch bytecode offset
}

func (in *Instruction) String() string {
	var b strings.Builder
	if in.Result != nil {
		fmt.Fprintf(&b, "%s = ", in.Result)
	}
	b.WriteString(in.Op.String())
	switch in.Op {
	case OpConst:
		fmt.Fprintf(&b, " %s", in.Const)
	case OpUnary, OpBinary, OpConvert, OpBranch, OpArrayLoad, OpArrayStore:
		fmt.Fprintf(&b, "(%s)", in.Src.Mnemonic())
	case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
		fmt.Fprintf(&b, " %s.%s", in.Field.Class, in.Field.Name)
	case OpInvoke:
		fmt.Fprintf(&b, "(%s) %s.%s%s", in.Src.Mnemonic(), in.Method.Class, in.Method.Name, in.Method.Descriptor)
	case OpNew, OpNewArray, OpCheckCast, OpInstanceOf:
		fmt.Fprintf(&b, " %s", in.Type)
	}
	for i, a := range in.Args {
		if i == 0 {
			b.WriteString(" ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	if in.Op == OpBranch {
		fmt.Fprintf(&b, " -> %d", in.Target)
	}
	return b.String()
}
