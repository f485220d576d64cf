package bytecode

import (
	"fmt"
	"strings"

	"mokair/internal/classfile"
)

// Instruction is one decoded bytecode instruction. Offset is the byte offset
// of the opcode within the method body and Length the full encoded size, so
// Offset+Length is always the offset of the next instruction.
//
// Operand fields are populated according to the opcode family; the slot-coded
// forms (iload_0, iconst_2, ...) are normalized into the same fields as their
// operand-carrying siblings, so consumers switch on the family rather than
// the exact encoding.
type Instruction struct {
	Offset int
	Op     Op
	Length int
	Wide   bool // decoded under a wide prefix

	Local    int   // local slot: loads, stores, ret, iinc
	Value    int32 // immediate: bipush, sipush, iconst_*, newarray atype
	IncDelta int32 // iinc increment

	Target     int   // absolute branch target: goto, if*, jsr
	Default    int   // absolute default target: switches
	Keys       []int32
	KeyTargets []int // absolute, parallel to Keys

	CPIndex   uint16 // raw constant pool operand where one exists
	Const     classfile.Constant
	Field     classfile.FieldRef
	Method    classfile.MethodRef
	ClassName string // new, anewarray, checkcast, instanceof, multianewarray
	Dims      int    // multianewarray dimension count
	Count     int    // invokeinterface count byte
}

// Next returns the offset of the instruction that follows in the stream.
func (in *Instruction) Next() int { return in.Offset + in.Length }

// BranchTargets returns every offset the instruction may transfer control to,
// excluding fallthrough. Switch targets are listed in encoded order with the
// default last; duplicates are preserved.
func (in *Instruction) BranchTargets() []int {
	switch {
	case in.Op.IsConditionalBranch() || in.Op.IsUnconditionalBranch():
		return []int{in.Target}
	case in.Op.IsSwitch():
		targets := make([]int, 0, len(in.KeyTargets)+1)
		targets = append(targets, in.KeyTargets...)
		return append(targets, in.Default)
	default:
		return nil
	}
}

// String renders the instruction in javap-like form.
func (in *Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Op.Mnemonic())
	switch in.Op {
	case Bipush, Sipush:
		fmt.Fprintf(&b, " %d", in.Value)
	case Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore, Astore, Ret:
		fmt.Fprintf(&b, " %d", in.Local)
	case Iinc:
		fmt.Fprintf(&b, " %d %d", in.Local, in.IncDelta)
	case Ldc, LdcW, Ldc2W:
		fmt.Fprintf(&b, " #%d", in.CPIndex)
	case Getstatic, Putstatic, Getfield, Putfield:
		fmt.Fprintf(&b, " %s.%s:%s", in.Field.Class, in.Field.Name, in.Field.Descriptor)
	case Invokevirtual, Invokespecial, Invokestatic, Invokeinterface:
		fmt.Fprintf(&b, " %s.%s%s", in.Method.Class, in.Method.Name, in.Method.Descriptor)
	case Invokedynamic:
		fmt.Fprintf(&b, " #%d", in.CPIndex)
	case New, Anewarray, Checkcast, Instanceof:
		fmt.Fprintf(&b, " %s", in.ClassName)
	case Multianewarray:
		fmt.Fprintf(&b, " %s dims=%d", in.ClassName, in.Dims)
	case Newarray:
		fmt.Fprintf(&b, " %d", in.Value)
	case Tableswitch, Lookupswitch:
		fmt.Fprintf(&b, " default=%d", in.Default)
		for i, k := range in.Keys {
			fmt.Fprintf(&b, " %d:%d", k, in.KeyTargets[i])
		}
	default:
		if in.Op.IsConditionalBranch() || in.Op.IsUnconditionalBranch() {
			fmt.Fprintf(&b, " %d", in.Target)
		}
	}
	return b.String()
}

// Format renders a decoded stream as stable text, one instruction per line:
// "<offset>  <mnemonic> <operands>".
func Format(insts []Instruction) string {
	var b strings.Builder
	for i := range insts {
		fmt.Fprintf(&b, "%4d  %s\n", insts[i].Offset, insts[i].String())
	}
	return b.String()
}
