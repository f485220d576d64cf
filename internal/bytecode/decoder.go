// Package bytecode decodes raw JVM method bodies into offset-keyed, typed
// instruction streams. Constant pool operands are resolved eagerly so the
// decoded stream stands alone.
package bytecode

import (
	"encoding/binary"
	"fmt"

	"mokair/internal/classfile"
)

// UnknownOpcodeError reports an opcode byte outside the JVM instruction set.
type UnknownOpcodeError struct {
	Offset int
	Opcode byte
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02x at offset %d", e.Opcode, e.Offset)
}

// TruncatedError reports an instruction whose operands run past the end of
// the code array. Offset is the position where bytes ran out.
type TruncatedError struct {
	Offset int
	Op     Op
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated %s instruction: code ends at offset %d", e.Op.Mnemonic(), e.Offset)
}

// cursor walks the code array. All operand fields are big-endian.
type cursor struct {
	code []byte
	pos  int
	op   Op // opcode being decoded, for error reporting
}

func (c *cursor) truncated() error { return &TruncatedError{Offset: len(c.code), Op: c.op} }

func (c *cursor) remaining() int { return len(c.code) - c.pos }

func (c *cursor) u8() (uint8, error) {
	if c.pos >= len(c.code) {
		return 0, c.truncated()
	}
	v := c.code[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	if c.pos+2 > len(c.code) {
		return 0, c.truncated()
	}
	v := binary.BigEndian.Uint16(c.code[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	if c.pos+4 > len(c.code) {
		return 0, c.truncated()
	}
	v := int32(binary.BigEndian.Uint32(c.code[c.pos:]))
	c.pos += 4
	return v, nil
}

// Decode decodes an entire method body. The returned slice is ordered by
// offset and covers every byte of code: each instruction's Length is exact,
// so in[i].Next() == in[i+1].Offset.
func Decode(code []byte, pool *classfile.ConstPool) ([]Instruction, error) {
	c := &cursor{code: code}
	var out []Instruction
	for c.pos < len(code) {
		in, err := decodeOne(c, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func decodeOne(c *cursor, pool *classfile.ConstPool) (Instruction, error) {
	start := c.pos
	b, err := c.u8()
	if err != nil {
		return Instruction{}, err
	}
	op := Op(b)
	c.op = op
	in := Instruction{Offset: start, Op: op}
	fail := func(err error) (Instruction, error) { return Instruction{}, err }

	switch {
	case op == Wide:
		wb, err := c.u8()
		if err != nil {
			return fail(err)
		}
		wop := Op(wb)
		switch wop {
		case Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore, Astore, Ret:
			c.op = wop
			slot, err := c.u16()
			if err != nil {
				return fail(err)
			}
			in.Op, in.Wide, in.Local = wop, true, int(slot)
		case Iinc:
			c.op = wop
			slot, err := c.u16()
			if err != nil {
				return fail(err)
			}
			delta, err := c.u16()
			if err != nil {
				return fail(err)
			}
			in.Op, in.Wide, in.Local, in.IncDelta = wop, true, int(slot), int32(int16(delta))
		default:
			return fail(&UnknownOpcodeError{Offset: start + 1, Opcode: wb})
		}

	case op == Bipush:
		v, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Value = int32(int8(v))
	case op == Sipush:
		v, err := c.u16()
		if err != nil {
			return fail(err)
		}
		in.Value = int32(int16(v))

	case op >= IconstM1 && op <= Iconst5:
		in.Value = int32(op) - int32(Iconst0)

	case op == Ldc:
		idx, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.CPIndex = uint16(idx)
		if in.Const, err = pool.Value(in.CPIndex); err != nil {
			return fail(err)
		}
		if in.Const.Category() == 2 {
			return fail(&classfile.ConstantPoolError{Index: in.CPIndex, Reason: "ldc cannot load a category-2 constant"})
		}
	case op == LdcW:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.Const, err = pool.Value(in.CPIndex); err != nil {
			return fail(err)
		}
		if in.Const.Category() == 2 {
			return fail(&classfile.ConstantPoolError{Index: in.CPIndex, Reason: "ldc_w cannot load a category-2 constant"})
		}
	case op == Ldc2W:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.Const, err = pool.Value(in.CPIndex); err != nil {
			return fail(err)
		}
		if in.Const.Category() != 2 {
			return fail(&classfile.ConstantPoolError{Index: in.CPIndex, Reason: "ldc2_w requires a long or double constant"})
		}

	case op >= Iload && op <= Aload: // operand-carrying loads
		slot, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Local = int(slot)
	case op >= Iload0 && op <= Aload3:
		in.Local = int(op-Iload0) % 4
	case op >= Istore && op <= Astore:
		slot, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Local = int(slot)
	case op >= Istore0 && op <= Astore3:
		in.Local = int(op-Istore0) % 4
	case op == Ret:
		slot, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Local = int(slot)

	case op == Iinc:
		slot, err := c.u8()
		if err != nil {
			return fail(err)
		}
		delta, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Local, in.IncDelta = int(slot), int32(int8(delta))

	case op.IsConditionalBranch() || op == Goto || op == Jsr:
		d, err := c.u16()
		if err != nil {
			return fail(err)
		}
		in.Target = start + int(int16(d))
	case op == GotoW || op == JsrW:
		d, err := c.i32()
		if err != nil {
			return fail(err)
		}
		in.Target = start + int(d)

	case op == Tableswitch:
		if err := skipSwitchPadding(c); err != nil {
			return fail(err)
		}
		def, err := c.i32()
		if err != nil {
			return fail(err)
		}
		low, err := c.i32()
		if err != nil {
			return fail(err)
		}
		high, err := c.i32()
		if err != nil {
			return fail(err)
		}
		if high < low {
			return fail(&UnknownOpcodeError{Offset: start, Opcode: byte(op)})
		}
		in.Default = start + int(def)
		n := int(high) - int(low) + 1
		// The declared entry count bounds the allocation, so check it against
		// the bytes actually left before allocating.
		if n > c.remaining()/4 {
			return fail(c.truncated())
		}
		in.Keys = make([]int32, 0, n)
		in.KeyTargets = make([]int, 0, n)
		for k := int(low); k <= int(high); k++ {
			d, err := c.i32()
			if err != nil {
				return fail(err)
			}
			in.Keys = append(in.Keys, int32(k))
			in.KeyTargets = append(in.KeyTargets, start+int(d))
		}
	case op == Lookupswitch:
		if err := skipSwitchPadding(c); err != nil {
			return fail(err)
		}
		def, err := c.i32()
		if err != nil {
			return fail(err)
		}
		npairs, err := c.i32()
		if err != nil {
			return fail(err)
		}
		if npairs < 0 {
			return fail(&UnknownOpcodeError{Offset: start, Opcode: byte(op)})
		}
		in.Default = start + int(def)
		if int(npairs) > c.remaining()/8 {
			return fail(c.truncated())
		}
		in.Keys = make([]int32, 0, npairs)
		in.KeyTargets = make([]int, 0, npairs)
		for i := int32(0); i < npairs; i++ {
			key, err := c.i32()
			if err != nil {
				return fail(err)
			}
			d, err := c.i32()
			if err != nil {
				return fail(err)
			}
			in.Keys = append(in.Keys, key)
			in.KeyTargets = append(in.KeyTargets, start+int(d))
		}

	case op == Getstatic || op == Putstatic || op == Getfield || op == Putfield:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.Field, err = pool.FieldRef(in.CPIndex); err != nil {
			return fail(err)
		}

	case op == Invokevirtual || op == Invokespecial || op == Invokestatic:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.Method, err = pool.MethodRef(in.CPIndex); err != nil {
			return fail(err)
		}
	case op == Invokeinterface:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.Method, err = pool.MethodRef(in.CPIndex); err != nil {
			return fail(err)
		}
		if !in.Method.Interface {
			return fail(&classfile.ConstantPoolError{Index: in.CPIndex, Reason: "invokeinterface requires an InterfaceMethodref"})
		}
		count, err := c.u8()
		if err != nil {
			return fail(err)
		}
		in.Count = int(count)
		zero, err := c.u8()
		if err != nil {
			return fail(err)
		}
		if zero != 0 {
			return fail(&UnknownOpcodeError{Offset: c.pos - 1, Opcode: zero})
		}
	case op == Invokedynamic:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		e, err := pool.Entry(in.CPIndex)
		if err != nil {
			return fail(err)
		}
		indy, ok := e.(classfile.InvokeDynamicEntry)
		if !ok {
			return fail(&classfile.ConstantPoolError{Index: in.CPIndex, Reason: "invokedynamic requires an InvokeDynamic entry"})
		}
		name, desc, err := pool.NameAndType(indy.NameAndTypeIndex)
		if err != nil {
			return fail(err)
		}
		in.Method = classfile.MethodRef{Name: name, Descriptor: desc}
		zeros, err := c.u16()
		if err != nil {
			return fail(err)
		}
		if zeros != 0 {
			return fail(&UnknownOpcodeError{Offset: c.pos - 2, Opcode: byte(zeros)})
		}

	case op == New || op == Anewarray || op == Checkcast || op == Instanceof:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.ClassName, err = pool.ClassName(in.CPIndex); err != nil {
			return fail(err)
		}
	case op == Newarray:
		atype, err := c.u8()
		if err != nil {
			return fail(err)
		}
		if atype < 4 || atype > 11 {
			return fail(&UnknownOpcodeError{Offset: c.pos - 1, Opcode: atype})
		}
		in.Value = int32(atype)
	case op == Multianewarray:
		if in.CPIndex, err = c.u16(); err != nil {
			return fail(err)
		}
		if in.ClassName, err = pool.ClassName(in.CPIndex); err != nil {
			return fail(err)
		}
		dims, err := c.u8()
		if err != nil {
			return fail(err)
		}
		if dims == 0 {
			return fail(&UnknownOpcodeError{Offset: c.pos - 1, Opcode: dims})
		}
		in.Dims = int(dims)

	default:
		if _, known := mnemonics[op]; !known {
			return fail(&UnknownOpcodeError{Offset: start, Opcode: b})
		}
		// Fixed single-byte instruction with no operands.
	}

	in.Length = c.pos - start
	return in, nil
}

// skipSwitchPadding consumes up to three padding bytes so the switch operand
// table starts on a 4-byte boundary relative to the start of the code array.
func skipSwitchPadding(c *cursor) error {
	for c.pos%4 != 0 {
		if _, err := c.u8(); err != nil {
			return err
		}
	}
	return nil
}
