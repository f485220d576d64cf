package ir

import (
	"mokair/internal/bytecode"
	"mokair/internal/classfile"
)

// compTypeOf maps a descriptor type onto its computational type.
func compTypeOf(t classfile.Type) CompType {
	switch t.Kind {
	case classfile.KindLong:
		return Long
	case classfile.KindFloat:
		return Float
	case classfile.KindDouble:
		return Double
	case classfile.KindObject, classfile.KindArray:
		return Ref
	default:
		// boolean, byte, char, short and int all compute as int.
		return Int
	}
}

// binSig is the operand and result typing of a two-operand opcode. A is the
// value pushed first (deeper on the stack).
type binSig struct {
	a, b, r CompType
}

var binarySigs = map[bytecode.Op]binSig{
	bytecode.Iadd: {Int, Int, Int}, bytecode.Isub: {Int, Int, Int},
	bytecode.Imul: {Int, Int, Int}, bytecode.Idiv: {Int, Int, Int},
	bytecode.Irem: {Int, Int, Int},
	bytecode.Ladd: {Long, Long, Long}, bytecode.Lsub: {Long, Long, Long},
	bytecode.Lmul: {Long, Long, Long}, bytecode.Ldiv: {Long, Long, Long},
	bytecode.Lrem: {Long, Long, Long},
	bytecode.Fadd: {Float, Float, Float}, bytecode.Fsub: {Float, Float, Float},
	bytecode.Fmul: {Float, Float, Float}, bytecode.Fdiv: {Float, Float, Float},
	bytecode.Frem: {Float, Float, Float},
	bytecode.Dadd: {Double, Double, Double}, bytecode.Dsub: {Double, Double, Double},
	bytecode.Dmul: {Double, Double, Double}, bytecode.Ddiv: {Double, Double, Double},
	bytecode.Drem: {Double, Double, Double},

	// Shift amounts are always int, even for long shifts.
	bytecode.Ishl: {Int, Int, Int}, bytecode.Ishr: {Int, Int, Int},
	bytecode.Iushr: {Int, Int, Int},
	bytecode.Lshl: {Long, Int, Long}, bytecode.Lshr: {Long, Int, Long},
	bytecode.Lushr: {Long, Int, Long},

	bytecode.Iand: {Int, Int, Int}, bytecode.Ior: {Int, Int, Int},
	bytecode.Ixor: {Int, Int, Int},
	bytecode.Land: {Long, Long, Long}, bytecode.Lor: {Long, Long, Long},
	bytecode.Lxor: {Long, Long, Long},

	bytecode.Lcmp:  {Long, Long, Int},
	bytecode.Fcmpl: {Float, Float, Int}, bytecode.Fcmpg: {Float, Float, Int},
	bytecode.Dcmpl: {Double, Double, Int}, bytecode.Dcmpg: {Double, Double, Int},
}

var unarySigs = map[bytecode.Op]CompType{
	bytecode.Ineg: Int,
	bytecode.Lneg: Long,
	bytecode.Fneg: Float,
	bytecode.Dneg: Double,
}

// convSigs maps each conversion opcode to its source and destination type.
// The narrowing int conversions (i2b, i2c, i2s) stay int computationally.
var convSigs = map[bytecode.Op]struct{ from, to CompType }{
	bytecode.I2l: {Int, Long}, bytecode.I2f: {Int, Float}, bytecode.I2d: {Int, Double},
	bytecode.L2i: {Long, Int}, bytecode.L2f: {Long, Float}, bytecode.L2d: {Long, Double},
	bytecode.F2i: {Float, Int}, bytecode.F2l: {Float, Long}, bytecode.F2d: {Float, Double},
	bytecode.D2i: {Double, Int}, bytecode.D2l: {Double, Long}, bytecode.D2f: {Double, Float},
	bytecode.I2b: {Int, Int}, bytecode.I2c: {Int, Int}, bytecode.I2s: {Int, Int},
}

var arrayLoadElem = map[bytecode.Op]CompType{
	bytecode.Iaload: Int, bytecode.Laload: Long, bytecode.Faload: Float,
	bytecode.Daload: Double, bytecode.Aaload: Ref, bytecode.Baload: Int,
	bytecode.Caload: Int, bytecode.Saload: Int,
}

var arrayStoreElem = map[bytecode.Op]CompType{
	bytecode.Iastore: Int, bytecode.Lastore: Long, bytecode.Fastore: Float,
	bytecode.Dastore: Double, bytecode.Aastore: Ref, bytecode.Bastore: Int,
	bytecode.Castore: Int, bytecode.Sastore: Int,
}

var returnTypes = map[bytecode.Op]CompType{
	bytecode.Ireturn: Int, bytecode.Lreturn: Long, bytecode.Freturn: Float,
	bytecode.Dreturn: Double, bytecode.Areturn: Ref,
}

func loadType(op bytecode.Op) (CompType, bool) {
	switch {
	case op == bytecode.Iload || (op >= bytecode.Iload0 && op <= bytecode.Iload3):
		return Int, true
	case op == bytecode.Lload || (op >= bytecode.Lload0 && op <= bytecode.Lload3):
		return Long, true
	case op == bytecode.Fload || (op >= bytecode.Fload0 && op <= bytecode.Fload3):
		return Float, true
	case op == bytecode.Dload || (op >= bytecode.Dload0 && op <= bytecode.Dload3):
		return Double, true
	case op == bytecode.Aload || (op >= bytecode.Aload0 && op <= bytecode.Aload3):
		return Ref, true
	}
	return 0, false
}

func storeType(op bytecode.Op) (CompType, bool) {
	switch {
	case op == bytecode.Istore || (op >= bytecode.Istore0 && op <= bytecode.Istore3):
		return Int, true
	case op == bytecode.Lstore || (op >= bytecode.Lstore0 && op <= bytecode.Lstore3):
		return Long, true
	case op == bytecode.Fstore || (op >= bytecode.Fstore0 && op <= bytecode.Fstore3):
		return Float, true
	case op == bytecode.Dstore || (op >= bytecode.Dstore0 && op <= bytecode.Dstore3):
		return Double, true
	case op == bytecode.Astore || (op >= bytecode.Astore0 && op <= bytecode.Astore3):
		return Ref, true
	}
	return 0, false
}

func constType(c classfile.Constant) CompType {
	switch c.Kind {
	case classfile.ConstLong:
		return Long
	case classfile.ConstFloat:
		return Float
	case classfile.ConstDouble:
		return Double
	case classfile.ConstInt:
		return Int
	case classfile.ConstDynamic:
		// The descriptor was validated when the constant was resolved.
		if t, err := classfile.ParseFieldType(c.Str); err == nil {
			return compTypeOf(t)
		}
		return Ref
	default:
		// String, Class, MethodType, MethodHandle, null.
		return Ref
	}
}
