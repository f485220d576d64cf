// Package ir lifts JVM stack-machine bytecode into MokaIR, a register-form
// SSA representation: symbolic values, phi nodes at control-flow merges, and
// typed IR instructions per basic block.
package ir

import (
	"fmt"
	"sort"

	"mokair/internal/cfg"
)

// CompType is a JVM computational type. Int covers boolean, byte, char and
// short, which share the int computational type on the operand stack.
type CompType uint8

const (
	Int CompType = iota
	Long
	Float
	Double
	Ref
)

// Category returns 2 for Long/Double and 1 otherwise.
func (t CompType) Category() int {
	if t == Long || t == Double {
		return 2
	}
	return 1
}

func (t CompType) String() string {
	switch t {
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Ref:
		return "ref"
	default:
		return fmt.Sprintf("CompType(%d)", uint8(t))
	}
}

// ValueKind says what defines a Value.
type ValueKind uint8

const (
	// ValDef is produced by an IR instruction.
	ValDef ValueKind = iota
	// ValPhi is produced by a phi node.
	ValPhi
	// ValParam is seeded from a method parameter (the receiver counts as
	// parameter 0 of instance methods).
	ValParam
	// ValCaught is the synthetic caught-exception value entering a handler.
	ValCaught
)

// Value is an SSA value: defined exactly once, by an instruction, a phi, a
// parameter slot, or a handler entry.
type Value struct {
	ID   int
	Type CompType
	Kind ValueKind

	Def   *Instruction // ValDef
	Phi   *Phi         // ValPhi
	Param int          // ValParam: parameter ordinal

	// RefName is a best-effort binary class name for reference values where
	// one is statically known (caught exceptions, new, checkcast).
	RefName string
}

func (v *Value) String() string {
	switch v.Kind {
	case ValParam:
		return fmt.Sprintf("arg%d", v.Param)
	case ValCaught:
		return fmt.Sprintf("caught%d", v.ID)
	default:
		return fmt.Sprintf("v%d", v.ID)
	}
}

// PhiOperand is one incoming value, keyed by the predecessor block it flows
// in from.
type PhiOperand struct {
	Pred cfg.BlockID
	Val  *Value
}

// Phi merges one value per predecessor edge of a multi-predecessor block.
// Operands are kept sorted by predecessor handle once lifting completes.
type Phi struct {
	Value *Value
	Block cfg.BlockID

	// Slot records which frame slot the phi merges: stack depth for
	// StackSlot, local index otherwise. Diagnostic only.
	StackSlot bool
	Slot      int

	Operands []PhiOperand
}

// Operand returns the incoming value for the given predecessor.
func (p *Phi) Operand(pred cfg.BlockID) (*Value, bool) {
	for _, op := range p.Operands {
		if op.Pred == pred {
			return op.Val, true
		}
	}
	return nil, false
}

func (p *Phi) sortOperands() {
	sort.Slice(p.Operands, func(i, j int) bool { return p.Operands[i].Pred < p.Operands[j].Pred })
}

func (p *Phi) String() string {
	s := fmt.Sprintf("%s = phi", p.Value)
	for _, op := range p.Operands {
		s += fmt.Sprintf(" [b%d: %s]", op.Pred, op.Val)
	}
	return s
}
