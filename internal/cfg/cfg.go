// Package cfg partitions decoded bytecode into basic blocks and connects them
// with normal and exceptional edges. Blocks live in an arena and refer to each
// other by integer handle, so cyclic control flow carries no ownership cycles.
package cfg

import (
	"fmt"

	"mokair/internal/bytecode"
	"mokair/internal/classfile"
)

// BlockID is a stable handle into Graph.Blocks. The entry block is always 0.
type BlockID int

// EdgeKind discriminates how control reaches a successor.
type EdgeKind uint8

const (
	// Fallthrough is sequential flow into the next block.
	Fallthrough EdgeKind = iota
	// Branch is an explicit goto/if*/switch/jsr transfer.
	Branch
	// Exceptional is a transfer to an exception handler entry.
	Exceptional
)

func (k EdgeKind) String() string {
	switch k {
	case Fallthrough:
		return "fallthrough"
	case Branch:
		return "branch"
	case Exceptional:
		return "exceptional"
	default:
		return fmt.Sprintf("EdgeKind(%d)", uint8(k))
	}
}

// Edge is an outgoing control transfer. CatchType is set for Exceptional
// edges only; empty means a finally-style wildcard handler.
type Edge struct {
	To        BlockID
	Kind      EdgeKind
	CatchType string
}

// Block is a contiguous run of instructions with a single entry point.
// [Start, End) are code offsets; [First, Last) index into Graph.Insts.
type Block struct {
	ID    BlockID
	Start int
	End   int
	First int
	Last  int
	Succs []Edge
	Preds []BlockID
}

// Graph is a per-method control-flow graph. It is immutable after Build and
// holds no copies: Insts and Handlers alias the inputs, which are
// themselves immutable artifacts.
type Graph struct {
	Insts    []bytecode.Instruction
	Blocks   []Block
	Handlers []classfile.ExceptionHandler

	startToBlock map[int]BlockID
}

// Instructions returns the instruction slice of b within g.
func (g *Graph) Instructions(b *Block) []bytecode.Instruction {
	return g.Insts[b.First:b.Last]
}

// Last returns the final instruction of b.
func (g *Graph) Last(b *Block) *bytecode.Instruction {
	return &g.Insts[b.Last-1]
}

// BlockAt returns the block starting exactly at the given code offset.
func (g *Graph) BlockAt(offset int) (BlockID, bool) {
	id, ok := g.startToBlock[offset]
	return id, ok
}

// Entry returns the entry block.
func (g *Graph) Entry() *Block { return &g.Blocks[0] }
