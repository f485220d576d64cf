package cfg

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"mokair/internal/bytecode"
	"mokair/internal/classfile"
)

// ControlFlowError reports a branch or handler target that does not resolve
// to an instruction boundary, or a method whose control flow is internally
// inconsistent.
type ControlFlowError struct {
	Offset int // offset of the offending instruction or handler entry
	Target int
	Reason string
}

func (e *ControlFlowError) Error() string {
	return fmt.Sprintf("unresolved control flow at offset %d (target %d): %s", e.Offset, e.Target, e.Reason)
}

// Build partitions insts into basic blocks and wires normal and exceptional
// edges. The block partition exactly tiles [0, codeLen); edge order depends
// only on instruction order and the exception table order, so identical input
// yields an identical graph.
func Build(insts []bytecode.Instruction, handlers []classfile.ExceptionHandler) (*Graph, error) {
	if len(insts) == 0 {
		return nil, &ControlFlowError{Offset: 0, Target: 0, Reason: "empty code array"}
	}
	codeLen := insts[len(insts)-1].Next()

	// Offset of every instruction start, for target alignment checks.
	instIndex := make(map[int]int, len(insts))
	for i := range insts {
		instIndex[insts[i].Offset] = i
	}
	checkTarget := func(from, target int) error {
		if _, ok := instIndex[target]; !ok {
			reason := "target is not instruction-aligned"
			if target < 0 || target >= codeLen {
				reason = "target outside the code array"
			}
			return &ControlFlowError{Offset: from, Target: target, Reason: reason}
		}
		return nil
	}

	// Pass 1: block leaders. The method entry, every branch/switch target,
	// the offset after any terminator or conditional branch, and every
	// handler entry.
	leaders := mapset.NewThreadUnsafeSet[int]()
	leaders.Add(0)
	for i := range insts {
		in := &insts[i]
		for _, t := range in.BranchTargets() {
			if err := checkTarget(in.Offset, t); err != nil {
				return nil, err
			}
			leaders.Add(t)
		}
		if (in.Op.IsTerminator() || in.Op.IsConditionalBranch()) && in.Next() < codeLen {
			leaders.Add(in.Next())
		}
	}
	for _, h := range handlers {
		if err := checkTarget(h.Start, h.Handler); err != nil {
			return nil, err
		}
		if _, ok := instIndex[h.Start]; !ok {
			return nil, &ControlFlowError{Offset: h.Start, Target: h.Start, Reason: "protected range start is not instruction-aligned"}
		}
		if h.End != codeLen {
			if _, ok := instIndex[h.End]; !ok {
				return nil, &ControlFlowError{Offset: h.Start, Target: h.End, Reason: "protected range end is not instruction-aligned"}
			}
		}
		leaders.Add(h.Handler)
	}

	starts := leaders.ToSlice()
	sort.Ints(starts)

	// Pass 2: partition. Consecutive leaders delimit blocks; the partition
	// tiles [0, codeLen) with no gaps because every leader is an
	// instruction start.
	g := &Graph{
		Insts:        insts,
		Handlers:     handlers,
		Blocks:       make([]Block, len(starts)),
		startToBlock: make(map[int]BlockID, len(starts)),
	}
	for i, start := range starts {
		end := codeLen
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		first := instIndex[start]
		last := len(insts)
		if i+1 < len(starts) {
			last = instIndex[starts[i+1]]
		}
		g.Blocks[i] = Block{ID: BlockID(i), Start: start, End: end, First: first, Last: last}
		g.startToBlock[start] = BlockID(i)
	}

	// Pass 3: normal edges from each block's last instruction.
	for i := range g.Blocks {
		blk := &g.Blocks[i]
		last := g.Last(blk)
		switch {
		case last.Op.IsReturn() || last.Op == bytecode.Athrow || last.Op == bytecode.Ret:
			// No normal successor.
		case last.Op.IsSwitch():
			// One Branch edge per distinct target, in encoded order with
			// the default last.
			seen := mapset.NewThreadUnsafeSet[int]()
			for _, t := range last.BranchTargets() {
				if seen.Contains(t) {
					continue
				}
				seen.Add(t)
				blk.Succs = append(blk.Succs, Edge{To: g.startToBlock[t], Kind: Branch})
			}
		case last.Op.IsUnconditionalBranch():
			blk.Succs = append(blk.Succs, Edge{To: g.startToBlock[last.Target], Kind: Branch})
		case last.Op.IsConditionalBranch():
			if last.Next() >= codeLen {
				return nil, &ControlFlowError{Offset: last.Offset, Target: last.Next(), Reason: "conditional branch at the end of the code array"}
			}
			blk.Succs = append(blk.Succs, Edge{To: g.startToBlock[last.Target], Kind: Branch})
			blk.Succs = append(blk.Succs, Edge{To: g.startToBlock[last.Next()], Kind: Fallthrough})
		default:
			if last.Next() >= codeLen {
				return nil, &ControlFlowError{Offset: last.Offset, Target: last.Next(), Reason: "control falls off the end of the code array"}
			}
			blk.Succs = append(blk.Succs, Edge{To: g.startToBlock[last.Next()], Kind: Fallthrough})
		}
	}

	// Pass 4: exceptional edges. Every block whose range intersects a
	// protected range gets an edge to the handler entry, in table order.
	for _, h := range handlers {
		target := g.startToBlock[h.Handler]
		for i := range g.Blocks {
			blk := &g.Blocks[i]
			if blk.Start < h.End && blk.End > h.Start {
				blk.Succs = append(blk.Succs, Edge{To: target, Kind: Exceptional, CatchType: h.CatchType})
			}
		}
	}

	// Predecessors, deduplicated per (pred, succ) pair but recorded once per
	// distinct predecessor block.
	for i := range g.Blocks {
		seen := mapset.NewThreadUnsafeSet[BlockID]()
		for _, e := range g.Blocks[i].Succs {
			if seen.Contains(e.To) {
				continue
			}
			seen.Add(e.To)
			g.Blocks[e.To].Preds = append(g.Blocks[e.To].Preds, BlockID(i))
		}
	}

	return g, nil
}
