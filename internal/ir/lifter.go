package ir

import (
	"fmt"

	"mokair/internal/bytecode"
	"mokair/internal/cfg"
	"mokair/internal/classfile"
)

// ExternalPred is the phi operand key for values flowing into the entry block
// from outside the method: the parameters. It only appears when the entry
// block is also a branch target.
const ExternalPred cfg.BlockID = -1

// LiftError reports bytecode that cannot be lifted into SSA form.
type LiftError struct {
	Offset int
	Reason string
}

func (e *LiftError) Error() string {
	return fmt.Sprintf("lift failed at offset %d: %s", e.Offset, e.Reason)
}

// Options tunes lifting.
type Options struct {
	// Strict additionally enforces the declared max_stack and max_locals
	// limits. The default checks structure only.
	Strict bool
}

// BlockIR is the lifted body of one basic block: phi nodes first, then
// instructions in bytecode order.
type BlockIR struct {
	Phis  []*Phi
	Insts []*Instruction
}

// Method is a fully lifted method body.
type Method struct {
	Name       string
	Class      string
	Descriptor classfile.MethodDescriptor
	Graph      *cfg.Graph

	// Blocks is indexed by cfg.BlockID. Unreachable blocks stay empty.
	Blocks []BlockIR

	// Params holds the parameter values in slot order, receiver first for
	// instance methods.
	Params []*Value

	// Values lists every live value in deterministic order: parameters,
	// caught exceptions, then phis and results in block order.
	Values []*Value
}

// Lift decodes, partitions and lifts one method body into MokaIR. The method
// must carry a Code attribute.
func Lift(m *classfile.Method, pool *classfile.ConstPool, opts Options) (*Method, error) {
	if m.Code == nil {
		return nil, &LiftError{Reason: fmt.Sprintf("method %s has no code", m.Name)}
	}
	insts, err := bytecode.Decode(m.Code.Bytecode, pool)
	if err != nil {
		return nil, err
	}
	g, err := cfg.Build(insts, m.Code.ExceptionTable)
	if err != nil {
		return nil, err
	}
	l := &lifter{
		g:      g,
		pool:   pool,
		method: m,
		opts:   opts,
		out: &Method{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Graph:      g,
			Blocks:     make([]BlockIR, len(g.Blocks)),
		},
	}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.out, nil
}

type blockState struct {
	in          *frame
	stackPhis   []*Phi // one per stack value slot, bottom up
	localPhis   []*Phi // indexed by local slot, nil where no merge
	simulated   bool
	contributed map[cfg.BlockID]bool
	isHandler   bool
}

type lifter struct {
	g      *cfg.Graph
	pool   *classfile.ConstPool
	method *classfile.Method
	opts   Options
	out    *Method

	nextID   int
	states   []blockState
	reach    []bool
	rpreds   [][]cfg.BlockID // reachable predecessors, ExternalPred included for entry
	caught   map[cfg.BlockID]*Value
	poisoned map[*Phi]bool
	worklist []cfg.BlockID
}

func (l *lifter) newValue(t CompType, kind ValueKind) *Value {
	v := &Value{ID: l.nextID, Type: t, Kind: kind}
	l.nextID++
	return v
}

func (l *lifter) run() error {
	n := len(l.g.Blocks)
	l.states = make([]blockState, n)
	for i := range l.states {
		l.states[i].contributed = make(map[cfg.BlockID]bool)
	}
	l.caught = make(map[cfg.BlockID]*Value)
	l.poisoned = make(map[*Phi]bool)

	l.computeReach()
	if err := l.scanHandlers(); err != nil {
		return err
	}
	l.computePreds()

	l.contribute(ExternalPred, 0, l.entryFrame(), false)
	for len(l.worklist) > 0 {
		id := l.worklist[0]
		l.worklist = l.worklist[1:]
		if err := l.simulate(id); err != nil {
			return err
		}
	}
	if err := l.resolvePhis(); err != nil {
		return err
	}
	l.collectValues()
	return nil
}

func (l *lifter) computeReach() {
	l.reach = make([]bool, len(l.g.Blocks))
	stack := []cfg.BlockID{0}
	l.reach[0] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range l.g.Blocks[id].Succs {
			if !l.reach[e.To] {
				l.reach[e.To] = true
				stack = append(stack, e.To)
			}
		}
	}
}

// scanHandlers finds handler entry blocks, allocates their caught-exception
// values and rejects blocks reached by both normal and exceptional edges: a
// handler entry owns its operand stack.
func (l *lifter) scanHandlers() error {
	catchNames := make(map[cfg.BlockID]string)
	normalIn := make([]bool, len(l.g.Blocks))
	for i := range l.g.Blocks {
		if !l.reach[i] {
			continue
		}
		for _, e := range l.g.Blocks[i].Succs {
			if e.Kind != cfg.Exceptional {
				normalIn[e.To] = true
				continue
			}
			name := e.CatchType
			if name == "" {
				name = "java/lang/Throwable"
			}
			if prev, ok := catchNames[e.To]; ok && prev != name {
				catchNames[e.To] = "java/lang/Throwable"
			} else if !ok {
				catchNames[e.To] = name
			}
			l.states[e.To].isHandler = true
		}
	}
	for id, name := range catchNames {
		if normalIn[id] {
			return &LiftError{
				Offset: l.g.Blocks[id].Start,
				Reason: "exception handler entry is also a normal branch target",
			}
		}
		v := l.newValue(Ref, ValCaught)
		v.RefName = name
		l.caught[id] = v
	}
	return nil
}

func (l *lifter) computePreds() {
	l.rpreds = make([][]cfg.BlockID, len(l.g.Blocks))
	l.rpreds[0] = append(l.rpreds[0], ExternalPred)
	seen := make(map[[2]cfg.BlockID]bool)
	for i := range l.g.Blocks {
		if !l.reach[i] {
			continue
		}
		from := cfg.BlockID(i)
		for _, e := range l.g.Blocks[i].Succs {
			key := [2]cfg.BlockID{from, e.To}
			if seen[key] {
				continue
			}
			seen[key] = true
			l.rpreds[e.To] = append(l.rpreds[e.To], from)
		}
	}
}

// entryFrame seeds locals from the method descriptor: receiver in slot 0 for
// instance methods, then parameters in declaration order.
func (l *lifter) entryFrame() *frame {
	f := newFrame(int(l.method.Code.MaxLocals))
	slot := 0
	ordinal := 0
	if !l.method.IsStatic() {
		recv := l.newValue(Ref, ValParam)
		recv.Param = 0
		f.setLocal(0, recv)
		l.out.Params = append(l.out.Params, recv)
		slot, ordinal = 1, 1
	}
	for _, p := range l.method.Descriptor.Params {
		v := l.newValue(compTypeOf(p), ValParam)
		v.Param = ordinal
		if p.Kind == classfile.KindObject {
			v.RefName = p.Name
		}
		f.setLocal(slot, v)
		l.out.Params = append(l.out.Params, v)
		slot += v.Type.Category()
		ordinal++
	}
	return f
}

// contribute merges the frame arriving from pred into succ's entry state and
// schedules succ the first time a state for it exists.
func (l *lifter) contribute(pred, succ cfg.BlockID, f *frame, exceptional bool) {
	st := &l.states[succ]
	if st.contributed[pred] {
		return
	}
	st.contributed[pred] = true

	if len(l.rpreds[succ]) == 1 {
		st.in = f.clone()
		l.enqueue(succ)
		return
	}
	if st.in == nil {
		l.makePhiState(succ, f)
		l.enqueue(succ)
	}
	l.fillOperands(pred, succ, f)
}

func (l *lifter) enqueue(id cfg.BlockID) {
	if !l.states[id].simulated {
		l.worklist = append(l.worklist, id)
	}
}

// makePhiState builds a phi-based entry frame for a multi-predecessor block,
// shaped after the first arriving frame. Handler entries keep their fixed
// single-value stack; only locals merge.
func (l *lifter) makePhiState(id cfg.BlockID, f *frame) {
	st := &l.states[id]
	in := &frame{}
	if st.isHandler {
		in.push(l.caught[id])
	} else {
		for _, s := range f.stack {
			if s == padSlot {
				continue
			}
			phi := l.newPhi(id, true, len(st.stackPhis), s.Type)
			st.stackPhis = append(st.stackPhis, phi)
			in.push(phi.Value)
		}
	}
	st.localPhis = make([]*Phi, len(f.locals))
	in.locals = make([]*Value, len(f.locals))
	for slot, lv := range f.locals {
		if lv == nil || lv == padSlot {
			continue
		}
		phi := l.newPhi(id, false, slot, lv.Type)
		st.localPhis[slot] = phi
		in.locals[slot] = phi.Value
		if lv.Type.Category() == 2 {
			in.locals[slot+1] = padSlot
		}
	}
	st.in = in
}

func (l *lifter) newPhi(block cfg.BlockID, stackSlot bool, slot int, t CompType) *Phi {
	v := l.newValue(t, ValPhi)
	phi := &Phi{Value: v, Block: block, StackSlot: stackSlot, Slot: slot}
	v.Phi = phi
	l.out.Blocks[block].Phis = append(l.out.Blocks[block].Phis, phi)
	return phi
}

// fillOperands records pred's incoming values on succ's phis. Local slots
// that do not line up are poisoned: legal only while the block never reads
// them. Stack slots that do not line up are detected during the depth and
// type checks in simulate's merge validation.
func (l *lifter) fillOperands(pred, succ cfg.BlockID, f *frame) {
	st := &l.states[succ]
	if !st.isHandler {
		i := 0
		for _, s := range f.stack {
			if s == padSlot {
				continue
			}
			if i >= len(st.stackPhis) {
				i++
				continue
			}
			phi := st.stackPhis[i]
			if s.Type != phi.Value.Type {
				l.poisoned[phi] = true
			} else {
				phi.Operands = append(phi.Operands, PhiOperand{Pred: pred, Val: s})
			}
			i++
		}
		if i != len(st.stackPhis) {
			for _, phi := range st.stackPhis {
				l.poisoned[phi] = true
			}
		}
	}
	for slot, phi := range st.localPhis {
		if phi == nil {
			continue
		}
		var lv *Value
		if slot < len(f.locals) {
			lv = f.locals[slot]
		}
		if lv == nil || lv == padSlot || lv.Type != phi.Value.Type {
			l.poisoned[phi] = true
			continue
		}
		phi.Operands = append(phi.Operands, PhiOperand{Pred: pred, Val: lv})
	}
}

func (l *lifter) simulate(id cfg.BlockID) error {
	st := &l.states[id]
	if st.simulated {
		return nil
	}
	st.simulated = true
	blk := &l.g.Blocks[id]
	f := st.in.clone()

	// Each exception table row covering part of this block is tracked
	// separately. A slot is visible to the handler only if it holds the same
	// value at every instruction boundary inside the protected range; values
	// bound before the range begins are visible unconditionally.
	type handlerTrack struct {
		h    *classfile.ExceptionHandler
		snap []*Value
	}
	var tracks []handlerTrack
	for hi := range l.g.Handlers {
		h := &l.g.Handlers[hi]
		if blk.Start < h.End && blk.End > h.Start {
			tracks = append(tracks, handlerTrack{h: h})
		}
	}

	for i := blk.First; i < blk.Last; i++ {
		in := &l.g.Insts[i]
		for t := range tracks {
			tr := &tracks[t]
			if tr.snap == nil && in.Offset >= tr.h.Start {
				tr.snap = append([]*Value(nil), f.locals...)
			}
		}
		if err := l.step(id, f, in); err != nil {
			return err
		}
		if l.opts.Strict && len(f.stack) > int(l.method.Code.MaxStack) {
			return &LiftError{Offset: in.Offset, Reason: fmt.Sprintf("operand stack grows past max_stack %d", l.method.Code.MaxStack)}
		}
		for t := range tracks {
			tr := &tracks[t]
			if tr.snap == nil || in.Offset >= tr.h.End {
				continue
			}
			for s := range tr.snap {
				if s >= len(f.locals) || f.locals[s] != tr.snap[s] {
					tr.snap[s] = nil
				}
			}
		}
	}

	for _, e := range blk.Succs {
		if e.Kind == cfg.Exceptional {
			continue
		}
		if err := l.checkMerge(id, e.To, f); err != nil {
			return err
		}
		l.contribute(id, e.To, f, false)
	}

	// Rows targeting the same handler contribute one frame per block, keeping
	// only the slots every covering row agrees on.
	var order []cfg.BlockID
	snaps := make(map[cfg.BlockID][]*Value)
	for t := range tracks {
		tr := &tracks[t]
		hid, ok := l.g.BlockAt(tr.h.Handler)
		if !ok {
			continue
		}
		if prev, seen := snaps[hid]; seen {
			snaps[hid] = mergeLocals(prev, tr.snap)
		} else {
			snaps[hid] = tr.snap
			order = append(order, hid)
		}
	}
	for _, hid := range order {
		hf := &frame{locals: snaps[hid]}
		hf.push(l.caught[hid])
		l.contribute(id, hid, hf, true)
	}
	return nil
}

// mergeLocals intersects two handler-visible local tables slot by slot.
func mergeLocals(a, b []*Value) []*Value {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]*Value, n)
	for i := 0; i < n; i++ {
		if i < len(a) && i < len(b) && a[i] == b[i] {
			out[i] = a[i]
		}
	}
	return out
}

// checkMerge validates stack shape agreement before a normal-edge merge.
func (l *lifter) checkMerge(pred, succ cfg.BlockID, f *frame) error {
	st := &l.states[succ]
	if st.in == nil || st.contributed[pred] {
		return nil
	}
	want := len(st.in.stack)
	if st.isHandler {
		return nil // rejected earlier: handlers have no normal in-edges
	}
	if len(f.stack) != want {
		return &LiftError{
			Offset: l.g.Blocks[succ].Start,
			Reason: fmt.Sprintf("operand stack depth mismatch at merge: %d vs %d slots", len(f.stack), want),
		}
	}
	return nil
}

// resolvePhis drops unused incomplete phis, elides trivial ones and orders
// the survivors' operands by predecessor.
func (l *lifter) resolvePhis() error {
	replaced := make(map[*Value]*Value)
	resolve := func(v *Value) *Value {
		for {
			r, ok := replaced[v]
			if !ok {
				return v
			}
			v = r
		}
	}

	for changed := true; changed; {
		changed = false
		used := l.usedValues(resolve)

		for i := range l.out.Blocks {
			blk := &l.out.Blocks[i]
			kept := blk.Phis[:0]
			for _, phi := range blk.Phis {
				if _, gone := replaced[phi.Value]; gone {
					changed = true
					continue
				}
				incomplete := l.poisoned[phi] || len(phi.Operands) != len(l.rpreds[i])
				if incomplete {
					if used[phi.Value] {
						return &LiftError{
							Offset: l.g.Blocks[i].Start,
							Reason: fmt.Sprintf("value merged at block %d is not defined on every incoming path", i),
						}
					}
					replaced[phi.Value] = nil
					changed = true
					continue
				}
				// Trivial phi: every operand is the same value, ignoring
				// self-references through loop back edges.
				var only *Value
				trivial := true
				for _, op := range phi.Operands {
					v := resolve(op.Val)
					if v == phi.Value {
						continue
					}
					if only == nil {
						only = v
					} else if only != v {
						trivial = false
						break
					}
				}
				if trivial && only != nil {
					replaced[phi.Value] = only
					changed = true
					continue
				}
				kept = append(kept, phi)
			}
			blk.Phis = kept
		}
	}

	// Rewrite all remaining references through the replacement map.
	for i := range l.out.Blocks {
		for _, phi := range l.out.Blocks[i].Phis {
			for j := range phi.Operands {
				phi.Operands[j].Val = resolve(phi.Operands[j].Val)
			}
			phi.sortOperands()
		}
		for _, in := range l.out.Blocks[i].Insts {
			for j := range in.Args {
				in.Args[j] = resolve(in.Args[j])
			}
		}
	}
	return nil
}

// usedValues returns the set of values consumed anywhere, after resolving
// replacements.
func (l *lifter) usedValues(resolve func(*Value) *Value) map[*Value]bool {
	used := make(map[*Value]bool)
	for i := range l.out.Blocks {
		for _, phi := range l.out.Blocks[i].Phis {
			for _, op := range phi.Operands {
				if v := resolve(op.Val); v != nil && v != phi.Value {
					used[v] = true
				}
			}
		}
		for _, in := range l.out.Blocks[i].Insts {
			for _, a := range in.Args {
				if v := resolve(a); v != nil {
					used[v] = true
				}
			}
		}
	}
	return used
}

// collectValues gathers every live value in deterministic order: parameters,
// caught exceptions, then per block its phis and instruction results.
func (l *lifter) collectValues() {
	seen := make(map[*Value]bool)
	add := func(v *Value) {
		if v != nil && !seen[v] {
			seen[v] = true
			l.out.Values = append(l.out.Values, v)
		}
	}
	for _, p := range l.out.Params {
		add(p)
	}
	for i := range l.out.Blocks {
		add(l.caught[cfg.BlockID(i)])
		for _, phi := range l.out.Blocks[i].Phis {
			add(phi.Value)
		}
		for _, in := range l.out.Blocks[i].Insts {
			add(in.Result)
		}
	}
}
