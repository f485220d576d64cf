package ir

// padSlot marks the second word of a category-2 value, on the stack or in the
// locals. It never escapes into IR instructions.
var padSlot = &Value{ID: -1}

// frame is the symbolic machine state at one point in a method: operand
// stack and local variable table, word-accurate so category-2 values occupy
// two slots.
type frame struct {
	stack  []*Value
	locals []*Value // nil means undefined
}

func newFrame(maxLocals int) *frame {
	return &frame{locals: make([]*Value, maxLocals)}
}

func (f *frame) clone() *frame {
	c := &frame{
		stack:  make([]*Value, len(f.stack)),
		locals: make([]*Value, len(f.locals)),
	}
	copy(c.stack, f.stack)
	copy(c.locals, f.locals)
	return c
}

// push appends v, adding a padding slot for category-2 values.
func (f *frame) push(v *Value) {
	f.stack = append(f.stack, v)
	if v.Type.Category() == 2 {
		f.stack = append(f.stack, padSlot)
	}
}

// pop removes the top value. Popping into the middle of a category-2 pair is
// impossible: the padding slot sits above its value, so a pad on top means
// the value below comes off with it.
func (f *frame) pop() (*Value, bool) {
	if len(f.stack) == 0 {
		return nil, false
	}
	top := f.stack[len(f.stack)-1]
	if top == padSlot {
		if len(f.stack) < 2 {
			return nil, false
		}
		v := f.stack[len(f.stack)-2]
		f.stack = f.stack[:len(f.stack)-2]
		return v, true
	}
	f.stack = f.stack[:len(f.stack)-1]
	return top, true
}

// rawSlots removes the top n word slots without pairing checks. Used by the
// dup/swap family, which shuffles words.
func (f *frame) rawSlots(n int) ([]*Value, bool) {
	if n == 0 {
		return nil, true
	}
	if len(f.stack) < n {
		return nil, false
	}
	// A cut below a pad slot would split a category-2 pair.
	if f.stack[len(f.stack)-n] == padSlot {
		return nil, false
	}
	out := make([]*Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out, true
}

func (f *frame) pushSlots(s []*Value) {
	f.stack = append(f.stack, s...)
}

// setLocal binds slot to v, growing the table as needed. Overwriting either
// half of a category-2 pair invalidates its partner, matching JVM
// local-variable semantics. Strict max_locals enforcement happens in the
// lifter, before this call.
func (f *frame) setLocal(slot int, v *Value) {
	need := slot + 1
	if v.Type.Category() == 2 {
		need = slot + 2
	}
	for len(f.locals) < need {
		f.locals = append(f.locals, nil)
	}
	if f.locals[slot] == padSlot && slot > 0 {
		f.locals[slot-1] = nil
	}
	if old := f.locals[slot]; old != nil && old != padSlot && old.Type.Category() == 2 && slot+1 < len(f.locals) {
		f.locals[slot+1] = nil
	}
	f.locals[slot] = v
	if v.Type.Category() == 2 {
		if f.locals[slot+1] != nil && f.locals[slot+1] != padSlot && f.locals[slot+1].Type.Category() == 2 && slot+2 < len(f.locals) {
			f.locals[slot+2] = nil
		}
		f.locals[slot+1] = padSlot
	}
}

// local reads slot, failing on undefined slots and pad halves.
func (f *frame) local(slot int) (*Value, bool) {
	if slot < 0 || slot >= len(f.locals) {
		return nil, false
	}
	v := f.locals[slot]
	if v == nil || v == padSlot {
		return nil, false
	}
	return v, true
}
