package classfile

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Constant pool tags (JVM spec table 4.4-B).
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Entry is a decoded constant pool entry. The set of implementations is
// closed: every consumption site type-switches over all of them.
type Entry interface {
	Tag() uint8
	tagName() string
}

type Utf8Entry struct{ Value string }

type IntegerEntry struct{ Value int32 }

type FloatEntry struct{ Value float32 }

type LongEntry struct{ Value int64 }

type DoubleEntry struct{ Value float64 }

type ClassEntry struct{ NameIndex uint16 }

type StringEntry struct{ StringIndex uint16 }

type FieldrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type MethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type InterfaceMethodrefEntry struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

type NameAndTypeEntry struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

type MethodHandleEntry struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

type MethodTypeEntry struct{ DescriptorIndex uint16 }

type DynamicEntry struct {
	BootstrapMethodIndex uint16
	NameAndTypeIndex     uint16
}

type InvokeDynamicEntry struct {
	BootstrapMethodIndex uint16
	NameAndTypeIndex     uint16
}

type ModuleEntry struct{ NameIndex uint16 }

type PackageEntry struct{ NameIndex uint16 }

// slotPadding occupies the second index slot of a Long or Double entry.
// Any lookup that lands on it fails.
type slotPadding struct{}

func (Utf8Entry) Tag() uint8               { return TagUtf8 }
func (IntegerEntry) Tag() uint8            { return TagInteger }
func (FloatEntry) Tag() uint8              { return TagFloat }
func (LongEntry) Tag() uint8               { return TagLong }
func (DoubleEntry) Tag() uint8             { return TagDouble }
func (ClassEntry) Tag() uint8              { return TagClass }
func (StringEntry) Tag() uint8             { return TagString }
func (FieldrefEntry) Tag() uint8           { return TagFieldref }
func (MethodrefEntry) Tag() uint8          { return TagMethodref }
func (InterfaceMethodrefEntry) Tag() uint8 { return TagInterfaceMethodref }
func (NameAndTypeEntry) Tag() uint8        { return TagNameAndType }
func (MethodHandleEntry) Tag() uint8       { return TagMethodHandle }
func (MethodTypeEntry) Tag() uint8         { return TagMethodType }
func (DynamicEntry) Tag() uint8            { return TagDynamic }
func (InvokeDynamicEntry) Tag() uint8      { return TagInvokeDynamic }
func (ModuleEntry) Tag() uint8             { return TagModule }
func (PackageEntry) Tag() uint8            { return TagPackage }
func (slotPadding) Tag() uint8             { return 0 }

func (Utf8Entry) tagName() string               { return "Utf8" }
func (IntegerEntry) tagName() string            { return "Integer" }
func (FloatEntry) tagName() string              { return "Float" }
func (LongEntry) tagName() string               { return "Long" }
func (DoubleEntry) tagName() string             { return "Double" }
func (ClassEntry) tagName() string              { return "Class" }
func (StringEntry) tagName() string             { return "String" }
func (FieldrefEntry) tagName() string           { return "Fieldref" }
func (MethodrefEntry) tagName() string          { return "Methodref" }
func (InterfaceMethodrefEntry) tagName() string { return "InterfaceMethodref" }
func (NameAndTypeEntry) tagName() string        { return "NameAndType" }
func (MethodHandleEntry) tagName() string       { return "MethodHandle" }
func (MethodTypeEntry) tagName() string         { return "MethodType" }
func (DynamicEntry) tagName() string            { return "Dynamic" }
func (InvokeDynamicEntry) tagName() string      { return "InvokeDynamic" }
func (ModuleEntry) tagName() string             { return "Module" }
func (PackageEntry) tagName() string            { return "Package" }
func (slotPadding) tagName() string             { return "second slot of a Long/Double entry" }

// ConstPool is the decoded constant pool. Indices are 1-based; index 0 and
// the second slot of Long/Double entries are unaddressable. A ConstPool is
// immutable after parsing and safe for concurrent readers.
type ConstPool struct {
	entries []Entry // entries[0] is nil
}

// NewConstPool builds a pool from entries in order, starting at index 1.
// Long and Double entries consume the following index slot, as they do in
// class files.
func NewConstPool(entries ...Entry) *ConstPool {
	slots := []Entry{nil}
	for _, e := range entries {
		slots = append(slots, e)
		if e.Tag() == TagLong || e.Tag() == TagDouble {
			slots = append(slots, slotPadding{})
		}
	}
	return &ConstPool{entries: slots}
}

// parseConstPool decodes count-1 entries from r. Long and Double consume two
// index slots; the second is filled with a padding sentinel.
func parseConstPool(r *reader, count uint16) (*ConstPool, error) {
	entries := make([]Entry, count)
	for i := uint16(1); i < count; i++ {
		tag, err := r.u8("constant pool tag")
		if err != nil {
			return nil, err
		}
		entry, twoSlots, err := parseEntry(r, tag, i)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
		if twoSlots {
			i++
			if i >= count {
				return nil, &ConstantPoolError{Index: i - 1, Reason: "long/double entry overruns the pool"}
			}
			entries[i] = slotPadding{}
		}
	}
	return &ConstPool{entries: entries}, nil
}

func parseEntry(r *reader, tag uint8, index uint16) (Entry, bool, error) {
	fail := func(err error) (Entry, bool, error) { return nil, false, err }
	switch tag {
	case TagUtf8:
		length, err := r.u16("Utf8 length")
		if err != nil {
			return fail(err)
		}
		raw, err := r.bytes(int(length), "Utf8 bytes")
		if err != nil {
			return fail(err)
		}
		if !utf8.Valid(raw) {
			return fail(&ConstantPoolError{Index: index, Reason: "invalid UTF-8 payload"})
		}
		return Utf8Entry{Value: string(raw)}, false, nil
	case TagInteger:
		v, err := r.u32("Integer value")
		if err != nil {
			return fail(err)
		}
		return IntegerEntry{Value: int32(v)}, false, nil
	case TagFloat:
		v, err := r.u32("Float value")
		if err != nil {
			return fail(err)
		}
		return FloatEntry{Value: math.Float32frombits(v)}, false, nil
	case TagLong:
		v, err := r.u64("Long value")
		if err != nil {
			return fail(err)
		}
		return LongEntry{Value: int64(v)}, true, nil
	case TagDouble:
		v, err := r.u64("Double value")
		if err != nil {
			return fail(err)
		}
		return DoubleEntry{Value: math.Float64frombits(v)}, true, nil
	case TagClass:
		idx, err := r.u16("Class name index")
		if err != nil {
			return fail(err)
		}
		return ClassEntry{NameIndex: idx}, false, nil
	case TagString:
		idx, err := r.u16("String index")
		if err != nil {
			return fail(err)
		}
		return StringEntry{StringIndex: idx}, false, nil
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		classIdx, err := r.u16("ref class index")
		if err != nil {
			return fail(err)
		}
		natIdx, err := r.u16("ref name-and-type index")
		if err != nil {
			return fail(err)
		}
		switch tag {
		case TagFieldref:
			return FieldrefEntry{ClassIndex: classIdx, NameAndTypeIndex: natIdx}, false, nil
		case TagMethodref:
			return MethodrefEntry{ClassIndex: classIdx, NameAndTypeIndex: natIdx}, false, nil
		default:
			return InterfaceMethodrefEntry{ClassIndex: classIdx, NameAndTypeIndex: natIdx}, false, nil
		}
	case TagNameAndType:
		nameIdx, err := r.u16("NameAndType name index")
		if err != nil {
			return fail(err)
		}
		descIdx, err := r.u16("NameAndType descriptor index")
		if err != nil {
			return fail(err)
		}
		return NameAndTypeEntry{NameIndex: nameIdx, DescriptorIndex: descIdx}, false, nil
	case TagMethodHandle:
		kind, err := r.u8("MethodHandle kind")
		if err != nil {
			return fail(err)
		}
		refIdx, err := r.u16("MethodHandle reference index")
		if err != nil {
			return fail(err)
		}
		return MethodHandleEntry{ReferenceKind: kind, ReferenceIndex: refIdx}, false, nil
	case TagMethodType:
		idx, err := r.u16("MethodType descriptor index")
		if err != nil {
			return fail(err)
		}
		return MethodTypeEntry{DescriptorIndex: idx}, false, nil
	case TagDynamic, TagInvokeDynamic:
		bsm, err := r.u16("bootstrap method index")
		if err != nil {
			return fail(err)
		}
		nat, err := r.u16("dynamic name-and-type index")
		if err != nil {
			return fail(err)
		}
		if tag == TagDynamic {
			return DynamicEntry{BootstrapMethodIndex: bsm, NameAndTypeIndex: nat}, false, nil
		}
		return InvokeDynamicEntry{BootstrapMethodIndex: bsm, NameAndTypeIndex: nat}, false, nil
	case TagModule:
		idx, err := r.u16("Module name index")
		if err != nil {
			return fail(err)
		}
		return ModuleEntry{NameIndex: idx}, false, nil
	case TagPackage:
		idx, err := r.u16("Package name index")
		if err != nil {
			return fail(err)
		}
		return PackageEntry{NameIndex: idx}, false, nil
	default:
		return fail(&ConstantPoolError{Index: index, Reason: fmt.Sprintf("unknown tag %d", tag)})
	}
}

// Count returns the declared constant_pool_count: valid indices are [1, Count).
func (p *ConstPool) Count() int { return len(p.entries) }

// Entry returns the entry at idx, failing for index 0, out-of-range indices,
// and the reserved second slot of Long/Double entries.
func (p *ConstPool) Entry(idx uint16) (Entry, error) {
	if idx == 0 || int(idx) >= len(p.entries) {
		return nil, &ConstantPoolError{Index: idx, Reason: fmt.Sprintf("index out of range [1, %d)", len(p.entries))}
	}
	e := p.entries[idx]
	if _, ok := e.(slotPadding); ok {
		return nil, &ConstantPoolError{Index: idx, Reason: "second slot of a Long/Double entry"}
	}
	return e, nil
}

func mismatch(idx uint16, expected string, found Entry) error {
	return &ConstantPoolError{
		Index:  idx,
		Reason: fmt.Sprintf("expected a %s entry, found %s", expected, found.tagName()),
	}
}

// Utf8 returns the string at idx, which must be a Utf8 entry.
func (p *ConstPool) Utf8(idx uint16) (string, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return "", err
	}
	u, ok := e.(Utf8Entry)
	if !ok {
		return "", mismatch(idx, "Utf8", e)
	}
	return u.Value, nil
}

// ClassName resolves a Class entry at idx to its binary name.
func (p *ConstPool) ClassName(idx uint16) (string, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return "", err
	}
	c, ok := e.(ClassEntry)
	if !ok {
		return "", mismatch(idx, "Class", e)
	}
	return p.Utf8(c.NameIndex)
}

// NameAndType resolves a NameAndType entry at idx to its name and descriptor.
func (p *ConstPool) NameAndType(idx uint16) (name, descriptor string, err error) {
	e, err := p.Entry(idx)
	if err != nil {
		return "", "", err
	}
	nat, ok := e.(NameAndTypeEntry)
	if !ok {
		return "", "", mismatch(idx, "NameAndType", e)
	}
	if name, err = p.Utf8(nat.NameIndex); err != nil {
		return "", "", err
	}
	if descriptor, err = p.Utf8(nat.DescriptorIndex); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// FieldRef is a fully resolved field reference.
type FieldRef struct {
	Class      string
	Name       string
	Descriptor string
}

// MethodRef is a fully resolved method reference. Interface is true when the
// reference came from an InterfaceMethodref entry.
type MethodRef struct {
	Class      string
	Name       string
	Descriptor string
	Interface  bool
}

// FieldRef resolves a Fieldref entry at idx.
func (p *ConstPool) FieldRef(idx uint16) (FieldRef, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return FieldRef{}, err
	}
	f, ok := e.(FieldrefEntry)
	if !ok {
		return FieldRef{}, mismatch(idx, "Fieldref", e)
	}
	class, err := p.ClassName(f.ClassIndex)
	if err != nil {
		return FieldRef{}, err
	}
	name, desc, err := p.NameAndType(f.NameAndTypeIndex)
	if err != nil {
		return FieldRef{}, err
	}
	return FieldRef{Class: class, Name: name, Descriptor: desc}, nil
}

// MethodRef resolves a Methodref or InterfaceMethodref entry at idx.
func (p *ConstPool) MethodRef(idx uint16) (MethodRef, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return MethodRef{}, err
	}
	var classIdx, natIdx uint16
	var iface bool
	switch m := e.(type) {
	case MethodrefEntry:
		classIdx, natIdx = m.ClassIndex, m.NameAndTypeIndex
	case InterfaceMethodrefEntry:
		classIdx, natIdx, iface = m.ClassIndex, m.NameAndTypeIndex, true
	default:
		return MethodRef{}, mismatch(idx, "Methodref or InterfaceMethodref", e)
	}
	class, err := p.ClassName(classIdx)
	if err != nil {
		return MethodRef{}, err
	}
	name, desc, err := p.NameAndType(natIdx)
	if err != nil {
		return MethodRef{}, err
	}
	return MethodRef{Class: class, Name: name, Descriptor: desc, Interface: iface}, nil
}

// ConstKind classifies a loadable constant as seen by ldc/ldc_w/ldc2_w.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstLong
	ConstDouble
	ConstString
	ConstClass
	ConstMethodType
	ConstMethodHandle
	ConstDynamic
	// ConstNull is the null reference pushed by aconst_null. It has no
	// constant-pool form.
	ConstNull
)

// Category returns 2 for Long/Double constants and 1 otherwise, matching the
// stack-slot count the constant occupies.
func (k ConstKind) Category() int {
	if k == ConstLong || k == ConstDouble {
		return 2
	}
	return 1
}

// Constant is a resolved loadable constant.
type Constant struct {
	Kind   ConstKind
	Int    int32
	Float  float32
	Long   int64
	Double float64
	Str    string // ConstString: the literal; ConstClass: binary name; ConstMethodType/ConstDynamic: descriptor
}

// Category returns the stack-slot count of the constant. A dynamically
// computed constant takes its category from its field descriptor.
func (c Constant) Category() int {
	if c.Kind == ConstDynamic {
		if c.Str == "J" || c.Str == "D" {
			return 2
		}
		return 1
	}
	return c.Kind.Category()
}

func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstFloat:
		return fmt.Sprintf("%gf", c.Float)
	case ConstLong:
		return fmt.Sprintf("%dL", c.Long)
	case ConstDouble:
		return fmt.Sprintf("%g", c.Double)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstClass:
		return c.Str + ".class"
	case ConstMethodType:
		return c.Str
	case ConstMethodHandle:
		return "<methodhandle>"
	case ConstDynamic:
		return "<dynamic " + c.Str + ">"
	case ConstNull:
		return "null"
	default:
		return "<?>"
	}
}

// Value resolves a loadable constant at idx for the ldc family of opcodes.
func (p *ConstPool) Value(idx uint16) (Constant, error) {
	e, err := p.Entry(idx)
	if err != nil {
		return Constant{}, err
	}
	switch v := e.(type) {
	case IntegerEntry:
		return Constant{Kind: ConstInt, Int: v.Value}, nil
	case FloatEntry:
		return Constant{Kind: ConstFloat, Float: v.Value}, nil
	case LongEntry:
		return Constant{Kind: ConstLong, Long: v.Value}, nil
	case DoubleEntry:
		return Constant{Kind: ConstDouble, Double: v.Value}, nil
	case StringEntry:
		s, err := p.Utf8(v.StringIndex)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstString, Str: s}, nil
	case ClassEntry:
		name, err := p.Utf8(v.NameIndex)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstClass, Str: name}, nil
	case MethodTypeEntry:
		d, err := p.Utf8(v.DescriptorIndex)
		if err != nil {
			return Constant{}, err
		}
		return Constant{Kind: ConstMethodType, Str: d}, nil
	case MethodHandleEntry:
		return Constant{Kind: ConstMethodHandle}, nil
	case DynamicEntry:
		_, desc, err := p.NameAndType(v.NameAndTypeIndex)
		if err != nil {
			return Constant{}, err
		}
		if _, err := ParseFieldType(desc); err != nil {
			return Constant{}, &ConstantPoolError{Index: idx, Reason: fmt.Sprintf("dynamic constant has a non-field descriptor %q", desc)}
		}
		return Constant{Kind: ConstDynamic, Str: desc}, nil
	default:
		return Constant{}, mismatch(idx, "loadable constant", e)
	}
}
