package classfile

// Class access and property flags.
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020 // class
	AccSynchroniz = 0x0020 // method
	AccVolatile   = 0x0040
	AccBridge     = 0x0040
	AccTransient  = 0x0080
	AccVarargs    = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccStrict     = 0x0800
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
	AccModule     = 0x8000
)

// Class is a parsed class file. It is immutable once built; all reference
// indices have been resolved through the constant pool.
type Class struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstPool
	AccessFlags  uint16
	ThisClass    string
	SuperClass   string // "" for java/lang/Object and modules
	Interfaces   []string
	Fields       []Field
	Methods      []Method

	SourceFile       string
	BootstrapMethods []BootstrapMethod
	Synthetic        bool
	Deprecated       bool
	Signature        string
	Attributes       []RawAttribute // attributes this package does not interpret
}

// Field is a parsed field_info entry.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Type        Type
	Synthetic   bool
	Deprecated  bool
	Signature   string
	Attributes  []RawAttribute
}

// Method is a parsed method_info entry. Code is nil for native and abstract
// methods.
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  MethodDescriptor
	Code        *Code
	Exceptions  []string // declared throws clause, binary names
	Synthetic   bool
	Deprecated  bool
	Signature   string
	Attributes  []RawAttribute
}

// IsStatic reports whether the method has no receiver slot.
func (m *Method) IsStatic() bool { return m.AccessFlags&AccStatic != 0 }

// Code is a parsed Code attribute.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []ExceptionHandler
	LineNumbers    []LineNumber
	LocalVars      []LocalVar
	StackMapRaw    []byte // raw StackMapTable payload, kept for external verifiers
	Attributes     []RawAttribute
}

// ExceptionHandler is an exception table entry. The protected range is
// [Start, End) in code offsets; CatchType is "" for finally-style handlers.
type ExceptionHandler struct {
	Start     int
	End       int
	Handler   int
	CatchType string
}

// LineNumber maps a code offset to a source line.
type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// LocalVar is a LocalVariableTable entry.
type LocalVar struct {
	StartPC    uint16
	Length     uint16
	Slot       uint16
	Name       string
	Descriptor string
}

// BootstrapMethod is a BootstrapMethods attribute entry. Indices are left
// unresolved: they point at MethodHandle and loadable-constant pool entries.
type BootstrapMethod struct {
	MethodHandleIndex uint16
	ArgumentIndices   []uint16
}

// RawAttribute preserves an attribute this package does not interpret, so
// newer class-file attributes survive parsing untouched.
type RawAttribute struct {
	Name string
	Data []byte
}

// FindMethod returns the method with the given name and raw descriptor, or nil.
func (c *Class) FindMethod(name, descriptor string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor.Raw == descriptor {
			return &c.Methods[i]
		}
	}
	return nil
}

// FindMethodByName returns the first method with the given name, or nil.
func (c *Class) FindMethodByName(name string) *Method {
	for i := range c.Methods {
		if c.Methods[i].Name == name {
			return &c.Methods[i]
		}
	}
	return nil
}
