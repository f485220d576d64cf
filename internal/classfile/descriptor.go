package classfile

import "strings"

// TypeKind discriminates the closed set of JVM field types.
type TypeKind uint8

const (
	KindBoolean TypeKind = iota
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
	KindArray
)

// Type is a parsed field type: a primitive, an object type with its binary
// name, or an array of an element type.
type Type struct {
	Kind TypeKind
	Name string // object binary name, KindObject only
	Elem *Type  // element type, KindArray only
}

// Category returns 2 for long/double and 1 for everything else, per the JVM's
// computational type categories.
func (t Type) Category() int {
	if t.Kind == KindLong || t.Kind == KindDouble {
		return 2
	}
	return 1
}

// String renders the type back in descriptor syntax.
func (t Type) String() string {
	switch t.Kind {
	case KindBoolean:
		return "Z"
	case KindByte:
		return "B"
	case KindChar:
		return "C"
	case KindShort:
		return "S"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindObject:
		return "L" + t.Name + ";"
	case KindArray:
		return "[" + t.Elem.String()
	default:
		return "?"
	}
}

// MethodDescriptor is a parsed method signature. Return is nil for void.
type MethodDescriptor struct {
	Raw    string
	Params []Type
	Return *Type
}

// SlotCount returns the number of local-variable slots the parameters occupy,
// counting long/double as two.
func (d MethodDescriptor) SlotCount() int {
	n := 0
	for _, p := range d.Params {
		n += p.Category()
	}
	return n
}

type descScanner struct {
	src string
	pos int
}

func (s *descScanner) fail(reason string) error {
	return &InvalidDescriptorError{Descriptor: s.src, Pos: s.pos, Reason: reason}
}

func (s *descScanner) peek() (byte, bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

// fieldType parses one field type at the cursor.
func (s *descScanner) fieldType() (Type, error) {
	c, ok := s.peek()
	if !ok {
		return Type{}, s.fail("unexpected end of descriptor")
	}
	s.pos++
	switch c {
	case 'Z':
		return Type{Kind: KindBoolean}, nil
	case 'B':
		return Type{Kind: KindByte}, nil
	case 'C':
		return Type{Kind: KindChar}, nil
	case 'S':
		return Type{Kind: KindShort}, nil
	case 'I':
		return Type{Kind: KindInt}, nil
	case 'J':
		return Type{Kind: KindLong}, nil
	case 'F':
		return Type{Kind: KindFloat}, nil
	case 'D':
		return Type{Kind: KindDouble}, nil
	case 'L':
		end := strings.IndexByte(s.src[s.pos:], ';')
		if end < 0 {
			return Type{}, s.fail("object type missing terminating ';'")
		}
		if end == 0 {
			return Type{}, s.fail("object type with empty name")
		}
		name := s.src[s.pos : s.pos+end]
		s.pos += end + 1
		return Type{Kind: KindObject, Name: name}, nil
	case '[':
		elem, err := s.fieldType()
		if err != nil {
			return Type{}, err
		}
		e := elem
		return Type{Kind: KindArray, Elem: &e}, nil
	default:
		s.pos--
		return Type{}, s.fail("unexpected character " + string(c))
	}
}

// ParseFieldType parses a complete field descriptor such as "I" or
// "[Ljava/lang/String;". Trailing characters are an error.
func ParseFieldType(desc string) (Type, error) {
	s := &descScanner{src: desc}
	t, err := s.fieldType()
	if err != nil {
		return Type{}, err
	}
	if s.pos != len(desc) {
		return Type{}, s.fail("trailing characters after field type")
	}
	return t, nil
}

// ParseMethodDescriptor parses a method descriptor such as "(IJ)V".
func ParseMethodDescriptor(desc string) (MethodDescriptor, error) {
	s := &descScanner{src: desc}
	c, ok := s.peek()
	if !ok || c != '(' {
		return MethodDescriptor{}, s.fail("method descriptor must start with '('")
	}
	s.pos++
	var params []Type
	for {
		c, ok := s.peek()
		if !ok {
			return MethodDescriptor{}, s.fail("unterminated parameter list")
		}
		if c == ')' {
			s.pos++
			break
		}
		p, err := s.fieldType()
		if err != nil {
			return MethodDescriptor{}, err
		}
		params = append(params, p)
	}
	d := MethodDescriptor{Raw: desc, Params: params}
	c, ok = s.peek()
	if !ok {
		return MethodDescriptor{}, s.fail("missing return type")
	}
	if c == 'V' {
		s.pos++
	} else {
		ret, err := s.fieldType()
		if err != nil {
			return MethodDescriptor{}, err
		}
		d.Return = &ret
	}
	if s.pos != len(desc) {
		return MethodDescriptor{}, s.fail("trailing characters after return type")
	}
	return d, nil
}
