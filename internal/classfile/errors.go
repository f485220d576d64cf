package classfile

import "fmt"

// MalformedError reports a structural problem in the class file: bad magic,
// a table length that disagrees with the remaining bytes, or data left over
// after the last attribute.
type MalformedError struct {
	Offset int64 // byte offset into the class file, -1 if unknown
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("malformed class file: %s", e.Reason)
	}
	return fmt.Sprintf("malformed class file at offset %d: %s", e.Offset, e.Reason)
}

// ConstantPoolError reports a bad constant pool access: an index outside
// [1, count), an unrecognized tag, invalid UTF-8, or an entry whose tag does
// not match what the accessor expects.
type ConstantPoolError struct {
	Index  uint16
	Reason string
}

func (e *ConstantPoolError) Error() string {
	return fmt.Sprintf("constant pool entry #%d: %s", e.Index, e.Reason)
}

// InvalidDescriptorError reports a field or method descriptor string that the
// descriptor grammar rejects.
type InvalidDescriptorError struct {
	Descriptor string
	Pos        int
	Reason     string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor %q at position %d: %s", e.Descriptor, e.Pos, e.Reason)
}
