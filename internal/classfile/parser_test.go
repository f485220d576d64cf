package classfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// classBuilder assembles synthetic class files for tests.
type classBuilder struct{ buf []byte }

func (b *classBuilder) u8(v uint8)   { b.buf = append(b.buf, v) }
func (b *classBuilder) u16(v uint16) { b.buf = binary.BigEndian.AppendUint16(b.buf, v) }
func (b *classBuilder) u32(v uint32) { b.buf = binary.BigEndian.AppendUint32(b.buf, v) }
func (b *classBuilder) raw(p []byte) { b.buf = append(b.buf, p...) }
func (b *classBuilder) utf8(s string) {
	b.u8(TagUtf8)
	b.u16(uint16(len(s)))
	b.raw([]byte(s))
}

// testClass builds a minimal public class Foo extending Object with a single
// static method add(II)I whose body is iload_0 iload_1 iadd ireturn.
//
// Pool: #1 Utf8 Foo, #2 Class #1, #3 Utf8 java/lang/Object, #4 Class #3,
// #5 Utf8 add, #6 Utf8 (II)I, #7 Utf8 Code.
func testClass() []byte {
	var b classBuilder
	b.u32(0xCAFEBABE)
	b.u16(0)  // minor
	b.u16(52) // major, Java 8
	b.u16(8)  // pool count
	b.utf8("Foo")
	b.u8(TagClass)
	b.u16(1)
	b.utf8("java/lang/Object")
	b.u8(TagClass)
	b.u16(3)
	b.utf8("add")
	b.utf8("(II)I")
	b.utf8("Code")
	b.u16(AccPublic)
	b.u16(2) // this_class
	b.u16(4) // super_class
	b.u16(0) // interfaces
	b.u16(0) // fields
	b.u16(1) // methods
	b.u16(AccPublic | AccStatic)
	b.u16(5) // name
	b.u16(6) // descriptor
	b.u16(1) // method attributes
	b.u16(7) // "Code"
	b.u32(16)
	b.u16(2) // max_stack
	b.u16(2) // max_locals
	b.u32(4)
	b.raw([]byte{0x1a, 0x1b, 0x60, 0xac}) // iload_0 iload_1 iadd ireturn
	b.u16(0)                              // exception table
	b.u16(0)                              // code attributes
	b.u16(0)                              // class attributes
	return b.buf
}

func TestParseMinimalClass(t *testing.T) {
	c, err := ParseBytes(testClass())
	require.NoError(t, err)

	require.Equal(t, "Foo", c.ThisClass)
	require.Equal(t, "java/lang/Object", c.SuperClass)
	require.Equal(t, uint16(52), c.MajorVersion)
	require.Len(t, c.Methods, 1)

	m := c.FindMethod("add", "(II)I")
	require.NotNil(t, m)
	require.True(t, m.IsStatic())
	require.NotNil(t, m.Code)
	require.Equal(t, uint16(2), m.Code.MaxStack)
	require.Equal(t, []byte{0x1a, 0x1b, 0x60, 0xac}, m.Code.Bytecode)
	require.Len(t, m.Descriptor.Params, 2)
}

func TestParseBadMagic(t *testing.T) {
	buf := testClass()
	buf[0] = 0xDE
	_, err := ParseBytes(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "magic")
}

func TestParseTruncated(t *testing.T) {
	buf := testClass()
	for _, cut := range []int{0, 3, 7, 9, 20, len(buf) / 2, len(buf) - 1} {
		_, err := ParseBytes(buf[:cut])
		require.Errorf(t, err, "cut at %d bytes", cut)
	}
}

func TestParseTrailingGarbage(t *testing.T) {
	buf := append(testClass(), 0x00, 0x01)
	_, err := ParseBytes(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected bytes")
}

func TestParseSuperZeroRejected(t *testing.T) {
	buf := testClass()
	// super_class sits right after access flags and this_class, both u16,
	// which follow the constant pool. Locate it by rebuilding: easier to
	// patch the two bytes holding the value 4 that precede the zero
	// interface count, method count 1 sequence.
	c, err := ParseBytes(buf)
	require.NoError(t, err)
	require.Equal(t, "java/lang/Object", c.SuperClass)

	var b classBuilder
	b.raw(testClass())
	// Find "this=2 super=4 ifaces=0" as a byte run and zero the super slot.
	patched := false
	for i := 0; i+6 <= len(b.buf); i++ {
		if b.buf[i] == 0 && b.buf[i+1] == 2 && b.buf[i+2] == 0 && b.buf[i+3] == 4 &&
			b.buf[i+4] == 0 && b.buf[i+5] == 0 {
			b.buf[i+3] = 0
			patched = true
			break
		}
	}
	require.True(t, patched)
	_, err = ParseBytes(b.buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "super_class")
}

// classWithStackMap is testClass with a StackMapTable attribute of the given
// payload on the Code attribute. Pool gains #8 Utf8 StackMapTable.
func classWithStackMap(payload []byte) []byte {
	var b classBuilder
	b.u32(0xCAFEBABE)
	b.u16(0)
	b.u16(52)
	b.u16(9) // pool count
	b.utf8("Foo")
	b.u8(TagClass)
	b.u16(1)
	b.utf8("java/lang/Object")
	b.u8(TagClass)
	b.u16(3)
	b.utf8("add")
	b.utf8("(II)I")
	b.utf8("Code")
	b.utf8("StackMapTable")
	b.u16(AccPublic)
	b.u16(2)
	b.u16(4)
	b.u16(0)
	b.u16(0)
	b.u16(1)
	b.u16(AccPublic | AccStatic)
	b.u16(5)
	b.u16(6)
	b.u16(1)
	b.u16(7) // "Code"
	b.u32(uint32(22 + len(payload)))
	b.u16(2)
	b.u16(2)
	b.u32(4)
	b.raw([]byte{0x1a, 0x1b, 0x60, 0xac})
	b.u16(0) // exception table
	b.u16(1) // code attributes
	b.u16(8) // "StackMapTable"
	b.u32(uint32(len(payload)))
	b.raw(payload)
	b.u16(0) // class attributes
	return b.buf
}

func TestParseStackMapTable(t *testing.T) {
	// One same_frame entry: count 1, a single frame byte.
	c, err := ParseBytes(classWithStackMap([]byte{0x00, 0x01, 0x00}))
	require.NoError(t, err)
	m := c.FindMethod("add", "(II)I")
	require.NotNil(t, m)
	require.Equal(t, []byte{0x00, 0x01, 0x00}, m.Code.StackMapRaw)

	// A count the payload cannot hold is rejected.
	_, err = ParseBytes(classWithStackMap([]byte{0x00, 0x05, 0x00}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "StackMapTable")

	// So is a payload too short for the count itself.
	_, err = ParseBytes(classWithStackMap([]byte{0x00}))
	require.Error(t, err)
}

func TestParseNativeMethodWithCodeRejected(t *testing.T) {
	buf := testClass()
	// Flip the method's access flags to include ACC_NATIVE. The method flag
	// word 0x0009 follows the method count 0x0001.
	patched := false
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 1 && buf[i+2] == 0 && buf[i+3] == 0x09 {
			buf[i+3] = 0x09 | 0x01
			buf[i+2] = byte(AccNative >> 8)
			patched = true
			break
		}
	}
	require.True(t, patched)
	_, err := ParseBytes(buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Code")
}
