package classfile

import (
	"errors"
	"strings"
	"testing"
)

func poolBytes(b ...byte) *reader { return &reader{buf: b} }

func TestConstPoolLongTakesTwoSlots(t *testing.T) {
	// count=4: #1 Long 0x1122334455667788 (occupies #1 and #2), #3 Utf8 "x"
	r := poolBytes(
		TagLong, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
		TagUtf8, 0x00, 0x01, 'x',
	)
	p, err := parseConstPool(r, 4)
	if err != nil {
		t.Fatalf("parseConstPool: %v", err)
	}

	c, err := p.Value(1)
	if err != nil {
		t.Fatalf("Value(1): %v", err)
	}
	if c.Kind != ConstLong || c.Long != 0x1122334455667788 {
		t.Errorf("Value(1) = %+v", c)
	}

	// Index 2 is the unaddressable second slot.
	if _, err := p.Entry(2); err == nil {
		t.Fatal("Entry(2) on a long's second slot should fail")
	} else {
		var cpErr *ConstantPoolError
		if !errors.As(err, &cpErr) || cpErr.Index != 2 {
			t.Errorf("Entry(2) error = %v", err)
		}
	}

	if s, err := p.Utf8(3); err != nil || s != "x" {
		t.Errorf("Utf8(3) = %q, %v", s, err)
	}
}

func TestConstPoolIndexZero(t *testing.T) {
	p := NewConstPool(Utf8Entry{Value: "a"})
	if _, err := p.Entry(0); err == nil {
		t.Error("Entry(0) should fail")
	}
	if _, err := p.Entry(5); err == nil {
		t.Error("Entry past the end should fail")
	}
}

func TestConstPoolUnknownTag(t *testing.T) {
	r := poolBytes(42, 0x00, 0x00)
	if _, err := parseConstPool(r, 2); err == nil {
		t.Fatal("unknown tag should fail")
	}
}

func TestConstPoolInvalidUtf8(t *testing.T) {
	r := poolBytes(TagUtf8, 0x00, 0x02, 0xff, 0xfe)
	_, err := parseConstPool(r, 2)
	if err == nil || !strings.Contains(err.Error(), "UTF-8") {
		t.Fatalf("invalid utf8 error = %v", err)
	}
}

func TestConstPoolTruncatedEntry(t *testing.T) {
	r := poolBytes(TagInteger, 0x00, 0x01)
	var mErr *MalformedError
	if _, err := parseConstPool(r, 2); !errors.As(err, &mErr) {
		t.Fatalf("truncated entry error = %v", err)
	}
}

func TestFieldAndMethodRefResolution(t *testing.T) {
	p := NewConstPool(
		Utf8Entry{Value: "com/example/Box"}, // 1
		ClassEntry{NameIndex: 1},            // 2
		Utf8Entry{Value: "size"},            // 3
		Utf8Entry{Value: "I"},               // 4
		NameAndTypeEntry{NameIndex: 3, DescriptorIndex: 4}, // 5
		FieldrefEntry{ClassIndex: 2, NameAndTypeIndex: 5},  // 6
		Utf8Entry{Value: "grow"},                           // 7
		Utf8Entry{Value: "(I)V"},                           // 8
		NameAndTypeEntry{NameIndex: 7, DescriptorIndex: 8},            // 9
		MethodrefEntry{ClassIndex: 2, NameAndTypeIndex: 9},            // 10
		InterfaceMethodrefEntry{ClassIndex: 2, NameAndTypeIndex: 9},   // 11
	)

	fr, err := p.FieldRef(6)
	if err != nil {
		t.Fatalf("FieldRef: %v", err)
	}
	if fr.Class != "com/example/Box" || fr.Name != "size" || fr.Descriptor != "I" {
		t.Errorf("FieldRef = %+v", fr)
	}

	mr, err := p.MethodRef(10)
	if err != nil {
		t.Fatalf("MethodRef: %v", err)
	}
	if mr.Class != "com/example/Box" || mr.Name != "grow" || mr.Descriptor != "(I)V" || mr.Interface {
		t.Errorf("MethodRef = %+v", mr)
	}

	imr, err := p.MethodRef(11)
	if err != nil {
		t.Fatalf("MethodRef(interface): %v", err)
	}
	if !imr.Interface {
		t.Error("interface methodref should set Interface")
	}

	// A Methodref index handed to FieldRef is a kind mismatch.
	if _, err := p.FieldRef(10); err == nil {
		t.Error("FieldRef on a Methodref entry should fail")
	}
}
