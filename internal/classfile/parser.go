// Package classfile parses JVM class files into an immutable in-memory model:
// constant pool, descriptors, fields, methods, and attributes. It performs no
// cross-class resolution; symbolic references stay symbolic.
package classfile

import (
	"fmt"
	"io"
)

const classMagic = 0xCAFEBABE

// Parse reads a complete class file from r and builds the model.
func Parse(r io.Reader) (*Class, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading class file: %w", err)
	}
	return ParseBytes(buf)
}

// ParseBytes parses a class file from an in-memory buffer. The buffer is not
// retained by the returned Class except for raw attribute payloads, which are
// copied.
func ParseBytes(buf []byte) (*Class, error) {
	r := &reader{buf: buf}

	magic, err := r.u32("magic number")
	if err != nil {
		return nil, err
	}
	if magic != classMagic {
		return nil, &MalformedError{Offset: 0, Reason: fmt.Sprintf("bad magic 0x%08X, want 0xCAFEBABE", magic)}
	}

	c := &Class{}
	if c.MinorVersion, err = r.u16("minor version"); err != nil {
		return nil, err
	}
	if c.MajorVersion, err = r.u16("major version"); err != nil {
		return nil, err
	}

	poolCount, err := r.u16("constant pool count")
	if err != nil {
		return nil, err
	}
	if c.Pool, err = parseConstPool(r, poolCount); err != nil {
		return nil, err
	}

	if c.AccessFlags, err = r.u16("access flags"); err != nil {
		return nil, err
	}
	thisIdx, err := r.u16("this_class")
	if err != nil {
		return nil, err
	}
	if c.ThisClass, err = c.Pool.ClassName(thisIdx); err != nil {
		return nil, err
	}
	superIdx, err := r.u16("super_class")
	if err != nil {
		return nil, err
	}
	switch {
	case superIdx != 0:
		if c.SuperClass, err = c.Pool.ClassName(superIdx); err != nil {
			return nil, err
		}
	case c.ThisClass == "java/lang/Object" || c.AccessFlags&AccModule != 0:
		// The only classes allowed to have no super class.
	default:
		return nil, &MalformedError{Offset: int64(r.off), Reason: "super_class is 0 but class is not java/lang/Object or a module"}
	}

	ifaceCount, err := r.u16("interfaces count")
	if err != nil {
		return nil, err
	}
	c.Interfaces = make([]string, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u16("interface index")
		if err != nil {
			return nil, err
		}
		name, err := c.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, name)
	}

	fieldCount, err := r.u16("fields count")
	if err != nil {
		return nil, err
	}
	c.Fields = make([]Field, 0, fieldCount)
	for i := 0; i < int(fieldCount); i++ {
		f, err := parseField(r, c.Pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		c.Fields = append(c.Fields, f)
	}

	methodCount, err := r.u16("methods count")
	if err != nil {
		return nil, err
	}
	c.Methods = make([]Method, 0, methodCount)
	for i := 0; i < int(methodCount); i++ {
		m, err := parseMethod(r, c.Pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		c.Methods = append(c.Methods, m)
	}

	if err := parseClassAttributes(r, c); err != nil {
		return nil, err
	}

	if r.remaining() != 0 {
		return nil, &MalformedError{Offset: int64(r.off), Reason: fmt.Sprintf("%d unexpected bytes after class attributes", r.remaining())}
	}
	return c, nil
}

func parseField(r *reader, pool *ConstPool) (Field, error) {
	var f Field
	var err error
	if f.AccessFlags, err = r.u16("field access flags"); err != nil {
		return f, err
	}
	nameIdx, err := r.u16("field name index")
	if err != nil {
		return f, err
	}
	if f.Name, err = pool.Utf8(nameIdx); err != nil {
		return f, err
	}
	descIdx, err := r.u16("field descriptor index")
	if err != nil {
		return f, err
	}
	if f.Descriptor, err = pool.Utf8(descIdx); err != nil {
		return f, err
	}
	if f.Type, err = ParseFieldType(f.Descriptor); err != nil {
		return f, err
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return f, err
	}
	for _, a := range attrs {
		switch a.Name {
		case "Synthetic":
			f.Synthetic = true
		case "Deprecated":
			f.Deprecated = true
		case "Signature":
			if f.Signature, err = signatureAttr(a, pool); err != nil {
				return f, err
			}
		default:
			f.Attributes = append(f.Attributes, a)
		}
	}
	return f, nil
}

func parseMethod(r *reader, pool *ConstPool) (Method, error) {
	var m Method
	var err error
	if m.AccessFlags, err = r.u16("method access flags"); err != nil {
		return m, err
	}
	nameIdx, err := r.u16("method name index")
	if err != nil {
		return m, err
	}
	if m.Name, err = pool.Utf8(nameIdx); err != nil {
		return m, err
	}
	descIdx, err := r.u16("method descriptor index")
	if err != nil {
		return m, err
	}
	rawDesc, err := pool.Utf8(descIdx)
	if err != nil {
		return m, err
	}
	if m.Descriptor, err = ParseMethodDescriptor(rawDesc); err != nil {
		return m, err
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return m, err
	}
	for _, a := range attrs {
		switch a.Name {
		case "Code":
			if m.Code != nil {
				return m, &MalformedError{Offset: -1, Reason: "method " + m.Name + " has more than one Code attribute"}
			}
			if m.Code, err = parseCodeAttr(a.Data, pool); err != nil {
				return m, fmt.Errorf("Code attribute of %s: %w", m.Name, err)
			}
		case "Exceptions":
			if m.Exceptions, err = exceptionsAttr(a, pool); err != nil {
				return m, err
			}
		case "Synthetic":
			m.Synthetic = true
		case "Deprecated":
			m.Deprecated = true
		case "Signature":
			if m.Signature, err = signatureAttr(a, pool); err != nil {
				return m, err
			}
		default:
			m.Attributes = append(m.Attributes, a)
		}
	}

	// JVM spec 4.7.3: native and abstract methods must not carry code;
	// everything else must. <clinit> is exempt from the flag check.
	noBody := m.AccessFlags&(AccNative|AccAbstract) != 0 && m.Name != "<clinit>"
	if noBody && m.Code != nil {
		return m, &MalformedError{Offset: -1, Reason: "native/abstract method " + m.Name + " has a Code attribute"}
	}
	if !noBody && m.Code == nil {
		return m, &MalformedError{Offset: -1, Reason: "method " + m.Name + " has no Code attribute"}
	}
	return m, nil
}

func parseClassAttributes(r *reader, c *Class) error {
	attrs, err := parseAttributes(r, c.Pool)
	if err != nil {
		return err
	}
	for _, a := range attrs {
		switch a.Name {
		case "SourceFile":
			ar := &reader{buf: a.Data}
			idx, err := ar.u16("SourceFile index")
			if err != nil {
				return err
			}
			if c.SourceFile, err = c.Pool.Utf8(idx); err != nil {
				return err
			}
		case "BootstrapMethods":
			if c.BootstrapMethods, err = parseBootstrapMethods(a.Data); err != nil {
				return err
			}
		case "Synthetic":
			c.Synthetic = true
		case "Deprecated":
			c.Deprecated = true
		case "Signature":
			if c.Signature, err = signatureAttr(a, c.Pool); err != nil {
				return err
			}
		default:
			c.Attributes = append(c.Attributes, a)
		}
	}
	return nil
}

// parseAttributes reads an attribute table. Payloads are copied so the model
// does not alias the caller's buffer.
func parseAttributes(r *reader, pool *ConstPool) ([]RawAttribute, error) {
	count, err := r.u16("attributes count")
	if err != nil {
		return nil, err
	}
	attrs := make([]RawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u16("attribute name index")
		if err != nil {
			return nil, err
		}
		name, err := pool.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		length, err := r.u32("attribute length")
		if err != nil {
			return nil, err
		}
		raw, err := r.bytes(int(length), "attribute "+name)
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(raw))
		copy(data, raw)
		attrs = append(attrs, RawAttribute{Name: name, Data: data})
	}
	return attrs, nil
}

func signatureAttr(a RawAttribute, pool *ConstPool) (string, error) {
	ar := &reader{buf: a.Data}
	idx, err := ar.u16("Signature index")
	if err != nil {
		return "", err
	}
	return pool.Utf8(idx)
}

func exceptionsAttr(a RawAttribute, pool *ConstPool) ([]string, error) {
	ar := &reader{buf: a.Data}
	n, err := ar.u16("exceptions count")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		idx, err := ar.u16("exception class index")
		if err != nil {
			return nil, err
		}
		name, err := pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func parseCodeAttr(data []byte, pool *ConstPool) (*Code, error) {
	r := &reader{buf: data}
	code := &Code{}
	var err error
	if code.MaxStack, err = r.u16("max_stack"); err != nil {
		return nil, err
	}
	if code.MaxLocals, err = r.u16("max_locals"); err != nil {
		return nil, err
	}
	codeLen, err := r.u32("code_length")
	if err != nil {
		return nil, err
	}
	raw, err := r.bytes(int(codeLen), "bytecode")
	if err != nil {
		return nil, err
	}
	code.Bytecode = make([]byte, len(raw))
	copy(code.Bytecode, raw)

	handlerCount, err := r.u16("exception_table_length")
	if err != nil {
		return nil, err
	}
	code.ExceptionTable = make([]ExceptionHandler, 0, handlerCount)
	for i := 0; i < int(handlerCount); i++ {
		start, err := r.u16("handler start_pc")
		if err != nil {
			return nil, err
		}
		end, err := r.u16("handler end_pc")
		if err != nil {
			return nil, err
		}
		handler, err := r.u16("handler handler_pc")
		if err != nil {
			return nil, err
		}
		catchIdx, err := r.u16("handler catch_type")
		if err != nil {
			return nil, err
		}
		h := ExceptionHandler{Start: int(start), End: int(end), Handler: int(handler)}
		if catchIdx != 0 {
			if h.CatchType, err = pool.ClassName(catchIdx); err != nil {
				return nil, err
			}
		}
		code.ExceptionTable = append(code.ExceptionTable, h)
	}

	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Name {
		case "LineNumberTable":
			lns, err := lineNumberAttr(a)
			if err != nil {
				return nil, err
			}
			code.LineNumbers = append(code.LineNumbers, lns...)
		case "LocalVariableTable":
			lvs, err := localVarAttr(a, pool)
			if err != nil {
				return nil, err
			}
			code.LocalVars = append(code.LocalVars, lvs...)
		case "StackMapTable":
			if code.StackMapRaw, err = stackMapAttr(a); err != nil {
				return nil, err
			}
		default:
			code.Attributes = append(code.Attributes, a)
		}
	}
	if r.remaining() != 0 {
		return nil, &MalformedError{Offset: int64(r.off), Reason: "trailing bytes in Code attribute"}
	}
	return code, nil
}

// stackMapAttr checks that a StackMapTable payload can hold its declared
// frame count before keeping it as raw bytes. Each frame is at least one
// byte long.
func stackMapAttr(a RawAttribute) ([]byte, error) {
	r := &reader{buf: a.Data}
	n, err := r.u16("stack map frame count")
	if err != nil {
		return nil, err
	}
	if r.remaining() < int(n) {
		return nil, &MalformedError{
			Offset: -1,
			Reason: fmt.Sprintf("StackMapTable declares %d frames in %d bytes", n, r.remaining()),
		}
	}
	return a.Data, nil
}

func lineNumberAttr(a RawAttribute) ([]LineNumber, error) {
	r := &reader{buf: a.Data}
	n, err := r.u16("line number table length")
	if err != nil {
		return nil, err
	}
	out := make([]LineNumber, 0, n)
	for i := 0; i < int(n); i++ {
		pc, err := r.u16("line number start_pc")
		if err != nil {
			return nil, err
		}
		line, err := r.u16("line number")
		if err != nil {
			return nil, err
		}
		out = append(out, LineNumber{StartPC: pc, Line: line})
	}
	return out, nil
}

func localVarAttr(a RawAttribute, pool *ConstPool) ([]LocalVar, error) {
	r := &reader{buf: a.Data}
	n, err := r.u16("local variable table length")
	if err != nil {
		return nil, err
	}
	out := make([]LocalVar, 0, n)
	for i := 0; i < int(n); i++ {
		var lv LocalVar
		if lv.StartPC, err = r.u16("local variable start_pc"); err != nil {
			return nil, err
		}
		if lv.Length, err = r.u16("local variable length"); err != nil {
			return nil, err
		}
		nameIdx, err := r.u16("local variable name index")
		if err != nil {
			return nil, err
		}
		if lv.Name, err = pool.Utf8(nameIdx); err != nil {
			return nil, err
		}
		descIdx, err := r.u16("local variable descriptor index")
		if err != nil {
			return nil, err
		}
		if lv.Descriptor, err = pool.Utf8(descIdx); err != nil {
			return nil, err
		}
		if lv.Slot, err = r.u16("local variable slot"); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, nil
}

func parseBootstrapMethods(data []byte) ([]BootstrapMethod, error) {
	r := &reader{buf: data}
	n, err := r.u16("bootstrap method count")
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, n)
	for i := 0; i < int(n); i++ {
		ref, err := r.u16("bootstrap method_ref")
		if err != nil {
			return nil, err
		}
		argc, err := r.u16("bootstrap argument count")
		if err != nil {
			return nil, err
		}
		args := make([]uint16, 0, argc)
		for j := 0; j < int(argc); j++ {
			a, err := r.u16("bootstrap argument")
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		out = append(out, BootstrapMethod{MethodHandleIndex: ref, ArgumentIndices: args})
	}
	return out, nil
}
