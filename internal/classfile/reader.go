package classfile

import "encoding/binary"

// reader is a big-endian cursor over the raw class file bytes. All multi-byte
// fields in the class file format are big-endian.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) truncated(what string) error {
	return &MalformedError{Offset: int64(r.off), Reason: "unexpected end of file reading " + what}
}

func (r *reader) u8(what string) (uint8, error) {
	if r.remaining() < 1 {
		return 0, r.truncated(what)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if r.remaining() < 2 {
		return 0, r.truncated(what)
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, r.truncated(what)
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64(what string) (uint64, error) {
	if r.remaining() < 8 {
		return 0, r.truncated(what)
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

// bytes returns the next n bytes without copying. Callers that retain the
// slice beyond parsing must copy it themselves.
func (r *reader) bytes(n int, what string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.truncated(what)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}
