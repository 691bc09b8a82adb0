package codec

import (
	"encoding/binary"
	"unicode/utf8"
)

// ReadUint16 decodes a big-endian u16 at offset. It returns ErrShortBuffer
// if fewer than 2 bytes remain.
func ReadUint16(buf []byte, offset int) (uint16, error) {
	if offset+2 > len(buf) {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint16(buf[offset : offset+2]), nil
}

// WriteUint16 writes val as big-endian at offset, growing buf if necessary.
func WriteUint16(buf *[]byte, val uint16, offset int) {
	if len(*buf) < offset+2 {
		grown := make([]byte, offset+2)
		copy(grown, *buf)
		*buf = grown
	}
	binary.BigEndian.PutUint16((*buf)[offset:offset+2], val)
}

// ReadString decodes a varint-length-prefixed UTF-8 string at offset. It
// returns the decoded string and the total bytes consumed (prefix +
// body). A body that is not valid UTF-8 decodes to the empty string with
// the advance length left intact, matching the lossy-decode contract in
// §4.1.
func ReadString(buf []byte, offset int) (string, int, error) {
	strLen, prefixLen, err := ReadVarInt(buf, offset)
	if err != nil {
		return "", 0, err
	}
	if strLen < 0 {
		return "", 0, ErrShortBuffer
	}

	start := offset + prefixLen
	end := start + int(strLen)
	if end > len(buf) {
		return "", 0, ErrShortBuffer
	}

	raw := buf[start:end]
	if !utf8.Valid(raw) {
		return "", prefixLen + int(strLen), nil
	}
	return string(raw), prefixLen + int(strLen), nil
}

// WriteString appends the varint-length-prefixed UTF-8 encoding of val at
// offset, growing buf if necessary, and returns the number of bytes
// written.
func WriteString(buf *[]byte, val string, offset int) int {
	body := []byte(val)
	prefixLen := WriteVarInt(buf, int32(len(body)), offset)
	total := prefixLen + len(body)

	if len(*buf) < offset+total {
		grown := make([]byte, offset+total)
		copy(grown, *buf)
		*buf = grown
	}
	copy((*buf)[offset+prefixLen:offset+total], body)
	return total
}
