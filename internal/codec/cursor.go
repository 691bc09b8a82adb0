package codec

// Buffer is a growable byte buffer paired with a read/write cursor, so
// callers can decode or encode a sequence of fields without tracking
// offsets by hand.
type Buffer struct {
	Data   []byte
	cursor int
}

// NewBuffer wraps an existing byte slice for cursored reads (e.g. a
// freshly-parsed packet payload).
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data}
}

// Reset moves the cursor back to the start of the buffer.
func (b *Buffer) Reset() {
	b.cursor = 0
}

func (b *Buffer) ReadVarInt() (int32, error) {
	val, n, err := ReadVarInt(b.Data, b.cursor)
	if err != nil {
		return 0, err
	}
	b.cursor += n
	return val, nil
}

func (b *Buffer) ReadVarLong() (int64, error) {
	val, n, err := ReadVarLong(b.Data, b.cursor)
	if err != nil {
		return 0, err
	}
	b.cursor += n
	return val, nil
}

func (b *Buffer) ReadUint16() (uint16, error) {
	val, err := ReadUint16(b.Data, b.cursor)
	if err != nil {
		return 0, err
	}
	b.cursor += 2
	return val, nil
}

func (b *Buffer) ReadString() (string, error) {
	val, n, err := ReadString(b.Data, b.cursor)
	if err != nil {
		return "", err
	}
	b.cursor += n
	return val, nil
}

func (b *Buffer) WriteVarInt(val int32) {
	n := WriteVarInt(&b.Data, val, b.cursor)
	b.cursor += n
}

func (b *Buffer) WriteVarLong(val int64) {
	n := WriteVarLong(&b.Data, val, b.cursor)
	b.cursor += n
}

func (b *Buffer) WriteUint16(val uint16) {
	WriteUint16(&b.Data, val, b.cursor)
	b.cursor += 2
}

func (b *Buffer) WriteString(val string) {
	n := WriteString(&b.Data, val, b.cursor)
	b.cursor += n
}
