package midifile

const (
	varLenMask     = 0x7F
	varLenContinue = 0x80
	varLenShift    = 7
)

// ReadVarLen decodes the variable-length quantity starting at b[off].
// It returns the value and the number of bytes consumed. Data bits are
// accumulated most significant group first; a byte with the high bit clear
// terminates the quantity.
func ReadVarLen(b []byte, off int) (uint32, int, error) {
	var value uint32
	for i := off; i < len(b); i++ {
		c := b[i]
		value = value<<varLenShift | uint32(c&varLenMask)
		if c&varLenContinue == 0 {
			return value, i - off + 1, nil
		}
	}
	return 0, 0, ErrTruncatedVarLen
}

// AppendVarLen appends the variable-length encoding of v to dst.
func AppendVarLen(dst []byte, v uint32) []byte {
	var buf [5]byte
	n := len(buf) - 1
	buf[n] = byte(v & varLenMask)
	for v >>= varLenShift; v > 0; v >>= varLenShift {
		n--
		buf[n] = byte(v&varLenMask) | varLenContinue
	}
	return append(dst, buf[n:]...)
}
