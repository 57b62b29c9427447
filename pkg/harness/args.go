package harness

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortData is returned when instruction data is shorter than the
// decode a handler declared. It classifies as a business rule violation:
// malformed arguments are a caller fault, never a crash.
var ErrShortData = errors.New("instruction data too short")

// U64Arg decodes a little-endian uint64 at the given byte offset of the
// instruction data.
func U64Arg(data []byte, offset int) (uint64, error) {
	if offset < 0 || len(data) < offset+8 {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortData, offset+8, len(data))
	}
	return binary.LittleEndian.Uint64(data[offset:]), nil
}

// U8Arg decodes the byte at the given offset of the instruction data.
func U8Arg(data []byte, offset int) (uint8, error) {
	if offset < 0 || len(data) <= offset {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortData, offset+1, len(data))
	}
	return data[offset], nil
}
