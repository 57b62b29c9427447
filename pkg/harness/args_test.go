package harness

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestU64Arg(t *testing.T) {
	data := make([]byte, 9)
	binary.LittleEndian.PutUint64(data, 7_000_000)
	data[8] = 0xFF

	v, err := U64Arg(data, 0)
	if err != nil || v != 7_000_000 {
		t.Errorf("U64Arg(data, 0) = %d, %v, want 7000000, nil", v, err)
	}

	for _, offset := range []int{2, 9, -1} {
		if _, err := U64Arg(data, offset); !errors.Is(err, ErrShortData) {
			t.Errorf("U64Arg(data, %d) err = %v, want ErrShortData", offset, err)
		}
	}
	if _, err := U64Arg(nil, 0); !errors.Is(err, ErrShortData) {
		t.Errorf("U64Arg(nil, 0) err = %v, want ErrShortData", err)
	}
}

func TestU8Arg(t *testing.T) {
	data := []byte{1, 2, 3}

	v, err := U8Arg(data, 2)
	if err != nil || v != 3 {
		t.Errorf("U8Arg(data, 2) = %d, %v, want 3, nil", v, err)
	}

	for _, offset := range []int{3, -1} {
		if _, err := U8Arg(data, offset); !errors.Is(err, ErrShortData) {
			t.Errorf("U8Arg(data, %d) err = %v, want ErrShortData", offset, err)
		}
	}
}
