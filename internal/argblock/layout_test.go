package argblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestLayout32LE_Encode(t *testing.T) {
	block := &Block{
		Callback: 0,
		Ops: []Op{
			{Address: 0x1000, Value: 0xAA},
			{Address: 0x1004, Value: 0xBB},
		},
	}

	got, err := Layout32LE.Encode(block)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := []byte{
		0x00, 0x00, 0x00, 0x00, // callback
		0x02, 0x00, 0x00, 0x00, // opCount
		0x00, 0x10, 0x00, 0x00, 0xAA, 0x00, 0x00, 0x00,
		0x04, 0x10, 0x00, 0x00, 0xBB, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x\nwant       % x", got, want)
	}
}

func TestLayout_EncodeBigEndian64(t *testing.T) {
	block := &Block{
		Callback: 0x4000_0001,
		Ops:      []Op{{Address: 0xFFFF_0000_0000_1000, Value: 1}},
	}

	got, err := Layout64BE.Encode(block)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(got) != Layout64BE.Size(1) {
		t.Fatalf("len = %d, want %d", len(got), Layout64BE.Size(1))
	}
	if cb := binary.BigEndian.Uint64(got[0:]); cb != 0x4000_0001 {
		t.Errorf("callback = %#x", cb)
	}
	if n := binary.BigEndian.Uint64(got[8:]); n != 1 {
		t.Errorf("opCount = %d", n)
	}
	if addr := binary.BigEndian.Uint64(got[16:]); addr != 0xFFFF_0000_0000_1000 {
		t.Errorf("address = %#x", addr)
	}
}

func TestLayout_EncodeEmpty(t *testing.T) {
	got, err := Layout32LE.Encode(&Block{Callback: 0x2000_0001})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{0x01, 0x00, 0x00, 0x20, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

func TestLayout_CheckRange(t *testing.T) {
	tests := []struct {
		name  string
		block *Block
		field string
		index int
	}{
		{
			name:  "callback too wide",
			block: &Block{Callback: 0x1_0000_0000},
			field: "callback",
			index: -1,
		},
		{
			name:  "address too wide",
			block: &Block{Ops: []Op{{Address: 1, Value: 1}, {Address: 0x1_0000_0000, Value: 1}}},
			field: "address",
			index: 1,
		},
		{
			name:  "value too wide",
			block: &Block{Ops: []Op{{Address: 1, Value: 0x1_0000_0000}}},
			field: "value",
			index: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Layout32LE.Encode(tt.block)
			var rangeErr *RangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("Encode() error = %v, want *RangeError", err)
			}
			if rangeErr.Field != tt.field || rangeErr.Index != tt.index {
				t.Errorf("RangeError = %+v, want field %q index %d", rangeErr, tt.field, tt.index)
			}
		})
	}

	if err := Layout64LE.Check(&Block{Callback: 0x1_0000_0000}); err != nil {
		t.Errorf("64-bit Check() error = %v", err)
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		size    int
		order   string
		want    Layout
		wantErr bool
	}{
		{size: 4, order: "", want: Layout32LE},
		{size: 4, order: "little", want: Layout32LE},
		{size: 4, order: "BE", want: Layout32BE},
		{size: 8, order: "big-endian", want: Layout64BE},
		{size: 8, order: "le", want: Layout64LE},
		{size: 2, order: "le", wantErr: true},
		{size: 4, order: "middle", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLayout(tt.size, tt.order)
		if tt.wantErr {
			var layoutErr *LayoutError
			if !errors.As(err, &layoutErr) {
				t.Errorf("ParseLayout(%d, %q) error = %v, want *LayoutError", tt.size, tt.order, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLayout(%d, %q) error = %v", tt.size, tt.order, err)
			continue
		}
		if got.WordSize != tt.want.WordSize || got.Order != tt.want.Order {
			t.Errorf("ParseLayout(%d, %q) = %v, want %v", tt.size, tt.order, got, tt.want)
		}
	}
}

func TestLayout_Decode(t *testing.T) {
	block := &Block{
		Callback: 0x2001_4f15,
		Ops: []Op{
			{Address: 0x10007000, Value: 0x22000000},
			{Address: 0x0010276C, Value: 0},
			{Address: 0x10007000, Value: 0x22000001},
		},
	}
	raw, err := Layout32LE.Encode(block)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Trailing bytes after the block are ignored.
	raw = append(raw, 0xde, 0xad, 0xbe, 0xef)

	got, err := Layout32LE.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Callback != block.Callback {
		t.Errorf("callback = %s, want %s", got.Callback.Hex(), block.Callback.Hex())
	}
	if len(got.Ops) != len(block.Ops) {
		t.Fatalf("ops = %d, want %d", len(got.Ops), len(block.Ops))
	}
	for i := range block.Ops {
		if got.Ops[i] != block.Ops[i] {
			t.Errorf("op %d = %v, want %v", i, got.Ops[i], block.Ops[i])
		}
	}
}

func TestLayout_DecodeTruncated(t *testing.T) {
	raw := []byte{
		0, 0, 0, 0,
		3, 0, 0, 0, // declares three ops
		0x00, 0x10, 0, 0, 1, 0, 0, 0,
	}

	_, err := Layout32LE.Decode(raw)
	var truncErr *TruncatedError
	if !errors.As(err, &truncErr) {
		t.Fatalf("Decode() error = %v, want *TruncatedError", err)
	}
	if truncErr.Declared != 3 || truncErr.Present != 1 {
		t.Errorf("TruncatedError = %+v", truncErr)
	}
}

func TestBlock_FinalState(t *testing.T) {
	block := &Block{}
	block.Append(0xA0, 1)
	block.Append(0xB0, 5)
	block.Append(0xA0, 2)

	order, final := block.FinalState()
	if len(order) != 2 || order[0] != 0xA0 || order[1] != 0xB0 {
		t.Errorf("order = %v", order)
	}
	if final[0xA0] != 2 {
		t.Errorf("final[0xA0] = %d, want 2 (last write wins)", final[0xA0])
	}
	if final[0xB0] != 5 {
		t.Errorf("final[0xB0] = %d, want 5", final[0xB0])
	}
}

func TestBlock_OpAtOutOfRange(t *testing.T) {
	block := &Block{Ops: []Op{{Address: 1, Value: 2}}}
	if _, err := block.OpAt(1); err == nil {
		t.Error("OpAt(1) on a one-op block should fail")
	}
}
