package argblock

import (
	"errors"
	"testing"
)

func TestNewView_ShortBuffer(t *testing.T) {
	_, err := Layout32LE.NewView([]byte{0, 0, 0, 0, 1})
	var shortErr *ShortBufferError
	if !errors.As(err, &shortErr) {
		t.Fatalf("NewView() error = %v, want *ShortBufferError", err)
	}
	if shortErr.Need != 8 || shortErr.Have != 5 {
		t.Errorf("ShortBufferError = %+v", shortErr)
	}
}

func TestView_ReadsWithoutCopy(t *testing.T) {
	raw, err := Layout32LE.Encode(&Block{
		Callback: 0x100,
		Ops:      []Op{{Address: 0x1000, Value: 0xAA}},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	view, err := Layout32LE.NewView(raw)
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	if view.CallbackAddress() != 0x100 {
		t.Errorf("CallbackAddress() = %s", view.CallbackAddress().Hex())
	}

	// The view aliases the buffer, so edits show through.
	raw[12] = 0xCC
	op, err := view.OpAt(0)
	if err != nil {
		t.Fatalf("OpAt(0) error = %v", err)
	}
	if op.Value != 0xCC {
		t.Errorf("OpAt(0).Value = %s, want 0xcc", op.Value.Hex())
	}
}

func TestView_TrustsDeclaredCount(t *testing.T) {
	raw := []byte{
		0, 0, 0, 0,
		5, 0, 0, 0, // declares five ops
		0x00, 0x10, 0, 0, 1, 0, 0, 0,
		0x04, 0x10, 0, 0, 2, 0, 0, 0,
	}

	view, err := Layout32LE.NewView(raw)
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}

	if view.OpCount() != 5 {
		t.Errorf("OpCount() = %d, want declared 5", view.OpCount())
	}
	if view.Present() != 2 {
		t.Errorf("Present() = %d, want 2", view.Present())
	}

	if _, err := view.OpAt(1); err != nil {
		t.Errorf("OpAt(1) error = %v", err)
	}

	_, err = view.OpAt(2)
	var truncErr *TruncatedError
	if !errors.As(err, &truncErr) {
		t.Fatalf("OpAt(2) error = %v, want *TruncatedError", err)
	}
	if truncErr.Index != 2 {
		t.Errorf("TruncatedError.Index = %d, want 2", truncErr.Index)
	}

	if err := view.Validate(); err == nil {
		t.Error("Validate() should reject a block declaring more ops than present")
	}

	if got := len(view.Bytes()); got != 24 {
		t.Errorf("len(Bytes()) = %d, want 24", got)
	}
}

func TestView_Validate(t *testing.T) {
	raw, err := Layout64LE.Encode(&Block{Ops: []Op{{Address: 1, Value: 2}, {Address: 3, Value: 4}}})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	view, err := Layout64LE.NewView(raw)
	if err != nil {
		t.Fatalf("NewView() error = %v", err)
	}
	if err := view.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if view.Layout().WordSize != 8 {
		t.Errorf("Layout().WordSize = %d", view.Layout().WordSize)
	}
}
