package bits

import (
	"bytes"
	"testing"

	"github.com/mewkiz/flacenc/internal/hashutil/crc16"
	"github.com/mewkiz/flacenc/internal/hashutil/crc8"
)

func TestWriterWriteBits(t *testing.T) {
	buf := make([]byte, 8)
	bw := new(Writer)
	bw.Reset(buf)

	// FLAC frame sync code followed by zero padding to byte alignment.
	if err := bw.WriteBits(0x3FFE, 14); err != nil {
		t.Fatal(err)
	}
	if want, got := 1, bw.Len(); want != got {
		t.Errorf("byte count mismatch with pending bits; expected %d, got %d", want, got)
	}
	if err := bw.Align(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xFF, 0xF8}
	if got := buf[:bw.Len()]; !bytes.Equal(want, got) {
		t.Errorf("output mismatch; expected % X, got % X", want, got)
	}

	// Align is idempotent once aligned.
	if err := bw.Align(); err != nil {
		t.Fatal(err)
	}
	if want, got := 2, bw.Len(); want != got {
		t.Errorf("byte count mismatch after second align; expected %d, got %d", want, got)
	}

	// Zero-width writes are no-ops.
	if err := bw.WriteBits(0xFFFF, 0); err != nil {
		t.Fatal(err)
	}
	if want, got := 2, bw.Len(); want != got {
		t.Errorf("byte count mismatch after zero-width write; expected %d, got %d", want, got)
	}
}

func TestWriterCRC(t *testing.T) {
	buf := make([]byte, 16)
	bw := new(Writer)
	bw.Reset(buf)
	if err := bw.WriteBits(0x3FFE, 14); err != nil {
		t.Fatal(err)
	}
	if err := bw.WriteBits(0x1234567, 28); err != nil {
		t.Fatal(err)
	}
	if err := bw.WriteBits(0x5A, 6); err != nil {
		t.Fatal(err)
	}
	data := buf[:bw.Len()]
	if want, got := crc8.ChecksumATM(data), bw.CRC8(); want != got {
		t.Errorf("CRC-8 mismatch; expected 0x%02X, got 0x%02X", want, got)
	}
	if want, got := crc16.ChecksumIBM(data), bw.CRC16(); want != got {
		t.Errorf("CRC-16 mismatch; expected 0x%04X, got 0x%04X", want, got)
	}
}

func TestWriterFull(t *testing.T) {
	buf := make([]byte, 1)
	bw := new(Writer)
	bw.Reset(buf)

	// The first byte flushes, the second does not fit; a partial flush is
	// permitted and the error is sticky.
	if err := bw.WriteBits(0xABCD, 16); err != ErrFull {
		t.Fatalf("error mismatch; expected ErrFull, got %v", err)
	}
	if want, got := byte(0xAB), buf[0]; want != got {
		t.Errorf("partial flush mismatch; expected 0x%02X, got 0x%02X", want, got)
	}
	if err := bw.WriteBits(0x0, 1); err != ErrFull {
		t.Fatalf("sticky error mismatch; expected ErrFull, got %v", err)
	}

	bw.Reset(buf)
	if err := bw.WriteBits(0xAB, 8); err != nil {
		t.Fatal(err)
	}
}

func TestWriterOverflow(t *testing.T) {
	buf := make([]byte, 32)
	bw := new(Writer)
	bw.Reset(buf)
	if err := bw.WriteBits(0, 60); err != nil {
		t.Fatal(err)
	}
	// 4 bits pending; 61 more would exceed the 64-bit accumulator.
	if err := bw.WriteBits(0, 61); err != ErrOverflow {
		t.Fatalf("error mismatch; expected ErrOverflow, got %v", err)
	}
}

func TestWriterUnary(t *testing.T) {
	buf := make([]byte, 8)
	bw := new(Writer)
	bw.Reset(buf)
	// 001 1 0001 => 0x31
	for _, x := range []uint64{2, 0, 3} {
		if err := bw.WriteUnary(x); err != nil {
			t.Fatal(err)
		}
	}
	if want, got := byte(0x31), buf[0]; want != got {
		t.Errorf("output mismatch; expected 0x%02X, got 0x%02X", want, got)
	}

	// Long runs cross byte boundaries.
	bw.Reset(buf)
	if err := bw.WriteUnary(20); err != nil {
		t.Fatal(err)
	}
	if err := bw.Align(); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x00, 0x08}
	if got := buf[:bw.Len()]; !bytes.Equal(want, got) {
		t.Errorf("output mismatch; expected % X, got % X", want, got)
	}
}

func TestWriterRestore(t *testing.T) {
	buf := make([]byte, 8)
	bw := new(Writer)
	bw.Reset(buf)
	if err := bw.WriteBits(0xA5, 8); err != nil {
		t.Fatal(err)
	}
	if err := bw.WriteBits(0x5, 3); err != nil {
		t.Fatal(err)
	}
	state := bw.State()

	// A speculative attempt that is rolled back must leave no trace.
	if err := bw.WriteBits(0xFFFFFF, 24); err != nil {
		t.Fatal(err)
	}
	bw.Restore(state)
	if err := bw.WriteBits(0x15, 5); err != nil {
		t.Fatal(err)
	}

	// Reference run without the detour.
	ref := make([]byte, 8)
	rw := new(Writer)
	rw.Reset(ref)
	for _, w := range []struct {
		x uint64
		n uint
	}{{0xA5, 8}, {0x5, 3}, {0x15, 5}} {
		if err := rw.WriteBits(w.x, w.n); err != nil {
			t.Fatal(err)
		}
	}
	if want, got := ref[:rw.Len()], buf[:bw.Len()]; !bytes.Equal(want, got) {
		t.Errorf("output mismatch after restore; expected % X, got % X", want, got)
	}
	if want, got := rw.CRC16(), bw.CRC16(); want != got {
		t.Errorf("CRC-16 mismatch after restore; expected 0x%04X, got 0x%04X", want, got)
	}
}

func TestWriterRestoreClearsError(t *testing.T) {
	buf := make([]byte, 2)
	bw := new(Writer)
	bw.Reset(buf)
	if err := bw.WriteBits(0xAB, 8); err != nil {
		t.Fatal(err)
	}
	state := bw.State()
	if err := bw.WriteBits(0xFFFF, 16); err != ErrFull {
		t.Fatalf("error mismatch; expected ErrFull, got %v", err)
	}
	bw.Restore(state)
	if err := bw.WriteBits(0xCD, 8); err != nil {
		t.Fatalf("write after restore failed; %v", err)
	}
	want := []byte{0xAB, 0xCD}
	if got := buf[:bw.Len()]; !bytes.Equal(want, got) {
		t.Errorf("output mismatch; expected % X, got % X", want, got)
	}
}
