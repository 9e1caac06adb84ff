package flacenc

import (
	"bytes"
	"testing"
)

func TestWriteUTF8(t *testing.T) {
	golden := []struct {
		x    uint64
		want []byte
	}{
		{x: 0, want: []byte{0x00}},
		{x: 0x7F, want: []byte{0x7F}},
		{x: 0x80, want: []byte{0xC2, 0x80}},
		{x: 0x7FF, want: []byte{0xDF, 0xBF}},
		{x: 0x800, want: []byte{0xE0, 0xA0, 0x80}},
		{x: 0xFFFF, want: []byte{0xEF, 0xBF, 0xBF}},
		{x: 0x10000, want: []byte{0xF0, 0x90, 0x80, 0x80}},
		{x: 0x1FFFFF, want: []byte{0xF7, 0xBF, 0xBF, 0xBF}},
		{x: 0x200000, want: []byte{0xF8, 0x88, 0x80, 0x80, 0x80}},
		{x: 0x3FFFFFF, want: []byte{0xFB, 0xBF, 0xBF, 0xBF, 0xBF}},
		{x: 0x4000000, want: []byte{0xFC, 0x84, 0x80, 0x80, 0x80, 0x80}},
		{x: 0x7FFFFFFF, want: []byte{0xFD, 0xBF, 0xBF, 0xBF, 0xBF, 0xBF}},
	}
	enc := new(Encoder)
	buf := make([]byte, 8)
	for _, g := range golden {
		enc.bw.Reset(buf)
		if err := enc.writeUTF8(g.x); err != nil {
			t.Errorf("writeUTF8(0x%X) failed; %v", g.x, err)
			continue
		}
		got := buf[:enc.bw.Len()]
		if !bytes.Equal(g.want, got) {
			t.Errorf("result mismatch of writeUTF8(0x%X); expected % X, got % X", g.x, g.want, got)
			continue
		}
	}
}
