package flacenc

import (
	"github.com/mewkiz/pkg/errutil"

	"github.com/mewkiz/flacenc/meta"
)

// sliceWriter is an io.Writer over a fixed-size byte slice; it refuses
// writes past the end instead of growing.
type sliceWriter struct {
	buf []byte
	n   int
}

func (sw *sliceWriter) Write(p []byte) (int, error) {
	n := copy(sw.buf[sw.n:], p)
	sw.n += n
	if n < len(p) {
		return n, ErrBufferFull
	}
	return n, nil
}

// StreamInfo returns the StreamInfo metadata block describing the stream
// encoded so far: the configured stream parameters, the observed frame size
// bounds, the running sample count and, after Finalize, the MD5 checksum of
// the unencoded audio.
func (enc *Encoder) StreamInfo() meta.StreamInfo {
	return meta.StreamInfo{
		BlockSizeMin:  uint16(enc.BlockSize),
		BlockSizeMax:  uint16(enc.BlockSize),
		FrameSizeMin:  enc.frameSizeMin,
		FrameSizeMax:  enc.frameSizeMax,
		SampleRate:    uint32(enc.SampleRate),
		NChannels:     uint8(enc.NChannels),
		BitsPerSample: uint8(enc.BitsPerSample),
		NSamples:      enc.sampleCount,
		MD5sum:        enc.MD5Sum(),
	}
}

// EncodeStreamInfo writes the StreamInfo metadata block, header included,
// into buf and returns the number of bytes written (always
// SizeStreamInfo()). isLast specifies whether the block is the last
// metadata block before the audio frames.
//
// Typically called twice: once with placeholder statistics before the first
// frame is streamed out, and once more after Finalize to rewrite the block
// with the final frame size bounds, sample count and MD5 checksum.
func (enc *Encoder) EncodeStreamInfo(buf []byte, isLast bool) (int, error) {
	if !enc.validated {
		return 0, errutil.Newf("encoder not validated; call Validate first")
	}
	if len(buf) < SizeStreamInfo() {
		return 0, ErrBufferFull
	}
	si := enc.StreamInfo()
	sw := &sliceWriter{buf: buf}
	if err := meta.Encode(sw, &si, isLast); err != nil {
		return 0, errutil.Err(err)
	}
	return sw.n, nil
}
