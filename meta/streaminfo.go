// Package meta provides encoding of FLAC metadata blocks. Only the
// mandatory StreamInfo block is supported.
package meta

import (
	"io"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/errutil"
)

// Metadata block body types.
const (
	// TypeStreamInfo denotes a StreamInfo metadata block body.
	TypeStreamInfo = 0
)

// StreamInfo contains the basic properties of a FLAC audio stream, such as
// its sample rate and channel count. It must be present as the first
// metadata block of a FLAC stream.
//
// ref: https://www.xiph.org/flac/format.html#metadata_block_streaminfo
type StreamInfo struct {
	// Minimum block size (in samples) used in the stream; between 16 and
	// 65535 samples.
	BlockSizeMin uint16
	// Maximum block size (in samples) used in the stream; between 16 and
	// 65535 samples.
	BlockSizeMax uint16
	// Minimum frame size in bytes; a 0 value implies unknown.
	FrameSizeMin uint32
	// Maximum frame size in bytes; a 0 value implies unknown.
	FrameSizeMax uint32
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate uint32
	// Number of channels; between 1 and 8 channels.
	NChannels uint8
	// Sample size in bits-per-sample; between 1 and 32 bits.
	BitsPerSample uint8
	// Total number of inter-channel samples in the stream. One second of
	// 44.1 KHz audio will have 44100 samples regardless of the number of
	// channels. A 0 value implies unknown.
	NSamples uint64
	// MD5 checksum of the unencoded audio data.
	MD5sum [16]byte
}

// Size of an encoded StreamInfo metadata block in bytes, including the
// 4-byte block header.
const Size = 38

// Encode writes the StreamInfo metadata block to w, block header included.
// isLast specifies whether the block is the last metadata block of the
// stream.
func Encode(w io.Writer, si *StreamInfo, isLast bool) error {
	bw := bitio.NewWriter(w)

	// Metadata block header.
	// 1 bit: IsLast.
	last := uint64(0)
	if isLast {
		last = 1
	}
	if err := bw.WriteBits(last, 1); err != nil {
		return errutil.Err(err)
	}

	// 7 bits: Type.
	if err := bw.WriteBits(TypeStreamInfo, 7); err != nil {
		return errutil.Err(err)
	}

	// 24 bits: Length of the block body.
	if err := bw.WriteBits(Size-4, 24); err != nil {
		return errutil.Err(err)
	}

	// Metadata block body.
	// 16 bits: BlockSizeMin.
	if err := bw.WriteBits(uint64(si.BlockSizeMin), 16); err != nil {
		return errutil.Err(err)
	}

	// 16 bits: BlockSizeMax.
	if err := bw.WriteBits(uint64(si.BlockSizeMax), 16); err != nil {
		return errutil.Err(err)
	}

	// 24 bits: FrameSizeMin.
	if err := bw.WriteBits(uint64(si.FrameSizeMin), 24); err != nil {
		return errutil.Err(err)
	}

	// 24 bits: FrameSizeMax.
	if err := bw.WriteBits(uint64(si.FrameSizeMax), 24); err != nil {
		return errutil.Err(err)
	}

	// 20 bits: SampleRate.
	if err := bw.WriteBits(uint64(si.SampleRate), 20); err != nil {
		return errutil.Err(err)
	}

	// 3 bits: NChannels; stored as (number of channels) - 1.
	if err := bw.WriteBits(uint64(si.NChannels-1), 3); err != nil {
		return errutil.Err(err)
	}

	// 5 bits: BitsPerSample; stored as (bits-per-sample) - 1.
	if err := bw.WriteBits(uint64(si.BitsPerSample-1), 5); err != nil {
		return errutil.Err(err)
	}

	// 36 bits: NSamples.
	if err := bw.WriteBits(si.NSamples, 36); err != nil {
		return errutil.Err(err)
	}

	// 16 bytes: MD5sum.
	if _, err := bw.Write(si.MD5sum[:]); err != nil {
		return errutil.Err(err)
	}

	// Flush pending bit writes; the block is byte aligned by construction.
	if _, err := bw.Align(); err != nil {
		return errutil.Err(err)
	}
	return nil
}
