// Package flacenc implements a streaming FLAC [1] (Free Lossless Audio
// Codec) encoder, which converts blocks of linear PCM samples into a
// bit-exact FLAC bitstream.
//
// For every block the encoder picks, per channel, the cheapest of a
// CONSTANT, FIXED (fixed polynomial predictor of order 0 through 4, with
// partitioned Rice coded residuals) or VERBATIM subframe. Frames carry the
// CRC-8 and CRC-16 checksums mandated by the format, and the MD5 checksum
// of the unencoded audio is tracked for the StreamInfo metadata block.
//
// The encoder allocates its memory up front, in Validate; the encode path
// itself is allocation free and writes into a caller supplied buffer.
// LPC subframes, stereo decorrelation and metadata blocks other than
// StreamInfo are intentionally not implemented.
//
// [1]: https://www.xiph.org/flac/format.html
package flacenc

import (
	"crypto/md5"
	"hash"

	"github.com/mewkiz/pkg/errutil"
	"github.com/pkg/errors"

	"github.com/mewkiz/flacenc/internal/bits"
)

// Encoder errors.
var (
	// ErrInvalidConfig is returned by Validate when a configuration field is
	// out of range.
	ErrInvalidConfig = errors.New("flacenc: invalid configuration")
	// ErrBufferFull is returned by the encode methods when the output buffer
	// is too small to hold the frame; use SizeFrame to size the buffer for
	// the worst case.
	ErrBufferFull = bits.ErrFull
)

// SubframeType identifies the prediction method used to encode the audio
// samples of one subframe.
type SubframeType uint8

// Subframe types.
const (
	// SubframeConstant is a single stored value, all samples equal.
	SubframeConstant SubframeType = iota
	// SubframeVerbatim stores samples as-is.
	SubframeVerbatim
	// SubframeFixed predicts samples with a fixed polynomial predictor of
	// order 0 through 4 and Rice codes the residuals.
	SubframeFixed
	// SubframeLPC is listed for completeness of the statistics matrix; the
	// encoder never produces it.
	SubframeLPC
)

func (t SubframeType) String() string {
	switch t {
	case SubframeConstant:
		return "CONSTANT"
	case SubframeVerbatim:
		return "VERBATIM"
	case SubframeFixed:
		return "FIXED"
	case SubframeLPC:
		return "LPC"
	}
	return "unknown"
}

// An Encoder encodes blocks of PCM samples into FLAC frames. Configure the
// exported fields, call Validate once, then feed blocks through the encode
// methods. Mutating the configuration after Validate is undefined.
//
// An Encoder is not safe for concurrent use; drive one encoder per
// goroutine.
type Encoder struct {
	// Block size in inter-channel samples; between 16 and 65535 samples.
	// Only the final block of a stream may be shorter.
	BlockSize int
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate int
	// Number of channels; between 1 and 8 channels. Channels are encoded
	// independently, without inter-channel decorrelation.
	NChannels int
	// Sample size in bits-per-sample; between 1 and 32 bits.
	BitsPerSample int
	// Minimum and maximum Rice partition order; between 0 and 15, min <=
	// max. Keep MaxPartitionOrder <= 8 to stay within the streamable
	// subset.
	MinPartitionOrder int
	MaxPartitionOrder int
	// Largest permitted Rice parameter; 0 selects the default of 14 for bit
	// depths up to 16 and 30 above, the overall maximum being 30. Values
	// above 14 switch the residual coding method to 5-bit Rice parameters.
	MaxRiceParam int
	// Feature toggles.
	DisableConstant bool
	DisableFixed    bool
	DisableMD5      bool

	// Derived by Validate.
	partOrder   int // effective Rice partition order.
	verbatimLen int // worst-case subframe size in bytes.
	validated   bool

	// Running stream state.
	frameNum     uint32 // next frame number, wraps at 31 bits.
	sampleCount  uint64 // inter-channel samples encoded, wraps at 36 bits.
	frameSizeMin uint32 // smallest frame emitted; 0 means none yet.
	frameSizeMax uint32 // largest frame emitted.
	md5sum       hash.Hash
	md5buf       []byte // per-block serialization scratch.
	digest       [16]byte
	digestValid  bool

	// Per-block, per-channel scratch.
	curBlockSize int
	wasted       uint // wasted bits of the channel under analysis.
	constant     bool // all samples of the channel equal.
	// Residual spans for predictor orders 0 through 4; order k occupies
	// positions 0 through curBlockSize-k-1. Order 0 holds the (rescaled)
	// samples themselves.
	residuals [5][]int64
	// Summed absolute residuals per order; maxUint64 marks an unusable
	// order.
	residualErrs [5]uint64

	// Per-channel subframe type counters.
	subframeTypeCounts [8][4]uint64

	bw bits.Writer
}

// NewEncoder returns an encoder for the given stream parameters with the
// remaining configuration at its defaults (block size 4096, automatic Rice
// parameter limit, single Rice partition, all features enabled). Call
// Validate before encoding.
func NewEncoder(sampleRate, nchannels, bps int) *Encoder {
	return &Encoder{
		BlockSize:     4096,
		SampleRate:    sampleRate,
		NChannels:     nchannels,
		BitsPerSample: bps,
	}
}

// SizeStreamInfo returns the size in bytes of an encoded StreamInfo
// metadata block, including the block header.
func SizeStreamInfo() int {
	return 38
}

// SizeMemory returns the number of bytes of working memory the encoder
// needs for the given block size: five block-sized spans of 64-bit
// residuals, each padded to a 16-byte boundary, plus alignment slack.
func SizeMemory(blockSize int) int {
	return 15 + 5*((15+blockSize*8)&^15)
}

// SizeFrame returns the worst-case size in bytes of a single encoded frame,
// used to size the output buffer passed to the encode methods.
func SizeFrame(blockSize, nchannels, bps int) int {
	// The maximum for frame header and footer is 18 bytes:
	//    2 for frame sync + blocking strategy
	//    1 for block size + sample rate
	//    1 for channel assignment and sample size
	//    7 for the largest sample number (frame numbers need only 6)
	//    2 for the optional 16-bit block size
	//    2 for the optional 16-bit sample rate
	//    1 for CRC-8
	//    2 for CRC-16
	n := 18 + blockSize*nchannels*bps/8 + nchannels
	if blockSize*nchannels*bps%8 != 0 {
		// Odd bit depths need one extra byte for alignment.
		n++
	}
	return n
}

// Validate checks the configuration, allocates the encoder's working memory
// and derives the effective Rice partition order. It must be
// called once before the first encode; afterwards the configuration must be
// treated as frozen.
func (enc *Encoder) Validate() error {
	if enc.BlockSize < 16 || enc.BlockSize > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "block size %d out of range [16, 65535]", enc.BlockSize)
	}
	if enc.SampleRate < 1 || enc.SampleRate > 655350 {
		return errors.Wrapf(ErrInvalidConfig, "sample rate %d out of range [1, 655350]", enc.SampleRate)
	}
	if enc.NChannels < 1 || enc.NChannels > 8 {
		return errors.Wrapf(ErrInvalidConfig, "number of channels %d out of range [1, 8]", enc.NChannels)
	}
	if enc.BitsPerSample < 1 || enc.BitsPerSample > 32 {
		return errors.Wrapf(ErrInvalidConfig, "bits-per-sample %d out of range [1, 32]", enc.BitsPerSample)
	}
	if enc.MaxRiceParam == 0 {
		if enc.BitsPerSample <= 16 {
			enc.MaxRiceParam = 14
		} else {
			enc.MaxRiceParam = 30
		}
	} else if enc.MaxRiceParam > 30 {
		return errors.Wrapf(ErrInvalidConfig, "Rice parameter limit %d out of range [1, 30]", enc.MaxRiceParam)
	}
	if enc.MinPartitionOrder < 0 || enc.MinPartitionOrder > 15 {
		return errors.Wrapf(ErrInvalidConfig, "min partition order %d out of range [0, 15]", enc.MinPartitionOrder)
	}
	if enc.MaxPartitionOrder < 0 || enc.MaxPartitionOrder > 15 {
		return errors.Wrapf(ErrInvalidConfig, "max partition order %d out of range [0, 15]", enc.MaxPartitionOrder)
	}
	if enc.MinPartitionOrder > enc.MaxPartitionOrder {
		return errors.Wrapf(ErrInvalidConfig, "min partition order %d above max partition order %d", enc.MinPartitionOrder, enc.MaxPartitionOrder)
	}

	// The encoder's up-front allocations: five residual spans out of a
	// single backing array, plus the MD5 hash and its serialization scratch.
	backing := make([]int64, 5*enc.BlockSize)
	for i := range enc.residuals {
		enc.residuals[i] = backing[i*enc.BlockSize : (i+1)*enc.BlockSize]
	}
	if !enc.DisableMD5 {
		enc.md5sum = md5.New()
		enc.md5buf = make([]byte, 0, enc.BlockSize*enc.NChannels*((enc.BitsPerSample+7)/8))
	}

	enc.curBlockSize = enc.BlockSize
	enc.partOrder = derivePartOrder(enc.BlockSize, enc.MinPartitionOrder, enc.MaxPartitionOrder)
	enc.verbatimLen = verbatimSubframeLen(enc.BlockSize, enc.BitsPerSample)
	enc.validated = true
	return nil
}

// derivePartOrder returns the effective Rice partition order for the given
// block size: starting from min, the order climbs while 2^(order+1) still
// divides the block size, so every partition keeps an integral sample
// count.
func derivePartOrder(blockSize, min, max int) int {
	p := min
	for blockSize%(1<<(p+1)) == 0 && p < max {
		p++
	}
	return p
}

// verbatimSubframeLen returns the size in bytes of a VERBATIM subframe,
// the bound a FIXED subframe must beat to be kept. A partial last byte counts
// as a whole byte.
func verbatimSubframeLen(blockSize, bps int) int {
	n := 1 + blockSize*bps/8
	if blockSize*bps%8 != 0 {
		n++
	}
	return n
}

// Finalize completes the MD5 checksum of the unencoded audio. Call it after
// the last block has been encoded and before emitting the final StreamInfo
// block; further encodes after Finalize are undefined.
func (enc *Encoder) Finalize() {
	if enc.md5sum != nil {
		sum := enc.md5sum.Sum(nil)
		copy(enc.digest[:], sum)
		enc.digestValid = true
	}
}

// MD5Sum returns the MD5 checksum of the unencoded audio data. The result
// is only valid after Finalize on an encoder with MD5 enabled; otherwise it
// is all zero.
func (enc *Encoder) MD5Sum() [16]byte {
	if !enc.digestValid {
		return [16]byte{}
	}
	return enc.digest
}

// SampleCount returns the number of inter-channel samples encoded so far,
// modulo 2^36.
func (enc *Encoder) SampleCount() uint64 {
	return enc.sampleCount
}

// FrameNumber returns the number of the next frame to be encoded, modulo
// 2^31.
func (enc *Encoder) FrameNumber() uint32 {
	return enc.frameNum
}

// FrameSizeMin returns the size in bytes of the smallest frame emitted so
// far; 0 before the first frame.
func (enc *Encoder) FrameSizeMin() uint32 {
	return enc.frameSizeMin
}

// FrameSizeMax returns the size in bytes of the largest frame emitted so
// far.
func (enc *Encoder) FrameSizeMax() uint32 {
	return enc.frameSizeMax
}

// SubframeTypeCounts returns, per channel and subframe type, how many
// subframes of that type have been emitted.
func (enc *Encoder) SubframeTypeCounts() [8][4]uint64 {
	return enc.subframeTypeCounts
}

// checkBlock validates the per-call preconditions shared by the encode
// methods.
func (enc *Encoder) checkBlock(blockSize int) error {
	if !enc.validated {
		return errutil.Newf("encoder not validated; call Validate first")
	}
	if blockSize < 1 || blockSize > enc.BlockSize {
		return errutil.Newf("invalid number of samples per channel; expected >= 1 && <= %d, got %d", enc.BlockSize, blockSize)
	}
	return nil
}
