package flacenc

import (
	"github.com/mewkiz/pkg/errutil"
)

// EncodeInt16Planar encodes one block of 16-bit samples, one slice per
// channel, into buf and returns the number of bytes written.
func (enc *Encoder) EncodeInt16Planar(buf []byte, samples [][]int16) (int, error) {
	if len(samples) != enc.NChannels {
		return 0, errutil.Newf("number of sample slices mismatch; expected %d (one per channel), got %d", enc.NChannels, len(samples))
	}
	n := len(samples[0])
	for i := range samples {
		if len(samples[i]) != n {
			return 0, errutil.Newf("invalid number of samples in channel %d; expected %d, got %d", i, n, len(samples[i]))
		}
	}
	if err := enc.checkBlock(n); err != nil {
		return 0, err
	}
	if enc.md5sum != nil {
		enc.updateMD5Int16Planar(samples, n)
	}
	if err := enc.beginFrame(buf, n); err != nil {
		return 0, err
	}
	for c := 0; c < enc.NChannels; c++ {
		enc.analyzeInt16Planar(samples[c])
		enc.rescaleSamples(n)
		if err := enc.encodeSubframe(c); err != nil {
			return 0, err
		}
	}
	return enc.finishFrame()
}

// EncodeInt16Interleaved encodes one block of 16-bit samples in sample-major
// interleaved order (all channels of sample 0, then sample 1, ...) into buf
// and returns the number of bytes written.
func (enc *Encoder) EncodeInt16Interleaved(buf []byte, samples []int16) (int, error) {
	if len(samples)%enc.NChannels != 0 {
		return 0, errutil.Newf("interleaved sample count %d not a multiple of %d channels", len(samples), enc.NChannels)
	}
	n := len(samples) / enc.NChannels
	if err := enc.checkBlock(n); err != nil {
		return 0, err
	}
	if enc.md5sum != nil {
		enc.updateMD5Int16Interleaved(samples, n)
	}
	if err := enc.beginFrame(buf, n); err != nil {
		return 0, err
	}
	for c := 0; c < enc.NChannels; c++ {
		enc.analyzeInt16Interleaved(samples, c, n)
		enc.rescaleSamples(n)
		if err := enc.encodeSubframe(c); err != nil {
			return 0, err
		}
	}
	return enc.finishFrame()
}

// EncodeInt32Planar encodes one block of samples of up to 32 bits, one
// slice per channel, into buf and returns the number of bytes written.
func (enc *Encoder) EncodeInt32Planar(buf []byte, samples [][]int32) (int, error) {
	if len(samples) != enc.NChannels {
		return 0, errutil.Newf("number of sample slices mismatch; expected %d (one per channel), got %d", enc.NChannels, len(samples))
	}
	n := len(samples[0])
	for i := range samples {
		if len(samples[i]) != n {
			return 0, errutil.Newf("invalid number of samples in channel %d; expected %d, got %d", i, n, len(samples[i]))
		}
	}
	if err := enc.checkBlock(n); err != nil {
		return 0, err
	}
	if enc.md5sum != nil {
		enc.updateMD5Int32Planar(samples, n)
	}
	if err := enc.beginFrame(buf, n); err != nil {
		return 0, err
	}
	for c := 0; c < enc.NChannels; c++ {
		enc.analyzeInt32Planar(samples[c])
		enc.rescaleSamples(n)
		if err := enc.encodeSubframe(c); err != nil {
			return 0, err
		}
	}
	return enc.finishFrame()
}

// EncodeInt32Interleaved encodes one block of samples of up to 32 bits in
// sample-major interleaved order into buf and returns the number of bytes
// written.
func (enc *Encoder) EncodeInt32Interleaved(buf []byte, samples []int32) (int, error) {
	if len(samples)%enc.NChannels != 0 {
		return 0, errutil.Newf("interleaved sample count %d not a multiple of %d channels", len(samples), enc.NChannels)
	}
	n := len(samples) / enc.NChannels
	if err := enc.checkBlock(n); err != nil {
		return 0, err
	}
	if enc.md5sum != nil {
		enc.updateMD5Int32Interleaved(samples, n)
	}
	if err := enc.beginFrame(buf, n); err != nil {
		return 0, err
	}
	for c := 0; c < enc.NChannels; c++ {
		enc.analyzeInt32Interleaved(samples, c, n)
		enc.rescaleSamples(n)
		if err := enc.encodeSubframe(c); err != nil {
			return 0, err
		}
	}
	return enc.finishFrame()
}

// beginFrame re-derives the block-size dependent parameters when the block
// size changed (only the final block of a stream may shrink), resets the
// bit writer onto the caller's buffer and emits the frame header.
func (enc *Encoder) beginFrame(buf []byte, blockSize int) error {
	if blockSize != enc.curBlockSize {
		enc.curBlockSize = blockSize
		enc.partOrder = derivePartOrder(blockSize, enc.MinPartitionOrder, enc.MaxPartitionOrder)
		enc.verbatimLen = verbatimSubframeLen(blockSize, enc.BitsPerSample)
	}
	enc.bw.Reset(buf)
	return enc.writeFrameHeader()
}

// finishFrame pads the frame to byte alignment, appends the CRC-16 footer
// and updates the stream bookkeeping.
func (enc *Encoder) finishFrame() (int, error) {
	if err := enc.bw.Align(); err != nil {
		return 0, err
	}
	// CRC-16 (polynomial = x^16 + x^15 + x^2 + x^0, initialized with 0) of
	// everything before the crc, back to and including the frame header
	// sync code.
	if err := enc.bw.WriteBits(uint64(enc.bw.CRC16()), 16); err != nil {
		return 0, err
	}

	n := enc.bw.Len()
	if enc.frameSizeMin == 0 || uint32(n) < enc.frameSizeMin {
		enc.frameSizeMin = uint32(n)
	}
	if uint32(n) > enc.frameSizeMax {
		enc.frameSizeMax = uint32(n)
	}

	enc.frameNum = (enc.frameNum + 1) & 0x7FFFFFFF // cap to 31 bits.
	enc.sampleCount = (enc.sampleCount + uint64(enc.curBlockSize)) & 0xFFFFFFFFF // cap to 36 bits.
	return n, nil
}

// writeFrameHeader emits the frame header, closing with the CRC-8 of the
// header bytes.
//
// Frame header format (pseudo code):
//
//	type FRAME_HEADER struct {
//	   sync_code         uint14 // 11111111111110
//	   _                 uint1
//	   blocking_strategy uint1  // 0: fixed block size.
//	   block_size_spec   uint4
//	   sample_rate_spec  uint4
//	   channels_spec     uint4
//	   sample_size_spec  uint3
//	   _                 uint1
//	   frame_num         uint31 // "UTF-8" coded, 1 to 6 bytes.
//	   block_size        uint8 or uint16  // for uncommon block sizes.
//	   sample_rate       uint8 or uint16  // for uncommon sample rates.
//	   crc8              uint8
//	}
//
// ref: https://www.xiph.org/flac/format.html#frame_header
func (enc *Encoder) writeFrameHeader() error {
	// Sync code: 11111111111110
	if err := enc.bw.WriteBits(0x3FFE, 14); err != nil {
		return err
	}

	// Reserved: 0
	if err := enc.bw.WriteBits(0x0, 1); err != nil {
		return err
	}

	// Blocking strategy:
	//    0 : fixed-blocksize stream; frame header encodes the frame number
	if err := enc.bw.WriteBits(0x0, 1); err != nil {
		return err
	}

	// Block size in inter-channel samples:
	//    0001 : 192 samples
	//    0010-0101 : 576 * (2^(n-2)) samples, i.e. 576/1152/2304/4608
	//    0110 : get 8 bit (blocksize-1) from end of header
	//    0111 : get 16 bit (blocksize-1) from end of header
	//    1000-1111 : 256 * (2^(n-8)) samples, i.e. 256/512/.../32768
	var blockSizeFlag uint64
	switch enc.curBlockSize {
	case 192:
		blockSizeFlag = 0x1
	case 576:
		blockSizeFlag = 0x2
	case 1152:
		blockSizeFlag = 0x3
	case 2304:
		blockSizeFlag = 0x4
	case 4608:
		blockSizeFlag = 0x5
	case 256:
		blockSizeFlag = 0x8
	case 512:
		blockSizeFlag = 0x9
	case 1024:
		blockSizeFlag = 0xA
	case 2048:
		blockSizeFlag = 0xB
	case 4096:
		blockSizeFlag = 0xC
	case 8192:
		blockSizeFlag = 0xD
	case 16384:
		blockSizeFlag = 0xE
	case 32768:
		blockSizeFlag = 0xF
	default:
		if enc.curBlockSize <= 256 {
			blockSizeFlag = 0x6
		} else {
			blockSizeFlag = 0x7
		}
	}
	if err := enc.bw.WriteBits(blockSizeFlag, 4); err != nil {
		return err
	}

	// Sample rate:
	//    0000 : get from STREAMINFO metadata block
	//    0001-1011 : common rates, see table
	//    1100 : get 8 bit sample rate (in kHz) from end of header
	//    1101 : get 16 bit sample rate (in tens of Hz) from end of header
	//    1110 : get 16 bit sample rate (in Hz) from end of header
	var sampleRateFlag uint64
	switch enc.SampleRate {
	case 88200:
		sampleRateFlag = 0x1
	case 176400:
		sampleRateFlag = 0x2
	case 192000:
		sampleRateFlag = 0x3
	case 8000:
		sampleRateFlag = 0x4
	case 16000:
		sampleRateFlag = 0x5
	case 22050:
		sampleRateFlag = 0x6
	case 24000:
		sampleRateFlag = 0x7
	case 32000:
		sampleRateFlag = 0x8
	case 44100:
		sampleRateFlag = 0x9
	case 48000:
		sampleRateFlag = 0xA
	case 96000:
		sampleRateFlag = 0xB
	default:
		switch {
		case enc.SampleRate%1000 == 0 && enc.SampleRate/1000 < 256:
			sampleRateFlag = 0xC
		case enc.SampleRate%10 == 0 && enc.SampleRate/10 < 65536:
			sampleRateFlag = 0xD
		case enc.SampleRate < 65536:
			sampleRateFlag = 0xE
		}
		// Anything else: 0, get from STREAMINFO.
	}
	if err := enc.bw.WriteBits(sampleRateFlag, 4); err != nil {
		return err
	}

	// Channel assignment:
	//    0000-0111 : (number of independent channels)-1, SMPTE/ITU-R
	//    channel order. No inter-channel decorrelation.
	if err := enc.bw.WriteBits(uint64(enc.NChannels-1), 4); err != nil {
		return err
	}

	// Sample size in bits:
	//    000 : get from STREAMINFO metadata block
	//    001 : 8 bits per sample
	//    010 : 12 bits per sample
	//    100 : 16 bits per sample
	//    101 : 20 bits per sample
	//    110 : 24 bits per sample
	//    111 : 32 bits per sample
	var sampleSizeFlag uint64
	switch enc.BitsPerSample {
	case 8:
		sampleSizeFlag = 0x1
	case 12:
		sampleSizeFlag = 0x2
	case 16:
		sampleSizeFlag = 0x4
	case 20:
		sampleSizeFlag = 0x5
	case 24:
		sampleSizeFlag = 0x6
	case 32:
		sampleSizeFlag = 0x7
	}
	if err := enc.bw.WriteBits(sampleSizeFlag, 3); err != nil {
		return err
	}

	// Reserved: 0
	if err := enc.bw.WriteBits(0x0, 1); err != nil {
		return err
	}

	// "UTF-8" coded frame number.
	if err := enc.writeUTF8(uint64(enc.frameNum)); err != nil {
		return err
	}

	// Block size after the frame header (used for uncommon block sizes).
	switch blockSizeFlag {
	case 0x6:
		if err := enc.bw.WriteBits(uint64(enc.curBlockSize-1), 8); err != nil {
			return err
		}
	case 0x7:
		if err := enc.bw.WriteBits(uint64(enc.curBlockSize-1), 16); err != nil {
			return err
		}
	}

	// Sample rate after the frame header (used for uncommon sample rates).
	switch sampleRateFlag {
	case 0xC:
		if err := enc.bw.WriteBits(uint64(enc.SampleRate/1000), 8); err != nil {
			return err
		}
	case 0xD:
		if err := enc.bw.WriteBits(uint64(enc.SampleRate/10), 16); err != nil {
			return err
		}
	case 0xE:
		if err := enc.bw.WriteBits(uint64(enc.SampleRate), 16); err != nil {
			return err
		}
	}

	// CRC-8 (polynomial = x^8 + x^2 + x^1 + x^0, initialized with 0) of
	// everything before the crc, including the sync code.
	if err := enc.bw.WriteBits(uint64(enc.bw.CRC8()), 8); err != nil {
		return err
	}
	return nil
}
