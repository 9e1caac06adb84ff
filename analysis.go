package flacenc

import (
	mathbits "math/bits"
)

// wastedBitsInt16 returns the number of trailing zero bits of the sample.
func wastedBitsInt16(x int16) uint {
	if x == 0 {
		return 16
	}
	return uint(mathbits.TrailingZeros16(uint16(x)))
}

// wastedBitsInt32 returns the number of trailing zero bits of the sample.
func wastedBitsInt32(x int32) uint {
	if x == 0 {
		return 32
	}
	return uint(mathbits.TrailingZeros32(uint32(x)))
}

// saturateWasted caps the wasted bits-per-sample so that at least one
// significant bit remains.
func (enc *Encoder) saturateWasted(wasted uint) uint {
	if wasted >= uint(enc.BitsPerSample) {
		return uint(enc.BitsPerSample) - 1
	}
	return wasted
}

// The analyze methods scan one channel of the current block in a single
// pass, detecting whether all samples are equal, counting the wasted
// bits-per-sample (the number of trailing zero bits shared by every
// sample), and loading the samples into the order-0 residual span.

func (enc *Encoder) analyzeInt16Planar(samples []int16) {
	var nonConstant uint16
	wasted := uint(16)
	res0 := enc.residuals[0]
	for i, sample := range samples {
		if w := wastedBitsInt16(sample); w < wasted {
			wasted = w
		}
		nonConstant |= uint16(sample) ^ uint16(samples[0])
		res0[i] = int64(sample)
	}
	enc.constant = nonConstant == 0
	enc.wasted = enc.saturateWasted(wasted)
}

func (enc *Encoder) analyzeInt16Interleaved(samples []int16, channel, n int) {
	var nonConstant uint16
	wasted := uint(16)
	res0 := enc.residuals[0]
	first := samples[channel]
	j := channel
	for i := 0; i < n; i++ {
		sample := samples[j]
		if w := wastedBitsInt16(sample); w < wasted {
			wasted = w
		}
		nonConstant |= uint16(sample) ^ uint16(first)
		res0[i] = int64(sample)
		j += enc.NChannels
	}
	enc.constant = nonConstant == 0
	enc.wasted = enc.saturateWasted(wasted)
}

func (enc *Encoder) analyzeInt32Planar(samples []int32) {
	var nonConstant uint32
	wasted := uint(32)
	res0 := enc.residuals[0]
	for i, sample := range samples {
		if w := wastedBitsInt32(sample); w < wasted {
			wasted = w
		}
		nonConstant |= uint32(sample) ^ uint32(samples[0])
		res0[i] = int64(sample)
	}
	enc.constant = nonConstant == 0
	enc.wasted = enc.saturateWasted(wasted)
}

func (enc *Encoder) analyzeInt32Interleaved(samples []int32, channel, n int) {
	var nonConstant uint32
	wasted := uint(32)
	res0 := enc.residuals[0]
	first := samples[channel]
	j := channel
	for i := 0; i < n; i++ {
		sample := samples[j]
		if w := wastedBitsInt32(sample); w < wasted {
			wasted = w
		}
		nonConstant |= uint32(sample) ^ uint32(first)
		res0[i] = int64(sample)
		j += enc.NChannels
	}
	enc.constant = nonConstant == 0
	enc.wasted = enc.saturateWasted(wasted)
}

// rescaleSamples strips the wasted bits off the order-0 residuals. The
// shift is exact since every sample carries at least that many trailing
// zeros. Constant channels are left untouched when constant subframes are
// enabled; the constant subframe stores the sample at full width.
func (enc *Encoder) rescaleSamples(n int) {
	if (enc.constant && !enc.DisableConstant) || enc.wasted == 0 {
		return
	}
	res0 := enc.residuals[0]
	for i := 0; i < n; i++ {
		res0[i] >>= enc.wasted
	}
}

// appendSampleLE appends the n least significant bytes of v in
// little-endian order.
func appendSampleLE(buf []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}

// The updateMD5 methods feed one block of samples to the running MD5 hash
// of the unencoded audio. Samples are serialized in sample-major order (all
// channels of sample 0, then sample 1, ...) as little-endian integers of
// the bit depth rounded up to whole bytes, matching the serialization FLAC
// decoders hash for verification. The block is staged in a scratch buffer
// so the hash sees a single Write per block.

func (enc *Encoder) updateMD5Int16Planar(samples [][]int16, n int) {
	nbytes := (enc.BitsPerSample + 7) / 8
	buf := enc.md5buf[:0]
	for i := 0; i < n; i++ {
		for c := range samples {
			buf = appendSampleLE(buf, uint64(samples[c][i]), nbytes)
		}
	}
	enc.md5sum.Write(buf)
}

func (enc *Encoder) updateMD5Int16Interleaved(samples []int16, n int) {
	nbytes := (enc.BitsPerSample + 7) / 8
	buf := enc.md5buf[:0]
	for i := 0; i < n*enc.NChannels; i++ {
		buf = appendSampleLE(buf, uint64(samples[i]), nbytes)
	}
	enc.md5sum.Write(buf)
}

func (enc *Encoder) updateMD5Int32Planar(samples [][]int32, n int) {
	nbytes := (enc.BitsPerSample + 7) / 8
	buf := enc.md5buf[:0]
	for i := 0; i < n; i++ {
		for c := range samples {
			buf = appendSampleLE(buf, uint64(samples[c][i]), nbytes)
		}
	}
	enc.md5sum.Write(buf)
}

func (enc *Encoder) updateMD5Int32Interleaved(samples []int32, n int) {
	nbytes := (enc.BitsPerSample + 7) / 8
	buf := enc.md5buf[:0]
	for i := 0; i < n*enc.NChannels; i++ {
		buf = appendSampleLE(buf, uint64(samples[i]), nbytes)
	}
	enc.md5sum.Write(buf)
}
