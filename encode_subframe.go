package flacenc

import (
	"github.com/pkg/errors"

	"github.com/mewkiz/flacenc/internal/bits"
)

// errFixedRejected reports that a FIXED subframe attempt was abandoned,
// either because no predictor order qualified or because the Rice coded
// output exceeded the verbatim bound. The attempt is rolled back and the
// subframe is encoded verbatim instead.
var errFixedRejected = errors.New("flacenc: fixed subframe rejected")

// --- [ Subframe ] ------------------------------------------------------------

// encodeSubframe encodes the analyzed channel as a subframe, trying
// CONSTANT, then FIXED, then VERBATIM. The bit writer is snapshot before
// each speculative attempt and restored on failure.
func (enc *Encoder) encodeSubframe(channel int) error {
	state := enc.bw.State()

	if !enc.DisableConstant && enc.constant {
		if err := enc.encodeSubframeConstant(); err == nil {
			enc.subframeTypeCounts[channel][SubframeConstant]++
			return nil
		}
		enc.bw.Restore(state)
	}

	if !enc.DisableFixed {
		enc.calcFixedResiduals()
		if err := enc.encodeSubframeFixed(); err == nil {
			enc.subframeTypeCounts[channel][SubframeFixed]++
			return nil
		}
		enc.bw.Restore(state)
	}

	if err := enc.encodeSubframeVerbatim(); err != nil {
		return err
	}
	enc.subframeTypeCounts[channel][SubframeVerbatim]++
	return nil
}

// --- [ Subframe header ] -----------------------------------------------------

// writeSubframeHeader encodes a subframe header, writing to the frame's bit
// writer.
//
// Subframe header format (pseudo code):
//
//	type SUBFRAME_HEADER struct {
//	   _                uint1 // zero-padding, to prevent sync-fooling.
//	   type             uint6
//	   // 0: no wasted bits-per-sample in source subblock, k = 0.
//	   // 1: k wasted bits-per-sample in source subblock, k-1 follows, unary
//	   // coded; e.g. k=3 => 001 follows, k=7 => 0000001 follows.
//	   wasted_bit_count uint1+k
//	}
//
// ref: https://www.xiph.org/flac/format.html#subframe_header
func (enc *Encoder) writeSubframeHeader(typeBits uint64, wasted uint) error {
	// Zero bit padding, to prevent sync-fooling string of 1s.
	if err := enc.bw.WriteBits(0x0, 1); err != nil {
		return err
	}

	// Subframe type:
	//    000000 : SUBFRAME_CONSTANT
	//    000001 : SUBFRAME_VERBATIM
	//    001xxx : if(xxx <= 4) SUBFRAME_FIXED, xxx=order ; else reserved
	//    1xxxxx : SUBFRAME_LPC, xxxxx=order-1
	if err := enc.bw.WriteBits(typeBits, 6); err != nil {
		return err
	}

	// Wasted bits-per-sample flag, and if set the count follows, unary
	// coded as count-1.
	if wasted == 0 {
		if err := enc.bw.WriteBits(0x0, 1); err != nil {
			return err
		}
		return nil
	}
	if err := enc.bw.WriteBits(0x1, 1); err != nil {
		return err
	}
	if err := enc.bw.WriteUnary(uint64(wasted - 1)); err != nil {
		return err
	}
	return nil
}

// --- [ Constant subframe ] ---------------------------------------------------

// encodeSubframeConstant stores the channel's single repeated sample value.
// The value is written at full bit depth with the wasted-bits flag cleared;
// stripping trailing zeros and shifting the stored value back would cancel
// out, so neither is performed.
//
// ref: https://www.xiph.org/flac/format.html#subframe_constant
func (enc *Encoder) encodeSubframeConstant() error {
	if err := enc.writeSubframeHeader(0x00, 0); err != nil {
		return err
	}
	// Unencoded constant value of the subblock, n = frame's bits-per-sample.
	if err := enc.bw.WriteBits(uint64(enc.residuals[0][0]), uint(enc.BitsPerSample)); err != nil {
		return err
	}
	return nil
}

// --- [ Verbatim subframe ] ---------------------------------------------------

// encodeSubframeVerbatim stores the channel's samples as-is, each at
// bits-per-sample minus wasted bits. Fails only when the output buffer runs
// out of room.
//
// ref: https://www.xiph.org/flac/format.html#subframe_verbatim
func (enc *Encoder) encodeSubframeVerbatim() error {
	if err := enc.writeSubframeHeader(0x01, enc.wasted); err != nil {
		return err
	}
	// Unencoded subblock; n = frame's bits-per-sample, i = frame's
	// blocksize.
	width := uint(enc.BitsPerSample) - enc.wasted
	res0 := enc.residuals[0]
	for i := 0; i < enc.curBlockSize; i++ {
		if err := enc.bw.WriteBits(uint64(res0[i]), width); err != nil {
			return err
		}
	}
	return nil
}

// --- [ Fixed subframe ] ------------------------------------------------------

// encodeSubframeFixed picks the fixed predictor order with the smallest
// summed absolute error and encodes the channel with Rice coded residuals.
// It fails with errFixedRejected when no order qualifies, leaving the
// caller to fall back to verbatim.
//
// ref: https://www.xiph.org/flac/format.html#subframe_fixed
func (enc *Encoder) encodeSubframeFixed() error {
	// Partitioning splits off blocksize/2^partOrder samples per partition,
	// and the first partition also loses the warm-up samples, so high
	// orders are off the table for short partitions.
	maxOrder := 4
	for enc.curBlockSize>>enc.partOrder <= maxOrder {
		maxOrder--
	}

	order := -1
	best := uint64(unusableOrder)
	for i := 0; i <= maxOrder; i++ {
		if enc.residualErrs[i] < best {
			best = enc.residualErrs[i]
			order = i
		}
	}
	if order < 0 {
		return errFixedRejected
	}
	return enc.encodeResiduals(order, enc.partOrder)
}

// encodeResiduals emits a complete FIXED subframe: header, warm-up samples,
// residual coding method, and 2^partOrder Rice partitions. If the emitted
// bytes exceed what a verbatim subframe would take, the attempt is
// rejected.
//
// ref: https://www.xiph.org/flac/format.html#partitioned_rice
// ref: https://www.xiph.org/flac/format.html#partitioned_rice2
func (enc *Encoder) encodeResiduals(order, partOrder int) error {
	start := enc.bw.Len()

	if err := enc.writeSubframeHeader(0x08|uint64(order), enc.wasted); err != nil {
		return err
	}

	// Unencoded warm-up samples; n = frame's bits-per-sample.
	width := uint(enc.BitsPerSample) - enc.wasted
	res0 := enc.residuals[0]
	for i := 0; i < order; i++ {
		if err := enc.bw.WriteBits(uint64(res0[i]), width); err != nil {
			return err
		}
	}

	// 2 bits: Residual coding method.
	//    00: Rice coding with a 4-bit Rice parameter.
	//    01: Rice coding with a 5-bit Rice parameter.
	paramSize := uint(4)
	method := uint64(0)
	if enc.MaxRiceParam > 14 {
		paramSize = 5
		method = 1
	}
	if err := enc.bw.WriteBits(method, 2); err != nil {
		return err
	}

	// 4 bits: Partition order.
	if err := enc.bw.WriteBits(uint64(partOrder), 4); err != nil {
		return err
	}

	// In total 2^partOrder partitions, each with its own Rice parameter.
	res := enc.residuals[order]
	offset := 0
	for i := 0; i < 1<<partOrder; i++ {
		partLen := enc.curBlockSize >> partOrder
		if i == 0 {
			partLen -= order
		}

		var sum uint64
		for j := 0; j < partLen; j++ {
			sum += abs64(res[offset+j])
		}

		// The smallest Rice parameter whose implied per-sample cost covers
		// the partition's error sum, capped at the configured maximum.
		param := uint(0)
		for uint64(partLen)<<(param+1) < sum {
			if param == uint(enc.MaxRiceParam) {
				break
			}
			param++
		}

		// (4 or 5) bits: Rice parameter.
		if err := enc.bw.WriteBits(uint64(param), paramSize); err != nil {
			return err
		}

		// Rice encode the partition's residuals: zig-zag fold, then unary
		// coded high bits and param binary low bits.
		for j := 0; j < partLen; j++ {
			folded := bits.EncodeZigZag(res[offset+j])
			if err := enc.bw.WriteUnary(folded >> param); err != nil {
				return err
			}
			if err := enc.bw.WriteBits(folded, param); err != nil {
				return err
			}
		}

		offset += partLen
	}

	if enc.bw.Len()-start > enc.verbatimLen {
		// Rice coding lost to plain storage; reject so the caller reverts.
		return errFixedRejected
	}
	return nil
}
