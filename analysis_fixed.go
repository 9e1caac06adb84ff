package flacenc

import "math"

// unusableOrder marks a predictor order whose residuals cannot be Rice
// coded, either because the block is too short or because a residual falls
// outside the signed 32-bit range the format requires.
const unusableOrder = math.MaxUint64

// calcFixedResiduals computes, from the order-0 residuals loaded by the
// analyzer, the fixed-predictor residuals for orders 1 through 4 using the
// standard forward differences:
//
//	order 1: r[i] = s[i] - s[i-1]
//	order 2: r[i] = s[i] - 2*s[i-1] + s[i-2]
//	order 3: r[i] = s[i] - 3*s[i-1] + 3*s[i-2] - s[i-3]
//	order 4: r[i] = s[i] - 4*s[i-1] + 6*s[i-2] - 4*s[i-3] + s[i-4]
//
// Order-k residuals occupy positions 0 through blocksize-k-1 of the order-k
// span. The summed absolute errors, the metric the subframe encoder ranks
// orders by, accumulate from inter-channel sample 4 onward so that all five
// orders are compared over the same sample window.
func (enc *Encoder) calcFixedResiduals() {
	n := enc.curBlockSize
	res0 := enc.residuals[0]
	res1 := enc.residuals[1]
	res2 := enc.residuals[2]
	res3 := enc.residuals[3]
	res4 := enc.residuals[4]

	for i := range enc.residualErrs {
		enc.residualErrs[i] = 0
	}
	if n < 5 {
		// No higher-order residuals to speak of.
		enc.residualErrs[1] = unusableOrder
		enc.residualErrs[2] = unusableOrder
		enc.residualErrs[3] = unusableOrder
		enc.residualErrs[4] = unusableOrder
		return
	}

	// The first few residuals of orders 1 through 3, before order 4 kicks
	// in.
	res1[0] = res0[1] - res0[0]

	res1[1] = res0[2] - res0[1]
	res2[0] = res0[2] - 2*res0[1] + res0[0]

	res1[2] = res0[3] - res0[2]
	res2[1] = res0[3] - 2*res0[2] + res0[1]
	res3[0] = res0[3] - 3*res0[2] + 3*res0[1] - res0[0]

	for i := 4; i < n; i++ {
		res1[i-1] = res0[i] - res0[i-1]
		res2[i-2] = res0[i] - 2*res0[i-1] + res0[i-2]
		res3[i-3] = res0[i] - 3*res0[i-1] + 3*res0[i-2] - res0[i-3]
		res4[i-4] = res0[i] - 4*res0[i-1] + 6*res0[i-2] - 4*res0[i-3] + res0[i-4]

		enc.residualErrs[0] += abs64(res0[i])
		enc.residualErrs[1] += abs64(res1[i-1])
		enc.residualErrs[2] += abs64(res2[i-2])
		enc.residualErrs[3] += abs64(res3[i-3])
		enc.residualErrs[4] += abs64(res4[i-4])
	}

	// Every residual must fit the format's signed 32-bit residual field.
	// Each predictor order widens the worst case by one bit, so for bit
	// depths of 29 and above some orders must be range checked and, if any
	// residual escapes, disqualified. The interval is open at the low end:
	// the zig-zag image of INT32_MIN itself does not fit.
	var minCheckOrder int
	switch enc.BitsPerSample {
	case 32:
		minCheckOrder = 0
	case 31:
		minCheckOrder = 2
	case 30:
		minCheckOrder = 3
	case 29:
		minCheckOrder = 4
	default:
		return
	}
	for order := minCheckOrder; order < 5; order++ {
		res := enc.residuals[order]
		for i := 0; i < n-order; i++ {
			if res[i] > math.MaxInt32 || res[i] <= math.MinInt32 {
				enc.residualErrs[order] = unusableOrder
				break
			}
		}
	}
}

// abs64 returns |x| as an unsigned value; well defined for all inputs
// including math.MinInt64.
func abs64(x int64) uint64 {
	if x < 0 {
		return -uint64(x)
	}
	return uint64(x)
}
