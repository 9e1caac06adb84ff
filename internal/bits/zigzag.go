package bits

// DecodeZigZag decodes a ZigZag encoded integer and returns it.
//
// Examples of ZigZag encoded values on the left and decoded values on the
// right:
//
//	0 =>  0
//	1 => -1
//	2 =>  1
//	3 => -2
//	4 =>  2
//	5 => -3
//	6 =>  3
//
// ref: https://developers.google.com/protocol-buffers/docs/encoding
func DecodeZigZag(x uint64) int64 {
	return int64(x>>1) ^ -int64(x&1)
}

// EncodeZigZag encodes a given integer to ZigZag-encoding. The argument is
// 64-bit wide since residuals are stored as int64; encoding a value that
// fits in 32 bits yields a result that fits in 33.
//
// Examples of integer input on the left and corresponding ZigZag encoded
// values on the right:
//
//	 0 => 0
//	-1 => 1
//	 1 => 2
//	-2 => 3
//	 2 => 4
//	-3 => 5
//	 3 => 6
//
// ref: https://developers.google.com/protocol-buffers/docs/encoding
func EncodeZigZag(x int64) uint64 {
	if x < 0 {
		x = -x
		return uint64(x)<<1 - 1
	}
	return uint64(x) << 1
}
