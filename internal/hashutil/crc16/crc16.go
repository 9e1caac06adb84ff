// Package crc16 implements the 16-bit cyclic redundancy check, or CRC-16,
// checksum. See https://en.wikipedia.org/wiki/Cyclic_redundancy_check for
// information.
package crc16

import "github.com/mewkiz/flacenc/internal/hashutil"

// Size of a CRC-16 checksum in bytes.
const Size = 2

// Predefined polynomials.
const (
	// IBM; used by the FLAC frame footer checksum. Note that FLAC feeds the
	// input most significant bit first, without reflection.
	//
	//    x^16 + x^15 + x^2 + x^0
	IBM = 0x8005
)

// Table is a 256-entry table representing the polynomial for efficient
// processing.
type Table [256]uint16

// IBMTable is the table for the IBM polynomial.
var IBMTable = makeTable(IBM)

// makeTable returns the Table constructed from the specified polynomial.
func makeTable(poly uint16) *Table {
	t := new(Table)
	for i := range t {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update returns the result of adding the bytes in p to the crc.
func Update(crc uint16, t *Table, p []byte) uint16 {
	for _, b := range p {
		crc = t[uint8(crc>>8)^b] ^ crc<<8
	}
	return crc
}

// UpdateByte returns the result of adding a single byte to the crc.
func UpdateByte(crc uint16, t *Table, b byte) uint16 {
	return t[uint8(crc>>8)^b] ^ crc<<8
}

// digest represents the partial evaluation of a checksum.
type digest struct {
	crc uint16
	t   *Table
}

// New creates a new hashutil.Hash16 computing the CRC-16 checksum using the
// polynomial represented by the Table.
func New(t *Table) hashutil.Hash16 {
	return &digest{crc: 0, t: t}
}

// NewIBM creates a new hashutil.Hash16 computing the CRC-16 checksum using
// the IBM polynomial.
func NewIBM() hashutil.Hash16 {
	return New(IBMTable)
}

func (d *digest) Size() int {
	return Size
}

func (d *digest) BlockSize() int {
	return 1
}

func (d *digest) Reset() {
	d.crc = 0
}

func (d *digest) Write(p []byte) (n int, err error) {
	d.crc = Update(d.crc, d.t, p)
	return len(p), nil
}

// Sum16 returns the 16-bit checksum of the hash.
func (d *digest) Sum16() uint16 {
	return d.crc
}

func (d *digest) Sum(in []byte) []byte {
	return append(in, byte(d.crc>>8), byte(d.crc))
}

// ChecksumIBM returns the CRC-16 checksum of data, using the IBM polynomial.
func ChecksumIBM(data []byte) uint16 {
	return Update(0, IBMTable, data)
}
