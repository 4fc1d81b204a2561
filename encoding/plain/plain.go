// Package plain implements the fixed-width and length-prefixed column
// storage types that need no further compression: UINT32_PLAIN,
// UINT64_PLAIN, FLOAT_IEEE754, BOOLEAN_BITPACKED (1 bit per value, LSB
// first), and STRING_PLAIN (LEB128 length prefix followed by raw bytes).
//
// The Append* functions and the Reader type follow the push-encoder /
// pull-decoder shape of github.com/segmentio/parquet-go/encoding/plain,
// generalized from Parquet's PLAIN encoding to cstable's smaller type set.
package plain

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cstablefmt/cstable-go/encoding/leb128"
)

// AppendUint32 appends the little-endian encoding of v to b.
func AppendUint32(b []byte, v uint32) []byte {
	var x [4]byte
	binary.LittleEndian.PutUint32(x[:], v)
	return append(b, x[:]...)
}

// AppendUint64 appends the little-endian encoding of v to b.
func AppendUint64(b []byte, v uint64) []byte {
	var x [8]byte
	binary.LittleEndian.PutUint64(x[:], v)
	return append(b, x[:]...)
}

// AppendFloat64 appends the little-endian IEEE 754 encoding of v to b.
func AppendFloat64(b []byte, v float64) []byte {
	var x [8]byte
	binary.LittleEndian.PutUint64(x[:], math.Float64bits(v))
	return append(b, x[:]...)
}

// AppendBytes appends the LEB128 length prefix and raw bytes of v to b.
func AppendBytes(b []byte, v []byte) []byte {
	b = leb128.AppendUint64(b, uint64(len(v)))
	return append(b, v...)
}

// Uint32Reader decodes a fixed-width run of little-endian uint32 values.
type Uint32Reader struct {
	data  []byte
	count int
	pos   int
}

func NewUint32Reader(data []byte, count int) *Uint32Reader {
	return &Uint32Reader{data: data, count: count}
}

func (r *Uint32Reader) EOF() bool    { return r.pos >= r.count }
func (r *Uint32Reader) Rewind()      { r.pos = 0 }
func (r *Uint32Reader) at(i int) (uint32, error) {
	off := i * 4
	if off+4 > len(r.data) {
		return 0, fmt.Errorf("plain: truncated UINT32_PLAIN page: %w", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint32(r.data[off:]), nil
}
func (r *Uint32Reader) Peek() (uint32, error) {
	if r.EOF() {
		return 0, io.EOF
	}
	return r.at(r.pos)
}
func (r *Uint32Reader) Read() (uint32, error) {
	v, err := r.Peek()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// Uint64Reader decodes a fixed-width run of little-endian uint64 values.
type Uint64Reader struct {
	data  []byte
	count int
	pos   int
}

func NewUint64Reader(data []byte, count int) *Uint64Reader {
	return &Uint64Reader{data: data, count: count}
}

func (r *Uint64Reader) EOF() bool { return r.pos >= r.count }
func (r *Uint64Reader) Rewind()   { r.pos = 0 }
func (r *Uint64Reader) at(i int) (uint64, error) {
	off := i * 8
	if off+8 > len(r.data) {
		return 0, fmt.Errorf("plain: truncated UINT64_PLAIN page: %w", io.ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(r.data[off:]), nil
}
func (r *Uint64Reader) Peek() (uint64, error) {
	if r.EOF() {
		return 0, io.EOF
	}
	return r.at(r.pos)
}
func (r *Uint64Reader) Read() (uint64, error) {
	v, err := r.Peek()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// Float64Reader decodes a fixed-width run of little-endian IEEE 754 values.
type Float64Reader struct {
	data  []byte
	count int
	pos   int
}

func NewFloat64Reader(data []byte, count int) *Float64Reader {
	return &Float64Reader{data: data, count: count}
}

func (r *Float64Reader) EOF() bool { return r.pos >= r.count }
func (r *Float64Reader) Rewind()   { r.pos = 0 }
func (r *Float64Reader) at(i int) (float64, error) {
	off := i * 8
	if off+8 > len(r.data) {
		return 0, fmt.Errorf("plain: truncated FLOAT_IEEE754 page: %w", io.ErrUnexpectedEOF)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(r.data[off:])), nil
}
func (r *Float64Reader) Peek() (float64, error) {
	if r.EOF() {
		return 0, io.EOF
	}
	return r.at(r.pos)
}
func (r *Float64Reader) Read() (float64, error) {
	v, err := r.Peek()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// BytesReader decodes a run of LEB128 length-prefixed byte strings.
type BytesReader struct {
	data  []byte
	count int
	pos   int
	n     int
}

func NewBytesReader(data []byte, count int) *BytesReader {
	return &BytesReader{data: data, count: count}
}

func (r *BytesReader) EOF() bool { return r.n >= r.count }
func (r *BytesReader) Rewind()   { r.pos = 0; r.n = 0 }

func (r *BytesReader) at(pos int) ([]byte, int, error) {
	n, shift := uint64(0), uint(0)
	i := pos
	for {
		if i >= len(r.data) {
			return nil, 0, fmt.Errorf("plain: truncated STRING_PLAIN length prefix: %w", io.ErrUnexpectedEOF)
		}
		c := r.data[i]
		n |= uint64(c&0x7f) << shift
		i++
		if c&0x80 == 0 {
			break
		}
		shift += 7
	}
	end := i + int(n)
	if end > len(r.data) {
		return nil, 0, fmt.Errorf("plain: truncated STRING_PLAIN value: %w", io.ErrUnexpectedEOF)
	}
	return r.data[i:end], end - pos, nil
}

func (r *BytesReader) Peek() ([]byte, error) {
	if r.EOF() {
		return nil, io.EOF
	}
	v, _, err := r.at(r.pos)
	return v, err
}

func (r *BytesReader) Read() ([]byte, error) {
	if r.EOF() {
		return nil, io.EOF
	}
	v, n, err := r.at(r.pos)
	if err != nil {
		return nil, err
	}
	r.pos += n
	r.n++
	return v, nil
}

// BoolReader decodes a bitmap of booleans, one bit per value, LSB first
// within each byte.
type BoolReader struct {
	data  []byte
	count int
	pos   int
}

func NewBoolReader(data []byte, count int) *BoolReader {
	return &BoolReader{data: data, count: count}
}

func (r *BoolReader) EOF() bool { return r.pos >= r.count }
func (r *BoolReader) Rewind()   { r.pos = 0 }
func (r *BoolReader) at(i int) (bool, error) {
	byteIndex, bit := i/8, uint(i%8)
	if byteIndex >= len(r.data) {
		return false, fmt.Errorf("plain: truncated BOOLEAN_BITPACKED page: %w", io.ErrUnexpectedEOF)
	}
	return (r.data[byteIndex]>>bit)&1 != 0, nil
}
func (r *BoolReader) Peek() (bool, error) {
	if r.EOF() {
		return false, io.EOF
	}
	return r.at(r.pos)
}
func (r *BoolReader) Read() (bool, error) {
	v, err := r.Peek()
	if err != nil {
		return false, err
	}
	r.pos++
	return v, nil
}

// BoolWriter accumulates a bitmap of booleans, one bit per value, LSB first.
type BoolWriter struct {
	buf []byte
	n   int
}

func (w *BoolWriter) Write(v bool) {
	byteIndex, bit := w.n/8, uint(w.n%8)
	for len(w.buf) <= byteIndex {
		w.buf = append(w.buf, 0)
	}
	if v {
		w.buf[byteIndex] |= 1 << bit
	}
	w.n++
}

func (w *BoolWriter) Bytes() []byte { return w.buf }
func (w *BoolWriter) Reset()        { w.buf = w.buf[:0]; w.n = 0 }
