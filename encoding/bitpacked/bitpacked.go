// Package bitpacked implements the fixed-width group encoding used for
// UINT32_BITPACKED column storage, and for the repetition/definition level
// streams that every column with a nonzero
// rlevel_max or dlevel_max carries.
//
// Values are packed in groups of 128 at a fixed bit width ("maxbits" in
// spec.md terms). The writer flushes a group as soon as it fills; the
// final, possibly partial, group is zero-padded on Flush. This mirrors
// BitPackedIntPageReader/Writer from the original cstable implementation
// (page_reader_bitpacked.h), generalized to also serve as the encoder.
package bitpacked

import (
	"fmt"
	"io"

	"github.com/cstablefmt/cstable-go/internal/bits"
)

// GroupSize is the number of values packed into one group.
const GroupSize = 128

// Width returns the number of bits needed to represent every value in
// [0, maxValue], i.e. spec.md's "maxbits = ceil(log2(max_value+1))".
func Width(maxValue uint32) uint {
	if maxValue == 0 {
		return 0
	}
	return uint(bits.MaxLen32([]uint32{maxValue}))
}

// GroupByteLength returns the encoded size in bytes of one full group at
// the given bit width.
func GroupByteLength(width uint) int {
	return bits.ByteCount(width * GroupSize)
}

// Writer packs uint32 values into fixed-width groups of 128 and appends
// the packed bytes of each completed group to an accumulating buffer.
type Writer struct {
	width uint
	group [GroupSize]uint32
	n     int
	buf   []byte
}

// NewWriter returns a Writer that packs every value to the given bit width.
func NewWriter(width uint) *Writer {
	return &Writer{width: width}
}

// Write buffers one value, packing and appending the group to the internal
// buffer as soon as it fills. Call Bytes to retrieve everything packed so
// far, or Flush to finalize a trailing partial group.
func (w *Writer) Write(v uint32) {
	w.group[w.n] = v
	w.n++
	if w.n == GroupSize {
		w.packGroup(GroupSize)
		w.n = 0
	}
}

func (w *Writer) packGroup(n int) {
	if w.width == 0 {
		return
	}
	src := make([]byte, 4*GroupSize)
	for i := 0; i < n; i++ {
		src[4*i+0] = byte(w.group[i])
		src[4*i+1] = byte(w.group[i] >> 8)
		src[4*i+2] = byte(w.group[i] >> 16)
		src[4*i+3] = byte(w.group[i] >> 24)
	}
	dst := make([]byte, GroupByteLength(w.width))
	bits.Pack(dst, w.width, src[:4*n], 32)
	w.buf = append(w.buf, dst...)
}

// Bytes returns every complete group packed so far. The slice is retained
// by the writer; callers that cut a page at this boundary should copy it.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset clears the accumulated buffer, e.g. after a page cut.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// Pending returns the number of values buffered in the current, not yet
// flushed, partial group.
func (w *Writer) Pending() int { return w.n }

// Flush zero-pads and packs the trailing partial group, if any, appending
// it to the buffer, then returns everything accumulated.
func (w *Writer) Flush() []byte {
	if w.n > 0 {
		for i := w.n; i < GroupSize; i++ {
			w.group[i] = 0
		}
		w.packGroup(w.n)
		w.n = 0
	}
	return w.buf
}

// Reader decodes a stream of groups packed by Writer. It holds the whole
// encoded stream in memory (possibly spanning several on-disk pages
// concatenated by the caller) so that rewind and peek are simple cursor
// resets, matching the "crossing a page boundary is transparent" rule in
// spec.md §4.4.
type Reader struct {
	data   []byte
	width  uint
	count  int // total number of logical values in data
	pos    int
	group  [GroupSize]uint32
	gStart int // index of first value currently loaded in group
	gLen   int // number of valid values in group
}

// NewReader constructs a Reader over data, which must hold exactly count
// logical values packed at the given bit width (the final group may be
// zero-padded past count).
func NewReader(data []byte, width uint, count int) *Reader {
	return &Reader{data: data, width: width, count: count}
}

func (r *Reader) fetchGroup(groupIndex int) error {
	if r.width == 0 {
		return nil
	}
	byteLen := GroupByteLength(r.width)
	off := groupIndex * byteLen
	if off+byteLen > len(r.data) {
		return fmt.Errorf("bitpacked: truncated group at byte offset %d: %w", off, io.ErrUnexpectedEOF)
	}
	dst := make([]byte, 4*GroupSize)
	bits.Unpack(dst, 32, r.data[off:off+byteLen], r.width)
	for i := 0; i < GroupSize; i++ {
		r.group[i] = uint32(dst[4*i]) | uint32(dst[4*i+1])<<8 | uint32(dst[4*i+2])<<16 | uint32(dst[4*i+3])<<24
	}
	r.gStart = groupIndex * GroupSize
	r.gLen = GroupSize
	return nil
}

func (r *Reader) valueAt(pos int) (uint32, error) {
	if r.width == 0 {
		return 0, nil
	}
	groupIndex := pos / GroupSize
	if pos < r.gStart || pos >= r.gStart+r.gLen {
		if err := r.fetchGroup(groupIndex); err != nil {
			return 0, err
		}
	}
	return r.group[pos-r.gStart], nil
}

// Read returns the next value and advances the cursor.
func (r *Reader) Read() (uint32, error) {
	v, err := r.Peek()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// Peek returns the next value without advancing the cursor.
func (r *Reader) Peek() (uint32, error) {
	if r.EOF() {
		return 0, io.EOF
	}
	return r.valueAt(r.pos)
}

// EOF reports whether every value has been read.
func (r *Reader) EOF() bool { return r.pos >= r.count }

// Rewind resets the cursor to the start of the stream.
func (r *Reader) Rewind() { r.pos = 0 }
