package column

import (
	"fmt"
	"io"
	"time"

	"github.com/cstablefmt/cstable-go/encoding/bitpacked"
	"github.com/cstablefmt/cstable-go/encoding/leb128"
	"github.com/cstablefmt/cstable-go/encoding/plain"
	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// valueDecoder is the minimal shape a Reader needs from any of the seven
// value-stream decoders: EOF/Rewind for stream control, plus one typed Read
// method that the per-type decoder switch below calls directly.
type valueDecoder interface {
	EOF() bool
	Rewind()
}

// Reader is the read side of a column: it walks the rlvl/dlvl/value
// triples in order, exposing them one at a time. Two Readers can be built
// over the same pagemgr.Manager (one per concurrent private scan position,
// per spec.md §5's shared-vs-private distinction); each owns an independent
// in-memory copy of the decoded streams, so they never interfere.
type Reader struct {
	config format.ColumnConfig

	rlvl *bitpacked.Reader // nil when RLevelMax == 0 (rlvl is always implicitly 0)
	dlvl *bitpacked.Reader // nil when DLevelMax == 0 (dlvl is always implicitly 0)

	boolR   *plain.BoolReader
	bpValue *bitpacked.Reader
	u32R    *plain.Uint32Reader
	u64R    *plain.Uint64Reader
	lebR    *leb128.Reader
	f64R    *plain.Float64Reader
	strR    *plain.BytesReader

	triples int // total number of triples in the stream (== rlvl/dlvl count, or value count if no levels)
	pos     int
}

// NewReader constructs a column reader by reading every page of config's
// three streams out of pm into memory. Building two Readers from the same
// pm gives each an independent cursor, so callers wanting one read pass at
// a time can share a single Reader instead of building a private one.
func NewReader(config format.ColumnConfig, pm *pagemgr.Manager) (*Reader, error) {
	r := &Reader{config: config}

	if config.RLevelMax > 0 {
		data, count, err := pm.ReadAll(format.PageIndexKey{ColumnID: config.ColumnID, EntryType: format.RLEVEL})
		if err != nil {
			return nil, fmt.Errorf("column %q: reading rlevel stream: %w", config.Name, err)
		}
		r.rlvl = bitpacked.NewReader(data, levelWidth(config.RLevelMax), count)
		r.triples = count
	}
	if config.DLevelMax > 0 {
		data, count, err := pm.ReadAll(format.PageIndexKey{ColumnID: config.ColumnID, EntryType: format.DLEVEL})
		if err != nil {
			return nil, fmt.Errorf("column %q: reading dlevel stream: %w", config.Name, err)
		}
		r.dlvl = bitpacked.NewReader(data, levelWidth(config.DLevelMax), count)
		if r.rlvl == nil {
			r.triples = count
		}
	}

	data, count, err := pm.ReadAll(format.PageIndexKey{ColumnID: config.ColumnID, EntryType: format.VALUES})
	if err != nil {
		return nil, fmt.Errorf("column %q: reading value stream: %w", config.Name, err)
	}
	switch config.StorageType {
	case format.BOOLEAN_BITPACKED:
		r.boolR = plain.NewBoolReader(data, count)
	case format.UINT32_BITPACKED:
		r.bpValue = bitpacked.NewReader(data, uint(config.ValueBits), count)
	case format.UINT32_PLAIN:
		r.u32R = plain.NewUint32Reader(data, count)
	case format.UINT64_PLAIN:
		r.u64R = plain.NewUint64Reader(data, count)
	case format.UINT64_LEB128:
		r.lebR = leb128.NewReader(data, count)
	case format.FLOAT_IEEE754:
		r.f64R = plain.NewFloat64Reader(data, count)
	case format.STRING_PLAIN:
		r.strR = plain.NewBytesReader(data, count)
	default:
		return nil, fmt.Errorf("column %q: unsupported storage type %s", config.Name, config.StorageType)
	}
	if r.rlvl == nil && r.dlvl == nil {
		r.triples = count
	}
	return r, nil
}

// Config returns the column's configuration.
func (r *Reader) Config() format.ColumnConfig { return r.config }

// Type returns the column's logical type.
func (r *Reader) Type() format.LogicalType { return r.config.LogicalType }

// Encoding returns the column's on-disk value storage type.
func (r *Reader) Encoding() format.StorageType { return r.config.StorageType }

// EOF reports whether every triple has been consumed.
func (r *Reader) EOF() bool { return r.pos >= r.triples }

// Rewind resets the read cursor to the first triple.
func (r *Reader) Rewind() {
	r.pos = 0
	if r.rlvl != nil {
		r.rlvl.Rewind()
	}
	if r.dlvl != nil {
		r.dlvl.Rewind()
	}
	switch r.config.StorageType {
	case format.BOOLEAN_BITPACKED:
		r.boolR.Rewind()
	case format.UINT32_BITPACKED:
		r.bpValue.Rewind()
	case format.UINT32_PLAIN:
		r.u32R.Rewind()
	case format.UINT64_PLAIN:
		r.u64R.Rewind()
	case format.UINT64_LEB128:
		r.lebR.Rewind()
	case format.FLOAT_IEEE754:
		r.f64R.Rewind()
	case format.STRING_PLAIN:
		r.strR.Rewind()
	}
}

// Peek returns the rlvl/dlvl of the next triple without advancing the
// cursor, or consuming the value stream.
func (r *Reader) Peek() (rlvl, dlvl uint8, err error) {
	if r.EOF() {
		return 0, 0, io.EOF
	}
	if r.rlvl != nil {
		v, err := r.rlvl.Peek()
		if err != nil {
			return 0, 0, err
		}
		rlvl = uint8(v)
	}
	if r.dlvl != nil {
		v, err := r.dlvl.Peek()
		if err != nil {
			return 0, 0, err
		}
		dlvl = uint8(v)
	}
	return rlvl, dlvl, nil
}

func (r *Reader) present(dlvl uint8) bool { return dlvl == r.config.DLevelMax }

// Next returns the next triple: rlvl, dlvl, the decoded value (nil when
// the value is absent, i.e. dlvl < dlevel_max), and ok=false once EOF is
// reached.
func (r *Reader) Next() (rlvl, dlvl uint8, value interface{}, ok bool, err error) {
	if r.EOF() {
		return 0, 0, nil, false, nil
	}
	if r.rlvl != nil {
		v, err := r.rlvl.Read()
		if err != nil {
			r.pos = r.triples
			return 0, 0, nil, false, fmt.Errorf("column %q: reading rlevel: %w", r.config.Name, err)
		}
		rlvl = uint8(v)
	}
	if r.dlvl != nil {
		v, err := r.dlvl.Read()
		if err != nil {
			r.pos = r.triples
			return 0, 0, nil, false, fmt.Errorf("column %q: reading dlevel: %w", r.config.Name, err)
		}
		dlvl = uint8(v)
	}
	r.pos++

	if !r.present(dlvl) {
		return rlvl, dlvl, nil, true, nil
	}

	value, err = r.readValue()
	if err != nil {
		r.pos = r.triples
		return 0, 0, nil, false, fmt.Errorf("column %q: reading value: %w", r.config.Name, err)
	}
	return rlvl, dlvl, value, true, nil
}

func (r *Reader) readValue() (interface{}, error) {
	switch r.config.StorageType {
	case format.BOOLEAN_BITPACKED:
		return r.boolR.Read()
	case format.UINT32_BITPACKED:
		v, err := r.bpValue.Read()
		return r.typedUnsigned(uint64(v)), err
	case format.UINT32_PLAIN:
		v, err := r.u32R.Read()
		return r.typedUnsigned(uint64(v)), err
	case format.UINT64_PLAIN:
		v, err := r.u64R.Read()
		return r.typedUnsigned(v), err
	case format.UINT64_LEB128:
		v, err := r.lebR.Read()
		return r.typedUnsigned(v), err
	case format.FLOAT_IEEE754:
		return r.f64R.Read()
	case format.STRING_PLAIN:
		b, err := r.strR.Read()
		return string(b), err
	default:
		return nil, fmt.Errorf("column %q: unsupported storage type %s", r.config.Name, r.config.StorageType)
	}
}

// typedUnsigned interprets a raw unsigned word according to the column's
// logical type: signed columns carry their values zigzag-encoded, datetime
// columns carry a microsecond epoch timestamp, and everything else is a
// plain uint64.
func (r *Reader) typedUnsigned(v uint64) interface{} {
	switch r.config.LogicalType {
	case format.SIGNED_INT:
		return int64(v>>1) ^ -int64(v&1)
	case format.DATETIME:
		return time.UnixMicro(int64(v))
	default:
		return v
	}
}
