package cstable

import (
	"bytes"

	"github.com/cstablefmt/cstable-go/column"
	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// WriterState is one of the states of spec.md §4.8's table-writer state
// machine.
type WriterState int

const (
	StateOpen WriterState = iota
	StateFlushed
	StateCommitted
	StateClosed
)

func (s WriterState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateFlushed:
		return "FLUSHED"
	case StateCommitted:
		return "COMMITTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// TableWriter creates a new V2 cstable file: it owns the page manager, one
// column.Writer per configured column, and the double-buffered metablock
// slots that commit() alternates between.
type TableWriter struct {
	storage Storage
	pm      *pagemgr.Manager
	schema  Schema
	columns map[string]*column.Writer
	config  WriterConfig

	metaAOffset uint64
	metaBOffset uint64

	state     WriterState
	txID      uint64
	haveSlot  bool // false until the first commit has written a slot
	lastSlotA bool // true if slot A holds the most recent commit
	poisoned  bool
}

// CreateFile creates a new cstable file over storage, whose full extent is
// owned by the returned TableWriter (storage must be empty or its prior
// contents are overwritten starting at offset 0).
func CreateFile(storage Storage, schema Schema, options ...WriterOption) (*TableWriter, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	cfg := DefaultWriterConfig()
	cfg.Apply(options...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	headerLen, err := encodedHeaderLen(schema)
	if err != nil {
		return nil, wrapErr(IOError, "CreateFile", err)
	}
	metaA := uint64(headerLen)
	metaB := metaA + format.MetablockSize
	base := metaB + format.MetablockSize

	var buf bytes.Buffer
	if err := format.WriteHeader(&buf, buildHeader(schema, metaA, metaB)); err != nil {
		return nil, wrapErr(IOError, "CreateFile", err)
	}
	if _, err := storage.WriteAt(buf.Bytes(), 0); err != nil {
		return nil, wrapErr(IOError, "CreateFile", err)
	}

	pm := pagemgr.New(storage, base)
	columns := make(map[string]*column.Writer, len(schema))
	for _, c := range schema {
		cw, err := column.New(c, pm, cfg.TargetPageSize)
		if err != nil {
			return nil, wrapErr(UnsupportedEncoding, "CreateFile", err)
		}
		columns[c.Name] = cw
	}

	return &TableWriter{
		storage:     storage,
		pm:          pm,
		schema:      schema,
		columns:     columns,
		config:      *cfg,
		metaAOffset: metaA,
		metaBOffset: metaB,
		state:       StateOpen,
		txID:        cfg.TransactionIDSeed,
	}, nil
}

// Column returns the column writer for name. Valid only while the writer
// is in the OPEN state.
func (w *TableWriter) Column(name string) (*column.Writer, error) {
	if w.state != StateOpen {
		return nil, newErr(ArgumentError, "TableWriter.Column", "writer is not in the OPEN state: "+w.state.String())
	}
	cw, ok := w.columns[name]
	if !ok {
		return nil, newErr(NotFound, "TableWriter.Column", "no such column: "+name)
	}
	return cw, nil
}

// State returns the writer's current state machine position.
func (w *TableWriter) State() WriterState { return w.state }

// Commit flushes every column, validates the cross-column row-count
// invariant, and atomically publishes a new metablock. On INVARIANT_VIOLATION
// the writer returns to the OPEN state with the file unchanged, so the
// caller may correct the mismatch and retry (spec.md §8, scenario S6).
func (w *TableWriter) Commit() error {
	if w.poisoned {
		return newErr(IOError, "TableWriter.Commit", "writer is poisoned by a previous I/O error")
	}
	if w.state != StateOpen {
		return newErr(ArgumentError, "TableWriter.Commit", "writer is not in the OPEN state: "+w.state.String())
	}

	for name, cw := range w.columns {
		if err := cw.Flush(); err != nil {
			w.poisoned = true
			return wrapErr(IOError, "TableWriter.Commit: flush "+name, err)
		}
	}
	w.state = StateFlushed

	var numRows uint64
	first := true
	for _, c := range w.schema {
		cw := w.columns[c.Name]
		if !cw.SawAnyTriple() {
			continue
		}
		n := cw.NumRecordBoundaries()
		if n == 0 {
			w.state = StateOpen
			return newErr(InvariantViolation, "TableWriter.Commit",
				"column has triples but no rlvl==0 event: "+c.Name)
		}
		if first {
			numRows = n
			first = false
			continue
		}
		if n != numRows {
			w.state = StateOpen
			return newErr(InvariantViolation, "TableWriter.Commit",
				"row-count mismatch across columns: "+c.Name)
		}
	}

	for name, cw := range w.columns {
		if err := cw.Flush(); err != nil {
			w.poisoned = true
			return wrapErr(IOError, "TableWriter.Commit: flush "+name, err)
		}
	}
	w.state = StateFlushed

	entries := w.pm.Snapshot()
	var indexBuf bytes.Buffer
	if err := format.WritePageIndex(&indexBuf, entries); err != nil {
		w.poisoned = true
		return wrapErr(IOError, "TableWriter.Commit", err)
	}
	indexOffset, err := w.pm.Append(indexBuf.Bytes())
	if err != nil {
		w.poisoned = true
		return wrapErr(IOError, "TableWriter.Commit", err)
	}
	indexSize := uint64(indexBuf.Len())

	txID := w.txID + 1
	checksum := metablockChecksum(txID, numRows, indexOffset, indexSize, indexBuf.Bytes())
	mb := format.Metablock{
		TransactionID: txID,
		NumRows:       numRows,
		IndexOffset:   indexOffset,
		IndexSize:     indexSize,
		Checksum:      checksum,
	}

	// Alternate slots so the previously committed metablock stays intact
	// until the new one is fully written (spec.md §6, "commit atomicity").
	writeSlotA := !w.haveSlot || !w.lastSlotA
	slotOffset := w.metaBOffset
	if writeSlotA {
		slotOffset = w.metaAOffset
	}

	var mbBuf bytes.Buffer
	if err := format.WriteMetablock(&mbBuf, mb); err != nil {
		w.poisoned = true
		return wrapErr(IOError, "TableWriter.Commit", err)
	}
	if _, err := w.storage.WriteAt(mbBuf.Bytes(), int64(slotOffset)); err != nil {
		w.poisoned = true
		return wrapErr(IOError, "TableWriter.Commit", err)
	}
	if s, ok := w.storage.(syncer); ok {
		if err := s.Sync(); err != nil {
			w.poisoned = true
			return wrapErr(IOError, "TableWriter.Commit", err)
		}
	}

	w.haveSlot = true
	w.lastSlotA = writeSlotA
	w.txID = txID
	w.state = StateCommitted
	return nil
}

// Close releases the writer. It is a no-op on storage that does not
// implement io.Closer (e.g. an in-memory arena).
func (w *TableWriter) Close() error {
	if w.state == StateClosed {
		return nil
	}
	w.state = StateClosed
	if c, ok := w.storage.(closer); ok {
		return wrapErr(IOError, "TableWriter.Close", c.Close())
	}
	return nil
}
