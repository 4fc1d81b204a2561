package cstable

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/cstablefmt/cstable-go/column"
	"github.com/cstablefmt/cstable-go/format"
)

// Default configuration values, mirroring the teacher's Default* constants.
const (
	DefaultTargetPageSize = column.DefaultTargetPageSize
	DefaultMaxRows        = 0 // 0 means unbounded
)

// WriterConfig carries configuration options for TableWriter.
//
// WriterConfig implements WriterOption so it can be passed directly to
// CreateFile, for example:
//
//	w, err := cstable.CreateFile(f, schema, &cstable.WriterConfig{
//		TargetPageSize: 4 << 20,
//	})
type WriterConfig struct {
	// TargetPageSize is the buffered size, per logical sub-stream, that
	// triggers a page cut (spec.md §4.3).
	TargetPageSize int
	// TransactionIDSeed offsets the transaction_id sequence: the first
	// commit is assigned TransactionIDSeed+1, and each subsequent commit
	// increments by one. Zero means the first commit is transaction 1.
	TransactionIDSeed uint64
}

// DefaultWriterConfig returns a WriterConfig initialized with the default
// writer configuration.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{TargetPageSize: DefaultTargetPageSize}
}

// Apply applies the given list of options to c.
func (c *WriterConfig) Apply(options ...WriterOption) {
	for _, opt := range options {
		opt.ConfigureWriter(c)
	}
}

// ConfigureWriter applies configuration options from c to config.
func (c *WriterConfig) ConfigureWriter(config *WriterConfig) {
	*config = WriterConfig{
		TargetPageSize:    coalesceInt(c.TargetPageSize, config.TargetPageSize),
		TransactionIDSeed: coalesceUint64(c.TransactionIDSeed, config.TransactionIDSeed),
	}
}

// RandomTransactionIDSeed derives a TransactionIDSeed from a fresh random
// UUID, for callers that want independently created files to avoid
// colliding transaction_id sequences without coordinating a counter
// themselves (spec.md's transaction_id has no uniqueness requirement
// across files, only monotonicity within one).
func RandomTransactionIDSeed() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}

// Validate returns a non-nil error if the configuration of c is invalid.
func (c *WriterConfig) Validate() error {
	if c.TargetPageSize <= 0 {
		return newErr(ArgumentError, "WriterConfig.Validate", "TargetPageSize must be positive")
	}
	return nil
}

// ReaderConfig carries configuration options for TableReader.
type ReaderConfig struct {
	// MaxRows caps the number of records a reader reports, per spec.md
	// §4.6 step 4 (num_rows = min(metablock.num_rows, user_limit)). Zero
	// means unbounded.
	MaxRows uint64
	// UseMmap selects a memory-mapped view of the whole file (V1 or V2)
	// over plain positional reads when opening from a path on unix
	// (spec.md §4.6 step 2).
	UseMmap bool
}

// DefaultReaderConfig returns a ReaderConfig initialized with the default
// reader configuration.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{MaxRows: DefaultMaxRows, UseMmap: true}
}

// Apply applies the given list of options to c.
func (c *ReaderConfig) Apply(options ...ReaderOption) {
	for _, opt := range options {
		opt.ConfigureReader(c)
	}
}

// ConfigureReader applies configuration options from c to config.
func (c *ReaderConfig) ConfigureReader(config *ReaderConfig) {
	*config = ReaderConfig{
		MaxRows: coalesceUint64(c.MaxRows, config.MaxRows),
		UseMmap: c.UseMmap,
	}
}

// Validate returns a non-nil error if the configuration of c is invalid.
func (c *ReaderConfig) Validate() error { return nil }

// WriterOption is implemented by types that carry writer configuration.
type WriterOption interface {
	ConfigureWriter(*WriterConfig)
}

// ReaderOption is implemented by types that carry reader configuration.
type ReaderOption interface {
	ConfigureReader(*ReaderConfig)
}

// TargetPageSize returns a WriterOption that overrides the page-cut
// threshold.
func TargetPageSize(size int) WriterOption { return targetPageSize(size) }

type targetPageSize int

func (o targetPageSize) ConfigureWriter(c *WriterConfig) { c.TargetPageSize = int(o) }

// MaxRows returns a ReaderOption that caps the number of rows a reader
// reports.
func MaxRows(n uint64) ReaderOption { return maxRows(n) }

type maxRows uint64

func (o maxRows) ConfigureReader(c *ReaderConfig) { c.MaxRows = uint64(o) }

func coalesceInt(i1, i2 int) int {
	if i1 != 0 {
		return i1
	}
	return i2
}

func coalesceUint64(i1, i2 uint64) uint64 {
	if i1 != 0 {
		return i1
	}
	return i2
}

// validateSchema checks the column_id/name uniqueness rules of spec.md §3.
func validateSchema(schema []format.ColumnConfig) error {
	ids := make(map[uint32]bool, len(schema))
	names := make(map[string]bool, len(schema))
	for _, c := range schema {
		if c.Name == "" {
			return newErr(ArgumentError, "validateSchema", "column has empty name")
		}
		if ids[c.ColumnID] {
			return newErr(ArgumentError, "validateSchema", fmt.Sprintf("duplicate column_id %d", c.ColumnID))
		}
		if names[c.Name] {
			return newErr(ArgumentError, "validateSchema", fmt.Sprintf("duplicate column name %q", c.Name))
		}
		ids[c.ColumnID] = true
		names[c.Name] = true
	}
	return nil
}
