package cstable

import (
	"io"

	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// openV1 builds a TableReader over the legacy single-section layout: each
// column's body is a single (V1BodyOffset, V1BodySize) run, addressed
// directly rather than through a page index (spec.md §4.6 step 2). V1 was
// never extended to carry repetition/definition streams in the source
// this format was distilled from, so every V1 column must be flat
// (rlevel_max == dlevel_max == 0); a schema that violates that is a
// FORMAT_ERROR rather than silently truncating structure.
func openV1(storage io.ReaderAt, header format.Header, cfg *ReaderConfig) (*TableReader, error) {
	entries := make([]format.PageIndexEntry, 0, len(header.Schema))
	for _, c := range header.Schema {
		if c.RLevelMax != 0 || c.DLevelMax != 0 {
			return nil, newErr(FormatError, "openV1", "V1 column must be flat: "+c.Name)
		}
		entries = append(entries, format.PageIndexEntry{
			Key:    format.PageIndexKey{ColumnID: c.ColumnID, EntryType: format.VALUES},
			Offset: c.V1BodyOffset,
			Size:   uint32(c.V1BodySize),
			Values: uint32(header.V1NumRows),
		})
	}

	pm := pagemgr.NewReadOnly(storage, entries)
	readers, err := columnReaders(header.Schema, pm)
	if err != nil {
		return nil, err
	}

	numRows := header.V1NumRows
	if cfg.MaxRows > 0 && cfg.MaxRows < numRows {
		numRows = cfg.MaxRows
	}

	return &TableReader{
		schema:  header.Schema,
		numRows: numRows,
		pm:      pm,
		shared:  readers,
		storage: storage,
		v1:      true,
	}, nil
}
