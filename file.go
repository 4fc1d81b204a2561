// Package cstable implements a Dremel-style columnar table file format:
// nested records are stored as per-leaf-column streams of (repetition
// level, definition level, value) triples, page-indexed on disk.
//
// The top-level types mirror the teacher's file.go/writer.go/reader.go
// split: Schema and ColumnConfig describe what is stored,
// TableWriter/TableReader drive the on-disk lifecycle, and WriterConfig/
// ReaderConfig carry the functional-options configuration the teacher's
// config.go uses throughout.
package cstable

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cstablefmt/cstable-go/column"
	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// Storage is the positional I/O surface a file lives on. *os.File and
// pagemgr.MemFile both satisfy it.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

type syncer interface{ Sync() error }
type closer interface{ Close() error }

// Schema is the ordered list of leaf column configurations that make up a
// cstable file.
type Schema []format.ColumnConfig

func buildHeader(schema Schema, metaA, metaB uint64) format.Header {
	return format.Header{
		Version:          format.VersionV2,
		MetablockAOffset: metaA,
		MetablockBOffset: metaB,
		Schema:           schema,
	}
}

func encodedHeaderLen(schema Schema) (int, error) {
	var buf bytes.Buffer
	if err := format.WriteHeader(&buf, buildHeader(schema, 0, 0)); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}

// readFooter reads the header and checks its magic number. It does not
// look at the metablocks or the page index; OpenFile dispatches on the
// header's version for that.
func readFooter(storage io.ReaderAt, limit int64) (format.Header, error) {
	header, magic, err := format.ReadHeader(io.NewSectionReader(storage, 0, limit))
	if err != nil {
		return header, wrapErr(FormatError, "readFooter", err)
	}
	if magic != format.Magic {
		return header, newErr(FormatError, "readFooter", fmt.Sprintf("bad magic %x", magic))
	}
	return header, nil
}

// pickMetablock reads both metablock slots and returns the higher-
// transaction-id one whose checksum matches its page index bytes.
func pickMetablock(storage io.ReaderAt, h format.Header) (format.Metablock, error) {
	candidates := make([]format.Metablock, 0, 2)
	for _, off := range []uint64{h.MetablockAOffset, h.MetablockBOffset} {
		mb, err := format.ReadMetablock(io.NewSectionReader(storage, int64(off), format.MetablockSize))
		if err != nil {
			continue
		}
		indexBytes := make([]byte, mb.IndexSize)
		if _, err := storage.ReadAt(indexBytes, int64(mb.IndexOffset)); err != nil {
			continue
		}
		sum := metablockChecksum(mb.TransactionID, mb.NumRows, mb.IndexOffset, mb.IndexSize, indexBytes)
		if sum != mb.Checksum {
			continue
		}
		candidates = append(candidates, mb)
	}
	if len(candidates) == 0 {
		return format.Metablock{}, newErr(FormatError, "pickMetablock", "no valid metablock slot")
	}
	best := candidates[0]
	for _, mb := range candidates[1:] {
		if mb.TransactionID > best.TransactionID {
			best = mb
		}
	}
	return best, nil
}

func columnReaders(schema Schema, pm *pagemgr.Manager) (map[string]*column.Reader, error) {
	readers := make(map[string]*column.Reader, len(schema))
	for _, c := range schema {
		cr, err := column.NewReader(c, pm)
		if err != nil {
			return nil, wrapErr(UnsupportedEncoding, "columnReaders", err)
		}
		readers[c.Name] = cr
	}
	return readers, nil
}
