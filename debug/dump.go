// Package debug implements JSON serialization of a cstable file's schema
// and page index, used by cmd/cstable-dump. It is deliberately separate
// from the cstable package itself so that the core library never pulls in
// a JSON codec just to satisfy a debugging tool.
package debug

import (
	"github.com/segmentio/encoding/json"

	"github.com/cstablefmt/cstable-go"
	"github.com/cstablefmt/cstable-go/format"
)

// ColumnSummary is the JSON-friendly projection of one column's
// configuration and on-disk footprint.
type ColumnSummary struct {
	ColumnID    uint32 `json:"column_id"`
	Name        string `json:"name"`
	LogicalType string `json:"logical_type"`
	StorageType string `json:"storage_type"`
	RLevelMax   uint8  `json:"rlevel_max"`
	DLevelMax   uint8  `json:"dlevel_max"`
}

// FileSummary is the JSON-friendly projection of an open file's schema and
// row count.
type FileSummary struct {
	NumRows uint64          `json:"num_rows"`
	Columns []ColumnSummary `json:"columns"`
}

// Summarize builds a FileSummary from an open reader.
func Summarize(r *cstable.TableReader) FileSummary {
	s := FileSummary{NumRows: r.NumRows()}
	for _, c := range r.Schema() {
		s.Columns = append(s.Columns, ColumnSummary{
			ColumnID:    c.ColumnID,
			Name:        c.Name,
			LogicalType: c.LogicalType.String(),
			StorageType: c.StorageType.String(),
			RLevelMax:   c.RLevelMax,
			DLevelMax:   c.DLevelMax,
		})
	}
	return s
}

// MarshalJSON renders a FileSummary as indented JSON using the same fast
// JSON codec the teacher depends on for thrift struct tags.
func MarshalJSON(s FileSummary) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// PageIndexJSON renders a page index slice as JSON, one object per entry.
func PageIndexJSON(entries []format.PageIndexEntry) ([]byte, error) {
	type entryJSON struct {
		ColumnID  uint32 `json:"column_id"`
		EntryType string `json:"entry_type"`
		Offset    uint64 `json:"offset"`
		Size      uint32 `json:"size"`
		Values    uint32 `json:"values"`
	}
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryJSON{
			ColumnID:  e.Key.ColumnID,
			EntryType: e.Key.EntryType.String(),
			Offset:    e.Offset,
			Size:      e.Size,
			Values:    e.Values,
		}
	}
	return json.MarshalIndent(out, "", "  ")
}
