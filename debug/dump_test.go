package debug

import (
	"fmt"
	"testing"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/cstablefmt/cstable-go"
	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

// assertGolden fails t with a unified diff when got doesn't match want,
// the same comparison style the teacher uses for its dump-output tests.
func assertGolden(t *testing.T, name, want, got string) {
	t.Helper()
	if want == got {
		return
	}
	edits := myers.ComputeEdits(span.URIFromPath(name), want, got)
	diff := fmt.Sprint(gotextdiff.ToUnified("want", "got", want, edits))
	t.Errorf("%s mismatch:\n%s", name, diff)
}

func TestSummarizeMatchesGolden(t *testing.T) {
	schema := cstable.Schema{
		{ColumnID: 1, Name: "x", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT32_BITPACKED, ValueBits: 4},
	}
	f := &pagemgr.MemFile{}
	w, err := cstable.CreateFile(f, schema)
	if err != nil {
		t.Fatal(err)
	}
	cw, _ := w.Column("x")
	for _, v := range []uint64{3, 1, 4} {
		if err := cw.WriteUnsignedInt(0, 0, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	r, err := cstable.OpenFile(f, int64(f.Len()))
	if err != nil {
		t.Fatal(err)
	}
	got, err := MarshalJSON(Summarize(r))
	if err != nil {
		t.Fatal(err)
	}

	want := `{
  "num_rows": 3,
  "columns": [
    {
      "column_id": 1,
      "name": "x",
      "logical_type": "UNSIGNED_INT",
      "storage_type": "UINT32_BITPACKED",
      "rlevel_max": 0,
      "dlevel_max": 0
    }
  ]
}`
	assertGolden(t, "summary.json", want, string(got))
}

func TestPageIndexJSONMatchesGolden(t *testing.T) {
	entries := []format.PageIndexEntry{
		{Key: format.PageIndexKey{ColumnID: 1, EntryType: format.VALUES}, Offset: 64, Size: 8, Values: 3},
	}
	got, err := PageIndexJSON(entries)
	if err != nil {
		t.Fatal(err)
	}
	want := `[
  {
    "column_id": 1,
    "entry_type": "VALUES",
    "offset": 64,
    "size": 8,
    "values": 3
  }
]`
	assertGolden(t, "page_index.json", want, string(got))
}
