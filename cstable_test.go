package cstable

import (
	"testing"

	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

func flatSchema() Schema {
	return Schema{
		{ColumnID: 1, Name: "x", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT32_BITPACKED, ValueBits: 4},
	}
}

// TestScenarioS1FlatUints mirrors spec.md §8 S1: a single flat column of
// eight small uints round-trips through commit/open with num_rows == 8.
func TestScenarioS1FlatUints(t *testing.T) {
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, flatSchema())
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	cw, err := w.Column("x")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	values := []uint64{3, 1, 4, 1, 5, 9, 2, 6}
	for _, v := range values {
		if err := cw.WriteUnsignedInt(0, 0, v); err != nil {
			t.Fatalf("WriteUnsignedInt: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenFile(f, int64(f.Len()))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if r.NumRows() != 8 {
		t.Fatalf("NumRows = %d, want 8", r.NumRows())
	}
	cr, err := r.Column("x")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	for i, want := range values {
		_, _, v, ok, err := cr.Next()
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		if v.(uint64) != want {
			t.Errorf("value[%d] = %d, want %d", i, v, want)
		}
	}
	if !cr.EOF() {
		t.Fatal("expected EOF")
	}
}

// TestScenarioS2OptionalString mirrors spec.md §8 S2: an optional string
// column with one null in the middle.
func TestScenarioS2OptionalString(t *testing.T) {
	schema := Schema{
		{ColumnID: 1, Name: "name", LogicalType: format.STRING, StorageType: format.STRING_PLAIN, DLevelMax: 1},
	}
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, schema)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	cw, _ := w.Column("name")
	if err := cw.WriteString(0, 1, "a"); err != nil {
		t.Fatal(err)
	}
	if err := cw.WriteNull(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := cw.WriteString(0, 1, "bb"); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := OpenFile(f, int64(f.Len()))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if r.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", r.NumRows())
	}
	cr, _ := r.Column("name")

	_, dlvl, v, ok, err := cr.Next()
	if err != nil || !ok || dlvl != 1 || v.(string) != "a" {
		t.Fatalf("triple 0 = (dlvl=%d, v=%v, ok=%v, err=%v)", dlvl, v, ok, err)
	}
	_, dlvl, v, ok, err = cr.Next()
	if err != nil || !ok || dlvl != 0 || v != nil {
		t.Fatalf("triple 1 = (dlvl=%d, v=%v, ok=%v, err=%v)", dlvl, v, ok, err)
	}
	_, dlvl, v, ok, err = cr.Next()
	if err != nil || !ok || dlvl != 1 || v.(string) != "bb" {
		t.Fatalf("triple 2 = (dlvl=%d, v=%v, ok=%v, err=%v)", dlvl, v, ok, err)
	}
}

// TestScenarioS5MalformedOpen mirrors spec.md §8 S5: a file whose magic
// bytes have been corrupted returns FORMAT_ERROR.
func TestScenarioS5MalformedOpen(t *testing.T) {
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, flatSchema())
	if err != nil {
		t.Fatal(err)
	}
	cw, _ := w.Column("x")
	cw.WriteUnsignedInt(0, 0, 1)
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	corrupt := append([]byte(nil), f.Bytes()...)
	for i := range corrupt[:4] {
		corrupt[i] = 0
	}
	cf := &pagemgr.MemFile{}
	cf.WriteAt(corrupt, 0)

	_, err = OpenFile(cf, int64(len(corrupt)))
	if err == nil {
		t.Fatal("expected error opening a file with corrupted magic")
	}
	if KindOf(err) != FormatError {
		t.Fatalf("KindOf = %v, want FormatError", KindOf(err))
	}
}

// TestScenarioS6RowCountMismatch mirrors spec.md §8 S6: two columns
// disagreeing on the number of rlvl==0 boundaries fails commit with
// INVARIANT_VIOLATION and leaves the writer usable for a retry.
func TestScenarioS6RowCountMismatch(t *testing.T) {
	schema := Schema{
		{ColumnID: 1, Name: "a", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN},
		{ColumnID: 2, Name: "b", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN},
	}
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, schema)
	if err != nil {
		t.Fatal(err)
	}
	ca, _ := w.Column("a")
	cb, _ := w.Column("b")
	for i := 0; i < 5; i++ {
		if err := ca.WriteUnsignedInt(0, 0, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 4; i++ {
		if err := cb.WriteUnsignedInt(0, 0, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}

	err = w.Commit()
	if err == nil {
		t.Fatal("expected INVARIANT_VIOLATION")
	}
	if KindOf(err) != InvariantViolation {
		t.Fatalf("KindOf = %v, want InvariantViolation", KindOf(err))
	}
	if w.State() != StateOpen {
		t.Fatalf("State = %v, want StateOpen after a failed commit", w.State())
	}

	if err := cb.WriteUnsignedInt(0, 0, 99); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit after fixing the mismatch: %v", err)
	}
	if w.State() != StateCommitted {
		t.Fatalf("State = %v, want StateCommitted", w.State())
	}
}

func TestWriterConfigValidateRejectsNonPositivePageSize(t *testing.T) {
	_, err := CreateFile(&pagemgr.MemFile{}, flatSchema(), TargetPageSize(-1))
	if err == nil || KindOf(err) != ArgumentError {
		t.Fatalf("got %v, want ArgumentError", err)
	}
}

func TestValidateSchemaRejectsDuplicateColumnID(t *testing.T) {
	schema := Schema{
		{ColumnID: 1, Name: "a", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN},
		{ColumnID: 1, Name: "b", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN},
	}
	_, err := CreateFile(&pagemgr.MemFile{}, schema)
	if err == nil || KindOf(err) != ArgumentError {
		t.Fatalf("got %v, want ArgumentError", err)
	}
}

func TestCommitOnCommittedWriterFails(t *testing.T) {
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, flatSchema())
	if err != nil {
		t.Fatal(err)
	}
	cw, _ := w.Column("x")
	cw.WriteUnsignedInt(0, 0, 1)
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err == nil {
		t.Fatal("expected error committing an already-committed writer")
	}
}

func TestCopyToAppliesMask(t *testing.T) {
	srcSchema := Schema{
		{ColumnID: 1, Name: "v", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN},
	}
	sf := &pagemgr.MemFile{}
	sw, err := CreateFile(sf, srcSchema)
	if err != nil {
		t.Fatal(err)
	}
	scw, _ := sw.Column("v")
	for i := uint64(0); i < 3; i++ {
		if err := scw.WriteUnsignedInt(0, 0, i+10); err != nil {
			t.Fatal(err)
		}
	}
	if err := sw.Commit(); err != nil {
		t.Fatal(err)
	}
	src, err := OpenFile(sf, int64(sf.Len()))
	if err != nil {
		t.Fatal(err)
	}

	df := &pagemgr.MemFile{}
	dw, err := CreateFile(df, srcSchema)
	if err != nil {
		t.Fatal(err)
	}

	mask := func(record int) bool { return record != 1 }
	if err := src.CopyTo(dw, []string{"v"}, mask); err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	if err := dw.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	dr, err := OpenFile(df, int64(df.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if dr.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3", dr.NumRows())
	}
	dcr, _ := dr.Column("v")
	want := []uint64{10, 0, 12}
	for i, w := range want {
		_, _, v, ok, err := dcr.Next()
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		if v.(uint64) != w {
			t.Errorf("value[%d] = %d, want %d (record 1 should be redacted to zero)", i, v, w)
		}
	}
}

func TestRandomTransactionIDSeedsVaryAndSeedFirstCommit(t *testing.T) {
	a := RandomTransactionIDSeed()
	b := RandomTransactionIDSeed()
	if a == b {
		t.Fatal("two random seeds collided, which should essentially never happen")
	}

	schema := flatSchema()
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, schema, &WriterConfig{TransactionIDSeed: a, TargetPageSize: DefaultTargetPageSize})
	if err != nil {
		t.Fatal(err)
	}
	cw, _ := w.Column("x")
	if err := cw.WriteUnsignedInt(0, 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestColumnUnavailableAfterCommit(t *testing.T) {
	f := &pagemgr.MemFile{}
	w, err := CreateFile(f, flatSchema())
	if err != nil {
		t.Fatal(err)
	}
	cw, _ := w.Column("x")
	cw.WriteUnsignedInt(0, 0, 1)
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Column("x"); err == nil || KindOf(err) != ArgumentError {
		t.Fatalf("got %v, want ArgumentError once the writer is no longer OPEN", err)
	}
}
