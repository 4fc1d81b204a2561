package column

import (
	"testing"
	"time"

	"github.com/cstablefmt/cstable-go/format"
	"github.com/cstablefmt/cstable-go/pagemgr"
)

func roundTrip(t *testing.T, config format.ColumnConfig, write func(*Writer) error) *Reader {
	t.Helper()
	f := &pagemgr.MemFile{}
	pm := pagemgr.New(f, 0)

	w, err := New(config, pm, 64)
	if err != nil {
		t.Fatalf("New writer: %v", err)
	}
	if err := write(w); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	entries := pm.Snapshot()
	rpm := pagemgr.NewReadOnly(f, entries)
	r, err := NewReader(config, rpm)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return r
}

func TestScenarioS1FlatUints(t *testing.T) {
	config := format.ColumnConfig{
		ColumnID: 1, Name: "x",
		LogicalType: format.UNSIGNED_INT, StorageType: format.UINT32_BITPACKED,
		ValueBits: 4,
	}
	values := []uint64{3, 1, 4, 1, 5, 9, 2, 6}
	r := roundTrip(t, config, func(w *Writer) error {
		for _, v := range values {
			if err := w.WriteUnsignedInt(0, 0, v); err != nil {
				return err
			}
		}
		return nil
	})

	var got []uint64
	for {
		_, _, v, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, v.(uint64))
	}
	if len(got) != len(values) {
		t.Fatalf("got %d values, want %d", len(got), len(values))
	}
	for i, v := range values {
		if got[i] != v {
			t.Errorf("value[%d] = %d, want %d", i, got[i], v)
		}
	}
}

func TestScenarioS2OptionalString(t *testing.T) {
	config := format.ColumnConfig{
		ColumnID: 2, Name: "name",
		LogicalType: format.STRING, StorageType: format.STRING_PLAIN,
		DLevelMax: 1,
	}
	type triple struct {
		dlvl  uint8
		value string
		isNil bool
	}
	triples := []triple{
		{1, "a", false},
		{0, "", true},
		{1, "bb", false},
	}

	r := roundTrip(t, config, func(w *Writer) error {
		for _, tr := range triples {
			if tr.isNil {
				if err := w.WriteNull(0, tr.dlvl); err != nil {
					return err
				}
				continue
			}
			if err := w.WriteString(0, tr.dlvl, tr.value); err != nil {
				return err
			}
		}
		return nil
	})

	for i, want := range triples {
		rlvl, dlvl, value, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("unexpected EOF at %d", i)
		}
		if rlvl != 0 || dlvl != want.dlvl {
			t.Errorf("triple[%d] levels = (%d,%d), want (0,%d)", i, rlvl, dlvl, want.dlvl)
		}
		if want.isNil {
			if value != nil {
				t.Errorf("triple[%d] value = %v, want nil", i, value)
			}
			continue
		}
		if value.(string) != want.value {
			t.Errorf("triple[%d] value = %q, want %q", i, value, want.value)
		}
	}
	if !r.EOF() {
		t.Fatal("expected EOF")
	}
}

func TestScenarioS3RepeatedNested(t *testing.T) {
	config := format.ColumnConfig{
		ColumnID: 3, Name: "tags",
		LogicalType: format.STRING, StorageType: format.STRING_PLAIN,
		RLevelMax: 1, DLevelMax: 2,
	}
	r := roundTrip(t, config, func(w *Writer) error {
		if err := w.WriteString(0, 2, "x"); err != nil {
			return err
		}
		if err := w.WriteString(1, 2, "y"); err != nil {
			return err
		}
		return w.WriteNull(0, 0)
	})

	want := []struct {
		rlvl, dlvl uint8
		value      string
		isNil      bool
	}{
		{0, 2, "x", false},
		{1, 2, "y", false},
		{0, 0, "", true},
	}
	for i, w := range want {
		rlvl, dlvl, value, ok, err := r.Next()
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		if rlvl != w.rlvl || dlvl != w.dlvl {
			t.Fatalf("triple[%d] levels = (%d,%d), want (%d,%d)", i, rlvl, dlvl, w.rlvl, w.dlvl)
		}
		if w.isNil && value != nil {
			t.Fatalf("triple[%d] expected nil value, got %v", i, value)
		}
		if !w.isNil && value.(string) != w.value {
			t.Fatalf("triple[%d] value = %q, want %q", i, value, w.value)
		}
	}
}

func TestScenarioS4NullOnlyRecordHasNoValuePages(t *testing.T) {
	config := format.ColumnConfig{
		ColumnID: 4, Name: "v",
		LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_LEB128,
		DLevelMax: 1,
	}
	f := &pagemgr.MemFile{}
	pm := pagemgr.New(f, 0)
	w, err := New(config, pm, 64)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteNull(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	pages := pm.Pages(format.PageIndexKey{ColumnID: 4, EntryType: format.VALUES})
	if len(pages) != 0 {
		t.Fatalf("expected zero value pages, got %d", len(pages))
	}

	entries := pm.Snapshot()
	rpm := pagemgr.NewReadOnly(f, entries)
	r, err := NewReader(config, rpm)
	if err != nil {
		t.Fatal(err)
	}
	rlvl, dlvl, value, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if rlvl != 0 || dlvl != 0 || value != nil {
		t.Fatalf("got (%d,%d,%v), want (0,0,nil)", rlvl, dlvl, value)
	}
	if !r.EOF() {
		t.Fatal("expected EOF after the single null triple")
	}
}

func TestWriteNullRejectsPresentDLevel(t *testing.T) {
	config := format.ColumnConfig{ColumnID: 5, Name: "v", LogicalType: format.BOOLEAN, StorageType: format.BOOLEAN_BITPACKED, DLevelMax: 1}
	f := &pagemgr.MemFile{}
	pm := pagemgr.New(f, 0)
	w, _ := New(config, pm, 64)
	if err := w.WriteNull(0, 1); err == nil {
		t.Fatal("expected error: WriteNull with dlvl == dlevel_max")
	}
}

func TestRLevelWithoutRLevelMaxIsRejected(t *testing.T) {
	config := format.ColumnConfig{ColumnID: 6, Name: "v", LogicalType: format.UNSIGNED_INT, StorageType: format.UINT64_PLAIN}
	f := &pagemgr.MemFile{}
	pm := pagemgr.New(f, 0)
	w, _ := New(config, pm, 64)
	if err := w.WriteUnsignedInt(1, 0, 7); err == nil {
		t.Fatal("expected error: rlvl > 0 with rlevel_max == 0")
	}
}

func TestDateTimeSugar(t *testing.T) {
	config := format.ColumnConfig{ColumnID: 7, Name: "ts", LogicalType: format.DATETIME, StorageType: format.UINT64_PLAIN}
	now := time.UnixMicro(1700000000123456)
	r := roundTrip(t, config, func(w *Writer) error {
		return w.WriteDateTime(0, 0, now)
	})
	_, _, value, ok, err := r.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	got, ok := value.(time.Time)
	if !ok {
		t.Fatalf("value type = %T, want time.Time", value)
	}
	if !got.Equal(now) {
		t.Fatalf("got %v, want %v", got, now)
	}
}

func TestSignedIntZigzagRoundTrip(t *testing.T) {
	config := format.ColumnConfig{ColumnID: 8, Name: "delta", LogicalType: format.SIGNED_INT, StorageType: format.UINT64_LEB128}
	values := []int64{0, -1, 1, -1000000, 1000000}
	r := roundTrip(t, config, func(w *Writer) error {
		for _, v := range values {
			if err := w.WriteSignedInt(0, 0, v); err != nil {
				return err
			}
		}
		return nil
	})
	for i, want := range values {
		_, _, value, ok, err := r.Next()
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		if value.(int64) != want {
			t.Errorf("value[%d] = %d, want %d", i, value, want)
		}
	}
}
